package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/pkg/jobs"
)

const auditJobType = "audit_log"

type jobQueue interface {
	TryEnqueue(job jobs.Job) error
}

// AsyncAuditWriter hands audit rows to a background queue so request latency
// does not include the insert. When the queue refuses a row it is written inline.
type AsyncAuditWriter struct {
	store  auditLogger
	queue  jobQueue
	logger *zap.Logger
}

// NewAsyncAuditWriter wires store behind queue.
func NewAsyncAuditWriter(store auditLogger, queue jobQueue, logger *zap.Logger) *AsyncAuditWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncAuditWriter{store: store, queue: queue, logger: logger}
}

// CreateAuditLog enqueues entry. The request context is not carried over, so a
// transaction attached to ctx never leaks into the background write.
func (w *AsyncAuditWriter) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if entry == nil {
		return nil
	}
	if w.queue != nil {
		err := w.queue.TryEnqueue(jobs.Job{Type: auditJobType, ID: entry.Action, Payload: entry})
		if err == nil {
			return nil
		}
		w.logger.Warn("audit queue rejected entry, writing inline", zap.String("action", entry.Action), zap.Error(err))
	}
	return w.store.CreateAuditLog(context.WithoutCancel(ctx), entry)
}

// AuditJobHandler persists the audit row carried by each queued job.
func AuditJobHandler(store auditLogger) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		entry, ok := job.Payload.(*models.AuditLog)
		if !ok {
			return errors.New("audit job without audit payload")
		}
		return store.CreateAuditLog(ctx, entry)
	}
}
