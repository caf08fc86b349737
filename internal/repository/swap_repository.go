package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
)

const maxPageSize = 200

const swapColumns = `id, from_user, to_user, status, reason, seater, ac, decided_by, decided_at, created_at`

// SwapRepository persists swap requests.
type SwapRepository struct {
	db *sqlx.DB
}

// NewSwapRepository constructs the repository.
func NewSwapRepository(db *sqlx.DB) *SwapRepository {
	return &SwapRepository{db: db}
}

// Create inserts a new swap request.
func (r *SwapRepository) Create(ctx context.Context, swap *models.SwapRequest) error {
	if swap.ID == "" {
		swap.ID = uuid.NewString()
	}
	if swap.Status == "" {
		swap.Status = models.SwapStatusPending
	}
	if swap.CreatedAt.IsZero() {
		swap.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO swap_requests (id, from_user, to_user, status, reason, seater, ac, decided_by, decided_at, created_at)
	VALUES (:id, :from_user, :to_user, :status, :reason, :seater, :ac, :decided_by, :decided_at, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, swap); err != nil {
		return fmt.Errorf("create swap request: %w", err)
	}
	return nil
}

// GetByID fetches a swap request.
func (r *SwapRepository) GetByID(ctx context.Context, id string) (*models.SwapRequest, error) {
	query := `SELECT ` + swapColumns + ` FROM swap_requests WHERE id = $1`
	var swap models.SwapRequest
	if err := conn(ctx, r.db).GetContext(ctx, &swap, query, id); err != nil {
		return nil, err
	}
	return &swap, nil
}

// List returns swap requests newest first.
func (r *SwapRepository) List(ctx context.Context, filter models.SwapFilter) ([]models.SwapRequest, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + swapColumns + ` FROM swap_requests`)
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("(from_user = $%d OR to_user = $%d)", len(args), len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")
	builder.WriteString(limitClause(filter.Limit, filter.Offset))

	swaps := []models.SwapRequest{}
	if err := conn(ctx, r.db).SelectContext(ctx, &swaps, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list swap requests: %w", err)
	}
	return swaps, nil
}

// Resolve moves a pending swap to a terminal status. ErrNotPending is returned
// when the swap was already resolved.
func (r *SwapRepository) Resolve(ctx context.Context, id string, status models.SwapStatus, decidedBy string, decidedAt time.Time) error {
	const query = `UPDATE swap_requests SET status = $2, decided_by = $3, decided_at = $4 WHERE id = $1 AND status = 'pending'`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, id, status, decidedBy, decidedAt)
	if err != nil {
		return fmt.Errorf("resolve swap request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check swap resolve rows: %w", err)
	}
	if rows == 0 {
		return ErrNotPending
	}
	return nil
}

// CountPending returns the number of open swap requests.
func (r *SwapRepository) CountPending(ctx context.Context) (int, error) {
	var total int
	if err := conn(ctx, r.db).GetContext(ctx, &total, `SELECT COUNT(*) FROM swap_requests WHERE status = 'pending'`); err != nil {
		return 0, fmt.Errorf("count pending swaps: %w", err)
	}
	return total, nil
}

// limitClause pages a listing. A zero limit returns every row.
func limitClause(limit, offset int) string {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		if offset == 0 {
			return ""
		}
		return fmt.Sprintf(" OFFSET %d", offset)
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}
