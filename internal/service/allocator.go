package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type roomStore interface {
	candidateFinder
	FindByID(ctx context.Context, id string) (*models.Room, error)
	AddOccupant(ctx context.Context, roomID, studentID string) error
	RemoveOccupant(ctx context.Context, roomID, studentID string) error
}

type profileStore interface {
	FindByUser(ctx context.Context, userID string) (*models.StudentProfile, error)
	FindByUserForUpdate(ctx context.Context, userID string) (*models.StudentProfile, error)
	UpsertPreferences(ctx context.Context, profile *models.StudentProfile) (*models.StudentProfile, error)
	SetAssignment(ctx context.Context, userID string, roomID *string, status models.ProfileStatus) error
	UpdateStatus(ctx context.Context, userID string, status models.ProfileStatus) error
	ListPending(ctx context.Context) ([]models.StudentProfile, error)
	Delete(ctx context.Context, userID string) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// allocator holds the occupancy primitives shared by the allocation, swap and
// change-application workflows. Callers run it inside a transaction so room
// occupants and profile pointers commit together.
type allocator struct {
	rooms    roomStore
	profiles profileStore
	matcher  *RoomMatcher
	logger   *zap.Logger
}

func newAllocator(rooms roomStore, profiles profileStore, logger *zap.Logger) allocator {
	return allocator{rooms: rooms, profiles: profiles, matcher: NewRoomMatcher(rooms), logger: logger}
}

// place puts the student into the first eligible room that accepts the
// conditional append. It returns nil when no room is available.
func (a allocator) place(ctx context.Context, profile *models.StudentProfile) (*models.Room, error) {
	candidates, err := a.matcher.Candidates(ctx, profile.Preferences())
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		room := candidates[i]
		if err := a.rooms.AddOccupant(ctx, room.ID, profile.UserID); err != nil {
			if errors.Is(err, repository.ErrRoomFull) {
				a.logger.Debug("candidate filled concurrently", zap.String("room_id", room.ID))
				continue
			}
			return nil, internalError(err, "failed to add room occupant")
		}
		roomID := room.ID
		if err := a.profiles.SetAssignment(ctx, profile.UserID, &roomID, models.ProfileStatusAssigned); err != nil {
			return nil, internalError(err, "failed to record assignment")
		}
		room.Occupied++
		room.Occupants = append(room.Occupants, profile.UserID)
		profile.AssignedRoomID = &roomID
		profile.Status = models.ProfileStatusAssigned
		return &room, nil
	}
	return nil, nil
}

// release removes the student from their room and resets the profile to pending.
func (a allocator) release(ctx context.Context, profile *models.StudentProfile) error {
	if !profile.IsAssigned() {
		return nil
	}
	roomID := *profile.AssignedRoomID
	if err := a.rooms.RemoveOccupant(ctx, roomID, profile.UserID); err != nil {
		if !errors.Is(err, repository.ErrNotOccupant) {
			return internalError(err, "failed to remove room occupant")
		}
		a.logger.Warn("profile pointed at a room it did not occupy",
			zap.String("user_id", profile.UserID), zap.String("room_id", roomID))
	}
	if err := a.profiles.SetAssignment(ctx, profile.UserID, nil, models.ProfileStatusPending); err != nil {
		return internalError(err, "failed to clear assignment")
	}
	profile.AssignedRoomID = nil
	profile.Status = models.ProfileStatusPending
	return nil
}

func internalError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func emitAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, entry *models.AuditLog) {
	if audit == nil || entry == nil {
		return
	}
	if entry.IPAddress == "" {
		entry.IPAddress = "system"
	}
	if entry.UserAgent == "" {
		entry.UserAgent = "allocation-service"
	}
	if err := audit.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to persist audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

func auditPayload(v interface{}) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
