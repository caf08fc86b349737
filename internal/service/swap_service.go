package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

type swapStore interface {
	Create(ctx context.Context, swap *models.SwapRequest) error
	GetByID(ctx context.Context, id string) (*models.SwapRequest, error)
	List(ctx context.Context, filter models.SwapFilter) ([]models.SwapRequest, error)
	Resolve(ctx context.Context, id string, status models.SwapStatus, decidedBy string, decidedAt time.Time) error
}

// SwapService runs the two-party room exchange workflow.
type SwapService struct {
	allocator
	swaps     swapStore
	tx        txRunner
	audit     auditLogger
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// SwapDeps groups the collaborators of SwapService.
type SwapDeps struct {
	Rooms    roomStore
	Profiles profileStore
	Swaps    swapStore
	Tx       txRunner
	Audit    auditLogger
	Cache    *CacheService
	Metrics  *MetricsService
}

// NewSwapService constructs the service.
func NewSwapService(deps SwapDeps, validate *validator.Validate, logger *zap.Logger) *SwapService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SwapService{
		allocator: newAllocator(deps.Rooms, deps.Profiles, logger),
		swaps:     deps.Swaps,
		tx:        deps.Tx,
		audit:     deps.Audit,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		validator: validate,
		logger:    logger,
	}
}

// RequestSwap files a swap between the initiator and another assigned student.
// Both rooms must share seater, AC and block type. Only the initiator's status
// moves to swap_pending; the counterpart is left untouched.
func (s *SwapService) RequestSwap(ctx context.Context, fromUser string, req dto.RequestSwapRequest) (*models.SwapRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap payload")
	}
	if req.ToUserID == fromUser {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot swap with yourself")
	}

	var swap *models.SwapRequest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		profiles, err := s.lockPair(ctx, fromUser, req.ToUserID)
		if err != nil {
			return err
		}
		from, to := profiles[fromUser], profiles[req.ToUserID]
		if from == nil || to == nil || !from.IsAssigned() || !to.IsAssigned() {
			return appErrors.ErrMissingAssignment
		}

		fromRoom, err := s.loadRoom(ctx, *from.AssignedRoomID)
		if err != nil {
			return err
		}
		toRoom, err := s.loadRoom(ctx, *to.AssignedRoomID)
		if err != nil {
			return err
		}
		if !fromRoom.SameBedType(*toRoom) || fromRoom.BlockType != toRoom.BlockType {
			return appErrors.ErrIncompatibleRoomTypes
		}

		swap = &models.SwapRequest{
			FromUser: fromUser,
			ToUser:   req.ToUserID,
			Status:   models.SwapStatusPending,
			Reason:   req.Reason,
			Seater:   fromRoom.Seater,
			AC:       fromRoom.AC,
		}
		if err := s.swaps.Create(ctx, swap); err != nil {
			return internalError(err, "failed to create swap request")
		}
		if err := s.profiles.UpdateStatus(ctx, fromUser, models.ProfileStatusSwapPending); err != nil {
			return internalError(err, "failed to mark swap pending")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &fromUser,
		Action:     models.AuditActionSwapRequest,
		Resource:   "swap_request",
		ResourceID: &swap.ID,
		NewValues:  auditPayload(swap),
	})
	return swap, nil
}

// DecideSwap approves or rejects a pending swap. Approval exchanges both
// students' rooms in one transaction.
func (s *SwapService) DecideSwap(ctx context.Context, swapID, adminID string, req dto.DecisionRequest) (*models.SwapRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "decision must be approve or reject")
	}

	start := time.Now()
	var swap *models.SwapRequest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		swap, err = s.swaps.GetByID(ctx, swapID)
		if err != nil {
			if isNotFound(err) {
				return appErrors.Clone(appErrors.ErrNotFound, "swap request not found")
			}
			return internalError(err, "failed to load swap request")
		}
		if swap.Status != models.SwapStatusPending {
			return appErrors.Clone(appErrors.ErrAlreadyDecided, "swap request already decided")
		}

		status := models.SwapStatusRejected
		if req.Decision == dto.DecisionApprove {
			status = models.SwapStatusApproved
		}
		now := time.Now().UTC()
		// Resolving first takes the row lock, so a concurrent decision waits
		// here and then sees the request as already decided.
		if err := s.swaps.Resolve(ctx, swap.ID, status, adminID, now); err != nil {
			if errors.Is(err, repository.ErrNotPending) {
				return appErrors.Clone(appErrors.ErrAlreadyDecided, "swap request already decided")
			}
			return internalError(err, "failed to resolve swap request")
		}
		swap.Status = status
		swap.DecidedBy = &adminID
		swap.DecidedAt = &now

		if status == models.SwapStatusApproved {
			return s.exchange(ctx, swap.FromUser, swap.ToUser)
		}
		return nil
	})
	operation := "swap_" + req.Decision
	s.metrics.RecordAllocation(operation, allocationOutcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	if swap.Status == models.SwapStatusApproved {
		s.cache.Invalidate(ctx, availabilityCachePattern)
		s.logger.Info("swap approved",
			zap.String("swap_id", swap.ID),
			zap.String("from_user", swap.FromUser),
			zap.String("to_user", swap.ToUser),
		)
	}
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionSwapDecide,
		Resource:   "swap_request",
		ResourceID: &swap.ID,
		NewValues:  auditPayload(map[string]string{"status": string(swap.Status)}),
	})
	return swap, nil
}

// exchange swaps the rooms of two students. Both must still hold a room.
func (s *SwapService) exchange(ctx context.Context, userA, userB string) error {
	profiles, err := s.lockPair(ctx, userA, userB)
	if err != nil {
		return err
	}
	a, b := profiles[userA], profiles[userB]
	if a == nil || b == nil || !a.IsAssigned() || !b.IsAssigned() {
		return appErrors.ErrMissingAssignment
	}
	roomA, roomB := *a.AssignedRoomID, *b.AssignedRoomID

	if roomA != roomB {
		if err := s.rooms.RemoveOccupant(ctx, roomA, userA); err != nil {
			return internalError(err, "failed to remove initiator from room")
		}
		if err := s.rooms.RemoveOccupant(ctx, roomB, userB); err != nil {
			return internalError(err, "failed to remove counterpart from room")
		}
		if err := s.rooms.AddOccupant(ctx, roomA, userB); err != nil {
			return internalError(err, "failed to move counterpart")
		}
		if err := s.rooms.AddOccupant(ctx, roomB, userA); err != nil {
			return internalError(err, "failed to move initiator")
		}
	}
	if err := s.profiles.SetAssignment(ctx, userA, &roomB, models.ProfileStatusAssigned); err != nil {
		return internalError(err, "failed to update initiator assignment")
	}
	if err := s.profiles.SetAssignment(ctx, userB, &roomA, models.ProfileStatusAssigned); err != nil {
		return internalError(err, "failed to update counterpart assignment")
	}
	return nil
}

// CancelSwap lets the initiator withdraw a pending swap. The initiator returns
// to assigned once none of their swaps is still pending.
func (s *SwapService) CancelSwap(ctx context.Context, swapID, studentID string) (*models.SwapRequest, error) {
	var swap *models.SwapRequest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		swap, err = s.swaps.GetByID(ctx, swapID)
		if err != nil {
			if isNotFound(err) {
				return appErrors.Clone(appErrors.ErrNotFound, "swap request not found")
			}
			return internalError(err, "failed to load swap request")
		}
		if swap.FromUser != studentID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the initiator can cancel a swap")
		}
		if swap.Status != models.SwapStatusPending {
			return appErrors.Clone(appErrors.ErrAlreadyDecided, "swap request already decided")
		}
		now := time.Now().UTC()
		if err := s.swaps.Resolve(ctx, swap.ID, models.SwapStatusCancelled, studentID, now); err != nil {
			if errors.Is(err, repository.ErrNotPending) {
				return appErrors.Clone(appErrors.ErrAlreadyDecided, "swap request already decided")
			}
			return internalError(err, "failed to cancel swap request")
		}
		swap.Status = models.SwapStatusCancelled
		swap.DecidedBy = &studentID
		swap.DecidedAt = &now

		stillPending, err := s.hasOpenSwap(ctx, studentID)
		if err != nil {
			return err
		}
		if stillPending {
			return nil
		}
		if err := s.profiles.UpdateStatus(ctx, studentID, models.ProfileStatusAssigned); err != nil && !isNotFound(err) {
			return internalError(err, "failed to restore profile status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &studentID,
		Action:     models.AuditActionSwapCancel,
		Resource:   "swap_request",
		ResourceID: &swap.ID,
	})
	return swap, nil
}

// List returns swap requests newest first.
func (s *SwapService) List(ctx context.Context, query dto.SwapQuery) ([]models.SwapRequest, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap filter")
	}
	filter := models.SwapFilter{UserID: query.UserID, Limit: query.Limit, Offset: query.Offset}
	if query.Status != "" {
		status := models.SwapStatus(query.Status)
		filter.Status = &status
	}
	swaps, err := s.swaps.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list swap requests")
	}
	return swaps, nil
}

// lockPair row-locks both profiles in ascending user id order. Missing
// profiles are returned as nil entries.
func (s *SwapService) lockPair(ctx context.Context, userA, userB string) (map[string]*models.StudentProfile, error) {
	ids := []string{userA, userB}
	sort.Strings(ids)
	profiles := make(map[string]*models.StudentProfile, 2)
	for _, id := range ids {
		if _, seen := profiles[id]; seen {
			continue
		}
		profile, err := s.profiles.FindByUserForUpdate(ctx, id)
		if err != nil {
			if isNotFound(err) {
				profiles[id] = nil
				continue
			}
			return nil, internalError(err, "failed to lock profile")
		}
		profiles[id] = profile
	}
	return profiles, nil
}

// hasOpenSwap reports whether the student initiated a swap that is still pending.
func (s *SwapService) hasOpenSwap(ctx context.Context, studentID string) (bool, error) {
	pending := models.SwapStatusPending
	swaps, err := s.swaps.List(ctx, models.SwapFilter{Status: &pending, UserID: studentID})
	if err != nil {
		return false, internalError(err, "failed to list pending swaps")
	}
	for _, swap := range swaps {
		if swap.FromUser == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (s *SwapService) loadRoom(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assigned room not found")
		}
		return nil, internalError(err, "failed to load room")
	}
	return room, nil
}
