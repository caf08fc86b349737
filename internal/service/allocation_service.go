package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

// AllocationService manages student preferences and room assignment.
type AllocationService struct {
	allocator
	tx        txRunner
	catalog   *HostelCatalog
	audit     auditLogger
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// AllocationDeps groups the collaborators of AllocationService.
type AllocationDeps struct {
	Rooms    roomStore
	Profiles profileStore
	Tx       txRunner
	Catalog  *HostelCatalog
	Audit    auditLogger
	Cache    *CacheService
	Metrics  *MetricsService
}

// NewAllocationService constructs the service.
func NewAllocationService(deps AllocationDeps, validate *validator.Validate, logger *zap.Logger) *AllocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if deps.Catalog == nil {
		deps.Catalog = DefaultHostelCatalog()
	}
	return &AllocationService{
		allocator: newAllocator(deps.Rooms, deps.Profiles, logger),
		tx:        deps.Tx,
		catalog:   deps.Catalog,
		audit:     deps.Audit,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		validator: validate,
		logger:    logger,
	}
}

// SetPreferences creates or replaces the student's preferences. An existing
// assignment is kept; new preferences only matter for the next match.
func (s *AllocationService) SetPreferences(ctx context.Context, studentID string, req dto.SetPreferencesRequest) (*models.StudentProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preferences payload")
	}
	if err := s.catalog.ValidateRefs(req.PreferredHostels); err != nil {
		return nil, err
	}

	profile := &models.StudentProfile{
		UserID:           studentID,
		FoodPreference:   req.FoodPreference,
		PreferredSeater:  req.PreferredSeater,
		PreferredAC:      *req.PreferredAC,
		PreferredHostels: req.PreferredHostels,
		PreferredBlock:   s.resolveBlock(req.PreferredBlock, req.PreferredHostels),
		Amenities: models.Amenities{
			LargeDining:     req.WantLargeDining,
			ExtraFacilities: req.WantExtraFacilities,
		},
	}
	if profile.PreferredHostels == nil {
		profile.PreferredHostels = models.HostelRefs{}
	}

	saved, err := s.profiles.UpsertPreferences(ctx, profile)
	if err != nil {
		return nil, internalError(err, "failed to save preferences")
	}
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &studentID,
		Action:     models.AuditActionPreferencesSet,
		Resource:   "student_profile",
		ResourceID: &saved.ID,
		NewValues:  auditPayload(req),
	})
	return saved, nil
}

// resolveBlock keeps an explicit block or derives it from the first numeric hostel.
func (s *AllocationService) resolveBlock(explicit *models.BlockType, hostels models.HostelRefs) *models.BlockType {
	if explicit != nil {
		block := *explicit
		return &block
	}
	if n, ok := hostels.FirstNumber(); ok {
		block := s.catalog.BlockFor(n)
		return &block
	}
	return nil
}

// DeletePreferences releases any held room and removes the profile.
func (s *AllocationService) DeletePreferences(ctx context.Context, studentID string) error {
	var released *string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		profile, err := s.profiles.FindByUserForUpdate(ctx, studentID)
		if err != nil {
			if isNotFound(err) {
				return appErrors.Clone(appErrors.ErrNotFound, "preferences not found")
			}
			return internalError(err, "failed to load profile")
		}
		released = profile.AssignedRoomID
		if err := s.release(ctx, profile); err != nil {
			return err
		}
		if err := s.profiles.Delete(ctx, studentID); err != nil {
			return internalError(err, "failed to delete profile")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if released != nil {
		s.cache.Invalidate(ctx, availabilityCachePattern)
	}
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &studentID,
		Action:     models.AuditActionPreferencesDelete,
		Resource:   "student_profile",
		ResourceID: &studentID,
		OldValues:  auditPayload(map[string]interface{}{"releasedRoomId": released}),
	})
	return nil
}

// GetProfile returns the student's profile with the assigned room resolved.
func (s *AllocationService) GetProfile(ctx context.Context, studentID string) (*models.ProfileDetail, error) {
	profile, err := s.profiles.FindByUser(ctx, studentID)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, internalError(err, "failed to load profile")
	}
	detail := &models.ProfileDetail{StudentProfile: *profile}
	if profile.IsAssigned() {
		room, err := s.rooms.FindByID(ctx, *profile.AssignedRoomID)
		if err != nil && !isNotFound(err) {
			return nil, internalError(err, "failed to load assigned room")
		}
		detail.AssignedRoom = room
	}
	return detail, nil
}

// AutoAssign matches the student into the first eligible room.
func (s *AllocationService) AutoAssign(ctx context.Context, studentID string) (*models.ProfileDetail, error) {
	start := time.Now()
	var detail *models.ProfileDetail
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		detail, err = s.assignLocked(ctx, studentID)
		return err
	})
	s.metrics.RecordAllocation("auto_assign", allocationOutcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, availabilityCachePattern)
	s.logger.Info("room assigned",
		zap.String("user_id", studentID),
		zap.String("room_id", detail.AssignedRoom.ID),
	)
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &studentID,
		Action:     models.AuditActionRoomAssign,
		Resource:   "room",
		ResourceID: &detail.AssignedRoom.ID,
		NewValues:  auditPayload(map[string]string{"studentId": studentID, "roomId": detail.AssignedRoom.ID}),
	})
	return detail, nil
}

// assignLocked runs inside a transaction.
func (s *AllocationService) assignLocked(ctx context.Context, studentID string) (*models.ProfileDetail, error) {
	profile, err := s.profiles.FindByUserForUpdate(ctx, studentID)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.ErrPreferencesNotSet
		}
		return nil, internalError(err, "failed to load profile")
	}
	if profile.IsAssigned() {
		return nil, appErrors.ErrAlreadyAssigned
	}
	room, err := s.place(ctx, profile)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, appErrors.ErrNoRoomAvailable
	}
	return &models.ProfileDetail{StudentProfile: *profile, AssignedRoom: room}, nil
}

// BatchAutoAssign assigns every pending student in creation order. Each
// student commits independently; one failure does not undo the others.
func (s *AllocationService) BatchAutoAssign(ctx context.Context, actorID string) (*models.BatchAssignResult, error) {
	start := time.Now()
	pending, err := s.profiles.ListPending(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list pending profiles")
	}

	result := &models.BatchAssignResult{Results: make([]models.BatchAssignEntry, 0, len(pending))}
	for _, candidate := range pending {
		entry := models.BatchAssignEntry{StudentID: candidate.UserID}
		var detail *models.ProfileDetail
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			detail, err = s.assignLocked(ctx, candidate.UserID)
			return err
		})
		result.Processed++
		switch {
		case err == nil:
			roomID := detail.AssignedRoom.ID
			entry.AssignedRoomID = &roomID
			result.Assigned++
		default:
			result.Unassigned++
			if appErr := appErrors.FromError(err); appErr.Code != appErrors.ErrNoRoomAvailable.Code {
				entry.Error = appErr.Message
				s.logger.Warn("batch assignment failed for student", zap.String("user_id", candidate.UserID), zap.Error(err))
			}
		}
		result.Results = append(result.Results, entry)
	}
	s.metrics.RecordAllocation("batch_assign", outcomeSuccess, time.Since(start))

	if result.Assigned > 0 {
		s.cache.Invalidate(ctx, availabilityCachePattern)
	}
	s.logger.Info("batch assignment finished",
		zap.Int("processed", result.Processed),
		zap.Int("assigned", result.Assigned),
		zap.Int("unassigned", result.Unassigned),
	)
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:    optionalID(actorID),
		Action:    models.AuditActionRoomAssign,
		Resource:  "batch",
		NewValues: auditPayload(map[string]int{"processed": result.Processed, "assigned": result.Assigned}),
	})
	return result, nil
}

func allocationOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case appErrors.IsCode(err, appErrors.ErrNoRoomAvailable.Code):
		return outcomeNoRoom
	case appErrors.FromError(err).Status < 500:
		return outcomeRejected
	default:
		return outcomeError
	}
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
