package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

type applicationStore interface {
	Create(ctx context.Context, app *models.ChangeApplication) error
	GetByID(ctx context.Context, id string) (*models.ChangeApplication, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ChangeApplication, error)
	Resolve(ctx context.Context, id string, status models.ApplicationStatus, note *string, decidedBy string, decidedAt time.Time) error
}

// ChangeApplicationService handles requests for a different bed type or hostel.
type ChangeApplicationService struct {
	allocator
	apps      applicationStore
	tx        txRunner
	catalog   *HostelCatalog
	audit     auditLogger
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// ChangeApplicationDeps groups the collaborators of ChangeApplicationService.
type ChangeApplicationDeps struct {
	Rooms        roomStore
	Profiles     profileStore
	Applications applicationStore
	Tx           txRunner
	Catalog      *HostelCatalog
	Audit        auditLogger
	Cache        *CacheService
	Metrics      *MetricsService
}

// NewChangeApplicationService constructs the service.
func NewChangeApplicationService(deps ChangeApplicationDeps, validate *validator.Validate, logger *zap.Logger) *ChangeApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if deps.Catalog == nil {
		deps.Catalog = DefaultHostelCatalog()
	}
	return &ChangeApplicationService{
		allocator: newAllocator(deps.Rooms, deps.Profiles, logger),
		apps:      deps.Applications,
		tx:        deps.Tx,
		catalog:   deps.Catalog,
		audit:     deps.Audit,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		validator: validate,
		logger:    logger,
	}
}

// Apply files a change application. Students may hold several open ones.
func (s *ChangeApplicationService) Apply(ctx context.Context, userID string, req dto.ApplyChangeRequest) (*models.ChangeApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change application payload")
	}

	app := &models.ChangeApplication{
		UserID:             userID,
		Name:               strings.TrimSpace(req.Name),
		RegistrationNumber: strings.TrimSpace(req.RegistrationNumber),
		Reason:             strings.TrimSpace(req.Reason),
		Type:               req.Type,
		Status:             models.ApplicationStatusPending,
	}
	switch req.Type {
	case models.ChangeTypeBedType:
		if req.DesiredSeater == nil || req.DesiredAC == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "desiredSeater and desiredAC are required for bed_type")
		}
		app.DesiredSeater = req.DesiredSeater
		app.DesiredAC = req.DesiredAC
	case models.ChangeTypeHostel:
		if req.DesiredHostel == nil || req.DesiredHostel.IsZero() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "desiredHostel is required for hostel")
		}
		if err := s.catalog.ValidateRef(*req.DesiredHostel); err != nil {
			return nil, err
		}
		app.DesiredHostel = req.DesiredHostel
	}

	if err := s.apps.Create(ctx, app); err != nil {
		return nil, internalError(err, "failed to create change application")
	}
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionChangeApply,
		Resource:   "change_application",
		ResourceID: &app.ID,
		NewValues:  auditPayload(app),
	})
	return app, nil
}

// Decide approves or rejects a pending application. Approval rewrites the
// student's preferences, releases any held room and re-runs the matcher.
// A student with no eligible room is left pending without a room.
func (s *ChangeApplicationService) Decide(ctx context.Context, id, adminID string, req dto.DecisionRequest) (*models.ApplicationOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "decision must be approve or reject")
	}

	start := time.Now()
	var outcome *models.ApplicationOutcome
	var touchedRooms bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		app, err := s.apps.GetByID(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return appErrors.Clone(appErrors.ErrNotFound, "change application not found")
			}
			return internalError(err, "failed to load change application")
		}
		if app.Status != models.ApplicationStatusPending {
			return appErrors.Clone(appErrors.ErrAlreadyDecided, "application already decided")
		}

		status := models.ApplicationStatusRejected
		if req.Decision == dto.DecisionApprove {
			status = models.ApplicationStatusApproved
		}
		note := optionalString(req.AdminNote)
		now := time.Now().UTC()
		if err := s.apps.Resolve(ctx, app.ID, status, note, adminID, now); err != nil {
			if errors.Is(err, repository.ErrNotPending) {
				return appErrors.Clone(appErrors.ErrAlreadyDecided, "application already decided")
			}
			return internalError(err, "failed to resolve change application")
		}
		app.Status = status
		app.AdminNote = note
		app.DecidedBy = &adminID
		app.DecidedAt = &now
		outcome = &models.ApplicationOutcome{Application: *app}

		if status != models.ApplicationStatusApproved {
			return nil
		}
		touchedRooms, err = s.rematch(ctx, app, outcome)
		return err
	})
	s.metrics.RecordAllocation("change_"+req.Decision, allocationOutcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	if touchedRooms {
		s.cache.Invalidate(ctx, availabilityCachePattern)
	}
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionChangeDecide,
		Resource:   "change_application",
		ResourceID: &outcome.Application.ID,
		NewValues:  auditPayload(outcome),
	})
	return outcome, nil
}

// rematch applies the approved change to the profile and re-houses the student.
func (s *ChangeApplicationService) rematch(ctx context.Context, app *models.ChangeApplication, outcome *models.ApplicationOutcome) (bool, error) {
	profile, err := s.profiles.FindByUserForUpdate(ctx, app.UserID)
	if err != nil {
		if isNotFound(err) {
			s.logger.Warn("approved change for student without preferences", zap.String("user_id", app.UserID))
			return false, nil
		}
		return false, internalError(err, "failed to load applicant profile")
	}

	s.applyChange(profile, app)
	if _, err := s.profiles.UpsertPreferences(ctx, profile); err != nil {
		return false, internalError(err, "failed to update applicant preferences")
	}

	hadRoom := profile.IsAssigned()
	if err := s.release(ctx, profile); err != nil {
		return false, err
	}
	room, err := s.place(ctx, profile)
	if err != nil {
		return false, err
	}

	outcome.Rematched = room != nil
	outcome.ProfileStatus = profile.Status
	if room != nil {
		roomID := room.ID
		outcome.AssignedRoomID = &roomID
		s.logger.Info("student re-matched after change approval",
			zap.String("user_id", app.UserID), zap.String("room_id", roomID))
	} else {
		s.logger.Info("no room after change approval; student left pending", zap.String("user_id", app.UserID))
	}
	return hadRoom || room != nil, nil
}

func (s *ChangeApplicationService) applyChange(profile *models.StudentProfile, app *models.ChangeApplication) {
	switch app.Type {
	case models.ChangeTypeBedType:
		if app.DesiredSeater != nil {
			profile.PreferredSeater = *app.DesiredSeater
		}
		if app.DesiredAC != nil {
			profile.PreferredAC = *app.DesiredAC
		}
	case models.ChangeTypeHostel:
		if app.DesiredHostel == nil {
			return
		}
		profile.PreferredHostels = models.HostelRefs{*app.DesiredHostel}
		if app.DesiredHostel.IsNumber() {
			block := s.catalog.BlockFor(app.DesiredHostel.Number())
			profile.PreferredBlock = &block
		}
	}
}

// List returns applications newest first.
func (s *ChangeApplicationService) List(ctx context.Context, query dto.ApplicationQuery) ([]models.ChangeApplication, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application filter")
	}
	filter := models.ApplicationFilter{UserID: query.UserID, Limit: query.Limit, Offset: query.Offset}
	if query.Status != "" {
		status := models.ApplicationStatus(query.Status)
		filter.Status = &status
	}
	apps, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list change applications")
	}
	return apps, nil
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
