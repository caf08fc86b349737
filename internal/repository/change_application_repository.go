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

const applicationColumns = `id, user_id, name, registration_number, reason, type, desired_seater, desired_ac, desired_hostel,
	status, admin_note, decided_by, decided_at, created_at`

// ChangeApplicationRepository persists change applications.
type ChangeApplicationRepository struct {
	db *sqlx.DB
}

// NewChangeApplicationRepository constructs the repository.
func NewChangeApplicationRepository(db *sqlx.DB) *ChangeApplicationRepository {
	return &ChangeApplicationRepository{db: db}
}

// Create inserts a new application.
func (r *ChangeApplicationRepository) Create(ctx context.Context, app *models.ChangeApplication) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.Status == "" {
		app.Status = models.ApplicationStatusPending
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO change_applications
	(id, user_id, name, registration_number, reason, type, desired_seater, desired_ac, desired_hostel, status, admin_note, decided_by, decided_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		app.ID, app.UserID, app.Name, app.RegistrationNumber, app.Reason, app.Type,
		app.DesiredSeater, app.DesiredAC, app.DesiredHostel, app.Status, app.AdminNote,
		app.DecidedBy, app.DecidedAt, app.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create change application: %w", err)
	}
	return nil
}

// GetByID fetches an application.
func (r *ChangeApplicationRepository) GetByID(ctx context.Context, id string) (*models.ChangeApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM change_applications WHERE id = $1`
	var app models.ChangeApplication
	if err := conn(ctx, r.db).GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// List returns applications newest first.
func (r *ChangeApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ChangeApplication, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + applicationColumns + ` FROM change_applications`)
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")
	builder.WriteString(limitClause(filter.Limit, filter.Offset))

	apps := []models.ChangeApplication{}
	if err := conn(ctx, r.db).SelectContext(ctx, &apps, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list change applications: %w", err)
	}
	return apps, nil
}

// Resolve records a decision on a pending application. ErrNotPending is
// returned when it was already decided.
func (r *ChangeApplicationRepository) Resolve(ctx context.Context, id string, status models.ApplicationStatus, note *string, decidedBy string, decidedAt time.Time) error {
	const query = `UPDATE change_applications SET status = $2, admin_note = $3, decided_by = $4, decided_at = $5
	WHERE id = $1 AND status = 'pending'`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, id, status, note, decidedBy, decidedAt)
	if err != nil {
		return fmt.Errorf("resolve change application: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check application resolve rows: %w", err)
	}
	if rows == 0 {
		return ErrNotPending
	}
	return nil
}

// CountPending returns the number of undecided applications.
func (r *ChangeApplicationRepository) CountPending(ctx context.Context) (int, error) {
	var total int
	if err := conn(ctx, r.db).GetContext(ctx, &total, `SELECT COUNT(*) FROM change_applications WHERE status = 'pending'`); err != nil {
		return 0, fmt.Errorf("count pending applications: %w", err)
	}
	return total, nil
}
