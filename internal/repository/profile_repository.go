package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
)

const profileColumns = `id, user_id, food_preference, preferred_seater, preferred_ac, preferred_hostels, preferred_block,
	want_large_dining AS "amenities.large_dining", want_extra_facilities AS "amenities.extra_facilities",
	assigned_room_id, status, created_at, updated_at`

// ProfileRepository persists student preference profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByUser fetches the profile of a student.
func (r *ProfileRepository) FindByUser(ctx context.Context, userID string) (*models.StudentProfile, error) {
	return r.findByUser(ctx, userID, "")
}

// FindByUserForUpdate fetches and row-locks the profile. It must run inside a transaction.
func (r *ProfileRepository) FindByUserForUpdate(ctx context.Context, userID string) (*models.StudentProfile, error) {
	return r.findByUser(ctx, userID, " FOR UPDATE")
}

func (r *ProfileRepository) findByUser(ctx context.Context, userID, lock string) (*models.StudentProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM student_profiles WHERE user_id = $1` + lock
	var profile models.StudentProfile
	if err := conn(ctx, r.db).GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &profile, nil
}

// UpsertPreferences creates the profile or overwrites its preferences,
// leaving any assignment untouched.
func (r *ProfileRepository) UpsertPreferences(ctx context.Context, profile *models.StudentProfile) (*models.StudentProfile, error) {
	now := time.Now().UTC()
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	query := `INSERT INTO student_profiles
	(id, user_id, food_preference, preferred_seater, preferred_ac, preferred_hostels, preferred_block,
	 want_large_dining, want_extra_facilities, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10, $10)
	ON CONFLICT (user_id) DO UPDATE SET food_preference = EXCLUDED.food_preference,
		preferred_seater = EXCLUDED.preferred_seater,
		preferred_ac = EXCLUDED.preferred_ac,
		preferred_hostels = EXCLUDED.preferred_hostels,
		preferred_block = EXCLUDED.preferred_block,
		want_large_dining = EXCLUDED.want_large_dining,
		want_extra_facilities = EXCLUDED.want_extra_facilities,
		updated_at = EXCLUDED.updated_at
	RETURNING ` + profileColumns

	var saved models.StudentProfile
	err := conn(ctx, r.db).GetContext(ctx, &saved, query,
		profile.ID, profile.UserID, profile.FoodPreference, profile.PreferredSeater, profile.PreferredAC,
		profile.PreferredHostels, profile.PreferredBlock,
		profile.Amenities.LargeDining, profile.Amenities.ExtraFacilities, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return &saved, nil
}

// SetAssignment points the profile at a room (or clears it) and sets the status.
func (r *ProfileRepository) SetAssignment(ctx context.Context, userID string, roomID *string, status models.ProfileStatus) error {
	const query = `UPDATE student_profiles SET assigned_room_id = $2, status = $3, updated_at = $4 WHERE user_id = $1`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, userID, roomID, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set profile assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check profile assignment rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus changes the status of an assigned profile.
func (r *ProfileRepository) UpdateStatus(ctx context.Context, userID string, status models.ProfileStatus) error {
	const query = `UPDATE student_profiles SET status = $2, updated_at = $3 WHERE user_id = $1 AND assigned_room_id IS NOT NULL`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, userID, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update profile status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check profile status rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPending returns unassigned pending profiles in creation order.
func (r *ProfileRepository) ListPending(ctx context.Context) ([]models.StudentProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM student_profiles
	WHERE status = 'pending' AND assigned_room_id IS NULL
	ORDER BY created_at ASC, id ASC`
	profiles := []models.StudentProfile{}
	if err := conn(ctx, r.db).SelectContext(ctx, &profiles, query); err != nil {
		return nil, fmt.Errorf("list pending profiles: %w", err)
	}
	return profiles, nil
}

// Delete removes the profile of a student.
func (r *ProfileRepository) Delete(ctx context.Context, userID string) error {
	const query = `DELETE FROM student_profiles WHERE user_id = $1`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check profile delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus returns the number of profiles per status.
func (r *ProfileRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	const query = `SELECT status, COUNT(*) AS total FROM student_profiles GROUP BY status`
	var rows []struct {
		Status string `db:"status"`
		Total  int    `db:"total"`
	}
	if err := conn(ctx, r.db).SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count profiles by status: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
