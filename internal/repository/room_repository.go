package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
)

const roomColumns = `id, hostel_number, hostel_name, block_type, seater, ac,
	large_dining AS "amenities.large_dining", extra_facilities AS "amenities.extra_facilities",
	capacity, occupied, room_label, created_at, updated_at`

// pqCheckViolation is the SQLSTATE raised when a CHECK constraint fails.
const pqCheckViolation = "23514"

// ErrCapacityBelowOccupancy is returned when an upsert would shrink a room below its occupant count.
var ErrCapacityBelowOccupancy = errors.New("capacity below current occupancy")

// RoomRepository persists the room catalog and its occupants.
type RoomRepository struct {
	db *sqlx.DB
	tx *TxManager
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db, tx: NewTxManager(db)}
}

// FindByID fetches a room with its occupants.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`
	var room models.Room
	if err := conn(ctx, r.db).GetContext(ctx, &room, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find room: %w", err)
	}
	occupants, err := r.ListOccupants(ctx, id)
	if err != nil {
		return nil, err
	}
	room.Occupants = occupants
	return &room, nil
}

// FindCandidates returns every room satisfying the filter in insertion order.
// Capacity is deliberately not part of the query; callers pick the first with space.
func (r *RoomRepository) FindCandidates(ctx context.Context, filter models.CandidateFilter) ([]models.Room, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + roomColumns + ` FROM rooms WHERE seater = $1 AND ac = $2`)
	args := []interface{}{filter.Seater, filter.AC}

	if filter.BlockType != nil {
		args = append(args, *filter.BlockType)
		fmt.Fprintf(&builder, " AND block_type = $%d", len(args))
	}
	if filter.LargeDining {
		builder.WriteString(" AND large_dining = TRUE")
	}
	if filter.ExtraFacilities {
		builder.WriteString(" AND extra_facilities = TRUE")
	}

	switch {
	case len(filter.HostelNumbers) > 0 && len(filter.HostelNames) > 0:
		args = append(args, pq.Array(toInt64s(filter.HostelNumbers)), pq.Array(filter.HostelNames))
		fmt.Fprintf(&builder, " AND (hostel_number = ANY($%d) OR hostel_name = ANY($%d))", len(args)-1, len(args))
	case len(filter.HostelNumbers) > 0:
		args = append(args, pq.Array(toInt64s(filter.HostelNumbers)))
		fmt.Fprintf(&builder, " AND hostel_number = ANY($%d)", len(args))
	case len(filter.HostelNames) > 0:
		args = append(args, pq.Array(filter.HostelNames))
		fmt.Fprintf(&builder, " AND hostel_name = ANY($%d)", len(args))
	}
	builder.WriteString(" ORDER BY created_at ASC, id ASC")

	var rooms []models.Room
	if err := conn(ctx, r.db).SelectContext(ctx, &rooms, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("find candidate rooms: %w", err)
	}
	return rooms, nil
}

// AddOccupant appends a student to a room only if a bed is free.
// The counter bump and occupant insert commit together.
func (r *RoomRepository) AddOccupant(ctx context.Context, roomID, studentID string) error {
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.db)
		const reserve = `UPDATE rooms SET occupied = occupied + 1, updated_at = $2 WHERE id = $1 AND occupied < capacity`
		result, err := q.ExecContext(ctx, reserve, roomID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("reserve room bed: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check room reserve rows: %w", err)
		}
		if rows == 0 {
			return ErrRoomFull
		}

		const insert = `INSERT INTO room_occupants (room_id, student_id, assigned_at) VALUES ($1, $2, $3)`
		if _, err := q.ExecContext(ctx, insert, roomID, studentID, time.Now().UTC()); err != nil {
			return fmt.Errorf("insert room occupant: %w", err)
		}
		return nil
	})
}

// RemoveOccupant drops a student from a room and frees the bed.
func (r *RoomRepository) RemoveOccupant(ctx context.Context, roomID, studentID string) error {
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.db)
		const remove = `DELETE FROM room_occupants WHERE room_id = $1 AND student_id = $2`
		result, err := q.ExecContext(ctx, remove, roomID, studentID)
		if err != nil {
			return fmt.Errorf("delete room occupant: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check occupant delete rows: %w", err)
		}
		if rows == 0 {
			return ErrNotOccupant
		}

		const release = `UPDATE rooms SET occupied = occupied - 1, updated_at = $2 WHERE id = $1 AND occupied > 0`
		if _, err := q.ExecContext(ctx, release, roomID, time.Now().UTC()); err != nil {
			return fmt.Errorf("release room bed: %w", err)
		}
		return nil
	})
}

// ListOccupants returns the student ids in a room in arrival order.
func (r *RoomRepository) ListOccupants(ctx context.Context, roomID string) ([]string, error) {
	const query = `SELECT student_id FROM room_occupants WHERE room_id = $1 ORDER BY assigned_at ASC, student_id ASC`
	occupants := []string{}
	if err := conn(ctx, r.db).SelectContext(ctx, &occupants, query, roomID); err != nil {
		return nil, fmt.Errorf("list room occupants: %w", err)
	}
	return occupants, nil
}

// Upsert creates or updates a room keyed by hostel identifier, seater, ac and label.
// Occupancy is never touched by an upsert.
func (r *RoomRepository) Upsert(ctx context.Context, room *models.Room) (*models.Room, error) {
	now := time.Now().UTC()
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	query := `INSERT INTO rooms
	(id, hostel_number, hostel_name, block_type, seater, ac, large_dining, extra_facilities, capacity, occupied, room_label, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11, $11)
	ON CONFLICT ((COALESCE(hostel_number, 0)), (COALESCE(hostel_name, '')), seater, ac, (COALESCE(room_label, '')))
	DO UPDATE SET block_type = EXCLUDED.block_type,
		large_dining = EXCLUDED.large_dining,
		extra_facilities = EXCLUDED.extra_facilities,
		capacity = EXCLUDED.capacity,
		updated_at = EXCLUDED.updated_at
	RETURNING ` + roomColumns

	var saved models.Room
	err := conn(ctx, r.db).GetContext(ctx, &saved, query,
		room.ID, room.HostelNumber, room.HostelName, room.BlockType, room.Seater, room.AC,
		room.Amenities.LargeDining, room.Amenities.ExtraFacilities, room.Capacity, room.RoomLabel, now,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqCheckViolation {
			return nil, ErrCapacityBelowOccupancy
		}
		return nil, fmt.Errorf("upsert room: %w", err)
	}
	return &saved, nil
}

// ListAvailability projects free capacity for rooms matching the filter.
func (r *RoomRepository) ListAvailability(ctx context.Context, filter models.RoomFilter) ([]models.RoomAvailability, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT id, hostel_number, hostel_name, block_type, seater, ac, capacity, occupied,
	GREATEST(capacity - occupied, 0) AS available,
	large_dining AS "amenities.large_dining", extra_facilities AS "amenities.extra_facilities", room_label
	FROM rooms`)

	args := make([]interface{}, 0, 5)
	conditions := make([]string, 0, 5)
	if filter.HostelNumber != nil {
		args = append(args, *filter.HostelNumber)
		conditions = append(conditions, fmt.Sprintf("hostel_number = $%d", len(args)))
	}
	if filter.HostelName != nil {
		args = append(args, *filter.HostelName)
		conditions = append(conditions, fmt.Sprintf("hostel_name = $%d", len(args)))
	}
	if filter.BlockType != nil {
		args = append(args, *filter.BlockType)
		conditions = append(conditions, fmt.Sprintf("block_type = $%d", len(args)))
	}
	if filter.Seater != nil {
		args = append(args, *filter.Seater)
		conditions = append(conditions, fmt.Sprintf("seater = $%d", len(args)))
	}
	if filter.AC != nil {
		args = append(args, *filter.AC)
		conditions = append(conditions, fmt.Sprintf("ac = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at ASC, id ASC")

	items := []models.RoomAvailability{}
	if err := conn(ctx, r.db).SelectContext(ctx, &items, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list room availability: %w", err)
	}
	return items, nil
}

// OccupancyByBedType aggregates rooms, capacity and occupancy per (seater, ac).
func (r *RoomRepository) OccupancyByBedType(ctx context.Context) ([]models.OccupancyStats, error) {
	const query = `SELECT seater, ac, COUNT(*) AS rooms, COALESCE(SUM(capacity), 0) AS capacity, COALESCE(SUM(occupied), 0) AS occupied
	FROM rooms GROUP BY seater, ac ORDER BY seater ASC, ac ASC`
	stats := []models.OccupancyStats{}
	if err := conn(ctx, r.db).SelectContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("room occupancy stats: %w", err)
	}
	return stats, nil
}

func toInt64s(values []int) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}
