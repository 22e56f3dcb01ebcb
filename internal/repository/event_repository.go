package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/enrollment-backend/internal/model"
)

// EventRepository persists the registration audit trail.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// AppendEvent stores one registration event.
func (r *EventRepository) AppendEvent(ctx context.Context, e model.RegistrationEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO registration_events
		 (event_type, registration_id, student_id, course_id, occupied_seats, capacity, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(e.Type), e.RegistrationID, e.StudentID, e.CourseID, e.OccupiedSeats, e.Capacity, e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert registration event: %w", err)
	}
	return nil
}

// PurgeEventsBefore deletes events that occurred before cutoff and returns how many were removed.
func (r *EventRepository) PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM registration_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge registration events: %w", err)
	}
	return tag.RowsAffected(), nil
}
