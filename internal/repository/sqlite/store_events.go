package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/enrollment-backend/internal/model"
)

// AppendEvent stores one registration event.
func (s *Store) AppendEvent(ctx context.Context, e model.RegistrationEvent) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO registration_events
		 (event_type, registration_id, student_id, course_id, occupied_seats, capacity, occurred_at, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.Type), e.RegistrationID.String(), e.StudentID, e.CourseID, e.OccupiedSeats, e.Capacity,
		toMillis(e.OccurredAt), toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert registration event: %w", err)
	}
	return nil
}

// PurgeEventsBefore deletes events that occurred before cutoff and returns how many were removed.
func (s *Store) PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM registration_events WHERE occurred_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge registration events: %w", err)
	}
	return res.RowsAffected()
}

// CountEvents returns the number of stored events of one course.
func (s *Store) CountEvents(ctx context.Context, courseID int) (int, error) {
	var n int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM registration_events WHERE course_id = ?`, courseID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count registration events: %w", err)
	}
	return n, nil
}
