package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/enrollment-backend/internal/model"
	"github.com/stemsi/enrollment-backend/internal/port"
)

// CountRegistrations returns the number of seats taken in a course.
func (s *Store) CountRegistrations(ctx context.Context, courseID int) (int, error) {
	var n int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations WHERE course_id = ?`, courseID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

// ExistsRegistration reports whether the student already holds a seat in the course.
func (s *Store) ExistsRegistration(ctx context.Context, studentID, courseID int) (bool, error) {
	var exists bool
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM registrations WHERE student_id = ? AND course_id = ?)`,
		studentID, courseID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return exists, nil
}

// FetchRegistration retrieves a registration by ID.
func (s *Store) FetchRegistration(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	var (
		reg          model.Registration
		rawID        string
		registeredAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, student_id, course_id, registered_at FROM registrations WHERE id = ?`, id.String(),
	).Scan(&rawID, &reg.StudentID, &reg.CourseID, &registeredAt)
	if err != nil {
		return nil, mapError(err)
	}
	if reg.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("parse registration id: %w", err)
	}
	reg.RegisteredAt = fromMillis(registeredAt)
	return &reg, nil
}

// bumpVersion advances the course version inside tx if it still equals expected.
func bumpVersion(ctx context.Context, tx *sql.Tx, courseID int, expected int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE courses SET version = version + 1 WHERE id = ? AND version = ?`,
		courseID, expected,
	)
	if err != nil {
		return fmt.Errorf("bump course version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump course version: %w", err)
	}
	if n == 0 {
		return port.ErrStaleVersion
	}
	return nil
}

// CommitRegistration bumps the course version from expectedVersion and
// inserts reg in one transaction. A moved version yields port.ErrStaleVersion
// and nothing is written.
func (s *Store) CommitRegistration(ctx context.Context, reg model.Registration, expectedVersion int64) (*model.Registration, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := bumpVersion(ctx, tx, reg.CourseID, expectedVersion); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO registrations (id, student_id, course_id, registered_at) VALUES (?, ?, ?, ?)`,
		reg.ID.String(), reg.StudentID, reg.CourseID, toMillis(reg.RegisteredAt),
	); err != nil {
		return nil, fmt.Errorf("insert registration: %w", mapError(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	reg.RegisteredAt = fromMillis(toMillis(reg.RegisteredAt))
	return &reg, nil
}

// CommitCancellation deletes reg and bumps the course version from
// expectedVersion in one transaction.
func (s *Store) CommitCancellation(ctx context.Context, reg model.Registration, expectedVersion int64) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := bumpVersion(ctx, tx, reg.CourseID, expectedVersion); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM registrations WHERE id = ?`, reg.ID.String())
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return port.ErrRecordNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const registrationDetailQuery = `
	SELECT r.id, r.student_id, r.course_id, r.registered_at, s.name, c.name
	FROM registrations r
	JOIN students s ON s.id = r.student_id
	JOIN courses c ON c.id = r.course_id`

// ListRegistrations returns every registration with student and course names.
func (s *Store) ListRegistrations(ctx context.Context) ([]model.RegistrationDetail, error) {
	return s.listDetails(ctx, registrationDetailQuery+` ORDER BY r.registered_at, r.id`)
}

// ListCourseRegistrations returns the registrations of one course in commit order.
func (s *Store) ListCourseRegistrations(ctx context.Context, courseID int) ([]model.RegistrationDetail, error) {
	return s.listDetails(ctx, registrationDetailQuery+` WHERE r.course_id = ? ORDER BY r.registered_at, r.id`, courseID)
}

func (s *Store) listDetails(ctx context.Context, query string, args ...any) ([]model.RegistrationDetail, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	details := []model.RegistrationDetail{}
	for rows.Next() {
		var (
			d            model.RegistrationDetail
			rawID        string
			registeredAt int64
		)
		if err := rows.Scan(&rawID, &d.StudentID, &d.CourseID, &registeredAt, &d.StudentName, &d.CourseName); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		if d.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("parse registration id: %w", err)
		}
		d.RegisteredAt = fromMillis(registeredAt)
		details = append(details, d)
	}
	return details, rows.Err()
}
