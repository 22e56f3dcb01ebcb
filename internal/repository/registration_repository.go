package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/enrollment-backend/internal/model"
	"github.com/stemsi/enrollment-backend/internal/port"
)

// RegistrationRepository is the PostgreSQL registration ledger.
type RegistrationRepository struct {
	pool *pgxpool.Pool
}

// NewRegistrationRepository creates a new RegistrationRepository.
func NewRegistrationRepository(pool *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{pool: pool}
}

// CountRegistrations returns the number of seats taken in a course.
func (r *RegistrationRepository) CountRegistrations(ctx context.Context, courseID int) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE course_id = $1`, courseID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

// ExistsRegistration reports whether the student already holds a seat in the course.
func (r *RegistrationRepository) ExistsRegistration(ctx context.Context, studentID, courseID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM registrations WHERE student_id = $1 AND course_id = $2)`,
		studentID, courseID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return exists, nil
}

// FetchRegistration retrieves a registration by ID.
func (r *RegistrationRepository) FetchRegistration(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	reg := &model.Registration{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, student_id, course_id, registered_at FROM registrations WHERE id = $1`, id,
	).Scan(&reg.ID, &reg.StudentID, &reg.CourseID, &reg.RegisteredAt)
	if err != nil {
		return nil, mapError(err)
	}
	return reg, nil
}

// CommitRegistration bumps the course version from expectedVersion and
// inserts reg in one transaction. A moved version yields port.ErrStaleVersion
// and nothing is written.
func (r *RegistrationRepository) CommitRegistration(ctx context.Context, reg model.Registration, expectedVersion int64) (*model.Registration, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE courses SET version = version + 1 WHERE id = $1 AND version = $2`,
		reg.CourseID, expectedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("bump course version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, port.ErrStaleVersion
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO registrations (id, student_id, course_id, registered_at) VALUES ($1, $2, $3, $4)`,
		reg.ID, reg.StudentID, reg.CourseID, reg.RegisteredAt,
	); err != nil {
		return nil, fmt.Errorf("insert registration: %w", mapError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &reg, nil
}

// CommitCancellation deletes reg and bumps the course version from
// expectedVersion in one transaction.
func (r *RegistrationRepository) CommitCancellation(ctx context.Context, reg model.Registration, expectedVersion int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE courses SET version = version + 1 WHERE id = $1 AND version = $2`,
		reg.CourseID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("bump course version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return port.ErrStaleVersion
	}

	tag, err = tx.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, reg.ID)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return port.ErrRecordNotFound
	}

	if err := tx.Commit(ctx); err != nil {
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
func (r *RegistrationRepository) ListRegistrations(ctx context.Context) ([]model.RegistrationDetail, error) {
	return r.listDetails(ctx, registrationDetailQuery+` ORDER BY r.registered_at, r.id`)
}

// ListCourseRegistrations returns the registrations of one course in commit order.
func (r *RegistrationRepository) ListCourseRegistrations(ctx context.Context, courseID int) ([]model.RegistrationDetail, error) {
	return r.listDetails(ctx, registrationDetailQuery+` WHERE r.course_id = $1 ORDER BY r.registered_at, r.id`, courseID)
}

func (r *RegistrationRepository) listDetails(ctx context.Context, query string, args ...interface{}) ([]model.RegistrationDetail, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	details := []model.RegistrationDetail{}
	for rows.Next() {
		var d model.RegistrationDetail
		if err := rows.Scan(&d.ID, &d.StudentID, &d.CourseID, &d.RegisteredAt, &d.StudentName, &d.CourseName); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		details = append(details, d)
	}
	return details, rows.Err()
}
