package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/enrollment-backend/internal/model"
	"github.com/stemsi/enrollment-backend/internal/port"
)

// StudentExists reports whether a student with the given ID exists.
func (s *Store) StudentExists(ctx context.Context, id int) (bool, error) {
	var exists bool
	err := s.sqlDB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM students WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check student: %w", err)
	}
	return exists, nil
}

// GetStudent retrieves a student by ID.
func (s *Store) GetStudent(ctx context.Context, id int) (*model.Student, error) {
	var (
		st        model.Student
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM students WHERE id = ?`, id,
	).Scan(&st.ID, &st.Name, &st.Email, &createdAt)
	if err != nil {
		return nil, mapError(err)
	}
	st.CreatedAt = fromMillis(createdAt)
	return &st, nil
}

// ListStudents returns all students ordered by name.
func (s *Store) ListStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, name, email, created_at FROM students ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	students := []model.Student{}
	for rows.Next() {
		var (
			st        model.Student
			createdAt int64
		)
		if err := rows.Scan(&st.ID, &st.Name, &st.Email, &createdAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		st.CreatedAt = fromMillis(createdAt)
		students = append(students, st)
	}
	return students, rows.Err()
}

// CreateStudent inserts a new student. A taken email yields port.ErrAlreadyExists.
func (s *Store) CreateStudent(ctx context.Context, st *model.Student) error {
	createdAt := time.Now().UTC()
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO students (name, email, created_at) VALUES (?, ?, ?)`,
		st.Name, st.Email, toMillis(createdAt),
	)
	if err != nil {
		return mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read student id: %w", err)
	}
	st.ID = int(id)
	st.CreatedAt = fromMillis(toMillis(createdAt))
	return nil
}

// DeleteStudent removes a student and their registrations, bumping the
// version of every course that loses a seat.
func (s *Store) DeleteStudent(ctx context.Context, id int) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE courses SET version = version + 1
		 WHERE id IN (SELECT course_id FROM registrations WHERE student_id = ?)`, id,
	); err != nil {
		return fmt.Errorf("bump course versions: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return port.ErrRecordNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
