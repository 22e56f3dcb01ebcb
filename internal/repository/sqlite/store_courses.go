package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/enrollment-backend/internal/model"
	"github.com/stemsi/enrollment-backend/internal/port"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner, extra ...any) (model.Course, error) {
	var (
		c                            model.Course
		opensAt, closesAt, createdAt int64
	)
	dest := append([]any{&c.ID, &c.Name, &c.Capacity, &opensAt, &closesAt, &c.TimeZone, &c.Version, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.Course{}, err
	}
	c.OpensAt = fromMillis(opensAt)
	c.ClosesAt = fromMillis(closesAt)
	c.CreatedAt = fromMillis(createdAt)
	return c, nil
}

// FetchCourse retrieves a course, version included.
func (s *Store) FetchCourse(ctx context.Context, id int) (*model.Course, error) {
	c, err := scanCourse(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, capacity, opens_at, closes_at, time_zone, version, created_at
		 FROM courses WHERE id = ?`, id,
	))
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

// CourseExists reports whether a course with the given ID exists.
func (s *Store) CourseExists(ctx context.Context, id int) (bool, error) {
	var exists bool
	err := s.sqlDB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM courses WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check course: %w", err)
	}
	return exists, nil
}

// CreateCourse inserts a new course with version 0.
func (s *Store) CreateCourse(ctx context.Context, c *model.Course) error {
	createdAt := time.Now().UTC()
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO courses (name, capacity, opens_at, closes_at, time_zone, version, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		c.Name, c.Capacity, toMillis(c.OpensAt), toMillis(c.ClosesAt), c.TimeZone, toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("insert course: %w", mapError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read course id: %w", err)
	}
	c.ID = int(id)
	c.Version = 0
	c.CreatedAt = fromMillis(toMillis(createdAt))
	return nil
}

// ListCourses returns every course with its occupied seat count.
// WindowState is left for the caller to fill in.
func (s *Store) ListCourses(ctx context.Context) ([]model.CourseSummary, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT c.id, c.name, c.capacity, c.opens_at, c.closes_at, c.time_zone, c.version, c.created_at,
		        COUNT(r.id)
		 FROM courses c
		 LEFT JOIN registrations r ON r.course_id = c.id
		 GROUP BY c.id
		 ORDER BY c.opens_at, c.id`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	courses := []model.CourseSummary{}
	for rows.Next() {
		var occupied int
		c, err := scanCourse(rows, &occupied)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, model.CourseSummary{Course: c, OccupiedSeats: occupied})
	}
	return courses, rows.Err()
}

// DeleteCourse removes a course and, by cascade, its registrations.
func (s *Store) DeleteCourse(ctx context.Context, id int) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return port.ErrRecordNotFound
	}
	return nil
}
