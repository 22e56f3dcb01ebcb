package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/enrollment-backend/internal/model"
	"github.com/stemsi/enrollment-backend/internal/port"
)

const courseColumns = `id, name, capacity, opens_at, closes_at, time_zone, version, created_at`

// CourseRepository handles course data access.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// FetchCourse retrieves a course, version included.
func (r *CourseRepository) FetchCourse(ctx context.Context, id int) (*model.Course, error) {
	c := &model.Course{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Capacity, &c.OpensAt, &c.ClosesAt, &c.TimeZone, &c.Version, &c.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return c, nil
}

// CourseExists reports whether a course with the given ID exists.
func (r *CourseRepository) CourseExists(ctx context.Context, id int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM courses WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check course: %w", err)
	}
	return exists, nil
}

// CreateCourse inserts a new course with version 0.
func (r *CourseRepository) CreateCourse(ctx context.Context, c *model.Course) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO courses (name, capacity, opens_at, closes_at, time_zone)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, version, created_at`,
		c.Name, c.Capacity, c.OpensAt, c.ClosesAt, c.TimeZone,
	).Scan(&c.ID, &c.Version, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert course: %w", mapError(err))
	}
	return nil
}

// ListCourses returns every course with its occupied seat count.
// WindowState is left for the caller to fill in.
func (r *CourseRepository) ListCourses(ctx context.Context) ([]model.CourseSummary, error) {
	rows, err := r.pool.Query(ctx,
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
		var s model.CourseSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Capacity, &s.OpensAt, &s.ClosesAt, &s.TimeZone,
			&s.Version, &s.CreatedAt, &s.OccupiedSeats); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, s)
	}
	return courses, rows.Err()
}

// DeleteCourse removes a course and, by cascade, its registrations.
func (r *CourseRepository) DeleteCourse(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return port.ErrRecordNotFound
	}
	return nil
}
