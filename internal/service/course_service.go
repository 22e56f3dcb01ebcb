package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stemsi/enrollment-backend/internal/admission"
	"github.com/stemsi/enrollment-backend/internal/model"
	"github.com/stemsi/enrollment-backend/internal/port"
)

// AdmissionClock supplies the instant and zone used for window evaluation.
// *admission.Controller satisfies it, so listings and admission agree on "now".
type AdmissionClock interface {
	Now() time.Time
	Location() *time.Location
}

// CourseService handles course business logic.
type CourseService struct {
	courses       port.CourseStore
	registrations port.RegistrationStore
	clock         AdmissionClock
}

// NewCourseService creates a new CourseService.
func NewCourseService(courses port.CourseStore, registrations port.RegistrationStore, clock AdmissionClock) *CourseService {
	return &CourseService{courses: courses, registrations: registrations, clock: clock}
}

// Create validates the window and stores a new course stamped with the governing zone.
func (s *CourseService) Create(ctx context.Context, req model.CreateCourseRequest) (*model.Course, error) {
	loc := s.clock.Location()

	opensAt, err := admission.ParseInstant(strings.TrimSpace(req.OpensAt), loc)
	if err != nil {
		return nil, fmt.Errorf("%w: opens_at", ErrInvalidInstant)
	}
	closesAt, err := admission.ParseInstant(strings.TrimSpace(req.ClosesAt), loc)
	if err != nil {
		return nil, fmt.Errorf("%w: closes_at", ErrInvalidInstant)
	}
	if !closesAt.After(opensAt) {
		return nil, ErrInvalidWindow
	}

	course := &model.Course{
		Name:     strings.TrimSpace(req.Name),
		Capacity: req.Capacity,
		OpensAt:  opensAt.In(loc),
		ClosesAt: closesAt.In(loc),
		TimeZone: loc.String(),
	}
	if err := s.courses.CreateCourse(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

// Get returns one course with its current occupancy and window state.
func (s *CourseService) Get(ctx context.Context, id int) (*model.CourseSummary, error) {
	course, err := s.courses.FetchCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	occupied, err := s.registrations.CountRegistrations(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.CourseSummary{
		Course:        *s.localize(*course),
		OccupiedSeats: occupied,
		WindowState:   admission.WindowStateAt(course, s.clock.Now()),
	}, nil
}

// List returns every course with occupancy and window state.
func (s *CourseService) List(ctx context.Context) ([]model.CourseSummary, error) {
	courses, err := s.courses.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	for i := range courses {
		courses[i].Course = *s.localize(courses[i].Course)
		courses[i].WindowState = admission.WindowStateAt(&courses[i].Course, now)
	}
	return courses, nil
}

// ListAvailable returns the courses a student could register for right now:
// window open and at least one free seat.
func (s *CourseService) ListAvailable(ctx context.Context) ([]model.CourseSummary, error) {
	courses, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	available := make([]model.CourseSummary, 0, len(courses))
	for _, c := range courses {
		if c.WindowState == model.WindowOpen && c.OccupiedSeats < c.Capacity {
			available = append(available, c)
		}
	}
	return available, nil
}

// Delete removes a course and its registrations.
func (s *CourseService) Delete(ctx context.Context, id int) error {
	return s.courses.DeleteCourse(ctx, id)
}

// ListRegistrations returns the registrations of one course.
func (s *CourseService) ListRegistrations(ctx context.Context, courseID int) ([]model.RegistrationDetail, error) {
	exists, err := s.courses.CourseExists(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, port.ErrRecordNotFound
	}
	regs, err := s.registrations.ListCourseRegistrations(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if regs == nil {
		regs = []model.RegistrationDetail{}
	}
	return regs, nil
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, port.ErrRecordNotFound)
}

// localize renders the window instants in the governing zone.
func (s *CourseService) localize(c model.Course) *model.Course {
	loc := s.clock.Location()
	c.OpensAt = c.OpensAt.In(loc)
	c.ClosesAt = c.ClosesAt.In(loc)
	return &c
}
