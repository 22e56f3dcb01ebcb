// Package admission decides whether a student may take a seat in a course
// and commits that decision without overselling.
//
// A registration is checked against the student, the course, the ledger and
// the course window, then committed with a conditional write on the course
// version. Losing a version race re-runs the ledger and window checks
// against fresh state, within a fixed attempt budget.
package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/enrollment-backend/internal/model"
	"github.com/stemsi/enrollment-backend/internal/port"
)

// Controller runs the admission protocol. It is safe for concurrent use and
// holds no locks; all coordination goes through the ledger's conditional commits.
type Controller struct {
	students port.StudentDirectory
	courses  port.CourseCatalog
	ledger   port.RegistrationLedger
	resolver *ConflictResolver

	clock       Clock
	loc         *time.Location
	maxAttempts int
	log         zerolog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the wall clock.
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithLocation sets the governing time zone used for window evaluation.
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithMaxAttempts sets the commit attempt budget.
func WithMaxAttempts(n int) Option {
	return func(c *Controller) { c.maxAttempts = n }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// NewController creates a Controller over the given collaborators.
func NewController(
	students port.StudentDirectory,
	courses port.CourseCatalog,
	ledger port.RegistrationLedger,
	opts ...Option,
) *Controller {
	c := &Controller{
		students:    students,
		courses:     courses,
		ledger:      ledger,
		clock:       SystemClock,
		loc:         time.UTC,
		maxAttempts: DefaultMaxAttempts,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "admission").Logger()
	c.resolver = NewConflictResolver(c.maxAttempts, c.log)
	return c
}

// MaxAttempts returns the commit attempt budget.
func (c *Controller) MaxAttempts() int { return c.resolver.MaxAttempts() }

// Location returns the governing time zone.
func (c *Controller) Location() *time.Location { return c.loc }

// Now returns the current instant in the governing time zone.
func (c *Controller) Now() time.Time { return c.clock.Now().In(c.loc) }

type subject struct {
	studentID int
	courseID  int
}

func (s subject) fail(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, StudentID: s.studentID, CourseID: s.courseID, Reason: reason, Err: err}
}

// Register admits studentID into courseID or returns an *Error describing why not.
func (c *Controller) Register(ctx context.Context, studentID, courseID int) (*model.Registration, error) {
	now := c.Now()
	subj := subject{studentID: studentID, courseID: courseID}
	log := c.log.With().Int("student_id", studentID).Int("course_id", courseID).Logger()

	exists, err := c.students.StudentExists(ctx, studentID)
	if err != nil {
		return nil, c.report(log, subj.fail(KindInfrastructure, "student lookup failed", err))
	}
	if !exists {
		return nil, c.report(log, subj.fail(KindNotFound, "student not found", nil))
	}

	course, err := c.courses.FetchCourse(ctx, courseID)
	if errors.Is(err, port.ErrRecordNotFound) {
		return nil, c.report(log, subj.fail(KindNotFound, "course not found", nil))
	}
	if err != nil {
		return nil, c.report(log, subj.fail(KindInfrastructure, "course lookup failed", err))
	}

	var committed *model.Registration
	err = c.resolver.Run(ctx, func(ctx context.Context, n int) error {
		if n > 1 {
			// The course record is re-read before the ledger so that any commit
			// landing in between makes course.Version stale.
			fresh, err := c.courses.FetchCourse(ctx, courseID)
			if errors.Is(err, port.ErrRecordNotFound) {
				return subj.fail(KindNotFound, "course not found", nil)
			}
			if err != nil {
				return subj.fail(KindInfrastructure, "course lookup failed", err)
			}
			course = fresh
		}

		if err := c.checkEligibility(ctx, subj, course, now); err != nil {
			return err
		}

		reg, err := c.ledger.CommitRegistration(ctx, model.Registration{
			ID:           uuid.New(),
			StudentID:    studentID,
			CourseID:     courseID,
			RegisteredAt: now,
		}, course.Version)
		switch {
		case err == nil:
			committed = reg
			return nil
		case errors.Is(err, port.ErrStaleVersion):
			return err
		case errors.Is(err, port.ErrAlreadyExists):
			return subj.fail(KindAlreadyRegistered, "student is already registered for this course", nil)
		case errors.Is(err, port.ErrRecordNotFound):
			return subj.fail(KindNotFound, "student or course was removed", nil)
		default:
			return subj.fail(KindInfrastructure, "commit failed", err)
		}
	})
	if err != nil {
		return nil, c.report(log, c.classify(subj, err))
	}

	log.Info().
		Str("registration_id", committed.ID.String()).
		Int64("course_version", course.Version+1).
		Msg("Registration committed")
	return committed, nil
}

// checkEligibility evaluates the duplicate, window and capacity preconditions.
// The course must have been read before this call.
func (c *Controller) checkEligibility(ctx context.Context, subj subject, course *model.Course, now time.Time) error {
	dup, err := c.ledger.ExistsRegistration(ctx, subj.studentID, subj.courseID)
	if err != nil {
		return subj.fail(KindInfrastructure, "duplicate check failed", err)
	}
	if dup {
		return subj.fail(KindAlreadyRegistered, "student is already registered for this course", nil)
	}

	if state := WindowStateAt(course, now); state != model.WindowOpen {
		const layout = "02.01.2006 15:04"
		return subj.fail(KindWindowClosed, fmt.Sprintf(
			"registration is open from %s to %s (%s), course is %s",
			course.OpensAt.In(c.loc).Format(layout),
			course.ClosesAt.In(c.loc).Format(layout),
			c.loc,
			state,
		), nil)
	}

	occupied, err := c.ledger.CountRegistrations(ctx, subj.courseID)
	if err != nil {
		return subj.fail(KindInfrastructure, "occupancy count failed", err)
	}
	if occupied >= course.Capacity {
		return subj.fail(KindCourseFull, fmt.Sprintf("all %d seats are taken", course.Capacity), nil)
	}
	return nil
}

// Cancel withdraws a registration. Cancellation changes occupancy, so it
// goes through the same versioned commit and retry budget as Register.
func (c *Controller) Cancel(ctx context.Context, registrationID uuid.UUID) (*model.Registration, error) {
	log := c.log.With().Str("registration_id", registrationID.String()).Logger()

	reg, err := c.ledger.FetchRegistration(ctx, registrationID)
	if errors.Is(err, port.ErrRecordNotFound) {
		return nil, c.report(log, &Error{Kind: KindNotFound, Reason: "registration not found"})
	}
	if err != nil {
		return nil, c.report(log, &Error{Kind: KindInfrastructure, Reason: "registration lookup failed", Err: err})
	}

	subj := subject{studentID: reg.StudentID, courseID: reg.CourseID}
	err = c.resolver.Run(ctx, func(ctx context.Context, _ int) error {
		course, err := c.courses.FetchCourse(ctx, reg.CourseID)
		if errors.Is(err, port.ErrRecordNotFound) {
			return subj.fail(KindNotFound, "course not found", nil)
		}
		if err != nil {
			return subj.fail(KindInfrastructure, "course lookup failed", err)
		}

		err = c.ledger.CommitCancellation(ctx, *reg, course.Version)
		switch {
		case err == nil, errors.Is(err, port.ErrStaleVersion):
			return err
		case errors.Is(err, port.ErrRecordNotFound):
			return subj.fail(KindNotFound, "registration not found", nil)
		default:
			return subj.fail(KindInfrastructure, "cancellation commit failed", err)
		}
	})
	if err != nil {
		return nil, c.report(log, c.classify(subj, err))
	}

	log.Info().Int("student_id", reg.StudentID).Int("course_id", reg.CourseID).Msg("Registration cancelled")
	return reg, nil
}

// classify turns a resolver result into an *Error.
func (c *Controller) classify(subj subject, err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, errBudgetExhausted) {
		return subj.fail(KindConflict, fmt.Sprintf(
			"course changed concurrently on all %d commit attempts", c.resolver.MaxAttempts(),
		), port.ErrStaleVersion)
	}
	return subj.fail(KindInfrastructure, "admission aborted", err)
}

func (c *Controller) report(log zerolog.Logger, e *Error) *Error {
	var ev *zerolog.Event
	switch e.Kind {
	case KindInfrastructure:
		ev = log.Error().Err(e.Err)
	case KindConflict:
		ev = log.Warn()
	default:
		ev = log.Debug()
	}
	ev.Str("kind", e.Kind.String()).Str("reason", e.Reason).Msg("Admission rejected")
	return e
}
