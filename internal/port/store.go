// Package port declares the storage collaborators consumed by the admission
// core and the services. Implementations live under internal/repository.
package port

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/enrollment-backend/internal/model"
)

var (
	// ErrRecordNotFound is returned when a requested row does not exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned on a unique constraint violation.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrStaleVersion is returned by a conditional commit when the course
	// version no longer matches the expected one.
	ErrStaleVersion = errors.New("course version changed since read")
)

// StudentDirectory resolves student identities.
type StudentDirectory interface {
	StudentExists(ctx context.Context, studentID int) (bool, error)
}

// CourseCatalog reads course records. FetchCourse returns ErrRecordNotFound
// for unknown IDs.
type CourseCatalog interface {
	FetchCourse(ctx context.Context, courseID int) (*model.Course, error)
	CourseExists(ctx context.Context, courseID int) (bool, error)
}

// RegistrationLedger is the source of truth for course occupancy.
//
// CommitRegistration and CommitCancellation must bump the course version and
// change the ledger atomically, and only if the course version still equals
// expectedVersion; otherwise they return ErrStaleVersion and write nothing.
type RegistrationLedger interface {
	CountRegistrations(ctx context.Context, courseID int) (int, error)
	ExistsRegistration(ctx context.Context, studentID, courseID int) (bool, error)
	FetchRegistration(ctx context.Context, id uuid.UUID) (*model.Registration, error)
	CommitRegistration(ctx context.Context, reg model.Registration, expectedVersion int64) (*model.Registration, error)
	CommitCancellation(ctx context.Context, reg model.Registration, expectedVersion int64) error
}

// StudentStore is the full student persistence surface.
type StudentStore interface {
	StudentDirectory
	CreateStudent(ctx context.Context, s *model.Student) error
	GetStudent(ctx context.Context, id int) (*model.Student, error)
	ListStudents(ctx context.Context) ([]model.Student, error)
	// DeleteStudent removes the student and their registrations, bumping the
	// version of every affected course.
	DeleteStudent(ctx context.Context, id int) error
}

// CourseStore is the full course persistence surface.
type CourseStore interface {
	CourseCatalog
	CreateCourse(ctx context.Context, c *model.Course) error
	ListCourses(ctx context.Context) ([]model.CourseSummary, error)
	DeleteCourse(ctx context.Context, id int) error
}

// RegistrationStore is the full registration persistence surface.
type RegistrationStore interface {
	RegistrationLedger
	ListRegistrations(ctx context.Context) ([]model.RegistrationDetail, error)
	ListCourseRegistrations(ctx context.Context, courseID int) ([]model.RegistrationDetail, error)
}

// EventLog persists the registration audit trail.
type EventLog interface {
	AppendEvent(ctx context.Context, ev model.RegistrationEvent) error
	PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
