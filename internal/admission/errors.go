package admission

import (
	"errors"
	"fmt"
)

// Kind classifies an admission failure.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindAlreadyRegistered
	KindCourseFull
	KindWindowClosed
	KindConflict
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyRegistered:
		return "already_registered"
	case KindCourseFull:
		return "course_full"
	case KindWindowClosed:
		return "window_closed"
	case KindConflict:
		return "conflict"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by the controller.
type Error struct {
	Kind      Kind
	StudentID int
	CourseID  int
	Reason    string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("admission %s (student %d, course %d): %s", e.Kind, e.StudentID, e.CourseID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrAlreadyRegistered = &Error{Kind: KindAlreadyRegistered}
	ErrCourseFull        = &Error{Kind: KindCourseFull}
	ErrWindowClosed      = &Error{Kind: KindWindowClosed}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInfrastructure    = &Error{Kind: KindInfrastructure}
)

// KindOf extracts the failure kind of err, or 0 if err is not an admission error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}
