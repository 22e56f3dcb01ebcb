package model

import "time"

// WindowState is the registration window state of a course at a given instant.
type WindowState string

const (
	WindowPending WindowState = "PENDING"
	WindowOpen    WindowState = "OPEN"
	WindowClosed  WindowState = "CLOSED"
)

// Course is a capacity-limited course with a fixed registration window.
// Version increments once per committed change to the course's registrations.
type Course struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	OpensAt   time.Time `json:"opens_at"`
	ClosesAt  time.Time `json:"closes_at"`
	TimeZone  string    `json:"time_zone"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// CourseSummary is a course together with its derived occupancy.
type CourseSummary struct {
	Course
	OccupiedSeats int         `json:"occupied_seats"`
	WindowState   WindowState `json:"window_state"`
}

// CreateCourseRequest is the payload for creating a course.
// OpensAt and ClosesAt accept RFC 3339 instants or local date-times
// ("2006-01-02T15:04"), the latter read in the governing time zone.
type CreateCourseRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Capacity int    `json:"capacity" binding:"required,min=1"`
	OpensAt  string `json:"opens_at" binding:"required,instant"`
	ClosesAt string `json:"closes_at" binding:"required,instant"`
}
