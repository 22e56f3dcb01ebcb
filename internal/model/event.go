package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates registration event kinds.
type EventType string

const (
	EventRegistered EventType = "REGISTERED"
	EventCancelled  EventType = "CANCELLED"
)

// RegistrationEvent is emitted after a registration change is committed.
// OccupiedSeats is read after the commit and is informational only.
type RegistrationEvent struct {
	Type           EventType `json:"type"`
	RegistrationID uuid.UUID `json:"registration_id"`
	StudentID      int       `json:"student_id"`
	CourseID       int       `json:"course_id"`
	OccupiedSeats  int       `json:"occupied_seats"`
	Capacity       int       `json:"capacity"`
	OccurredAt     time.Time `json:"occurred_at"`
}
