package websocket

import "github.com/stemsi/enrollment-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventSnapshot Event = "snapshot"
	EventSeats    Event = "seats"
	EventPong     Event = "pong"
)

// SnapshotResponse is the first message on a seat stream.
type SnapshotResponse struct {
	Event         Event             `json:"event"`
	CourseID      int               `json:"course_id"`
	Capacity      int               `json:"capacity"`
	OccupiedSeats int               `json:"occupied_seats"`
	WindowState   model.WindowState `json:"window_state"`
}

// SeatsResponse forwards one committed registration change.
type SeatsResponse struct {
	Event Event                   `json:"event"`
	Data  model.RegistrationEvent `json:"data"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
