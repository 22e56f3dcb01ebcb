package admission

import (
	"fmt"
	"time"

	"github.com/stemsi/enrollment-backend/internal/model"
)

// Clock supplies the authoritative current instant.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// WindowStateAt places now relative to the course window [OpensAt, ClosesAt).
func WindowStateAt(c *model.Course, now time.Time) model.WindowState {
	switch {
	case now.Before(c.OpensAt):
		return model.WindowPending
	case now.Before(c.ClosesAt):
		return model.WindowOpen
	default:
		return model.WindowClosed
	}
}

var localLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"}

// ParseInstant reads an RFC 3339 timestamp, or a zone-less local date-time
// which is interpreted as wall-clock time in loc.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse instant %q: expected RFC 3339 or YYYY-MM-DDTHH:MM[:SS]", s)
}
