// Package notify fans registration events out over Redis.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/enrollment-backend/internal/config"
	"github.com/stemsi/enrollment-backend/internal/model"
)

// Notifier publishes each event to the course seat channel for live
// listeners and queues it for the event persistence worker.
type Notifier struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(rdb *redis.Client, log zerolog.Logger) *Notifier {
	return &Notifier{
		rdb: rdb,
		log: log.With().Str("component", "notifier").Logger(),
	}
}

// Publish sends ev in one MULTI/EXEC round trip.
func (n *Notifier) Publish(ctx context.Context, ev model.RegistrationEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := n.rdb.TxPipeline()
	pipe.Publish(ctx, config.CacheKey.CourseSeatsChannel(ev.CourseID), payload)
	pipe.RPush(ctx, config.WorkerKey.RegistrationEventsQueue, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	n.log.Debug().
		Str("type", string(ev.Type)).
		Int("course_id", ev.CourseID).
		Int("occupied_seats", ev.OccupiedSeats).
		Msg("Event published")
	return nil
}

// Subscribe opens a subscription to the seat channel of one course.
// The caller must close the returned PubSub.
func (n *Notifier) Subscribe(ctx context.Context, courseID int) *redis.PubSub {
	return n.rdb.Subscribe(ctx, config.CacheKey.CourseSeatsChannel(courseID))
}

// DecodeEvent parses a payload produced by Publish.
func DecodeEvent(payload string) (model.RegistrationEvent, error) {
	var ev model.RegistrationEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return model.RegistrationEvent{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
