package worker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/enrollment-backend/internal/config"
	"github.com/stemsi/enrollment-backend/internal/notify"
	"github.com/stemsi/enrollment-backend/internal/port"
)

// EventWorker consumes registration_events_queue and appends each event to the event log.
type EventWorker struct {
	events     port.EventLog
	rdb        *redis.Client
	log        zerolog.Logger
	queue      string
	retryDelay time.Duration
}

// NewEventWorker creates a new EventWorker.
func NewEventWorker(events port.EventLog, rdb *redis.Client, log zerolog.Logger) *EventWorker {
	return &EventWorker{
		events:     events,
		rdb:        rdb,
		log:        log.With().Str("component", "event_worker").Logger(),
		queue:      config.WorkerKey.RegistrationEventsQueue,
		retryDelay: 5 * time.Second,
	}
}

// Start begins the worker loop and returns once ctx is cancelled and the
// queue is drained. Call in a goroutine.
func (w *EventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *EventWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			w.pause(ctx)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if err := w.persist(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Msg("Persist error, retrying")
		// Push back to queue for retry. Order across retries is not kept;
		// events carry their own timestamps.
		if err := w.rdb.RPush(context.Background(), w.queue, result[1]).Err(); err != nil {
			w.log.Error().Err(err).Str("payload", result[1]).Msg("Requeue failed, event lost")
		}
		w.pause(ctx)
	}
}

// persist stores one queued payload. Malformed payloads are logged and dropped.
func (w *EventWorker) persist(ctx context.Context, payload string) error {
	ev, err := notify.DecodeEvent(payload)
	if err != nil {
		w.log.Error().Err(err).Str("payload", payload).Msg("Dropping malformed event")
		return nil
	}
	return w.events.AppendEvent(ctx, ev)
}

func (w *EventWorker) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.retryDelay):
	}
}

// drain processes all remaining items in the queue before shutdown.
func (w *EventWorker) drain(ctx context.Context) {
	drained := 0
	for {
		payload, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}
		if err := w.persist(ctx, payload); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			_ = w.rdb.RPush(ctx, w.queue, payload).Err()
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
