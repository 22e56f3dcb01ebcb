package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/enrollment-backend/internal/model"
	"github.com/stemsi/enrollment-backend/internal/notify"
	"github.com/stemsi/enrollment-backend/internal/response"
	"github.com/stemsi/enrollment-backend/internal/service"
	ws "github.com/stemsi/enrollment-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// SeatSubscriber opens a pub/sub subscription on a course's seat channel.
type SeatSubscriber interface {
	Subscribe(ctx context.Context, courseID int) *redis.PubSub
}

// WSHandler streams live seat availability.
type WSHandler struct {
	courseService *service.CourseService
	subscriber    SeatSubscriber
	log           zerolog.Logger
	upgrader      websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(courseService *service.CourseService, subscriber SeatSubscriber, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		courseService: courseService,
		subscriber:    subscriber,
		log:           log.With().Str("component", "ws_handler").Logger(),
		upgrader:      buildUpgrader(allowedOrigins),
	}
}

// CourseSeatStream godoc
// WS /ws/v1/courses/:id/seats
// Sends a snapshot of the course, then one seats event per committed change.
func (h *WSHandler) CourseSeatStream(c *gin.Context) {
	courseID, ok := paramID(c, "id")
	if !ok {
		return
	}

	// Resolve the course before upgrading so unknown IDs get a plain 404.
	if _, err := h.courseService.Get(c.Request.Context(), courseID); err != nil {
		if service.IsNotFound(err) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Int("course_id", courseID).Msg("Failed to load course for seat stream")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsLog := h.log.With().Int("course_id", courseID).Logger()

	// Subscribe before the snapshot so no commit falls between the two.
	sub := h.subscriber.Subscribe(ctx, courseID)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		wsLog.Error().Err(err).Msg("Seat channel subscribe failed")
		_ = ws.WriteError(conn, "seat updates unavailable")
		return
	}

	summary, err := h.courseService.Get(ctx, courseID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Snapshot read failed")
		_ = ws.WriteError(conn, "course unavailable")
		return
	}

	// All writes go through one goroutine; gorilla connections allow one concurrent writer.
	out := make(chan interface{}, 16)
	out <- ws.SnapshotResponse{
		Event:         ws.EventSnapshot,
		CourseID:      summary.ID,
		Capacity:      summary.Capacity,
		OccupiedSeats: summary.OccupiedSeats,
		WindowState:   summary.WindowState,
	}

	go h.readLoop(ctx, conn, wsLog, out, cancel)
	go forwardSeatEvents(ctx, sub, wsLog, out)

	wsLog.Info().Msg("Seat stream connected")
	h.writeLoop(ctx, conn, wsLog, out)
	wsLog.Debug().Msg("Seat stream closed")
}

// readLoop answers ping actions and cancels the stream when the client goes away.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, out chan<- interface{}, cancel context.CancelFunc) {
	defer cancel()
	ws.ExtendOnPong(conn)

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		var reply interface{}
		switch msg.Action {
		case ws.ActionPing:
			reply = ws.PongResponse{Event: ws.EventPong}
		default:
			reply = ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(msg.Action)}
		}
		select {
		case out <- reply:
		case <-ctx.Done():
			return
		}
	}
}

func forwardSeatEvents(ctx context.Context, sub *redis.PubSub, log zerolog.Logger, out chan<- interface{}) {
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			ev, err := notify.DecodeEvent(msg.Payload)
			if err != nil {
				log.Warn().Err(err).Msg("Dropping malformed seat event")
				continue
			}
			select {
			case out <- seatsResponse(ev):
			case <-ctx.Done():
				return
			}
		}
	}
}

func seatsResponse(ev model.RegistrationEvent) ws.SeatsResponse {
	return ws.SeatsResponse{Event: ws.EventSeats, Data: ev}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, out <-chan interface{}) {
	ticker := time.NewTicker(ws.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case v := <-out:
			if err := ws.WriteTyped(conn, v); err != nil {
				log.Debug().Err(err).Msg("Write failed")
				return
			}
		case <-ticker.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}
		}
	}
}
