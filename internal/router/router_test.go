package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/enrollment-backend/internal/admission"
	"github.com/stemsi/enrollment-backend/internal/auth"
	"github.com/stemsi/enrollment-backend/internal/config"
	"github.com/stemsi/enrollment-backend/internal/handler"
	"github.com/stemsi/enrollment-backend/internal/middleware"
	"github.com/stemsi/enrollment-backend/internal/notify"
	"github.com/stemsi/enrollment-backend/internal/repository/sqlite"
	"github.com/stemsi/enrollment-backend/internal/service"
	"github.com/stemsi/enrollment-backend/internal/validator"
	ws "github.com/stemsi/enrollment-backend/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	validator.Setup()
}

var msk = time.FixedZone("MSK", 3*60*60)

// 2025-03-10 12:00 MSK
var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
	Metadata struct {
		RequestID string `json:"request_id"`
		Count     *int   `json:"count"`
	} `json:"metadata"`
}

type testAPI struct {
	t      *testing.T
	engine http.Handler
	tokens *auth.TokenService
	admin  string
	store  *sqlite.Store
	mr     *miniredis.Miniredis
	rdb    *redis.Client
}

func newTestAPI(t *testing.T, ratePerMinute, burst int) *testAPI {
	t.Helper()

	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "enrollment.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zerolog.Nop()
	ctrl := admission.NewController(store, store, store,
		admission.WithClock(admission.ClockFunc(func() time.Time { return testNow })),
		admission.WithLocation(msk),
	)
	notifier := notify.NewNotifier(rdb, log)
	courseSvc := service.NewCourseService(store, store, ctrl)
	tokens := auth.NewTokenService("test-secret", time.Hour)

	cfg := &config.Config{GinMode: "test"}
	engine := SetupRouter(tokens, middleware.NewRateLimiter(ratePerMinute, burst), &Handlers{
		Course:       handler.NewCourseHandler(courseSvc, log),
		Student:      handler.NewStudentHandler(service.NewStudentService(store), log),
		Registration: handler.NewRegistrationHandler(service.NewRegistrationService(ctrl, store, store, notifier, log), log),
		WS:           handler.NewWSHandler(courseSvc, notifier, log, nil),
		System: handler.NewSystemHandler(map[string]handler.Pinger{
			"store": store,
			"redis": handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		}),
	}, cfg, log)

	admin, err := tokens.GenerateAdminToken(1)
	require.NoError(t, err)

	return &testAPI{t: t, engine: engine, tokens: tokens, admin: admin, store: store, mr: mr, rdb: rdb}
}

func (a *testAPI) studentToken(id int) string {
	tok, err := a.tokens.GenerateStudentToken(id)
	require.NoError(a.t, err)
	return tok
}

func (a *testAPI) do(method, path, token string, body interface{}) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func (a *testAPI) createCourse(name string, capacity int, opens, closes string) int {
	a.t.Helper()
	status, env := a.do(http.MethodPost, "/api/v1/courses", a.admin, map[string]interface{}{
		"name": name, "capacity": capacity, "opens_at": opens, "closes_at": closes,
	})
	require.Equal(a.t, http.StatusCreated, status)
	var data struct {
		Course struct {
			ID int `json:"id"`
		} `json:"course"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &data))
	return data.Course.ID
}

func (a *testAPI) createStudent(email string) int {
	a.t.Helper()
	status, env := a.do(http.MethodPost, "/api/v1/students", a.admin, map[string]string{
		"name": "Student", "email": email,
	})
	require.Equal(a.t, http.StatusCreated, status)
	var data struct {
		Student struct {
			ID int `json:"id"`
		} `json:"student"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &data))
	return data.Student.ID
}

func (a *testAPI) register(token string, studentID, courseID int) (int, envelope) {
	return a.do(http.MethodPost, "/api/v1/registrations", token, map[string]int{
		"student_id": studentID, "course_id": courseID,
	})
}

func registrationID(t *testing.T, env envelope) string {
	t.Helper()
	var data struct {
		Registration struct {
			ID string `json:"id"`
		} `json:"registration"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.Registration.ID
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, 600, 100)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	api.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	api.mr.SetError("ERR redis unavailable")
	rec = httptest.NewRecorder()
	api.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"down"`)
}

func TestAuthGuards(t *testing.T) {
	api := newTestAPI(t, 600, 100)
	student := api.createStudent("guard@example.com")

	status, env := api.do(http.MethodGet, "/api/v1/courses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "TOKEN_REQUIRED", env.Error.Code)

	status, env = api.do(http.MethodGet, "/api/v1/courses", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "TOKEN_INVALID", env.Error.Code)

	status, env = api.do(http.MethodGet, "/api/v1/students", api.studentToken(student), nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "ADMIN_ACCESS_ONLY", env.Error.Code)

	status, _ = api.do(http.MethodGet, fmt.Sprintf("/api/v1/students/%d", student), api.studentToken(student), nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = api.do(http.MethodGet, fmt.Sprintf("/api/v1/students/%d", student), api.studentToken(student+1), nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _ = api.do(http.MethodGet, "/api/v1/courses", api.studentToken(student), nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCreateValidation(t *testing.T) {
	api := newTestAPI(t, 600, 100)

	status, env := api.do(http.MethodPost, "/api/v1/courses", api.admin, map[string]interface{}{
		"name": "", "capacity": 0, "opens_at": "soon", "closes_at": "2025-03-10T18:00",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "name")
	assert.Contains(t, env.Error.Fields, "capacity")
	assert.Contains(t, env.Error.Fields, "opens_at")

	status, env = api.do(http.MethodPost, "/api/v1/courses", api.admin, map[string]interface{}{
		"name": "Backwards", "capacity": 1, "opens_at": "2025-03-10T18:00", "closes_at": "2025-03-10T10:00",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error.Fields, "closes_at")

	api.createStudent("dup@example.com")
	status, env = api.do(http.MethodPost, "/api/v1/students", api.admin, map[string]string{
		"name": "Again", "email": "DUP@example.com",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	status, env = api.do(http.MethodGet, "/api/v1/courses/abc", api.admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ID", env.Error.Code)
}

func TestRegistrationStatusMapping(t *testing.T) {
	api := newTestAPI(t, 600, 100)

	open := api.createCourse("Open", 1, "2025-03-10T10:00", "2025-03-10T18:00")
	future := api.createCourse("Future", 5, "2025-03-11T10:00", "2025-03-11T18:00")
	first := api.createStudent("first@example.com")
	second := api.createStudent("second@example.com")

	status, env := api.register(api.studentToken(first), first, open)
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, registrationID(t, env))

	status, env = api.register(api.studentToken(first), first, open)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_REGISTERED", env.Error.Code)

	status, env = api.register(api.admin, second, open)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "COURSE_FULL", env.Error.Code)
	assert.Equal(t, fmt.Sprint(open), env.Error.Fields["course_id"])
	assert.Equal(t, fmt.Sprint(second), env.Error.Fields["student_id"])
	assert.NotEmpty(t, env.Error.Fields["reason"])

	status, env = api.register(api.admin, second, future)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "REGISTRATION_WINDOW_CLOSED", env.Error.Code)
	assert.Contains(t, env.Error.Fields["reason"], "11.03.2025 10:00")

	status, env = api.register(api.admin, 999, open)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	status, env = api.register(api.studentToken(second), first, future)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, env = api.do(http.MethodGet, fmt.Sprintf("/api/v1/courses/%d", open), api.studentToken(first), nil)
	require.Equal(t, http.StatusOK, status)
	var data struct {
		Course struct {
			OccupiedSeats int    `json:"occupied_seats"`
			WindowState   string `json:"window_state"`
		} `json:"course"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 1, data.Course.OccupiedSeats)
	assert.Equal(t, "OPEN", data.Course.WindowState)

	status, env = api.do(http.MethodGet, "/api/v1/courses/available", api.studentToken(first), nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Metadata.Count)
	assert.Equal(t, 0, *env.Metadata.Count)
}

func TestCancelOwnership(t *testing.T) {
	api := newTestAPI(t, 600, 100)

	course := api.createCourse("Cancel", 1, "2025-03-10T10:00", "2025-03-10T18:00")
	owner := api.createStudent("owner@example.com")
	other := api.createStudent("other@example.com")

	_, env := api.register(api.studentToken(owner), owner, course)
	regID := registrationID(t, env)

	status, env := api.do(http.MethodDelete, "/api/v1/registrations/"+regID, api.studentToken(other), nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _ = api.do(http.MethodDelete, "/api/v1/registrations/"+regID, api.studentToken(owner), nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = api.do(http.MethodDelete, "/api/v1/registrations/"+regID, api.admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	status, _ = api.register(api.studentToken(other), other, course)
	assert.Equal(t, http.StatusCreated, status)

	status, env = api.do(http.MethodGet, "/api/v1/registrations", api.admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, *env.Metadata.Count)

	status, env = api.do(http.MethodDelete, "/api/v1/registrations/not-a-uuid", api.admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ID", env.Error.Code)
}

func TestRegisterRateLimited(t *testing.T) {
	api := newTestAPI(t, 1, 2)

	course := api.createCourse("Limited", 10, "2025-03-10T10:00", "2025-03-10T18:00")
	student := api.createStudent("limited@example.com")
	token := api.studentToken(student)

	status, _ := api.register(token, student, course)
	assert.Equal(t, http.StatusCreated, status)
	status, _ = api.register(token, student, course)
	assert.Equal(t, http.StatusConflict, status)

	status, env := api.register(token, student, course)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", env.Error.Code)

	status, _ = api.do(http.MethodGet, "/api/v1/courses", token, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestSeatStream(t *testing.T) {
	api := newTestAPI(t, 600, 100)

	course := api.createCourse("Live", 2, "2025-03-10T10:00", "2025-03-10T18:00")
	student := api.createStudent("live@example.com")

	srv := httptest.NewServer(api.engine)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + fmt.Sprintf("/ws/v1/courses/%d/seats", course)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snapshot ws.SnapshotResponse
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, ws.EventSnapshot, snapshot.Event)
	assert.Equal(t, 2, snapshot.Capacity)
	assert.Equal(t, 0, snapshot.OccupiedSeats)

	require.NoError(t, conn.WriteJSON(ws.RequestEnvelope{Action: ws.ActionPing}))
	var pong ws.PongResponse
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, ws.EventPong, pong.Event)

	status, _ := api.register(api.admin, student, course)
	require.Equal(t, http.StatusCreated, status)

	var seats ws.SeatsResponse
	require.NoError(t, conn.ReadJSON(&seats))
	assert.Equal(t, ws.EventSeats, seats.Event)
	assert.Equal(t, 1, seats.Data.OccupiedSeats)
	assert.Equal(t, student, seats.Data.StudentID)

	queued, err := api.rdb.LLen(context.Background(), config.WorkerKey.RegistrationEventsQueue).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), queued)
}

func TestSeatStreamUnknownCourse(t *testing.T) {
	api := newTestAPI(t, 600, 100)

	status, env := api.do(http.MethodGet, "/ws/v1/courses/42/seats", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
