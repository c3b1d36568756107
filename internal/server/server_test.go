package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/daycare-notify/internal/model"
	"github.com/nhle/daycare-notify/internal/notify"
	"github.com/nhle/daycare-notify/internal/readstate"
	"github.com/nhle/daycare-notify/internal/store"
	appsync "github.com/nhle/daycare-notify/internal/sync"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret-key-for-unit-tests"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signToken(t *testing.T, secret, userID, role string) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
		Role:   role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

type staticSource struct {
	typ   model.NotificationType
	items []model.Notification
}

func (s staticSource) Type() model.NotificationType { return s.typ }

func (s staticSource) Fetch(context.Context, model.Recipient) []model.Notification {
	return s.items
}

type idleClock struct{}

func (idleClock) Now() time.Time                          { return time.Time{} }
func (idleClock) NewTicker(time.Duration) appsync.Ticker { return idleTicker{} }

type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}

func newTestServer(t *testing.T) (*Server, *Sessions) {
	t.Helper()
	kv := store.NewMemoryStore()
	logger := discardLogger()

	factory := func(ctx context.Context, userID string, role model.Recipient) (*notify.Service, error) {
		reads := readstate.Open(ctx, kv, readstate.Key(userID), logger)
		return notify.NewService(
			notify.ServiceConfig{Role: role, Clock: idleClock{}},
			reads,
			logger,
			staticSource{typ: model.NotificationComplaint, items: []model.Notification{
				{ID: "complaint-A", Type: model.NotificationComplaint, Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
			}},
			staticSource{typ: model.NotificationMeeting, items: []model.Notification{
				{ID: "meeting-B", Type: model.NotificationMeeting, Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			}},
		), nil
	}

	sessions := NewSessions(context.Background(), factory, logger)
	t.Cleanup(sessions.Close)
	return NewServer("0", testSecret, sessions, logger), sessions
}

func do(t *testing.T, s *Server, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) notify.Snapshot {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var snap notify.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestAuthRequired(t *testing.T) {
	s, sessions := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "wrong secret", header: "Bearer " + signToken(t, "other-secret", "u1", "teacher")},
		{name: "no user id", header: "Bearer " + signToken(t, testSecret, "", "teacher")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
	assert.Equal(t, 0, sessions.Len())
}

func TestInvalidRole(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/api/v1/notifications", signToken(t, testSecret, "u1", "janitor"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReadFlow(t *testing.T) {
	s, _ := newTestServer(t)
	token := signToken(t, testSecret, "u1", "Teacher")

	snap := decodeSnapshot(t, do(t, s, http.MethodPost, "/api/v1/notifications/refresh", token))
	require.Len(t, snap.Notifications, 2)
	assert.Equal(t, "complaint-A", snap.Notifications[0].ID)
	assert.Equal(t, 2, snap.UnreadCount)

	snap = decodeSnapshot(t, do(t, s, http.MethodPut, "/api/v1/notifications/complaint-A/read", token))
	assert.Equal(t, 1, snap.UnreadCount)
	assert.True(t, snap.Notifications[0].Read)

	w := do(t, s, http.MethodGet, "/api/v1/notifications/unread", token)
	require.Equal(t, http.StatusOK, w.Code)
	var unread unreadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &unread))
	require.Len(t, unread.Notifications, 1)
	assert.Equal(t, "meeting-B", unread.Notifications[0].ID)
	assert.Equal(t, 1, unread.UnreadCount)

	snap = decodeSnapshot(t, do(t, s, http.MethodPut, "/api/v1/notifications/read-all", token))
	assert.Equal(t, 0, snap.UnreadCount)

	snap = decodeSnapshot(t, do(t, s, http.MethodDelete, "/api/v1/notifications/read", token))
	assert.Equal(t, 2, snap.UnreadCount)

	// Another user has independent read state.
	other := signToken(t, testSecret, "u2", "teacher")
	do(t, s, http.MethodPut, "/api/v1/notifications/meeting-B/read", token)
	snap = decodeSnapshot(t, do(t, s, http.MethodPost, "/api/v1/notifications/refresh", other))
	assert.Equal(t, 2, snap.UnreadCount)
}

func TestLogoutStopsSession(t *testing.T) {
	s, sessions := newTestServer(t)
	token := signToken(t, testSecret, "u1", "supervisor")

	decodeSnapshot(t, do(t, s, http.MethodGet, "/api/v1/notifications", token))
	svc, ok := sessions.lookup("u1")
	require.True(t, ok)

	w := do(t, s, http.MethodDelete, "/api/v1/session", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"stopped":true}`, w.Body.String())
	assert.Equal(t, 0, sessions.Len())

	select {
	case <-svc.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session poller did not stop")
	}

	w = do(t, s, http.MethodDelete, "/api/v1/session", token)
	assert.JSONEq(t, `{"stopped":false}`, w.Body.String())
}

func TestRoleChangeReplacesSession(t *testing.T) {
	s, sessions := newTestServer(t)

	decodeSnapshot(t, do(t, s, http.MethodGet, "/api/v1/notifications", signToken(t, testSecret, "u1", "teacher")))
	first, _ := sessions.lookup("u1")

	decodeSnapshot(t, do(t, s, http.MethodGet, "/api/v1/notifications", signToken(t, testSecret, "u1", "supervisor")))
	second, _ := sessions.lookup("u1")

	assert.NotSame(t, first, second)
	assert.Equal(t, model.RecipientSupervisor, second.Role())
	assert.Equal(t, 1, sessions.Len())
}

func TestClosedRegistry(t *testing.T) {
	s, sessions := newTestServer(t)
	sessions.Close()
	w := do(t, s, http.MethodGet, "/api/v1/notifications", signToken(t, testSecret, "u1", "teacher"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStream(t *testing.T) {
	s, _ := newTestServer(t)
	token := signToken(t, testSecret, "u1", "teacher")
	decodeSnapshot(t, do(t, s, http.MethodPost, "/api/v1/notifications/refresh", token))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/stream", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "event:snapshot"), body)
	assert.Contains(t, body, `"complaint-A"`)
}
