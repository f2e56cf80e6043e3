package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Vasu1712/coachlink-backend/internal/auth"
	"github.com/Vasu1712/coachlink-backend/internal/models"
	"github.com/Vasu1712/coachlink-backend/internal/notify"
	"github.com/Vasu1712/coachlink-backend/internal/storage/memory"
	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnv struct {
	router   *mux.Router
	store    *memory.Store
	resolver *auth.JWTResolver
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	logger := log.New(io.Discard)
	store := memory.NewStore()
	resolver := auth.NewJWTResolver("api-test", "")
	router := mux.NewRouter()
	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.Use(auth.Middleware(resolver))
	RegisterRoutes(v1, &Handler{Outbox: notify.NewOutbox(store, logger), Devices: store, Logger: logger})
	return &apiEnv{router: router, store: store, resolver: resolver}
}

func (e *apiEnv) do(t *testing.T, userID, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	token, err := e.resolver.Issue(userID, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestPendingAndAcknowledge(t *testing.T) {
	env := newAPIEnv(t)
	n := &models.OutboxNotification{
		UserID:    "u1",
		Type:      models.NotificationDailyCheckin,
		Title:     "Daily check-in",
		DedupeKey: "daily-key-xyz",
		SendAfter: time.Now().Add(-time.Minute),
	}
	_, err := env.store.InsertOutbox(context.Background(), n)
	require.NoError(t, err)

	rec := env.do(t, "u1", http.MethodGet, "/api/v1/notifications/pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []models.OutboxNotification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, n.ID, pending[0].ID)
	assert.NotContains(t, rec.Body.String(), "daily-key-xyz", "dedupe key stays internal")

	rec = env.do(t, "u2", http.MethodPost, "/api/v1/notifications/"+n.ID+"/ack", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, "u1", http.MethodPost, "/api/v1/notifications/missing/ack", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for i := 0; i < 2; i++ {
		rec = env.do(t, "u1", http.MethodPost, "/api/v1/notifications/"+n.ID+"/ack", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec = env.do(t, "u1", http.MethodGet, "/api/v1/notifications/pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestDeviceRegistration(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	rec := env.do(t, "u1", http.MethodPost, "/api/v1/devices", `{"token":"tok-1","platform":"ios"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, "u2", http.MethodPost, "/api/v1/devices", `{"token":"tok-1","platform":"android"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	owned, err := env.store.ListDeviceTokens(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, owned)

	rec = env.do(t, "u1", http.MethodDelete, "/api/v1/devices/tok-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "u2", http.MethodDelete, "/api/v1/devices/tok-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, "u1", http.MethodPost, "/api/v1/devices", `{"platform":"ios"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "token is required")
}

func TestRecordCheckin(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, "u1", http.MethodPost, "/api/v1/checkins", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var first models.Checkin
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = env.do(t, "u1", http.MethodPost, "/api/v1/checkins", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var second models.Checkin
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, first.ID, second.ID)
}
