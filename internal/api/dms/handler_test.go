package dms

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Vasu1712/coachlink-backend/internal/auth"
	"github.com/Vasu1712/coachlink-backend/internal/chat"
	"github.com/Vasu1712/coachlink-backend/internal/models"
	"github.com/Vasu1712/coachlink-backend/internal/storage/memory"
	"github.com/Vasu1712/coachlink-backend/internal/ws"
	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnv struct {
	router   *mux.Router
	resolver *auth.JWTResolver
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	logger := log.New(io.Discard)
	store := memory.NewStore()
	store.PutProfile(models.Profile{ID: "coach-a", Role: models.RoleCoach})
	store.PutProfile(models.Profile{ID: "client-b", Role: models.RoleClient})
	store.PutProfile(models.Profile{ID: "client-c", Role: models.RoleClient})

	resolver := auth.NewJWTResolver("api-test", "coachlink")
	router := mux.NewRouter()
	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.Use(auth.Middleware(resolver))
	RegisterDMRoutes(v1, &DMHandler{Channel: chat.NewChannel(store, ws.NewHub(logger), logger), Logger: logger})
	return &apiEnv{router: router, resolver: resolver}
}

func (e *apiEnv) do(t *testing.T, userID, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if userID != "" {
		token, err := e.resolver.Issue(userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestConversationFlow(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, "client-b", http.MethodPost, "/api/v1/conversations", `{"peerId":"coach-a"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	conv := decode[models.Conversation](t, rec)
	assert.Equal(t, "coach-a", conv.CoachID)
	assert.Equal(t, "client-b", conv.ClientID)

	rec = env.do(t, "coach-a", http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", `{"content":"still there?"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msg := decode[models.Message](t, rec)
	assert.Equal(t, "coach-a", msg.SenderID)

	rec = env.do(t, "client-b", http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]models.Message](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, "still there?", history[0].Content)

	rec = env.do(t, "client-b", http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages/"+msg.ID+"/read", "")
	require.Equal(t, http.StatusOK, rec.Code)
	read := decode[models.Message](t, rec)
	assert.NotNil(t, read.ReadAt)

	rec = env.do(t, "coach-a", http.MethodGet, "/api/v1/conversations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Conversation](t, rec), 1)
}

func TestConversationErrors(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(t, "coach-a", http.MethodPost, "/api/v1/conversations", `{"peerId":"client-b"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	conv := decode[models.Conversation](t, rec)

	tests := []struct {
		name   string
		userID string
		method string
		path   string
		body   string
		want   int
	}{
		{"no credential", "", http.MethodGet, "/api/v1/conversations", "", http.StatusUnauthorized},
		{"outsider reads history", "client-c", http.MethodGet, "/api/v1/conversations/" + conv.ID + "/messages", "", http.StatusForbidden},
		{"outsider sends", "client-c", http.MethodPost, "/api/v1/conversations/" + conv.ID + "/messages", `{"content":"hi"}`, http.StatusForbidden},
		{"unknown conversation", "coach-a", http.MethodGet, "/api/v1/conversations/nope/messages", "", http.StatusNotFound},
		{"empty content", "coach-a", http.MethodPost, "/api/v1/conversations/" + conv.ID + "/messages", `{"content":""}`, http.StatusBadRequest},
		{"malformed body", "coach-a", http.MethodPost, "/api/v1/conversations/" + conv.ID + "/messages", `{`, http.StatusBadRequest},
		{"bad limit", "coach-a", http.MethodGet, "/api/v1/conversations/" + conv.ID + "/messages?limit=-1", "", http.StatusBadRequest},
		{"missing peer", "coach-a", http.MethodPost, "/api/v1/conversations", `{}`, http.StatusBadRequest},
		{"missing content", "coach-a", http.MethodPost, "/api/v1/conversations/" + conv.ID + "/messages", `{}`, http.StatusBadRequest},
		{"two clients", "client-b", http.MethodPost, "/api/v1/conversations", `{"peerId":"client-c"}`, http.StatusBadRequest},
		{"unknown message", "client-b", http.MethodPost, "/api/v1/conversations/" + conv.ID + "/messages/nope/read", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.userID, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}
