// Package dms serves conversations and messages over request/response HTTP.
// These handlers are the fallback for clients without a live connection; a
// message created here is broadcast to whoever is connected.
package dms

import (
	"net/http"
	"strconv"

	"github.com/Vasu1712/coachlink-backend/internal/api"
	"github.com/Vasu1712/coachlink-backend/internal/auth"
	"github.com/Vasu1712/coachlink-backend/internal/chat"
	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
)

const defaultHistoryLimit = 50

type DMHandler struct {
	Channel *chat.Channel
	Logger  *log.Logger
}

// StartOrGetConversation handles POST /api/v1/conversations {peerId}.
func (h *DMHandler) StartOrGetConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PeerID string `json:"peerId" validate:"required"`
	}
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, h.Logger, err)
		return
	}
	conv, err := h.Channel.StartConversation(r.Context(), auth.UserID(r.Context()), req.PeerID)
	if err != nil {
		api.Error(w, h.Logger, err)
		return
	}
	api.JSON(w, h.Logger, http.StatusOK, conv)
}

// ListConversations handles GET /api/v1/conversations.
func (h *DMHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.Channel.Conversations(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		api.Error(w, h.Logger, err)
		return
	}
	api.JSON(w, h.Logger, http.StatusOK, convs)
}

// GetMessages handles GET /api/v1/conversations/{id}/messages?limit=N.
func (h *DMHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			api.JSON(w, h.Logger, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	msgs, err := h.Channel.History(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()), limit)
	if err != nil {
		api.Error(w, h.Logger, err)
		return
	}
	api.JSON(w, h.Logger, http.StatusOK, msgs)
}

// SendMessage handles POST /api/v1/conversations/{id}/messages {content}.
func (h *DMHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content" validate:"required"`
	}
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, h.Logger, err)
		return
	}
	msg, err := h.Channel.AppendAndBroadcast(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()), req.Content)
	if err != nil {
		api.Error(w, h.Logger, err)
		return
	}
	api.JSON(w, h.Logger, http.StatusCreated, msg)
}

// MarkRead handles POST /api/v1/conversations/{id}/messages/{messageId}/read.
func (h *DMHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	msg, err := h.Channel.MarkRead(r.Context(), vars["id"], auth.UserID(r.Context()), vars["messageId"])
	if err != nil {
		api.Error(w, h.Logger, err)
		return
	}
	api.JSON(w, h.Logger, http.StatusOK, msg)
}

