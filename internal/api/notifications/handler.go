// Package notifications serves the outbox, device registrations and
// check-ins to the notified user.
package notifications

import (
	"fmt"
	"net/http"

	"github.com/Vasu1712/coachlink-backend/internal/api"
	"github.com/Vasu1712/coachlink-backend/internal/apperr"
	"github.com/Vasu1712/coachlink-backend/internal/auth"
	"github.com/Vasu1712/coachlink-backend/internal/notify"
	"github.com/Vasu1712/coachlink-backend/internal/storage"
	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
)

type Handler struct {
	Outbox  *notify.Outbox
	Devices storage.DeviceStore
	Logger  *log.Logger
}

// ListPending handles GET /api/v1/notifications/pending.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Outbox.ListPending(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		api.Error(w, h.Logger, err)
		return
	}
	api.JSON(w, h.Logger, http.StatusOK, pending)
}

// Acknowledge handles POST /api/v1/notifications/{id}/ack.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	n, err := h.Outbox.Acknowledge(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()))
	if err != nil {
		api.Error(w, h.Logger, err)
		return
	}
	api.JSON(w, h.Logger, http.StatusOK, n)
}

// RegisterDevice handles POST /api/v1/devices {token, platform}.
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token" validate:"required"`
		Platform string `json:"platform" validate:"max=32"`
	}
	if err := api.Decode(r, &req); err != nil {
		api.Error(w, h.Logger, err)
		return
	}
	d, err := h.Devices.UpsertDeviceToken(r.Context(), auth.UserID(r.Context()), req.Token, req.Platform)
	if err != nil {
		api.Error(w, h.Logger, apperr.Store("upsert device token", err))
		return
	}
	api.JSON(w, h.Logger, http.StatusOK, d)
}

// DeleteDevice handles DELETE /api/v1/devices/{token}.
func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	removed, err := h.Devices.DeleteDeviceToken(r.Context(), auth.UserID(r.Context()), token)
	if err != nil {
		api.Error(w, h.Logger, apperr.Store("delete device token", err))
		return
	}
	if !removed {
		api.Error(w, h.Logger, fmt.Errorf("%w: device token", apperr.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordCheckin handles POST /api/v1/checkins.
func (h *Handler) RecordCheckin(w http.ResponseWriter, r *http.Request) {
	c, err := h.Outbox.RecordCheckin(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		api.Error(w, h.Logger, err)
		return
	}
	api.JSON(w, h.Logger, http.StatusOK, c)
}
