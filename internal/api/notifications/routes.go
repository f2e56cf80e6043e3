package notifications

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes registers the notification routes on an authenticated
// router.
func RegisterRoutes(r *mux.Router, handler *Handler) {
	r.HandleFunc("/notifications/pending", handler.ListPending).Methods(http.MethodGet)
	r.HandleFunc("/notifications/{id}/ack", handler.Acknowledge).Methods(http.MethodPost)
	r.HandleFunc("/devices", handler.RegisterDevice).Methods(http.MethodPost)
	r.HandleFunc("/devices/{token}", handler.DeleteDevice).Methods(http.MethodDelete)
	r.HandleFunc("/checkins", handler.RecordCheckin).Methods(http.MethodPost)
}
