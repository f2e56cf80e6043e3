package dms

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterDMRoutes registers the conversation routes on an authenticated
// router. The live channel is served by the gateway.
func RegisterDMRoutes(r *mux.Router, handler *DMHandler) {
	r.HandleFunc("/conversations", handler.StartOrGetConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations", handler.ListConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/messages", handler.GetMessages).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/messages", handler.SendMessage).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/messages/{messageId}/read", handler.MarkRead).Methods(http.MethodPost)
}
