package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gatherly/gatherly/internal/config"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Calendar connections
	r.HandleFunc("/api/calendar-connections", deps.ConnectionHandler.CreateConnection).Methods("POST")
	r.HandleFunc("/api/calendar-connections", deps.ConnectionHandler.ListConnections).Methods("GET")
	r.HandleFunc("/api/calendar-connections/{connectionId}", deps.ConnectionHandler.GetConnection).Methods("GET")
	r.HandleFunc("/api/calendar-connections/{connectionId}", deps.ConnectionHandler.DisconnectConnection).Methods("DELETE")
	r.HandleFunc("/api/calendar-connections/{connectionId}/verify", deps.ConnectionHandler.ReverifyConnection).Methods("POST")
	r.HandleFunc("/api/calendar-connections/{connectionId}/sync", deps.ConnectionHandler.TriggerSync).Methods("POST")

	// Sync activity feed
	r.HandleFunc("/api/sync/activity", deps.ActivityLog.GetActivity).Methods("GET")

	// Provider webhooks
	r.HandleFunc("/webhooks/luma", deps.WebhookHandler.HandleLumaWebhook).Methods("POST")

	// Imported cover images
	r.PathPrefix("/media/").Handler(http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.Media.Dir))))
}
