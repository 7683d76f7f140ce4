package sync

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/gatherly/gatherly/pkg/connection"
	"github.com/gatherly/gatherly/pkg/luma"
)

// WebhookHandler receives push notifications from the provider and runs the
// single-event upsert path.
type WebhookHandler struct {
	connections connection.Repository
	service     *Service
}

// webhookPayload is the provider's tagged union, keyed by event_type. The
// payload carries the full event object plus an embedded calendar
// descriptor identifying which connection it belongs to.
type webhookPayload struct {
	EventType string `json:"event_type"`
	Data      struct {
		Event    luma.Event    `json:"event"`
		Calendar luma.Calendar `json:"calendar"`
	} `json:"data"`
}

func NewWebhookHandler(connections connection.Repository, service *Service) *WebhookHandler {
	return &WebhookHandler{
		connections: connections,
		service:     service,
	}
}

func (h *WebhookHandler) HandleLumaWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !ingestedEventType(payload.EventType) {
		log.Debugf("ignoring webhook event type %s", payload.EventType)
		h.writeStatus(w, "ignored")
		return
	}

	conn, err := h.connections.GetByProviderCalendarId(r.Context(), payload.Data.Calendar.ApiId)
	if err != nil {
		if errors.Is(err, connection.ErrConnectionNotFound) {
			// Unknown calendar: acknowledge so the provider stops retrying.
			log.Warnf("webhook for unknown calendar %s (%s)", payload.Data.Calendar.ApiId, payload.Data.Calendar.Slug)
			h.writeStatus(w, "ignored")
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	outcome, err := h.service.IngestProviderEvent(r.Context(), conn, payload.Data.Event)
	if err != nil {
		log.Errorf("failed to ingest webhook event %q: %v", payload.Data.Event.Name, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeStatus(w, string(outcome))
}

func (h *WebhookHandler) writeStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": status}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func ingestedEventType(eventType string) bool {
	switch eventType {
	case "calendar.event.added", "event.created", "event.updated":
		return true
	default:
		return false
	}
}
