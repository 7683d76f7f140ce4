package connection

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gatherly/gatherly/internal/rest"
)

type Handler struct {
	service Service
}

type ConnectionDTO struct {
	Id                   int64      `json:"id"`
	CalendarSlug         string     `json:"calendarSlug"`
	ProviderCalendarId   string     `json:"providerCalendarId,omitempty"`
	Active               bool       `json:"active"`
	SyncFrequencyMinutes int        `json:"syncFrequencyMinutes"`
	LastFullSyncAt       *time.Time `json:"lastFullSyncAt,omitempty"`
	VerificationStatus   string     `json:"verificationStatus"`
	VerificationAttempts int        `json:"verificationAttempts"`
	VerificationError    string     `json:"verificationError,omitempty"`
	WebhookRegistered    bool       `json:"webhookRegistered"`
}

type CreateConnectionDTO struct {
	CalendarSlug         string `json:"calendarSlug"`
	ApiKey               string `json:"apiKey"`
	SyncFrequencyMinutes int    `json:"syncFrequencyMinutes"`
}

func NewHandler(service Service) *Handler {
	return &Handler{service}
}

func (h *Handler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var dto CreateConnectionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.service.Connect(r.Context(), dto.CalendarSlug, dto.ApiKey,
		time.Duration(dto.SyncFrequencyMinutes)*time.Minute)
	if err != nil {
		if errors.Is(err, ErrMissingSlug) || errors.Is(err, ErrMissingApiKey) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
				Error: err.Error(),
			})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(connectionToDTO(*created)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	connections, err := h.service.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	dtos := make([]ConnectionDTO, 0, len(connections))
	for _, conn := range connections {
		dtos = append(dtos, connectionToDTO(conn))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) GetConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := h.connectionId(w, r)
	if !ok {
		return
	}

	conn, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(connectionToDTO(*conn)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) DisconnectConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := h.connectionId(w, r)
	if !ok {
		return
	}

	if err := h.service.Disconnect(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReverifyConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := h.connectionId(w, r)
	if !ok {
		return
	}

	if err := h.service.Reverify(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	id, ok := h.connectionId(w, r)
	if !ok {
		return
	}
	forceFullSync := r.URL.Query().Get("full") == "true"

	if err := h.service.TriggerSync(r.Context(), id, forceFullSync); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) connectionId(w http.ResponseWriter, r *http.Request) (int64, bool) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["connectionId"], 10, 64)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error:   "Invalid connection id",
			Details: "connection id must be an integer",
		})
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrConnectionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrNotOwner):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func connectionToDTO(c CalendarConnection) ConnectionDTO {
	return ConnectionDTO{
		Id:                   c.Id,
		CalendarSlug:         c.CalendarSlug,
		ProviderCalendarId:   c.ProviderCalendarId,
		Active:               c.Active,
		SyncFrequencyMinutes: int(c.SyncFrequency / time.Minute),
		LastFullSyncAt:       c.LastFullSyncAt,
		VerificationStatus:   string(c.VerificationStatus),
		VerificationAttempts: c.VerificationAttempts,
		VerificationError:    c.VerificationError,
		WebhookRegistered:    c.WebhookId != "",
	}
}
