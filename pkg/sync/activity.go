package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gatherly/gatherly/internal/event_bus"
)

const defaultActivityCapacity = 200

// ActivityLog keeps a bounded in-memory feed of recent sync activity, fed by
// the event bus. It backs the activity endpoint used to inspect what the
// pipeline has been doing without digging through logs.
type ActivityLog struct {
	mu       sync.RWMutex
	entries  []ActivityEntry
	capacity int
}

type ActivityEntry struct {
	OccurredAt   time.Time `json:"occurredAt"`
	ConnectionId int64     `json:"connectionId"`
	Message      string    `json:"message"`
}

func NewActivityLog(bus *event_bus.EventBus) *ActivityLog {
	l := &ActivityLog{capacity: defaultActivityCapacity}
	bus.Subscribe(event_bus.EventSyncedFromProvider, l.onEventSynced)
	bus.Subscribe(event_bus.ConnectionVerified, l.onConnectionVerified)
	return l
}

func (l *ActivityLog) onEventSynced(_ context.Context, e event_bus.Event) error {
	payload, ok := e.Data.(event_bus.ProviderEventSynced)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for event %s", e.Data, e.Type)
	}
	action := "updated"
	if payload.Created {
		action = "created"
	}
	l.append(ActivityEntry{
		OccurredAt:   e.Timestamp,
		ConnectionId: payload.ConnectionId,
		Message:      fmt.Sprintf("event %d %s from provider event %s", payload.LocalEventId, action, payload.ProviderEventId),
	})
	return nil
}

func (l *ActivityLog) onConnectionVerified(_ context.Context, e event_bus.Event) error {
	payload, ok := e.Data.(event_bus.CalendarConnectionVerified)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for event %s", e.Data, e.Type)
	}
	l.append(ActivityEntry{
		OccurredAt:   e.Timestamp,
		ConnectionId: payload.ConnectionId,
		Message:      fmt.Sprintf("connection verified against provider calendar %s", payload.ProviderCalendarId),
	})
	return nil
}

func (l *ActivityLog) append(entry ActivityEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
}

// Recent returns up to limit entries, newest first.
func (l *ActivityLog) Recent(limit int) []ActivityEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if limit <= 0 || limit > len(l.entries) {
		limit = len(l.entries)
	}
	recent := make([]ActivityEntry, 0, limit)
	for i := len(l.entries) - 1; i >= len(l.entries)-limit; i-- {
		recent = append(recent, l.entries[i])
	}
	return recent
}

// GetActivity handles GET requests for the recent activity feed.
func (l *ActivityLog) GetActivity(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive number", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(l.Recent(limit)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
