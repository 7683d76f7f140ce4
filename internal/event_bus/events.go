package event_bus

import "time"

const (
	EventSyncedFromProvider EventType = "sync.event.synced"
	ConnectionVerified      EventType = "sync.connection.verified"
)

// ProviderEventSynced is published whenever the sync pipeline creates or
// updates a local event from provider data.
type ProviderEventSynced struct {
	ConnectionId    int64
	ProviderEventId string
	LocalEventId    int64
	Created         bool
	SyncedAt        time.Time
}

// CalendarConnectionVerified is published when a connection transitions to
// the verified state.
type CalendarConnectionVerified struct {
	ConnectionId       int64
	ProviderCalendarId string
}
