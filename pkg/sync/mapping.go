package sync

import "time"

// EventMapping is the durable association between a provider event id and a
// local event, the idempotency anchor of the whole pipeline. At most one
// local event is ever created per provider event id, across all sync runs
// and webhook deliveries.
type EventMapping struct {
	Id              int64
	ProviderEventId string
	EventId         int64
	ConnectionId    int64
	LastSyncedAt    time.Time
	// ProviderUpdatedAt is the provider's own mutation timestamp, used for
	// change detection.
	ProviderUpdatedAt time.Time
}
