package sync

import (
	"context"
	"sync"
	"time"

	"github.com/gatherly/gatherly/pkg/event"
)

// RepositoryStub is an in-memory Repository for tests. It shares local event
// storage with an event.RepositoryStub so the whole upsert path can be
// exercised without a database.
type RepositoryStub struct {
	mu       sync.RWMutex
	mappings map[string]EventMapping // provider event id -> mapping
	events   *event.RepositoryStub
	nextId   int64

	CreateErr error
	// FailNextCreate simulates losing the insert race once: the rival's
	// event and mapping are committed and ErrEventAlreadyMapped is returned.
	FailNextCreate bool
}

func NewRepositoryStub(events *event.RepositoryStub) *RepositoryStub {
	return &RepositoryStub{
		mappings: make(map[string]EventMapping),
		events:   events,
		nextId:   1,
	}
}

func (r *RepositoryStub) FindMappingByProviderEventId(ctx context.Context, providerEventId string) (*EventMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.mappings[providerEventId]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *RepositoryStub) CreateEventWithMapping(ctx context.Context, draft event.Event, providerEventId string, connectionId int64, providerUpdatedAt time.Time, syncedAt time.Time) (*EventMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CreateErr != nil {
		return nil, r.CreateErr
	}
	if _, exists := r.mappings[providerEventId]; exists {
		return nil, ErrEventAlreadyMapped
	}

	stored := r.events.Put(draft)
	m := EventMapping{
		Id:                r.nextId,
		ProviderEventId:   providerEventId,
		EventId:           stored.Id,
		ConnectionId:      connectionId,
		LastSyncedAt:      syncedAt,
		ProviderUpdatedAt: providerUpdatedAt,
	}
	r.nextId++
	r.mappings[providerEventId] = m

	if r.FailNextCreate {
		r.FailNextCreate = false
		return nil, ErrEventAlreadyMapped
	}
	return &m, nil
}

func (r *RepositoryStub) TouchMapping(ctx context.Context, mappingId int64, providerUpdatedAt time.Time, syncedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, m := range r.mappings {
		if m.Id == mappingId {
			m.ProviderUpdatedAt = providerUpdatedAt
			m.LastSyncedAt = syncedAt
			r.mappings[key] = m
			return nil
		}
	}
	return nil
}

func (r *RepositoryStub) MappingCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mappings)
}

// SeedMapping stores a mapping directly. Test helper.
func (r *RepositoryStub) SeedMapping(m EventMapping) EventMapping {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.Id == 0 {
		m.Id = r.nextId
		r.nextId++
	}
	r.mappings[m.ProviderEventId] = m
	return m
}

func (r *RepositoryStub) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappings = make(map[string]EventMapping)
	r.nextId = 1
	r.CreateErr = nil
	r.FailNextCreate = false
}
