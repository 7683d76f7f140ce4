package event

import (
	"context"
	"sync"
)

// RepositoryStub is an in-memory Repository for tests.
type RepositoryStub struct {
	mu     sync.RWMutex
	items  map[int64]Event
	nextId int64
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		items:  make(map[int64]Event),
		nextId: 1,
	}
}

// Put stores an event directly, assigning an id if missing. Test helper,
// also used by the sync repository stub for atomic event+mapping inserts.
func (r *RepositoryStub) Put(e Event) Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.Id == 0 {
		e.Id = r.nextId
		r.nextId++
	}
	r.items[e.Id] = e
	return e
}

func (r *RepositoryStub) GetById(ctx context.Context, id int64) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.items[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return &e, nil
}

func (r *RepositoryStub) ApplyPatch(ctx context.Context, id int64, patch Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[id]
	if !ok {
		return ErrEventNotFound
	}
	r.items[id] = patch.Apply(e)
	return nil
}

func (r *RepositoryStub) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *RepositoryStub) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[int64]Event)
	r.nextId = 1
}
