package connection

import (
	"context"
	"sync"
	"time"
)

// RepositoryStub is an in-memory Repository for tests.
type RepositoryStub struct {
	mu     sync.RWMutex
	items  map[int64]CalendarConnection
	nextId int64
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		items:  make(map[int64]CalendarConnection),
		nextId: 1,
	}
}

func (r *RepositoryStub) Create(ctx context.Context, conn CalendarConnection) (*CalendarConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn.Id = r.nextId
	r.nextId++
	conn.Active = true
	conn.VerificationStatus = VerificationPending
	conn.VerificationAttempts = 0
	r.items[conn.Id] = conn
	created := conn
	return &created, nil
}

func (r *RepositoryStub) GetById(ctx context.Context, id int64) (*CalendarConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.items[id]
	if !ok {
		return nil, ErrConnectionNotFound
	}
	return &conn, nil
}

func (r *RepositoryStub) GetByProviderCalendarId(ctx context.Context, providerCalendarId string) (*CalendarConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, conn := range r.items {
		if conn.ProviderCalendarId == providerCalendarId && conn.Active {
			c := conn
			return &c, nil
		}
	}
	return nil, ErrConnectionNotFound
}

func (r *RepositoryStub) ListByOrganization(ctx context.Context, organizationId int64) ([]CalendarConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]CalendarConnection, 0)
	for id := int64(1); id < r.nextId; id++ {
		if conn, ok := r.items[id]; ok && conn.OrganizationId == organizationId {
			result = append(result, conn)
		}
	}
	return result, nil
}

func (r *RepositoryStub) ListActive(ctx context.Context) ([]CalendarConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]CalendarConnection, 0)
	for id := int64(1); id < r.nextId; id++ {
		if conn, ok := r.items[id]; ok && conn.Active && conn.VerificationStatus == VerificationVerified {
			result = append(result, conn)
		}
	}
	return result, nil
}

func (r *RepositoryStub) ListPendingVerification(ctx context.Context, maxAttempts int) ([]CalendarConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]CalendarConnection, 0)
	for id := int64(1); id < r.nextId; id++ {
		if conn, ok := r.items[id]; ok && conn.Active &&
			conn.VerificationStatus == VerificationPending && conn.VerificationAttempts < maxAttempts {
			result = append(result, conn)
		}
	}
	return result, nil
}

func (r *RepositoryStub) MarkInactive(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.items[id]
	if !ok {
		return ErrConnectionNotFound
	}
	conn.Active = false
	r.items[id] = conn
	return nil
}

func (r *RepositoryStub) SetLastFullSync(ctx context.Context, id int64, syncedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.items[id]
	if !ok {
		return ErrConnectionNotFound
	}
	conn.LastFullSyncAt = &syncedAt
	r.items[id] = conn
	return nil
}

func (r *RepositoryStub) UpdateVerification(ctx context.Context, id int64, update VerificationUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.items[id]
	if !ok {
		return ErrConnectionNotFound
	}
	conn.VerificationStatus = update.Status
	conn.VerificationAttempts = update.Attempts
	if update.ProviderCalendarId != "" {
		conn.ProviderCalendarId = update.ProviderCalendarId
	}
	if update.WebhookId != "" {
		conn.WebhookId = update.WebhookId
	}
	lastAttempt := update.LastAttemptAt
	conn.LastVerificationAt = &lastAttempt
	conn.VerificationError = update.ErrorMessage
	r.items[id] = conn
	return nil
}

func (r *RepositoryStub) ResetVerification(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.items[id]
	if !ok {
		return ErrConnectionNotFound
	}
	conn.VerificationStatus = VerificationPending
	conn.VerificationAttempts = 0
	conn.VerificationError = ""
	r.items[id] = conn
	return nil
}

func (r *RepositoryStub) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[int64]CalendarConnection)
	r.nextId = 1
}
