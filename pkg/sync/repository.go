package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/gatherly/pkg/event"
)

// ErrEventAlreadyMapped is returned when another writer won the race to
// ingest the same provider event. The caller falls back to the update path.
var ErrEventAlreadyMapped = errors.New("provider event is already mapped")

const uniqueViolationCode = "23505"

type Repository interface {
	// FindMappingByProviderEventId returns nil when no mapping exists.
	FindMappingByProviderEventId(ctx context.Context, providerEventId string) (*EventMapping, error)
	// CreateEventWithMapping inserts the local event and its mapping as one
	// atomic unit. The unique constraint on the provider event id makes the
	// insert exactly-once: a conflicting concurrent insert surfaces as
	// ErrEventAlreadyMapped.
	CreateEventWithMapping(ctx context.Context, draft event.Event, providerEventId string, connectionId int64, providerUpdatedAt time.Time, syncedAt time.Time) (*EventMapping, error)
	// TouchMapping records that a provider-side change was applied.
	TouchMapping(ctx context.Context, mappingId int64, providerUpdatedAt time.Time, syncedAt time.Time) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) FindMappingByProviderEventId(ctx context.Context, providerEventId string) (*EventMapping, error) {
	var m EventMapping
	err := r.db.QueryRow(ctx,
		`SELECT id, provider_event_id, event_id, connection_id, last_synced_at, provider_updated_at
		 FROM event_mapping WHERE provider_event_id = $1`, providerEventId).Scan(
		&m.Id, &m.ProviderEventId, &m.EventId, &m.ConnectionId, &m.LastSyncedAt, &m.ProviderUpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to retrieve event mapping: %w", err)
	}
	return &m, nil
}

func (r *RepositoryImpl) CreateEventWithMapping(ctx context.Context, draft event.Event, providerEventId string, connectionId int64, providerUpdatedAt time.Time, syncedAt time.Time) (*EventMapping, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var eventId int64
	err = tx.QueryRow(ctx,
		`INSERT INTO event
			(uid, name, description, start_time, end_time, timezone, location_type,
			 venue_name, address, city, country, organizer_name, cover_image_path, cover_source_url, external_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id`,
		uuid.New(), draft.Name, draft.Description, draft.StartTime, draft.EndTime, draft.Timezone,
		string(draft.LocationType), draft.VenueName, draft.Address, draft.City, draft.Country,
		draft.OrganizerName, draft.CoverImagePath, draft.CoverSourceUrl, draft.ExternalUrl).Scan(&eventId)
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	mapping := EventMapping{
		ProviderEventId:   providerEventId,
		EventId:           eventId,
		ConnectionId:      connectionId,
		LastSyncedAt:      syncedAt,
		ProviderUpdatedAt: providerUpdatedAt,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO event_mapping (provider_event_id, event_id, connection_id, last_synced_at, provider_updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		providerEventId, eventId, connectionId, syncedAt, providerUpdatedAt).Scan(&mapping.Id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			// The rollback deferred above also discards the orphan event row.
			return nil, ErrEventAlreadyMapped
		}
		return nil, fmt.Errorf("failed to insert event mapping: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &mapping, nil
}

func (r *RepositoryImpl) TouchMapping(ctx context.Context, mappingId int64, providerUpdatedAt time.Time, syncedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE event_mapping SET provider_updated_at = $1, last_synced_at = $2 WHERE id = $3`,
		providerUpdatedAt, syncedAt, mappingId)
	if err != nil {
		return fmt.Errorf("failed to touch event mapping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event mapping %d not found", mappingId)
	}
	return nil
}
