package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrConnectionNotFound = errors.New("calendar connection not found")

type Repository interface {
	Create(ctx context.Context, conn CalendarConnection) (*CalendarConnection, error)
	GetById(ctx context.Context, id int64) (*CalendarConnection, error)
	GetByProviderCalendarId(ctx context.Context, providerCalendarId string) (*CalendarConnection, error)
	ListByOrganization(ctx context.Context, organizationId int64) ([]CalendarConnection, error)
	ListActive(ctx context.Context) ([]CalendarConnection, error)
	ListPendingVerification(ctx context.Context, maxAttempts int) ([]CalendarConnection, error)
	MarkInactive(ctx context.Context, id int64) error
	SetLastFullSync(ctx context.Context, id int64, syncedAt time.Time) error
	UpdateVerification(ctx context.Context, id int64, update VerificationUpdate) error
	ResetVerification(ctx context.Context, id int64) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const connectionColumns = `id, organization_id, calendar_slug, provider_calendar_id, api_key, active,
	sync_frequency_minutes, last_full_sync_at, verification_status, verification_attempts,
	last_verification_at, verification_error, webhook_id`

func scanConnection(row pgx.Row) (*CalendarConnection, error) {
	var c CalendarConnection
	var syncFrequencyMinutes int
	err := row.Scan(&c.Id, &c.OrganizationId, &c.CalendarSlug, &c.ProviderCalendarId, &c.ApiKey, &c.Active,
		&syncFrequencyMinutes, &c.LastFullSyncAt, &c.VerificationStatus, &c.VerificationAttempts,
		&c.LastVerificationAt, &c.VerificationError, &c.WebhookId)
	if err != nil {
		return nil, err
	}
	c.SyncFrequency = time.Duration(syncFrequencyMinutes) * time.Minute
	return &c, nil
}

func (r *RepositoryImpl) Create(ctx context.Context, conn CalendarConnection) (*CalendarConnection, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO calendar_connection
			(organization_id, calendar_slug, api_key, active, sync_frequency_minutes, verification_status)
		 VALUES ($1, $2, $3, true, $4, $5)
		 RETURNING `+connectionColumns,
		conn.OrganizationId, conn.CalendarSlug, conn.ApiKey,
		int(conn.SyncFrequency/time.Minute), VerificationPending)
	created, err := scanConnection(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert calendar connection: %w", err)
	}
	return created, nil
}

func (r *RepositoryImpl) GetById(ctx context.Context, id int64) (*CalendarConnection, error) {
	row := r.db.QueryRow(ctx, `SELECT `+connectionColumns+` FROM calendar_connection WHERE id = $1`, id)
	conn, err := scanConnection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("failed to retrieve calendar connection: %w", err)
	}
	return conn, nil
}

func (r *RepositoryImpl) GetByProviderCalendarId(ctx context.Context, providerCalendarId string) (*CalendarConnection, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM calendar_connection WHERE provider_calendar_id = $1 AND active = true`,
		providerCalendarId)
	conn, err := scanConnection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("failed to retrieve calendar connection: %w", err)
	}
	return conn, nil
}

func (r *RepositoryImpl) queryConnections(ctx context.Context, query string, args ...any) ([]CalendarConnection, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar connections: %w", err)
	}
	defer rows.Close()

	connections := make([]CalendarConnection, 0, 10)
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calendar connection: %w", err)
		}
		connections = append(connections, *conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return connections, nil
}

func (r *RepositoryImpl) ListByOrganization(ctx context.Context, organizationId int64) ([]CalendarConnection, error) {
	return r.queryConnections(ctx,
		`SELECT `+connectionColumns+` FROM calendar_connection WHERE organization_id = $1 ORDER BY id`,
		organizationId)
}

func (r *RepositoryImpl) ListActive(ctx context.Context) ([]CalendarConnection, error) {
	return r.queryConnections(ctx,
		`SELECT `+connectionColumns+` FROM calendar_connection
		 WHERE active = true AND verification_status = $1 ORDER BY id`,
		VerificationVerified)
}

func (r *RepositoryImpl) ListPendingVerification(ctx context.Context, maxAttempts int) ([]CalendarConnection, error) {
	return r.queryConnections(ctx,
		`SELECT `+connectionColumns+` FROM calendar_connection
		 WHERE active = true AND verification_status = $1 AND verification_attempts < $2 ORDER BY id`,
		VerificationPending, maxAttempts)
}

func (r *RepositoryImpl) MarkInactive(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE calendar_connection SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark calendar connection inactive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

func (r *RepositoryImpl) SetLastFullSync(ctx context.Context, id int64, syncedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE calendar_connection SET last_full_sync_at = $1 WHERE id = $2`, syncedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update last sync timestamp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

func (r *RepositoryImpl) UpdateVerification(ctx context.Context, id int64, update VerificationUpdate) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE calendar_connection
		 SET verification_status = $1,
			 verification_attempts = $2,
			 provider_calendar_id = COALESCE(NULLIF($3, ''), provider_calendar_id),
			 webhook_id = COALESCE(NULLIF($4, ''), webhook_id),
			 last_verification_at = $5,
			 verification_error = $6
		 WHERE id = $7`,
		update.Status, update.Attempts, update.ProviderCalendarId, update.WebhookId,
		update.LastAttemptAt, update.ErrorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update verification state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

// ResetVerification returns a connection to the pending state with a clean
// attempt counter. This is the only path out of the failed state.
func (r *RepositoryImpl) ResetVerification(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE calendar_connection
		 SET verification_status = $1, verification_attempts = 0, verification_error = ''
		 WHERE id = $2`,
		VerificationPending, id)
	if err != nil {
		return fmt.Errorf("failed to reset verification state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConnectionNotFound
	}
	return nil
}
