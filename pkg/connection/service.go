package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gatherly/gatherly/pkg/organization"
)

var (
	ErrMissingApiKey = errors.New("calendar connection requires an API key")
	ErrMissingSlug   = errors.New("calendar connection requires a calendar slug")
	ErrNotOwner      = errors.New("calendar connection belongs to a different organization")
)

// VerifyTrigger submits a verification job for the connection.
type VerifyTrigger func(ctx context.Context, connectionId int64) error

// SyncTrigger submits a sync job for the connection.
type SyncTrigger func(ctx context.Context, connectionId int64, forceFullSync bool) error

type Service interface {
	Connect(ctx context.Context, calendarSlug string, apiKey string, syncFrequency time.Duration) (*CalendarConnection, error)
	Get(ctx context.Context, id int64) (*CalendarConnection, error)
	List(ctx context.Context) ([]CalendarConnection, error)
	Disconnect(ctx context.Context, id int64) error
	Reverify(ctx context.Context, id int64) error
	TriggerSync(ctx context.Context, id int64, forceFullSync bool) error
}

type ServiceImpl struct {
	repo          Repository
	triggerVerify VerifyTrigger
	triggerSync   SyncTrigger
}

func NewService(repo Repository, triggerVerify VerifyTrigger, triggerSync SyncTrigger) *ServiceImpl {
	return &ServiceImpl{
		repo:          repo,
		triggerVerify: triggerVerify,
		triggerSync:   triggerSync,
	}
}

// Connect stores a new pending connection and submits its first verification.
func (s *ServiceImpl) Connect(ctx context.Context, calendarSlug string, apiKey string, syncFrequency time.Duration) (*CalendarConnection, error) {
	orgId, err := organization.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current organization: %w", err)
	}
	if calendarSlug == "" {
		return nil, ErrMissingSlug
	}
	if apiKey == "" {
		return nil, ErrMissingApiKey
	}
	if syncFrequency <= 0 {
		syncFrequency = 30 * time.Minute
	}

	created, err := s.repo.Create(ctx, CalendarConnection{
		OrganizationId: orgId,
		CalendarSlug:   calendarSlug,
		ApiKey:         apiKey,
		SyncFrequency:  syncFrequency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar connection: %w", err)
	}

	if err := s.triggerVerify(ctx, created.Id); err != nil {
		// Verification will still happen through the periodic retry sweep.
		log.Errorf("failed to trigger verification for connection %d: %v", created.Id, err)
	}

	return created, nil
}

func (s *ServiceImpl) Get(ctx context.Context, id int64) (*CalendarConnection, error) {
	conn, err := s.ownedConnection(ctx, id)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *ServiceImpl) List(ctx context.Context) ([]CalendarConnection, error) {
	orgId, err := organization.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current organization: %w", err)
	}
	return s.repo.ListByOrganization(ctx, orgId)
}

// Disconnect marks the connection inactive. Connections are never hard-deleted.
func (s *ServiceImpl) Disconnect(ctx context.Context, id int64) error {
	if _, err := s.ownedConnection(ctx, id); err != nil {
		return err
	}
	return s.repo.MarkInactive(ctx, id)
}

// Reverify resets the verification state machine and submits a fresh attempt.
// This is the only path that can resurrect a failed connection.
func (s *ServiceImpl) Reverify(ctx context.Context, id int64) error {
	if _, err := s.ownedConnection(ctx, id); err != nil {
		return err
	}
	if err := s.repo.ResetVerification(ctx, id); err != nil {
		return fmt.Errorf("failed to reset verification: %w", err)
	}
	if err := s.triggerVerify(ctx, id); err != nil {
		return fmt.Errorf("failed to trigger verification: %w", err)
	}
	return nil
}

func (s *ServiceImpl) TriggerSync(ctx context.Context, id int64, forceFullSync bool) error {
	if _, err := s.ownedConnection(ctx, id); err != nil {
		return err
	}
	if err := s.triggerSync(ctx, id, forceFullSync); err != nil {
		return fmt.Errorf("failed to trigger sync: %w", err)
	}
	return nil
}

func (s *ServiceImpl) ownedConnection(ctx context.Context, id int64) (*CalendarConnection, error) {
	orgId, err := organization.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current organization: %w", err)
	}
	conn, err := s.repo.GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	if conn.OrganizationId != orgId {
		return nil, ErrNotOwner
	}
	return conn, nil
}
