package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gatherly/gatherly/internal/event_bus"
	"github.com/gatherly/gatherly/internal/jobs"
	"github.com/gatherly/gatherly/internal/utils"
	"github.com/gatherly/gatherly/pkg/connection"
	"github.com/gatherly/gatherly/pkg/event"
	"github.com/gatherly/gatherly/pkg/images"
	"github.com/gatherly/gatherly/pkg/luma"
)

// ErrNoCredential marks a connection that cannot be synced because it has no
// stored API key. This is a job-level failure, not a per-event one.
var ErrNoCredential = errors.New("calendar connection has no API key")

type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
)

// SyncError records one failed provider event, keyed by its name so the
// failure is recognizable in job output.
type SyncError struct {
	EventName string `json:"eventName"`
	Err       string `json:"error"`
}

// Result summarizes one sync run.
type Result struct {
	EventsFound   int         `json:"eventsFound"`
	EventsCreated int         `json:"eventsCreated"`
	EventsUpdated int         `json:"eventsUpdated"`
	EventsSkipped int         `json:"eventsSkipped"`
	Errors        []SyncError `json:"errors,omitempty"`
}

type Service struct {
	connections   connection.Repository
	repo          Repository
	events        event.Repository
	clientFactory luma.ClientFactory
	importer      images.Importer
	bus           *event_bus.EventBus
	clock         utils.Clock
}

func NewService(connections connection.Repository, repo Repository, events event.Repository,
	clientFactory luma.ClientFactory, importer images.Importer, bus *event_bus.EventBus, clock utils.Clock) *Service {
	return &Service{
		connections:   connections,
		repo:          repo,
		events:        events,
		clientFactory: clientFactory,
		importer:      importer,
		bus:           bus,
		clock:         clock,
	}
}

// SyncCalendar runs one full or incremental sync for a single calendar
// connection. Events are processed sequentially: it bounds the per-event
// side effects and keeps writes to one local event from interleaving within
// a run. One bad event never aborts the batch; the watermark advances even
// on partial failure so syncs always make forward progress.
func (s *Service) SyncCalendar(ctx context.Context, connectionId int64, forceFullSync bool, progress jobs.Progress) (*Result, error) {
	conn, err := s.connections.GetById(ctx, connectionId)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar connection %d: %w", connectionId, err)
	}
	if conn.ApiKey == "" {
		return nil, ErrNoCredential
	}
	client := s.clientFactory(conn.ApiKey)

	progress.Set("step", "fetching")
	var after *time.Time
	if !forceFullSync && conn.LastFullSyncAt != nil {
		after = conn.LastFullSyncAt
	}
	providerEvents, err := client.GetAllEvents(ctx, after)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events from provider: %w", err)
	}

	result := &Result{EventsFound: len(providerEvents)}
	progress.Set("eventsFound", result.EventsFound)
	progress.Set("step", "syncing")

	for i, providerEvent := range providerEvents {
		progress.Set("progress", i+1)
		progress.Set("currentEvent", providerEvent.Name)

		outcome, err := s.upsertProviderEvent(ctx, conn, providerEvent)
		if err != nil {
			log.Errorf("failed to sync event %q for connection %d: %v", providerEvent.Name, conn.Id, err)
			result.Errors = append(result.Errors, SyncError{EventName: providerEvent.Name, Err: err.Error()})
			progress.Set("error", err.Error())
			continue
		}
		switch outcome {
		case OutcomeCreated:
			result.EventsCreated++
		case OutcomeUpdated:
			result.EventsUpdated++
		default:
			result.EventsSkipped++
		}
		progress.Set("eventsCreated", result.EventsCreated)
		progress.Set("eventsUpdated", result.EventsUpdated)
		progress.Set("eventsSkipped", result.EventsSkipped)
	}

	// The watermark advances unconditionally, trading a small risk of
	// missing a late-arriving event for guaranteed forward progress.
	syncedAt := s.clock.Now()
	if err := s.connections.SetLastFullSync(ctx, conn.Id, syncedAt); err != nil {
		log.Errorf("failed to advance sync watermark for connection %d: %v", conn.Id, err)
		return result, fmt.Errorf("failed to advance sync watermark: %w", err)
	}

	progress.Set("step", "done")
	log.Infof("synced calendar connection %d: found=%d created=%d updated=%d skipped=%d errors=%d",
		conn.Id, result.EventsFound, result.EventsCreated, result.EventsUpdated, result.EventsSkipped, len(result.Errors))
	return result, nil
}

// IngestProviderEvent is the single-event upsert path used by webhook
// ingestion. It is idempotent for the same reason the batch path is: gated
// by the mapping uniqueness constraint and the timestamp/diff checks.
func (s *Service) IngestProviderEvent(ctx context.Context, conn *connection.CalendarConnection, providerEvent luma.Event) (Outcome, error) {
	return s.upsertProviderEvent(ctx, conn, providerEvent)
}

func (s *Service) upsertProviderEvent(ctx context.Context, conn *connection.CalendarConnection, providerEvent luma.Event) (Outcome, error) {
	if !providerEvent.IsPublic() {
		log.Debugf("skipping non-public event %q", providerEvent.Name)
		return OutcomeSkipped, nil
	}

	mapping, err := s.repo.FindMappingByProviderEventId(ctx, providerEvent.ApiId)
	if err != nil {
		return "", err
	}
	if mapping == nil {
		outcome, err := s.createFromProviderEvent(ctx, conn, providerEvent)
		if !errors.Is(err, ErrEventAlreadyMapped) {
			return outcome, err
		}
		// Lost the race against a concurrent ingestion of the same provider
		// event; whoever committed first owns the insert, we update instead.
		mapping, err = s.repo.FindMappingByProviderEventId(ctx, providerEvent.ApiId)
		if err != nil {
			return "", err
		}
		if mapping == nil {
			return "", fmt.Errorf("provider event %s reported as mapped but mapping not found", providerEvent.ApiId)
		}
	}

	return s.updateFromProviderEvent(ctx, conn, *mapping, providerEvent)
}

func (s *Service) createFromProviderEvent(ctx context.Context, conn *connection.CalendarConnection, providerEvent luma.Event) (Outcome, error) {
	draft, err := TransformEvent(providerEvent)
	if err != nil {
		return "", err
	}

	if providerEvent.CoverUrl != "" {
		// Best-effort: the event is created without a banner rather than
		// failing the whole upsert.
		path, err := s.importer.ImportFromUrl(ctx, providerEvent.CoverUrl)
		if err != nil {
			log.Warnf("failed to import cover image for event %q: %v", providerEvent.Name, err)
		} else {
			draft.CoverImagePath = path
		}
	}

	syncedAt := s.clock.Now()
	mapping, err := s.repo.CreateEventWithMapping(ctx, draft, providerEvent.ApiId, conn.Id, providerEvent.UpdatedAt, syncedAt)
	if err != nil {
		return "", err
	}

	s.publishSynced(ctx, conn.Id, providerEvent.ApiId, mapping.EventId, true, syncedAt)
	return OutcomeCreated, nil
}

func (s *Service) updateFromProviderEvent(ctx context.Context, conn *connection.CalendarConnection, mapping EventMapping, providerEvent luma.Event) (Outcome, error) {
	if !ShouldUpdateEvent(mapping.ProviderUpdatedAt, providerEvent.UpdatedAt) {
		return OutcomeSkipped, nil
	}

	existing, err := s.events.GetById(ctx, mapping.EventId)
	if err != nil {
		return "", fmt.Errorf("failed to load local event %d: %w", mapping.EventId, err)
	}

	// The timestamp says "maybe changed"; the diff verifies semantically.
	patch, err := MergeEventUpdates(*existing, providerEvent)
	if err != nil {
		return "", err
	}
	if patch.IsEmpty() {
		return OutcomeSkipped, nil
	}

	if patch.CoverSourceUrl != nil && *patch.CoverSourceUrl != "" {
		path, err := s.importer.ImportFromUrl(ctx, *patch.CoverSourceUrl)
		if err != nil {
			log.Warnf("failed to import cover image for event %q: %v", providerEvent.Name, err)
		} else {
			patch.CoverImagePath = &path
		}
	}

	if err := s.events.ApplyPatch(ctx, mapping.EventId, patch); err != nil {
		return "", fmt.Errorf("failed to patch local event %d: %w", mapping.EventId, err)
	}
	syncedAt := s.clock.Now()
	if err := s.repo.TouchMapping(ctx, mapping.Id, providerEvent.UpdatedAt, syncedAt); err != nil {
		return "", err
	}

	s.publishSynced(ctx, conn.Id, providerEvent.ApiId, mapping.EventId, false, syncedAt)
	return OutcomeUpdated, nil
}

func (s *Service) publishSynced(ctx context.Context, connectionId int64, providerEventId string, localEventId int64, created bool, syncedAt time.Time) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(ctx, event_bus.NewEvent(event_bus.EventSyncedFromProvider, event_bus.ProviderEventSynced{
		ConnectionId:    connectionId,
		ProviderEventId: providerEventId,
		LocalEventId:    localEventId,
		Created:         created,
		SyncedAt:        syncedAt,
	}))
}
