package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/gatherly/internal/jobs"
	"github.com/gatherly/gatherly/internal/utils"
	"github.com/gatherly/gatherly/pkg/connection"
	"github.com/gatherly/gatherly/pkg/event"
	"github.com/gatherly/gatherly/pkg/images"
	"github.com/gatherly/gatherly/pkg/luma"
)

var (
	connRepoStub  = connection.NewRepositoryStub()
	eventRepoStub = event.NewRepositoryStub()
	syncRepoStub  = NewRepositoryStub(eventRepoStub)
	clientStub    = luma.NewClientStub()
	importerStub  = images.NewImporterStub()
	mockClock     = &utils.MockClock{FixedNow: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
)

var syncService *Service

func setupServiceTest(t *testing.T) func() {
	factory := func(apiKey string) luma.Client { return clientStub }
	syncService = NewService(connRepoStub, syncRepoStub, eventRepoStub, factory, importerStub, nil, mockClock)
	return func() {
		t.Log("Teardown after test")
		connRepoStub.Reset()
		eventRepoStub.Reset()
		syncRepoStub.Reset()
		clientStub.Reset()
		importerStub.Reset()
	}
}

func verifiedConnection(t *testing.T) *connection.CalendarConnection {
	t.Helper()
	conn, err := connRepoStub.Create(context.Background(), connection.CalendarConnection{
		OrganizationId: 1,
		CalendarSlug:   "go-warsaw",
		ApiKey:         "secret-key",
		SyncFrequency:  30 * time.Minute,
	})
	require.NoError(t, err)
	err = connRepoStub.UpdateVerification(context.Background(), conn.Id, connection.VerificationUpdate{
		Status:             connection.VerificationVerified,
		Attempts:           1,
		ProviderCalendarId: "cal-1",
		LastAttemptAt:      mockClock.Now(),
	})
	require.NoError(t, err)
	conn, err = connRepoStub.GetById(context.Background(), conn.Id)
	require.NoError(t, err)
	return conn
}

func TestService_SyncCalendar(t *testing.T) {
	ctx := context.Background()

	t.Run("should create local events for new provider events", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		first := providerEventFixture()
		second := providerEventFixture()
		second.ApiId = "evt-2"
		second.Name = "Go Workshop"
		clientStub.Events = []luma.Event{first, second}

		// when
		result, err := syncService.SyncCalendar(ctx, conn.Id, false, jobs.NopProgress{})

		// then
		require.NoError(t, err)
		assert.Equal(t, 2, result.EventsFound)
		assert.Equal(t, 2, result.EventsCreated)
		assert.Equal(t, 0, result.EventsUpdated)
		assert.Empty(t, result.Errors)
		assert.Equal(t, 2, eventRepoStub.Count())
		assert.Equal(t, 2, syncRepoStub.MappingCount())
	})

	t.Run("should import cover images for created events", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		clientStub.Events = []luma.Event{providerEventFixture()}

		// when
		_, err := syncService.SyncCalendar(ctx, conn.Id, false, jobs.NopProgress{})

		// then
		require.NoError(t, err)
		assert.Equal(t, []string{"https://images.example.com/cover.jpg"}, importerStub.Imported)
		mapping, err := syncRepoStub.FindMappingByProviderEventId(ctx, "evt-1")
		require.NoError(t, err)
		require.NotNil(t, mapping)
		stored, err := eventRepoStub.GetById(ctx, mapping.EventId)
		require.NoError(t, err)
		assert.Equal(t, "/media/imported-1.jpg", stored.CoverImagePath)
	})

	t.Run("should create event without cover when image import fails", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		clientStub.Events = []luma.Event{providerEventFixture()}
		importerStub.ImportErr = errors.New("image host unreachable")

		// when
		result, err := syncService.SyncCalendar(ctx, conn.Id, false, jobs.NopProgress{})

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, result.EventsCreated)
		assert.Empty(t, result.Errors)
		mapping, err := syncRepoStub.FindMappingByProviderEventId(ctx, "evt-1")
		require.NoError(t, err)
		stored, err := eventRepoStub.GetById(ctx, mapping.EventId)
		require.NoError(t, err)
		assert.Empty(t, stored.CoverImagePath)
	})

	t.Run("should not duplicate events on repeated sync", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		clientStub.Events = []luma.Event{providerEventFixture()}
		_, err := syncService.SyncCalendar(ctx, conn.Id, false, jobs.NopProgress{})
		require.NoError(t, err)

		// when
		result, err := syncService.SyncCalendar(ctx, conn.Id, true, jobs.NopProgress{})

		// then
		require.NoError(t, err)
		assert.Equal(t, 0, result.EventsCreated)
		assert.Equal(t, 1, result.EventsSkipped)
		assert.Equal(t, 1, eventRepoStub.Count())
		assert.Equal(t, 1, syncRepoStub.MappingCount())
	})

	t.Run("should update mapped event when provider timestamp is newer", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		providerEvent := providerEventFixture()
		clientStub.Events = []luma.Event{providerEvent}
		_, err := syncService.SyncCalendar(ctx, conn.Id, false, jobs.NopProgress{})
		require.NoError(t, err)

		providerEvent.Name = "Go Meetup (rescheduled)"
		providerEvent.UpdatedAt = providerEvent.UpdatedAt.Add(time.Hour)
		clientStub.Events = []luma.Event{providerEvent}

		// when
		result, err := syncService.SyncCalendar(ctx, conn.Id, true, jobs.NopProgress{})

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, result.EventsUpdated)
		mapping, err := syncRepoStub.FindMappingByProviderEventId(ctx, "evt-1")
		require.NoError(t, err)
		assert.Equal(t, providerEvent.UpdatedAt, mapping.ProviderUpdatedAt)
		stored, err := eventRepoStub.GetById(ctx, mapping.EventId)
		require.NoError(t, err)
		assert.Equal(t, "Go Meetup (rescheduled)", stored.Name)
	})

	t.Run("should skip update when provider timestamp did not advance", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		providerEvent := providerEventFixture()
		clientStub.Events = []luma.Event{providerEvent}
		_, err := syncService.SyncCalendar(ctx, conn.Id, false, jobs.NopProgress{})
		require.NoError(t, err)

		// same timestamp, changed name: the gate wins over the diff
		providerEvent.Name = "Sneaky rename"
		clientStub.Events = []luma.Event{providerEvent}

		// when
		result, err := syncService.SyncCalendar(ctx, conn.Id, true, jobs.NopProgress{})

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, result.EventsSkipped)
		mapping, err := syncRepoStub.FindMappingByProviderEventId(ctx, "evt-1")
		require.NoError(t, err)
		stored, err := eventRepoStub.GetById(ctx, mapping.EventId)
		require.NoError(t, err)
		assert.Equal(t, "Go Meetup", stored.Name)
	})

	t.Run("should skip update when timestamp advanced but nothing changed", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		providerEvent := providerEventFixture()
		clientStub.Events = []luma.Event{providerEvent}
		_, err := syncService.SyncCalendar(ctx, conn.Id, false, jobs.NopProgress{})
		require.NoError(t, err)

		providerEvent.UpdatedAt = providerEvent.UpdatedAt.Add(time.Hour)
		clientStub.Events = []luma.Event{providerEvent}

		// when
		result, err := syncService.SyncCalendar(ctx, conn.Id, true, jobs.NopProgress{})

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, result.EventsSkipped)
		assert.Equal(t, 0, result.EventsUpdated)
	})

	t.Run("should skip non-public events", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		privateEvent := providerEventFixture()
		privateEvent.Visibility = "private"
		clientStub.Events = []luma.Event{privateEvent}

		// when
		result, err := syncService.SyncCalendar(ctx, conn.Id, false, jobs.NopProgress{})

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, result.EventsSkipped)
		assert.Equal(t, 0, eventRepoStub.Count())
	})

	t.Run("should continue past one broken event", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		broken := providerEventFixture()
		broken.ApiId = "evt-broken"
		broken.Name = ""
		healthy := providerEventFixture()
		healthy.ApiId = "evt-healthy"
		clientStub.Events = []luma.Event{broken, healthy}

		// when
		result, err := syncService.SyncCalendar(ctx, conn.Id, false, jobs.NopProgress{})

		// then
		require.NoError(t, err)
		assert.Equal(t, 2, result.EventsFound)
		assert.Equal(t, 1, result.EventsCreated)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "", result.Errors[0].EventName)
		assert.Equal(t, 1, eventRepoStub.Count())
	})

	t.Run("should advance watermark even on partial failure", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		broken := providerEventFixture()
		broken.Name = ""
		clientStub.Events = []luma.Event{broken}

		// when
		_, err := syncService.SyncCalendar(ctx, conn.Id, false, jobs.NopProgress{})

		// then
		require.NoError(t, err)
		updated, err := connRepoStub.GetById(ctx, conn.Id)
		require.NoError(t, err)
		require.NotNil(t, updated.LastFullSyncAt)
		assert.Equal(t, mockClock.Now(), *updated.LastFullSyncAt)
	})

	t.Run("should sync incrementally from the watermark", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		watermark := time.Date(2025, 5, 25, 0, 0, 0, 0, time.UTC)
		require.NoError(t, connRepoStub.SetLastFullSync(ctx, conn.Id, watermark))

		stale := providerEventFixture()
		stale.ApiId = "evt-stale"
		stale.UpdatedAt = watermark.Add(-time.Hour)
		fresh := providerEventFixture()
		fresh.ApiId = "evt-fresh"
		fresh.UpdatedAt = watermark.Add(time.Hour)
		clientStub.Events = []luma.Event{stale, fresh}

		// when
		result, err := syncService.SyncCalendar(ctx, conn.Id, false, jobs.NopProgress{})

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, result.EventsFound)
		assert.Equal(t, 1, result.EventsCreated)
	})

	t.Run("should ignore the watermark on a forced full sync", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		watermark := time.Date(2025, 5, 25, 0, 0, 0, 0, time.UTC)
		require.NoError(t, connRepoStub.SetLastFullSync(ctx, conn.Id, watermark))

		stale := providerEventFixture()
		stale.UpdatedAt = watermark.Add(-time.Hour)
		clientStub.Events = []luma.Event{stale}

		// when
		result, err := syncService.SyncCalendar(ctx, conn.Id, true, jobs.NopProgress{})

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, result.EventsFound)
		assert.Equal(t, 1, result.EventsCreated)
	})

	t.Run("should fall back to update when losing the insert race", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		clientStub.Events = []luma.Event{providerEventFixture()}
		syncRepoStub.FailNextCreate = true

		// when
		result, err := syncService.SyncCalendar(ctx, conn.Id, false, jobs.NopProgress{})

		// then
		require.NoError(t, err)
		assert.Empty(t, result.Errors)
		assert.Equal(t, 1, result.EventsSkipped)
		assert.Equal(t, 1, eventRepoStub.Count())
		assert.Equal(t, 1, syncRepoStub.MappingCount())
	})

	t.Run("should fail fast when connection has no API key", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn, err := connRepoStub.Create(ctx, connection.CalendarConnection{
			OrganizationId: 1,
			CalendarSlug:   "keyless",
		})
		require.NoError(t, err)

		// when
		_, err = syncService.SyncCalendar(ctx, conn.Id, false, jobs.NopProgress{})

		// then
		assert.ErrorIs(t, err, ErrNoCredential)
		assert.Equal(t, 0, clientStub.ListCalls)
	})

	t.Run("should fail when provider listing fails", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		clientStub.ListEventsErr = errors.New("provider unavailable")

		// when
		_, err := syncService.SyncCalendar(ctx, conn.Id, false, jobs.NopProgress{})

		// then
		assert.Error(t, err)
		updated, err := connRepoStub.GetById(ctx, conn.Id)
		require.NoError(t, err)
		assert.Nil(t, updated.LastFullSyncAt)
	})

	t.Run("should fail for unknown connection", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// when
		_, err := syncService.SyncCalendar(ctx, 42, false, jobs.NopProgress{})

		// then
		assert.ErrorIs(t, err, connection.ErrConnectionNotFound)
	})

	t.Run("should report progress while syncing", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		clientStub.Events = []luma.Event{providerEventFixture()}
		progress := jobs.NewMemoryProgress()

		// when
		_, err := syncService.SyncCalendar(ctx, conn.Id, false, progress)

		// then
		require.NoError(t, err)
		assert.Equal(t, "done", progress.Get("step"))
		assert.Equal(t, 1, progress.Get("eventsFound"))
		assert.Equal(t, 1, progress.Get("eventsCreated"))
	})
}

func TestService_IngestProviderEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("should create an unmapped event", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)

		// when
		outcome, err := syncService.IngestProviderEvent(ctx, conn, providerEventFixture())

		// then
		require.NoError(t, err)
		assert.Equal(t, OutcomeCreated, outcome)
		assert.Equal(t, 1, eventRepoStub.Count())
	})

	t.Run("should update an already mapped event", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		providerEvent := providerEventFixture()
		_, err := syncService.IngestProviderEvent(ctx, conn, providerEvent)
		require.NoError(t, err)
		providerEvent.Description = "Now with pizza"
		providerEvent.UpdatedAt = providerEvent.UpdatedAt.Add(time.Minute)

		// when
		outcome, err := syncService.IngestProviderEvent(ctx, conn, providerEvent)

		// then
		require.NoError(t, err)
		assert.Equal(t, OutcomeUpdated, outcome)
		assert.Equal(t, 1, eventRepoStub.Count())
	})

	t.Run("should re-import cover when provider changed it", func(t *testing.T) {
		teardown := setupServiceTest(t)
		defer teardown()

		// given
		conn := verifiedConnection(t)
		providerEvent := providerEventFixture()
		_, err := syncService.IngestProviderEvent(ctx, conn, providerEvent)
		require.NoError(t, err)
		providerEvent.CoverUrl = "https://images.example.com/cover-v2.jpg"
		providerEvent.UpdatedAt = providerEvent.UpdatedAt.Add(time.Minute)

		// when
		outcome, err := syncService.IngestProviderEvent(ctx, conn, providerEvent)

		// then
		require.NoError(t, err)
		assert.Equal(t, OutcomeUpdated, outcome)
		assert.Equal(t, []string{
			"https://images.example.com/cover.jpg",
			"https://images.example.com/cover-v2.jpg",
		}, importerStub.Imported)
	})
}
