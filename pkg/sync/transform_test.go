package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/gatherly/pkg/event"
	"github.com/gatherly/gatherly/pkg/luma"
)

func providerEventFixture() luma.Event {
	return luma.Event{
		ApiId:       "evt-1",
		Name:        "Go Meetup",
		Description: "Monthly meetup",
		StartAt:     time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC),
		EndAt:       time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC),
		Timezone:    "Europe/Warsaw",
		CoverUrl:    "https://images.example.com/cover.jpg",
		Url:         "https://lu.ma/go-meetup",
		Visibility:  "public",
		UpdatedAt:   time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC),
	}
}

func TestTransformEvent(t *testing.T) {
	t.Run("should map all provider fields", func(t *testing.T) {
		// given
		providerEvent := providerEventFixture()
		providerEvent.GeoAddress = &luma.GeoAddress{
			VenueName: "Tech Hub",
			Address:   "Main St 1",
			City:      "Warsaw",
			Country:   "Poland",
		}
		providerEvent.Hosts = []luma.Host{{ApiId: "h1", Name: "Alice"}, {ApiId: "h2", Name: "Bob"}}

		// when
		result, err := TransformEvent(providerEvent)

		// then
		require.NoError(t, err)
		assert.Equal(t, "Go Meetup", result.Name)
		assert.Equal(t, "Monthly meetup", result.Description)
		assert.Equal(t, providerEvent.StartAt, result.StartTime)
		assert.Equal(t, providerEvent.EndAt, result.EndTime)
		assert.Equal(t, "Europe/Warsaw", result.Timezone)
		assert.Equal(t, event.LocationInPerson, result.LocationType)
		assert.Equal(t, "Tech Hub", result.VenueName)
		assert.Equal(t, "Main St 1", result.Address)
		assert.Equal(t, "Warsaw", result.City)
		assert.Equal(t, "Poland", result.Country)
		assert.Equal(t, "Alice, Bob", result.OrganizerName)
		assert.Equal(t, "https://images.example.com/cover.jpg", result.CoverSourceUrl)
		assert.Equal(t, "https://lu.ma/go-meetup", result.ExternalUrl)
	})

	t.Run("should default to virtual when no location is present", func(t *testing.T) {
		// given
		providerEvent := providerEventFixture()
		providerEvent.GeoAddress = nil

		// when
		result, err := TransformEvent(providerEvent)

		// then
		require.NoError(t, err)
		assert.Equal(t, event.LocationVirtual, result.LocationType)
		assert.Empty(t, result.VenueName)
	})

	t.Run("should treat empty geo address as virtual", func(t *testing.T) {
		// given
		providerEvent := providerEventFixture()
		providerEvent.GeoAddress = &luma.GeoAddress{}

		// when
		result, err := TransformEvent(providerEvent)

		// then
		require.NoError(t, err)
		assert.Equal(t, event.LocationVirtual, result.LocationType)
	})

	t.Run("should treat partial geo address as in-person", func(t *testing.T) {
		// given
		providerEvent := providerEventFixture()
		providerEvent.GeoAddress = &luma.GeoAddress{City: "Berlin"}

		// when
		result, err := TransformEvent(providerEvent)

		// then
		require.NoError(t, err)
		assert.Equal(t, event.LocationInPerson, result.LocationType)
		assert.Equal(t, "Berlin", result.City)
	})

	t.Run("should fail when name is missing", func(t *testing.T) {
		// given
		providerEvent := providerEventFixture()
		providerEvent.Name = "   "

		// when
		_, err := TransformEvent(providerEvent)

		// then
		assert.ErrorIs(t, err, ErrMissingEventName)
	})

	t.Run("should skip hosts without a name", func(t *testing.T) {
		// given
		providerEvent := providerEventFixture()
		providerEvent.Hosts = []luma.Host{{ApiId: "h1"}, {ApiId: "h2", Name: "Carol"}}

		// when
		result, err := TransformEvent(providerEvent)

		// then
		require.NoError(t, err)
		assert.Equal(t, "Carol", result.OrganizerName)
	})
}

func TestShouldUpdateEvent(t *testing.T) {
	lastSynced := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

	t.Run("should update when provider timestamp is newer", func(t *testing.T) {
		assert.True(t, ShouldUpdateEvent(lastSynced, lastSynced.Add(time.Second)))
	})

	t.Run("should not update when provider timestamp is equal", func(t *testing.T) {
		assert.False(t, ShouldUpdateEvent(lastSynced, lastSynced))
	})

	t.Run("should not update when provider timestamp is older", func(t *testing.T) {
		assert.False(t, ShouldUpdateEvent(lastSynced, lastSynced.Add(-time.Hour)))
	})
}

func TestMergeEventUpdates(t *testing.T) {
	t.Run("should produce empty patch when nothing changed", func(t *testing.T) {
		// given
		providerEvent := providerEventFixture()
		existing, err := TransformEvent(providerEvent)
		require.NoError(t, err)

		// when
		patch, err := MergeEventUpdates(existing, providerEvent)

		// then
		require.NoError(t, err)
		assert.True(t, patch.IsEmpty())
	})

	t.Run("should patch only changed fields", func(t *testing.T) {
		// given
		providerEvent := providerEventFixture()
		existing, err := TransformEvent(providerEvent)
		require.NoError(t, err)
		providerEvent.Name = "Go Meetup (rescheduled)"
		providerEvent.StartAt = providerEvent.StartAt.Add(24 * time.Hour)

		// when
		patch, err := MergeEventUpdates(existing, providerEvent)

		// then
		require.NoError(t, err)
		require.NotNil(t, patch.Name)
		assert.Equal(t, "Go Meetup (rescheduled)", *patch.Name)
		require.NotNil(t, patch.StartTime)
		assert.Equal(t, providerEvent.StartAt, *patch.StartTime)
		assert.Nil(t, patch.Description)
		assert.Nil(t, patch.EndTime)
		assert.Nil(t, patch.Timezone)
		assert.Nil(t, patch.LocationType)
		assert.Nil(t, patch.OrganizerName)
		assert.Nil(t, patch.ExternalUrl)
	})

	t.Run("should detect location change to in-person", func(t *testing.T) {
		// given
		providerEvent := providerEventFixture()
		existing, err := TransformEvent(providerEvent)
		require.NoError(t, err)
		providerEvent.GeoAddress = &luma.GeoAddress{VenueName: "Tech Hub", City: "Warsaw"}

		// when
		patch, err := MergeEventUpdates(existing, providerEvent)

		// then
		require.NoError(t, err)
		require.NotNil(t, patch.LocationType)
		assert.Equal(t, event.LocationInPerson, *patch.LocationType)
		require.NotNil(t, patch.VenueName)
		assert.Equal(t, "Tech Hub", *patch.VenueName)
	})

	t.Run("should detect cover source change", func(t *testing.T) {
		// given
		providerEvent := providerEventFixture()
		existing, err := TransformEvent(providerEvent)
		require.NoError(t, err)
		providerEvent.CoverUrl = "https://images.example.com/cover-v2.jpg"

		// when
		patch, err := MergeEventUpdates(existing, providerEvent)

		// then
		require.NoError(t, err)
		require.NotNil(t, patch.CoverSourceUrl)
		assert.Equal(t, "https://images.example.com/cover-v2.jpg", *patch.CoverSourceUrl)
	})

	t.Run("should fail when provider event lost its name", func(t *testing.T) {
		// given
		providerEvent := providerEventFixture()
		existing, err := TransformEvent(providerEvent)
		require.NoError(t, err)
		providerEvent.Name = ""

		// when
		_, err = MergeEventUpdates(existing, providerEvent)

		// then
		assert.ErrorIs(t, err, ErrMissingEventName)
	})
}
