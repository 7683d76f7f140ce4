package sync

import (
	"errors"
	"strings"
	"time"

	"github.com/gatherly/gatherly/pkg/event"
	"github.com/gatherly/gatherly/pkg/luma"
)

// ErrMissingEventName marks a provider event that cannot be ingested because
// its only truly required field is absent.
var ErrMissingEventName = errors.New("provider event has no name")

// TransformEvent maps a provider event into a local event draft. Every
// optional provider field degrades to a zero value; only a missing name is
// an error. The cover image stays unresolved here: importing it into local
// storage is a separate best-effort step.
func TransformEvent(providerEvent luma.Event) (event.Event, error) {
	name := strings.TrimSpace(providerEvent.Name)
	if name == "" {
		return event.Event{}, ErrMissingEventName
	}

	e := event.Event{
		Name:           name,
		Description:    providerEvent.Description,
		StartTime:      providerEvent.StartAt,
		EndTime:        providerEvent.EndAt,
		Timezone:       providerEvent.Timezone,
		OrganizerName:  organizerLabel(providerEvent.Hosts),
		CoverSourceUrl: providerEvent.CoverUrl,
		ExternalUrl:    providerEvent.Url,
	}

	// Virtual format is assumed only when no location signal at all is
	// present; partial address data still means in-person.
	if geo := providerEvent.GeoAddress; geo != nil && (geo.VenueName != "" || geo.Address != "" || geo.City != "" || geo.Country != "") {
		e.LocationType = event.LocationInPerson
		e.VenueName = geo.VenueName
		e.Address = geo.Address
		e.City = geo.City
		e.Country = geo.Country
	} else {
		e.LocationType = event.LocationVirtual
	}

	return e, nil
}

// ShouldUpdateEvent is the timestamp pre-filter protecting against redundant
// writes: update only when the provider's own mutation timestamp is strictly
// newer than the last one we synced.
func ShouldUpdateEvent(lastKnownProviderUpdatedAt, freshProviderUpdatedAt time.Time) bool {
	return freshProviderUpdatedAt.After(lastKnownProviderUpdatedAt)
}

// MergeEventUpdates computes the minimal field-level patch between the
// current local event and the freshly transformed provider event. An empty
// patch means nothing actually changed, even when the timestamp gate passed.
// The merge is provider-authoritative for every field it knows about.
func MergeEventUpdates(existing event.Event, providerEvent luma.Event) (event.Patch, error) {
	fresh, err := TransformEvent(providerEvent)
	if err != nil {
		return event.Patch{}, err
	}

	var patch event.Patch
	if fresh.Name != existing.Name {
		patch.Name = &fresh.Name
	}
	if fresh.Description != existing.Description {
		patch.Description = &fresh.Description
	}
	if !fresh.StartTime.Equal(existing.StartTime) {
		patch.StartTime = &fresh.StartTime
	}
	if !fresh.EndTime.Equal(existing.EndTime) {
		patch.EndTime = &fresh.EndTime
	}
	if fresh.Timezone != existing.Timezone {
		patch.Timezone = &fresh.Timezone
	}
	if fresh.LocationType != existing.LocationType {
		patch.LocationType = &fresh.LocationType
	}
	if fresh.VenueName != existing.VenueName {
		patch.VenueName = &fresh.VenueName
	}
	if fresh.Address != existing.Address {
		patch.Address = &fresh.Address
	}
	if fresh.City != existing.City {
		patch.City = &fresh.City
	}
	if fresh.Country != existing.Country {
		patch.Country = &fresh.Country
	}
	if fresh.OrganizerName != existing.OrganizerName {
		patch.OrganizerName = &fresh.OrganizerName
	}
	if fresh.CoverSourceUrl != existing.CoverSourceUrl {
		patch.CoverSourceUrl = &fresh.CoverSourceUrl
	}
	if fresh.ExternalUrl != existing.ExternalUrl {
		patch.ExternalUrl = &fresh.ExternalUrl
	}

	return patch, nil
}

func organizerLabel(hosts []luma.Host) string {
	names := make([]string, 0, len(hosts))
	for _, host := range hosts {
		if host.Name != "" {
			names = append(names, host.Name)
		}
	}
	return strings.Join(names, ", ")
}
