package event

import (
	"time"

	"github.com/google/uuid"
)

type LocationType string

const (
	LocationVirtual  LocationType = "virtual"
	LocationInPerson LocationType = "in_person"
)

// Event is the canonical local event record. The sync pipeline only creates
// events or patches a bounded subset of their fields; their wider lifecycle
// belongs to the rest of the application.
type Event struct {
	Id             int64
	Uid            uuid.UUID
	Name           string
	Description    string
	StartTime      time.Time
	EndTime        time.Time
	Timezone       string
	LocationType   LocationType
	VenueName      string
	Address        string
	City           string
	Country        string
	OrganizerName  string
	// CoverImagePath is the locally imported banner image; CoverSourceUrl is
	// the provider URL it was imported from, kept to detect provider-side
	// cover changes.
	CoverImagePath string
	CoverSourceUrl string
	ExternalUrl    string
}

// Patch is a field-level partial update. Nil fields are left untouched.
type Patch struct {
	Name           *string
	Description    *string
	StartTime      *time.Time
	EndTime        *time.Time
	Timezone       *string
	LocationType   *LocationType
	VenueName      *string
	Address        *string
	City           *string
	Country        *string
	OrganizerName  *string
	CoverImagePath *string
	CoverSourceUrl *string
	ExternalUrl    *string
}

// IsEmpty reports whether the patch would change nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.StartTime == nil && p.EndTime == nil &&
		p.Timezone == nil && p.LocationType == nil && p.VenueName == nil && p.Address == nil &&
		p.City == nil && p.Country == nil && p.OrganizerName == nil && p.CoverImagePath == nil &&
		p.CoverSourceUrl == nil && p.ExternalUrl == nil
}

// Apply returns a copy of e with the patch applied.
func (p Patch) Apply(e Event) Event {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		e.EndTime = *p.EndTime
	}
	if p.Timezone != nil {
		e.Timezone = *p.Timezone
	}
	if p.LocationType != nil {
		e.LocationType = *p.LocationType
	}
	if p.VenueName != nil {
		e.VenueName = *p.VenueName
	}
	if p.Address != nil {
		e.Address = *p.Address
	}
	if p.City != nil {
		e.City = *p.City
	}
	if p.Country != nil {
		e.Country = *p.Country
	}
	if p.OrganizerName != nil {
		e.OrganizerName = *p.OrganizerName
	}
	if p.CoverImagePath != nil {
		e.CoverImagePath = *p.CoverImagePath
	}
	if p.CoverSourceUrl != nil {
		e.CoverSourceUrl = *p.CoverSourceUrl
	}
	if p.ExternalUrl != nil {
		e.ExternalUrl = *p.ExternalUrl
	}
	return e
}
