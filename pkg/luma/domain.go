package luma

import "time"

// Calendar is the provider's own descriptor of a calendar, returned by the
// lightweight authorized read used during verification and embedded in
// webhook payloads.
type Calendar struct {
	ApiId string `json:"api_id"`
	Slug  string `json:"slug"`
	Name  string `json:"name"`
}

// GeoAddress is the provider's structured location of an in-person event.
// Every field is optional.
type GeoAddress struct {
	VenueName string `json:"venue_name"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

type Host struct {
	ApiId string `json:"api_id"`
	Name  string `json:"name"`
}

// Event is a single provider event as returned by the list endpoints and
// carried in webhook payloads.
type Event struct {
	ApiId       string      `json:"api_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	StartAt     time.Time   `json:"start_at"`
	EndAt       time.Time   `json:"end_at"`
	Timezone    string      `json:"timezone"`
	CoverUrl    string      `json:"cover_url"`
	Url         string      `json:"url"`
	MeetingUrl  string      `json:"meeting_url"`
	GeoAddress  *GeoAddress `json:"geo_address_json"`
	Hosts       []Host      `json:"hosts"`
	Visibility  string      `json:"visibility"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsPublic reports whether the event is in a publicly visible, published
// state. Only public events are ever ingested.
func (e Event) IsPublic() bool {
	return e.Visibility == "public"
}

// EventsPage is one page of the paginated event listing.
type EventsPage struct {
	Events     []Event
	NextCursor string
}

type Webhook struct {
	ApiId string `json:"api_id"`
	Url   string `json:"url"`
}
