package luma

import (
	"context"
	"sync"
	"time"
)

// ClientStub is an in-memory Client for tests.
type ClientStub struct {
	mu sync.RWMutex

	CalendarData *Calendar
	Events       []Event
	WebhookData  *Webhook

	GetCalendarErr   error
	ListEventsErr    error
	CreateWebhookErr error

	CreatedWebhookUrl        string
	CreatedWebhookEventTypes []string
	ListCalls                int
}

func NewClientStub() *ClientStub {
	return &ClientStub{}
}

func (c *ClientStub) GetCalendar(ctx context.Context) (*Calendar, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.GetCalendarErr != nil {
		return nil, c.GetCalendarErr
	}
	if c.CalendarData == nil {
		return &Calendar{ApiId: "cal-stub", Slug: "stub", Name: "Stub Calendar"}, nil
	}
	cal := *c.CalendarData
	return &cal, nil
}

func (c *ClientStub) ListEvents(ctx context.Context, cursor string, after *time.Time) (*EventsPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ListCalls++
	if c.ListEventsErr != nil {
		return nil, c.ListEventsErr
	}
	return &EventsPage{Events: c.filteredEvents(after)}, nil
}

func (c *ClientStub) GetAllEvents(ctx context.Context, after *time.Time) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ListCalls++
	if c.ListEventsErr != nil {
		return nil, c.ListEventsErr
	}
	return c.filteredEvents(after), nil
}

func (c *ClientStub) filteredEvents(after *time.Time) []Event {
	result := make([]Event, 0, len(c.Events))
	for _, e := range c.Events {
		if after != nil && !e.UpdatedAt.After(*after) {
			continue
		}
		result = append(result, e)
	}
	return result
}

func (c *ClientStub) CreateWebhook(ctx context.Context, callbackUrl string, eventTypes []string) (*Webhook, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CreateWebhookErr != nil {
		return nil, c.CreateWebhookErr
	}
	c.CreatedWebhookUrl = callbackUrl
	c.CreatedWebhookEventTypes = eventTypes
	if c.WebhookData == nil {
		return &Webhook{ApiId: "wh-stub", Url: callbackUrl}, nil
	}
	wh := *c.WebhookData
	return &wh, nil
}

func (c *ClientStub) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CalendarData = nil
	c.Events = nil
	c.WebhookData = nil
	c.GetCalendarErr = nil
	c.ListEventsErr = nil
	c.CreateWebhookErr = nil
	c.CreatedWebhookUrl = ""
	c.CreatedWebhookEventTypes = nil
	c.ListCalls = 0
}
