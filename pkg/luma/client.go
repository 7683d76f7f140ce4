package luma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultBaseUrl = "https://api.lu.ma/public/v1"

// APIError is returned for any non-2xx provider response. It carries the
// HTTP status so callers can distinguish authorization failures from
// transient ones.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("luma API returned status %d: %s", e.StatusCode, e.Body)
}

// IsAuthError reports whether err is a provider authorization failure (401/403).
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

type Client interface {
	// GetCalendar performs a lightweight authorized read of the calendar the
	// stored credential belongs to.
	GetCalendar(ctx context.Context) (*Calendar, error)
	// ListEvents fetches one page of events. cursor continues a previous page,
	// after bounds the listing to events touched after the given time.
	ListEvents(ctx context.Context, cursor string, after *time.Time) (*EventsPage, error)
	// GetAllEvents pages through the whole listing, accumulating until the
	// provider reports no next cursor.
	GetAllEvents(ctx context.Context, after *time.Time) ([]Event, error)
	// CreateWebhook registers a push webhook pointed at the given URL.
	CreateWebhook(ctx context.Context, callbackUrl string, eventTypes []string) (*Webhook, error)
}

// ClientFactory builds a Client for a stored credential. Jobs construct the
// client from the CalendarConnection record they operate on, never from
// ambient configuration.
type ClientFactory func(apiKey string) Client

type ClientImpl struct {
	apiKey     string
	baseUrl    string
	httpClient *http.Client
}

func NewClient(apiKey string, baseUrl string) *ClientImpl {
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	return &ClientImpl{
		apiKey:     apiKey,
		baseUrl:    baseUrl,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientFactory returns a ClientFactory bound to the given base URL.
func NewClientFactory(baseUrl string) ClientFactory {
	return func(apiKey string) Client {
		return NewClient(apiKey, baseUrl)
	}
}

// doRequest issues one authenticated request and decodes the 2xx response
// body into out. No retries here: retry policy belongs to the calling job.
func (c *ClientImpl) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseUrl+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-luma-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *ClientImpl) GetCalendar(ctx context.Context) (*Calendar, error) {
	var response struct {
		Calendar Calendar `json:"calendar"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/calendar/get", nil, &response); err != nil {
		return nil, err
	}
	return &response.Calendar, nil
}

func (c *ClientImpl) ListEvents(ctx context.Context, cursor string, after *time.Time) (*EventsPage, error) {
	params := url.Values{}
	if cursor != "" {
		params.Set("pagination_cursor", cursor)
	}
	if after != nil {
		params.Set("after", after.UTC().Format(time.RFC3339))
	}
	path := "/calendar/list-events"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var response struct {
		Entries []struct {
			Event Event `json:"event"`
		} `json:"entries"`
		HasMore    bool   `json:"has_more"`
		NextCursor string `json:"next_cursor"`
	}
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(response.Entries))
	for _, entry := range response.Entries {
		events = append(events, entry.Event)
	}

	page := &EventsPage{Events: events}
	if response.HasMore {
		page.NextCursor = response.NextCursor
	}
	return page, nil
}

func (c *ClientImpl) GetAllEvents(ctx context.Context, after *time.Time) ([]Event, error) {
	var allEvents []Event
	cursor := ""

	for {
		page, err := c.ListEvents(ctx, cursor, after)
		if err != nil {
			return nil, err
		}
		// Providers have been observed repeating items across page
		// boundaries; callers de-duplicate via the mapping store, not here.
		allEvents = append(allEvents, page.Events...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	log.Debugf("fetched %d events from luma", len(allEvents))
	return allEvents, nil
}

func (c *ClientImpl) CreateWebhook(ctx context.Context, callbackUrl string, eventTypes []string) (*Webhook, error) {
	request := struct {
		Url        string   `json:"url"`
		EventTypes []string `json:"event_types"`
	}{
		Url:        callbackUrl,
		EventTypes: eventTypes,
	}
	var response struct {
		Webhook Webhook `json:"webhook"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/webhook/create", request, &response); err != nil {
		return nil, err
	}
	return &response.Webhook, nil
}
