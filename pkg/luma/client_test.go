package luma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientImpl_GetCalendar(t *testing.T) {
	t.Run("should fetch the calendar with the API key header", func(t *testing.T) {
		// given
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/calendar/get", r.URL.Path)
			assert.Equal(t, "secret-key", r.Header.Get("x-luma-api-key"))
			json.NewEncoder(w).Encode(map[string]any{
				"calendar": Calendar{ApiId: "cal-1", Slug: "go-warsaw", Name: "Go Warsaw"},
			})
		}))
		defer server.Close()
		client := NewClient("secret-key", server.URL)

		// when
		calendar, err := client.GetCalendar(context.Background())

		// then
		require.NoError(t, err)
		assert.Equal(t, "cal-1", calendar.ApiId)
		assert.Equal(t, "go-warsaw", calendar.Slug)
	})

	t.Run("should return APIError on unauthorized response", func(t *testing.T) {
		// given
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
		}))
		defer server.Close()
		client := NewClient("wrong-key", server.URL)

		// when
		_, err := client.GetCalendar(context.Background())

		// then
		require.Error(t, err)
		assert.True(t, IsAuthError(err))
	})
}

func TestClientImpl_GetAllEvents(t *testing.T) {
	t.Run("should accumulate all pages", func(t *testing.T) {
		// given
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/calendar/list-events", r.URL.Path)
			cursor := r.URL.Query().Get("pagination_cursor")
			switch cursor {
			case "":
				json.NewEncoder(w).Encode(map[string]any{
					"entries":     []map[string]any{{"event": Event{ApiId: "evt-1", Name: "First"}}},
					"has_more":    true,
					"next_cursor": "page-2",
				})
			case "page-2":
				json.NewEncoder(w).Encode(map[string]any{
					"entries":  []map[string]any{{"event": Event{ApiId: "evt-2", Name: "Second"}}},
					"has_more": false,
				})
			default:
				t.Errorf("unexpected cursor %q", cursor)
			}
		}))
		defer server.Close()
		client := NewClient("secret-key", server.URL)

		// when
		events, err := client.GetAllEvents(context.Background(), nil)

		// then
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "evt-1", events[0].ApiId)
		assert.Equal(t, "evt-2", events[1].ApiId)
	})

	t.Run("should pass the after bound to the provider", func(t *testing.T) {
		// given
		after := time.Date(2025, 5, 25, 0, 0, 0, 0, time.UTC)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "2025-05-25T00:00:00Z", r.URL.Query().Get("after"))
			json.NewEncoder(w).Encode(map[string]any{"entries": []map[string]any{}})
		}))
		defer server.Close()
		client := NewClient("secret-key", server.URL)

		// when
		events, err := client.GetAllEvents(context.Background(), &after)

		// then
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("should fail when a page request fails", func(t *testing.T) {
		// given
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer server.Close()
		client := NewClient("secret-key", server.URL)

		// when
		_, err := client.GetAllEvents(context.Background(), nil)

		// then
		require.Error(t, err)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
		assert.False(t, IsAuthError(err))
	})
}

func TestClientImpl_CreateWebhook(t *testing.T) {
	t.Run("should register a webhook", func(t *testing.T) {
		// given
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/webhook/create", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			var request struct {
				Url        string   `json:"url"`
				EventTypes []string `json:"event_types"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			assert.Equal(t, "https://gatherly.example.com/webhooks/luma", request.Url)
			assert.Equal(t, []string{"event.created", "event.updated"}, request.EventTypes)
			json.NewEncoder(w).Encode(map[string]any{
				"webhook": Webhook{ApiId: "wh-1", Url: request.Url},
			})
		}))
		defer server.Close()
		client := NewClient("secret-key", server.URL)

		// when
		webhook, err := client.CreateWebhook(context.Background(),
			"https://gatherly.example.com/webhooks/luma", []string{"event.created", "event.updated"})

		// then
		require.NoError(t, err)
		assert.Equal(t, "wh-1", webhook.ApiId)
	})
}

func TestEvent_IsPublic(t *testing.T) {
	assert.True(t, Event{Visibility: "public"}.IsPublic())
	assert.False(t, Event{Visibility: "private"}.IsPublic())
	assert.False(t, Event{}.IsPublic())
}
