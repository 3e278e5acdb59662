package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/callbook/callbook/internal/config"
	"github.com/callbook/callbook/pkg/connection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalendlyAdapter(server *httptest.Server) *calendlyAdapter {
	adapter := newCalendlyAdapter(&connection.Connection{
		Provider:     connection.ProviderCalendly,
		CalendarId:   "https://api.calendly.com/users/user-1",
		RefreshToken: "refresh-1",
	}, config.Calendly{ClientId: "client", ClientSecret: "secret"})
	adapter.baseURL = server.URL
	adapter.tokenURL = server.URL + "/oauth/token"
	adapter.client = server.Client()
	return adapter
}

func TestCalendlyAdapter_CreateAndUpdateAreUnsupported(t *testing.T) {
	adapter := newCalendlyAdapter(&connection.Connection{Provider: connection.ProviderCalendly}, config.Calendly{})

	assert.False(t, adapter.SupportsEventUpdates())

	_, err := adapter.CreateEvent(context.Background(), "access-1", Event{Summary: "Call"})
	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, connection.ProviderCalendly, capErr.Provider)

	_, err = adapter.UpdateEvent(context.Background(), "access-1", "evt-1", Event{Summary: "Call"})
	require.ErrorAs(t, err, &capErr)
}

func TestCalendlyAdapter_GetEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scheduled_events/evt-1", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"resource": map[string]any{
				"uri":        "https://api.calendly.com/scheduled_events/evt-1",
				"name":       "Intro call",
				"status":     "active",
				"start_time": "2024-06-10T14:00:00Z",
				"end_time":   "2024-06-10T14:30:00Z",
			},
		})
	}))
	defer server.Close()
	adapter := newTestCalendlyAdapter(server)

	event, err := adapter.GetEvent(context.Background(), "access-1", "evt-1")

	require.NoError(t, err)
	assert.Equal(t, "evt-1", event.Id)
	assert.Equal(t, "Intro call", event.Summary)
	assert.Equal(t, time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC), event.StartTime)
}

func TestCalendlyAdapter_GetEvent_notFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"title": "Resource Not Found"})
	}))
	defer server.Close()
	adapter := newTestCalendlyAdapter(server)

	_, err := adapter.GetEvent(context.Background(), "access-1", "missing")

	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestCalendlyAdapter_ListEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scheduled_events", r.URL.Path)
		assert.Equal(t, "https://api.calendly.com/users/user-1", r.URL.Query().Get("user"))
		assert.Equal(t, "active", r.URL.Query().Get("status"))
		assert.Equal(t, "2024-06-10T00:00:00Z", r.URL.Query().Get("min_start_time"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"collection": []map[string]any{
				{
					"uri":        "https://api.calendly.com/scheduled_events/evt-1",
					"name":       "Discovery call",
					"status":     "active",
					"start_time": "2024-06-10T14:00:00Z",
					"end_time":   "2024-06-10T14:30:00Z",
				},
			},
		})
	}))
	defer server.Close()
	adapter := newTestCalendlyAdapter(server)

	events, err := adapter.ListEvents(context.Background(), "access-1",
		time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].Id)
	assert.Equal(t, "Discovery call", events[0].Summary)
}

func TestCalendlyAdapter_DeleteEvent_postsCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/scheduled_events/evt-1/cancellation", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body["reason"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"resource": map[string]string{"reason": body["reason"]}})
	}))
	defer server.Close()
	adapter := newTestCalendlyAdapter(server)

	err := adapter.DeleteEvent(context.Background(), "access-1", "evt-1")

	assert.NoError(t, err)
}

func TestCalendlyAdapter_RefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "client", r.Form.Get("client_id"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-2",
			"expires_in":   7200,
		})
	}))
	defer server.Close()
	adapter := newTestCalendlyAdapter(server)

	token, err := adapter.RefreshToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "access-2", token.AccessToken)
	// Calendly may omit the refresh token; the stored one is kept.
	assert.Equal(t, "refresh-1", token.RefreshToken)
}

func TestCalendlyEventId(t *testing.T) {
	assert.Equal(t, "evt-1", calendlyEventId("https://api.calendly.com/scheduled_events/evt-1"))
	assert.Equal(t, "evt-1", calendlyEventId("evt-1"))
}
