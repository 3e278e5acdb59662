package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/callbook/callbook/internal/config"
	"github.com/callbook/callbook/pkg/connection"
	log "github.com/sirupsen/logrus"
)

const (
	calendlyBaseURL  = "https://api.calendly.com"
	calendlyTokenURL = "https://auth.calendly.com/oauth/token"
)

// calendlyAdapter is the read-only vendor. Calendly owns event creation
// through its own scheduling pages, so CreateEvent and UpdateEvent report a
// CapabilityError and cancellation goes through the cancellation endpoint
// instead of a hard delete.
type calendlyAdapter struct {
	clientId     string
	clientSecret string
	userURI      string
	refreshToken string
	client       *http.Client
	baseURL      string
	tokenURL     string
}

func newCalendlyAdapter(conn *connection.Connection, cfg config.Calendly) *calendlyAdapter {
	return &calendlyAdapter{
		clientId:     cfg.ClientId,
		clientSecret: cfg.ClientSecret,
		userURI:      conn.CalendarId,
		refreshToken: conn.RefreshToken,
		client:       &http.Client{Timeout: 10 * time.Second},
		baseURL:      calendlyBaseURL,
		tokenURL:     calendlyTokenURL,
	}
}

func (c *calendlyAdapter) SupportsEventUpdates() bool {
	return false
}

func (c *calendlyAdapter) RefreshToken(ctx context.Context) (Token, error) {
	form := url.Values{}
	form.Set("client_id", c.clientId)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.refreshToken)

	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, &TokenRefreshError{Provider: connection.ProviderCalendly, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("Calendly token refresh request failed: %v", err)
		return Token{}, &TokenRefreshError{Provider: connection.ProviderCalendly, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
		log.Error(err)
		return Token{}, &TokenRefreshError{Provider: connection.ProviderCalendly, Err: err}
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Token{}, &TokenRefreshError{Provider: connection.ProviderCalendly, Err: err}
	}

	refreshToken := result.RefreshToken
	if refreshToken == "" {
		refreshToken = c.refreshToken
	}
	return Token{
		AccessToken:  result.AccessToken,
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}, nil
}

func (c *calendlyAdapter) CreateEvent(ctx context.Context, accessToken string, event Event) (*Event, error) {
	return nil, &CapabilityError{Provider: connection.ProviderCalendly, Operation: "event creation"}
}

func (c *calendlyAdapter) UpdateEvent(ctx context.Context, accessToken string, eventId string, event Event) (*Event, error) {
	return nil, &CapabilityError{Provider: connection.ProviderCalendly, Operation: "event updates"}
}

func (c *calendlyAdapter) GetEvent(ctx context.Context, accessToken string, eventId string) (*Event, error) {
	var result struct {
		Resource calendlyEvent `json:"resource"`
	}
	err := c.get(ctx, accessToken, c.baseURL+"/scheduled_events/"+eventId, &result)
	if err != nil {
		return nil, err
	}
	return fromCalendlyEvent(&result.Resource), nil
}

func (c *calendlyAdapter) ListEvents(ctx context.Context, accessToken string, start, end time.Time) ([]Event, error) {
	params := url.Values{}
	params.Set("user", c.userURI)
	params.Set("min_start_time", start.UTC().Format(time.RFC3339))
	params.Set("max_start_time", end.UTC().Format(time.RFC3339))
	params.Set("status", "active")

	var result struct {
		Collection []calendlyEvent `json:"collection"`
	}
	err := c.get(ctx, accessToken, c.baseURL+"/scheduled_events?"+params.Encode(), &result)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(result.Collection))
	for _, item := range result.Collection {
		events = append(events, *fromCalendlyEvent(&item))
	}
	return events, nil
}

// DeleteEvent cancels the scheduled event. Calendly keeps a cancelled record
// rather than removing the event outright.
func (c *calendlyAdapter) DeleteEvent(ctx context.Context, accessToken string, eventId string) error {
	payload, err := json.Marshal(map[string]string{"reason": "Cancelled by the business"})
	if err != nil {
		return err
	}

	endpoint := c.baseURL + "/scheduled_events/" + eventId + "/cancellation"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		log.Errorf("Failed to create request: %v", err)
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("Failed to execute request: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return c.responseError(resp)
	}
	return nil
}

func (c *calendlyAdapter) CheckAvailability(ctx context.Context, accessToken string, start, end time.Time) (*Availability, error) {
	return checkWindow(ctx, c, accessToken, start, end)
}

func (c *calendlyAdapter) get(ctx context.Context, accessToken, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		log.Errorf("Failed to create request: %v", err)
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("Failed to execute request: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.responseError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Errorf("Failed to decode response: %v", err)
		return err
	}
	return nil
}

func (c *calendlyAdapter) responseError(resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound {
		return ErrEventNotFound
	}

	message := resp.Status
	var calendlyErr struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&calendlyErr); err == nil && calendlyErr.Message != "" {
		message = calendlyErr.Message
	}
	log.Errorf("Calendly returned non-success status %d: %s", resp.StatusCode, message)
	return &APIError{
		Provider:   connection.ProviderCalendly,
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}

type calendlyEvent struct {
	URI       string `json:"uri"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func fromCalendlyEvent(item *calendlyEvent) *Event {
	start, _ := time.Parse(time.RFC3339, item.StartTime)
	end, _ := time.Parse(time.RFC3339, item.EndTime)
	return &Event{
		Id:        calendlyEventId(item.URI),
		Summary:   item.Name,
		StartTime: start,
		EndTime:   end,
		Timezone:  "UTC",
	}
}

// calendlyEventId extracts the event uuid from its API resource uri.
func calendlyEventId(uri string) string {
	if idx := strings.LastIndexByte(uri, '/'); idx >= 0 {
		return uri[idx+1:]
	}
	return uri
}
