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
	msGraphBaseURL    = "https://graph.microsoft.com/v1.0"
	msTokenURLFormat  = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	outlookTimeFormat = "2006-01-02T15:04:05"
	outlookScope      = "offline_access Calendars.ReadWrite"
)

// outlookAdapter implements the full capability contract against the
// Microsoft Graph API. Unlike Google, the token refresh goes through a
// distinct login endpoint, and window queries use the calendarView resource.
type outlookAdapter struct {
	clientId     string
	clientSecret string
	calendarId   string
	refreshToken string
	client       *http.Client
	baseURL      string
	tokenURL     string
}

func newOutlookAdapter(conn *connection.Connection, cfg config.Microsoft) *outlookAdapter {
	tenant := cfg.Tenant
	if tenant == "" {
		tenant = "common"
	}
	return &outlookAdapter{
		clientId:     cfg.ClientId,
		clientSecret: cfg.ClientSecret,
		calendarId:   conn.CalendarId,
		refreshToken: conn.RefreshToken,
		client:       &http.Client{Timeout: 10 * time.Second},
		baseURL:      msGraphBaseURL,
		tokenURL:     fmt.Sprintf(msTokenURLFormat, tenant),
	}
}

func (o *outlookAdapter) SupportsEventUpdates() bool {
	return true
}

func (o *outlookAdapter) RefreshToken(ctx context.Context) (Token, error) {
	form := url.Values{}
	form.Set("client_id", o.clientId)
	form.Set("client_secret", o.clientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", o.refreshToken)
	form.Set("scope", outlookScope)

	req, err := http.NewRequestWithContext(ctx, "POST", o.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, &TokenRefreshError{Provider: connection.ProviderOutlook, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.client.Do(req)
	if err != nil {
		log.Errorf("Microsoft token refresh request failed: %v", err)
		return Token{}, &TokenRefreshError{Provider: connection.ProviderOutlook, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
		log.Error(err)
		return Token{}, &TokenRefreshError{Provider: connection.ProviderOutlook, Err: err}
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Token{}, &TokenRefreshError{Provider: connection.ProviderOutlook, Err: err}
	}

	refreshToken := result.RefreshToken
	if refreshToken == "" {
		refreshToken = o.refreshToken
	}
	return Token{
		AccessToken:  result.AccessToken,
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}, nil
}

func (o *outlookAdapter) eventsURL() string {
	if o.calendarId == "" {
		return o.baseURL + "/me/events"
	}
	return o.baseURL + "/me/calendars/" + o.calendarId + "/events"
}

func (o *outlookAdapter) eventURL(eventId string) string {
	if o.calendarId == "" {
		return o.baseURL + "/me/events/" + eventId
	}
	return o.baseURL + "/me/calendars/" + o.calendarId + "/events/" + eventId
}

func (o *outlookAdapter) CreateEvent(ctx context.Context, accessToken string, event Event) (*Event, error) {
	var created outlookEvent
	err := o.do(ctx, accessToken, "POST", o.eventsURL(), toOutlookEvent(event), http.StatusCreated, &created)
	if err != nil {
		return nil, err
	}
	return fromOutlookEvent(&created), nil
}

func (o *outlookAdapter) GetEvent(ctx context.Context, accessToken string, eventId string) (*Event, error) {
	var found outlookEvent
	err := o.do(ctx, accessToken, "GET", o.eventURL(eventId), nil, http.StatusOK, &found)
	if err != nil {
		return nil, err
	}
	return fromOutlookEvent(&found), nil
}

func (o *outlookAdapter) UpdateEvent(ctx context.Context, accessToken string, eventId string, event Event) (*Event, error) {
	var updated outlookEvent
	err := o.do(ctx, accessToken, "PATCH", o.eventURL(eventId), toOutlookEvent(event), http.StatusOK, &updated)
	if err != nil {
		return nil, err
	}
	return fromOutlookEvent(&updated), nil
}

func (o *outlookAdapter) DeleteEvent(ctx context.Context, accessToken string, eventId string) error {
	return o.do(ctx, accessToken, "DELETE", o.eventURL(eventId), nil, http.StatusNoContent, nil)
}

func (o *outlookAdapter) CheckAvailability(ctx context.Context, accessToken string, start, end time.Time) (*Availability, error) {
	return checkWindow(ctx, o, accessToken, start, end)
}

func (o *outlookAdapter) ListEvents(ctx context.Context, accessToken string, start, end time.Time) ([]Event, error) {
	endpoint := o.baseURL + "/me/calendarView"
	if o.calendarId != "" {
		endpoint = o.baseURL + "/me/calendars/" + o.calendarId + "/calendarView"
	}
	params := url.Values{}
	params.Set("startDateTime", start.UTC().Format(time.RFC3339))
	params.Set("endDateTime", end.UTC().Format(time.RFC3339))
	params.Set("$orderby", "start/dateTime")

	var result struct {
		Value []outlookEvent `json:"value"`
	}
	err := o.do(ctx, accessToken, "GET", endpoint+"?"+params.Encode(), nil, http.StatusOK, &result)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(result.Value))
	for _, item := range result.Value {
		events = append(events, *fromOutlookEvent(&item))
	}
	return events, nil
}

// do executes one Graph request and decodes the response into out (when out
// is non-nil). Non-success responses become typed errors.
func (o *outlookAdapter) do(ctx context.Context, accessToken, method, endpoint string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		log.Errorf("Failed to create request: %v", err)
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := o.client.Do(req)
	if err != nil {
		log.Errorf("Failed to execute request: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return o.responseError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Errorf("Failed to decode response: %v", err)
			return err
		}
	}
	return nil
}

func (o *outlookAdapter) responseError(resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return ErrEventNotFound
	}

	message := resp.Status
	var graphErr struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&graphErr); err == nil && graphErr.Error.Message != "" {
		message = graphErr.Error.Message
	}
	log.Errorf("Microsoft Graph returned non-success status %d: %s", resp.StatusCode, message)
	return &APIError{
		Provider:   connection.ProviderOutlook,
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}

type outlookEvent struct {
	Id      string `json:"id"`
	Subject string `json:"subject"`
	Body    struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	Start   outlookDateTime `json:"start"`
	End     outlookDateTime `json:"end"`
	WebLink string          `json:"webLink"`
}

type outlookDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

func toOutlookEvent(event Event) map[string]any {
	tz := event.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return map[string]any{
		"subject": event.Summary,
		"body": map[string]string{
			"contentType": "text",
			"content":     event.Description,
		},
		"start": map[string]string{
			"dateTime": event.StartTime.Format(outlookTimeFormat),
			"timeZone": tz,
		},
		"end": map[string]string{
			"dateTime": event.EndTime.Format(outlookTimeFormat),
			"timeZone": tz,
		},
	}
}

func fromOutlookEvent(item *outlookEvent) *Event {
	return &Event{
		Id:          item.Id,
		Summary:     item.Subject,
		Description: item.Body.Content,
		StartTime:   parseGraphTime(item.Start),
		EndTime:     parseGraphTime(item.End),
		Timezone:    item.Start.TimeZone,
		HTMLLink:    item.WebLink,
	}
}

// parseGraphTime handles Graph's fractional-seconds format together with the
// separately transmitted time zone name.
func parseGraphTime(dt outlookDateTime) time.Time {
	value := dt.DateTime
	if idx := strings.IndexByte(value, '.'); idx >= 0 {
		value = value[:idx]
	}
	location := time.UTC
	if dt.TimeZone != "" {
		if loc, err := time.LoadLocation(dt.TimeZone); err == nil {
			location = loc
		}
	}
	parsed, err := time.ParseInLocation(outlookTimeFormat, value, location)
	if err != nil {
		log.Warnf("could not parse Graph timestamp %q: %v", dt.DateTime, err)
		return time.Time{}
	}
	return parsed
}
