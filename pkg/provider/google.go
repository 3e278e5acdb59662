package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/callbook/callbook/internal/config"
	"github.com/callbook/callbook/pkg/connection"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// googleAdapter implements the full capability contract against the Google
// Calendar API v3. An empty calendar id in the connection means the account's
// primary calendar.
type googleAdapter struct {
	oauthConfig  *oauth2.Config
	calendarId   string
	refreshToken string
}

func newGoogleAdapter(conn *connection.Connection, cfg config.Google) *googleAdapter {
	calendarId := conn.CalendarId
	if calendarId == "" {
		calendarId = "primary"
	}
	return &googleAdapter{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientId,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gcal.CalendarEventsScope, gcal.CalendarReadonlyScope},
		},
		calendarId:   calendarId,
		refreshToken: conn.RefreshToken,
	}
}

func (g *googleAdapter) SupportsEventUpdates() bool {
	return true
}

func (g *googleAdapter) service(ctx context.Context, accessToken string) (*gcal.Service, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	service, err := gcal.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		err := fmt.Errorf("unable to build Google Calendar client: %w", err)
		log.Error(err)
		return nil, err
	}
	return service, nil
}

func (g *googleAdapter) RefreshToken(ctx context.Context) (Token, error) {
	token, err := g.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: g.refreshToken}).Token()
	if err != nil {
		log.Errorf("Google token refresh failed: %v", err)
		return Token{}, &TokenRefreshError{Provider: connection.ProviderGoogle, Err: err}
	}
	refreshToken := token.RefreshToken
	if refreshToken == "" {
		// Google only returns the refresh token on the initial grant.
		refreshToken = g.refreshToken
	}
	return Token{
		AccessToken:  token.AccessToken,
		RefreshToken: refreshToken,
		Expiry:       token.Expiry,
	}, nil
}

func (g *googleAdapter) CreateEvent(ctx context.Context, accessToken string, event Event) (*Event, error) {
	service, err := g.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	created, err := service.Events.Insert(g.calendarId, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return nil, googleError("insert event", err)
	}
	return fromGoogleEvent(created), nil
}

func (g *googleAdapter) GetEvent(ctx context.Context, accessToken string, eventId string) (*Event, error) {
	service, err := g.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	found, err := service.Events.Get(g.calendarId, eventId).Context(ctx).Do()
	if err != nil {
		return nil, googleError("get event", err)
	}
	return fromGoogleEvent(found), nil
}

func (g *googleAdapter) UpdateEvent(ctx context.Context, accessToken string, eventId string, event Event) (*Event, error) {
	service, err := g.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	updated, err := service.Events.Update(g.calendarId, eventId, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return nil, googleError("update event", err)
	}
	return fromGoogleEvent(updated), nil
}

func (g *googleAdapter) DeleteEvent(ctx context.Context, accessToken string, eventId string) error {
	service, err := g.service(ctx, accessToken)
	if err != nil {
		return err
	}
	if err := service.Events.Delete(g.calendarId, eventId).Context(ctx).Do(); err != nil {
		return googleError("delete event", err)
	}
	return nil
}

func (g *googleAdapter) CheckAvailability(ctx context.Context, accessToken string, start, end time.Time) (*Availability, error) {
	return checkWindow(ctx, g, accessToken, start, end)
}

func (g *googleAdapter) ListEvents(ctx context.Context, accessToken string, start, end time.Time) ([]Event, error) {
	service, err := g.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	result, err := service.Events.List(g.calendarId).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, googleError("list events", err)
	}

	events := make([]Event, 0, len(result.Items))
	for _, item := range result.Items {
		if item.Status == "cancelled" {
			continue
		}
		events = append(events, *fromGoogleEvent(item))
	}
	return events, nil
}

func toGoogleEvent(event Event) *gcal.Event {
	return &gcal.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Start: &gcal.EventDateTime{
			DateTime: event.StartTime.Format(time.RFC3339),
			TimeZone: event.Timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: event.EndTime.Format(time.RFC3339),
			TimeZone: event.Timezone,
		},
	}
}

func fromGoogleEvent(item *gcal.Event) *Event {
	event := &Event{
		Id:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		HTMLLink:    item.HtmlLink,
	}
	if item.Start != nil {
		event.StartTime, _ = time.Parse(time.RFC3339, item.Start.DateTime)
		event.Timezone = item.Start.TimeZone
	}
	if item.End != nil {
		event.EndTime, _ = time.Parse(time.RFC3339, item.End.DateTime)
	}
	return event
}

// googleError converts a Google API failure into the typed error taxonomy.
func googleError(operation string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone {
			return ErrEventNotFound
		}
		log.Errorf("Google Calendar %s failed with status %d: %s", operation, apiErr.Code, apiErr.Message)
		return &APIError{
			Provider:   connection.ProviderGoogle,
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
		}
	}
	err = fmt.Errorf("unable to %s in Google Calendar: %w", operation, err)
	log.Error(err)
	return err
}
