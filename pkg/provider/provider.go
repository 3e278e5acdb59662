package provider

import (
	"context"
	"time"
)

// CalendarAdapter is the capability contract implemented once per vendor.
// Adapters are bound to a single connection at construction time; the access
// token is passed per call so a freshly refreshed token can be used without
// rebuilding the adapter.
type CalendarAdapter interface {
	// RefreshToken exchanges the connection's refresh token for a new access
	// token. The caller decides whether to persist the result.
	RefreshToken(ctx context.Context) (Token, error)
	CreateEvent(ctx context.Context, accessToken string, event Event) (*Event, error)
	GetEvent(ctx context.Context, accessToken string, eventId string) (*Event, error)
	UpdateEvent(ctx context.Context, accessToken string, eventId string, event Event) (*Event, error)
	DeleteEvent(ctx context.Context, accessToken string, eventId string) error
	CheckAvailability(ctx context.Context, accessToken string, start, end time.Time) (*Availability, error)
	ListEvents(ctx context.Context, accessToken string, start, end time.Time) ([]Event, error)
	// SupportsEventUpdates reports whether CreateEvent and UpdateEvent are
	// implemented. When false those operations fail with a CapabilityError.
	SupportsEventUpdates() bool
}

// Token is a vendor-issued credential set.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Availability is the result of probing a single time window.
type Availability struct {
	Available bool
	Conflicts []Event
}

// checkWindow is the shared CheckAvailability implementation: any event the
// vendor returns inside the window marks it unavailable.
func checkWindow(ctx context.Context, a CalendarAdapter, accessToken string, start, end time.Time) (*Availability, error) {
	events, err := a.ListEvents(ctx, accessToken, start, end)
	if err != nil {
		return nil, err
	}
	return &Availability{
		Available: len(events) == 0,
		Conflicts: events,
	}, nil
}
