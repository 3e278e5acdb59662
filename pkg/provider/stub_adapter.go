package provider

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StubAdapter is an in-memory CalendarAdapter used by tests in this package
// and by the booking engine tests.
type StubAdapter struct {
	mu     sync.RWMutex
	events map[string]Event

	// Token is returned by RefreshToken unless RefreshErr is set.
	Token      Token
	RefreshErr error

	// CreateErr, UpdateErr and DeleteErr force the corresponding operation
	// to fail.
	CreateErr error
	UpdateErr error
	DeleteErr error

	// ReadOnly turns the stub into a vendor without create and update
	// support.
	ReadOnly bool

	// DeletedIds records every id passed to DeleteEvent, in order.
	DeletedIds []string

	// RefreshCalls counts RefreshToken invocations.
	RefreshCalls int

	// LastAccessToken records the token used by the most recent call.
	LastAccessToken string
}

func NewStubAdapter() *StubAdapter {
	return &StubAdapter{
		events: make(map[string]Event),
	}
}

// AddEvent seeds an event and returns its generated id.
func (s *StubAdapter) AddEvent(event Event) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.Id == "" {
		event.Id = uuid.New().String()
	}
	s.events[event.Id] = event
	return event.Id
}

func (s *StubAdapter) SupportsEventUpdates() bool {
	return !s.ReadOnly
}

func (s *StubAdapter) RefreshToken(ctx context.Context) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RefreshCalls++
	if s.RefreshErr != nil {
		return Token{}, s.RefreshErr
	}
	return s.Token, nil
}

func (s *StubAdapter) CreateEvent(ctx context.Context, accessToken string, event Event) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastAccessToken = accessToken
	if s.ReadOnly {
		return nil, &CapabilityError{Provider: "stub", Operation: "event creation"}
	}
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	event.Id = uuid.New().String()
	s.events[event.Id] = event
	return &event, nil
}

func (s *StubAdapter) GetEvent(ctx context.Context, accessToken string, eventId string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[eventId]
	if !ok {
		return nil, ErrEventNotFound
	}
	return &event, nil
}

func (s *StubAdapter) UpdateEvent(ctx context.Context, accessToken string, eventId string, event Event) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastAccessToken = accessToken
	if s.ReadOnly {
		return nil, &CapabilityError{Provider: "stub", Operation: "event updates"}
	}
	if s.UpdateErr != nil {
		return nil, s.UpdateErr
	}
	if _, ok := s.events[eventId]; !ok {
		return nil, ErrEventNotFound
	}
	event.Id = eventId
	s.events[eventId] = event
	return &event, nil
}

func (s *StubAdapter) DeleteEvent(ctx context.Context, accessToken string, eventId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastAccessToken = accessToken
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	if _, ok := s.events[eventId]; !ok {
		return ErrEventNotFound
	}
	delete(s.events, eventId)
	s.DeletedIds = append(s.DeletedIds, eventId)
	return nil
}

func (s *StubAdapter) CheckAvailability(ctx context.Context, accessToken string, start, end time.Time) (*Availability, error) {
	return checkWindow(ctx, s, accessToken, start, end)
}

func (s *StubAdapter) ListEvents(ctx context.Context, accessToken string, start, end time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, 0)
	for _, event := range s.events {
		if event.StartTime.Before(end) && event.EndTime.After(start) {
			events = append(events, event)
		}
	}
	return events, nil
}
