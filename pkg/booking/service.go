package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/callbook/callbook/internal/config"
	"github.com/callbook/callbook/internal/utils"
	"github.com/callbook/callbook/pkg/connection"
	"github.com/callbook/callbook/pkg/provider"
	"github.com/callbook/callbook/pkg/token"
	log "github.com/sirupsen/logrus"
)

// ErrInvalidSlot is returned when a requested date or time cannot be parsed.
var ErrInvalidSlot = errors.New("invalid date or time")

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
	slotLayout = dateLayout + " " + timeLayout

	cancelledPrefix = "CANCELLED: "
)

// Service orchestrates the four booking operations. Each operation resolves
// the applicable connection, ensures the access token is fresh, then talks to
// the vendor through the connection's adapter. No booking state is persisted
// between operations.
type Service struct {
	resolver        *connection.Resolver
	repo            connection.Repository
	factory         provider.Factory
	guard           *token.Guard
	clock           utils.Clock
	location        *time.Location
	defaultDuration time.Duration
}

func NewService(
	resolver *connection.Resolver,
	repo connection.Repository,
	factory provider.Factory,
	guard *token.Guard,
	clock utils.Clock,
	cfg config.Booking,
) (*Service, error) {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid booking timezone %q: %w", cfg.Timezone, err)
	}
	return &Service{
		resolver:        resolver,
		repo:            repo,
		factory:         factory,
		guard:           guard,
		clock:           clock,
		location:        location,
		defaultDuration: time.Duration(cfg.DefaultDurationMinutes) * time.Minute,
	}, nil
}

type CreateRequest struct {
	BusinessId      string
	ProgramId       string
	Date            string
	Time            string
	DurationMinutes int
	CustomerName    string
	ServiceName     string
	Phone           string
	Email           string
	Notes           string
}

type RescheduleRequest struct {
	BusinessId      string
	ProgramId       string
	EventId         string
	Date            string
	Time            string
	DurationMinutes int
}

type CancelRequest struct {
	BusinessId string
	ProgramId  string
	EventId    string
	Reason     string
}

type AvailabilityRequest struct {
	BusinessId      string
	ProgramId       string
	Date            string
	Time            string
	DurationMinutes int
}

// BookingResult is returned by Create and Reschedule.
type BookingResult struct {
	EventId   string
	Link      string
	StartTime time.Time
	EndTime   time.Time
	Provider  connection.Provider
}

type CancelResult struct {
	EventId  string
	Method   string
	Provider connection.Provider
}

// Cancel methods.
const (
	MethodMarkedCancelled = "marked_cancelled"
	MethodDeleted         = "deleted"
)

type AvailabilityResult struct {
	Available    bool
	Requested    Slot
	Alternatives []Slot
	Provider     connection.Provider
}

// session resolves the connection and a fresh access token for it. A token
// refreshed by the guard is persisted right away; a persistence failure is
// logged but does not block the operation, the vendor call can still proceed
// with the valid token.
func (s *Service) session(ctx context.Context, businessId, programId string) (*connection.Connection, provider.CalendarAdapter, string, error) {
	conn, err := s.resolver.Resolve(ctx, businessId, programId)
	if err != nil {
		return nil, nil, "", err
	}

	adapter, err := s.factory(conn)
	if err != nil {
		return nil, nil, "", err
	}

	freshToken, refreshed, err := s.guard.EnsureFresh(ctx, conn, adapter)
	if err != nil {
		return nil, nil, "", err
	}
	if refreshed {
		if err := s.repo.UpdateToken(ctx, conn.Id, freshToken.AccessToken, freshToken.Expiry); err != nil {
			log.Warnf("failed to persist refreshed token for connection %d: %v", conn.Id, err)
		}
	}
	return conn, adapter, freshToken.AccessToken, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*BookingResult, error) {
	start, err := s.slotStart(req.Date, req.Time, s.location)
	if err != nil {
		return nil, err
	}
	duration := s.duration(req.DurationMinutes)

	conn, adapter, accessToken, err := s.session(ctx, req.BusinessId, req.ProgramId)
	if err != nil {
		return nil, err
	}

	created, err := adapter.CreateEvent(ctx, accessToken, provider.Event{
		Summary:     buildSummary(req),
		Description: buildDescription(req),
		StartTime:   start,
		EndTime:     start.Add(duration),
		Timezone:    s.location.String(),
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Created booking %s for business %s via %s", created.Id, req.BusinessId, conn.Provider)
	return &BookingResult{
		EventId:   created.Id,
		Link:      created.HTMLLink,
		StartTime: created.StartTime,
		EndTime:   created.EndTime,
		Provider:  conn.Provider,
	}, nil
}

func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (*BookingResult, error) {
	conn, adapter, accessToken, err := s.session(ctx, req.BusinessId, req.ProgramId)
	if err != nil {
		return nil, err
	}

	existing, err := adapter.GetEvent(ctx, accessToken, req.EventId)
	if err != nil {
		return nil, err
	}

	duration := s.duration(req.DurationMinutes)
	if req.DurationMinutes <= 0 {
		duration = existing.EndTime.Sub(existing.StartTime)
	}

	location := s.location
	if existing.Timezone != "" {
		if loc, err := time.LoadLocation(existing.Timezone); err == nil {
			location = loc
		}
	}
	start, err := s.slotStart(req.Date, req.Time, location)
	if err != nil {
		return nil, err
	}

	updated, err := adapter.UpdateEvent(ctx, accessToken, req.EventId, provider.Event{
		Summary:     existing.Summary,
		Description: existing.Description,
		StartTime:   start,
		EndTime:     start.Add(duration),
		Timezone:    existing.Timezone,
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Rescheduled booking %s for business %s via %s", req.EventId, req.BusinessId, conn.Provider)
	return &BookingResult{
		EventId:   updated.Id,
		Link:      updated.HTMLLink,
		StartTime: updated.StartTime,
		EndTime:   updated.EndTime,
		Provider:  conn.Provider,
	}, nil
}

func (s *Service) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	conn, adapter, accessToken, err := s.session(ctx, req.BusinessId, req.ProgramId)
	if err != nil {
		return nil, err
	}

	if adapter.SupportsEventUpdates() {
		err := s.softCancel(ctx, adapter, accessToken, req)
		if err == nil {
			return &CancelResult{EventId: req.EventId, Method: MethodMarkedCancelled, Provider: conn.Provider}, nil
		}
		log.Warnf("Soft cancel of %s failed, falling back to delete: %v", req.EventId, err)
	}

	if err := adapter.DeleteEvent(ctx, accessToken, req.EventId); err != nil {
		return nil, err
	}
	return &CancelResult{EventId: req.EventId, Method: MethodDeleted, Provider: conn.Provider}, nil
}

// softCancel keeps the event in the vendor calendar, marked as cancelled.
func (s *Service) softCancel(ctx context.Context, adapter provider.CalendarAdapter, accessToken string, req CancelRequest) error {
	existing, err := adapter.GetEvent(ctx, accessToken, req.EventId)
	if err != nil {
		return err
	}

	note := fmt.Sprintf("Cancelled at %s", s.clock.Now().Format(time.RFC3339))
	if req.Reason != "" {
		note += ": " + req.Reason
	}
	description := note
	if existing.Description != "" {
		description = existing.Description + "\n\n" + note
	}

	cancelled := *existing
	cancelled.Summary = cancelledPrefix + existing.Summary
	cancelled.Description = description
	_, err = adapter.UpdateEvent(ctx, accessToken, req.EventId, cancelled)
	return err
}

func (s *Service) CheckAvailability(ctx context.Context, req AvailabilityRequest) (*AvailabilityResult, error) {
	start, err := s.slotStart(req.Date, req.Time, s.location)
	if err != nil {
		return nil, err
	}
	duration := s.duration(req.DurationMinutes)

	conn, adapter, accessToken, err := s.session(ctx, req.BusinessId, req.ProgramId)
	if err != nil {
		return nil, err
	}

	availability, err := adapter.CheckAvailability(ctx, accessToken, start, start.Add(duration))
	if err != nil {
		return nil, err
	}

	result := &AvailabilityResult{
		Available: availability.Available,
		Requested: Slot{Date: req.Date, Time: req.Time},
		Provider:  conn.Provider,
	}
	if !availability.Available {
		result.Alternatives = findAlternativeSlots(ctx, adapter, accessToken, s.location, start, req.Time, duration)
	}
	return result, nil
}

func (s *Service) duration(minutes int) time.Duration {
	if minutes <= 0 {
		return s.defaultDuration
	}
	return time.Duration(minutes) * time.Minute
}

func (s *Service) slotStart(date, timeOfDay string, location *time.Location) (time.Time, error) {
	start, err := time.ParseInLocation(slotLayout, date+" "+timeOfDay, location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q %q", ErrInvalidSlot, date, timeOfDay)
	}
	return start, nil
}

func buildSummary(req CreateRequest) string {
	switch {
	case req.ServiceName != "" && req.CustomerName != "":
		return req.ServiceName + " - " + req.CustomerName
	case req.ServiceName != "":
		return req.ServiceName
	case req.CustomerName != "":
		return "Booking - " + req.CustomerName
	}
	return "Booking"
}

// buildDescription lists the optional request fields one per line, skipping
// the absent ones.
func buildDescription(req CreateRequest) string {
	var lines []string
	if req.CustomerName != "" {
		lines = append(lines, "Customer: "+req.CustomerName)
	}
	if req.ServiceName != "" {
		lines = append(lines, "Service: "+req.ServiceName)
	}
	if req.Phone != "" {
		lines = append(lines, "Phone: "+req.Phone)
	}
	if req.Email != "" {
		lines = append(lines, "Email: "+req.Email)
	}
	if req.Notes != "" {
		lines = append(lines, "Notes: "+req.Notes)
	}
	return strings.Join(lines, "\n")
}
