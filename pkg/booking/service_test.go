package booking

import (
	"context"
	"testing"
	"time"

	"github.com/callbook/callbook/internal/config"
	"github.com/callbook/callbook/internal/utils"
	"github.com/callbook/callbook/pkg/connection"
	"github.com/callbook/callbook/pkg/provider"
	"github.com/callbook/callbook/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

// newTestService wires a Service over in-memory stubs with one active
// business-wide Google connection whose token is valid for another hour.
func newTestService(t *testing.T, adapter provider.CalendarAdapter) (*Service, *connection.RepositoryStub) {
	t.Helper()

	repo := connection.NewRepositoryStub()
	_, err := repo.Create(context.Background(), connection.Connection{
		BusinessId:  "biz-1",
		Provider:    connection.ProviderGoogle,
		AccessToken: "access-1",
		TokenExpiry: testNow.Add(time.Hour),
	})
	require.NoError(t, err)

	clock := &utils.MockClock{FixedNow: testNow}
	factory := func(conn *connection.Connection) (provider.CalendarAdapter, error) {
		return adapter, nil
	}
	service, err := NewService(
		connection.NewResolver(repo),
		repo,
		factory,
		token.NewGuard(clock),
		clock,
		config.Booking{Timezone: "UTC", DefaultDurationMinutes: 30},
	)
	require.NoError(t, err)
	return service, repo
}

func TestService_Create(t *testing.T) {
	adapter := provider.NewStubAdapter()
	service, _ := newTestService(t, adapter)

	result, err := service.Create(context.Background(), CreateRequest{
		BusinessId:   "biz-1",
		Date:         "2024-06-10",
		Time:         "14:00",
		CustomerName: "Jamie",
		ServiceName:  "Haircut",
		Phone:        "+15550100",
		Notes:        "First visit",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.EventId)
	assert.Equal(t, connection.ProviderGoogle, result.Provider)
	assert.Equal(t, time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC), result.StartTime)
	// Duration falls back to the configured 30 minute default.
	assert.Equal(t, time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC), result.EndTime)

	created, err := adapter.GetEvent(context.Background(), "access-1", result.EventId)
	require.NoError(t, err)
	assert.Equal(t, "Haircut - Jamie", created.Summary)
	assert.Equal(t, "Customer: Jamie\nService: Haircut\nPhone: +15550100\nNotes: First visit", created.Description)
}

func TestService_Create_readOnlyVendorFails(t *testing.T) {
	adapter := provider.NewStubAdapter()
	adapter.ReadOnly = true
	service, _ := newTestService(t, adapter)

	_, err := service.Create(context.Background(), CreateRequest{
		BusinessId: "biz-1",
		Date:       "2024-06-10",
		Time:       "14:00",
	})

	var capErr *provider.CapabilityError
	require.ErrorAs(t, err, &capErr)
}

func TestService_Create_invalidSlot(t *testing.T) {
	service, _ := newTestService(t, provider.NewStubAdapter())

	_, err := service.Create(context.Background(), CreateRequest{
		BusinessId: "biz-1",
		Date:       "10.06.2024",
		Time:       "14:00",
	})

	assert.ErrorIs(t, err, ErrInvalidSlot)
}

func TestService_Create_noConnection(t *testing.T) {
	service, _ := newTestService(t, provider.NewStubAdapter())

	_, err := service.Create(context.Background(), CreateRequest{
		BusinessId: "biz-unknown",
		Date:       "2024-06-10",
		Time:       "14:00",
	})

	assert.ErrorIs(t, err, connection.ErrNotFound)
}

func TestService_Reschedule(t *testing.T) {
	adapter := provider.NewStubAdapter()
	eventId := adapter.AddEvent(provider.Event{
		Summary:   "Haircut - Jamie",
		StartTime: time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 6, 10, 14, 45, 0, 0, time.UTC),
		Timezone:  "UTC",
	})
	service, _ := newTestService(t, adapter)

	result, err := service.Reschedule(context.Background(), RescheduleRequest{
		BusinessId: "biz-1",
		EventId:    eventId,
		Date:       "2024-06-12",
		Time:       "10:00",
	})

	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC), result.StartTime)
	// No explicit duration keeps the original 45 minutes.
	assert.Equal(t, time.Date(2024, 6, 12, 10, 45, 0, 0, time.UTC), result.EndTime)

	updated, err := adapter.GetEvent(context.Background(), "access-1", eventId)
	require.NoError(t, err)
	assert.Equal(t, "Haircut - Jamie", updated.Summary)
	assert.Equal(t, "UTC", updated.Timezone)
}

func TestService_Reschedule_notFound(t *testing.T) {
	service, _ := newTestService(t, provider.NewStubAdapter())

	_, err := service.Reschedule(context.Background(), RescheduleRequest{
		BusinessId: "biz-1",
		EventId:    "missing",
		Date:       "2024-06-12",
		Time:       "10:00",
	})

	assert.ErrorIs(t, err, provider.ErrEventNotFound)
}

func TestService_Cancel_marksCancelled(t *testing.T) {
	adapter := provider.NewStubAdapter()
	eventId := adapter.AddEvent(provider.Event{
		Summary:     "Haircut - Jamie",
		Description: "Customer: Jamie",
		StartTime:   time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC),
	})
	service, _ := newTestService(t, adapter)

	result, err := service.Cancel(context.Background(), CancelRequest{
		BusinessId: "biz-1",
		EventId:    eventId,
		Reason:     "customer request",
	})

	require.NoError(t, err)
	assert.Equal(t, MethodMarkedCancelled, result.Method)

	cancelled, err := adapter.GetEvent(context.Background(), "access-1", eventId)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED: Haircut - Jamie", cancelled.Summary)
	assert.Equal(t, "Customer: Jamie\n\nCancelled at 2024-06-10T08:00:00Z: customer request", cancelled.Description)
	assert.Empty(t, adapter.DeletedIds)
}

func TestService_Cancel_fallsBackToDelete(t *testing.T) {
	adapter := provider.NewStubAdapter()
	eventId := adapter.AddEvent(provider.Event{
		Summary:   "Haircut - Jamie",
		StartTime: time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC),
	})
	adapter.UpdateErr = &provider.APIError{Provider: connection.ProviderGoogle, StatusCode: 403, Message: "forbidden"}
	service, _ := newTestService(t, adapter)

	result, err := service.Cancel(context.Background(), CancelRequest{
		BusinessId: "biz-1",
		EventId:    eventId,
	})

	require.NoError(t, err)
	assert.Equal(t, MethodDeleted, result.Method)
	assert.Equal(t, []string{eventId}, adapter.DeletedIds)
}

func TestService_Cancel_readOnlyVendorDeletes(t *testing.T) {
	adapter := provider.NewStubAdapter()
	adapter.ReadOnly = true
	eventId := adapter.AddEvent(provider.Event{
		Summary:   "Discovery call",
		StartTime: time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC),
	})
	service, _ := newTestService(t, adapter)

	result, err := service.Cancel(context.Background(), CancelRequest{
		BusinessId: "biz-1",
		EventId:    eventId,
	})

	require.NoError(t, err)
	assert.Equal(t, MethodDeleted, result.Method)
	assert.Equal(t, []string{eventId}, adapter.DeletedIds)
}

func TestService_CheckAvailability_freeWindow(t *testing.T) {
	service, _ := newTestService(t, provider.NewStubAdapter())

	result, err := service.CheckAvailability(context.Background(), AvailabilityRequest{
		BusinessId: "biz-1",
		Date:       "2024-06-10",
		Time:       "14:00",
	})

	require.NoError(t, err)
	assert.True(t, result.Available)
	assert.Equal(t, Slot{Date: "2024-06-10", Time: "14:00"}, result.Requested)
	assert.Empty(t, result.Alternatives)
}

func TestService_CheckAvailability_busyWindowReturnsAlternatives(t *testing.T) {
	adapter := provider.NewStubAdapter()
	adapter.AddEvent(provider.Event{
		Summary:   "Existing booking",
		StartTime: time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC),
	})
	service, _ := newTestService(t, adapter)

	result, err := service.CheckAvailability(context.Background(), AvailabilityRequest{
		BusinessId:      "biz-1",
		Date:            "2024-06-10",
		Time:            "14:00",
		DurationMinutes: 30,
	})

	require.NoError(t, err)
	assert.False(t, result.Available)
	require.Len(t, result.Alternatives, 3)
	validTimes := map[string]bool{"09:00": true, "10:00": true, "11:00": true, "13:00": true, "14:00": true, "15:00": true, "16:00": true}
	for _, slot := range result.Alternatives {
		assert.True(t, validTimes[slot.Time], "slot time %s not in the probe grid", slot.Time)
		assert.GreaterOrEqual(t, slot.Date, "2024-06-10")
		assert.NotEqual(t, Slot{Date: "2024-06-10", Time: "14:00"}, slot)
	}
	// Day-major probe order fills from the morning of the requested day.
	assert.Equal(t, []Slot{
		{Date: "2024-06-10", Time: "09:00"},
		{Date: "2024-06-10", Time: "10:00"},
		{Date: "2024-06-10", Time: "11:00"},
	}, result.Alternatives)
}

func TestService_TokenPersistence(t *testing.T) {
	t.Run("fresh token is not rewritten", func(t *testing.T) {
		adapter := provider.NewStubAdapter()
		service, repo := newTestService(t, adapter)

		_, err := service.CheckAvailability(context.Background(), AvailabilityRequest{
			BusinessId: "biz-1",
			Date:       "2024-06-10",
			Time:       "14:00",
		})

		require.NoError(t, err)
		assert.Empty(t, repo.TokenUpdates)
		assert.Equal(t, 0, adapter.RefreshCalls)
	})

	t.Run("refreshed token is persisted once", func(t *testing.T) {
		adapter := provider.NewStubAdapter()
		adapter.Token = provider.Token{AccessToken: "access-2", Expiry: testNow.Add(time.Hour)}
		service, repo := newTestService(t, adapter)

		// Make the stored token stale.
		require.NoError(t, repo.UpdateToken(context.Background(), 1, "access-1", testNow.Add(-time.Minute)))
		repo.TokenUpdates = nil

		_, err := service.CheckAvailability(context.Background(), AvailabilityRequest{
			BusinessId: "biz-1",
			Date:       "2024-06-10",
			Time:       "14:00",
		})

		require.NoError(t, err)
		require.Len(t, repo.TokenUpdates, 1)
		assert.Equal(t, "access-2", repo.TokenUpdates[0].AccessToken)
		assert.Equal(t, 1, adapter.RefreshCalls)
	})
}
