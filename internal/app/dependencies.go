package app

import (
	"github.com/callbook/callbook/internal/config"
	"github.com/callbook/callbook/internal/utils"
	"github.com/callbook/callbook/pkg/booking"
	"github.com/callbook/callbook/pkg/connect"
	"github.com/callbook/callbook/pkg/connection"
	"github.com/callbook/callbook/pkg/provider"
	"github.com/callbook/callbook/pkg/token"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	ConnectionRepo     connection.Repository
	ConnectionResolver *connection.Resolver

	AdapterFactory provider.Factory
	TokenGuard     *token.Guard

	BookingService *booking.Service
	BookingHandler *booking.Handler

	GoogleAuth        *connect.GoogleAuth
	MicrosoftAuth     *connect.MicrosoftAuth
	CalendlyAuth      *connect.CalendlyAuth
	DisconnectHandler *connect.DisconnectHandler

	Clock utils.Clock
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) (*Dependencies, error) {
	deps := &Dependencies{}

	deps.Clock = utils.SystemClock{}

	deps.ConnectionRepo = connection.NewRepository(db)
	deps.ConnectionResolver = connection.NewResolver(deps.ConnectionRepo)

	deps.AdapterFactory = provider.NewFactory(cfg)
	deps.TokenGuard = token.NewGuard(deps.Clock)

	bookingService, err := booking.NewService(
		deps.ConnectionResolver,
		deps.ConnectionRepo,
		deps.AdapterFactory,
		deps.TokenGuard,
		deps.Clock,
		cfg.Booking,
	)
	if err != nil {
		return nil, err
	}
	deps.BookingService = bookingService
	deps.BookingHandler = booking.NewHandler(deps.BookingService)

	deps.GoogleAuth = connect.NewGoogleAuth(deps.ConnectionRepo, cfg)
	deps.MicrosoftAuth = connect.NewMicrosoftAuth(deps.ConnectionRepo, cfg)
	deps.CalendlyAuth = connect.NewCalendlyAuth(deps.ConnectionRepo)
	deps.DisconnectHandler = connect.NewDisconnectHandler(deps.ConnectionRepo)

	return deps, nil
}
