package provider

import (
	"fmt"

	"github.com/callbook/callbook/internal/config"
	"github.com/callbook/callbook/pkg/connection"
)

// Factory binds a connection to the adapter for its provider tag.
type Factory func(conn *connection.Connection) (CalendarAdapter, error)

// NewFactory returns the production factory. The switch is the single place
// that maps provider tags to adapters; an unknown tag is an error, never a
// best-effort guess.
func NewFactory(cfg config.Application) Factory {
	return func(conn *connection.Connection) (CalendarAdapter, error) {
		switch conn.Provider {
		case connection.ProviderGoogle:
			return newGoogleAdapter(conn, cfg.Google), nil
		case connection.ProviderOutlook:
			return newOutlookAdapter(conn, cfg.Microsoft), nil
		case connection.ProviderCalendly:
			return newCalendlyAdapter(conn, cfg.Calendly), nil
		}
		return nil, fmt.Errorf("unknown calendar provider: %q", conn.Provider)
	}
}
