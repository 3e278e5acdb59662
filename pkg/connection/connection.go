package connection

import "time"

// Provider identifies one of the supported calendar vendors. The set is
// closed: adding a vendor requires a new adapter and a new factory branch.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderOutlook  Provider = "outlook"
	ProviderCalendly Provider = "calendly"
)

// Connection binds a business (and optionally one of its programs) to a
// single vendor calendar with live OAuth credentials. At most one active
// connection may exist per (business, program, provider, calendar).
type Connection struct {
	Id           int
	BusinessId   string
	ProgramId    string // empty means the business-wide connection
	Provider     Provider
	CalendarId   string
	AccountEmail string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	Active       bool
	SyncStatus   string
}
