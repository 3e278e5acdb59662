package token

import (
	"context"
	"time"

	"github.com/callbook/callbook/internal/utils"
	"github.com/callbook/callbook/pkg/connection"
	"github.com/callbook/callbook/pkg/provider"
	log "github.com/sirupsen/logrus"
)

// freshnessBuffer is the margin before expiry at which a token is already
// treated as stale. It covers clock skew and the latency of the vendor call
// the token is about to be used for.
const freshnessBuffer = 5 * time.Minute

// Guard decides before every vendor call whether the stored access token is
// still usable or must be exchanged first.
type Guard struct {
	clock utils.Clock
}

func NewGuard(clock utils.Clock) *Guard {
	return &Guard{clock: clock}
}

// EnsureFresh returns a usable token for the connection. The second return
// value reports whether a refresh happened, so the caller knows when the new
// credentials still have to be persisted. A token expiring within the
// freshness buffer counts as expired.
func (g *Guard) EnsureFresh(ctx context.Context, conn *connection.Connection, adapter provider.CalendarAdapter) (provider.Token, bool, error) {
	if conn.TokenExpiry.After(g.clock.Now().Add(freshnessBuffer)) {
		return provider.Token{
			AccessToken:  conn.AccessToken,
			RefreshToken: conn.RefreshToken,
			Expiry:       conn.TokenExpiry,
		}, false, nil
	}

	log.Debugf("Access token for %s connection %d expires soon, refreshing", conn.Provider, conn.Id)
	token, err := adapter.RefreshToken(ctx)
	if err != nil {
		return provider.Token{}, false, err
	}
	return token, true, nil
}
