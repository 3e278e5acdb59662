package connect

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/callbook/callbook/pkg/connection"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

var (
	errInvalidState      = errors.New("malformed oauth state parameter")
	errUnauthorizedToken = errors.New("token was not accepted by the vendor")
)

// DisconnectHandler deactivates the connection for a scope. The row is kept
// for audit purposes, only flagged inactive.
type DisconnectHandler struct {
	repo connection.Repository
}

func NewDisconnectHandler(repo connection.Repository) *DisconnectHandler {
	return &DisconnectHandler{repo: repo}
}

func (d *DisconnectHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	providerTag := connection.Provider(mux.Vars(r)["provider"])
	switch providerTag {
	case connection.ProviderGoogle, connection.ProviderOutlook, connection.ProviderCalendly:
	default:
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	}

	businessId := r.URL.Query().Get("businessId")
	programId := r.URL.Query().Get("programId")
	if businessId == "" {
		http.Error(w, "businessId is required", http.StatusBadRequest)
		return
	}

	if err := d.repo.Deactivate(r.Context(), businessId, programId, providerTag); err != nil {
		log.Errorf("failed to disconnect %s for business %s: %v", providerTag, businessId, err)
		writeConnectError(w, "Failed to disconnect calendar")
		return
	}

	log.Infof("Disconnected %s calendar for business %s", providerTag, businessId)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]bool{"success": true}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
