package connect

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/callbook/callbook/internal/config"
	"github.com/callbook/callbook/internal/rest"
	"github.com/callbook/callbook/pkg/connection"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

type authRedirect struct {
	RedirectUrl string `json:"redirectUrl"`
}

type connectedResponse struct {
	Success      bool   `json:"success"`
	ConnectionId int    `json:"connectionId"`
	AccountEmail string `json:"accountEmail"`
}

// GoogleAuth connects a business to its Google calendar through the standard
// authorization-code flow.
type GoogleAuth struct {
	repo        connection.Repository
	oauthConfig *oauth2.Config
}

func NewGoogleAuth(repo connection.Repository, cfg config.Application) *GoogleAuth {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.Google.ClientId,
		ClientSecret: cfg.Google.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.Host + "/api/integrations/google/auth/callback",
		Scopes:       []string{gcal.CalendarEventsScope, gcal.CalendarReadonlyScope},
	}
	return &GoogleAuth{repo: repo, oauthConfig: oauthConfig}
}

func (g *GoogleAuth) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	businessId := r.URL.Query().Get("businessId")
	programId := r.URL.Query().Get("programId")
	if businessId == "" {
		http.Error(w, "businessId is required", http.StatusBadRequest)
		return
	}

	state := encodeState(businessId, programId)
	log.Tracef("Redirecting to Google auth URL with state: %s", state)
	u := g.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(authRedirect{RedirectUrl: u}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (g *GoogleAuth) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	code := r.FormValue("code")

	businessId, programId, err := decodeState(r.FormValue("state"))
	if err != nil {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	token, err := g.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		log.Errorf("unable to exchange Google code for token: %v", err)
		writeConnectError(w, "Failed to complete Google authentication")
		return
	}

	// The primary calendar's id is the account email.
	service, err := gcal.NewService(r.Context(), option.WithTokenSource(g.oauthConfig.TokenSource(r.Context(), token)))
	if err != nil {
		log.Errorf("unable to build Google Calendar client: %v", err)
		writeConnectError(w, "Failed to complete Google authentication")
		return
	}
	primary, err := service.CalendarList.Get("primary").Context(r.Context()).Do()
	if err != nil {
		log.Errorf("unable to look up primary Google calendar: %v", err)
		writeConnectError(w, "Failed to complete Google authentication")
		return
	}

	if err := g.repo.Deactivate(r.Context(), businessId, programId, connection.ProviderGoogle); err != nil {
		log.Errorf("failed to deactivate previous Google connection: %v", err)
		writeConnectError(w, "Failed to store Google connection")
		return
	}
	id, err := g.repo.Create(r.Context(), connection.Connection{
		BusinessId:   businessId,
		ProgramId:    programId,
		Provider:     connection.ProviderGoogle,
		CalendarId:   primary.Id,
		AccountEmail: primary.Id,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry,
	})
	if err != nil {
		log.Errorf("failed to store Google connection: %v", err)
		writeConnectError(w, "Failed to store Google connection")
		return
	}

	log.Infof("Connected Google calendar %s for business %s", primary.Id, businessId)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(connectedResponse{
		Success:      true,
		ConnectionId: id,
		AccountEmail: primary.Id,
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// encodeState packs the connecting scope and a nonce into the OAuth state
// parameter, the same way the redirect target travels through it elsewhere.
func encodeState(businessId, programId string) string {
	return businessId + "|" + programId + "|" + uuid.New().String()
}

func decodeState(state string) (businessId, programId string, err error) {
	parts := strings.SplitN(state, "|", 3)
	if len(parts) != 3 || parts[0] == "" {
		return "", "", errInvalidState
	}
	return parts[0], parts[1], nil
}

func writeConnectError(w http.ResponseWriter, message string) {
	w.WriteHeader(http.StatusInternalServerError)
	if err := json.NewEncoder(w).Encode(rest.ErrorResponse{Error: message}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
