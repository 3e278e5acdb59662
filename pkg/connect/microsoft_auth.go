package connect

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/callbook/callbook/internal/config"
	"github.com/callbook/callbook/pkg/connection"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const msGraphMeURL = "https://graph.microsoft.com/v1.0/me"

// MicrosoftAuth connects a business to its Outlook calendar. Same flow as
// Google, against the Azure AD endpoint for the configured tenant.
type MicrosoftAuth struct {
	repo        connection.Repository
	oauthConfig *oauth2.Config
	graphMeURL  string
}

func NewMicrosoftAuth(repo connection.Repository, cfg config.Application) *MicrosoftAuth {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.Microsoft.ClientId,
		ClientSecret: cfg.Microsoft.ClientSecret,
		Endpoint:     microsoft.AzureADEndpoint(cfg.Microsoft.Tenant),
		RedirectURL:  cfg.Host + "/api/integrations/microsoft/auth/callback",
		Scopes:       []string{"offline_access", "User.Read", "Calendars.ReadWrite"},
	}
	return &MicrosoftAuth{repo: repo, oauthConfig: oauthConfig, graphMeURL: msGraphMeURL}
}

func (m *MicrosoftAuth) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	businessId := r.URL.Query().Get("businessId")
	programId := r.URL.Query().Get("programId")
	if businessId == "" {
		http.Error(w, "businessId is required", http.StatusBadRequest)
		return
	}

	state := encodeState(businessId, programId)
	log.Tracef("Redirecting to Microsoft auth URL with state: %s", state)
	u := m.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(authRedirect{RedirectUrl: u}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m *MicrosoftAuth) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	code := r.FormValue("code")

	businessId, programId, err := decodeState(r.FormValue("state"))
	if err != nil {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	token, err := m.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		log.Errorf("unable to exchange Microsoft code for token: %v", err)
		writeConnectError(w, "Failed to complete Microsoft authentication")
		return
	}

	email, err := m.accountEmail(r.Context(), token)
	if err != nil {
		log.Errorf("unable to look up Microsoft account: %v", err)
		writeConnectError(w, "Failed to complete Microsoft authentication")
		return
	}

	if err := m.repo.Deactivate(r.Context(), businessId, programId, connection.ProviderOutlook); err != nil {
		log.Errorf("failed to deactivate previous Microsoft connection: %v", err)
		writeConnectError(w, "Failed to store Microsoft connection")
		return
	}
	id, err := m.repo.Create(r.Context(), connection.Connection{
		BusinessId:   businessId,
		ProgramId:    programId,
		Provider:     connection.ProviderOutlook,
		AccountEmail: email,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry,
	})
	if err != nil {
		log.Errorf("failed to store Microsoft connection: %v", err)
		writeConnectError(w, "Failed to store Microsoft connection")
		return
	}

	log.Infof("Connected Outlook calendar of %s for business %s", email, businessId)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(connectedResponse{
		Success:      true,
		ConnectionId: id,
		AccountEmail: email,
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m *MicrosoftAuth) accountEmail(ctx context.Context, token *oauth2.Token) (string, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	req, err := http.NewRequestWithContext(ctx, "GET", m.graphMeURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var profile struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", err
	}
	if profile.Mail != "" {
		return profile.Mail, nil
	}
	return profile.UserPrincipalName, nil
}
