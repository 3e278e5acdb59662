package connect

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/callbook/callbook/pkg/connection"
	log "github.com/sirupsen/logrus"
)

const calendlyCurrentUserURL = "https://api.calendly.com/users/me"

// patValidity is how long a Calendly personal access token connection is
// considered usable before the freshness guard would try a refresh. Personal
// tokens do not expire on Calendly's side.
const patValidity = 10 * 365 * 24 * time.Hour

// CalendlyAuth connects a business through a posted token rather than a
// redirect flow. Calendly events are created on Calendly's own pages, so the
// connection only needs read and cancel access.
type CalendlyAuth struct {
	repo           connection.Repository
	client         *http.Client
	currentUserURL string
}

func NewCalendlyAuth(repo connection.Repository) *CalendlyAuth {
	return &CalendlyAuth{
		repo:           repo,
		client:         &http.Client{Timeout: 10 * time.Second},
		currentUserURL: calendlyCurrentUserURL,
	}
}

type calendlyConnectDTO struct {
	BusinessId   string `json:"businessId"`
	ProgramId    string `json:"programId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

func (c *CalendlyAuth) Connect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var dto calendlyConnectDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if dto.BusinessId == "" || dto.AccessToken == "" {
		http.Error(w, "businessId and accessToken are required", http.StatusBadRequest)
		return
	}

	userURI, email, err := c.currentUser(r.Context(), dto.AccessToken)
	if err != nil {
		log.Errorf("unable to look up Calendly user: %v", err)
		writeConnectError(w, "Failed to verify Calendly token")
		return
	}

	expiry := time.Now().Add(patValidity)
	if dto.ExpiresIn > 0 {
		expiry = time.Now().Add(time.Duration(dto.ExpiresIn) * time.Second)
	}

	if err := c.repo.Deactivate(r.Context(), dto.BusinessId, dto.ProgramId, connection.ProviderCalendly); err != nil {
		log.Errorf("failed to deactivate previous Calendly connection: %v", err)
		writeConnectError(w, "Failed to store Calendly connection")
		return
	}
	id, err := c.repo.Create(r.Context(), connection.Connection{
		BusinessId:   dto.BusinessId,
		ProgramId:    dto.ProgramId,
		Provider:     connection.ProviderCalendly,
		CalendarId:   userURI,
		AccountEmail: email,
		AccessToken:  dto.AccessToken,
		RefreshToken: dto.RefreshToken,
		TokenExpiry:  expiry,
	})
	if err != nil {
		log.Errorf("failed to store Calendly connection: %v", err)
		writeConnectError(w, "Failed to store Calendly connection")
		return
	}

	log.Infof("Connected Calendly account %s for business %s", email, dto.BusinessId)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(connectedResponse{
		Success:      true,
		ConnectionId: id,
		AccountEmail: email,
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// currentUser resolves the account's user uri, which scheduled-event listings
// are scoped by, together with the account email.
func (c *CalendlyAuth) currentUser(ctx context.Context, accessToken string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.currentUserURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", errUnauthorizedToken
	}

	var result struct {
		Resource struct {
			URI   string `json:"uri"`
			Email string `json:"email"`
		} `json:"resource"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", err
	}
	return result.Resource.URI, result.Resource.Email, nil
}
