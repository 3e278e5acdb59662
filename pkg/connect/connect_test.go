package connect

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/callbook/callbook/internal/config"
	"github.com/callbook/callbook/pkg/connection"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeState(t *testing.T) {
	state := encodeState("biz-1", "prog-1")

	businessId, programId, err := decodeState(state)
	require.NoError(t, err)
	assert.Equal(t, "biz-1", businessId)
	assert.Equal(t, "prog-1", programId)

	_, _, err = decodeState("no-separators")
	assert.Error(t, err)
	_, _, err = decodeState("|prog|nonce")
	assert.Error(t, err)
}

func TestGoogleAuth_OAuthLogin(t *testing.T) {
	repo := connection.NewRepositoryStub()
	auth := NewGoogleAuth(repo, config.Application{
		Host:   "http://localhost:3000",
		Google: config.Google{ClientId: "g-client", ClientSecret: "g-secret"},
	})

	req := httptest.NewRequest("GET", "/api/integrations/google/auth/login?businessId=biz-1&programId=prog-1", nil)
	recorder := httptest.NewRecorder()
	auth.OAuthLogin(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	var response authRedirect
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))

	redirect, err := url.Parse(response.RedirectUrl)
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", redirect.Host)
	assert.Equal(t, "g-client", redirect.Query().Get("client_id"))
	assert.Equal(t, "offline", redirect.Query().Get("access_type"))

	businessId, programId, err := decodeState(redirect.Query().Get("state"))
	require.NoError(t, err)
	assert.Equal(t, "biz-1", businessId)
	assert.Equal(t, "prog-1", programId)
}

func TestGoogleAuth_OAuthLogin_missingBusiness(t *testing.T) {
	auth := NewGoogleAuth(connection.NewRepositoryStub(), config.Application{})

	req := httptest.NewRequest("GET", "/api/integrations/google/auth/login", nil)
	recorder := httptest.NewRecorder()
	auth.OAuthLogin(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestMicrosoftAuth_OAuthLogin(t *testing.T) {
	auth := NewMicrosoftAuth(connection.NewRepositoryStub(), config.Application{
		Host:      "http://localhost:3000",
		Microsoft: config.Microsoft{ClientId: "m-client", Tenant: "common"},
	})

	req := httptest.NewRequest("GET", "/api/integrations/microsoft/auth/login?businessId=biz-1", nil)
	recorder := httptest.NewRecorder()
	auth.OAuthLogin(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	var response authRedirect
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Contains(t, response.RedirectUrl, "login.microsoftonline.com/common")
	assert.Contains(t, response.RedirectUrl, "m-client")
}

func TestCalendlyAuth_Connect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer pat-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"resource": map[string]string{
				"uri":   "https://api.calendly.com/users/user-1",
				"email": "owner@example.com",
			},
		})
	}))
	defer server.Close()

	repo := connection.NewRepositoryStub()
	auth := NewCalendlyAuth(repo)
	auth.currentUserURL = server.URL
	auth.client = server.Client()

	body, _ := json.Marshal(map[string]string{
		"businessId":  "biz-1",
		"accessToken": "pat-token",
	})
	req := httptest.NewRequest("POST", "/api/integrations/calendly/auth", bytes.NewReader(body))
	recorder := httptest.NewRecorder()
	auth.Connect(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	var response connectedResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, "owner@example.com", response.AccountEmail)

	conn, err := repo.GetActiveDefault(context.Background(), "biz-1")
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, connection.ProviderCalendly, conn.Provider)
	assert.Equal(t, "https://api.calendly.com/users/user-1", conn.CalendarId)
	assert.Equal(t, "pat-token", conn.AccessToken)
	assert.True(t, conn.TokenExpiry.After(time.Now().Add(24*time.Hour)))
}

func TestCalendlyAuth_Connect_rejectedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	auth := NewCalendlyAuth(connection.NewRepositoryStub())
	auth.currentUserURL = server.URL
	auth.client = server.Client()

	body, _ := json.Marshal(map[string]string{"businessId": "biz-1", "accessToken": "bad"})
	req := httptest.NewRequest("POST", "/api/integrations/calendly/auth", bytes.NewReader(body))
	recorder := httptest.NewRecorder()
	auth.Connect(recorder, req)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestDisconnectHandler(t *testing.T) {
	ctx := context.Background()
	repo := connection.NewRepositoryStub()
	_, err := repo.Create(ctx, connection.Connection{
		BusinessId: "biz-1",
		Provider:   connection.ProviderGoogle,
	})
	require.NoError(t, err)

	router := mux.NewRouter()
	router.HandleFunc("/api/integrations/{provider}/auth", NewDisconnectHandler(repo).Disconnect).Methods("DELETE")

	req := httptest.NewRequest("DELETE", "/api/integrations/google/auth?businessId=biz-1", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	conn, err := repo.GetActiveDefault(ctx, "biz-1")
	require.NoError(t, err)
	assert.Nil(t, conn)

	t.Run("unknown provider", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/api/integrations/ical/auth?businessId=biz-1", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})
}
