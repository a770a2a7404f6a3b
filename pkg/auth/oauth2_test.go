package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/fivetwenty-io/hubwire/internal/constants"
	"github.com/fivetwenty-io/hubwire/pkg/auth"
	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func writeToken(w http.ResponseWriter, response tokenResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

type recordingPersister struct {
	mu     sync.Mutex
	tokens []*oauth2.Token
}

func (p *recordingPersister) PersistToken(token *oauth2.Token) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tokens = append(p.tokens, token)

	return nil
}

func TestOAuth2Provider_EncodedAuthorization(t *testing.T) {
	t.Parallel()

	t.Run("returns seeded valid token", func(t *testing.T) {
		t.Parallel()

		provider, err := auth.NewOAuth2Provider(&auth.OAuth2Config{TokenURL: "http://example.com/oauth/token"})
		require.NoError(t, err)

		provider.SetToken("existing-token", time.Now().Add(time.Hour))

		token, err := provider.EncodedAuthorization(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Bearer existing-token", token)
	})

	t.Run("refreshes expired token using refresh token", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/oauth/token", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)

			err := r.ParseForm()
			assert.NoError(t, err)
			assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
			assert.Equal(t, "old-refresh-token", r.Form.Get("refresh_token"))

			writeToken(w, tokenResponse{
				AccessToken:  "new-access-token",
				RefreshToken: "new-refresh-token",
				ExpiresIn:    3600,
				TokenType:    "bearer",
			})
		}))
		defer server.Close()

		persister := &recordingPersister{}

		provider, err := auth.NewOAuth2Provider(&auth.OAuth2Config{
			TokenURL:     server.URL + "/oauth/token",
			RefreshToken: "old-refresh-token",
			Persister:    persister,
		})
		require.NoError(t, err)

		provider.SetToken("expired-token", time.Now().Add(-time.Hour))

		token, err := provider.EncodedAuthorization(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Bearer new-access-token", token)
		assert.Equal(t, "new-refresh-token", provider.CurrentRefreshToken())

		require.Len(t, persister.tokens, 1)
		assert.Equal(t, "new-refresh-token", persister.tokens[0].RefreshToken)
	})

	t.Run("uses client credentials when no refresh token", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "client-id", username)
			assert.Equal(t, "client-secret", password)

			err := r.ParseForm()
			assert.NoError(t, err)
			assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))

			writeToken(w, tokenResponse{AccessToken: "client-token", ExpiresIn: 3600, TokenType: "bearer"})
		}))
		defer server.Close()

		provider, err := auth.NewOAuth2Provider(&auth.OAuth2Config{
			TokenURL:     server.URL + "/oauth/token",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
		})
		require.NoError(t, err)

		token, err := provider.EncodedAuthorization(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Bearer client-token", token)
	})

	t.Run("uses password grant", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := r.ParseForm()
			assert.NoError(t, err)
			assert.Equal(t, "password", r.Form.Get("grant_type"))
			assert.Equal(t, "testuser", r.Form.Get("username"))
			assert.Equal(t, "testpass", r.Form.Get("password"))

			writeToken(w, tokenResponse{
				AccessToken:  "password-token",
				RefreshToken: "refresh-token",
				ExpiresIn:    3600,
				TokenType:    "bearer",
			})
		}))
		defer server.Close()

		provider, err := auth.NewOAuth2Provider(&auth.OAuth2Config{
			TokenURL:     server.URL + "/oauth/token",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			Username:     "testuser",
			Password:     "testpass",
		})
		require.NoError(t, err)

		token, err := provider.EncodedAuthorization(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Bearer password-token", token)
		assert.Equal(t, "refresh-token", provider.CurrentRefreshToken())
	})

	t.Run("handles token request error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_client",
				"error_description": "Client authentication failed",
			})
		}))
		defer server.Close()

		provider, err := auth.NewOAuth2Provider(&auth.OAuth2Config{
			TokenURL:     server.URL + "/oauth/token",
			ClientID:     "bad-client",
			ClientSecret: "bad-secret",
		})
		require.NoError(t, err)

		token, err := provider.EncodedAuthorization(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, hub.ErrCredentialRefreshFailed)
		assert.Contains(t, err.Error(), "invalid_client")
		assert.Contains(t, err.Error(), "Client authentication failed")
		assert.Empty(t, token)
	})

	t.Run("no credentials available", func(t *testing.T) {
		t.Parallel()

		provider, err := auth.NewOAuth2Provider(&auth.OAuth2Config{TokenURL: "http://example.com/oauth/token"})
		require.NoError(t, err)

		token, err := provider.EncodedAuthorization(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNoGrant)
		assert.Empty(t, token)
	})
}

func TestOAuth2Provider_Refresh(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeToken(w, tokenResponse{AccessToken: "refreshed-token", ExpiresIn: 3600, TokenType: "bearer"})
	}))
	defer server.Close()

	provider, err := auth.NewOAuth2Provider(&auth.OAuth2Config{
		TokenURL:     server.URL + "/oauth/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		HTTPClient:   server.Client(),
	})
	require.NoError(t, err)

	provider.SetToken("current-token", time.Now().Add(time.Hour))

	require.NoError(t, provider.Refresh(context.Background()))

	token, err := provider.EncodedAuthorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer refreshed-token", token)
}

func TestNewOAuth2Provider_RequiresTokenURL(t *testing.T) {
	t.Parallel()

	_, err := auth.NewOAuth2Provider(&auth.OAuth2Config{ClientID: "x"})
	assert.ErrorIs(t, err, constants.ErrTokenURLRequired)

	_, err = auth.NewOAuth2Provider(nil)
	assert.ErrorIs(t, err, constants.ErrTokenURLRequired)
}
