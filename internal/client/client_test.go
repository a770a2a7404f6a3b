package client_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/fivetwenty-io/hubwire/internal/client"
	"github.com/fivetwenty-io/hubwire/internal/constants"
	"github.com/fivetwenty-io/hubwire/pkg/auth"
	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

type repo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func generateKey(t *testing.T) []byte {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

func shortWaits(config *hub.Config) {
	config.RateLimitHandler = hub.RateLimitHandlerFunc(func(context.Context, hub.RateLimitEvent) hub.Decision {
		return hub.WaitFor(time.Millisecond)
	})
	config.AbuseLimitHandler = hub.AbuseLimitRefresh{Next: hub.AbuseLimitWait{Default: time.Millisecond, Ceiling: time.Millisecond}}
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires config", func(t *testing.T) {
		t.Parallel()

		_, err := New(nil)
		assert.ErrorIs(t, err, hub.ErrConfigRequired)
	})

	t.Run("requires API endpoint", func(t *testing.T) {
		t.Parallel()

		_, err := New(&hub.Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API endpoint is required")
	})

	t.Run("rejects relative endpoint", func(t *testing.T) {
		t.Parallel()

		_, err := New(&hub.Config{APIEndpoint: "api.example.com"})
		assert.ErrorIs(t, err, ErrInvalidAPIEndpoint)
	})

	t.Run("trims trailing slash", func(t *testing.T) {
		t.Parallel()

		client, err := New(&hub.Config{APIEndpoint: "https://ghe.example.com/api/v3/"})
		require.NoError(t, err)
		assert.Equal(t, "https://ghe.example.com/api/v3", client.BaseURL())
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestNew_AuthorizationProviderSelection(t *testing.T) {
	t.Parallel()

	key := generateKey(t)
	custom := hub.AuthorizationProviderFunc(func(context.Context) (string, error) { return "token custom", nil })

	tests := []struct {
		name    string
		config  hub.Config
		check   func(t *testing.T, provider hub.AuthorizationProvider)
		wantErr error
	}{
		{
			name:   "explicit provider wins",
			config: hub.Config{AuthorizationProvider: custom, Token: "ignored"},
			check: func(t *testing.T, provider hub.AuthorizationProvider) {
				t.Helper()

				value, err := provider.EncodedAuthorization(context.Background())
				require.NoError(t, err)
				assert.Equal(t, "token custom", value)
			},
		},
		{
			name:   "static token",
			config: hub.Config{Token: "ghp_x", AppID: "1"},
			check: func(t *testing.T, provider hub.AuthorizationProvider) {
				t.Helper()
				assert.IsType(t, &auth.StaticProvider{}, provider)
			},
		},
		{
			name:   "app JWT",
			config: hub.Config{AppID: "12345", PrivateKeyPEM: key},
			check: func(t *testing.T, provider hub.AuthorizationProvider) {
				t.Helper()
				assert.IsType(t, &auth.AppJWTProvider{}, provider)
			},
		},
		{
			name:   "installation token",
			config: hub.Config{AppID: "12345", PrivateKeyPEM: key, InstallationID: 42},
			check: func(t *testing.T, provider hub.AuthorizationProvider) {
				t.Helper()
				assert.IsType(t, &auth.InstallationProvider{}, provider)
			},
		},
		{
			name:   "oauth2",
			config: hub.Config{ClientID: "id", ClientSecret: "secret", TokenURL: "https://github.example.com/login/oauth/access_token"},
			check: func(t *testing.T, provider hub.AuthorizationProvider) {
				t.Helper()
				assert.IsType(t, &auth.OAuth2Provider{}, provider)
			},
		},
		{
			name:   "no credentials",
			config: hub.Config{},
			check: func(t *testing.T, provider hub.AuthorizationProvider) {
				t.Helper()
				assert.Nil(t, provider)
			},
		},
		{
			name:    "app without key",
			config:  hub.Config{AppID: "12345"},
			wantErr: constants.ErrPrivateKeyRequired,
		},
		{
			name:    "key without app",
			config:  hub.Config{PrivateKeyPEM: key},
			wantErr: constants.ErrAppIDRequired,
		},
		{
			name:    "negative installation",
			config:  hub.Config{AppID: "1", PrivateKeyPEM: key, InstallationID: -1},
			wantErr: constants.ErrInstallationIDInvalid,
		},
		{
			name:    "oauth2 without token URL",
			config:  hub.Config{RefreshToken: "r"},
			wantErr: constants.ErrTokenURLRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			config := tt.config
			config.APIEndpoint = "https://api.example.com"

			client, err := New(&config)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			tt.check(t, client.AuthorizationProvider())
		})
	}
}

func TestClient_NewRequest(t *testing.T) {
	t.Parallel()

	client, err := New(&hub.Config{APIEndpoint: "https://ghe.example.com/api/v3"})
	require.NoError(t, err)

	tests := []struct {
		path string
		want string
	}{
		{path: "/repos/octo/hello", want: "https://ghe.example.com/api/v3/repos/octo/hello"},
		{path: "user/repos?per_page=5", want: "https://ghe.example.com/api/v3/user/repos?per_page=5"},
		{path: "https://uploads.example.com/assets", want: "https://uploads.example.com/assets"},
	}

	for _, tt := range tests {
		req, err := client.NewRequest(http.MethodGet, tt.path, nil)
		require.NoError(t, err)
		assert.Equal(t, tt.want, req.URL().String())
	}
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Dispatch(t *testing.T) {
	t.Parallel()

	t.Run("attaches default headers and credentials", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "Bearer ghp_test", request.Header.Get("Authorization"))
			assert.Equal(t, "application/vnd.github+json", request.Header.Get("Accept"))
			assert.Equal(t, "2022-11-28", request.Header.Get("X-GitHub-Api-Version"))
			assert.Equal(t, "my-app/1", request.Header.Get("User-Agent"))

			_ = json.NewEncoder(writer).Encode(repo{ID: 1, Name: "hello"})
		}))
		defer server.Close()

		client, err := New(&hub.Config{APIEndpoint: server.URL, Token: "ghp_test", UserAgent: "my-app/1"})
		require.NoError(t, err)

		req, err := client.NewRequest(http.MethodGet, "/repos/octo/hello", nil)
		require.NoError(t, err)

		result, found, err := hub.Execute(context.Background(), client, req, hub.DecodeJSON[repo])
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "hello", result.Name)
	})

	t.Run("explicit authorization header wins", func(t *testing.T) {
		t.Parallel()

		var providerCalls atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "token explicit", request.Header.Get("Authorization"))
			assert.Equal(t, "application/vnd.github.raw", request.Header.Get("Accept"))
			writer.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		provider := hub.AuthorizationProviderFunc(func(context.Context) (string, error) {
			providerCalls.Add(1)

			return "Bearer provider", nil
		})

		client, err := NewWithAuthorizationProvider(&hub.Config{APIEndpoint: server.URL}, provider)
		require.NoError(t, err)

		req, err := client.NewRequest(http.MethodDelete, "/repos/octo/hello", nil)
		require.NoError(t, err)

		req = req.WithHeader("Authorization", "token explicit").WithHeader("Accept", "application/vnd.github.raw")

		_, err = hub.Fetch(context.Background(), client, req, hub.DiscardBody)
		require.NoError(t, err)
		assert.Equal(t, int32(0), providerCalls.Load())
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusNotFound)
			_, _ = writer.Write([]byte(`{"message":"Not Found"}`))
		}))
		defer server.Close()

		client, err := New(&hub.Config{APIEndpoint: server.URL})
		require.NoError(t, err)

		req, err := client.NewRequest(http.MethodGet, "/repos/octo/missing", nil)
		require.NoError(t, err)

		result, found, err := hub.Execute(context.Background(), client, req, hub.DecodeJSON[repo])
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, repo{}, result)

		_, err = hub.Fetch(context.Background(), client, req, hub.DecodeJSON[repo])
		assert.True(t, hub.IsNotFound(err))
	})

	t.Run("provider failure is a refresh error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			t.Error("request must not be sent")
		}))
		defer server.Close()

		provider := auth.NewCredentialCache("broken", func(context.Context) (auth.Credential, error) {
			return auth.Credential{}, errors.New("key revoked")
		})

		client, err := NewWithAuthorizationProvider(&hub.Config{APIEndpoint: server.URL}, provider)
		require.NoError(t, err)

		req, err := client.NewRequest(http.MethodGet, "/user", nil)
		require.NoError(t, err)

		_, err = client.Dispatch(context.Background(), req)
		require.Error(t, err)
		assert.ErrorIs(t, err, hub.ErrCredentialRefreshFailed)
		assert.Contains(t, err.Error(), "key revoked")
	})

	t.Run("interceptors run around the call", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "abc", request.Header.Get("X-Trace"))
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		var seen atomic.Int32

		client, err := New(&hub.Config{
			APIEndpoint: server.URL,
			RequestInterceptors: []hub.RequestInterceptor{
				func(_ context.Context, req *hub.Request) (*hub.Request, error) {
					return req.WithHeader("X-Trace", "abc"), nil
				},
			},
			ResponseInterceptors: []hub.ResponseInterceptor{
				func(_ context.Context, _ *hub.Request, resp *hub.Response, err error) error {
					seen.Add(1)

					if resp != nil && resp.StatusCode() == http.StatusOK {
						return errors.New("rejected by policy")
					}

					return err
				},
			},
		})
		require.NoError(t, err)

		req, err := client.NewRequest(http.MethodGet, "/", nil)
		require.NoError(t, err)

		_, err = client.Dispatch(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rejected by policy")
		assert.Equal(t, int32(1), seen.Load())
	})

	t.Run("metrics survive request replacement", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "abc", request.Header.Get("X-Trace"))
			time.Sleep(2 * time.Millisecond)
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		collector := hub.NewMetricsCollector()

		client, err := New(&hub.Config{
			APIEndpoint: server.URL,
			RequestInterceptors: []hub.RequestInterceptor{
				hub.MetricsRequestInterceptor(collector),
				hub.HeaderInterceptor(map[string]string{"X-Trace": "abc"}),
			},
			ResponseInterceptors: []hub.ResponseInterceptor{hub.MetricsResponseInterceptor(collector)},
		})
		require.NoError(t, err)

		req, err := client.NewRequest(http.MethodGet, "/repos/octo/hello", nil)
		require.NoError(t, err)

		resp, err := client.Dispatch(context.Background(), req)
		require.NoError(t, err)
		require.NoError(t, resp.Close())

		assert.Equal(t, 0, collector.Pending())

		metrics, ok := collector.GetMetrics("GET /repos/octo/hello")
		require.True(t, ok)
		assert.Equal(t, int64(1), metrics.TotalRequests)
		assert.GreaterOrEqual(t, metrics.TotalLatency, 2*time.Millisecond)
	})

	t.Run("failing request interceptor finishes metrics", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			hits.Add(1)
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		collector := hub.NewMetricsCollector()

		client, err := New(&hub.Config{
			APIEndpoint: server.URL,
			RequestInterceptors: []hub.RequestInterceptor{
				hub.MetricsRequestInterceptor(collector),
				func(context.Context, *hub.Request) (*hub.Request, error) {
					return nil, errors.New("blocked")
				},
			},
			ResponseInterceptors: []hub.ResponseInterceptor{hub.MetricsResponseInterceptor(collector)},
		})
		require.NoError(t, err)

		req, err := client.NewRequest(http.MethodGet, "/repos/octo/hello", nil)
		require.NoError(t, err)

		_, err = client.Dispatch(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "blocked")
		assert.Equal(t, int32(0), hits.Load())
		assert.Equal(t, 0, collector.Pending())

		metrics, ok := collector.GetMetrics("GET /repos/octo/hello")
		require.True(t, ok)
		assert.Equal(t, int64(1), metrics.TotalErrors)
	})
}

func TestClient_Timeout(t *testing.T) {
	t.Parallel()

	t.Run("deadline ends the call", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			select {
			case <-release:
			case <-request.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		client, err := New(&hub.Config{APIEndpoint: server.URL, Timeout: 20 * time.Millisecond})
		require.NoError(t, err)

		req, err := client.NewRequest(http.MethodGet, "/slow", nil)
		require.NoError(t, err)

		_, err = client.Dispatch(context.Background(), req)
		require.Error(t, err)

		var transportErr *hub.TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.True(t, transportErr.Timeout())
	})

	t.Run("body outlives the deadline", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			_, _ = writer.Write([]byte(`{"id":7,"name":"later"}`))
		}))
		defer server.Close()

		client, err := New(&hub.Config{APIEndpoint: server.URL, Timeout: time.Second})
		require.NoError(t, err)

		req, err := client.NewRequest(http.MethodGet, "/repos/octo/later", nil)
		require.NoError(t, err)

		resp, err := client.Dispatch(context.Background(), req)
		require.NoError(t, err)

		defer func() { _ = resp.Close() }()

		result, err := hub.DecodeJSON[repo](resp)
		require.NoError(t, err)
		assert.Equal(t, 7, result.ID)
	})
}

func TestClient_RateLimitRecovery(t *testing.T) {
	t.Parallel()

	var hits, preemptive atomic.Int32

	reset := strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10)

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("X-RateLimit-Limit", "60")
		writer.Header().Set("X-RateLimit-Reset", reset)

		if hits.Add(1) == 1 {
			writer.Header().Set("X-RateLimit-Remaining", "0")
			writer.WriteHeader(http.StatusForbidden)
			_, _ = writer.Write([]byte(`{"message":"API rate limit exceeded"}`))

			return
		}

		writer.Header().Set("X-RateLimit-Remaining", "59")
		_ = json.NewEncoder(writer).Encode(repo{ID: 2})
	}))
	defer server.Close()

	config := &hub.Config{APIEndpoint: server.URL, Token: "t"}
	shortWaits(config)
	config.RateLimitHandler = hub.RateLimitHandlerFunc(func(_ context.Context, event hub.RateLimitEvent) hub.Decision {
		if event.Preemptive {
			preemptive.Add(1)
		}

		return hub.WaitFor(time.Millisecond)
	})

	client, err := New(config)
	require.NoError(t, err)

	req, err := client.NewRequest(http.MethodGet, "/repos/octo/hello", nil)
	require.NoError(t, err)

	result, err := hub.Fetch(context.Background(), client, req, hub.DecodeJSON[repo])
	require.NoError(t, err)
	assert.Equal(t, 2, result.ID)
	assert.Equal(t, int32(2), hits.Load())

	snapshot, ok := client.RateLimit("core")
	require.True(t, ok)
	assert.Equal(t, 59, snapshot.Remaining)
	assert.Equal(t, 60, snapshot.Limit)
	assert.False(t, snapshot.Exhausted())
	assert.Contains(t, client.RateLimits(), "core")

	// Same reset window, quota available again: the next call goes straight out.
	_, err = hub.Fetch(context.Background(), client, req, hub.DecodeJSON[repo])
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, int32(0), preemptive.Load())
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_RetryBudgets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		configure    func(config *hub.Config)
		status       int
		headers      map[string]string
		expectedHits int32
		expectRate   bool
	}{
		{
			name:         "negative rate budget allows no waits",
			configure:    func(config *hub.Config) { config.RateLimitRetryMax = -1 },
			status:       http.StatusForbidden,
			headers:      map[string]string{"X-RateLimit-Remaining": "0"},
			expectedHits: 1,
			expectRate:   true,
		},
		{
			name:         "zero rate budget keeps the default",
			configure:    func(config *hub.Config) { config.RateLimitRetryMax = 0 },
			status:       http.StatusForbidden,
			headers:      map[string]string{"X-RateLimit-Remaining": "0"},
			expectedHits: constants.DefaultRateLimitRetryMax + 1,
			expectRate:   true,
		},
		{
			name:         "negative abuse budget allows no waits",
			configure:    func(config *hub.Config) { config.AbuseRetryMax = -1 },
			status:       http.StatusForbidden,
			headers:      map[string]string{"Retry-After": "0", "X-RateLimit-Remaining": "10"},
			expectedHits: 1,
		},
		{
			name:         "explicit abuse budget",
			configure:    func(config *hub.Config) { config.AbuseRetryMax = 1 },
			status:       http.StatusForbidden,
			headers:      map[string]string{"Retry-After": "0", "X-RateLimit-Remaining": "10"},
			expectedHits: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var hits atomic.Int32

			reset := strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10)

			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				hits.Add(1)

				writer.Header().Set("X-RateLimit-Limit", "60")
				writer.Header().Set("X-RateLimit-Reset", reset)

				for key, value := range tt.headers {
					writer.Header().Set(key, value)
				}

				writer.WriteHeader(tt.status)
				_, _ = writer.Write([]byte(`{"message":"limited"}`))
			}))
			defer server.Close()

			config := &hub.Config{APIEndpoint: server.URL, Token: "t"}
			shortWaits(config)
			tt.configure(config)

			client, err := New(config)
			require.NoError(t, err)

			req, err := client.NewRequest(http.MethodGet, "/repos/octo/hello", nil)
			require.NoError(t, err)

			_, err = client.Dispatch(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tt.expectedHits, hits.Load())

			if tt.expectRate {
				var rateErr *hub.RateLimitError
				require.ErrorAs(t, err, &rateErr)
			} else {
				var abuseErr *hub.AbuseError
				require.ErrorAs(t, err, &abuseErr)
			}
		})
	}
}

func TestClient_InstallationToken(t *testing.T) {
	t.Parallel()

	var exchanges, abuseSent atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch {
		case request.Method == http.MethodPost && request.URL.Path == "/app/installations/42/access_tokens":
			bearer := strings.TrimPrefix(request.Header.Get("Authorization"), "Bearer ")
			assert.Len(t, strings.Split(bearer, "."), 3)

			n := exchanges.Add(1)

			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(writer).Encode(map[string]interface{}{
				"token":      fmt.Sprintf("ghs_%d", n),
				"expires_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
			})

		case request.URL.Path == "/repos/octo/hello":
			if request.Header.Get("Authorization") == "Bearer ghs_1" && abuseSent.Add(1) == 2 {
				writer.Header().Set("gh-limited-by", "installation")
				writer.WriteHeader(http.StatusForbidden)

				return
			}

			_ = json.NewEncoder(writer).Encode(repo{ID: 3, Name: strings.TrimPrefix(request.Header.Get("Authorization"), "Bearer ")})

		default:
			writer.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	config := &hub.Config{
		APIEndpoint:    server.URL,
		AppID:          "12345",
		PrivateKeyPEM:  generateKey(t),
		InstallationID: 42,
	}
	shortWaits(config)

	client, err := New(config)
	require.NoError(t, err)

	get := func() repo {
		req, err := client.NewRequest(http.MethodGet, "/repos/octo/hello", nil)
		require.NoError(t, err)

		result, err := hub.Fetch(context.Background(), client, req, hub.DecodeJSON[repo])
		require.NoError(t, err)

		return result
	}

	assert.Equal(t, "ghs_1", get().Name)
	assert.Equal(t, int32(1), exchanges.Load())

	// The second call hits a secondary limit; the refresh policy discards
	// the installation token and the retry uses a new one.
	assert.Equal(t, "ghs_2", get().Name)
	assert.Equal(t, int32(2), exchanges.Load())
}

func TestClient_Paginate(t *testing.T) {
	t.Parallel()

	var server *httptest.Server

	server = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "2", request.URL.Query().Get("per_page"))

		switch request.URL.Query().Get("page") {
		case "":
			writer.Header().Set("Link", fmt.Sprintf(`<%s/orgs/octo/repos?per_page=2&page=2>; rel="next"`, server.URL))
			_ = json.NewEncoder(writer).Encode([]repo{{ID: 1}, {ID: 2}})
		case "2":
			_ = json.NewEncoder(writer).Encode([]repo{{ID: 3}})
		}
	}))
	defer server.Close()

	client, err := New(&hub.Config{APIEndpoint: server.URL})
	require.NoError(t, err)

	first, err := client.NewRequest(http.MethodGet, "/orgs/octo/repos", nil)
	require.NoError(t, err)

	repos, err := hub.Paginate(client, first, hub.DecodeJSONItems[repo], hub.WithPageSize(2)).All(context.Background())
	require.NoError(t, err)
	require.Len(t, repos, 3)
	assert.Equal(t, 3, repos[2].ID)
}
