package qx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeAPI starts a test server that implements the login handshake and
// delegates everything else to handler. Requests without a valid access
// token get a 401.
func newFakeAPI(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/users/loginWithToken", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["apiToken"] != "valid-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"userId": "user-1",
			"id":     "access-1",
			"ttl":    1209600,
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		handler(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newTestClient creates a client pointed at the fake server.
func newTestClient(srv *httptest.Server, opts ...Option) *Client {
	opts = append([]Option{WithBaseURL(srv.URL), WithHTTPClient(srv.Client())}, opts...)
	return NewClient("valid-token", zerolog.Nop(), opts...)
}

// TestAuthentication tests the token exchange on first request.
func TestAuthentication(t *testing.T) {
	srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Backend{})
	})

	client := newTestClient(srv)
	_, err := client.Backends(context.Background())
	require.NoError(t, err)

	client.mu.Lock()
	token := client.accessToken
	client.mu.Unlock()
	assert.Equal(t, "access-1", token)
}

// TestAuthenticationRejected tests that a bad API token surfaces as AuthError.
func TestAuthenticationRejected(t *testing.T) {
	srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {})

	client := NewClient("wrong-token", zerolog.Nop(), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	_, err := client.Backends(context.Background())
	require.Error(t, err)

	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}

// TestAuthenticationMissingToken tests the no-token configuration error.
func TestAuthenticationMissingToken(t *testing.T) {
	client := NewClient("", zerolog.Nop())
	_, err := client.Backends(context.Background())
	require.Error(t, err)

	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}

// TestReauthenticationOnExpiry tests that an expired access token is
// refreshed transparently.
func TestReauthenticationOnExpiry(t *testing.T) {
	srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Backend{{Name: "ibmqx4", Status: "on", Qubits: 5}})
	})

	client := newTestClient(srv, WithAccessToken("expired-token"))

	backends, err := client.Backends(context.Background())
	require.NoError(t, err)
	require.Len(t, backends, 1)
	assert.Equal(t, "ibmqx4", backends[0].Name)
}

// TestRetryOnServerError tests that transient 5xx responses are retried.
func TestRetryOnServerError(t *testing.T) {
	var calls int32
	srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode([]Backend{{Name: "ibmqx4", Status: "on"}})
	})

	client := newTestClient(srv)
	backends, err := client.Backends(context.Background())
	require.NoError(t, err)
	assert.Len(t, backends, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

// TestRetriesExhausted tests the error after all attempts fail.
func TestRetriesExhausted(t *testing.T) {
	srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	client := newTestClient(srv, WithRetries(2))
	_, err := client.Backends(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

// TestAPIErrorMessage tests that server error messages are surfaced.
func TestAPIErrorMessage(t *testing.T) {
	srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "backend not found", "code": "MODEL_NOT_FOUND"},
		})
	})

	client := newTestClient(srv)
	_, err := client.BackendStatus(context.Background(), "nope")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "backend not found", apiErr.Message)
}

// TestContextCancellation tests that a cancelled context aborts the request.
func TestContextCancellation(t *testing.T) {
	srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Backend{})
	})

	client := newTestClient(srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Backends(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestStreamURL tests WebSocket endpoint derivation.
func TestStreamURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{
			name:    "HTTPS endpoint",
			baseURL: "https://quantumexperience.ng.bluemix.net/api",
			want:    "wss://quantumexperience.ng.bluemix.net/api/ws/jobs",
		},
		{
			name:    "HTTP endpoint",
			baseURL: "http://localhost:9000/api",
			want:    "ws://localhost:9000/api/ws/jobs",
		},
		{
			name:    "Trailing slash",
			baseURL: "https://example.com/api/",
			want:    "wss://example.com/api/ws/jobs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StreamURL(tt.baseURL))
		})
	}
}
