package awhere

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fastBackoff keeps retry tests quick.
var fastBackoff = BackoffConfig{
	MaxRetries:      2,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

// newTestClient wires a client against a test server that first serves the
// OAuth token endpoint and then delegates to handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"test-token","expires_in":3600}`))
	})
	if handler != nil {
		mux.HandleFunc("/", handler)
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := NewClient(server.Client(), "test-key", "test-secret",
		WithBaseURL(server.URL), WithBackoff(fastBackoff))
	return client, server
}

// TestTokenBasicAuth verifies the token request carries the base64 encoded
// key:secret pair and that the token is cached across calls.
func TestTokenBasicAuth(t *testing.T) {
	var tokenCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)

		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("test-key:test-secret"))
		if got := r.Header.Get("Authorization"); got != want {
			t.Errorf("expected auth header %q, got %q", want, got)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostFormValue("grant_type"); got != "client_credentials" {
			t.Errorf("expected grant_type client_credentials, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"abc123","expires_in":3600}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.Client(), "test-key", "test-secret", WithBaseURL(server.URL))

	for i := 0; i < 3; i++ {
		token, err := client.Token(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != "abc123" {
			t.Fatalf("expected token abc123, got %q", token)
		}
	}

	if n := atomic.LoadInt32(&tokenCalls); n != 1 {
		t.Fatalf("expected 1 token request, got %d", n)
	}
}

// TestBearerHeaderOnRequests verifies API calls carry the bearer token.
func TestBearerHeaderOnRequests(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("expected bearer header, got %q", got)
		}
		w.Write([]byte(`{"fields":[]}`))
	})

	if _, err := client.ListFields(context.Background(), PageOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestUnauthorizedNotRetried verifies a 401 surfaces as ErrUnauthorized
// without retries.
func TestUnauthorizedNotRetried(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.ListFields(context.Background(), PageOptions{})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected 1 request, got %d", n)
	}
}

// TestServerErrorRetried verifies transient server errors are retried until
// a successful response arrives.
func TestServerErrorRetried(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"fields":[]}`))
	})

	if _, err := client.ListFields(context.Background(), PageOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected 2 requests, got %d", n)
	}
}

// TestAPIErrorCarriesStatus verifies non-retryable client errors surface the
// status code and body excerpt.
func TestAPIErrorCarriesStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detailedMessage":"no such field"}`))
	})

	_, err := client.GetField(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", apiErr.StatusCode)
	}
}

// TestValidCredentials verifies the credential probe maps token outcomes to
// a boolean.
func TestValidCredentials(t *testing.T) {
	client, _ := newTestClient(t, nil)
	if !client.ValidCredentials(context.Background()) {
		t.Fatal("expected credentials to validate")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	bad := NewClient(server.Client(), "bad", "creds",
		WithBaseURL(server.URL), WithBackoff(fastBackoff))
	if bad.ValidCredentials(context.Background()) {
		t.Fatal("expected credentials to be rejected")
	}
}
