// Package awhere is a client for the aWhere v2 agronomic weather API.
//
// The API is authenticated with an OAuth2 client-credentials token and serves
// weather norms/observations/forecasts, agronomic values and norms, field and
// planting resources, the crop catalog, and crop growth models. Responses are
// flattened into tabular row types with one column per value, the shape the
// rest of the service consumes.
package awhere

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// DefaultBaseURL is the production aWhere API endpoint.
const DefaultBaseURL = "https://api.awhere.com"

// tokenSlack refreshes the cached token slightly before the server-reported
// expiry to avoid racing it.
const tokenSlack = time.Minute

// Location is a geographic query coordinate in EPSG:4326.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// pathSegment renders the location the way aWhere URLs expect: "lat,lon".
func (l Location) pathSegment() string {
	return strconv.FormatFloat(l.Latitude, 'f', -1, 64) + "," +
		strconv.FormatFloat(l.Longitude, 'f', -1, 64)
}

// DayRange selects a single month-day or a span of month-days ("MM-DD").
// A zero value falls back to the endpoint's default window.
type DayRange struct {
	Start string
	End   string
}

// PageOptions controls limit/offset paging. Zero limit means the API default
// of 10 entries per page.
type PageOptions struct {
	Limit  int
	Offset int
}

// defaultPageLimit is the page size the API serves when none is requested.
const defaultPageLimit = 10

func (p PageOptions) values() url.Values {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	v := url.Values{}
	v.Set("limit", strconv.Itoa(limit))
	v.Set("offset", strconv.Itoa(p.Offset))
	return v
}

// Client talks to the aWhere API. It caches the OAuth token and wraps all
// calls with retry, backoff, and a circuit breaker.
type Client struct {
	baseURL string
	key     string
	secret  string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API endpoint, typically a
// test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithBackoff overrides the retry/backoff settings.
func WithBackoff(b BackoffConfig) Option {
	return func(c *Client) {
		c.httpCfg.Backoff = b
	}
}

// NewClient creates an aWhere API client with the given credentials.
func NewClient(client *http.Client, key, secret string, opts ...Option) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "awhere",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	c := &Client{
		baseURL: DefaultBaseURL,
		key:     key,
		secret:  secret,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a bearer token for the configured credentials, requesting a
// new one from /oauth/token when the cached token is missing or near expiry.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	if c.key == "" || c.secret == "" {
		return "", fmt.Errorf("%w: api key and secret are not configured", ErrUnauthorized)
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(c.key + ":" + c.secret))
	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+"/oauth/token",
			strings.NewReader("grant_type=client_credentials"))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Basic "+encoded)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return "", fmt.Errorf("request oauth token: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode oauth token: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrUnauthorized)
	}

	c.token = payload.AccessToken
	ttl := time.Duration(payload.ExpiresIn) * time.Second
	if ttl <= tokenSlack {
		ttl = 2 * tokenSlack
	}
	c.tokenExp = time.Now().Add(ttl - tokenSlack)

	return c.token, nil
}

// ValidCredentials reports whether the configured key and secret can obtain
// a token.
func (c *Client) ValidCredentials(ctx context.Context) bool {
	_, err := c.Token(ctx)
	return err == nil
}

// get performs an authorized GET and returns the response body.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	body, _, err := c.do(ctx, http.MethodGet, path, query, nil)
	return body, err
}

// getJSON performs an authorized GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// sendJSON performs an authorized request with a JSON payload and decodes
// the response into out when out is non-nil.
func (c *Client) sendJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	body, _, err := c.do(ctx, method, path, nil, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// delete performs an authorized DELETE. The API answers removals with
// 204 No Content.
func (c *Client) delete(ctx context.Context, path string) error {
	_, status, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return &APIError{StatusCode: status}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload interface{}) ([]byte, int, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, 0, err
	}

	var encoded []byte
	if payload != nil {
		encoded, err = json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode %s payload: %w", path, err)
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	buildRequest := func() (*http.Request, error) {
		var body io.Reader
		if encoded != nil {
			body = bytes.NewReader(encoded)
		}
		req, err := http.NewRequest(method, u, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if encoded != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read %s response: %w", path, err)
	}
	return body, resp.StatusCode, nil
}
