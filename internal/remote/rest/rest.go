// Package rest is the driver for the hosted Synk backend: PostgREST-style
// table access, the identity service's token endpoints, and the object
// storage API, all scoped by the caller's bearer token (row-level security
// lives server-side).
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/synkhq/synk/internal/metrics"
	"github.com/synkhq/synk/internal/remote"
)

// Config carries everything needed to reach the hosted backend.
type Config struct {
	// BaseURL is the project root, e.g. https://abc.supabase.co.
	BaseURL string
	// AnonKey authenticates unauthenticated calls and doubles as the api key
	// header on every request.
	AnonKey string
	// JWTSecret, when set, verifies access-token signatures locally. Leave
	// empty to trust the transport and parse claims without verification.
	JWTSecret string
	// OIDCIssuerURL and OIDCClientID configure third-party ID-token sign-in.
	OIDCIssuerURL string
	OIDCClientID  string

	HTTPClient *http.Client
}

// Client bundles the three driver surfaces against one backend.
type Client struct {
	auth    *AuthClient
	tables  *Tables
	storage *Storage
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rest: base URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("rest: anon key is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	t := &transport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		anonKey: cfg.AnonKey,
		http:    httpClient,
	}
	auth := newAuthClient(t, cfg)
	t.token = auth.accessToken

	return &Client{
		auth:    auth,
		tables:  &Tables{t: t},
		storage: &Storage{t: t},
	}, nil
}

func (c *Client) Auth() *AuthClient { return c.auth }
func (c *Client) Tables() *Tables   { return c.tables }
func (c *Client) Storage() *Storage { return c.storage }

// Remote exposes the client as the store-agnostic surface.
func (c *Client) Remote() *remote.Client {
	return &remote.Client{Auth: c.auth, Tables: c.tables, Storage: c.storage}
}

// transport performs authenticated HTTP calls against the backend.
type transport struct {
	baseURL string
	anonKey string
	http    *http.Client
	// token returns the current access token, or "" when signed out; the
	// anon key authenticates in that case.
	token func() string
}

func (t *transport) do(ctx context.Context, method, path string, query url.Values, headers map[string]string, body io.Reader) (*http.Response, error) {
	u := t.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}

	bearer := t.anonKey
	if t.token != nil {
		if tok := t.token(); tok != "" {
			bearer = tok
		}
	}
	req.Header.Set("apikey", t.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return t.http.Do(req)
}

// doJSON issues a request and decodes a 2xx JSON response into dest (when
// non-nil). Non-2xx responses become *remote.RemoteError.
func (t *transport) doJSON(ctx context.Context, op, table, method, path string, query url.Values, headers map[string]string, body io.Reader, dest any) error {
	defer observe(op, table)()

	resp, err := t.do(ctx, method, path, query, headers, body)
	if err != nil {
		return &remote.RemoteError{Op: op, Table: table, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(op, table, resp)
	}
	if dest == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &remote.RemoteError{Op: op, Table: table, Status: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

// backendError is the union of the error shapes the backend's services
// return.
type backendError struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	ErrorField       string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Code             any    `json:"code"`
}

func decodeError(op, table string, resp *http.Response) error {
	re := &remote.RemoteError{Op: op, Table: table, Status: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(data) > 0 {
		var be backendError
		if json.Unmarshal(data, &be) == nil {
			switch {
			case be.Message != "":
				re.Message = be.Message
			case be.Msg != "":
				re.Message = be.Msg
			case be.ErrorDescription != "":
				re.Message = be.ErrorDescription
			case be.ErrorField != "":
				re.Message = be.ErrorField
			}
			if be.Code != nil {
				re.Code = fmt.Sprint(be.Code)
			}
		}
	}
	if re.Message == "" {
		re.Message = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound {
		re.Err = remote.ErrNotFound
	}
	return re
}

func observe(op, table string) func() {
	start := time.Now()
	return func() {
		metrics.ObserveRemoteLatency(op, table, start)
	}
}
