package freebox

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nerrad567/freebox-bridge/internal/infrastructure/config"
)

// authHeader carries the session token on authenticated requests.
const authHeader = "X-Fbx-App-Auth"

// defaultAPIBase is used until Discover resolves the router's actual
// version. v11 is the floor for every resource this client touches.
const defaultAPIBase = "/api/v11"

// Transport issues HTTPS requests to the router's local API and maps the
// response envelope onto typed errors.
//
// Discover must be called before authenticated traffic; after that all
// methods are safe for concurrent use.
type Transport struct {
	client  *resty.Client
	apiBase string
}

// envelope is the fixed wrapper on every API response.
type envelope struct {
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result"`
	ErrorCode string          `json:"error_code"`
	Message   string          `json:"msg"`
}

// NewTransport creates a transport for one router.
//
// The router presents a self-signed certificate on its local HTTPS port,
// so certificate verification is skipped when HTTPS is enabled.
func NewTransport(cfg config.DeviceConfig, timeout time.Duration) *Transport {
	scheme := "http"
	if cfg.UseHTTPS {
		scheme = "https"
	}

	client := resty.New().
		SetBaseURL(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	if cfg.UseHTTPS {
		// #nosec G402 -- the router only offers a self-signed certificate
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &Transport{
		client:  client,
		apiBase: defaultAPIBase,
	}
}

// Discover queries /api_version and pins the transport to the router's
// advertised base path and major version.
func (t *Transport) Discover(ctx context.Context) (*APIVersion, error) {
	resp, err := t.client.R().SetContext(ctx).Get("/api_version")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: api_version returned http %d", ErrTransport, resp.StatusCode())
	}

	var v APIVersion
	if err := json.Unmarshal(resp.Body(), &v); err != nil {
		return nil, fmt.Errorf("%w: parsing api_version: %w", ErrTransport, err)
	}

	if base := apiBasePath(&v); base != "" {
		t.apiBase = base
	}

	return &v, nil
}

// apiBasePath builds "/api/v{major}" from the discovery response.
// Returns "" when the response lacks usable fields.
func apiBasePath(v *APIVersion) string {
	if v.APIBaseURL == "" || v.APIVersion == "" {
		return ""
	}
	major, _, _ := strings.Cut(v.APIVersion, ".")
	if major == "" {
		return ""
	}
	return strings.TrimSuffix(v.APIBaseURL, "/") + "/v" + major
}

// Get issues an authenticated GET. Pass token "" for unauthenticated
// endpoints such as the registration flow.
func (t *Transport) Get(ctx context.Context, path, token string) (json.RawMessage, error) {
	return t.do(ctx, http.MethodGet, path, nil, token)
}

// Post issues an authenticated POST with an optional JSON body.
func (t *Transport) Post(ctx context.Context, path string, body any, token string) (json.RawMessage, error) {
	return t.do(ctx, http.MethodPost, path, body, token)
}

// Put issues an authenticated PUT with a JSON body.
func (t *Transport) Put(ctx context.Context, path string, body any, token string) (json.RawMessage, error) {
	return t.do(ctx, http.MethodPut, path, body, token)
}

func (t *Transport) do(ctx context.Context, method, path string, body any, token string) (json.RawMessage, error) {
	req := t.client.R().SetContext(ctx)
	if token != "" {
		req.SetHeader(authHeader, token)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, t.apiBase+"/"+path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}

	return decodeEnvelope(resp.StatusCode(), resp.Body())
}

// decodeEnvelope maps the router's response envelope and HTTP status onto
// the package's error taxonomy.
func decodeEnvelope(status int, body []byte) (json.RawMessage, error) {
	if status == http.StatusNotFound {
		return nil, ErrUnsupportedEndpoint
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: http %d with unparseable body", ErrFetchFailed, status)
	}

	if env.Success {
		return env.Result, nil
	}

	switch env.ErrorCode {
	case codeAuthRequired, codeInvalidToken, codeInvalidSession:
		return nil, fmt.Errorf("%w: %s", ErrSessionExpired, env.ErrorCode)
	case codeInsufficientRights:
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, env.Message)
	}

	// The router answers 403 with assorted codes when the session is
	// gone; treat any unclassified 403 as expiry so the caller re-logs.
	if status == http.StatusForbidden {
		return nil, fmt.Errorf("%w: http 403 (%s)", ErrSessionExpired, env.ErrorCode)
	}

	return nil, &APIError{Code: env.ErrorCode, Message: env.Message}
}
