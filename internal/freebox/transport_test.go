package freebox

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/nerrad567/freebox-bridge/internal/infrastructure/config"
)

// newTestTransport points a plain-HTTP transport at a test server.
func newTestTransport(t *testing.T, srv *httptest.Server) *Transport {
	t.Helper()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parsing test server URL: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("splitting host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parsing port: %v", err)
	}

	return NewTransport(config.DeviceConfig{
		Host:     host,
		Port:     port,
		UseHTTPS: false,
	}, 5*time.Second)
}

func TestDiscoverSetsBasePath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api_version" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"api_version":"8.0","api_base_url":"/api/","device_name":"Freebox Server","uid":"abc"}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv)
	v, err := tr.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if v.APIVersion != "8.0" {
		t.Errorf("APIVersion = %q, want %q", v.APIVersion, "8.0")
	}
	if tr.apiBase != "/api/v8" {
		t.Errorf("apiBase = %q, want %q", tr.apiBase, "/api/v8")
	}
}

func TestDiscoverMalformedKeepsDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv)
	if _, err := tr.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if tr.apiBase != defaultAPIBase {
		t.Errorf("apiBase = %q, want default %q", tr.apiBase, defaultAPIBase)
	}
}

func TestGetSendsAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(authHeader); got != "tok-123" {
			t.Errorf("auth header = %q, want %q", got, "tok-123")
		}
		w.Write([]byte(`{"success":true,"result":{"uptime_val":7}}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv)
	raw, err := tr.Get(context.Background(), epSystem, "tok-123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(raw) != `{"uptime_val":7}` {
		t.Errorf("result = %s", raw)
	}
}

func TestTransportErrorOnUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	tr := newTestTransport(t, srv)
	srv.Close()

	_, err := tr.Get(context.Background(), epSystem, "tok")
	if !errors.Is(err, ErrTransport) {
		t.Errorf("error = %v, want ErrTransport", err)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:   "success",
			status: 200,
			body:   `{"success":true,"result":{}}`,
		},
		{
			name:    "not found",
			status:  404,
			body:    ``,
			wantErr: ErrUnsupportedEndpoint,
		},
		{
			name:    "auth required",
			status:  403,
			body:    `{"success":false,"error_code":"auth_required","msg":"Invalid session"}`,
			wantErr: ErrSessionExpired,
		},
		{
			name:    "invalid token",
			status:  403,
			body:    `{"success":false,"error_code":"invalid_token","msg":"Invalid token"}`,
			wantErr: ErrSessionExpired,
		},
		{
			name:    "insufficient rights",
			status:  403,
			body:    `{"success":false,"error_code":"insufficient_rights","msg":"No settings permission"}`,
			wantErr: ErrPermissionDenied,
		},
		{
			name:    "unclassified 403 treated as expiry",
			status:  403,
			body:    `{"success":false,"error_code":"weird","msg":"?"}`,
			wantErr: ErrSessionExpired,
		},
		{
			name:    "unparseable body",
			status:  500,
			body:    `<html>`,
			wantErr: ErrFetchFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeEnvelope(tt.status, []byte(tt.body))
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeEnvelopeAPIError(t *testing.T) {
	_, err := decodeEnvelope(200, []byte(`{"success":false,"error_code":"inval","msg":"bad param"}`))

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Code != "inval" {
		t.Errorf("Code = %q, want %q", apiErr.Code, "inval")
	}
}
