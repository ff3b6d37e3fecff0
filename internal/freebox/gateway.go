package freebox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nerrad567/freebox-bridge/internal/infrastructure/logging"
)

// Gateway provides typed access to the router's API resources on top of
// the session manager.
//
// Every call runs with the current session token. When the router
// rejects the token mid-call, the gateway invalidates the session,
// obtains a fresh token (through the manager's single-flight login) and
// retries the request exactly once. A second rejection surfaces as an
// error. Mutations follow the same rule but are never retried on
// transport failures, where the request may already have taken effect.
type Gateway struct {
	transport *Transport
	sessions  *SessionManager
	logger    *logging.Logger
}

// NewGateway creates a gateway over the given transport and sessions.
func NewGateway(transport *Transport, sessions *SessionManager) *Gateway {
	return &Gateway{
		transport: transport,
		sessions:  sessions,
	}
}

// SetLogger sets an optional logger.
func (g *Gateway) SetLogger(logger *logging.Logger) {
	g.logger = logger
}

// call runs one authenticated request with the retry-once-on-expiry rule.
func (g *Gateway) call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	token, err := g.sessions.Token(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := g.transport.do(ctx, method, path, body, token.Token)
	if err == nil || !isSessionRejection(err) {
		return raw, err
	}

	g.sessions.Invalidate(token.Token)
	g.logDebug("session rejected mid-request, re-authenticating", "path", path)

	token, err = g.sessions.Token(ctx)
	if err != nil {
		return nil, err
	}

	raw, err = g.transport.do(ctx, method, path, body, token.Token)
	if err != nil && isSessionRejection(err) {
		// Two rejections in a row with a fresh token in between.
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return raw, err
}

// fetch gets a resource and decodes it into T.
func fetch[T any](ctx context.Context, g *Gateway, path string) (*T, error) {
	raw, err := g.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrFetchFailed, path, err)
	}
	return &v, nil
}

// fetchList gets a list resource and decodes it into []T. The router
// returns a null result for empty lists; that decodes to an empty slice.
func fetchList[T any](ctx context.Context, g *Gateway, path string) ([]T, error) {
	raw, err := g.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var v []T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrFetchFailed, path, err)
	}
	return v, nil
}

// System fetches the router's hardware and firmware state.
func (g *Gateway) System(ctx context.Context) (*SystemInfo, error) {
	return fetch[SystemInfo](ctx, g, epSystem)
}

// Connection fetches the WAN link state.
func (g *Gateway) Connection(ctx context.Context) (*ConnectionInfo, error) {
	return fetch[ConnectionInfo](ctx, g, epConnection)
}

// WifiConfig fetches the global Wi-Fi configuration.
func (g *Gateway) WifiConfig(ctx context.Context) (*WifiConfig, error) {
	return fetch[WifiConfig](ctx, g, epWifiConfig)
}

// WifiState fetches the runtime Wi-Fi state.
func (g *Gateway) WifiState(ctx context.Context) (*WifiState, error) {
	return fetch[WifiState](ctx, g, epWifiState)
}

// WifiAccessPoints fetches the list of radios.
func (g *Gateway) WifiAccessPoints(ctx context.Context) ([]WifiAP, error) {
	return fetchList[WifiAP](ctx, g, epWifiAP)
}

// Repeaters fetches the Wi-Fi repeaters known to the router.
func (g *Gateway) Repeaters(ctx context.Context) ([]Repeater, error) {
	return fetchList[Repeater](ctx, g, epRepeater)
}

// Disks fetches the attached storage devices.
func (g *Gateway) Disks(ctx context.Context) ([]Disk, error) {
	return fetchList[Disk](ctx, g, epStorage)
}

// LanDevices fetches the hosts seen by the router's LAN browser.
func (g *Gateway) LanDevices(ctx context.Context) ([]LanDevice, error) {
	return fetchList[LanDevice](ctx, g, epLanBrowser)
}

// CallLog fetches the phone call log.
func (g *Gateway) CallLog(ctx context.Context) ([]CallEntry, error) {
	return fetchList[CallEntry](ctx, g, epCallLog)
}

// LCDConfig fetches the front-panel display configuration.
func (g *Gateway) LCDConfig(ctx context.Context) (*LCDConfig, error) {
	return fetch[LCDConfig](ctx, g, epLCDConfig)
}

// Permissions fetches the rights granted to this app.
func (g *Gateway) Permissions(ctx context.Context) (map[string]bool, error) {
	raw, err := g.call(ctx, http.MethodGet, epPerms, nil)
	if err != nil {
		return nil, err
	}

	var perms map[string]bool
	if err := json.Unmarshal(raw, &perms); err != nil {
		return nil, fmt.Errorf("%w: decoding permissions: %w", ErrFetchFailed, err)
	}
	return perms, nil
}

// SetWifiEnabled turns the router's Wi-Fi on or off.
func (g *Gateway) SetWifiEnabled(ctx context.Context, enabled bool) error {
	_, err := g.call(ctx, http.MethodPut, epWifiConfig, map[string]bool{"enabled": enabled})
	return err
}

// Reboot restarts the router. The router often drops the connection
// before answering, so a transport error here does not mean the reboot
// failed; the caller reports it without retrying.
func (g *Gateway) Reboot(ctx context.Context) error {
	_, err := g.call(ctx, http.MethodPost, epReboot, nil)
	return err
}

// SetStatusLED turns the router's front status LED on or off.
// The API models this inverted, as "hide_status_led".
func (g *Gateway) SetStatusLED(ctx context.Context, on bool) error {
	_, err := g.call(ctx, http.MethodPut, epLCDConfig, map[string]bool{"hide_status_led": !on})
	return err
}

// SetWifiKeyHidden hides or shows the Wi-Fi key on the front display.
func (g *Gateway) SetWifiKeyHidden(ctx context.Context, hidden bool) error {
	_, err := g.call(ctx, http.MethodPut, epLCDConfig, map[string]bool{"hide_wifi_key": hidden})
	return err
}

// SetLCDOrientation rotates the front display (degrees: 0, 90, 180, 270).
func (g *Gateway) SetLCDOrientation(ctx context.Context, degrees int) error {
	_, err := g.call(ctx, http.MethodPut, epLCDConfig, map[string]int{"orientation": degrees})
	return err
}

// SetRepeaterLED turns a repeater's LED on or off.
func (g *Gateway) SetRepeaterLED(ctx context.Context, id int, on bool) error {
	_, err := g.call(ctx, http.MethodPut, epRepeaterByID(id), map[string]bool{"led_activated": on})
	return err
}

// RebootRepeater restarts a repeater. Some models only answer the path
// without the trailing slash, so a 404 on the canonical form falls back
// once; a 404 on both means the model cannot be rebooted remotely, which
// is surfaced as ErrUnsupportedEndpoint for the caller to treat as
// "feature unavailable".
func (g *Gateway) RebootRepeater(ctx context.Context, id int) error {
	_, err := g.call(ctx, http.MethodPost, epRepeaterReboot(id, true), nil)
	if err == nil || !errors.Is(err, ErrUnsupportedEndpoint) {
		return err
	}

	g.logDebug("repeater reboot endpoint 404 with trailing slash, retrying without", "repeater_id", id)
	_, err = g.call(ctx, http.MethodPost, epRepeaterReboot(id, false), nil)
	return err
}

func (g *Gateway) logDebug(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Debug(msg, args...)
	}
}
