package freebox

import (
	"context"
	"crypto/hmac"
	"crypto/sha1" // #nosec G505 -- HMAC-SHA1 is the router's fixed login scheme
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/freebox-bridge/internal/infrastructure/config"
	"github.com/nerrad567/freebox-bridge/internal/infrastructure/logging"
)

// registrationPollInterval is how often the authorization status is
// polled while waiting for the user to press the router's button.
const registrationPollInterval = 2 * time.Second

// Authenticator performs the registration handshake and the per-session
// challenge-response login against one router.
type Authenticator struct {
	transport    *Transport
	app          config.AppConfig
	pollInterval time.Duration
	logger       *logging.Logger
}

// NewAuthenticator creates an authenticator for the given app identity.
func NewAuthenticator(transport *Transport, app config.AppConfig) *Authenticator {
	return &Authenticator{
		transport:    transport,
		app:          app,
		pollInterval: registrationPollInterval,
	}
}

// SetLogger sets an optional logger. Tokens are never logged.
func (a *Authenticator) SetLogger(logger *logging.Logger) {
	a.logger = logger
}

// Register requests user approval for this app and polls the tracking
// endpoint until the router reports a terminal status. The user must
// physically confirm on the router's front panel, so this can take as
// long as the router's own authorization window; bound it with ctx.
//
// Returns ErrRegistrationDenied when the user refuses, and
// ErrRegistrationTimeout when the router expires the request.
func (a *Authenticator) Register(ctx context.Context) (*AppCredentials, error) {
	body := map[string]string{
		"app_id":      a.app.ID,
		"app_name":    a.app.Name,
		"app_version": a.app.Version,
		"device_name": a.app.DeviceName,
	}

	raw, err := a.transport.Post(ctx, epAuthorize, body, "")
	if err != nil {
		return nil, fmt.Errorf("requesting authorization: %w", err)
	}

	var grant struct {
		AppToken string `json:"app_token"`
		TrackID  int    `json:"track_id"`
	}
	if err := json.Unmarshal(raw, &grant); err != nil {
		return nil, fmt.Errorf("%w: parsing authorization grant: %w", ErrTransport, err)
	}

	a.logInfo("authorization requested, confirm on the router's front panel",
		"track_id", grant.TrackID)

	if err := a.awaitGrant(ctx, grant.TrackID); err != nil {
		return nil, err
	}

	return &AppCredentials{
		AppID:    a.app.ID,
		AppToken: grant.AppToken,
		TrackID:  grant.TrackID,
	}, nil
}

// awaitGrant polls the authorization status until granted, denied or
// timed out. "pending" and "unknown" both mean keep waiting; the router
// reports "unknown" transiently during its own restarts. A failed status
// poll also counts as pending: aborting here would force the user to
// press the button again, so only ctx bounds the wait.
func (a *Authenticator) awaitGrant(ctx context.Context, trackID int) error {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		status, err := a.trackStatus(ctx, trackID)
		if err != nil {
			a.logDebug("authorization status poll failed, retrying",
				"track_id", trackID, "error", err)
			status = "unknown"
		}

		switch status {
		case "granted":
			a.logInfo("authorization granted", "track_id", trackID)
			return nil
		case "denied":
			return ErrRegistrationDenied
		case "timeout":
			return ErrRegistrationTimeout
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for authorization: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// trackStatus fetches the current authorization status for a track ID.
func (a *Authenticator) trackStatus(ctx context.Context, trackID int) (string, error) {
	raw, err := a.transport.Get(ctx, epAuthorizeTrack(trackID), "")
	if err != nil {
		return "", fmt.Errorf("tracking authorization: %w", err)
	}

	var track struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &track); err != nil {
		return "", fmt.Errorf("%w: parsing authorization status: %w", ErrTransport, err)
	}

	return track.Status, nil
}

// Login opens a session using the challenge-response scheme: fetch the
// current challenge, compute hex(HMAC-SHA1(app_token, challenge)), and
// submit it with the app id.
//
// Returns ErrAuthRejected when the router refuses the credentials, which
// means the app token was revoked and re-registration is required.
func (a *Authenticator) Login(ctx context.Context, creds *AppCredentials) (*SessionToken, error) {
	if creds == nil || creds.AppToken == "" {
		return nil, ErrNotRegistered
	}

	raw, err := a.transport.Get(ctx, epLogin, "")
	if err != nil {
		return nil, fmt.Errorf("fetching login challenge: %w", err)
	}

	var login struct {
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(raw, &login); err != nil {
		return nil, fmt.Errorf("%w: parsing login challenge: %w", ErrTransport, err)
	}
	if login.Challenge == "" {
		return nil, fmt.Errorf("%w: empty login challenge", ErrTransport)
	}

	body := map[string]string{
		"app_id":   creds.AppID,
		"password": sessionPassword(creds.AppToken, login.Challenge),
	}

	raw, err = a.transport.Post(ctx, epSession, body, "")
	if err != nil {
		// The router answers a bad password with the same codes it uses
		// for expired sessions; in a login context that means the app
		// token itself was rejected.
		if isSessionRejection(err) {
			return nil, fmt.Errorf("%w: %w", ErrAuthRejected, err)
		}
		return nil, fmt.Errorf("opening session: %w", err)
	}

	var session struct {
		SessionToken string          `json:"session_token"`
		Permissions  map[string]bool `json:"permissions"`
	}
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("%w: parsing session: %w", ErrTransport, err)
	}
	if session.SessionToken == "" {
		return nil, fmt.Errorf("%w: empty session token", ErrTransport)
	}

	a.logDebug("session opened", "permissions", len(session.Permissions))

	return &SessionToken{
		Token:       session.SessionToken,
		Permissions: session.Permissions,
		Created:     time.Now().UTC(),
	}, nil
}

// Logout closes the session on the router. Best effort: the session
// expires server-side anyway.
func (a *Authenticator) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := a.transport.Post(ctx, epLogout, nil, token); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	return nil
}

// sessionPassword computes the login password for a challenge. This is a
// wire contract with the router and must match bit-for-bit.
func sessionPassword(appToken, challenge string) string {
	mac := hmac.New(sha1.New, []byte(appToken))
	mac.Write([]byte(challenge))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *Authenticator) logInfo(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Info(msg, args...)
	}
}

func (a *Authenticator) logDebug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
