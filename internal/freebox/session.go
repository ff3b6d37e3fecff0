package freebox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/freebox-bridge/internal/infrastructure/logging"
)

// SessionState is the lifecycle state of the session manager.
type SessionState int

// Session lifecycle: Unauthenticated -> Authenticating -> Active ->
// Expired -> Authenticating -> ... , with Disabled terminal once the
// router rejects the app token itself.
const (
	StateUnauthenticated SessionState = iota
	StateAuthenticating
	StateActive
	StateExpired
	StateDisabled
)

// String returns the state name for logging.
func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Authorizer performs the challenge-response login. Implemented by
// Authenticator; a narrower interface keeps session tests free of HTTP.
type Authorizer interface {
	Login(ctx context.Context, creds *AppCredentials) (*SessionToken, error)
}

// SessionManager owns the single active session token for one router.
//
// Any number of concurrent callers may ask for a token; when the current
// one is expired or absent, exactly one login flows to the Authorizer and
// every caller awaits its result (single-flight guarantee). A login that
// fails with ErrAuthRejected disables the manager permanently: the app
// token was revoked and only re-registration can recover.
type SessionManager struct {
	auth  Authorizer
	creds *AppCredentials

	mu    sync.RWMutex
	state SessionState
	token *SessionToken

	group  singleflight.Group
	logger *logging.Logger
}

// NewSessionManager creates a session manager for the given credentials.
func NewSessionManager(auth Authorizer, creds *AppCredentials) *SessionManager {
	return &SessionManager{
		auth:  auth,
		creds: creds,
		state: StateUnauthenticated,
	}
}

// SetLogger sets an optional logger. Tokens are never logged.
func (m *SessionManager) SetLogger(logger *logging.Logger) {
	m.logger = logger
}

// State returns the current lifecycle state.
func (m *SessionManager) State() SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Token returns the active session token, logging in first when none is
// held. Concurrent callers during a login share the one in-flight
// attempt rather than starting their own.
//
// Returns ErrSessionDisabled once the manager has been disabled.
func (m *SessionManager) Token(ctx context.Context) (*SessionToken, error) {
	m.mu.RLock()
	state, token := m.state, m.token
	m.mu.RUnlock()

	switch state {
	case StateActive:
		return token, nil
	case StateDisabled:
		return nil, ErrSessionDisabled
	}

	result, err, _ := m.group.Do("login", func() (any, error) {
		return m.login(ctx)
	})
	if err != nil {
		return nil, err
	}

	tok, ok := result.(*SessionToken)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected login result", ErrFetchFailed)
	}
	return tok, nil
}

// login performs one authentication attempt and updates the state machine.
// Only ever runs inside the single-flight group.
func (m *SessionManager) login(ctx context.Context) (*SessionToken, error) {
	m.mu.Lock()
	// A racing caller may have completed the login before this one
	// entered the group; reuse its token.
	if m.state == StateActive {
		token := m.token
		m.mu.Unlock()
		return token, nil
	}
	if m.state == StateDisabled {
		m.mu.Unlock()
		return nil, ErrSessionDisabled
	}
	m.state = StateAuthenticating
	m.mu.Unlock()

	token, err := m.auth.Login(ctx, m.creds)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		if errors.Is(err, ErrAuthRejected) {
			m.state = StateDisabled
			m.token = nil
			m.logError("app token rejected, sessions disabled until re-registration")
			return nil, err
		}
		// Transient failure: back to expired so the next caller retries
		// on the poll coordinator's schedule, not in a tight loop here.
		m.state = StateExpired
		return nil, err
	}

	m.state = StateActive
	m.token = token
	m.logDebug("session established", "state", m.state.String())
	return token, nil
}

// Invalidate marks the session expired after a response signalled
// rejection. Idempotent, and a stale token (from a request that raced a
// renewal) does not invalidate the newer session.
func (m *SessionManager) Invalidate(rejected string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return
	}
	if m.token != nil && rejected != "" && m.token.Token != rejected {
		return
	}

	m.state = StateExpired
	m.token = nil
	m.logDebug("session invalidated")
}

// Current returns the held token without triggering a login. Used by
// shutdown paths that want to log out best-effort.
func (m *SessionManager) Current() *SessionToken {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *SessionManager) logDebug(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

func (m *SessionManager) logError(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Error(msg, args...)
	}
}
