package freebox

import (
	"errors"
	"fmt"
)

// Sentinel errors for router API operations.
var (
	// ErrTransport indicates a network-level failure (DNS, connect,
	// TLS, timeout). The request may or may not have reached the router.
	ErrTransport = errors.New("freebox: transport error")

	// ErrAuthRejected indicates the router rejected the app token during
	// login. Unrecoverable without re-registration.
	ErrAuthRejected = errors.New("freebox: authentication rejected")

	// ErrRegistrationDenied indicates the user refused the authorization
	// request on the router's front panel.
	ErrRegistrationDenied = errors.New("freebox: registration denied")

	// ErrRegistrationTimeout indicates the authorization request expired
	// before the user confirmed it.
	ErrRegistrationTimeout = errors.New("freebox: registration timed out")

	// ErrSessionExpired indicates the router no longer accepts the
	// session token. Recovered internally by re-login; never surfaced
	// past the Gateway.
	ErrSessionExpired = errors.New("freebox: session expired")

	// ErrPermissionDenied indicates the operation is not covered by the
	// permissions granted to this app.
	ErrPermissionDenied = errors.New("freebox: permission denied")

	// ErrUnsupportedEndpoint indicates the router model lacks the
	// endpoint. Expected on some hardware, logged at low severity.
	ErrUnsupportedEndpoint = errors.New("freebox: endpoint not supported by this device")

	// ErrFetchFailed is the generic failure after retry exhaustion.
	ErrFetchFailed = errors.New("freebox: fetch failed")

	// ErrNotRegistered indicates no app credentials are available.
	ErrNotRegistered = errors.New("freebox: app not registered")

	// ErrSessionDisabled indicates the session manager reached its
	// terminal state after an unrecoverable credential rejection.
	ErrSessionDisabled = errors.New("freebox: session disabled, re-registration required")
)

// APIError carries an error code and message from the router's response
// envelope when it does not map to a more specific sentinel.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("freebox: api error %s: %s", e.Code, e.Message)
}

// isSessionRejection reports whether an error carries the router's
// session-rejection signal.
func isSessionRejection(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// Error codes from the router's response envelope.
const (
	codeAuthRequired       = "auth_required"
	codeInvalidToken       = "invalid_token"
	codeInvalidSession     = "invalid_session"
	codeInsufficientRights = "insufficient_rights"
)
