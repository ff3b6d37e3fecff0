// Package freebox implements a client for the Freebox router's local API.
//
// The package is layered bottom-up:
//
//   - Transport issues HTTPS requests to the router and maps the API's
//     response envelope onto typed errors. The router presents a
//     self-signed certificate, so verification is skipped for HTTPS.
//   - Authenticator performs the one-time registration handshake (the
//     user presses a button on the router) and the per-session
//     challenge-response login.
//   - SessionManager owns the current session token, renews it through
//     a single-flight login when it expires, and goes Disabled when the
//     router rejects the app token outright.
//   - Gateway provides typed reads and mutations per API resource,
//     retrying exactly once on session expiry.
//
// The challenge-response scheme is a wire contract: the password is the
// hex encoding of HMAC-SHA1 over the challenge, keyed by the app token.
// App and session tokens are secrets and are never logged.
package freebox
