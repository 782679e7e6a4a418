// Package middleware exposes net/http middleware enforcing bearer-token
// authentication through a [tokenward.Engine].
//
// # Guards
//
//   - [Guard] — admits any valid token regardless of its type claim.
//   - [RequireAuth] — admits access tokens only.
//   - [RequireAPI] — admits API tokens carrying a required scope set.
//
// Each guard reads the Authorization header, attaches the client address
// and user agent to the request context for breach fingerprinting, vetoes
// blocked IPs, validates the token, and stores the result for
// [TokenFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does not
// implement validation itself; every accept/reject decision is the
// engine's.
package middleware
