// Package refresh issues access/refresh token pairs and rotates refresh
// tokens with family-based theft detection.
//
// # Family tracking
//
// Every refresh token belongs to a family named by the jti of the family's
// first token. A per-family rotation ledger lives in the shared cache and
// advances by compare-and-swap, so concurrent rotations agree on a single
// successor. Presenting a token that was rotated away is the theft signal:
// the family is revoked for the remaining lifetime of its newest member
// and the presentation is reported to breach detection.
//
// A short overlap window after each rotation still honors the immediately
// superseded token, absorbing clients that retried a refresh over a flaky
// network.
//
// # Failure posture
//
// Ledger reads and writes fail open on cache outages: refreshes keep
// working without replay protection rather than logging everyone out.
// Rotation counts are also carried inside the signed tokens themselves, so
// family exhaustion holds even while the ledger is unreachable.
package refresh
