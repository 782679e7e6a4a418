package jwt

import (
	"errors"
	"fmt"
	"strings"
)

// Stable machine-readable codes for the codec and validator errors.
const (
	CodeMalformed            = "token_malformed"
	CodeSignatureInvalid     = "signature_invalid"
	CodeRevoked              = "token_revoked"
	CodeInsufficientScope    = "insufficient_scope"
	CodeInsufficientRole     = "insufficient_role"
	CodeInsufficientPerm     = "insufficient_permission"
	CodeUnsupportedAlgorithm = "unsupported_algorithm"
)

// Sentinels for errors.Is branching across the codec surface.
var (
	// ErrMalformed marks structurally invalid tokens: wrong segment count,
	// bad base64, bad JSON.
	ErrMalformed = errors.New("malformed token")

	// ErrSignatureInvalid marks a token whose signature verified against no
	// candidate key.
	ErrSignatureInvalid = errors.New("invalid token signature")

	// ErrUnsupportedAlgorithm marks an algorithm outside {HS256, RS256,
	// ES256}, on either the signing or the verification path.
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

	// ErrAlgorithmMismatch marks a token whose header algorithm matches no
	// candidate key's declared algorithm. Returned before any signature
	// check runs.
	ErrAlgorithmMismatch = errors.New("token algorithm matches no candidate key")

	// ErrNoKeys marks a verification attempt with an empty key set.
	ErrNoKeys = errors.New("no verification keys available")

	// ErrKeyMaterial marks key material whose shape does not fit the key's
	// declared algorithm (e.g. an RSA key on an HS256 key entry).
	ErrKeyMaterial = errors.New("key material does not match algorithm")

	// ErrRevoked marks a token whose jti is blacklisted.
	ErrRevoked = errors.New("token revoked")

	// ErrInsufficientAccess marks missing scopes, roles, or permissions.
	ErrInsufficientAccess = errors.New("insufficient access")
)

// MalformedTokenError reports a structurally invalid token with the
// specific fault. It never echoes token content back to the caller.
type MalformedTokenError struct {
	Reason string
	Err    error
}

func (e *MalformedTokenError) Error() string {
	return "malformed token: " + e.Reason
}

func (e *MalformedTokenError) Unwrap() error { return e.Err }

func (e *MalformedTokenError) Is(target error) bool { return target == ErrMalformed }

func (e *MalformedTokenError) Code() string { return CodeMalformed }

// SignatureError reports a failed signing or verification. On the verify
// path Tried counts the candidate keys exhausted; on the sign path KeyID
// names the key that failed.
type SignatureError struct {
	Op    string // "sign" or "verify"
	KeyID string
	Tried int
	Err   error
}

func (e *SignatureError) Error() string {
	if e.Op == "sign" {
		return fmt.Sprintf("signing with key %q failed: %v", e.KeyID, e.Err)
	}
	return fmt.Sprintf("signature verification failed against %d candidate key(s)", e.Tried)
}

func (e *SignatureError) Unwrap() error { return e.Err }

func (e *SignatureError) Is(target error) bool { return target == ErrSignatureInvalid }

func (e *SignatureError) Code() string { return CodeSignatureInvalid }

// RevokedError reports a blacklisted token.
type RevokedError struct {
	TokenID string
}

func (e *RevokedError) Error() string {
	return fmt.Sprintf("token %s has been revoked", e.TokenID)
}

func (e *RevokedError) Is(target error) bool { return target == ErrRevoked }

func (e *RevokedError) Code() string { return CodeRevoked }

// InsufficientError reports required scopes, roles, or permissions the
// token does not hold. What is one of "scope", "role", "permission".
type InsufficientError struct {
	What    string
	Missing []string
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("missing required %ss: %s", e.What, strings.Join(e.Missing, ", "))
}

func (e *InsufficientError) Is(target error) bool { return target == ErrInsufficientAccess }

func (e *InsufficientError) Code() string {
	switch e.What {
	case "role":
		return CodeInsufficientRole
	case "permission":
		return CodeInsufficientPerm
	default:
		return CodeInsufficientScope
	}
}
