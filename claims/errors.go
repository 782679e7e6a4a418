package claims

import (
	"errors"
	"fmt"
	"strings"
)

// Stable machine-readable codes carried by the typed claim errors. Boundary
// layers serialize these instead of error strings.
const (
	CodeInvalidClaim = "claim_invalid"
	CodeMissingClaim = "claim_missing"
	CodeMismatch     = "claim_mismatch"
	CodeExpired      = "token_expired"
	CodeNotYetValid  = "token_not_yet_valid"
)

// Sentinel errors for errors.Is branching. The typed errors below unwrap to
// these, so callers can match coarsely on the sentinel or extract detail
// with errors.As.
var (
	ErrInvalidClaim = errors.New("invalid claim value")
	ErrMissingClaim = errors.New("missing required claim")
	ErrMismatch     = errors.New("claim mismatch")
	ErrExpired      = errors.New("token expired")
	ErrNotYetValid  = errors.New("token not yet valid")
)

// ClaimError reports a write rejected by claim validation.
type ClaimError struct {
	Claim  string
	Reason string
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("claim %q: %s", e.Claim, e.Reason)
}

func (e *ClaimError) Unwrap() error { return ErrInvalidClaim }

func (e *ClaimError) Code() string { return CodeInvalidClaim }

// ValidationError reports required claims absent from a claim set.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required claims: " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrMissingClaim }

func (e *ValidationError) Code() string { return CodeMissingClaim }

// MismatchError reports a claim present with an unexpected value.
type MismatchError struct {
	Claim    string
	Expected any
	Actual   any
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("claim %q: expected %v, got %v", e.Claim, e.Expected, e.Actual)
}

func (e *MismatchError) Unwrap() error { return ErrMismatch }

func (e *MismatchError) Code() string { return CodeMismatch }

// ExpiredError reports a claim set past its expiry, leeway included.
// Callers distinguish it from NotYetValidError so an expired token can be
// routed to refresh instead of rejected outright.
type ExpiredError struct {
	ExpiresAt int64
	Now       int64
	Leeway    int64
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("token expired at %d (now %d, leeway %ds)", e.ExpiresAt, e.Now, e.Leeway)
}

func (e *ExpiredError) Unwrap() error { return ErrExpired }

func (e *ExpiredError) Code() string { return CodeExpired }

// NotYetValidError reports a claim set used before its nbf.
type NotYetValidError struct {
	NotBefore int64
	Now       int64
	Leeway    int64
}

func (e *NotYetValidError) Error() string {
	return fmt.Sprintf("token not valid before %d (now %d, leeway %ds)", e.NotBefore, e.Now, e.Leeway)
}

func (e *NotYetValidError) Unwrap() error { return ErrNotYetValid }

func (e *NotYetValidError) Code() string { return CodeNotYetValid }
