package jwt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/juju/clock"

	"github.com/wardenlabs/tokenward/claims"
)

// Token purposes. Every issued token carries exactly one of these in its
// type claim, and each Validate method pins the purpose it accepts.
const (
	TypeAuth              = "auth"
	TypeAPI               = "api"
	TypeRefresh           = "refresh"
	TypeSession           = "session"
	TypePasswordReset     = "password_reset"
	TypeEmailVerification = "email_verification"
)

// Custom claim names used by the validator and the refresh manager.
const (
	ClaimTokenType   = "type"
	ClaimUserID      = "user_id"
	ClaimSessionID   = "session_id"
	ClaimEmail       = "email"
	ClaimScopes      = "scopes"
	ClaimRoles       = "roles"
	ClaimPermissions = "permissions"
)

// KeySource supplies the verification key set, typically the keyring's
// current key plus every historical key still inside its grace period.
type KeySource interface {
	VerificationKeys(ctx context.Context) ([]Key, error)
}

// StaticKeys is a KeySource over a fixed key slice, for single-key setups
// and tests.
type StaticKeys []Key

func (s StaticKeys) VerificationKeys(context.Context) ([]Key, error) { return s, nil }

// RevocationChecker answers whether a jti has been blacklisted. An error
// from the checker is treated as fail-open: validation proceeds without
// revocation protection rather than rejecting live traffic.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string, now time.Time) (bool, error)
}

// ValidatorConfig wires the validator's collaborators. Keys is required;
// Clock defaults to the wall clock; Revocations is optional.
type ValidatorConfig struct {
	Keys           KeySource
	Clock          clock.Clock
	Leeway         time.Duration
	RequiredClaims []string
	Issuer         string
	Audience       string
	Revocations    RevocationChecker
}

// Validator decodes tokens against the live key set and layers purpose
// semantics on top: type pinning, ownership, scopes/roles/permissions.
type Validator struct {
	cfg ValidatorConfig
}

// NewValidator builds a Validator.
func NewValidator(cfg ValidatorConfig) (*Validator, error) {
	if cfg.Keys == nil {
		return nil, errors.New("validator requires a key source")
	}
	if cfg.Leeway < 0 {
		return nil, errors.New("validator leeway must not be negative")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	return &Validator{cfg: cfg}, nil
}

// Validate runs the purpose-independent checks: signature against the
// current key set, required claims, timing, issuer/audience when pinned,
// and the revocation list when wired.
func (v *Validator) Validate(ctx context.Context, token string) (*Token, error) {
	keys, err := v.cfg.Keys.VerificationKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading verification keys: %w", err)
	}
	now := v.cfg.Clock.Now()

	opts := []DecodeOption{WithTiming(now, v.cfg.Leeway)}
	if len(v.cfg.RequiredClaims) > 0 {
		opts = append(opts, WithRequiredClaims(v.cfg.RequiredClaims...))
	}
	tok, err := Decode(token, keys, opts...)
	if err != nil {
		return nil, err
	}

	if v.cfg.Issuer != "" {
		iss, _ := tok.Claims.Issuer()
		if iss != v.cfg.Issuer {
			return nil, &claims.MismatchError{Claim: claims.ClaimIssuer, Expected: v.cfg.Issuer, Actual: iss}
		}
	}
	if v.cfg.Audience != "" {
		aud, _ := tok.Claims.Audience()
		if !containsString(aud, v.cfg.Audience) {
			return nil, &claims.MismatchError{Claim: claims.ClaimAudience, Expected: v.cfg.Audience, Actual: aud}
		}
	}

	if v.cfg.Revocations != nil {
		if jti, ok := tok.Claims.ID(); ok {
			revoked, err := v.cfg.Revocations.IsRevoked(ctx, jti, now)
			if err != nil {
				// Fail open: revocation is an extra guard, not a gate that
				// takes the whole system down with the cache.
				log.Print("tokenward: revocation check unavailable: ", err)
			} else if revoked {
				return nil, &RevokedError{TokenID: jti}
			}
		}
	}
	return tok, nil
}

// ValidateAuthToken validates an access token. A non-empty userID must
// match the token's user_id claim or its sub claim; either is accepted.
func (v *Validator) ValidateAuthToken(ctx context.Context, token, userID string) (*Token, error) {
	tok, err := v.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := requireType(tok, TypeAuth); err != nil {
		return nil, err
	}
	if userID != "" {
		if err := requireUser(tok, userID); err != nil {
			return nil, err
		}
	}
	return tok, nil
}

// ValidateAPIToken validates an API token and requires every listed scope.
func (v *Validator) ValidateAPIToken(ctx context.Context, token string, scopes []string) (*Token, error) {
	tok, err := v.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := requireType(tok, TypeAPI); err != nil {
		return nil, err
	}
	if err := RequireScopes(tok, scopes); err != nil {
		return nil, err
	}
	return tok, nil
}

// ValidateRefreshToken validates a refresh token. Refresh tokens must
// carry a jti; rotation bookkeeping is keyed on it.
func (v *Validator) ValidateRefreshToken(ctx context.Context, token string) (*Token, error) {
	tok, err := v.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := requireType(tok, TypeRefresh); err != nil {
		return nil, err
	}
	if _, ok := tok.Claims.ID(); !ok {
		return nil, &claims.ValidationError{Missing: []string{claims.ClaimID}}
	}
	return tok, nil
}

// ValidateSessionToken validates a session token, pinning session_id when
// sessionID is non-empty.
func (v *Validator) ValidateSessionToken(ctx context.Context, token, sessionID string) (*Token, error) {
	tok, err := v.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := requireType(tok, TypeSession); err != nil {
		return nil, err
	}
	if sessionID != "" {
		actual, _ := tok.Claims.GetDefault(ClaimSessionID, "").(string)
		if actual != sessionID {
			return nil, &claims.MismatchError{Claim: ClaimSessionID, Expected: sessionID, Actual: actual}
		}
	}
	return tok, nil
}

// ValidatePasswordResetToken validates a password-reset token for userID.
func (v *Validator) ValidatePasswordResetToken(ctx context.Context, token, userID string) (*Token, error) {
	tok, err := v.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := requireType(tok, TypePasswordReset); err != nil {
		return nil, err
	}
	if err := requireUser(tok, userID); err != nil {
		return nil, err
	}
	return tok, nil
}

// ValidateEmailVerificationToken validates an email-verification token
// bound to email.
func (v *Validator) ValidateEmailVerificationToken(ctx context.Context, token, email string) (*Token, error) {
	tok, err := v.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := requireType(tok, TypeEmailVerification); err != nil {
		return nil, err
	}
	actual, _ := tok.Claims.GetDefault(ClaimEmail, "").(string)
	if actual != email {
		return nil, &claims.MismatchError{Claim: ClaimEmail, Expected: email, Actual: actual}
	}
	return tok, nil
}

// RequireScopes fails when any required scope is absent from the token,
// naming every missing entry.
func RequireScopes(tok *Token, required []string) error {
	return requireSet(tok, ClaimScopes, "scope", required)
}

// RequireRoles fails when any required role is absent from the token.
func RequireRoles(tok *Token, required []string) error {
	return requireSet(tok, ClaimRoles, "role", required)
}

// RequirePermissions fails when any required permission is absent.
func RequirePermissions(tok *Token, required []string) error {
	return requireSet(tok, ClaimPermissions, "permission", required)
}

// HasScope reports whether the token holds the scope.
func HasScope(tok *Token, scope string) bool {
	return containsString(stringSet(tok.Claims, ClaimScopes), scope)
}

// HasRole reports whether the token holds the role. The singular role
// claim counts alongside the roles list.
func HasRole(tok *Token, role string) bool {
	if r, _ := tok.Claims.GetDefault("role", "").(string); r == role && role != "" {
		return true
	}
	return containsString(stringSet(tok.Claims, ClaimRoles), role)
}

// HasPermission reports whether the token holds the permission.
func HasPermission(tok *Token, perm string) bool {
	return containsString(stringSet(tok.Claims, ClaimPermissions), perm)
}

func requireType(tok *Token, expected string) error {
	actual := tok.Type()
	if actual != expected {
		return &claims.MismatchError{Claim: ClaimTokenType, Expected: expected, Actual: actual}
	}
	return nil
}

// requireUser accepts a match on either the user_id claim or sub. Numeric
// claim values compare by their canonical decimal form, so user_id 42
// matches "42".
func requireUser(tok *Token, userID string) error {
	if v, ok := tok.Claims.Get(ClaimUserID); ok && claimMatchesID(v, userID) {
		return nil
	}
	if sub, ok := tok.Claims.Subject(); ok && sub == userID {
		return nil
	}
	actual := tok.Claims.GetDefault(ClaimUserID, tok.Claims.GetDefault(claims.ClaimSubject, ""))
	return &claims.MismatchError{Claim: ClaimUserID, Expected: userID, Actual: actual}
}

func requireSet(tok *Token, claim, what string, required []string) error {
	if len(required) == 0 {
		return nil
	}
	held := stringSet(tok.Claims, claim)
	var missing []string
	for _, r := range required {
		if !containsString(held, r) {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return &InsufficientError{What: what, Missing: missing}
	}
	return nil
}

func claimMatchesID(v any, id string) bool {
	switch n := v.(type) {
	case string:
		return n == id
	case int64:
		return strconv.FormatInt(n, 10) == id
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64) == id
	}
	return false
}

// stringSet reads a claim that may have decoded as []string or []any.
func stringSet(c claims.Claims, name string) []string {
	v, ok := c.Get(name)
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		return []string{s}
	}
	return nil
}

func containsString(set []string, want string) bool {
	for _, s := range set {
		if s == want {
			return true
		}
	}
	return false
}
