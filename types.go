package tokenward

import (
	"time"

	"github.com/wardenlabs/tokenward/breach"
	"github.com/wardenlabs/tokenward/claims"
	"github.com/wardenlabs/tokenward/jwt"
	"github.com/wardenlabs/tokenward/keyring"
	"github.com/wardenlabs/tokenward/refresh"
)

// Claims is a validated claim set. See the claims package for the per-claim
// normalization rules.
type Claims = claims.Claims

// Token is a decoded, signature-verified token (unverified after
// [Engine.DecodeWithoutVerification]).
type Token = jwt.Token

// Algorithm names a supported signing algorithm.
type Algorithm = jwt.Algorithm

// Supported signing algorithms.
const (
	HS256 = jwt.HS256
	RS256 = jwt.RS256
	ES256 = jwt.ES256
)

// Token purpose literals carried in the "type" claim.
const (
	TypeAuth              = jwt.TypeAuth
	TypeAPI               = jwt.TypeAPI
	TypeRefresh           = jwt.TypeRefresh
	TypeSession           = jwt.TypeSession
	TypePasswordReset     = jwt.TypePasswordReset
	TypeEmailVerification = jwt.TypeEmailVerification
)

// TokenPair is one issued access/refresh credential set, returned by
// [Engine.GenerateTokenPair] and [Engine.Refresh].
type TokenPair = refresh.TokenPair

// SigningKey is one keyring entry: id, algorithm, material, and its
// active/grace/expired lifecycle timestamps.
type SigningKey = keyring.SigningKey

// RequestContext carries the request attributes breach detection
// fingerprints: IP, user agent, headers.
type RequestContext = breach.RequestContext

// SecurityAlert is one persisted breach-detection finding.
type SecurityAlert = breach.SecurityAlert

// ThreatReport is the scored security posture from [Engine.ThreatLevel].
type ThreatReport = breach.ThreatReport

// BreachResult reports the outcome of one recorded observation: the
// source's blocked standing plus any alerts the observation raised.
type BreachResult = breach.Result

// Alert types raised by breach detection.
const (
	AlertBruteForce  = breach.AlertBruteForce
	AlertHighVolume  = breach.AlertHighVolume
	AlertTokenReplay = breach.AlertTokenReplay
)

// Alert severities.
const (
	SeverityLow      = breach.SeverityLow
	SeverityMedium   = breach.SeverityMedium
	SeverityHigh     = breach.SeverityHigh
	SeverityCritical = breach.SeverityCritical
)

// IntrospectionResult is the non-throwing validity report returned by
// [Engine.Introspect]. Active is false whenever validation failed; Code
// then carries the taxonomy code and Reason the human-readable cause.
type IntrospectionResult struct {
	Active bool `json:"active"`

	TokenID   string         `json:"jti,omitempty"`
	TokenType string         `json:"token_type,omitempty"`
	Subject   string         `json:"sub,omitempty"`
	Issuer    string         `json:"iss,omitempty"`
	Algorithm Algorithm      `json:"alg,omitempty"`
	KeyID     string         `json:"kid,omitempty"`
	IssuedAt  time.Time      `json:"iat,omitzero"`
	ExpiresAt time.Time      `json:"exp,omitzero"`
	Claims    map[string]any `json:"claims,omitempty"`

	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// HealthStatus reports reachability of the engine's collaborators.
type HealthStatus struct {
	CacheOK      bool
	CacheLatency time.Duration
	KeyringOK    bool
}
