package tokenward

import (
	"errors"
	"fmt"

	"github.com/wardenlabs/tokenward/cache"
	"github.com/wardenlabs/tokenward/claims"
	"github.com/wardenlabs/tokenward/jwt"
	"github.com/wardenlabs/tokenward/keyring"
	"github.com/wardenlabs/tokenward/refresh"
)

// Subpackage sentinels re-exported so callers can errors.Is against the
// whole engine with a single import. The typed errors behind them
// (jwt.MalformedTokenError, claims.MismatchError, refresh.ReplayError, ...)
// stay reachable through errors.As.
var (
	// ErrTokenMalformed matches any structural token fault: wrong segment
	// count, empty segment, bad base64url, bad JSON.
	ErrTokenMalformed = jwt.ErrMalformed
	// ErrSignatureInvalid matches verification failure against every
	// candidate key.
	ErrSignatureInvalid = jwt.ErrSignatureInvalid
	// ErrTokenExpired matches exp violations after leeway.
	ErrTokenExpired = claims.ErrExpired
	// ErrTokenNotYetValid matches nbf violations after leeway.
	ErrTokenNotYetValid = claims.ErrNotYetValid
	// ErrClaimInvalid matches claim writes rejected by normalization.
	ErrClaimInvalid = claims.ErrInvalidClaim
	// ErrClaimMissing matches required claims absent from a token.
	ErrClaimMissing = claims.ErrMissingClaim
	// ErrClaimMismatch matches wrong type/user/session/email/issuer/audience
	// claims.
	ErrClaimMismatch = claims.ErrMismatch
	// ErrTokenRevoked matches tokens whose jti is blacklisted past grace.
	ErrTokenRevoked = jwt.ErrRevoked
	// ErrReplayDetected matches refresh reuse, family exhaustion, and
	// revoked families.
	ErrReplayDetected = refresh.ErrReplay
	// ErrInsufficientAccess matches scope/role/permission shortfalls.
	ErrInsufficientAccess = jwt.ErrInsufficientAccess
	// ErrUnsupportedAlgorithm matches algorithm names outside HS256/RS256/ES256.
	ErrUnsupportedAlgorithm = jwt.ErrUnsupportedAlgorithm
	// ErrCacheUnavailable wraps cache transport failures on paths that are
	// not fail-open.
	ErrCacheUnavailable = cache.ErrUnavailable
)

// Engine-level sentinels.
var (
	// ErrEngineNotReady is returned by operations on a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrRotationDisabled is returned by key-rotation operations when the
	// engine was built without a keyring.
	ErrRotationDisabled = errors.New("key rotation disabled")
	// ErrBlacklistDisabled is returned by InvalidateToken when the engine
	// was built without a blacklist.
	ErrBlacklistDisabled = errors.New("token blacklist disabled")
)

// CodeConfiguration is the stable code carried by ConfigurationError.
const CodeConfiguration = "configuration_error"

// CodeUnknown is what ErrorCode reports for errors outside the taxonomy.
const CodeUnknown = "unknown_error"

// ConfigurationError reports invalid startup configuration. It is fatal:
// Build refuses to construct an engine and the error is never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Code returns the stable machine-readable code.
func (e *ConfigurationError) Code() string { return CodeConfiguration }

// coder is implemented by every typed error in the taxonomy.
type coder interface {
	Code() string
}

// ErrorCode maps any engine error to its stable machine-readable code.
// Typed errors report their own code; bare sentinels are mapped here so
// boundary layers can serialize a code without switching on error types.
// Unknown errors map to CodeUnknown, nil to the empty string.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	switch {
	case errors.Is(err, jwt.ErrMalformed):
		return jwt.CodeMalformed
	case errors.Is(err, jwt.ErrSignatureInvalid),
		errors.Is(err, jwt.ErrNoKeys),
		errors.Is(err, jwt.ErrAlgorithmMismatch):
		return jwt.CodeSignatureInvalid
	case errors.Is(err, jwt.ErrUnsupportedAlgorithm):
		return jwt.CodeUnsupportedAlgorithm
	case errors.Is(err, jwt.ErrRevoked):
		return jwt.CodeRevoked
	case errors.Is(err, claims.ErrExpired):
		return claims.CodeExpired
	case errors.Is(err, claims.ErrNotYetValid):
		return claims.CodeNotYetValid
	case errors.Is(err, claims.ErrInvalidClaim):
		return claims.CodeInvalidClaim
	case errors.Is(err, claims.ErrMissingClaim):
		return claims.CodeMissingClaim
	case errors.Is(err, claims.ErrMismatch):
		return claims.CodeMismatch
	case errors.Is(err, refresh.ErrReplay):
		return refresh.CodeReplay
	case errors.Is(err, jwt.ErrKeyMaterial):
		return keyring.CodeKeyError
	case errors.Is(err, cache.ErrUnavailable):
		return "cache_unavailable"
	}
	return CodeUnknown
}
