package tokenward

import (
	"errors"
	"strings"
	"time"

	"github.com/wardenlabs/tokenward/jwt"
)

// Config is the full engine configuration. Zero values fall back to the
// documented defaults; Build validates the result before any component is
// constructed.
type Config struct {
	Signing   SigningConfig
	Tokens    TokenConfig
	Rotation  RotationConfig
	Refresh   RefreshConfig
	Blacklist BlacklistConfig
	Breach    BreachConfig
	Cache     CacheConfig
	Alerts    AlertConfig
	Metrics   MetricsConfig
}

/*
====================================
SIGNING CONFIG
====================================
*/

// SigningConfig carries the static signing credentials and the claims
// stamped onto every minted token. With key rotation enabled the key
// material fields are ignored; the keyring generates and publishes its own.
type SigningConfig struct {
	Algorithm Algorithm

	// Secret is the HMAC key for HS256. At least 32 bytes.
	Secret []byte

	// KeyID names the static key in token headers.
	KeyID string

	// PEM-encoded material for RS256/ES256.
	PrivateKeyPEM []byte
	PublicKeyPEM  []byte

	// Issuer, Audience, and Subject are stamped onto minted tokens and
	// pinned during validation when non-empty. Subject applies only to
	// tokens minted without an explicit subject.
	Issuer   string
	Audience string
	Subject  string
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig carries token lifetimes and validation policy.
type TokenConfig struct {
	// TTL is the access-token lifetime.
	TTL time.Duration

	// RefreshTTL is the refresh-token lifetime. Must exceed TTL.
	RefreshTTL time.Duration

	// Leeway tolerates clock drift on exp/nbf checks.
	Leeway time.Duration

	// RequiredClaims must be present on every validated token.
	// Defaults to iss, iat, exp, nbf, sub.
	RequiredClaims []string
}

/*
====================================
ROTATION CONFIG
====================================
*/

// RotationConfig controls the keyring. Disabled by default; the engine
// then signs with the static SigningConfig material.
type RotationConfig struct {
	Enabled bool

	// Interval is how long a key signs before rotation.
	Interval time.Duration

	// GracePeriod is how long a rotated-away key still verifies.
	GracePeriod time.Duration

	// MaxKeys caps retained history per algorithm.
	MaxKeys int

	// AutoRotation rotates lazily on first use past Interval. When false,
	// rotation happens only through Engine.RotateKey.
	AutoRotation bool

	// KeyStrength is the HMAC secret length in bits.
	KeyStrength int

	// Algorithms the keyring maintains. Defaults to the signing algorithm.
	Algorithms []Algorithm
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls refresh-token rotation and replay policy.
type RefreshConfig struct {
	// MaxRefreshCount caps rotations per token family. 0 means unlimited.
	MaxRefreshCount int

	// RotationOverlap is how long the immediately superseded refresh token
	// stays honored, absorbing honest retry races.
	RotationOverlap time.Duration

	// DisableRotation reissues access tokens on refresh while keeping the
	// presented refresh token in place.
	DisableRotation bool
}

/*
====================================
BLACKLIST CONFIG
====================================
*/

// BlacklistConfig controls the jti revocation list.
type BlacklistConfig struct {
	Enabled bool

	// GracePeriod lets in-flight requests holding a just-invalidated token
	// finish before rejection begins.
	GracePeriod time.Duration
}

/*
====================================
BREACH CONFIG
====================================
*/

// BreachConfig carries the detection thresholds, sliding-window lengths,
// and auto-block policy.
type BreachConfig struct {
	Enabled bool

	FailedAuthThreshold int
	FailedAuthWindow    time.Duration
	IPRequestThreshold  int
	IPRequestWindow     time.Duration
	TokenReuseThreshold int
	TokenReuseWindow    time.Duration

	AutoBlockEnabled  bool
	BlockIPDuration   time.Duration
	BlockUserDuration time.Duration

	AlertRetention time.Duration
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig controls the shared key-value store.
type CacheConfig struct {
	// KeyPrefix namespaces every key this engine writes.
	KeyPrefix string
}

/*
====================================
ALERT CONFIG
====================================
*/

// AlertConfig controls the asynchronous alert dispatcher.
type AlertConfig struct {
	Enabled    bool
	BufferSize int

	// DropIfFull sheds alerts when the buffer is full instead of blocking
	// the raising goroutine. Drops are counted.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration the engine starts from: HS256
// with a 15-minute access TTL, weekly refresh TTL, blacklist and breach
// detection on, rotation and metrics off.
func DefaultConfig() Config {
	return Config{
		Signing: SigningConfig{
			Algorithm: HS256,
			KeyID:     "primary",
			Issuer:    "tokenward",
		},
		Tokens: TokenConfig{
			TTL:            15 * time.Minute,
			RefreshTTL:     7 * 24 * time.Hour,
			Leeway:         0,
			RequiredClaims: []string{"iss", "iat", "exp", "nbf", "sub"},
		},
		Rotation: RotationConfig{
			Enabled:      false,
			Interval:     24 * time.Hour,
			GracePeriod:  2 * time.Hour,
			MaxKeys:      5,
			AutoRotation: true,
			KeyStrength:  256,
		},
		Refresh: RefreshConfig{
			MaxRefreshCount: 0,
			RotationOverlap: 30 * time.Second,
			DisableRotation: false,
		},
		Blacklist: BlacklistConfig{
			Enabled:     true,
			GracePeriod: 30 * time.Second,
		},
		Breach: BreachConfig{
			Enabled:             true,
			FailedAuthThreshold: 5,
			FailedAuthWindow:    15 * time.Minute,
			IPRequestThreshold:  100,
			IPRequestWindow:     time.Minute,
			TokenReuseThreshold: 3,
			TokenReuseWindow:    5 * time.Minute,
			AutoBlockEnabled:    true,
			BlockIPDuration:     time.Hour,
			BlockUserDuration:   24 * time.Hour,
			AlertRetention:      7 * 24 * time.Hour,
		},
		Cache: CacheConfig{
			KeyPrefix: "tw",
		},
		Alerts: AlertConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// HighSecurityConfig returns a preset for deployments that favor
// containment over convenience: managed key rotation, immediate
// revocation, capped refresh families, and tight breach thresholds.
// Validates as-is; the keyring generates its own signing material.
func HighSecurityConfig() Config {
	cfg := DefaultConfig()
	cfg.Tokens.TTL = 5 * time.Minute
	cfg.Tokens.RefreshTTL = 24 * time.Hour
	cfg.Rotation.Enabled = true
	cfg.Rotation.Interval = 12 * time.Hour
	cfg.Rotation.GracePeriod = time.Hour
	cfg.Blacklist.GracePeriod = 0
	cfg.Refresh.MaxRefreshCount = 96
	cfg.Refresh.RotationOverlap = 10 * time.Second
	cfg.Breach.FailedAuthThreshold = 3
	cfg.Breach.BlockIPDuration = 24 * time.Hour
	cfg.Alerts.Enabled = true
	return cfg
}

// HighThroughputConfig returns a preset for validate-heavy deployments:
// no cache hop on the validation path and generous clock leeway.
// Revocation and breach detection are traded away; compensate with the
// shorter-lived tokens this preset does not choose for you.
func HighThroughputConfig() Config {
	cfg := DefaultConfig()
	cfg.Tokens.TTL = 30 * time.Minute
	cfg.Tokens.Leeway = 30 * time.Second
	cfg.Blacklist.Enabled = false
	cfg.Breach.Enabled = false
	cfg.Refresh.RotationOverlap = time.Minute
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Signing.Secret = cloneBytes(cfg.Signing.Secret)
	out.Signing.PrivateKeyPEM = cloneBytes(cfg.Signing.PrivateKeyPEM)
	out.Signing.PublicKeyPEM = cloneBytes(cfg.Signing.PublicKeyPEM)
	out.Tokens.RequiredClaims = append([]string(nil), cfg.Tokens.RequiredClaims...)
	out.Rotation.Algorithms = append([]Algorithm(nil), cfg.Rotation.Algorithms...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for startup faults. Every failure is a
// ConfigurationError: fatal, never retried.
func (c *Config) Validate() error {
	// Signing
	if !c.Signing.Algorithm.Valid() {
		return &ConfigurationError{Field: "Signing.Algorithm",
			Reason: "must be one of " + supportedAlgorithmList()}
	}
	if !c.Rotation.Enabled {
		if c.Signing.Algorithm == HS256 && len(c.Signing.Secret) < 32 {
			return &ConfigurationError{Field: "Signing.Secret",
				Reason: "HS256 requires at least 32 bytes"}
		}
		if c.Signing.Algorithm != HS256 {
			if len(c.Signing.PrivateKeyPEM) == 0 {
				return &ConfigurationError{Field: "Signing.PrivateKeyPEM",
					Reason: string(c.Signing.Algorithm) + " requires a PEM private key"}
			}
			if len(c.Signing.PublicKeyPEM) == 0 {
				return &ConfigurationError{Field: "Signing.PublicKeyPEM",
					Reason: string(c.Signing.Algorithm) + " requires a PEM public key"}
			}
		}
	}

	// Tokens
	if c.Tokens.TTL <= 0 {
		return &ConfigurationError{Field: "Tokens.TTL", Reason: "must be > 0"}
	}
	if c.Tokens.RefreshTTL <= c.Tokens.TTL {
		return &ConfigurationError{Field: "Tokens.RefreshTTL", Reason: "must exceed Tokens.TTL"}
	}
	if c.Tokens.Leeway < 0 {
		return &ConfigurationError{Field: "Tokens.Leeway", Reason: "must be >= 0"}
	}
	if containsClaim(c.Tokens.RequiredClaims, "iss") && c.Signing.Issuer == "" {
		return &ConfigurationError{Field: "Signing.Issuer",
			Reason: "required claims include iss but no issuer is configured"}
	}

	// Rotation
	if c.Rotation.Enabled {
		if c.Rotation.Interval <= 0 {
			return &ConfigurationError{Field: "Rotation.Interval", Reason: "must be > 0"}
		}
		if c.Rotation.GracePeriod <= 0 {
			return &ConfigurationError{Field: "Rotation.GracePeriod", Reason: "must be > 0"}
		}
		if c.Rotation.MaxKeys < 1 {
			return &ConfigurationError{Field: "Rotation.MaxKeys", Reason: "must be >= 1"}
		}
		if c.Rotation.KeyStrength < 256 || c.Rotation.KeyStrength%8 != 0 {
			return &ConfigurationError{Field: "Rotation.KeyStrength",
				Reason: "must be a multiple of 8, at least 256 bits"}
		}
		for _, a := range c.Rotation.Algorithms {
			if !a.Valid() {
				return &ConfigurationError{Field: "Rotation.Algorithms",
					Reason: "unsupported algorithm " + string(a)}
			}
		}
	}

	// Refresh
	if c.Refresh.MaxRefreshCount < 0 {
		return &ConfigurationError{Field: "Refresh.MaxRefreshCount", Reason: "must be >= 0"}
	}
	if c.Refresh.RotationOverlap < 0 {
		return &ConfigurationError{Field: "Refresh.RotationOverlap", Reason: "must be >= 0"}
	}

	// Blacklist
	if c.Blacklist.Enabled && c.Blacklist.GracePeriod < 0 {
		return &ConfigurationError{Field: "Blacklist.GracePeriod", Reason: "must be >= 0"}
	}

	// Breach
	if c.Breach.Enabled {
		if c.Breach.FailedAuthThreshold < 1 || c.Breach.IPRequestThreshold < 1 ||
			c.Breach.TokenReuseThreshold < 1 {
			return &ConfigurationError{Field: "Breach", Reason: "thresholds must be >= 1"}
		}
		if c.Breach.FailedAuthWindow <= 0 || c.Breach.IPRequestWindow <= 0 ||
			c.Breach.TokenReuseWindow <= 0 {
			return &ConfigurationError{Field: "Breach", Reason: "windows must be > 0"}
		}
		if c.Breach.BlockIPDuration <= 0 || c.Breach.BlockUserDuration <= 0 {
			return &ConfigurationError{Field: "Breach", Reason: "block durations must be > 0"}
		}
		if c.Breach.AlertRetention <= 0 {
			return &ConfigurationError{Field: "Breach.AlertRetention", Reason: "must be > 0"}
		}
	}

	// Alerts
	if c.Alerts.Enabled && c.Alerts.BufferSize < 0 {
		return &ConfigurationError{Field: "Alerts.BufferSize", Reason: "must be >= 0"}
	}

	return nil
}

func containsClaim(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

/*
====================================
LINT
====================================
*/

// LintSeverity grades a configuration warning.
type LintSeverity int

const (
	LintLow LintSeverity = iota
	LintMedium
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintHigh:
		return "HIGH"
	case LintMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// LintWarning flags a configuration that Validate accepts but that weakens
// the deployment. Code is stable across releases for programmatic handling.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in emission order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Code
	}
	return out
}

// BySeverity filters to warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError folds the warnings at or above min into a single error, or nil.
// Deployments that refuse to boot on a weak configuration call
// Lint().AsError(LintHigh) next to Validate.
func (ws LintWarnings) AsError(min LintSeverity) error {
	flagged := ws.BySeverity(min)
	if len(flagged) == 0 {
		return nil
	}
	msgs := make([]string, len(flagged))
	for i, w := range flagged {
		msgs[i] = w.Code + ": " + w.Message
	}
	return errors.New("config lint: " + strings.Join(msgs, "; "))
}

// Lint reports configurations that pass Validate but weaken the security
// posture. Advisory: nothing here stops Build.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	warn := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Tokens.Leeway > time.Minute {
		warn("leeway_large", LintMedium,
			"clock leeway above one minute widens every expiry and not-before check")
	}
	if c.Tokens.TTL > 30*time.Minute {
		warn("access_ttl_long", LintMedium,
			"access tokens living past 30 minutes stretch the exposure window of a leak")
	}
	if c.Tokens.RefreshTTL > 14*24*time.Hour {
		warn("refresh_ttl_long", LintMedium,
			"refresh tokens living past 14 days keep stolen credentials usable for weeks")
	}
	if !c.Blacklist.Enabled {
		warn("blacklist_disabled", LintMedium,
			"without the blacklist, invalidation cannot take effect before natural expiry")
	}
	if c.Blacklist.Enabled && c.Blacklist.GracePeriod > 5*time.Minute {
		warn("blacklist_grace_large", LintLow,
			"invalidated tokens keep validating for the whole grace period")
	}
	if !c.Breach.Enabled {
		warn("breach_disabled", LintLow,
			"credential-stuffing and token-replay patterns go undetected")
	}
	if !c.Rotation.Enabled && c.Signing.Algorithm == HS256 {
		warn("signing_hs256", LintLow,
			"static shared-secret signing; managed rotation limits the blast radius of a key leak")
	}
	if !c.Refresh.DisableRotation && c.Refresh.MaxRefreshCount == 0 {
		warn("refresh_unbounded", LintLow,
			"refresh families rotate forever; a cap forces periodic reauthentication")
	}
	if c.Refresh.RotationOverlap > 2*time.Minute {
		warn("overlap_large", LintMedium,
			"a rotation overlap above two minutes lets a superseded token keep working long after replay should be flagged")
	}
	if c.Refresh.DisableRotation && c.Refresh.MaxRefreshCount > 0 {
		warn("exhaustion_without_rotation", LintHigh,
			"MaxRefreshCount never triggers while rotation is disabled: the rotation counter does not advance")
	}
	if c.Alerts.Enabled && !c.Breach.Enabled {
		warn("alerts_without_breach", LintMedium,
			"the alert pipeline is fed by breach detection, which is disabled")
	}
	return ws
}

func supportedAlgorithmList() string {
	out := ""
	for i, a := range jwt.SupportedAlgorithms() {
		if i > 0 {
			out += ", "
		}
		out += string(a)
	}
	return out
}
