package tokenward

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/wardenlabs/tokenward/blacklist"
	"github.com/wardenlabs/tokenward/breach"
	"github.com/wardenlabs/tokenward/cache"
	"github.com/wardenlabs/tokenward/claims"
	"github.com/wardenlabs/tokenward/jwt"
	"github.com/wardenlabs/tokenward/keyring"
	"github.com/wardenlabs/tokenward/refresh"
)

// Engine is the facade over the token lifecycle subsystems: minting,
// validation, refresh rotation, key rotation, revocation and breach
// detection. Build one with the Builder and share it; every method is safe
// for concurrent use.
type Engine struct {
	config Config

	store        cache.AtomicStore
	clock        clock.Clock
	keys         refresh.KeyProvider
	verification jwt.KeySource
	keyring      *keyring.Manager // nil unless rotation is enabled

	validator *jwt.Validator
	blacklist *blacklist.Blacklist // nil unless enabled
	breach    *breach.Manager      // nil unless enabled
	refresh   *refresh.Manager

	alerts  *alertDispatcher // nil unless enabled
	metrics *Metrics
}

// Close flushes and stops the alert dispatcher. Tokens issued by the
// engine stay valid; Close releases background resources only.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.alerts != nil {
		e.alerts.Close()
	}
}

// AlertsDropped reports how many alerts the dispatcher discarded because
// its buffer was full.
func (e *Engine) AlertsDropped() uint64 {
	if e == nil || e.alerts == nil {
		return 0
	}
	return e.alerts.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of every counter and
// histogram.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// countingAlertSink counts raised alerts before handing them to the
// dispatcher. The count covers every alert the detector raises, delivered
// or not.
type countingAlertSink struct {
	engine *Engine
}

func (s countingAlertSink) Emit(ctx context.Context, alert SecurityAlert) {
	s.engine.metricInc(MetricAlertsRaised)
	if s.engine.alerts != nil {
		s.engine.alerts.Emit(ctx, alert)
	}
}

func (e *Engine) countingSink() breach.AlertSink {
	return countingAlertSink{engine: e}
}

/*
====================================
TOKEN MINTING
====================================
*/

// GenerateAuthToken mints a short-lived access token for userID. The
// subject and user_id claims carry the identity; extra claims ride along
// but cannot override the engine's own stamps.
func (e *Engine) GenerateAuthToken(ctx context.Context, userID any, extra Claims) (string, error) {
	c := claims.New()
	for name, value := range extra {
		if err := c.Set(name, value); err != nil {
			return "", err
		}
	}
	if err := c.SetSubject(subjectString(userID)); err != nil {
		return "", err
	}
	if err := c.Set(jwt.ClaimUserID, userID); err != nil {
		return "", err
	}
	return e.mint(ctx, jwt.TypeAuth, c, e.config.Tokens.TTL)
}

// GenerateToken mints a token of an arbitrary type with an explicit TTL.
// This is the escape hatch for API, session, password-reset and
// email-verification tokens; ttl <= 0 falls back to the configured access
// TTL.
func (e *Engine) GenerateToken(ctx context.Context, tokenType string, extra Claims, ttl time.Duration) (string, error) {
	if tokenType == "" {
		return "", &claims.ClaimError{Claim: jwt.ClaimTokenType, Reason: "must be a non-empty string"}
	}
	if ttl <= 0 {
		ttl = e.config.Tokens.TTL
	}
	c := claims.New()
	for name, value := range extra {
		if err := c.Set(name, value); err != nil {
			return "", err
		}
	}
	return e.mint(ctx, tokenType, c, ttl)
}

// GenerateTokenPair issues an access/refresh pair and opens a new refresh
// family for userID.
func (e *Engine) GenerateTokenPair(ctx context.Context, userID any, extra Claims) (*TokenPair, error) {
	pair, err := e.refresh.GenerateTokenPair(ctx, userID, extra)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricPairIssued)
	return pair, nil
}

// mint stamps the registered claims over whatever the caller supplied and
// signs with the current key. Issuer and audience come from configuration;
// the subject default applies only when the caller set none.
func (e *Engine) mint(ctx context.Context, tokenType string, c claims.Claims, ttl time.Duration) (string, error) {
	key, err := e.keys.SigningKey(ctx)
	if err != nil {
		return "", err
	}
	now := e.clock.Now()
	if e.config.Signing.Issuer != "" {
		if err := c.SetIssuer(e.config.Signing.Issuer); err != nil {
			return "", err
		}
	}
	if e.config.Signing.Audience != "" {
		if err := c.SetAudience(e.config.Signing.Audience); err != nil {
			return "", err
		}
	}
	if e.config.Signing.Subject != "" && !c.Has(claims.ClaimSubject) {
		if err := c.SetSubject(e.config.Signing.Subject); err != nil {
			return "", err
		}
	}
	if err := c.Set(jwt.ClaimTokenType, tokenType); err != nil {
		return "", err
	}
	if err := c.SetID(uuid.NewString()); err != nil {
		return "", err
	}
	if err := c.SetIssuedAt(now); err != nil {
		return "", err
	}
	if err := c.SetNotBefore(now); err != nil {
		return "", err
	}
	if err := c.SetExpiresAt(now.Add(ttl)); err != nil {
		return "", err
	}
	token, err := jwt.Encode(c, key)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricTokenIssued)
	return token, nil
}

/*
====================================
REFRESH
====================================
*/

// Refresh rotates the presented refresh token and returns a new pair.
// Reuse of a superseded token revokes the whole family; the metric split
// distinguishes replay from plain validation failure.
func (e *Engine) Refresh(ctx context.Context, refreshToken string, extra Claims) (*TokenPair, error) {
	pair, err := e.refresh.Refresh(ctx, refreshToken, extra)
	if err != nil {
		switch {
		case errors.Is(err, refresh.ErrReplay):
			e.metricInc(MetricReplayDetected)
			e.metricInc(MetricRefreshFailure)
		case errors.Is(err, jwt.ErrRevoked):
			e.metricInc(MetricRevokedRejected)
			e.metricInc(MetricRefreshFailure)
		default:
			e.metricInc(MetricRefreshFailure)
		}
		return nil, err
	}
	e.metricInc(MetricRefreshSuccess)
	return pair, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate verifies signature, timing and required claims against the
// current verification key set, and consults the revocation blacklist when
// enabled. Type-specific checks live in the Validate*Token variants.
func (e *Engine) Validate(ctx context.Context, token string) (*Token, error) {
	return e.validateOp(func() (*jwt.Token, error) {
		return e.validator.Validate(ctx, token)
	})
}

// ValidateAuthToken validates an access token and checks it belongs to
// userID, matched against user_id or sub.
func (e *Engine) ValidateAuthToken(ctx context.Context, token string, userID any) (*Token, error) {
	return e.validateOp(func() (*jwt.Token, error) {
		return e.validator.ValidateAuthToken(ctx, token, subjectString(userID))
	})
}

// ValidateAPIToken validates an API token and requires every scope in
// scopes.
func (e *Engine) ValidateAPIToken(ctx context.Context, token string, scopes []string) (*Token, error) {
	return e.validateOp(func() (*jwt.Token, error) {
		return e.validator.ValidateAPIToken(ctx, token, scopes)
	})
}

// ValidateRefreshToken validates a refresh token without consuming it.
func (e *Engine) ValidateRefreshToken(ctx context.Context, token string) (*Token, error) {
	return e.validateOp(func() (*jwt.Token, error) {
		return e.validator.ValidateRefreshToken(ctx, token)
	})
}

// ValidateSessionToken validates a session token bound to sessionID.
func (e *Engine) ValidateSessionToken(ctx context.Context, token, sessionID string) (*Token, error) {
	return e.validateOp(func() (*jwt.Token, error) {
		return e.validator.ValidateSessionToken(ctx, token, sessionID)
	})
}

// ValidatePasswordResetToken validates a password-reset token for userID.
func (e *Engine) ValidatePasswordResetToken(ctx context.Context, token, userID string) (*Token, error) {
	return e.validateOp(func() (*jwt.Token, error) {
		return e.validator.ValidatePasswordResetToken(ctx, token, userID)
	})
}

// ValidateEmailVerificationToken validates an email-verification token for
// email.
func (e *Engine) ValidateEmailVerificationToken(ctx context.Context, token, email string) (*Token, error) {
	return e.validateOp(func() (*jwt.Token, error) {
		return e.validator.ValidateEmailVerificationToken(ctx, token, email)
	})
}

func (e *Engine) validateOp(run func() (*jwt.Token, error)) (*Token, error) {
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}
	tok, err := run()
	if err != nil {
		if errors.Is(err, jwt.ErrRevoked) {
			e.metricInc(MetricRevokedRejected)
		}
		e.metricInc(MetricValidateFailure)
		return nil, err
	}
	e.metricInc(MetricValidateSuccess)
	return tok, nil
}

/*
====================================
REVOCATION
====================================
*/

// InvalidateToken blacklists a token until its natural expiry. The token
// must carry a valid signature and a jti, but may already be expired.
// Within the configured grace period the token keeps validating so
// requests already in flight complete.
func (e *Engine) InvalidateToken(ctx context.Context, token string) error {
	if e.blacklist == nil {
		return ErrBlacklistDisabled
	}
	keys, err := e.verification.VerificationKeys(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	// Signature only: an expired token can still be blacklisted, a forged
	// one cannot.
	tok, err := jwt.Decode(token, keys)
	if err != nil {
		return err
	}
	tokenID := tok.ID()
	if tokenID == "" {
		return &claims.ValidationError{Missing: []string{claims.ClaimID}}
	}
	expiresAt, ok := tok.Claims.ExpiresAt()
	if !ok {
		return &claims.ValidationError{Missing: []string{claims.ClaimExpiresAt}}
	}
	if err := e.blacklist.Add(ctx, tokenID, expiresAt); err != nil {
		return err
	}
	e.metricInc(MetricTokenInvalidated)
	return nil
}

// ReinstateToken removes a token from the blacklist before its entry
// expires.
func (e *Engine) ReinstateToken(ctx context.Context, tokenID string) error {
	if e.blacklist == nil {
		return ErrBlacklistDisabled
	}
	return e.blacklist.Remove(ctx, tokenID)
}

/*
====================================
ACCESS CHECKS
====================================
*/

// RequireScopes reports the scopes required but not held by tok.
func RequireScopes(tok *Token, required []string) error {
	return jwt.RequireScopes(tok, required)
}

// RequireRoles reports the roles required but not held by tok.
func RequireRoles(tok *Token, required []string) error {
	return jwt.RequireRoles(tok, required)
}

// RequirePermissions reports the permissions required but not held by tok.
func RequirePermissions(tok *Token, required []string) error {
	return jwt.RequirePermissions(tok, required)
}

func subjectString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
