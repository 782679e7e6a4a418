package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/wardenlabs/tokenward/breach"
	"github.com/wardenlabs/tokenward/cache"
	"github.com/wardenlabs/tokenward/claims"
	"github.com/wardenlabs/tokenward/jwt"
)

const (
	familyPrefix = "family:"

	// casAttempts bounds ledger publication retries under contention.
	casAttempts = 3
)

// Claims carried inside refresh tokens in addition to the registered set.
const (
	ClaimFamilyID      = "family_id"
	ClaimRefreshCount  = "refresh_count"
	ClaimParentTokenID = "parent_token_id"
)

// KeyProvider supplies the signing key for freshly minted tokens.
// *keyring.Manager satisfies it; [StaticKey] covers fixed-secret setups.
type KeyProvider interface {
	SigningKey(ctx context.Context) (jwt.Key, error)
}

// StaticKey adapts one fixed key into a KeyProvider.
type StaticKey jwt.Key

func (k StaticKey) SigningKey(context.Context) (jwt.Key, error) { return jwt.Key(k), nil }

// UsageRecorder observes every refresh-token presentation for replay
// analysis. *breach.Manager satisfies it.
type UsageRecorder interface {
	RecordTokenUsage(ctx context.Context, tokenID, userID, ip string) breach.Result
}

// Config wires the refresh manager's collaborators and rotation policy.
type Config struct {
	Store     cache.AtomicStore
	Keys      KeyProvider
	Validator *jwt.Validator
	Clock     clock.Clock

	// Usage receives a token-usage signal for every validated refresh.
	// Optional.
	Usage UsageRecorder

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// MaxRefreshCount caps rotations per family. 0 means unlimited.
	MaxRefreshCount int

	// RotationOverlap is how long the immediately superseded token stays
	// honored after a rotation.
	RotationOverlap time.Duration

	// DisableRotation issues a fresh access token on refresh while keeping
	// the presented refresh token in place.
	DisableRotation bool

	// Issuer and Audience are stamped onto every minted token when set.
	Issuer   string
	Audience []string

	// OnDegraded is called when a cache failure forces a fail-open
	// decision. Optional; wired to metrics by the engine.
	OnDegraded func(op string)
}

func (c *Config) applyDefaults() {
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
	if c.AccessTTL == 0 {
		c.AccessTTL = 15 * time.Minute
	}
	if c.RefreshTTL == 0 {
		c.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.RotationOverlap == 0 {
		c.RotationOverlap = 30 * time.Second
	}
}

// Validate checks the rotation policy after defaults are applied.
func (c *Config) Validate() error {
	if c.Store == nil {
		return errors.New("refresh manager requires a cache store")
	}
	if c.Keys == nil {
		return errors.New("refresh manager requires a key provider")
	}
	if c.Validator == nil {
		return errors.New("refresh manager requires a token validator")
	}
	if c.AccessTTL <= 0 {
		return errors.New("access ttl must be positive")
	}
	if c.RefreshTTL <= c.AccessTTL {
		return errors.New("refresh ttl must exceed access ttl")
	}
	if c.MaxRefreshCount < 0 {
		return errors.New("max refresh count must not be negative")
	}
	if c.RotationOverlap < 0 {
		return errors.New("rotation overlap must not be negative")
	}
	return nil
}

// TokenPair is one issued access/refresh credential set.
type TokenPair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
}

// familyRecord is the per-family rotation ledger kept in the shared cache.
type familyRecord struct {
	ActiveTokenID   string     `json:"active_token_id"`
	PreviousTokenID string     `json:"previous_token_id,omitempty"`
	RotatedAt       time.Time  `json:"rotated_at"`
	Count           int        `json:"count"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
}

// Manager issues and rotates token pairs. Safe for concurrent use.
type Manager struct {
	cfg Config
}

// NewManager builds a Manager, applying defaults before validation.
func NewManager(cfg Config) (*Manager, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg}, nil
}

// GenerateTokenPair mints a fresh access/refresh pair for userID and opens
// a new token family. Extra claims are stamped onto both tokens; reserved
// claims in extra are overridden by the manager's own stamps.
func (m *Manager) GenerateTokenPair(ctx context.Context, userID any, extra claims.Claims) (*TokenPair, error) {
	key, err := m.cfg.Keys.SigningKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading signing key: %w", err)
	}
	now := m.cfg.Clock.Now()

	// The first token's jti doubles as the family name.
	familyID := uuid.NewString()

	access, err := m.mintAccess(now, key, userID, extra)
	if err != nil {
		return nil, err
	}
	refreshed, err := m.mintRefresh(now, key, userID, extra, refreshStamp{
		tokenID:  familyID,
		familyID: familyID,
	})
	if err != nil {
		return nil, err
	}

	rec := familyRecord{ActiveTokenID: familyID, RotatedAt: now}
	if data, err := json.Marshal(rec); err == nil {
		if err := m.cfg.Store.Put(ctx, familyPrefix+familyID, data, m.cfg.RefreshTTL); err != nil {
			// The pair is already signed; losing the ledger write only
			// costs replay detection for this family until its first
			// successful rotation.
			m.degraded("generate_token_pair", err)
		}
	}
	return m.pair(access, refreshed), nil
}

// Refresh validates the presented refresh token and rotates it: a new
// access token plus a new refresh token in the same family, with the
// presented token retired. Reuse of a retired token revokes the whole
// family and returns a [ReplayError].
func (m *Manager) Refresh(ctx context.Context, refreshToken string, extra claims.Claims) (*TokenPair, error) {
	tok, err := m.cfg.Validator.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	tokenID := tok.ID()
	familyID := stringClaim(tok.Claims, ClaimFamilyID)
	if familyID == "" {
		return nil, &claims.ValidationError{Missing: []string{ClaimFamilyID}}
	}

	if m.cfg.Usage != nil {
		m.cfg.Usage.RecordTokenUsage(ctx, tokenID, tokenUser(tok), breach.ClientIP(ctx))
	}

	carried := carriedClaims(tok, extra)

	if m.cfg.DisableRotation {
		return m.reissueAccess(ctx, tok, carried, refreshToken)
	}

	famKey := familyPrefix + familyID
	for attempt := 0; attempt < casAttempts; attempt++ {
		now := m.cfg.Clock.Now()
		raw, rec, err := m.loadFamily(ctx, famKey)
		if err != nil {
			m.degraded("refresh", err)
			return m.rotateUntracked(ctx, tok, carried, familyID)
		}
		if rec == nil {
			// First sighting, or a corrupt ledger entry: adopt the
			// presented token as the family head and rebuild from its own
			// signed claims.
			rec = &familyRecord{ActiveTokenID: tokenID, RotatedAt: now, Count: tokenCount(tok)}
		}

		if rec.RevokedAt != nil {
			return nil, &ReplayError{Reason: ReasonRevoked, FamilyID: familyID, TokenID: tokenID}
		}

		overlap := tokenID == rec.PreviousTokenID &&
			now.Sub(rec.RotatedAt) <= m.cfg.RotationOverlap
		if tokenID != rec.ActiveTokenID && !overlap {
			m.revokeFamily(ctx, famKey, raw, rec, now)
			return nil, &ReplayError{Reason: ReasonReuse, FamilyID: familyID, TokenID: tokenID}
		}

		nextCount := rec.Count + 1
		if m.cfg.MaxRefreshCount > 0 && nextCount > m.cfg.MaxRefreshCount {
			return nil, &ReplayError{Reason: ReasonExhausted, FamilyID: familyID, TokenID: tokenID}
		}

		pair, data, err := m.mintRotation(ctx, tok, carried, familyID, rec.ActiveTokenID, nextCount, now)
		if err != nil {
			return nil, err
		}
		swapped, err := m.cfg.Store.CompareAndSwap(ctx, famKey, raw, data, m.cfg.RefreshTTL)
		if err != nil {
			m.degraded("refresh", err)
			_ = m.cfg.Store.Put(ctx, famKey, data, m.cfg.RefreshTTL)
			return pair, nil
		}
		if swapped {
			return pair, nil
		}
		// Lost the publication race. Reload and judge the presented token
		// against the winner's state; an honest duplicate lands in the
		// overlap window, a replay lands in the reuse path.
	}
	return nil, &ReplayError{Reason: ReasonReuse, FamilyID: familyID, TokenID: tokenID}
}

// reissueAccess handles refresh with rotation disabled: a fresh access
// token, the presented refresh token unchanged, no family advance.
func (m *Manager) reissueAccess(ctx context.Context, tok *jwt.Token, carried claims.Claims, refreshToken string) (*TokenPair, error) {
	key, err := m.cfg.Keys.SigningKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading signing key: %w", err)
	}
	now := m.cfg.Clock.Now()
	access, err := m.mintAccess(now, key, userValue(tok), carried)
	if err != nil {
		return nil, err
	}
	remaining := int64(0)
	if exp, ok := tok.Claims.ExpiresAt(); ok {
		remaining = int64(exp.Sub(now).Seconds())
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int64(m.cfg.AccessTTL.Seconds()),
		RefreshExpiresIn: remaining,
	}, nil
}

// rotateUntracked mints a rotation while the ledger is unreachable. Replay
// protection is suspended for this hop; the successor record is written
// best effort so detection resumes once the cache returns. Exhaustion
// still holds because the count rides inside the signed token.
func (m *Manager) rotateUntracked(ctx context.Context, tok *jwt.Token, carried claims.Claims, familyID string) (*TokenPair, error) {
	now := m.cfg.Clock.Now()
	nextCount := tokenCount(tok) + 1
	if m.cfg.MaxRefreshCount > 0 && nextCount > m.cfg.MaxRefreshCount {
		return nil, &ReplayError{Reason: ReasonExhausted, FamilyID: familyID, TokenID: tok.ID()}
	}
	pair, data, err := m.mintRotation(ctx, tok, carried, familyID, tok.ID(), nextCount, now)
	if err != nil {
		return nil, err
	}
	_ = m.cfg.Store.Put(ctx, familyPrefix+familyID, data, m.cfg.RefreshTTL)
	return pair, nil
}

// mintRotation signs the successor pair and marshals the ledger record
// that would publish it.
func (m *Manager) mintRotation(ctx context.Context, tok *jwt.Token, carried claims.Claims, familyID, previousID string, count int, now time.Time) (*TokenPair, []byte, error) {
	key, err := m.cfg.Keys.SigningKey(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading signing key: %w", err)
	}
	user := userValue(tok)

	access, err := m.mintAccess(now, key, user, carried)
	if err != nil {
		return nil, nil, err
	}
	newID := uuid.NewString()
	refreshed, err := m.mintRefresh(now, key, user, carried, refreshStamp{
		tokenID:  newID,
		familyID: familyID,
		count:    count,
		parentID: tok.ID(),
	})
	if err != nil {
		return nil, nil, err
	}

	data, err := json.Marshal(familyRecord{
		ActiveTokenID:   newID,
		PreviousTokenID: previousID,
		RotatedAt:       now,
		Count:           count,
	})
	if err != nil {
		return nil, nil, err
	}
	return m.pair(access, refreshed), data, nil
}

// revokeFamily marks the family stolen for the remaining lifetime of its
// newest member. Best effort; the replay rejection stands regardless.
func (m *Manager) revokeFamily(ctx context.Context, famKey string, raw []byte, rec *familyRecord, now time.Time) {
	ttl := rec.RotatedAt.Add(m.cfg.RefreshTTL).Sub(now)
	if ttl <= 0 {
		return
	}
	revoked := *rec
	revoked.RevokedAt = &now
	data, err := json.Marshal(revoked)
	if err != nil {
		return
	}
	if _, err := m.cfg.Store.CompareAndSwap(ctx, famKey, raw, data, ttl); err != nil {
		m.degraded("revoke_family", err)
	}
}

func (m *Manager) loadFamily(ctx context.Context, famKey string) ([]byte, *familyRecord, error) {
	raw, err := m.cfg.Store.Get(ctx, famKey)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	var rec familyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Print("tokenward: refresh family ", famKey, " corrupt, rebuilding: ", err)
		return raw, nil, nil
	}
	return raw, &rec, nil
}

// refreshStamp carries the family bookkeeping stamped onto a refresh
// token.
type refreshStamp struct {
	tokenID  string
	familyID string
	count    int
	parentID string
}

func (m *Manager) mintAccess(now time.Time, key jwt.Key, userID any, extra claims.Claims) (string, error) {
	c, err := m.baseClaims(now, m.cfg.AccessTTL, userID, extra)
	if err != nil {
		return "", err
	}
	if err := c.Set(jwt.ClaimTokenType, jwt.TypeAuth); err != nil {
		return "", err
	}
	if err := c.SetID(uuid.NewString()); err != nil {
		return "", err
	}
	return jwt.Encode(c, key)
}

func (m *Manager) mintRefresh(now time.Time, key jwt.Key, userID any, extra claims.Claims, stamp refreshStamp) (string, error) {
	c, err := m.baseClaims(now, m.cfg.RefreshTTL, userID, extra)
	if err != nil {
		return "", err
	}
	if err := c.Set(jwt.ClaimTokenType, jwt.TypeRefresh); err != nil {
		return "", err
	}
	if err := c.SetID(stamp.tokenID); err != nil {
		return "", err
	}
	if err := c.Set(ClaimFamilyID, stamp.familyID); err != nil {
		return "", err
	}
	if err := c.Set(ClaimRefreshCount, stamp.count); err != nil {
		return "", err
	}
	if stamp.parentID != "" {
		if err := c.Set(ClaimParentTokenID, stamp.parentID); err != nil {
			return "", err
		}
	}
	return jwt.Encode(c, key)
}

// baseClaims stamps the standard claim set. Caller-supplied extras go in
// first so the manager's own stamps always win.
func (m *Manager) baseClaims(now time.Time, ttl time.Duration, userID any, extra claims.Claims) (claims.Claims, error) {
	c := claims.New()
	for name, value := range extra {
		if err := c.Set(name, value); err != nil {
			return nil, err
		}
	}
	if m.cfg.Issuer != "" {
		if err := c.SetIssuer(m.cfg.Issuer); err != nil {
			return nil, err
		}
	}
	if len(m.cfg.Audience) > 0 {
		if err := c.SetAudience(m.cfg.Audience...); err != nil {
			return nil, err
		}
	}
	if err := c.SetSubject(canonicalID(userID)); err != nil {
		return nil, err
	}
	if err := c.Set(jwt.ClaimUserID, userID); err != nil {
		return nil, err
	}
	if err := c.SetIssuedAt(now); err != nil {
		return nil, err
	}
	if err := c.SetNotBefore(now); err != nil {
		return nil, err
	}
	if err := c.SetExpiresAt(now.Add(ttl)); err != nil {
		return nil, err
	}
	return c, nil
}

func (m *Manager) pair(access, refreshed string) *TokenPair {
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refreshed,
		TokenType:        "Bearer",
		ExpiresIn:        int64(m.cfg.AccessTTL.Seconds()),
		RefreshExpiresIn: int64(m.cfg.RefreshTTL.Seconds()),
	}
}

func (m *Manager) degraded(op string, err error) {
	if m.cfg.OnDegraded != nil {
		m.cfg.OnDegraded(op)
	}
	log.Print("tokenward: refresh ledger degraded (", op, "): ", err)
}

// carriedClaims extracts the presented token's custom claims minus the
// rotation bookkeeping, overlaid with caller extras, so application claims
// survive rotation.
func carriedClaims(tok *jwt.Token, extra claims.Claims) claims.Claims {
	carried := claims.New()
	for name, value := range tok.Claims.Custom() {
		switch name {
		case jwt.ClaimTokenType, jwt.ClaimUserID, ClaimFamilyID, ClaimRefreshCount, ClaimParentTokenID:
			continue
		}
		carried[name] = value
	}
	for name, value := range extra {
		carried[name] = value
	}
	return carried
}

// tokenUser is the canonical user string for breach reporting: the user_id
// claim when present, the subject otherwise.
func tokenUser(tok *jwt.Token) string {
	if v, ok := tok.Claims.Get(jwt.ClaimUserID); ok {
		return canonicalID(v)
	}
	sub, _ := tok.Claims.Subject()
	return sub
}

// userValue is the raw user identity to stamp onto minted tokens,
// preserving the original claim's type across rotations.
func userValue(tok *jwt.Token) any {
	if v, ok := tok.Claims.Get(jwt.ClaimUserID); ok {
		return v
	}
	sub, _ := tok.Claims.Subject()
	return sub
}

func tokenCount(tok *jwt.Token) int {
	v, ok := tok.Claims.Get(ClaimRefreshCount)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func stringClaim(c claims.Claims, name string) string {
	v, ok := c.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func canonicalID(v any) string {
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
