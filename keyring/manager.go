package keyring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/wardenlabs/tokenward/cache"
	"github.com/wardenlabs/tokenward/jwt"
)

const (
	statePrefix = "keyring:"

	// casAttempts bounds the publish loop. Losing more than this many
	// races in a row means another node is rotating; adopting its key is
	// always available as the exit.
	casAttempts = 3
)

// Config wires the keyring's collaborators and rotation policy.
type Config struct {
	Store cache.AtomicStore
	Clock clock.Clock

	// Algorithms the keyring maintains state for. The first entry is the
	// default signing algorithm.
	Algorithms []jwt.Algorithm

	RotationInterval time.Duration
	GracePeriod      time.Duration
	MaxKeys          int
	AutoRotation     bool
	KeyStrength      int // HMAC secret length in bits

	// OnDegraded is called when a cache failure forces a fail-open
	// decision. Optional; wired to metrics by the engine.
	OnDegraded func(op string)

	// OnRotated is called once per won rotation publish, automatic or
	// manual. CAS losers adopt the winner's key and do not fire it.
	OnRotated func(alg jwt.Algorithm)
}

func (c *Config) applyDefaults() {
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
	if len(c.Algorithms) == 0 {
		c.Algorithms = []jwt.Algorithm{jwt.HS256}
	}
	if c.RotationInterval == 0 {
		c.RotationInterval = 24 * time.Hour
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = 2 * time.Hour
	}
	if c.MaxKeys == 0 {
		c.MaxKeys = 5
	}
	if c.KeyStrength == 0 {
		c.KeyStrength = 256
	}
}

// Validate checks the rotation policy. Zero values have been defaulted by
// the time this runs.
func (c *Config) Validate() error {
	if c.Store == nil {
		return errors.New("keyring requires a cache store")
	}
	for _, a := range c.Algorithms {
		if !a.Valid() {
			return fmt.Errorf("%w: %q", jwt.ErrUnsupportedAlgorithm, string(a))
		}
	}
	if c.RotationInterval <= 0 {
		return errors.New("rotation interval must be positive")
	}
	if c.GracePeriod <= 0 {
		return errors.New("grace period must be positive")
	}
	if c.MaxKeys < 1 {
		return errors.New("max keys must be at least 1")
	}
	if c.KeyStrength < 256 || c.KeyStrength%8 != 0 {
		return errors.New("key strength must be a multiple of 8, at least 256 bits")
	}
	return nil
}

// Manager is the key-rotation manager. Safe for concurrent use.
type Manager struct {
	cfg Config

	// Fail-open snapshots, refreshed on every successful cache round
	// trip: lastKnown serves verification, lastCurrent serves signing.
	mu          sync.RWMutex
	lastKnown   []jwt.Key
	lastCurrent map[jwt.Algorithm]*SigningKey
}

// NewManager builds a Manager, applying defaults before validation.
func NewManager(cfg Config) (*Manager, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg, lastCurrent: make(map[jwt.Algorithm]*SigningKey)}, nil
}

// DefaultAlgorithm returns the signing algorithm new tokens use.
func (m *Manager) DefaultAlgorithm() jwt.Algorithm { return m.cfg.Algorithms[0] }

// CurrentKey returns the key new signatures must use for alg. With no
// published key it generates and publishes one; with an expired current
// key and auto-rotation on, it rotates first. When auto-rotation is off an
// expired current key keeps signing, by policy, until Rotate is called.
func (m *Manager) CurrentKey(ctx context.Context, alg jwt.Algorithm) (*SigningKey, error) {
	if !alg.Valid() {
		return nil, &KeyError{Op: "current", Algorithm: alg,
			Err: fmt.Errorf("%w: %q", jwt.ErrUnsupportedAlgorithm, string(alg))}
	}

	raw, state, err := m.loadState(ctx, alg)
	now := m.cfg.Clock.Now()
	if err != nil {
		// Cache unreachable. Signing with the last published key keeps
		// every node agreeing; minting an unpublished key would not.
		if cur := m.rememberedCurrent(alg); cur != nil && cur.Usable(now) {
			m.degraded("current_key")
			log.Print("tokenward: keyring cache unavailable, signing with last known key: ", err)
			return cur, nil
		}
		return nil, &KeyError{Op: "current", Algorithm: alg, Err: err}
	}

	if state.Current != nil {
		if state.Current.Active(now) || !m.cfg.AutoRotation {
			m.remember(alg, state.Current)
			return state.Current, nil
		}
	}
	return m.rotate(ctx, alg, raw, state)
}

// SigningKey returns the default algorithm's current key as ready signing
// material, for callers that mint tokens without caring which concrete key
// is current.
func (m *Manager) SigningKey(ctx context.Context) (jwt.Key, error) {
	cur, err := m.CurrentKey(ctx, m.DefaultAlgorithm())
	if err != nil {
		return jwt.Key{}, err
	}
	return cur.Material()
}

// Rotate forces a new current key for alg regardless of the current key's
// remaining lifetime.
func (m *Manager) Rotate(ctx context.Context, alg jwt.Algorithm) (*SigningKey, error) {
	if !alg.Valid() {
		return nil, &KeyError{Op: "rotate", Algorithm: alg,
			Err: fmt.Errorf("%w: %q", jwt.ErrUnsupportedAlgorithm, string(alg))}
	}
	raw, state, err := m.loadState(ctx, alg)
	if err != nil {
		return nil, &KeyError{Op: "rotate", Algorithm: alg, Err: err}
	}
	return m.rotate(ctx, alg, raw, state)
}

// rotate publishes a fresh key via compare-and-swap on the raw state
// bytes. Exactly one node wins a race; losers adopt the winner's key if it
// is active, otherwise they retry on top of the winner's state.
func (m *Manager) rotate(ctx context.Context, alg jwt.Algorithm, raw []byte, state *keyState) (*SigningKey, error) {
	now := m.cfg.Clock.Now()
	fresh, err := generateKey(alg, now, m.cfg.RotationInterval, m.cfg.GracePeriod, m.cfg.KeyStrength)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		next := keyState{Current: fresh, History: state.History}
		if state.Current != nil {
			next.History = append(append([]SigningKey{}, state.History...), *state.Current)
		}
		next.prune(now, m.cfg.MaxKeys)

		nextRaw, err := json.Marshal(&next)
		if err != nil {
			return nil, &KeyError{Op: "rotate", Algorithm: alg, Err: err}
		}
		ok, err := m.cfg.Store.CompareAndSwap(ctx, statePrefix+string(alg), raw, nextRaw, m.stateTTL(&next, now))
		if err != nil {
			if state.Current != nil {
				m.degraded("rotate")
				log.Print("tokenward: keyring publish unavailable, keeping previous key: ", err)
				return state.Current, nil
			}
			return nil, &KeyError{Op: "rotate", Algorithm: alg, Err: err}
		}
		if ok {
			m.remember(alg, fresh)
			m.refreshSnapshot(ctx)
			if m.cfg.OnRotated != nil {
				m.cfg.OnRotated(alg)
			}
			return fresh, nil
		}

		// Lost the race: reload and adopt the winner where possible.
		raw, state, err = m.loadState(ctx, alg)
		if err != nil {
			return nil, &KeyError{Op: "rotate", Algorithm: alg, Err: err}
		}
		if state.Current != nil && state.Current.Active(now) {
			m.remember(alg, state.Current)
			return state.Current, nil
		}
	}
	return nil, &KeyError{Op: "rotate", Algorithm: alg,
		Err: fmt.Errorf("lost %d publish races", casAttempts)}
}

// ValidKeys returns every key still usable for verification across all
// configured algorithms: current keys first per algorithm, then in-grace
// history, newest first.
func (m *Manager) ValidKeys(ctx context.Context) ([]SigningKey, error) {
	now := m.cfg.Clock.Now()
	var out []SigningKey
	for _, alg := range m.cfg.Algorithms {
		_, state, err := m.loadState(ctx, alg)
		if err != nil {
			return nil, &KeyError{Op: "valid_keys", Algorithm: alg, Err: err}
		}
		out = append(out, state.usableKeys(now)...)
	}
	return out, nil
}

// VerificationKeys implements jwt.KeySource. Cache failures degrade to the
// last successfully loaded key set rather than rejecting all traffic.
func (m *Manager) VerificationKeys(ctx context.Context) ([]jwt.Key, error) {
	keys, err := m.ValidKeys(ctx)
	if err != nil {
		m.mu.RLock()
		known := m.lastKnown
		m.mu.RUnlock()
		if len(known) > 0 {
			m.degraded("verification_keys")
			log.Print("tokenward: keyring cache unavailable, verifying with last known keys: ", err)
			return known, nil
		}
		return nil, err
	}

	out := make([]jwt.Key, 0, len(keys))
	for i := range keys {
		material, err := keys[i].Material()
		if err != nil {
			return nil, &KeyError{Op: "verification_keys", Algorithm: keys[i].Algorithm, Err: err}
		}
		out = append(out, material)
	}
	m.mu.Lock()
	m.lastKnown = out
	m.mu.Unlock()
	return out, nil
}

func (m *Manager) loadState(ctx context.Context, alg jwt.Algorithm) ([]byte, *keyState, error) {
	raw, err := m.cfg.Store.Get(ctx, statePrefix+string(alg))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, &keyState{}, nil
		}
		return nil, nil, err
	}
	var state keyState
	if err := json.Unmarshal(raw, &state); err != nil {
		// A corrupt state doc is unrecoverable by parsing harder; treat it
		// as absent so rotation rebuilds it.
		log.Print("tokenward: keyring state corrupt, rebuilding: ", err)
		return nil, &keyState{}, nil
	}
	return raw, &state, nil
}

// stateTTL keeps the document alive past the longest grace window it
// contains, plus one rotation interval of headroom for the next writer.
func (m *Manager) stateTTL(s *keyState, now time.Time) time.Duration {
	latest := now
	if s.Current != nil && s.Current.GraceExpiresAt.After(latest) {
		latest = s.Current.GraceExpiresAt
	}
	for _, k := range s.History {
		if k.GraceExpiresAt.After(latest) {
			latest = k.GraceExpiresAt
		}
	}
	return latest.Sub(now) + m.cfg.RotationInterval
}

func (m *Manager) refreshSnapshot(ctx context.Context) {
	if _, err := m.VerificationKeys(ctx); err != nil {
		log.Print("tokenward: keyring snapshot refresh failed: ", err)
	}
}

func (m *Manager) remember(alg jwt.Algorithm, key *SigningKey) {
	cp := *key
	m.mu.Lock()
	m.lastCurrent[alg] = &cp
	m.mu.Unlock()
}

func (m *Manager) rememberedCurrent(alg jwt.Algorithm) *SigningKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCurrent[alg]
}

func (m *Manager) degraded(op string) {
	if m.cfg.OnDegraded != nil {
		m.cfg.OnDegraded(op)
	}
}
