package breach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/wardenlabs/tokenward/cache"
)

const (
	failedPrefix      = "breach:failed:"
	activityPrefix    = "breach:activity:"
	tokenPrefix       = "breach:token:"
	blockIPPrefix     = "breach:block:ip:"
	blockUserPrefix   = "breach:block:user:"
	alertLogKey       = "breach:alerts"
	blockedIPsIndex   = "breach:blocked:ips"
	blockedUsersIndex = "breach:blocked:users"
)

// Config wires the detector's collaborators and thresholds.
type Config struct {
	Store cache.Store
	Clock clock.Clock

	// Sink receives every raised alert. Optional.
	Sink AlertSink

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

	// OnDegraded is called when a cache failure forces a fail-open
	// decision. Optional; wired to metrics by the engine.
	OnDegraded func(op string)
}

func (c *Config) applyDefaults() {
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
	if c.FailedAuthThreshold == 0 {
		c.FailedAuthThreshold = 5
	}
	if c.FailedAuthWindow == 0 {
		c.FailedAuthWindow = 15 * time.Minute
	}
	if c.IPRequestThreshold == 0 {
		c.IPRequestThreshold = 100
	}
	if c.IPRequestWindow == 0 {
		c.IPRequestWindow = time.Minute
	}
	if c.TokenReuseThreshold == 0 {
		c.TokenReuseThreshold = 3
	}
	if c.TokenReuseWindow == 0 {
		c.TokenReuseWindow = 5 * time.Minute
	}
	if c.BlockIPDuration == 0 {
		c.BlockIPDuration = time.Hour
	}
	if c.BlockUserDuration == 0 {
		c.BlockUserDuration = 24 * time.Hour
	}
	if c.AlertRetention == 0 {
		c.AlertRetention = 7 * 24 * time.Hour
	}
}

// Validate checks the detection policy after defaults are applied.
func (c *Config) Validate() error {
	if c.Store == nil {
		return errors.New("breach detection requires a cache store")
	}
	if c.FailedAuthThreshold < 1 || c.IPRequestThreshold < 1 || c.TokenReuseThreshold < 1 {
		return errors.New("breach thresholds must be at least 1")
	}
	if c.FailedAuthWindow <= 0 || c.IPRequestWindow <= 0 || c.TokenReuseWindow <= 0 {
		return errors.New("breach windows must be positive")
	}
	if c.BlockIPDuration <= 0 || c.BlockUserDuration <= 0 {
		return errors.New("block durations must be positive")
	}
	if c.AlertRetention <= 0 {
		return errors.New("alert retention must be positive")
	}
	return nil
}

// Result reports the outcome of recording one observation.
type Result struct {
	// Blocked is the source's standing after this observation, covering
	// both pre-existing and freshly applied blocks.
	Blocked bool
	// Alerts raised by this observation, already persisted and emitted.
	Alerts []SecurityAlert
}

// event is one entry in a sliding-window list.
type event struct {
	TS     time.Time `json:"ts"`
	UserID string    `json:"user_id,omitempty"`
	IP     string    `json:"ip,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

// blockEntry is one entry in a block index, kept so blocks are countable
// without scanning the keyspace.
type blockEntry struct {
	Value string    `json:"value"`
	Until time.Time `json:"until"`
}

// Manager is the breach-detection manager. Safe for concurrent use; the
// window updates themselves are best-effort under concurrency.
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

// RecordAuthAttempt feeds one login attempt into the per-IP windows.
// Failures land in the brute-force window; every attempt lands in the
// volume window. Crossing a threshold raises exactly one alert for that
// crossing and, when auto-block is on, applies the matching block.
// Best-effort: cache failures degrade to a no-op result.
func (m *Manager) RecordAuthAttempt(ctx context.Context, req RequestContext, userID string, success bool, reason string) Result {
	now := m.cfg.Clock.Now()
	var res Result

	before, after, err := m.appendWindow(ctx, activityPrefix+req.IP, m.cfg.IPRequestWindow,
		event{TS: now, UserID: userID})
	if err != nil {
		m.failOpen("record_auth_attempt", err)
		return res
	}
	if crossed(len(before), len(after), m.cfg.IPRequestThreshold) {
		res.Alerts = append(res.Alerts, m.raise(ctx, SecurityAlert{
			Type:     AlertHighVolume,
			Severity: SeverityMedium,
			IP:       req.IP,
			UserID:   userID,
			Count:    len(after),
			Message:  fmt.Sprintf("%d requests from %s within %s", len(after), req.IP, m.cfg.IPRequestWindow),
		}))
	}

	if !success {
		before, after, err = m.appendWindow(ctx, failedPrefix+req.IP, m.cfg.FailedAuthWindow,
			event{TS: now, UserID: userID, Reason: reason})
		if err != nil {
			m.failOpen("record_auth_attempt", err)
		} else if crossed(len(before), len(after), m.cfg.FailedAuthThreshold) {
			res.Alerts = append(res.Alerts, m.raise(ctx, SecurityAlert{
				Type:     AlertBruteForce,
				Severity: SeverityHigh,
				IP:       req.IP,
				UserID:   userID,
				Count:    len(after),
				Message:  fmt.Sprintf("%d failed auth attempts from %s within %s", len(after), req.IP, m.cfg.FailedAuthWindow),
			}))
			if m.cfg.AutoBlockEnabled {
				m.BlockIP(ctx, req.IP, m.cfg.BlockIPDuration)
			}
		}
	}

	res.Blocked = m.IsIPBlocked(ctx, req.IP) || (userID != "" && m.IsUserBlocked(ctx, userID))
	return res
}

// RecordTokenUsage feeds one token presentation into the token's usage
// window. Replay means the window holds at least TokenReuseThreshold
// usages spanning more than one IP; the moment that becomes true an alert
// is raised and, with auto-block on, the user is blocked.
func (m *Manager) RecordTokenUsage(ctx context.Context, tokenID, userID, ip string) Result {
	now := m.cfg.Clock.Now()
	var res Result

	before, after, err := m.appendWindow(ctx, tokenPrefix+tokenID, m.cfg.TokenReuseWindow,
		event{TS: now, UserID: userID, IP: ip})
	if err != nil {
		m.failOpen("record_token_usage", err)
		return res
	}
	if !m.replayCondition(before) && m.replayCondition(after) {
		res.Alerts = append(res.Alerts, m.raise(ctx, SecurityAlert{
			Type:     AlertTokenReplay,
			Severity: SeverityHigh,
			IP:       ip,
			UserID:   userID,
			Count:    len(after),
			Message:  fmt.Sprintf("token %s used %d times across multiple IPs within %s", tokenID, len(after), m.cfg.TokenReuseWindow),
		}))
		if m.cfg.AutoBlockEnabled && userID != "" {
			m.BlockUser(ctx, userID, m.cfg.BlockUserDuration)
		}
	}

	res.Blocked = (userID != "" && m.IsUserBlocked(ctx, userID)) || m.IsIPBlocked(ctx, ip)
	return res
}

func (m *Manager) replayCondition(events []event) bool {
	if len(events) < m.cfg.TokenReuseThreshold {
		return false
	}
	return distinctIPs(events) > 1
}

// IsIPBlocked reports whether the IP has an active block. Cache failures
// fail open: unreachable state never blocks traffic.
func (m *Manager) IsIPBlocked(ctx context.Context, ip string) bool {
	blocked, err := m.cfg.Store.Has(ctx, blockIPPrefix+ip)
	if err != nil {
		m.failOpen("is_ip_blocked", err)
		return false
	}
	return blocked
}

// IsUserBlocked reports whether the user has an active block, failing
// open on cache errors.
func (m *Manager) IsUserBlocked(ctx context.Context, userID string) bool {
	blocked, err := m.cfg.Store.Has(ctx, blockUserPrefix+userID)
	if err != nil {
		m.failOpen("is_user_blocked", err)
		return false
	}
	return blocked
}

// BlockIP applies a block for d, extending any existing block.
func (m *Manager) BlockIP(ctx context.Context, ip string, d time.Duration) {
	m.block(ctx, blockIPPrefix+ip, blockedIPsIndex, ip, d)
}

// UnblockIP lifts an IP block.
func (m *Manager) UnblockIP(ctx context.Context, ip string) {
	m.unblock(ctx, blockIPPrefix+ip, blockedIPsIndex, ip)
}

// BlockUser applies a block for d, extending any existing block.
func (m *Manager) BlockUser(ctx context.Context, userID string, d time.Duration) {
	m.block(ctx, blockUserPrefix+userID, blockedUsersIndex, userID, d)
}

// UnblockUser lifts a user block.
func (m *Manager) UnblockUser(ctx context.Context, userID string) {
	m.unblock(ctx, blockUserPrefix+userID, blockedUsersIndex, userID)
}

// Alerts returns the retained alert log, newest last. Fail-open: an
// unreachable cache reads as an empty log.
func (m *Manager) Alerts(ctx context.Context) []SecurityAlert {
	cutoff := m.cfg.Clock.Now().Add(-m.cfg.AlertRetention)
	raw, err := m.cfg.Store.Get(ctx, alertLogKey)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			m.failOpen("alerts", err)
		}
		return nil
	}
	var all []SecurityAlert
	if err := json.Unmarshal(raw, &all); err != nil {
		log.Print("tokenward: alert log corrupt, discarding: ", err)
		return nil
	}
	kept := all[:0]
	for _, a := range all {
		if a.Timestamp.After(cutoff) {
			kept = append(kept, a)
		}
	}
	return kept
}

// ThreatLevel scores the current posture: one point per retained alert,
// two per blocked IP, three per blocked user.
func (m *Manager) ThreatLevel(ctx context.Context) ThreatReport {
	alerts := len(m.Alerts(ctx))
	ips := m.countBlocked(ctx, blockedIPsIndex)
	users := m.countBlocked(ctx, blockedUsersIndex)
	score := alerts + ips*2 + users*3
	return ThreatReport{
		Level:        threatLevel(score),
		Score:        score,
		ActiveAlerts: alerts,
		BlockedIPs:   ips,
		BlockedUsers: users,
	}
}

// raise stamps, persists, and emits an alert. Persistence shares the
// best-effort window model; a failed log write is logged and the alert is
// still delivered to the sink.
func (m *Manager) raise(ctx context.Context, alert SecurityAlert) SecurityAlert {
	alert.ID = uuid.NewString()
	alert.Timestamp = m.cfg.Clock.Now()

	cutoff := alert.Timestamp.Add(-m.cfg.AlertRetention)
	var retained []SecurityAlert
	raw, err := m.cfg.Store.Get(ctx, alertLogKey)
	if err == nil {
		if err := json.Unmarshal(raw, &retained); err != nil {
			retained = nil
		}
	} else if !errors.Is(err, cache.ErrNotFound) {
		m.failOpen("raise_alert", err)
	}
	kept := retained[:0]
	for _, a := range retained {
		if a.Timestamp.After(cutoff) {
			kept = append(kept, a)
		}
	}
	kept = append(kept, alert)
	if data, err := json.Marshal(kept); err == nil {
		if err := m.cfg.Store.Put(ctx, alertLogKey, data, m.cfg.AlertRetention); err != nil {
			m.failOpen("raise_alert", err)
		}
	}

	if m.cfg.Sink != nil {
		m.cfg.Sink.Emit(ctx, alert)
	}
	return alert
}

// appendWindow runs the read-filter-append-write cycle on one window and
// returns the pruned list before and after the append.
func (m *Manager) appendWindow(ctx context.Context, key string, window time.Duration, ev event) (before, after []event, err error) {
	cutoff := ev.TS.Add(-window)

	var events []event
	raw, err := m.cfg.Store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			return nil, nil, err
		}
	} else if err := json.Unmarshal(raw, &events); err != nil {
		log.Print("tokenward: window ", key, " corrupt, resetting: ", err)
		events = nil
	}

	kept := events[:0]
	for _, e := range events {
		if e.TS.After(cutoff) {
			kept = append(kept, e)
		}
	}
	before = append([]event{}, kept...)
	after = append(kept, ev)

	data, err := json.Marshal(after)
	if err != nil {
		return nil, nil, err
	}
	if err := m.cfg.Store.Put(ctx, key, data, window); err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

func (m *Manager) block(ctx context.Context, key, indexKey, value string, d time.Duration) {
	now := m.cfg.Clock.Now()
	until := now.Add(d)
	marker, _ := json.Marshal(blockEntry{Value: value, Until: until})
	if err := m.cfg.Store.Put(ctx, key, marker, d); err != nil {
		m.failOpen("block", err)
		return
	}
	m.updateIndex(ctx, indexKey, value, until, now)
}

func (m *Manager) unblock(ctx context.Context, key, indexKey, value string) {
	if err := m.cfg.Store.Forget(ctx, key); err != nil {
		m.failOpen("unblock", err)
		return
	}
	// Zero Until drops the entry at the next index prune.
	m.updateIndex(ctx, indexKey, value, m.cfg.Clock.Now(), m.cfg.Clock.Now())
}

// updateIndex maintains the countable list of active blocks. Entries
// dedupe by value; pruning runs on every touch.
func (m *Manager) updateIndex(ctx context.Context, indexKey, value string, until, now time.Time) {
	var entries []blockEntry
	raw, err := m.cfg.Store.Get(ctx, indexKey)
	if err == nil {
		if err := json.Unmarshal(raw, &entries); err != nil {
			entries = nil
		}
	} else if !errors.Is(err, cache.ErrNotFound) {
		m.failOpen("block_index", err)
		return
	}

	kept := entries[:0]
	maxUntil := until
	for _, e := range entries {
		if e.Value == value || !e.Until.After(now) {
			continue
		}
		kept = append(kept, e)
		if e.Until.After(maxUntil) {
			maxUntil = e.Until
		}
	}
	if until.After(now) {
		kept = append(kept, blockEntry{Value: value, Until: until})
	}

	data, err := json.Marshal(kept)
	if err != nil {
		return
	}
	ttl := maxUntil.Sub(now)
	if ttl <= 0 {
		_ = m.cfg.Store.Forget(ctx, indexKey)
		return
	}
	if err := m.cfg.Store.Put(ctx, indexKey, data, ttl); err != nil {
		m.failOpen("block_index", err)
	}
}

func (m *Manager) countBlocked(ctx context.Context, indexKey string) int {
	now := m.cfg.Clock.Now()
	raw, err := m.cfg.Store.Get(ctx, indexKey)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			m.failOpen("count_blocked", err)
		}
		return 0
	}
	var entries []blockEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.Until.After(now) {
			n++
		}
	}
	return n
}

func (m *Manager) failOpen(op string, err error) {
	if m.cfg.OnDegraded != nil {
		m.cfg.OnDegraded(op)
	}
	log.Print("tokenward: breach detection degraded (", op, "): ", err)
}

func crossed(before, after, threshold int) bool {
	return before < threshold && after >= threshold
}

func distinctIPs(events []event) int {
	seen := make(map[string]bool, len(events))
	for _, e := range events {
		if e.IP != "" {
			seen[e.IP] = true
		}
	}
	return len(seen)
}
