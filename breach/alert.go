package breach

import (
	"context"
	"time"
)

// Alert types raised by the manager.
const (
	AlertBruteForce  = "brute_force_detected"
	AlertHighVolume  = "high_request_volume"
	AlertTokenReplay = "token_replay_attack"
)

// Alert severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// SecurityAlert is one detection. Alerts are immutable once written; the
// retention-pruned alert log and the sink pipeline both receive the same
// value.
type SecurityAlert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	IP        string    `json:"ip,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
}

// AlertSink receives alerts as they are raised. Implementations must not
// block; the engine wraps sinks in a buffered dispatcher.
type AlertSink interface {
	Emit(ctx context.Context, alert SecurityAlert)
}

// ThreatReport summarizes the current security posture.
type ThreatReport struct {
	Level        string `json:"level"`
	Score        int    `json:"score"`
	ActiveAlerts int    `json:"active_alerts"`
	BlockedIPs   int    `json:"blocked_ips"`
	BlockedUsers int    `json:"blocked_users"`
}

// threatLevel buckets the weighted score. Blocked IPs weigh double and
// blocked users triple: an applied block is stronger evidence than the
// alert that caused it.
func threatLevel(score int) string {
	switch {
	case score < 10:
		return SeverityLow
	case score < 20:
		return SeverityMedium
	case score < 50:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}
