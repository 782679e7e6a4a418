package tokenward

import (
	"context"
	"time"
)

// SecurityReport is a static posture summary for operators: which
// protections the engine was built with and the policy each one runs
// under. Pair it with ThreatLevel for the live picture.
type SecurityReport struct {
	SigningAlgorithm       Algorithm
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	Leeway                 time.Duration
	RequiredClaims         []string
	KeyRotationEnabled     bool
	KeyRotationInterval    time.Duration
	KeyGracePeriod         time.Duration
	RefreshRotationEnabled bool
	MaxRefreshCount        int
	BlacklistEnabled       bool
	BreachDetectionEnabled bool
	AutoBlockEnabled       bool
	AlertPipelineEnabled   bool
	FailedAuthThreshold    int
	FailedAuthWindow       time.Duration
	TokenReuseThreshold    int
	CurrentThreat          ThreatReport
}

// SecurityReport summarizes the engine's protection posture.
func (e *Engine) SecurityReport(ctx context.Context) SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		SigningAlgorithm:       e.config.Signing.Algorithm,
		AccessTTL:              e.config.Tokens.TTL,
		RefreshTTL:             e.config.Tokens.RefreshTTL,
		Leeway:                 e.config.Tokens.Leeway,
		RequiredClaims:         append([]string(nil), e.config.Tokens.RequiredClaims...),
		KeyRotationEnabled:     e.config.Rotation.Enabled,
		KeyRotationInterval:    e.config.Rotation.Interval,
		KeyGracePeriod:         e.config.Rotation.GracePeriod,
		RefreshRotationEnabled: !e.config.Refresh.DisableRotation,
		MaxRefreshCount:        e.config.Refresh.MaxRefreshCount,
		BlacklistEnabled:       e.config.Blacklist.Enabled,
		BreachDetectionEnabled: e.config.Breach.Enabled,
		AutoBlockEnabled:       e.config.Breach.Enabled && e.config.Breach.AutoBlockEnabled,
		AlertPipelineEnabled:   e.config.Alerts.Enabled,
		FailedAuthThreshold:    e.config.Breach.FailedAuthThreshold,
		FailedAuthWindow:       e.config.Breach.FailedAuthWindow,
		TokenReuseThreshold:    e.config.Breach.TokenReuseThreshold,
		CurrentThreat:          e.ThreatLevel(ctx),
	}
}
