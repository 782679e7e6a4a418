package tokenward

import (
	"context"
	"time"
)

// RecordAuthAttempt feeds one authentication attempt into breach
// detection. Failed attempts count toward the brute-force window, every
// attempt toward the per-IP volume window. The result reports the source's
// blocked standing and any alerts this observation raised. With breach
// detection disabled nothing is recorded and nothing is blocked.
func (e *Engine) RecordAuthAttempt(ctx context.Context, req RequestContext, userID string, success bool, reason string) BreachResult {
	if e.breach == nil {
		return BreachResult{}
	}
	result := e.breach.RecordAuthAttempt(ctx, req, userID, success, reason)
	if result.Blocked {
		e.metricInc(MetricBlockedHits)
	}
	return result
}

// RecordTokenUsage feeds one token sighting into replay detection. The
// refresh manager calls this on every rotation; call it directly for
// bearer usage observed outside the engine.
func (e *Engine) RecordTokenUsage(ctx context.Context, tokenID, userID, ip string) BreachResult {
	if e.breach == nil {
		return BreachResult{}
	}
	result := e.breach.RecordTokenUsage(ctx, tokenID, userID, ip)
	if result.Blocked {
		e.metricInc(MetricBlockedHits)
	}
	return result
}

// IsIPBlocked reports whether ip is under an active block. Detection
// fails open: a cache failure reports not blocked.
func (e *Engine) IsIPBlocked(ctx context.Context, ip string) bool {
	if e.breach == nil {
		return false
	}
	blocked := e.breach.IsIPBlocked(ctx, ip)
	if blocked {
		e.metricInc(MetricBlockedHits)
	}
	return blocked
}

// IsUserBlocked reports whether userID is under an active block, failing
// open on cache failure.
func (e *Engine) IsUserBlocked(ctx context.Context, userID string) bool {
	if e.breach == nil {
		return false
	}
	blocked := e.breach.IsUserBlocked(ctx, userID)
	if blocked {
		e.metricInc(MetricBlockedHits)
	}
	return blocked
}

// BlockIP applies a manual IP block for d.
func (e *Engine) BlockIP(ctx context.Context, ip string, d time.Duration) {
	if e.breach == nil {
		return
	}
	e.breach.BlockIP(ctx, ip, d)
}

// UnblockIP lifts an IP block before it expires.
func (e *Engine) UnblockIP(ctx context.Context, ip string) {
	if e.breach == nil {
		return
	}
	e.breach.UnblockIP(ctx, ip)
}

// BlockUser applies a manual user block for d.
func (e *Engine) BlockUser(ctx context.Context, userID string, d time.Duration) {
	if e.breach == nil {
		return
	}
	e.breach.BlockUser(ctx, userID, d)
}

// UnblockUser lifts a user block before it expires.
func (e *Engine) UnblockUser(ctx context.Context, userID string) {
	if e.breach == nil {
		return
	}
	e.breach.UnblockUser(ctx, userID)
}

// Alerts returns the retained alert log, newest first.
func (e *Engine) Alerts(ctx context.Context) []SecurityAlert {
	if e.breach == nil {
		return nil
	}
	return e.breach.Alerts(ctx)
}

// ThreatLevel scores the current security posture from retained alerts and
// active blocks.
func (e *Engine) ThreatLevel(ctx context.Context) ThreatReport {
	if e.breach == nil {
		return ThreatReport{Level: "low"}
	}
	return e.breach.ThreatLevel(ctx)
}
