package internaldefs

import (
	"github.com/wardenlabs/tokenward"
)

// CounterDef binds one engine counter to its stable exported name.
type CounterDef struct {
	ID   tokenward.MetricID
	Name string
	Help string
}

// HistogramDef binds one engine histogram to its stable exported name.
type HistogramDef struct {
	ID   tokenward.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a fixed order. Exporters
// iterate this slice so Prometheus and OTel agree on names and ordering.
var CounterDefs = []CounterDef{
	{ID: tokenward.MetricValidateSuccess, Name: "tokenward_validate_success_total", Help: "Tokens that passed validation."},
	{ID: tokenward.MetricValidateFailure, Name: "tokenward_validate_failure_total", Help: "Tokens rejected by validation."},
	{ID: tokenward.MetricTokenIssued, Name: "tokenward_token_issued_total", Help: "Single tokens minted."},
	{ID: tokenward.MetricPairIssued, Name: "tokenward_pair_issued_total", Help: "Access/refresh pairs minted."},
	{ID: tokenward.MetricRefreshSuccess, Name: "tokenward_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: tokenward.MetricRefreshFailure, Name: "tokenward_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: tokenward.MetricReplayDetected, Name: "tokenward_replay_detected_total", Help: "Refresh replays detected."},
	{ID: tokenward.MetricTokenInvalidated, Name: "tokenward_token_invalidated_total", Help: "Tokens blacklisted before expiry."},
	{ID: tokenward.MetricRevokedRejected, Name: "tokenward_revoked_rejected_total", Help: "Validations rejected for revocation."},
	{ID: tokenward.MetricKeyRotations, Name: "tokenward_key_rotations_total", Help: "Signing key rotations published."},
	{ID: tokenward.MetricAlertsRaised, Name: "tokenward_alerts_raised_total", Help: "Security alerts raised by breach detection."},
	{ID: tokenward.MetricBlockedHits, Name: "tokenward_blocked_hits_total", Help: "Requests denied by an active block."},
	{ID: tokenward.MetricDegradedOps, Name: "tokenward_degraded_ops_total", Help: "Operations served in fail-open degraded mode."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: tokenward.MetricValidateLatency, Name: "tokenward_validate_latency_seconds", Help: "Validate latency histogram."},
}

// AlertsDroppedName is the counter exporters synthesize from
// [tokenward.Engine.AlertsDropped]; it is not part of the snapshot.
const AlertsDroppedName = "tokenward_alerts_dropped_total"

// AlertsDroppedHelp describes AlertsDroppedName.
const AlertsDroppedHelp = "Alerts dropped by dispatcher backpressure."

// HistogramBounds holds the upper bucket bounds in seconds, matching the
// engine's fixed millisecond thresholds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix holds per-bucket name suffixes for backends that
// cannot carry an le label.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count, so exporters never index past a short slice.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus histograms expect. The last element is the total count.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
