package claims

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Registered claim names from RFC 7519 that get validated on write.
const (
	ClaimIssuer    = "iss"
	ClaimSubject   = "sub"
	ClaimAudience  = "aud"
	ClaimExpiresAt = "exp"
	ClaimNotBefore = "nbf"
	ClaimIssuedAt  = "iat"
	ClaimID        = "jti"
)

var registered = map[string]bool{
	ClaimIssuer:    true,
	ClaimSubject:   true,
	ClaimAudience:  true,
	ClaimExpiresAt: true,
	ClaimNotBefore: true,
	ClaimIssuedAt:  true,
	ClaimID:        true,
}

// Claims is a JWT claim set. Writes go through Set so registered claims are
// validated and normalized at the point of entry; anything already inside a
// Claims value is trusted to be well formed.
//
// Values are normalized to a small closed set of shapes: string, bool,
// int64, float64, []string (aud), plus whatever JSON shapes custom claims
// decode to. Timestamps are always int64 Unix seconds.
type Claims map[string]any

// New returns an empty claim set.
func New() Claims { return make(Claims) }

// Set stores a claim after validating it. Registered claims enforce their
// RFC shape: iss/sub/jti must be non-empty strings, exp/iat/nbf must be
// positive whole seconds, and aud is normalized to a non-empty string set.
// Custom claims are stored as given, with integral numbers normalized to
// int64.
func (c Claims) Set(name string, value any) error {
	if name == "" {
		return &ClaimError{Claim: name, Reason: "empty claim name"}
	}
	switch name {
	case ClaimIssuer, ClaimSubject, ClaimID:
		s, ok := value.(string)
		if !ok {
			return &ClaimError{Claim: name, Reason: fmt.Sprintf("must be a string, got %T", value)}
		}
		if s == "" {
			return &ClaimError{Claim: name, Reason: "must be a non-empty string"}
		}
		c[name] = s
	case ClaimExpiresAt, ClaimNotBefore, ClaimIssuedAt:
		ts, err := toTimestamp(value)
		if err != nil {
			return &ClaimError{Claim: name, Reason: err.Error()}
		}
		c[name] = ts
	case ClaimAudience:
		aud, err := toAudience(value)
		if err != nil {
			return &ClaimError{Claim: name, Reason: err.Error()}
		}
		c[name] = aud
	default:
		c[name] = normalize(value)
	}
	return nil
}

// Get returns a claim value and whether it was present.
func (c Claims) Get(name string) (any, bool) {
	v, ok := c[name]
	return v, ok
}

// GetDefault returns the claim value, or def when absent.
func (c Claims) GetDefault(name string, def any) any {
	if v, ok := c[name]; ok {
		return v
	}
	return def
}

// Has reports whether the claim is present.
func (c Claims) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// Remove deletes a claim. Removing an absent claim is a no-op.
func (c Claims) Remove(name string) {
	delete(c, name)
}

// All returns a shallow copy of the claim set.
func (c Claims) All() map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Custom returns only the non-registered claims, shallow-copied.
func (c Claims) Custom() map[string]any {
	out := make(map[string]any)
	for k, v := range c {
		if !registered[k] {
			out[k] = v
		}
	}
	return out
}

// Clone returns an independent shallow copy.
func (c Claims) Clone() Claims {
	return Claims(c.All())
}

// SetIssuer sets iss.
func (c Claims) SetIssuer(iss string) error { return c.Set(ClaimIssuer, iss) }

// Issuer returns iss if present.
func (c Claims) Issuer() (string, bool) { return c.str(ClaimIssuer) }

// SetSubject sets sub.
func (c Claims) SetSubject(sub string) error { return c.Set(ClaimSubject, sub) }

// Subject returns sub if present.
func (c Claims) Subject() (string, bool) { return c.str(ClaimSubject) }

// SetID sets jti.
func (c Claims) SetID(jti string) error { return c.Set(ClaimID, jti) }

// ID returns jti if present.
func (c Claims) ID() (string, bool) { return c.str(ClaimID) }

// SetAudience sets aud from one or more values.
func (c Claims) SetAudience(aud ...string) error {
	return c.Set(ClaimAudience, aud)
}

// Audience returns the normalized aud set if present.
func (c Claims) Audience() ([]string, bool) {
	v, ok := c[ClaimAudience]
	if !ok {
		return nil, false
	}
	aud, ok := v.([]string)
	return aud, ok
}

// SetExpiresAt sets exp from a wall-clock time, truncated to seconds.
func (c Claims) SetExpiresAt(t time.Time) error { return c.Set(ClaimExpiresAt, t.Unix()) }

// ExpiresAt returns exp as a time if present.
func (c Claims) ExpiresAt() (time.Time, bool) { return c.ts(ClaimExpiresAt) }

// SetIssuedAt sets iat from a wall-clock time, truncated to seconds.
func (c Claims) SetIssuedAt(t time.Time) error { return c.Set(ClaimIssuedAt, t.Unix()) }

// IssuedAt returns iat as a time if present.
func (c Claims) IssuedAt() (time.Time, bool) { return c.ts(ClaimIssuedAt) }

// SetNotBefore sets nbf from a wall-clock time, truncated to seconds.
func (c Claims) SetNotBefore(t time.Time) error { return c.Set(ClaimNotBefore, t.Unix()) }

// NotBefore returns nbf as a time if present.
func (c Claims) NotBefore() (time.Time, bool) { return c.ts(ClaimNotBefore) }

// IsExpired reports whether the set is expired at now, giving leeway
// seconds of clock-skew allowance. The boundary is inclusive: a token whose
// exp equals now-leeway is already expired. Absent exp never expires.
func (c Claims) IsExpired(now time.Time, leeway time.Duration) bool {
	exp, ok := c.int64(ClaimExpiresAt)
	if !ok {
		return false
	}
	return now.Unix()-int64(leeway.Seconds()) >= exp
}

// IsNotYetValid reports whether now, pushed forward by leeway, is still
// strictly before nbf. Absent nbf is always valid.
func (c Claims) IsNotYetValid(now time.Time, leeway time.Duration) bool {
	nbf, ok := c.int64(ClaimNotBefore)
	if !ok {
		return false
	}
	return now.Unix()+int64(leeway.Seconds()) < nbf
}

// ValidateRequired checks that every named claim is present. All absences
// are collected into a single ValidationError rather than failing on the
// first, so callers can report the full shortfall.
func (c Claims) ValidateRequired(names []string) error {
	var missing []string
	for _, n := range names {
		if !c.Has(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// ValidateTiming checks exp and nbf against now with the given leeway.
// Expiry is checked first so an expired-and-not-yet-valid set (possible
// with inconsistent claims) reports expiry.
func (c Claims) ValidateTiming(now time.Time, leeway time.Duration) error {
	if c.IsExpired(now, leeway) {
		exp, _ := c.int64(ClaimExpiresAt)
		return &ExpiredError{ExpiresAt: exp, Now: now.Unix(), Leeway: int64(leeway.Seconds())}
	}
	if c.IsNotYetValid(now, leeway) {
		nbf, _ := c.int64(ClaimNotBefore)
		return &NotYetValidError{NotBefore: nbf, Now: now.Unix(), Leeway: int64(leeway.Seconds())}
	}
	return nil
}

// MarshalJSON emits the claim set as a JSON object. Map iteration order
// does not leak: encoding/json sorts object keys.
func (c Claims) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(c))
}

// DecodeJSON parses a JSON object into a claim set, normalizing shapes the
// same way Set does: integral numbers become int64, aud becomes []string.
// It does not re-run registered-claim validation; a decoded set is checked
// by the validator, not at parse time.
func DecodeJSON(data []byte) (Claims, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding claims: %w", err)
	}
	c := make(Claims, len(raw))
	for k, v := range raw {
		if k == ClaimAudience {
			if aud, err := toAudience(v); err == nil {
				c[k] = aud
				continue
			}
		}
		c[k] = normalize(v)
	}
	return c, nil
}

func (c Claims) str(name string) (string, bool) {
	v, ok := c[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (c Claims) int64(name string) (int64, bool) {
	v, ok := c[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func (c Claims) ts(name string) (time.Time, bool) {
	n, ok := c.int64(name)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(n, 0).UTC(), true
}

// toTimestamp coerces a claim value into a positive whole-second Unix
// timestamp. Fractional and non-positive inputs are rejected.
func toTimestamp(v any) (int64, error) {
	var ts int64
	switch n := v.(type) {
	case int64:
		ts = n
	case int:
		ts = int64(n)
	case int32:
		ts = int64(n)
	case uint:
		ts = int64(n)
	case uint32:
		ts = int64(n)
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("timestamp out of range")
		}
		ts = int64(n)
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("must be a whole number of seconds, got %v", n)
		}
		ts = int64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("must be a whole number of seconds, got %v", n)
		}
		ts = i
	case time.Time:
		ts = n.Unix()
	default:
		return 0, fmt.Errorf("must be a Unix timestamp, got %T", v)
	}
	if ts <= 0 {
		return 0, fmt.Errorf("must be a positive Unix timestamp, got %d", ts)
	}
	return ts, nil
}

// toAudience normalizes the aud claim to a non-empty []string. A bare
// string becomes a single-element set, matching RFC 7519's either-or shape.
func toAudience(v any) ([]string, error) {
	switch a := v.(type) {
	case string:
		if a == "" {
			return nil, fmt.Errorf("must be non-empty")
		}
		return []string{a}, nil
	case []string:
		if len(a) == 0 {
			return nil, fmt.Errorf("must be non-empty")
		}
		for _, s := range a {
			if s == "" {
				return nil, fmt.Errorf("must not contain empty entries")
			}
		}
		out := make([]string, len(a))
		copy(out, a)
		return out, nil
	case []any:
		if len(a) == 0 {
			return nil, fmt.Errorf("must be non-empty")
		}
		out := make([]string, 0, len(a))
		for _, e := range a {
			s, ok := e.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("must contain only non-empty strings")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("must be a string or string list, got %T", v)
}

// allStrings converts a homogeneous string list, the common shape for
// scope/role/permission claims.
func allStrings(in []any) ([]string, bool) {
	out := make([]string, len(in))
	for i, e := range in {
		s, ok := e.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

// normalize collapses shapes so a claim set survives a JSON round trip
// unchanged: integral numbers become int64, homogeneous string lists
// become []string, everything else keeps its type.
func normalize(v any) any {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return int64(n)
	case uint32:
		return int64(n)
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n)
		}
		return n
	case []any:
		if strs, ok := allStrings(n); ok {
			return strs
		}
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, e := range n {
			out[k] = normalize(e)
		}
		return out
	}
	return v
}
