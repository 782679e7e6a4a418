package jwt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wardenlabs/tokenward/claims"
)

// Token is a decoded token. Key points at the candidate that verified the
// signature; it is nil after DecodeUnverified.
type Token struct {
	Raw    string
	Header Header
	Claims claims.Claims
	Key    *Key
}

// ID returns the jti claim, empty when absent.
func (t *Token) ID() string {
	id, _ := t.Claims.ID()
	return id
}

// Type returns the purpose claim, empty when absent.
func (t *Token) Type() string {
	v, _ := t.Claims.Get(ClaimTokenType)
	s, _ := v.(string)
	return s
}

type decodeOptions struct {
	checkTiming bool
	now         time.Time
	leeway      time.Duration
	required    []string
}

// DecodeOption adjusts post-verification claim enforcement.
type DecodeOption func(*decodeOptions)

// WithTiming enforces exp/nbf against now with the given leeway after the
// signature verifies.
func WithTiming(now time.Time, leeway time.Duration) DecodeOption {
	return func(o *decodeOptions) {
		o.checkTiming = true
		o.now = now
		o.leeway = leeway
	}
}

// WithRequiredClaims enforces claim presence after the signature verifies.
func WithRequiredClaims(names ...string) DecodeOption {
	return func(o *decodeOptions) { o.required = names }
}

// Decode parses token, verifies its signature against the candidate keys,
// and materializes the claims. Candidates are limited to keys whose
// declared algorithm equals the header algorithm; a kid match moves that
// key to the front but never excludes the others, so rotation-in-grace
// keys still get their turn. Claims are only parsed once a signature has
// verified.
func Decode(token string, keys []Key, opts ...DecodeOption) (*Token, error) {
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	header, segments, err := parseHeader(token)
	if err != nil {
		return nil, err
	}
	alg := Algorithm(header.Alg)
	if !alg.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, header.Alg)
	}
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}

	// Algorithm-confusion defense: a key is only ever tried under its own
	// declared algorithm, regardless of what the header asks for.
	candidates := make([]Key, 0, len(keys))
	for _, k := range keys {
		if k.Algorithm == alg && k.CanVerify() {
			candidates = append(candidates, k)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: header alg %s", ErrAlgorithmMismatch, alg)
	}
	if header.KID != "" {
		for i, k := range candidates {
			if k.ID == header.KID && i > 0 {
				candidates[0], candidates[i] = candidates[i], candidates[0]
				break
			}
		}
	}

	sig, err := base64.RawURLEncoding.DecodeString(segments[2])
	if err != nil {
		return nil, &MalformedTokenError{Reason: "signature segment is not valid base64url", Err: err}
	}
	signingInput := segments[0] + "." + segments[1]

	var verified *Key
	for i := range candidates {
		material, err := candidates[i].verifyMaterial()
		if err != nil {
			continue
		}
		if alg.verify(signingInput, sig, material) == nil {
			verified = &candidates[i]
			break
		}
	}
	if verified == nil {
		return nil, &SignatureError{Op: "verify", Tried: len(candidates)}
	}

	c, err := decodeClaims(segments[1])
	if err != nil {
		return nil, err
	}
	tok := &Token{Raw: token, Header: header, Claims: c, Key: verified}

	if len(o.required) > 0 {
		if err := c.ValidateRequired(o.required); err != nil {
			return nil, err
		}
	}
	if o.checkTiming {
		if err := c.ValidateTiming(o.now, o.leeway); err != nil {
			return nil, err
		}
	}
	return tok, nil
}

// DecodeUnverified parses a token without checking its signature. The
// result must never be trusted for authentication; it exists for
// introspection and diagnostics. Malformed input returns a structured
// error, never a panic.
func DecodeUnverified(token string) (*Token, error) {
	header, segments, err := parseHeader(token)
	if err != nil {
		return nil, err
	}
	c, err := decodeClaims(segments[1])
	if err != nil {
		return nil, err
	}
	return &Token{Raw: token, Header: header, Claims: c}, nil
}

// parseHeader splits the compact form and decodes the header segment. It
// enforces the three-segment shape shared by Decode and DecodeUnverified.
func parseHeader(token string) (Header, []string, error) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return Header{}, nil, &MalformedTokenError{
			Reason: fmt.Sprintf("expected 3 segments, got %d", len(segments)),
		}
	}
	for _, s := range segments {
		if s == "" {
			return Header{}, nil, &MalformedTokenError{Reason: "empty segment"}
		}
	}
	headerJSON, err := base64.RawURLEncoding.DecodeString(segments[0])
	if err != nil {
		return Header{}, nil, &MalformedTokenError{Reason: "header segment is not valid base64url", Err: err}
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Header{}, nil, &MalformedTokenError{Reason: "header is not valid JSON", Err: err}
	}
	if header.Typ != "" && header.Typ != "JWT" {
		return Header{}, nil, &MalformedTokenError{Reason: fmt.Sprintf("unexpected typ %q", header.Typ)}
	}
	return header, segments, nil
}

func decodeClaims(segment string) (claims.Claims, error) {
	payload, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return nil, &MalformedTokenError{Reason: "payload segment is not valid base64url", Err: err}
	}
	c, err := claims.DecodeJSON(payload)
	if err != nil {
		return nil, &MalformedTokenError{Reason: "payload is not a valid claims object", Err: err}
	}
	return c, nil
}
