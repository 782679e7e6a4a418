package tokenward

import (
	"context"
	"time"

	"github.com/wardenlabs/tokenward/jwt"
)

// DecodeWithoutVerification parses a token without checking its signature,
// timing or claims. For introspection and debugging only; never make an
// authorization decision from its result.
func (e *Engine) DecodeWithoutVerification(token string) (*Token, error) {
	return jwt.DecodeUnverified(token)
}

// Introspect reports a token's validity without turning invalid input into
// an error: Active carries the verdict, Code and Reason the cause when
// inactive. Metadata on inactive tokens is best-effort, filled from an
// unverified parse when the token is at least well formed.
func (e *Engine) Introspect(ctx context.Context, token string) IntrospectionResult {
	tok, err := e.Validate(ctx, token)
	if err != nil {
		res := IntrospectionResult{
			Code:   ErrorCode(err),
			Reason: err.Error(),
		}
		if unverified, decodeErr := jwt.DecodeUnverified(token); decodeErr == nil {
			fillIntrospection(&res, unverified)
		}
		return res
	}
	res := IntrospectionResult{Active: true}
	fillIntrospection(&res, tok)
	return res
}

func fillIntrospection(res *IntrospectionResult, tok *jwt.Token) {
	res.TokenID = tok.ID()
	res.TokenType = tok.Type()
	res.Algorithm = Algorithm(tok.Header.Alg)
	res.KeyID = tok.Header.KID
	if sub, ok := tok.Claims.Subject(); ok {
		res.Subject = sub
	}
	if iss, ok := tok.Claims.Issuer(); ok {
		res.Issuer = iss
	}
	if iat, ok := tok.Claims.IssuedAt(); ok {
		res.IssuedAt = iat
	}
	if exp, ok := tok.Claims.ExpiresAt(); ok {
		res.ExpiresAt = exp
	}
	res.Claims = tok.Claims.All()
}

// Health probes the engine's collaborators on demand: one cache round trip
// plus a signing-key fetch.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.store == nil {
		return HealthStatus{}
	}
	start := time.Now()
	_, err := e.store.Has(ctx, "health:probe")
	status := HealthStatus{
		CacheOK:      err == nil,
		CacheLatency: time.Since(start),
	}
	if _, err := e.keys.SigningKey(ctx); err == nil {
		status.KeyringOK = true
	}
	return status
}
