package tokenward

import "context"

// CurrentKey returns the active signing key for alg, rotating first when
// that key has expired and auto-rotation is on. Key material stays inside
// the returned struct; handle it accordingly.
func (e *Engine) CurrentKey(ctx context.Context, alg Algorithm) (*SigningKey, error) {
	if e.keyring == nil {
		return nil, ErrRotationDisabled
	}
	return e.keyring.CurrentKey(ctx, alg)
}

// RotateKey forces a rotation for alg regardless of the active key's
// remaining lifetime. The superseded key stays valid for verification
// until its grace period ends.
func (e *Engine) RotateKey(ctx context.Context, alg Algorithm) (*SigningKey, error) {
	if e.keyring == nil {
		return nil, ErrRotationDisabled
	}
	return e.keyring.Rotate(ctx, alg)
}

// ValidKeys lists every key currently accepted for verification: the
// active key per algorithm plus history still inside its grace period.
func (e *Engine) ValidKeys(ctx context.Context) ([]SigningKey, error) {
	if e.keyring == nil {
		return nil, ErrRotationDisabled
	}
	return e.keyring.ValidKeys(ctx)
}

// JWKS exports the public halves of the valid asymmetric keys as a JSON
// Web Key Set. HMAC keys are never exported.
func (e *Engine) JWKS(ctx context.Context) ([]byte, error) {
	if e.keyring == nil {
		return nil, ErrRotationDisabled
	}
	return e.keyring.JWKS(ctx)
}
