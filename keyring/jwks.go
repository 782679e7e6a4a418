package keyring

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/wardenlabs/tokenward/jwt"
)

// JWKS exports the public halves of every usable asymmetric key as a JSON
// Web Key Set, for collaborators that verify tokens out of process. HMAC
// keys are shared secrets and are never exported.
func (m *Manager) JWKS(ctx context.Context) ([]byte, error) {
	keys, err := m.ValidKeys(ctx)
	if err != nil {
		return nil, err
	}

	set := jwk.NewSet()
	for i := range keys {
		if keys[i].Algorithm.Symmetric() {
			continue
		}
		material, err := keys[i].Material()
		if err != nil {
			return nil, &KeyError{Op: "jwks", Algorithm: keys[i].Algorithm, Err: err}
		}
		pub, err := jwk.FromRaw(material.Public)
		if err != nil {
			return nil, &KeyError{Op: "jwks", Algorithm: keys[i].Algorithm, Err: err}
		}
		if err := pub.Set(jwk.KeyIDKey, keys[i].ID); err != nil {
			return nil, &KeyError{Op: "jwks", Algorithm: keys[i].Algorithm, Err: err}
		}
		if err := pub.Set(jwk.AlgorithmKey, jwksAlgorithm(keys[i].Algorithm)); err != nil {
			return nil, &KeyError{Op: "jwks", Algorithm: keys[i].Algorithm, Err: err}
		}
		if err := set.AddKey(pub); err != nil {
			return nil, &KeyError{Op: "jwks", Algorithm: keys[i].Algorithm, Err: err}
		}
	}

	payload, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("encoding jwks: %w", err)
	}
	return payload, nil
}

func jwksAlgorithm(alg jwt.Algorithm) jwa.SignatureAlgorithm {
	switch alg {
	case jwt.RS256:
		return jwa.RS256
	case jwt.ES256:
		return jwa.ES256
	}
	return jwa.SignatureAlgorithm(string(alg))
}
