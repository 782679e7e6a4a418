package keyring

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wardenlabs/tokenward/jwt"
)

const rsaKeyBits = 2048

// generateKey mints a fresh SigningKey for alg with its lifecycle window
// anchored at now. Entropy failures are fatal: retrying against a broken
// randomness source only manufactures weak keys.
func generateKey(alg jwt.Algorithm, now time.Time, rotation, grace time.Duration, strengthBits int) (*SigningKey, error) {
	k := &SigningKey{
		ID:             uuid.NewString(),
		Algorithm:      alg,
		CreatedAt:      now,
		ExpiresAt:      now.Add(rotation),
		GraceExpiresAt: now.Add(rotation + grace),
	}
	switch alg {
	case jwt.HS256:
		secret := make([]byte, strengthBits/8)
		if _, err := rand.Read(secret); err != nil {
			return nil, &KeyError{Op: "generate", Algorithm: alg, Fatal: true, Err: err}
		}
		k.Secret = secret
	case jwt.RS256:
		priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
		if err != nil {
			return nil, &KeyError{Op: "generate", Algorithm: alg, Fatal: true, Err: err}
		}
		if err := encodePEMPair(k, priv, &priv.PublicKey); err != nil {
			return nil, &KeyError{Op: "generate", Algorithm: alg, Fatal: true, Err: err}
		}
	case jwt.ES256:
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, &KeyError{Op: "generate", Algorithm: alg, Fatal: true, Err: err}
		}
		if err := encodePEMPair(k, priv, &priv.PublicKey); err != nil {
			return nil, &KeyError{Op: "generate", Algorithm: alg, Fatal: true, Err: err}
		}
	default:
		return nil, &KeyError{Op: "generate", Algorithm: alg,
			Err: fmt.Errorf("%w: %q", jwt.ErrUnsupportedAlgorithm, string(alg))}
	}
	return k, nil
}

func encodePEMPair(k *SigningKey, priv any, pub any) error {
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("encoding private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return fmt.Errorf("encoding public key: %w", err)
	}
	k.PrivateKeyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	k.PublicKeyPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return nil
}
