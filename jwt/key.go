package jwt

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// Key is verification/signing material bound to one algorithm. Private and
// Public hold parsed crypto values: []byte for HS256 (the shared secret
// fills both sides), *rsa.PrivateKey/*rsa.PublicKey for RS256,
// *ecdsa.PrivateKey/*ecdsa.PublicKey for ES256. A verify-only key has a
// nil Private.
type Key struct {
	ID        string
	Algorithm Algorithm
	Private   any
	Public    any
}

// NewHMACKey builds an HS256 key from a shared secret.
func NewHMACKey(id string, secret []byte) Key {
	return Key{ID: id, Algorithm: HS256, Private: secret, Public: secret}
}

// NewRSAKey builds an RS256 signing key; the public half is derived.
func NewRSAKey(id string, priv *rsa.PrivateKey) Key {
	return Key{ID: id, Algorithm: RS256, Private: priv, Public: &priv.PublicKey}
}

// NewRSAVerificationKey builds a verify-only RS256 key.
func NewRSAVerificationKey(id string, pub *rsa.PublicKey) Key {
	return Key{ID: id, Algorithm: RS256, Public: pub}
}

// NewECDSAKey builds an ES256 signing key; the public half is derived.
func NewECDSAKey(id string, priv *ecdsa.PrivateKey) Key {
	return Key{ID: id, Algorithm: ES256, Private: priv, Public: &priv.PublicKey}
}

// NewECDSAVerificationKey builds a verify-only ES256 key.
func NewECDSAVerificationKey(id string, pub *ecdsa.PublicKey) Key {
	return Key{ID: id, Algorithm: ES256, Public: pub}
}

// KeyFromPEM builds an asymmetric key from PEM-encoded material. Either
// side may be absent; a key with only publicPEM is verify-only. HS256
// secrets are raw bytes, not PEM, and are rejected here.
func KeyFromPEM(id string, alg Algorithm, privatePEM, publicPEM []byte) (Key, error) {
	if len(privatePEM) == 0 && len(publicPEM) == 0 {
		return Key{}, fmt.Errorf("%w: no PEM material for key %q", ErrKeyMaterial, id)
	}
	k := Key{ID: id, Algorithm: alg}
	switch alg {
	case RS256:
		if len(privatePEM) > 0 {
			priv, err := gjwt.ParseRSAPrivateKeyFromPEM(privatePEM)
			if err != nil {
				return Key{}, fmt.Errorf("%w: parsing RSA private key: %v", ErrKeyMaterial, err)
			}
			k.Private = priv
			k.Public = &priv.PublicKey
		}
		if len(publicPEM) > 0 {
			pub, err := gjwt.ParseRSAPublicKeyFromPEM(publicPEM)
			if err != nil {
				return Key{}, fmt.Errorf("%w: parsing RSA public key: %v", ErrKeyMaterial, err)
			}
			k.Public = pub
		}
	case ES256:
		if len(privatePEM) > 0 {
			priv, err := gjwt.ParseECPrivateKeyFromPEM(privatePEM)
			if err != nil {
				return Key{}, fmt.Errorf("%w: parsing EC private key: %v", ErrKeyMaterial, err)
			}
			k.Private = priv
			k.Public = &priv.PublicKey
		}
		if len(publicPEM) > 0 {
			pub, err := gjwt.ParseECPublicKeyFromPEM(publicPEM)
			if err != nil {
				return Key{}, fmt.Errorf("%w: parsing EC public key: %v", ErrKeyMaterial, err)
			}
			k.Public = pub
		}
	case HS256:
		return Key{}, fmt.Errorf("%w: HS256 secrets are raw bytes, not PEM", ErrKeyMaterial)
	default:
		return Key{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(alg))
	}
	return k, nil
}

// CanSign reports whether the key carries signing material.
func (k Key) CanSign() bool { return k.Private != nil }

// CanVerify reports whether the key carries verification material.
func (k Key) CanVerify() bool { return k.Public != nil }

// signMaterial returns the signing side after checking its shape against
// the declared algorithm.
func (k Key) signMaterial() (any, error) {
	switch k.Algorithm {
	case HS256:
		if s, ok := k.Private.([]byte); ok && len(s) > 0 {
			return s, nil
		}
	case RS256:
		if p, ok := k.Private.(*rsa.PrivateKey); ok && p != nil {
			return p, nil
		}
	case ES256:
		if p, ok := k.Private.(*ecdsa.PrivateKey); ok && p != nil {
			return p, nil
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(k.Algorithm))
	}
	return nil, fmt.Errorf("%w: key %q cannot sign %s", ErrKeyMaterial, k.ID, k.Algorithm)
}

// verifyMaterial returns the verification side after checking its shape
// against the declared algorithm.
func (k Key) verifyMaterial() (any, error) {
	switch k.Algorithm {
	case HS256:
		if s, ok := k.Public.([]byte); ok && len(s) > 0 {
			return s, nil
		}
	case RS256:
		if p, ok := k.Public.(*rsa.PublicKey); ok && p != nil {
			return p, nil
		}
	case ES256:
		if p, ok := k.Public.(*ecdsa.PublicKey); ok && p != nil {
			return p, nil
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(k.Algorithm))
	}
	return nil, fmt.Errorf("%w: key %q cannot verify %s", ErrKeyMaterial, k.ID, k.Algorithm)
}
