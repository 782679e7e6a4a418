package jwt

import (
	"fmt"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// Algorithm names a supported signature algorithm. The value is the exact
// string carried in the token header's alg field.
type Algorithm string

const (
	// HS256 is HMAC-SHA256 over a shared secret.
	HS256 Algorithm = "HS256"
	// RS256 is RSASSA-PKCS1-v1_5 with SHA-256.
	RS256 Algorithm = "RS256"
	// ES256 is ECDSA over P-256 with SHA-256.
	ES256 Algorithm = "ES256"
)

// methods maps each supported algorithm to its golang-jwt implementation.
// HS256 verification inside golang-jwt uses hmac.Equal, keeping the
// comparison constant-time.
var methods = map[Algorithm]gjwt.SigningMethod{
	HS256: gjwt.SigningMethodHS256,
	RS256: gjwt.SigningMethodRS256,
	ES256: gjwt.SigningMethodES256,
}

// SupportedAlgorithms returns the closed algorithm set in a fixed order.
func SupportedAlgorithms() []Algorithm {
	return []Algorithm{HS256, RS256, ES256}
}

// Valid reports whether the algorithm is in the supported set.
func (a Algorithm) Valid() bool {
	_, ok := methods[a]
	return ok
}

// Symmetric reports whether the algorithm uses a shared secret. Symmetric
// keys are never exported through JWKS.
func (a Algorithm) Symmetric() bool { return a == HS256 }

// ParseAlgorithm resolves an algorithm name, case-sensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, s)
	}
	return a, nil
}

func (a Algorithm) method() (gjwt.SigningMethod, error) {
	m, ok := methods[a]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(a))
	}
	return m, nil
}

// sign produces the raw signature over signingInput with already
// shape-checked key material.
func (a Algorithm) sign(signingInput string, key any) ([]byte, error) {
	m, err := a.method()
	if err != nil {
		return nil, err
	}
	return m.Sign(signingInput, key)
}

// verify checks sig over signingInput. A nil return means the signature is
// authentic under key.
func (a Algorithm) verify(signingInput string, sig []byte, key any) error {
	m, err := a.method()
	if err != nil {
		return err
	}
	return m.Verify(signingInput, sig, key)
}
