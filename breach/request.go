package breach

import (
	"crypto/sha256"
	"encoding/hex"
)

// RequestContext is the slice of an HTTP request this package needs:
// enough to attribute an attempt to a source without coupling the core to
// any HTTP framework.
type RequestContext struct {
	IP        string
	UserAgent string
	Headers   map[string]string
}

// Fingerprint condenses the request source into a stable hex digest used
// to correlate activity from one client across attempts.
func (r RequestContext) Fingerprint() string {
	h := sha256.Sum256([]byte(r.IP + "|" + r.UserAgent))
	return hex.EncodeToString(h[:])
}
