package tokenward

import (
	"context"

	"github.com/wardenlabs/tokenward/breach"
)

// WithClientIP attaches the caller's IP address to ctx. Breach detection
// fingerprints it and refresh replay analysis records it against token
// usage.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return breach.WithClientIP(ctx, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx for request
// fingerprinting.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return breach.WithUserAgent(ctx, userAgent)
}

// ClientIP returns the IP stored by WithClientIP, or "".
func ClientIP(ctx context.Context) string {
	return breach.ClientIP(ctx)
}

// UserAgent returns the user agent stored by WithUserAgent, or "".
func UserAgent(ctx context.Context) string {
	return breach.UserAgent(ctx)
}

// ContextRequest assembles a RequestContext from the values stored on ctx.
func ContextRequest(ctx context.Context) RequestContext {
	return breach.ContextRequest(ctx)
}
