package breach

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. Breach detection
// and refresh replay reporting read it back when recording observations.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx, used for
// request fingerprinting.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// ClientIP returns the IP attached with [WithClientIP], or "".
func ClientIP(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// UserAgent returns the User-Agent attached with [WithUserAgent], or "".
func UserAgent(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

// ContextRequest assembles a [RequestContext] from the values attached to
// ctx. Absent values stay empty; fingerprinting tolerates that.
func ContextRequest(ctx context.Context) RequestContext {
	return RequestContext{IP: ClientIP(ctx), UserAgent: UserAgent(ctx)}
}
