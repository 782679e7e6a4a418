package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/wardenlabs/tokenward"
)

type tokenContextKey struct{}

// TokenFromContext returns the validated token a guard stored on the
// request context.
func TokenFromContext(ctx context.Context) (*tokenward.Token, bool) {
	tok, ok := ctx.Value(tokenContextKey{}).(*tokenward.Token)
	return tok, ok
}

type validateFunc func(ctx context.Context, token string) (*tokenward.Token, error)

// Guard returns middleware enforcing bearer-token authentication with
// [tokenward.Engine.Validate]: any well-signed, timely, unrevoked token
// passes regardless of its type claim.
func Guard(engine *tokenward.Engine) func(http.Handler) http.Handler {
	return guard(engine, func(ctx context.Context, token string) (*tokenward.Token, error) {
		return engine.Validate(ctx, token)
	})
}

func guard(engine *tokenward.Engine, validate validateFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := requestContext(r)
			if ip := tokenward.ClientIP(ctx); ip != "" && engine.IsIPBlocked(ctx, ip) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			tok, err := validate(ctx, token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, tokenContextKey{}, tok)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestContext threads the caller's address and user agent onto the
// request context so breach detection can fingerprint the request. Only
// the transport address is trusted; forwarding headers are the proxy
// layer's problem.
func requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		ctx = tokenward.WithClientIP(ctx, host)
	} else if r.RemoteAddr != "" {
		ctx = tokenward.WithClientIP(ctx, r.RemoteAddr)
	}
	if ua := r.Header.Get("User-Agent"); ua != "" {
		ctx = tokenward.WithUserAgent(ctx, ua)
	}
	return ctx
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
