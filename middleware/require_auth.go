package middleware

import (
	"context"
	"net/http"

	"github.com/wardenlabs/tokenward"
)

// RequireAuth returns middleware admitting only access tokens. Refresh
// and single-purpose tokens are rejected even when otherwise valid.
func RequireAuth(engine *tokenward.Engine) func(http.Handler) http.Handler {
	return guard(engine, func(ctx context.Context, token string) (*tokenward.Token, error) {
		return engine.ValidateAuthToken(ctx, token, "")
	})
}
