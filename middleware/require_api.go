package middleware

import (
	"context"
	"net/http"

	"github.com/wardenlabs/tokenward"
)

// RequireAPI returns middleware admitting only API tokens that carry
// every scope in scopes.
func RequireAPI(engine *tokenward.Engine, scopes ...string) func(http.Handler) http.Handler {
	return guard(engine, func(ctx context.Context, token string) (*tokenward.Token, error) {
		return engine.ValidateAPIToken(ctx, token, scopes)
	})
}
