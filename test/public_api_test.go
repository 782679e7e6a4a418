package test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/wardenlabs/tokenward"
	"github.com/wardenlabs/tokenward/middleware"
)

// This test intentionally guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = tokenward.New

	var _ *tokenward.Engine
	var _ tokenward.Config
	var _ tokenward.Claims
	var _ *tokenward.Token
	var _ *tokenward.TokenPair
	var _ tokenward.SecurityAlert
	var _ tokenward.AlertSink
	var _ tokenward.MetricsSnapshot
	var _ tokenward.IntrospectionResult
	var _ tokenward.HealthStatus

	var _ error = tokenward.ErrTokenMalformed
	var _ error = tokenward.ErrSignatureInvalid
	var _ error = tokenward.ErrTokenExpired
	var _ error = tokenward.ErrTokenRevoked
	var _ error = tokenward.ErrReplayDetected
	var _ error = tokenward.ErrInsufficientAccess
	var _ error = tokenward.ErrClaimMismatch
	var _ error = tokenward.ErrRotationDisabled
	var _ error = tokenward.ErrBlacklistDisabled

	var _ func(*tokenward.Engine) func(http.Handler) http.Handler = middleware.Guard
	var _ func(*tokenward.Engine) func(http.Handler) http.Handler = middleware.RequireAuth
	var _ func(*tokenward.Engine, ...string) func(http.Handler) http.Handler = middleware.RequireAPI

	var _ func(*tokenward.Engine, context.Context, any, tokenward.Claims) (string, error) = (*tokenward.Engine).GenerateAuthToken
	var _ func(*tokenward.Engine, context.Context, any, tokenward.Claims) (*tokenward.TokenPair, error) = (*tokenward.Engine).GenerateTokenPair
	var _ func(*tokenward.Engine, context.Context, string, tokenward.Claims) (*tokenward.TokenPair, error) = (*tokenward.Engine).Refresh
	var _ func(*tokenward.Engine, context.Context, string) (*tokenward.Token, error) = (*tokenward.Engine).Validate
	var _ func(*tokenward.Engine, context.Context, string) error = (*tokenward.Engine).InvalidateToken
	var _ func(*tokenward.Engine, context.Context, string) tokenward.IntrospectionResult = (*tokenward.Engine).Introspect

	var _ func(error) string = tokenward.ErrorCode
	var _ func(*tokenward.Engine, context.Context, string, time.Duration) = (*tokenward.Engine).BlockIP
}
