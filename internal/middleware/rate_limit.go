package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/strandpine/warden/pkg/http"
)

// RateLimitConfig bounds request volume per client address within a
// rolling window.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DefaultLoginRateLimit allows 5 login calls per minute per address.
func DefaultLoginRateLimit() RateLimitConfig {
	return RateLimitConfig{
		Requests: 5,
		Window:   time.Minute,
	}
}

// RateLimitByAddress limits requests per client address. It runs in
// front of the login pipeline, so floods are refused without touching
// the attempt ledger or the identity provider.
func RateLimitByAddress(config RateLimitConfig) func(next http.Handler) http.Handler {
	window := config.Window
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(
		config.Requests,
		window,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
		}),
	)
}
