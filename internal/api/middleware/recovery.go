package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/allfence/internal/api/apierr"
	"github.com/mcoot/allfence/internal/metrics"
	"github.com/mcoot/allfence/internal/middleware"
)

// Recovery creates panic recovery middleware for the API
// Returns JSON error responses on panic
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, apiPanicHandler)
}

func apiPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewInternalError())
}

// Logging logs each API request
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger)
}

// Metrics records per-route request metrics
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return middleware.Metrics(m)
}

// RateLimit limits each client IP, answering with a JSON 429
func RateLimit(limiter *middleware.IPRateLimiter) func(http.Handler) http.Handler {
	return middleware.RateLimit(limiter, func(w http.ResponseWriter, _ *http.Request) {
		apierr.WriteError(w, apierr.NewRateLimitedError())
	})
}
