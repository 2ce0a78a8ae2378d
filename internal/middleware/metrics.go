package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/allfence/internal/metrics"
)

// Metrics records request counts and latency per route template, so
// /fencers/F-1 and /fencers/F-2 share one series
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := WrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			if cr := mux.CurrentRoute(r); cr != nil {
				if tpl, err := cr.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.Status())).Inc()
			m.HTTPRequestSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}
