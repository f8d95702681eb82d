// Package telemetry instruments the gateway's HTTP surface. Request
// durations feed the prometheus histogram; only requests above the slow
// threshold are logged, so routine traffic stays quiet.
package telemetry

import (
	"net/http"
	"time"

	"chatcore/pkg/logger"
	"chatcore/pkg/metrics"
)

// DefaultSlowThreshold is used when the config leaves the threshold unset.
const DefaultSlowThreshold = 200 * time.Millisecond

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware wraps next with duration measurement and slow-request
// logging. slow <= 0 selects DefaultSlowThreshold.
func Middleware(slow time.Duration, next http.Handler) http.Handler {
	if slow <= 0 {
		slow = DefaultSlowThreshold
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		elapsed := time.Since(start)

		metrics.GatewayRequestDuration.WithLabelValues(r.Method).Observe(elapsed.Seconds())
		if elapsed >= slow {
			logger.Warn("gateway_slow_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", elapsed.Milliseconds())
		}
	})
}
