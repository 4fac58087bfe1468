package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"patient-portal/internal/observability/metrics"
)

// Metrics registra contador y latencia por route pattern de chi
// (el pattern, no la URL cruda, para no explotar la cardinalidad).
func Metrics(m *metrics.PortalMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}

			m.ObserveHTTPRequest(
				r.Method,
				route,
				strconv.Itoa(ww.Status()),
				time.Since(start).Seconds(),
			)
		})
	}
}
