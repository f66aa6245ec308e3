package logger

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// HTTPLogger logs one line per request and tags the request context with
// the chi request id so downstream log lines can be correlated.
func HTTPLogger(l Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			if reqID := middleware.GetReqID(ctx); reqID != "" {
				ctx = l.With(ctx, "request_id", reqID)
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			l.Infof(ctx, "HTTP %s %s status=%d duration_ms=%d remote_addr=%s",
				r.Method, r.URL.Path, status, time.Since(start).Milliseconds(), r.RemoteAddr)
		})
	}
}
