package httpx

import (
	"log/slog"
	"net/http"
	"time"
)

// responseRecorder remembers what the handler wrote for the access log.
type responseRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (rr *responseRecorder) WriteHeader(code int) {
	if rr.status == 0 {
		rr.status = code
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(p []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}
	n, err := rr.ResponseWriter.Write(p)
	rr.size += n
	return n, err
}

func (rr *responseRecorder) Unwrap() http.ResponseWriter {
	return rr.ResponseWriter
}

// WithAccessLog writes one record per request: errors for 5xx, warnings for 4xx.
// The matched route pattern is logged so ids in paths do not explode cardinality.
func WithAccessLog(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			rr := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(rr, r)
			if rr.status == 0 {
				rr.status = http.StatusOK
			}

			level := slog.LevelInfo
			if rr.status >= 500 {
				level = slog.LevelError
			} else if rr.status >= 400 {
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("request_id", RequestIDFromContext(r.Context())),
				slog.String("method", r.Method),
				slog.String("route", r.Pattern),
				slog.String("path", r.URL.Path),
				slog.String("role", Role(r)),
				slog.Int("status", rr.status),
				slog.Int("bytes", rr.size),
				slog.Duration("elapsed", time.Since(started)),
			)
		})
	}
}
