package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

type CORSPolicy struct {
	AllowedOrigins   []string // "*" allows any origin
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// WithCORS answers preflights itself and decorates other responses for allowed origins.
// With no allowed origins it passes requests through untouched.
func WithCORS(p CORSPolicy) Middleware {
	origins := map[string]bool{}
	anyOrigin := false
	for _, o := range normalizeList(p.AllowedOrigins) {
		if o == "*" {
			anyOrigin = true
			continue
		}
		origins[strings.ToLower(o)] = true
	}
	if !anyOrigin && len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	methods := normalizeList(p.AllowedMethods)
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	}
	preflight := http.Header{}
	preflight.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
	if hs := normalizeList(p.AllowedHeaders); len(hs) > 0 {
		preflight.Set("Access-Control-Allow-Headers", strings.Join(hs, ", "))
	}
	if secs := int(p.MaxAge / time.Second); secs > 0 {
		preflight.Set("Access-Control-Max-Age", strconv.Itoa(secs))
	}

	allowed := func(origin string) (string, bool) {
		if origins[strings.ToLower(origin)] {
			return origin, true
		}
		if anyOrigin {
			// A literal "*" is not accepted by browsers on credentialed requests.
			if p.AllowCredentials {
				return origin, true
			}
			return "*", true
		}
		return "", false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			w.Header().Add("Vary", "Origin")
			value, ok := allowed(origin)
			if origin == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", value)
			if p.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				h.Set("Access-Control-Expose-Headers", RequestIDHeader)
				next.ServeHTTP(w, r)
				return
			}
			for k, v := range preflight {
				h[k] = v
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
