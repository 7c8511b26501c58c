package httpx

import (
	"net/http"
	"strings"
)

// Identity headers are set by the upstream gateway after authentication.
const (
	RoleHeader   = "X-Role"
	UserIDHeader = "X-User-Id"
)

// Role returns the lower-cased gateway-asserted role, or "" when absent.
func Role(r *http.Request) string {
	return strings.ToLower(strings.TrimSpace(r.Header.Get(RoleHeader)))
}

func UserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserIDHeader))
}

// RequireRole rejects requests whose gateway-asserted role is not in roles.
func RequireRole(roles ...string) Middleware {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[strings.ToLower(r)] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[Role(r)]; !ok {
				WriteError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
