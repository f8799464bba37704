package shared

import (
	"encoding/json"
	"net/http"
)

// RequireRole gates a route on the actor tier supplied by the identity
// gateway. Requests without an actor are rejected as unauthorized.
func RequireRole(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if actor.ID == 0 {
				respondAuthError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "actor identity missing")
				return
			}
			if !actor.AtLeast(role) {
				respondAuthError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role for this operation")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}
