package delivery

import (
	"net/http"
)

// AuthMiddleware guards the status API with a static token. Health and
// metrics stay public. The websocket upgrade cannot carry custom headers
// from a browser, so the token is also accepted as a query parameter.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get("X-Auth")
			if got == "" {
				got = r.URL.Query().Get("token")
			}
			if got == "" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}
			if got != token {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
