package middleware

import (
	"context"
	"net/http"
	"strings"

	"collabroom/internal/service"
)

// AuthMiddleware validates the bearer credential on every request and puts
// the resolved user into the request context. 401 answers let the client
// run its one refresh+retry cycle.
func AuthMiddleware(authService service.AuthService, next func(w http.ResponseWriter, r *http.Request)) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			http.Error(w, "Missing bearer token", http.StatusUnauthorized)
			return
		}

		user, err := authService.Validate(token)
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "user", *user)
		r = r.WithContext(ctx)

		next(w, r)
	}
}
