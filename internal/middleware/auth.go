package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/akarpov/ledger-service/internal/httputil"
	"github.com/akarpov/ledger-service/internal/token"
)

type contextKey string

const userIDContextKey contextKey = "userID"

// Auth returns middleware that verifies the bearer token on every request
// and attaches the resolved user id to the request context. This is the only
// place identity enters a request; handlers never trust ids from the body or
// query.
func Auth(tokens *token.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.WriteError(w, http.StatusUnauthorized, "No token provided")
				return
			}

			// A present but malformed header is a bad credential, not a
			// missing one.
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				httputil.WriteError(w, http.StatusForbidden, "Token is not valid")
				return
			}

			userID, err := tokens.Verify(parts[1])
			if err != nil {
				httputil.WriteError(w, http.StatusForbidden, "Token is not valid")
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated user id attached by Auth.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDContextKey).(int64)
	return id, ok
}
