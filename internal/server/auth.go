package server

import (
	"errors"
	"net/http"
	"strings"
)

var errNoToken = errors.New("no bearer token")

// bearerToken pulls the participant token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		return "", errNoToken
	}
	return token, nil
}

// organizerAuth guards organizer routes with the configured static token.
// Identity resolution proper lives with the external auth service; this is
// only the runtime's own gate.
func organizerAuth(organizerToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil || token != organizerToken {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
