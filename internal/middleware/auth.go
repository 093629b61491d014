package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceAuth gates the invocation endpoints behind a signed service token.
// The platform scheduler that triggers runs holds the shared secret. An
// empty secret disables the gate for local development and trusted
// internal deployments.
type ServiceAuth struct {
	logger *slog.Logger
	secret []byte
}

func NewServiceAuth(logger *slog.Logger, secret string) *ServiceAuth {
	return &ServiceAuth{logger: logger, secret: []byte(secret)}
}

// Middleware returns the auth middleware handler
func (a *ServiceAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			a.logger.Warn("missing authorization header",
				slog.String("path", r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			a.unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			a.unauthorized(w, "invalid authorization header format")
			return
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			a.logger.Warn("invalid service token",
				slog.String("path", r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			a.unauthorized(w, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *ServiceAuth) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
