package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"agri-dashboard/pkg/logging"
	"agri-dashboard/pkg/metrics"
)

// RequestIDHeader carries the correlation id in requests and responses
const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, reusing the caller's when present,
// and stores it in the request context for logging
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// BearerAuth rejects requests without a valid HMAC-signed bearer token.
// Tokens are issued elsewhere; only the signature and registered claims are checked.
func BearerAuth(secret string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) mux.MiddlewareFunc {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				metricsCollector.RecordAPIError("unauthorized", r.URL.Path)
				writeError(w, r, metricsCollector, "missing bearer token", http.StatusUnauthorized)
				return
			}

			if err := validateToken(tokenStr, key); err != nil {
				logger.Warn(r.Context(), "[AUTH_REJECTED] Invalid bearer token", logging.Fields{
					"path":  r.URL.Path,
					"error": err.Error(),
				})
				metricsCollector.RecordAPIError("unauthorized", r.URL.Path)
				writeError(w, r, metricsCollector, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func validateToken(tokenStr string, key []byte) error {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return key, nil
		},
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}
