package apikey

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"screenshot-service/internal/store"

	"github.com/go-logr/logr"
)

const DefaultHeaderName = "X-API-Key"

type AuthConfig struct {
	Enabled bool
	// Required rejects requests that present no key at all.
	Required   bool
	HeaderName string
}

type contextKey struct{}

// FromContext returns the key the request was authenticated with, if any.
func FromContext(ctx context.Context) (*store.APIKey, bool) {
	key, ok := ctx.Value(contextKey{}).(*store.APIKey)
	return key, ok
}

type validator interface {
	Validate(ctx context.Context, presented string) (*store.APIKey, error)
}

func Middleware(v validator, config AuthConfig, logger logr.Logger) func(http.Handler) http.Handler {
	headerName := config.HeaderName
	if headerName == "" {
		headerName = DefaultHeaderName
	}

	return func(next http.Handler) http.Handler {
		if !config.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(headerName)
			if presented == "" {
				if config.Required {
					unauthorized(w, "API key required. Provide "+headerName+" header.")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			key, err := v.Validate(r.Context(), presented)
			if err != nil {
				if !errors.Is(err, ErrInvalidKey) {
					logger.Error(err, "failed to validate api key")
				}
				unauthorized(w, "Invalid or inactive API key")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, key)))
		})
	}
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
