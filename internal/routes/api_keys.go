package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"screenshot-service/internal/store"

	"github.com/go-logr/logr"
)

type APIKeyCreateRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

type APIKeyCreateResponse struct {
	APIKey *store.APIKey `json:"api_key"`
	// Key is the plaintext, returned only once.
	Key string `json:"key"`
}

type APIKeyListResponse struct {
	Keys []store.APIKey `json:"keys"`
}

func CreateAPIKey(keys KeyManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request APIKeyCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, fmt.Sprintf("Invalid request format: %s", err))
			return
		}
		if strings.TrimSpace(request.Name) == "" {
			writeError(w, r, http.StatusUnprocessableEntity, "name must not be empty")
			return
		}

		plaintext, key, err := keys.Generate(r.Context(), request.Name, request.Description, request.ExpiresAt)
		if err != nil {
			logr.FromContextOrDiscard(r.Context()).Error(err, "failed to create api key")
			writeError(w, r, http.StatusInternalServerError, "Failed to create API key")
			return
		}

		writeJSON(w, r, http.StatusOK, APIKeyCreateResponse{APIKey: key, Key: plaintext})
	}
}

func ListAPIKeys(keys KeyManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		includeInactive := false
		if v := r.URL.Query().Get("include_inactive"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, r, http.StatusUnprocessableEntity, "include_inactive must be a boolean")
				return
			}
			includeInactive = b
		}

		list, err := keys.List(r.Context(), includeInactive)
		if err != nil {
			logr.FromContextOrDiscard(r.Context()).Error(err, "failed to list api keys")
			writeError(w, r, http.StatusInternalServerError, "Failed to list API keys")
			return
		}
		if list == nil {
			list = []store.APIKey{}
		}

		writeJSON(w, r, http.StatusOK, APIKeyListResponse{Keys: list})
	}
}

func RevokeAPIKey(keys KeyManager) http.HandlerFunc {
	return setAPIKeyActive(keys.Revoke, "API key revoked successfully")
}

func ReactivateAPIKey(keys KeyManager) http.HandlerFunc {
	return setAPIKeyActive(keys.Reactivate, "API key reactivated successfully")
}

func setAPIKeyActive(update func(ctx context.Context, id int64) error, done string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		if err := update(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, r, http.StatusNotFound, "API key not found")
				return
			}
			logr.FromContextOrDiscard(r.Context()).Error(err, "failed to update api key", "id", id)
			writeError(w, r, http.StatusInternalServerError, "Failed to update API key")
			return
		}

		writeJSON(w, r, http.StatusOK, message{Message: done})
	}
}
