// ABOUTME: Admin handlers for API keys and JWT issuance
// ABOUTME: Secrets and tokens are returned once and never stored in plain text

package admin

import (
	"net/http"
	"time"
)

// Default TTL for tokens: 30 days.
const defaultTokenTTL = 30 * 24 * time.Hour

// Maximum TTL for tokens: 365 days.
const maxTokenTTL = 365 * 24 * time.Hour

type createAPIKeyRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type createTokenRequest struct {
	UserID     string `json:"user_id" validate:"required"`
	TTLSeconds int64  `json:"ttl_seconds" validate:"gte=0"`
}

func (h *Handler) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}

	keys, err := h.store.ListAPIKeys(r.Context(), userID)
	if err != nil {
		h.storeError(w, "list api keys", err)
		return
	}

	out := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		entry := map[string]any{
			"api_key":    k.Key,
			"user_id":    k.UserID,
			"created_at": k.CreatedAt.Format(time.RFC3339),
		}
		if k.LastUsedAt != nil {
			entry["last_used_at"] = k.LastUsedAt.Format(time.RFC3339)
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"api_keys": out})
}

// handleCreateAPIKey issues a key/secret pair. The secret is only returned here.
func (h *Handler) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req createAPIKeyRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if _, err := h.store.GetUser(r.Context(), req.UserID); err != nil {
		h.storeError(w, "get user", err)
		return
	}
	key, secret, err := h.store.CreateAPIKey(r.Context(), req.UserID)
	if err != nil {
		h.storeError(w, "create api key", err)
		return
	}
	h.audit(r, "create_api_key", "user_id", req.UserID, "api_key", key)

	writeJSON(w, http.StatusCreated, map[string]string{
		"api_key":    key,
		"api_secret": secret,
		"credential": "token " + key + ":" + secret,
	})
}

func (h *Handler) handleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := h.store.DeleteAPIKey(r.Context(), key); err != nil {
		h.storeError(w, "delete api key", err)
		return
	}
	h.audit(r, "delete_api_key", "api_key", key)
	w.WriteHeader(http.StatusNoContent)
}

// handleCreateToken issues a JWT for an enabled user.
func (h *Handler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeError(w, http.StatusPreconditionFailed, "token generation not configured (no jwt_secret)")
		return
	}
	var req createTokenRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	user, err := h.store.GetUser(r.Context(), req.UserID)
	if err != nil {
		h.storeError(w, "get user", err)
		return
	}
	if !user.AssistantEnabled {
		writeError(w, http.StatusPreconditionFailed, "assistant access is disabled for this user")
		return
	}

	ttl := defaultTokenTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
		if ttl > maxTokenTTL {
			writeError(w, http.StatusBadRequest, "ttl_seconds exceeds maximum")
			return
		}
	}

	token, err := h.tokens.Generate(user.UserID, ttl)
	if err != nil {
		h.logger.Error("failed to generate token", "user_id", user.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	h.audit(r, "create_token", "user_id", user.UserID, "ttl", ttl)

	writeJSON(w, http.StatusCreated, map[string]string{
		"token":      token,
		"expires_at": time.Now().Add(ttl).UTC().Format(time.RFC3339),
	})
}
