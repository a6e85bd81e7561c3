package handlers

import (
	"encoding/json"
	"net/http"

	"chatrelay/internal/core/services"
	"chatrelay/internal/platform/logger"
)

// TokenHandler issues connection tokens for an identity. The relay does not
// own user accounts; the identity is taken as given and verified upstream.
type TokenHandler struct {
	tokenSvc *services.TokenService
}

func NewTokenHandler(t *services.TokenService) *TokenHandler {
	return &TokenHandler{tokenSvc: t}
}

func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	var req struct {
		Identity string `json:"identity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identity == "" {
		log.ErrorContext(r.Context(), "token handler - bad request")
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	token, err := h.tokenSvc.GenerateToken(req.Identity)
	if err != nil {
		log.ErrorContext(r.Context(), "token handler - generate token failed", "identity", req.Identity)
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{
		"token":    token,
		"identity": req.Identity,
	})
	log.InfoContext(r.Context(), "token handler - token issued", "identity", req.Identity)
}
