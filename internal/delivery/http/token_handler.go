package http

import (
	"encoding/json"
	"net/http"

	"simtrader-backend/internal/repository"
)

// TokenHandler manages device token registration for push notifications
type TokenHandler struct {
	tokenRepo *repository.TokenRepository
}

func NewTokenHandler(tokenRepo *repository.TokenRepository) *TokenHandler {
	return &TokenHandler{tokenRepo: tokenRepo}
}

// Register handles POST /api/tokens/register
func (h *TokenHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Token    string `json:"token"`
		Platform string `json:"platform"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.tokenRepo.Register(req.Token, req.Platform)
	writeJSON(w, map[string]interface{}{
		"message": "Token registered",
		"count":   h.tokenRepo.Count(),
	})
}

// Unregister handles POST /api/tokens/unregister
func (h *TokenHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.tokenRepo.Unregister(req.Token)
	writeJSON(w, map[string]string{"message": "Token unregistered"})
}
