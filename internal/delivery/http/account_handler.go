package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"simtrader-backend/internal/domain"
	"simtrader-backend/internal/usecase"
)

// AccountHandler handles simulated account endpoints
type AccountHandler struct {
	service *usecase.SimTradingService
}

func NewAccountHandler(service *usecase.SimTradingService) *AccountHandler {
	return &AccountHandler{service: service}
}

// Accounts handles GET (list) and POST (create) on /api/sim/accounts
func (h *AccountHandler) Accounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		accounts, err := h.service.ListAccounts(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, accounts)
	case http.MethodPost:
		var req struct {
			AccountName    string               `json:"accountName"`
			InitialBalance float64              `json:"initialBalance"`
			Config         domain.AccountConfig `json:"config"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		account, err := h.service.CreateAccount(r.Context(), req.AccountName, req.InitialBalance, req.Config)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(account)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Account handles GET and DELETE on /api/sim/account?id=N
func (h *AccountHandler) Account(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		account, err := h.service.GetAccount(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, account)
	case http.MethodDelete:
		if err := h.service.DeleteAccount(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]string{"message": "Account deleted"})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Summary handles GET /api/sim/account/summary?id=N
func (h *AccountHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	summary, err := h.service.AccountSummary(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, summary)
}

// UpdateConfig handles POST /api/sim/account/config?id=N
func (h *AccountHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var cfg domain.AccountConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	account, err := h.service.UpdateAccountConfig(r.Context(), id, cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, account)
}

// SetAutoTrading handles POST /api/sim/account/autotrading?id=N
func (h *AccountHandler) SetAutoTrading(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	account, err := h.service.SetAutoTrading(r.Context(), id, req.Enabled)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, account)
}

// Helpers shared by the sim handlers.

func accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid account id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrPositionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrScanInProgress):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrPositionExists),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrMaxPositions):
		status = http.StatusUnprocessableEntity
	}
	http.Error(w, err.Error(), status)
}
