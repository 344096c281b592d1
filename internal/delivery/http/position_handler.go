package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"simtrader-backend/internal/usecase"
)

// PositionHandler handles position and trade endpoints
type PositionHandler struct {
	trading *usecase.SimTradingService
	auto    *usecase.AutoTradeService
}

func NewPositionHandler(trading *usecase.SimTradingService, auto *usecase.AutoTradeService) *PositionHandler {
	return &PositionHandler{trading: trading, auto: auto}
}

// Open handles GET /api/sim/positions?id=N
func (h *PositionHandler) Open(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	positions, err := h.trading.OpenPositions(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, positions)
}

// History handles GET /api/sim/positions/history?id=N&limit=50
func (h *PositionHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	positions, err := h.trading.PositionHistory(r.Context(), id, limitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, positions)
}

// Close handles POST /api/sim/position/close?id=N with an optional
// {"exitPrice": 1.23} body. Without a price the current market price is used.
func (h *PositionHandler) Close(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	positionID, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || positionID <= 0 {
		http.Error(w, "Invalid position id", http.StatusBadRequest)
		return
	}

	var req struct {
		ExitPrice *float64 `json:"exitPrice"`
	}
	if r.Body != nil {
		// An empty body means close at market.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	position, err := h.trading.ClosePosition(r.Context(), positionID, req.ExitPrice)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, position)
}

// Trades handles GET /api/sim/trades?id=N&limit=50
func (h *PositionHandler) Trades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	trades, err := h.trading.Trades(r.Context(), id, limitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, trades)
}

// Logs handles GET /api/sim/logs?id=N&limit=100
func (h *PositionHandler) Logs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	entries, err := h.trading.AutoTradeLogs(r.Context(), id, limitParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, entries)
}

// Scan handles POST /api/sim/scan?id=N, a manual trigger of one auto-trade
// scan for the account.
func (h *PositionHandler) Scan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	result, err := h.auto.RunScan(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func limitParam(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return 50
	}
	return limit
}
