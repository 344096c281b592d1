package http

import (
	"net/http"
	"strconv"

	"simtrader-backend/internal/domain"
)

// ScreeningHandler serves the latest screening results
type ScreeningHandler struct {
	repo domain.ScreenerRepository
}

func NewScreeningHandler(repo domain.ScreenerRepository) *ScreeningHandler {
	return &ScreeningHandler{repo: repo}
}

// Latest handles GET /api/screening?timeframe=15m&minScore=70
// Without filters it returns every scored pair from the last cycle.
func (h *ScreeningHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		scores, err := h.repo.LatestScores(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, scores)
		return
	}

	minScore, _ := strconv.ParseFloat(r.URL.Query().Get("minScore"), 64)
	scores, err := h.repo.Candidates(r.Context(), timeframe, minScore)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, scores)
}
