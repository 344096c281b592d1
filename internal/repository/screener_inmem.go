package repository

import (
	"context"
	"sync"

	"simtrader-backend/internal/domain"
)

// InMemoryScreenerRepository holds the latest screening cycle's scores.
// Each save replaces the previous cycle wholesale; readers get copies.
type InMemoryScreenerRepository struct {
	mu     sync.RWMutex
	scores []domain.ScoreRecord
}

var _ domain.ScreenerRepository = (*InMemoryScreenerRepository)(nil)

func NewInMemoryScreenerRepository() *InMemoryScreenerRepository {
	return &InMemoryScreenerRepository{}
}

func (r *InMemoryScreenerRepository) SaveScores(ctx context.Context, scores []domain.ScoreRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = append([]domain.ScoreRecord(nil), scores...)
	return nil
}

func (r *InMemoryScreenerRepository) LatestScores(ctx context.Context) ([]domain.ScoreRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.ScoreRecord(nil), r.scores...), nil
}

func (r *InMemoryScreenerRepository) Candidates(ctx context.Context, timeframe string, minScore float64) ([]domain.ScoreRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.ScoreRecord
	for _, s := range r.scores {
		if s.Timeframe == timeframe && s.TotalScore >= minScore {
			out = append(out, s)
		}
	}
	return out, nil
}
