package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"simtrader-backend/internal/domain"
)

// PostgresScreenerRepository persists screening cycles. Only the latest
// cycle is queryable; each save replaces the previous rows in one
// transaction so readers never see a half-written cycle.
type PostgresScreenerRepository struct {
	pool *pgxpool.Pool
}

var _ domain.ScreenerRepository = (*PostgresScreenerRepository)(nil)

func NewPostgresScreenerRepository(pool *pgxpool.Pool) *PostgresScreenerRepository {
	return &PostgresScreenerRepository{pool: pool}
}

func (r *PostgresScreenerRepository) SaveScores(ctx context.Context, scores []domain.ScoreRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `delete from screening_results`); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, s := range scores {
		signals, err := json.Marshal(s.Signals)
		if err != nil {
			return fmt.Errorf("encode signals: %w", err)
		}
		batch.Queue(`
			insert into screening_results(
				symbol, timeframe, current_price, total_score, beta_score,
				volume_score, technical_score, signals, volume_24h,
				btc_ratio_change, eth_ratio_change, scored_at
			) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`,
			s.Symbol, s.Timeframe, s.CurrentPrice, s.TotalScore, s.BetaScore,
			s.VolumeScore, s.TechnicalScore, signals, s.Volume24h,
			s.BTCRatioChange, s.ETHRatioChange, s.Timestamp,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresScreenerRepository) LatestScores(ctx context.Context) ([]domain.ScoreRecord, error) {
	return r.query(ctx, `
		select symbol, timeframe, current_price, total_score, beta_score,
			volume_score, technical_score, signals, volume_24h,
			btc_ratio_change, eth_ratio_change, scored_at
		from screening_results
		order by total_score desc
	`)
}

func (r *PostgresScreenerRepository) Candidates(ctx context.Context, timeframe string, minScore float64) ([]domain.ScoreRecord, error) {
	return r.query(ctx, `
		select symbol, timeframe, current_price, total_score, beta_score,
			volume_score, technical_score, signals, volume_24h,
			btc_ratio_change, eth_ratio_change, scored_at
		from screening_results
		where timeframe = $1 and total_score >= $2
		order by total_score desc
	`, timeframe, minScore)
}

func (r *PostgresScreenerRepository) query(ctx context.Context, sql string, args ...any) ([]domain.ScoreRecord, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make([]domain.ScoreRecord, 0)
	for rows.Next() {
		var s domain.ScoreRecord
		var signals []byte
		if err := rows.Scan(
			&s.Symbol,
			&s.Timeframe,
			&s.CurrentPrice,
			&s.TotalScore,
			&s.BetaScore,
			&s.VolumeScore,
			&s.TechnicalScore,
			&signals,
			&s.Volume24h,
			&s.BTCRatioChange,
			&s.ETHRatioChange,
			&s.Timestamp,
		); err != nil {
			return nil, err
		}
		if len(signals) > 0 {
			if err := json.Unmarshal(signals, &s.Signals); err != nil {
				return nil, fmt.Errorf("decode signals: %w", err)
			}
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}
