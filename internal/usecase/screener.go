package usecase

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"simtrader-backend/internal/config"
	"simtrader-backend/internal/domain"
	"simtrader-backend/internal/infrastructure/binance"
)

const (
	highScoreThreshold = 80
	notifyCooldown     = 30 * time.Minute
)

// ScreenerService scans the market on an interval, scores every liquid
// symbol across the configured timeframes, and persists the results for the
// API and the auto-trade controller.
type ScreenerService struct {
	repo          domain.ScreenerRepository
	client        *binance.Client
	notifier      domain.Notifier
	cfg           config.ScreenerConfig
	notifiedCoins map[string]time.Time
	mu            sync.Mutex
}

func NewScreenerService(repo domain.ScreenerRepository, client *binance.Client, notifier domain.Notifier, cfg config.ScreenerConfig) *ScreenerService {
	return &ScreenerService{
		repo:          repo,
		client:        client,
		notifier:      notifier,
		cfg:           cfg,
		notifiedCoins: make(map[string]time.Time),
	}
}

// Run starts the screening loop until the context is cancelled.
func (s *ScreenerService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial run
	s.Process(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("screener stopped")
			return
		case <-ticker.C:
			s.Process(ctx)
		}
	}
}

// Process executes one full screening cycle.
func (s *ScreenerService) Process(ctx context.Context) {
	start := time.Now()
	log.Println("Starting screening cycle...")

	symbols, err := s.client.GetActiveTradingSymbols(ctx)
	if err != nil {
		log.Printf("Error getting symbols: %v", err)
		return
	}

	tickers, err := s.client.Get24hrTickers(ctx)
	if err != nil {
		log.Printf("Error getting tickers: %v", err)
		return
	}
	tickerMap := make(map[string]binance.Ticker24h, len(tickers))
	for _, t := range tickers {
		tickerMap[t.Symbol] = t
	}

	// Pre-filter by 24h quote volume so illiquid pairs never burn kline
	// requests.
	var targetSymbols []string
	for _, sym := range symbols {
		t, ok := tickerMap[sym]
		if !ok || t.QuoteVolumeFloat() < s.cfg.MinVolume {
			continue
		}
		targetSymbols = append(targetSymbols, sym)
	}
	log.Printf("Screening %d of %d active symbols", len(targetSymbols), len(symbols))

	// BTC and ETH reference series are shared by every symbol's beta score,
	// fetched once per timeframe per cycle.
	refCloses := make(map[string]referencePair, len(s.cfg.Timeframes))
	for _, tf := range s.cfg.Timeframes {
		btc, err := s.fetchCloses(ctx, "BTCUSDT", tf)
		if err != nil {
			log.Printf("Error getting BTC reference klines (%s): %v", tf, err)
			continue
		}
		eth, err := s.fetchCloses(ctx, "ETHUSDT", tf)
		if err != nil {
			log.Printf("Error getting ETH reference klines (%s): %v", tf, err)
			continue
		}
		refCloses[tf] = referencePair{btc: btc, eth: eth}
	}

	var (
		scores []domain.ScoreRecord
		wg     sync.WaitGroup
		mu     sync.Mutex
	)
	sem := make(chan struct{}, s.cfg.Concurrency)

	for _, sym := range targetSymbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			for _, tf := range s.cfg.Timeframes {
				ref, ok := refCloses[tf]
				if !ok {
					continue
				}
				rec, err := s.scoreSymbol(ctx, symbol, tf, tickerMap[symbol], ref)
				if err != nil {
					continue
				}
				mu.Lock()
				scores = append(scores, rec)
				mu.Unlock()
			}
		}(sym)
	}
	wg.Wait()

	sort.Slice(scores, func(i, j int) bool {
		return scores[i].TotalScore > scores[j].TotalScore
	})

	if err := s.repo.SaveScores(ctx, scores); err != nil {
		log.Printf("Error saving scores: %v", err)
		return
	}

	s.notifyHighScores(scores)

	log.Printf("Cycle completed in %v. Scored %d symbol/timeframe pairs.", time.Since(start), len(scores))
}

type referencePair struct {
	btc []float64
	eth []float64
}

func (s *ScreenerService) fetchCloses(ctx context.Context, symbol, timeframe string) ([]float64, error) {
	klines, err := s.client.GetKlines(ctx, symbol, timeframe, s.cfg.KlineLimit)
	if err != nil {
		return nil, err
	}
	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}
	return closes, nil
}

func (s *ScreenerService) scoreSymbol(ctx context.Context, symbol, timeframe string, ticker binance.Ticker24h, ref referencePair) (domain.ScoreRecord, error) {
	klines, err := s.client.GetKlines(ctx, symbol, timeframe, s.cfg.KlineLimit)
	if err != nil {
		return domain.ScoreRecord{}, err
	}

	in := ScoreInput{
		Symbol:    symbol,
		Timeframe: timeframe,
		Closes:    make([]float64, len(klines)),
		Highs:     make([]float64, len(klines)),
		Lows:      make([]float64, len(klines)),
		Volumes:   make([]float64, len(klines)),
		Volume24h: ticker.QuoteVolumeFloat(),
		BTCCloses: ref.btc,
		ETHCloses: ref.eth,
		Timestamp: time.Now(),
	}
	for i, k := range klines {
		in.Closes[i] = k.Close
		in.Highs[i] = k.High
		in.Lows[i] = k.Low
		in.Volumes[i] = k.Volume
	}

	return ComputeScore(in), nil
}

// notifyHighScores alerts once per symbol per cooldown window when a score
// crosses the high-score threshold.
func (s *ScreenerService) notifyHighScores(scores []domain.ScoreRecord) {
	if s.notifier == nil {
		return
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range scores {
		if rec.TotalScore < highScoreThreshold {
			break
		}
		if last, ok := s.notifiedCoins[rec.Symbol]; ok && now.Sub(last) < notifyCooldown {
			continue
		}
		s.notifiedCoins[rec.Symbol] = now

		event := domain.TradeEvent{
			Type:   "HIGH_SCORE",
			Symbol: rec.Symbol,
			Price:  rec.CurrentPrice,
			Score:  rec.TotalScore,
			Reason: "screening score " + rec.Timeframe,
		}
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("notifier panic: %v", r)
				}
			}()
			s.notifier.Notify(event)
		}()
	}

	// Drop stale cooldown entries so the map does not grow unbounded.
	for sym, last := range s.notifiedCoins {
		if now.Sub(last) > 2*notifyCooldown {
			delete(s.notifiedCoins, sym)
		}
	}
}
