package usecase

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"simtrader-backend/internal/domain"
)

// AutoTradeService orchestrates one scan per account: exits on existing
// positions first, then new entries from scored candidates. Scans for the
// same account are mutually exclusive; different accounts run independently.
type AutoTradeService struct {
	store    domain.Store
	market   domain.MarketData
	scores   domain.ScreenerRepository
	trading  *SimTradingService
	notifier domain.Notifier

	mu    sync.Mutex
	locks map[int64]*sync.Mutex

	now func() time.Time
}

func NewAutoTradeService(store domain.Store, market domain.MarketData, scores domain.ScreenerRepository, trading *SimTradingService, notifier domain.Notifier) *AutoTradeService {
	return &AutoTradeService{
		store:    store,
		market:   market,
		scores:   scores,
		trading:  trading,
		notifier: notifier,
		locks:    make(map[int64]*sync.Mutex),
		now:      time.Now,
	}
}

// accountLock returns the mutex serializing scans for one account.
func (s *AutoTradeService) accountLock(accountID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[accountID] = l
	}
	return l
}

// Run drives scheduled scans until the context is cancelled. Manual triggers
// call RunScan directly and go through the exact same routine.
func (s *AutoTradeService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("auto-trade scheduler started, interval %v", interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("auto-trade scheduler stopped")
			return
		case <-ticker.C:
			s.scanAll(ctx)
		}
	}
}

func (s *AutoTradeService) scanAll(ctx context.Context) {
	accounts, err := s.store.Accounts().GetAll(ctx)
	if err != nil {
		log.Printf("auto-trade: list accounts: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, account := range accounts {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := s.RunScan(ctx, id); err != nil {
				if err == domain.ErrScanInProgress {
					log.Printf("auto-trade: account %d scan still running, skipping tick", id)
					return
				}
				log.Printf("auto-trade: account %d scan: %v", id, err)
			}
		}(account.ID)
	}
	wg.Wait()
}

// RunScan executes one full scan for the account: exit pass, then entry
// pass. Returns ErrScanInProgress when a scan already holds the account lock.
func (s *AutoTradeService) RunScan(ctx context.Context, accountID int64) (*domain.ScanResult, error) {
	lock := s.accountLock(accountID)
	if !lock.TryLock() {
		return nil, domain.ErrScanInProgress
	}
	defer lock.Unlock()

	account, err := s.store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	result := &domain.ScanResult{
		ScanID:    uuid.NewString(),
		AccountID: accountID,
		StartedAt: s.now(),
	}

	s.exitPass(ctx, account, result)

	// Exit units commit their own account mutations; reload so the entry pass
	// sizes against the settled balance.
	if updated, err := s.store.Accounts().GetByID(ctx, accountID); err == nil {
		account = updated
	}
	s.entryPass(ctx, account, result)

	result.FinishedAt = s.now()
	return result, nil
}

// exitPass evaluates every open position against a fresh price. A fetch
// failure for one symbol is logged and skipped; the pass continues.
func (s *AutoTradeService) exitPass(ctx context.Context, account *domain.SimAccount, result *domain.ScanResult) {
	positions, err := s.store.Positions().GetOpenByAccount(ctx, account.ID)
	if err != nil {
		s.appendLog(ctx, result, logEntry(account.ID, result.ScanID, domain.ActionError, "", 0, nil,
			"failed to load open positions", false, err.Error()))
		return
	}

	for _, position := range positions {
		price, err := s.market.GetPrice(ctx, position.Symbol)
		if err != nil {
			s.appendLog(ctx, result, logEntry(account.ID, result.ScanID, domain.ActionError, position.Symbol, 0, nil,
				"price fetch failed, position skipped this tick", false, err.Error()))
			continue
		}

		var actions []ExitAction
		err = s.store.WithinTx(ctx, func(st domain.Store) error {
			// The listing above is a snapshot; a manual close can land before
			// this unit runs. Work only on state re-read inside the
			// transaction, and skip the position if it is no longer open.
			fresh, txErr := st.Positions().GetByID(ctx, position.ID)
			if txErr != nil {
				if errors.Is(txErr, domain.ErrPositionNotFound) {
					return nil
				}
				return txErr
			}
			if !fresh.IsOpen() {
				return nil
			}
			acct, txErr := st.Accounts().GetByID(ctx, account.ID)
			if txErr != nil {
				return txErr
			}
			actions, txErr = s.trading.EvaluateExits(ctx, st, acct, fresh, price)
			if txErr != nil {
				return txErr
			}
			for _, act := range actions {
				if logErr := st.AutoTradeLogs().Create(ctx, exitLogEntry(account.ID, result.ScanID, position.Symbol, act, s.now())); logErr != nil {
					return logErr
				}
			}
			return nil
		})
		if err != nil {
			s.appendLog(ctx, result, logEntry(account.ID, result.ScanID, domain.ActionError, position.Symbol, 0, nil,
				"exit evaluation failed", false, err.Error()))
			continue
		}

		for _, act := range actions {
			switch {
			case act.Terminal:
				result.PositionsClosed = append(result.PositionsClosed, position.Symbol)
			default:
				result.PartialExits = append(result.PartialExits, position.Symbol)
			}
			s.notify(domain.TradeEvent{
				Type:      act.TradeType,
				AccountID: account.ID,
				Symbol:    position.Symbol,
				Price:     act.Price,
				Quantity:  act.Quantity,
				PnL:       act.PnL,
				PnLPct:    act.PnLPct,
				Reason:    act.Reason,
			})
		}
	}
}

// entryGate is one conjunctive predicate over the account config and a
// candidate score. Adding a gate means appending here, not touching the
// controller flow.
type entryGate func(cfg domain.AccountConfig, rec domain.ScoreRecord) (bool, string)

var entryGates = []entryGate{
	func(cfg domain.AccountConfig, rec domain.ScoreRecord) (bool, string) {
		if rec.TotalScore < cfg.EntryScoreMin {
			return false, "total score below threshold"
		}
		return true, ""
	},
	func(cfg domain.AccountConfig, rec domain.ScoreRecord) (bool, string) {
		if rec.TechnicalScore < cfg.EntryTechnicalMin {
			return false, "technical score below threshold"
		}
		return true, ""
	},
	func(cfg domain.AccountConfig, rec domain.ScoreRecord) (bool, string) {
		if cfg.RequireMACDGolden && !rec.Signals.MACDGoldenCross {
			return false, "missing MACD golden cross"
		}
		return true, ""
	},
	func(cfg domain.AccountConfig, rec domain.ScoreRecord) (bool, string) {
		if cfg.RequireVolSurge && !rec.Signals.VolumeSurge {
			return false, "missing volume surge"
		}
		return true, ""
	},
}

// entryPass opens positions from qualifying candidates in descending score
// order until max positions is reached.
func (s *AutoTradeService) entryPass(ctx context.Context, account *domain.SimAccount, result *domain.ScanResult) {
	cfg := account.Config
	if !cfg.AutoTradingEnabled {
		s.appendLog(ctx, result, logEntry(account.ID, result.ScanID, domain.ActionSkip, "", 0, nil,
			"auto trading disabled", true, ""))
		return
	}

	open, err := s.store.Positions().GetOpenByAccount(ctx, account.ID)
	if err != nil {
		s.appendLog(ctx, result, logEntry(account.ID, result.ScanID, domain.ActionError, "", 0, nil,
			"failed to load open positions", false, err.Error()))
		return
	}
	openCount := len(open)
	if openCount >= cfg.MaxPositions {
		s.appendLog(ctx, result, logEntry(account.ID, result.ScanID, domain.ActionSkip, "", 0, nil,
			"max positions reached", true, ""))
		return
	}

	heldSymbols := make(map[string]bool, len(open))
	for _, p := range open {
		heldSymbols[p.Symbol] = true
	}

	candidates, err := s.scores.Candidates(ctx, cfg.EntryTimeframe, 0)
	if err != nil {
		s.appendLog(ctx, result, logEntry(account.ID, result.ScanID, domain.ActionError, "", 0, nil,
			"failed to load candidates", false, err.Error()))
		return
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].TotalScore > candidates[j].TotalScore
	})

	for _, rec := range candidates {
		if openCount >= cfg.MaxPositions {
			break
		}
		rec := rec

		if reason, ok := s.rejectCandidate(account, rec, heldSymbols); !ok {
			result.Skipped = append(result.Skipped, rec.Symbol)
			s.appendLog(ctx, result, logEntry(account.ID, result.ScanID, domain.ActionSkip, rec.Symbol, rec.TotalScore, &rec,
				reason, true, ""))
			continue
		}

		atr := 0.0
		if cfg.ExitMode == domain.ExitModeATR {
			atr, err = s.market.GetATR(ctx, rec.Symbol, cfg.EntryTimeframe)
			if err != nil || atr <= 0 {
				msg := "ATR unavailable"
				if err != nil {
					msg = err.Error()
				}
				s.appendLog(ctx, result, logEntry(account.ID, result.ScanID, domain.ActionError, rec.Symbol, rec.TotalScore, &rec,
					"ATR fetch failed, candidate skipped", false, msg))
				continue
			}
		}

		position, err := s.trading.OpenPosition(ctx, account.ID, rec, atr)
		if err != nil {
			result.Skipped = append(result.Skipped, rec.Symbol)
			s.appendLog(ctx, result, logEntry(account.ID, result.ScanID, domain.ActionOpenPosition, rec.Symbol, rec.TotalScore, &rec,
				"open failed", false, err.Error()))
			continue
		}

		// OpenPosition reloaded the account inside its transaction; refresh
		// our copy so later balance checks see the debit.
		if updated, loadErr := s.store.Accounts().GetByID(ctx, account.ID); loadErr == nil {
			*account = *updated
		}

		openCount++
		heldSymbols[rec.Symbol] = true
		result.PositionsOpened = append(result.PositionsOpened, rec.Symbol)
		s.appendLog(ctx, result, logEntry(account.ID, result.ScanID, domain.ActionOpenPosition, rec.Symbol, rec.TotalScore, &rec,
			"entry criteria met", true, ""))
		s.notify(domain.TradeEvent{
			Type:      "OPEN",
			AccountID: account.ID,
			Symbol:    rec.Symbol,
			Price:     position.EntryPrice,
			Quantity:  position.Quantity,
			Score:     rec.TotalScore,
			Reason:    "entry criteria met",
		})
	}
}

// rejectCandidate runs the gate predicates plus the structural exclusions.
func (s *AutoTradeService) rejectCandidate(account *domain.SimAccount, rec domain.ScoreRecord, held map[string]bool) (string, bool) {
	for _, gate := range entryGates {
		if ok, reason := gate(account.Config, rec); !ok {
			return reason, false
		}
	}
	if held[rec.Symbol] {
		return "already holds position", false
	}
	notional := account.TotalEquity * account.Config.PositionSizePct / 100
	if notional > account.CurrentBalance {
		return "insufficient balance", false
	}
	return "", true
}

func (s *AutoTradeService) appendLog(ctx context.Context, result *domain.ScanResult, entry *domain.AutoTradeLogEntry) {
	if err := s.store.AutoTradeLogs().Create(ctx, entry); err != nil {
		log.Printf("auto-trade: write log entry: %v", err)
	}
	result.Entries = append(result.Entries, *entry)
}

func (s *AutoTradeService) notify(event domain.TradeEvent) {
	if s.notifier == nil {
		return
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

func logEntry(accountID int64, scanID, action, symbol string, score float64, data *domain.ScoreRecord, reason string, success bool, errMsg string) *domain.AutoTradeLogEntry {
	return &domain.AutoTradeLogEntry{
		AccountID:      accountID,
		ScanID:         scanID,
		Action:         action,
		Symbol:         symbol,
		ScreeningScore: score,
		Reason:         reason,
		Success:        success,
		ErrorMessage:   errMsg,
		ScreeningData:  data,
		Timestamp:      time.Now(),
	}
}

func exitLogEntry(accountID int64, scanID, symbol string, act ExitAction, at time.Time) *domain.AutoTradeLogEntry {
	action := domain.ActionPartialExit
	switch act.TradeType {
	case domain.TradeStopLoss:
		action = domain.ActionStopLoss
	case domain.TradeTakeProfit:
		action = domain.ActionTakeProfit
	case domain.TradeFullExit:
		action = domain.ActionClosePosition
	}
	return &domain.AutoTradeLogEntry{
		AccountID: accountID,
		ScanID:    scanID,
		Action:    action,
		Symbol:    symbol,
		Reason:    act.Reason,
		Success:   true,
		Timestamp: at,
	}
}
