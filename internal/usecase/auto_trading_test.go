package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"simtrader-backend/internal/domain"
	"simtrader-backend/internal/repository"
)

func newTestAutoTrade(t *testing.T, market *fakeMarket) (*AutoTradeService, *SimTradingService, *repository.MemoryStore, *repository.InMemoryScreenerRepository) {
	t.Helper()
	store := repository.NewMemoryStore()
	scores := repository.NewInMemoryScreenerRepository()
	trading := NewSimTradingService(store, market, nil)
	auto := NewAutoTradeService(store, market, scores, trading, nil)
	return auto, trading, store, scores
}

func autoConfig() domain.AccountConfig {
	cfg := fixedConfig()
	cfg.AutoTradingEnabled = true
	return cfg
}

func candidate(symbol string, price, total, technical float64) domain.ScoreRecord {
	return domain.ScoreRecord{
		Symbol:         symbol,
		Timeframe:      "15m",
		CurrentPrice:   price,
		TotalScore:     total,
		TechnicalScore: technical,
	}
}

func TestRunScanOpensBestCandidatesFirst(t *testing.T) {
	auto, trading, store, scores := newTestAutoTrade(t, &fakeMarket{})
	ctx := context.Background()

	cfg := autoConfig()
	cfg.MaxPositions = 2
	account, err := trading.CreateAccount(ctx, "auto", 10000, cfg)
	if err != nil {
		t.Fatal(err)
	}

	scores.SaveScores(ctx, []domain.ScoreRecord{
		candidate("LOWUSDT", 10, 72, 60),
		candidate("TOPUSDT", 10, 95, 80),
		candidate("MIDUSDT", 10, 85, 70),
		candidate("BADUSDT", 10, 50, 80), // below the total threshold
	})

	result, err := auto.RunScan(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.PositionsOpened) != 2 {
		t.Fatalf("expected 2 opens, got %v", result.PositionsOpened)
	}
	if result.PositionsOpened[0] != "TOPUSDT" || result.PositionsOpened[1] != "MIDUSDT" {
		t.Errorf("expected best-score-first order, got %v", result.PositionsOpened)
	}
	if result.ScanID == "" {
		t.Error("scan id must be set")
	}

	open, err := store.Positions().GetOpenByAccount(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 2 {
		t.Errorf("expected 2 open positions, got %d", len(open))
	}

	// Every open decision carries its scoring snapshot in the audit log.
	entries, err := store.AutoTradeLogs().ListByAccount(ctx, account.ID, 50)
	if err != nil {
		t.Fatal(err)
	}
	opens := 0
	for _, e := range entries {
		if e.Action == domain.ActionOpenPosition && e.Success {
			opens++
			if e.ScreeningData == nil {
				t.Errorf("open entry for %s missing screening snapshot", e.Symbol)
			}
			if e.ScanID != result.ScanID {
				t.Errorf("log entry scan id %q != %q", e.ScanID, result.ScanID)
			}
		}
	}
	if opens != 2 {
		t.Errorf("expected 2 OPEN_POSITION log entries, got %d", opens)
	}
}

func TestRunScanRespectsEntryGates(t *testing.T) {
	auto, trading, _, scores := newTestAutoTrade(t, &fakeMarket{})
	ctx := context.Background()

	cfg := autoConfig()
	cfg.RequireMACDGolden = true
	account, err := trading.CreateAccount(ctx, "auto", 10000, cfg)
	if err != nil {
		t.Fatal(err)
	}

	noCross := candidate("AAAUSDT", 10, 90, 80)
	withCross := candidate("BBBUSDT", 10, 90, 80)
	withCross.Signals.MACDGoldenCross = true
	scores.SaveScores(ctx, []domain.ScoreRecord{noCross, withCross})

	result, err := auto.RunScan(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.PositionsOpened) != 1 || result.PositionsOpened[0] != "BBBUSDT" {
		t.Errorf("expected only BBBUSDT to open, got %v", result.PositionsOpened)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "AAAUSDT" {
		t.Errorf("expected AAAUSDT skipped, got %v", result.Skipped)
	}
}

func TestRunScanDisabledAccountOnlyLogsSkip(t *testing.T) {
	auto, trading, store, scores := newTestAutoTrade(t, &fakeMarket{})
	ctx := context.Background()

	cfg := autoConfig()
	cfg.AutoTradingEnabled = false
	account, err := trading.CreateAccount(ctx, "manual", 10000, cfg)
	if err != nil {
		t.Fatal(err)
	}
	scores.SaveScores(ctx, []domain.ScoreRecord{candidate("TOPUSDT", 10, 95, 80)})

	result, err := auto.RunScan(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.PositionsOpened) != 0 {
		t.Errorf("disabled account opened positions: %v", result.PositionsOpened)
	}

	entries, _ := store.AutoTradeLogs().ListByAccount(ctx, account.ID, 10)
	if len(entries) != 1 || entries[0].Action != domain.ActionSkip {
		t.Errorf("expected a single SKIP entry, got %+v", entries)
	}
}

func TestRunScanConflict(t *testing.T) {
	auto, trading, _, _ := newTestAutoTrade(t, &fakeMarket{})
	ctx := context.Background()

	account, err := trading.CreateAccount(ctx, "auto", 10000, autoConfig())
	if err != nil {
		t.Fatal(err)
	}

	lock := auto.accountLock(account.ID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := auto.RunScan(ctx, account.ID); !errors.Is(err, domain.ErrScanInProgress) {
		t.Errorf("expected ErrScanInProgress, got %v", err)
	}
}

func TestRunScanExitPassClosesStopLoss(t *testing.T) {
	market := &fakeMarket{prices: map[string]float64{"AAAUSDT": 95}}
	auto, trading, store, _ := newTestAutoTrade(t, market)
	ctx := context.Background()

	account, err := trading.CreateAccount(ctx, "auto", 10000, autoConfig())
	if err != nil {
		t.Fatal(err)
	}
	pos, err := trading.OpenPosition(ctx, account.ID, scoreFor("AAAUSDT", 100), 0)
	if err != nil {
		t.Fatal(err)
	}

	result, err := auto.RunScan(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.PositionsClosed) != 1 || result.PositionsClosed[0] != "AAAUSDT" {
		t.Errorf("expected AAAUSDT closed, got %v", result.PositionsClosed)
	}
	pos, _ = store.Positions().GetByID(ctx, pos.ID)
	if pos.IsOpen() {
		t.Error("position must be closed by the exit pass")
	}

	entries, _ := store.AutoTradeLogs().ListByAccount(ctx, account.ID, 50)
	found := false
	for _, e := range entries {
		if e.Action == domain.ActionStopLoss && e.Symbol == "AAAUSDT" {
			found = true
		}
	}
	if !found {
		t.Error("expected a STOP_LOSS log entry")
	}
}

func TestRunScanPriceFailureSkipsPosition(t *testing.T) {
	market := &fakeMarket{prices: map[string]float64{"AAAUSDT": 100}}
	auto, trading, store, _ := newTestAutoTrade(t, market)
	ctx := context.Background()

	account, err := trading.CreateAccount(ctx, "auto", 10000, autoConfig())
	if err != nil {
		t.Fatal(err)
	}
	pos, err := trading.OpenPosition(ctx, account.ID, scoreFor("AAAUSDT", 100), 0)
	if err != nil {
		t.Fatal(err)
	}

	market.priceErr = fmt.Errorf("exchange down")
	result, err := auto.RunScan(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.PositionsClosed)+len(result.PartialExits) != 0 {
		t.Error("nothing should close when the price fetch fails")
	}
	pos, _ = store.Positions().GetByID(ctx, pos.ID)
	if !pos.IsOpen() {
		t.Error("position must stay open when the price is unavailable")
	}

	entries, _ := store.AutoTradeLogs().ListByAccount(ctx, account.ID, 50)
	found := false
	for _, e := range entries {
		if e.Action == domain.ActionError && e.Symbol == "AAAUSDT" && !e.Success {
			found = true
		}
	}
	if !found {
		t.Error("expected an ERROR log entry for the failed price fetch")
	}
}

func TestRunScanEmptyCandidatesIsNoOp(t *testing.T) {
	auto, trading, _, _ := newTestAutoTrade(t, &fakeMarket{})
	ctx := context.Background()

	account, err := trading.CreateAccount(ctx, "auto", 10000, autoConfig())
	if err != nil {
		t.Fatal(err)
	}

	result, err := auto.RunScan(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.PositionsOpened)+len(result.PositionsClosed)+len(result.Skipped) != 0 {
		t.Errorf("expected a no-op scan, got %+v", result)
	}
}

func TestRunScanSkipsPositionClosedUnderneathIt(t *testing.T) {
	market := &fakeMarket{prices: map[string]float64{"AAAUSDT": 95}}
	auto, trading, store, _ := newTestAutoTrade(t, market)
	ctx := context.Background()

	account, err := trading.CreateAccount(ctx, "auto", 10000, autoConfig())
	if err != nil {
		t.Fatal(err)
	}
	pos, err := trading.OpenPosition(ctx, account.ID, scoreFor("AAAUSDT", 100), 0)
	if err != nil {
		t.Fatal(err)
	}

	// A manual close lands after the scan listed the position but before its
	// exit unit runs. The unit must see the closed state and stand down.
	closePrice := 100.0
	market.onPrice = func(string) {
		market.onPrice = nil
		if _, err := trading.ClosePosition(ctx, pos.ID, &closePrice); err != nil {
			t.Fatalf("manual close: %v", err)
		}
	}

	result, err := auto.RunScan(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.PositionsClosed)+len(result.PartialExits) != 0 {
		t.Errorf("scan acted on a position closed underneath it: %+v", result)
	}

	// Exactly the original quantity was sold, once.
	trades, err := store.Trades().ListByAccount(ctx, account.ID, 50)
	if err != nil {
		t.Fatal(err)
	}
	sold := 0.0
	for _, tr := range trades {
		if tr.Side == "SELL" {
			sold += tr.Quantity
		}
	}
	if !almostEqual(sold, pos.Quantity) {
		t.Errorf("sold %v of an original %v", sold, pos.Quantity)
	}

	acct, err := trading.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if acct.TotalTrades != 1 {
		t.Errorf("total trades = %d, want 1", acct.TotalTrades)
	}
	if !almostEqual(acct.TotalEquity, acct.CurrentBalance) {
		t.Errorf("with nothing open equity %v must equal balance %v",
			acct.TotalEquity, acct.CurrentBalance)
	}
}

// flakyStore fails the next N account writes inside transactional units.
type flakyStore struct {
	domain.Store
	failures *int
}

func (s *flakyStore) WithinTx(ctx context.Context, fn func(domain.Store) error) error {
	return s.Store.WithinTx(ctx, func(st domain.Store) error {
		return fn(&flakyStore{Store: st, failures: s.failures})
	})
}

func (s *flakyStore) Accounts() domain.AccountRepository {
	return flakyAccounts{s.Store.Accounts(), s.failures}
}

type flakyAccounts struct {
	domain.AccountRepository
	failures *int
}

func (r flakyAccounts) Update(ctx context.Context, a *domain.SimAccount) error {
	if *r.failures > 0 {
		*r.failures--
		return errors.New("account write failed")
	}
	return r.AccountRepository.Update(ctx, a)
}

func TestRunScanExitUnitRollbackLeavesLedgerClean(t *testing.T) {
	market := &fakeMarket{prices: map[string]float64{"AAAUSDT": 95, "BBBUSDT": 95}}
	failures := 0
	store := &flakyStore{Store: repository.NewMemoryStore(), failures: &failures}
	trading := NewSimTradingService(store, market, nil)
	auto := NewAutoTradeService(store, market, repository.NewInMemoryScreenerRepository(), trading, nil)
	ctx := context.Background()

	account, err := trading.CreateAccount(ctx, "auto", 10000, autoConfig())
	if err != nil {
		t.Fatal(err)
	}
	posA, err := trading.OpenPosition(ctx, account.ID, scoreFor("AAAUSDT", 100), 0)
	if err != nil {
		t.Fatal(err)
	}
	posB, err := trading.OpenPosition(ctx, account.ID, scoreFor("BBBUSDT", 100), 0)
	if err != nil {
		t.Fatal(err)
	}

	// The first position's exit unit fails on the account write and rolls
	// back; the second commits. Nothing from the failed unit may survive.
	failures = 1
	result, err := auto.RunScan(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.PositionsClosed) != 1 || result.PositionsClosed[0] != "BBBUSDT" {
		t.Errorf("expected only BBBUSDT closed, got %v", result.PositionsClosed)
	}

	posA, err = store.Positions().GetByID(ctx, posA.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !posA.IsOpen() {
		t.Error("rolled-back unit must leave its position open")
	}
	posB, _ = store.Positions().GetByID(ctx, posB.ID)
	if posB.IsOpen() {
		t.Error("second unit must still commit its close")
	}

	// 10000 - 2x200 notional + 2x95 proceeds from B only.
	acct, err := trading.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(acct.CurrentBalance, 9790) {
		t.Errorf("balance = %v, want 9790 without the rolled-back credit", acct.CurrentBalance)
	}
	held := posA.RemainingQuantity * posA.EntryPrice
	if !almostEqual(acct.TotalEquity, acct.CurrentBalance+held) {
		t.Errorf("equity %v != balance %v + held %v", acct.TotalEquity, acct.CurrentBalance, held)
	}
}

func TestRunScanATRModeUsesMarketATR(t *testing.T) {
	market := &fakeMarket{atrs: map[string]float64{"AAAUSDT": 4}}
	auto, trading, store, scores := newTestAutoTrade(t, market)
	ctx := context.Background()

	cfg := autoConfig()
	cfg.ExitMode = domain.ExitModeATR
	cfg.ATRStopMultiplier = 2
	cfg.HardStopPct = 5
	cfg.ATRTPMultipliers = []float64{1, 2}
	account, err := trading.CreateAccount(ctx, "auto", 10000, cfg)
	if err != nil {
		t.Fatal(err)
	}
	scores.SaveScores(ctx, []domain.ScoreRecord{candidate("AAAUSDT", 100, 90, 80)})

	result, err := auto.RunScan(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.PositionsOpened) != 1 {
		t.Fatalf("expected one open, got %v", result.PositionsOpened)
	}

	open, _ := store.Positions().GetOpenByAccount(ctx, account.ID)
	// 2 x ATR4 would stop at 92; the 5% hard floor at 95 is tighter.
	if !almostEqual(open[0].StopLossPrice, 95) {
		t.Errorf("stop loss = %v, want 95", open[0].StopLossPrice)
	}
	if !almostEqual(open[0].TakeProfits[0].Price, 104) {
		t.Errorf("tp1 = %v, want 104", open[0].TakeProfits[0].Price)
	}
}
