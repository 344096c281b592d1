package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"simtrader-backend/internal/domain"
)

func testAccount(name string) *domain.SimAccount {
	now := time.Now()
	return &domain.SimAccount{
		AccountName:    name,
		InitialBalance: 1000,
		CurrentBalance: 1000,
		TotalEquity:    1000,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMemoryStoreAccountCRUD(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	account := testAccount("a")
	if err := store.Accounts().Create(ctx, account); err != nil {
		t.Fatal(err)
	}
	if account.ID == 0 {
		t.Fatal("create must assign an id")
	}

	got, err := store.Accounts().GetByID(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AccountName != "a" {
		t.Errorf("name = %q", got.AccountName)
	}

	// Mutating the returned copy must not leak into the store.
	got.CurrentBalance = 0
	again, _ := store.Accounts().GetByID(ctx, account.ID)
	if again.CurrentBalance != 1000 {
		t.Error("repository returned a live reference instead of a copy")
	}

	if _, err := store.Accounts().GetByID(ctx, 999); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}

	if err := store.Accounts().Delete(ctx, account.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Accounts().GetByID(ctx, account.ID); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Error("deleted account still readable")
	}
}

func TestMemoryStoreWithinTxRollsBack(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	account := testAccount("a")
	if err := store.Accounts().Create(ctx, account); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(st domain.Store) error {
		a, err := st.Accounts().GetByID(ctx, account.ID)
		if err != nil {
			return err
		}
		a.CurrentBalance = 0
		if err := st.Accounts().Update(ctx, a); err != nil {
			return err
		}
		if err := st.Positions().Create(ctx, &domain.SimPosition{
			AccountID: account.ID,
			Symbol:    "AAAUSDT",
			Status:    domain.PositionOpen,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the inner error, got %v", err)
	}

	got, _ := store.Accounts().GetByID(ctx, account.ID)
	if got.CurrentBalance != 1000 {
		t.Errorf("account write survived the rollback: %v", got.CurrentBalance)
	}
	open, _ := store.Positions().GetOpenByAccount(ctx, account.ID)
	if len(open) != 0 {
		t.Errorf("position write survived the rollback: %d", len(open))
	}
}

func TestMemoryStoreWithinTxCommits(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	account := testAccount("a")
	if err := store.Accounts().Create(ctx, account); err != nil {
		t.Fatal(err)
	}

	err := store.WithinTx(ctx, func(st domain.Store) error {
		a, err := st.Accounts().GetByID(ctx, account.ID)
		if err != nil {
			return err
		}
		a.CurrentBalance = 500
		return st.Accounts().Update(ctx, a)
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := store.Accounts().GetByID(ctx, account.ID)
	if got.CurrentBalance != 500 {
		t.Errorf("committed write lost: %v", got.CurrentBalance)
	}
}

func TestMemoryStoreOpenBySymbol(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	account := testAccount("a")
	store.Accounts().Create(ctx, account)

	open := &domain.SimPosition{AccountID: account.ID, Symbol: "AAAUSDT", Status: domain.PositionOpen}
	store.Positions().Create(ctx, open)
	now := time.Now()
	closed := &domain.SimPosition{AccountID: account.ID, Symbol: "BBBUSDT", Status: domain.PositionClosed, ClosedAt: &now}
	store.Positions().Create(ctx, closed)

	got, err := store.Positions().GetOpenBySymbol(ctx, account.ID, "AAAUSDT")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != open.ID {
		t.Errorf("got position %d, want %d", got.ID, open.ID)
	}

	if _, err := store.Positions().GetOpenBySymbol(ctx, account.ID, "BBBUSDT"); !errors.Is(err, domain.ErrPositionNotFound) {
		t.Error("closed positions must not match the open lookup")
	}
}

func TestMemoryStorePositionHistoryOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	account := testAccount("a")
	store.Accounts().Create(ctx, account)

	for i := 0; i < 3; i++ {
		at := time.Now().Add(time.Duration(i) * time.Hour)
		store.Positions().Create(ctx, &domain.SimPosition{
			AccountID: account.ID,
			Symbol:    "AAAUSDT",
			Status:    domain.PositionClosed,
			ClosedAt:  &at,
		})
	}

	history, err := store.Positions().History(ctx, account.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("limit ignored, got %d", len(history))
	}
	if !history[0].ClosedAt.After(*history[1].ClosedAt) {
		t.Error("history must be newest first")
	}
}

func TestMemoryStoreTradeAndLogOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	account := testAccount("a")
	store.Accounts().Create(ctx, account)

	for i := 0; i < 3; i++ {
		store.Trades().Create(ctx, &domain.SimTrade{AccountID: account.ID, Symbol: "AAAUSDT"})
		store.AutoTradeLogs().Create(ctx, &domain.AutoTradeLogEntry{AccountID: account.ID, Action: domain.ActionSkip})
	}

	trades, _ := store.Trades().ListByAccount(ctx, account.ID, 2)
	if len(trades) != 2 {
		t.Fatalf("trade limit ignored, got %d", len(trades))
	}
	if trades[0].ID <= trades[1].ID {
		t.Error("trades must be newest first")
	}

	logs, _ := store.AutoTradeLogs().ListByAccount(ctx, account.ID, 10)
	if len(logs) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(logs))
	}
	if logs[0].ID <= logs[1].ID {
		t.Error("logs must be newest first")
	}
}

func TestInMemoryScreenerRepository(t *testing.T) {
	repo := NewInMemoryScreenerRepository()
	ctx := context.Background()

	repo.SaveScores(ctx, []domain.ScoreRecord{
		{Symbol: "AAAUSDT", Timeframe: "15m", TotalScore: 90},
		{Symbol: "BBBUSDT", Timeframe: "15m", TotalScore: 60},
		{Symbol: "AAAUSDT", Timeframe: "1h", TotalScore: 80},
	})

	all, err := repo.LatestScores(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(all))
	}

	cands, err := repo.Candidates(ctx, "15m", 70)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 || cands[0].Symbol != "AAAUSDT" {
		t.Errorf("expected only AAAUSDT 15m above 70, got %+v", cands)
	}

	// A new cycle replaces the previous one wholesale.
	repo.SaveScores(ctx, []domain.ScoreRecord{{Symbol: "CCCUSDT", Timeframe: "15m", TotalScore: 75}})
	all, _ = repo.LatestScores(ctx)
	if len(all) != 1 || all[0].Symbol != "CCCUSDT" {
		t.Errorf("old cycle leaked into the new one: %+v", all)
	}
}
