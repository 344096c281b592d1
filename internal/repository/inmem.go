package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"simtrader-backend/internal/domain"
)

// MemoryStore is the in-memory persistence backend, used when no database is
// configured and throughout the tests. Every call works on deep copies so a
// caller mutating a returned record cannot bypass Update. WithinTx snapshots
// the whole state and restores it when fn fails.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

var _ domain.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData()}
}

func (s *MemoryStore) Accounts() domain.AccountRepository   { return lockedAccounts{s} }
func (s *MemoryStore) Positions() domain.PositionRepository { return lockedPositions{s} }
func (s *MemoryStore) Trades() domain.TradeRepository       { return lockedTrades{s} }
func (s *MemoryStore) AutoTradeLogs() domain.AutoTradeLogRepository {
	return lockedLogs{s}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(domain.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&txView{s.data}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// txView exposes the already-locked state to the transaction closure. A
// nested WithinTx joins the enclosing transaction.
type txView struct {
	data *memData
}

var _ domain.Store = (*txView)(nil)

func (v *txView) Accounts() domain.AccountRepository           { return memAccounts{v.data} }
func (v *txView) Positions() domain.PositionRepository         { return memPositions{v.data} }
func (v *txView) Trades() domain.TradeRepository               { return memTrades{v.data} }
func (v *txView) AutoTradeLogs() domain.AutoTradeLogRepository { return memLogs{v.data} }
func (v *txView) WithinTx(ctx context.Context, fn func(domain.Store) error) error {
	return fn(v)
}

// ==================== state ====================

type memData struct {
	accounts  map[int64]*domain.SimAccount
	positions map[int64]*domain.SimPosition
	trades    []*domain.SimTrade
	logs      []*domain.AutoTradeLogEntry

	accountSeq  int64
	positionSeq int64
	tradeSeq    int64
	logSeq      int64
}

func newMemData() *memData {
	return &memData{
		accounts:  make(map[int64]*domain.SimAccount),
		positions: make(map[int64]*domain.SimPosition),
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		accounts:    make(map[int64]*domain.SimAccount, len(d.accounts)),
		positions:   make(map[int64]*domain.SimPosition, len(d.positions)),
		trades:      append([]*domain.SimTrade(nil), d.trades...),
		logs:        append([]*domain.AutoTradeLogEntry(nil), d.logs...),
		accountSeq:  d.accountSeq,
		positionSeq: d.positionSeq,
		tradeSeq:    d.tradeSeq,
		logSeq:      d.logSeq,
	}
	for id, a := range d.accounts {
		c.accounts[id] = cloneAccount(a)
	}
	for id, p := range d.positions {
		c.positions[id] = clonePosition(p)
	}
	return c
}

func cloneAccount(a *domain.SimAccount) *domain.SimAccount {
	c := *a
	c.Config.TakeProfitLevels = append([]float64(nil), a.Config.TakeProfitLevels...)
	c.Config.ATRTPMultipliers = append([]float64(nil), a.Config.ATRTPMultipliers...)
	return &c
}

func clonePosition(p *domain.SimPosition) *domain.SimPosition {
	c := *p
	c.TakeProfits = append([]domain.TakeProfitLevel(nil), p.TakeProfits...)
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

// ==================== accounts ====================

type memAccounts struct{ d *memData }

func (r memAccounts) Create(ctx context.Context, account *domain.SimAccount) error {
	r.d.accountSeq++
	account.ID = r.d.accountSeq
	r.d.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (r memAccounts) GetByID(ctx context.Context, id int64) (*domain.SimAccount, error) {
	a, ok := r.d.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (r memAccounts) GetAll(ctx context.Context) ([]*domain.SimAccount, error) {
	out := make([]*domain.SimAccount, 0, len(r.d.accounts))
	for _, a := range r.d.accounts {
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memAccounts) Update(ctx context.Context, account *domain.SimAccount) error {
	if _, ok := r.d.accounts[account.ID]; !ok {
		return domain.ErrAccountNotFound
	}
	r.d.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (r memAccounts) Delete(ctx context.Context, id int64) error {
	if _, ok := r.d.accounts[id]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(r.d.accounts, id)
	for pid, p := range r.d.positions {
		if p.AccountID == id {
			delete(r.d.positions, pid)
		}
	}
	return nil
}

// ==================== positions ====================

type memPositions struct{ d *memData }

func (r memPositions) Create(ctx context.Context, position *domain.SimPosition) error {
	r.d.positionSeq++
	position.ID = r.d.positionSeq
	r.d.positions[position.ID] = clonePosition(position)
	return nil
}

func (r memPositions) GetByID(ctx context.Context, id int64) (*domain.SimPosition, error) {
	p, ok := r.d.positions[id]
	if !ok {
		return nil, domain.ErrPositionNotFound
	}
	return clonePosition(p), nil
}

func (r memPositions) GetOpenByAccount(ctx context.Context, accountID int64) ([]*domain.SimPosition, error) {
	var out []*domain.SimPosition
	for _, p := range r.d.positions {
		if p.AccountID == accountID && p.Status == domain.PositionOpen {
			out = append(out, clonePosition(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memPositions) GetOpenBySymbol(ctx context.Context, accountID int64, symbol string) (*domain.SimPosition, error) {
	for _, p := range r.d.positions {
		if p.AccountID == accountID && p.Symbol == symbol && p.Status == domain.PositionOpen {
			return clonePosition(p), nil
		}
	}
	return nil, domain.ErrPositionNotFound
}

func (r memPositions) Update(ctx context.Context, position *domain.SimPosition) error {
	if _, ok := r.d.positions[position.ID]; !ok {
		return domain.ErrPositionNotFound
	}
	r.d.positions[position.ID] = clonePosition(position)
	return nil
}

func (r memPositions) History(ctx context.Context, accountID int64, limit int) ([]*domain.SimPosition, error) {
	var out []*domain.SimPosition
	for _, p := range r.d.positions {
		if p.AccountID == accountID && p.Status == domain.PositionClosed {
			out = append(out, clonePosition(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return closedAt(out[i]).After(closedAt(out[j]))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func closedAt(p *domain.SimPosition) time.Time {
	if p.ClosedAt != nil {
		return *p.ClosedAt
	}
	return time.Time{}
}

// ==================== trades ====================

type memTrades struct{ d *memData }

func (r memTrades) Create(ctx context.Context, trade *domain.SimTrade) error {
	r.d.tradeSeq++
	trade.ID = r.d.tradeSeq
	copied := *trade
	r.d.trades = append(r.d.trades, &copied)
	return nil
}

func (r memTrades) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*domain.SimTrade, error) {
	var out []*domain.SimTrade
	for i := len(r.d.trades) - 1; i >= 0; i-- {
		t := r.d.trades[i]
		if t.AccountID != accountID {
			continue
		}
		copied := *t
		out = append(out, &copied)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ==================== auto-trade logs ====================

type memLogs struct{ d *memData }

func (r memLogs) Create(ctx context.Context, entry *domain.AutoTradeLogEntry) error {
	r.d.logSeq++
	entry.ID = r.d.logSeq
	copied := *entry
	r.d.logs = append(r.d.logs, &copied)
	return nil
}

func (r memLogs) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*domain.AutoTradeLogEntry, error) {
	var out []*domain.AutoTradeLogEntry
	for i := len(r.d.logs) - 1; i >= 0; i-- {
		e := r.d.logs[i]
		if e.AccountID != accountID {
			continue
		}
		copied := *e
		out = append(out, &copied)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ==================== locked wrappers ====================

type lockedAccounts struct{ s *MemoryStore }

func (r lockedAccounts) Create(ctx context.Context, a *domain.SimAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return memAccounts{r.s.data}.Create(ctx, a)
}

func (r lockedAccounts) GetByID(ctx context.Context, id int64) (*domain.SimAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return memAccounts{r.s.data}.GetByID(ctx, id)
}

func (r lockedAccounts) GetAll(ctx context.Context) ([]*domain.SimAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return memAccounts{r.s.data}.GetAll(ctx)
}

func (r lockedAccounts) Update(ctx context.Context, a *domain.SimAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return memAccounts{r.s.data}.Update(ctx, a)
}

func (r lockedAccounts) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return memAccounts{r.s.data}.Delete(ctx, id)
}

type lockedPositions struct{ s *MemoryStore }

func (r lockedPositions) Create(ctx context.Context, p *domain.SimPosition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return memPositions{r.s.data}.Create(ctx, p)
}

func (r lockedPositions) GetByID(ctx context.Context, id int64) (*domain.SimPosition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return memPositions{r.s.data}.GetByID(ctx, id)
}

func (r lockedPositions) GetOpenByAccount(ctx context.Context, accountID int64) ([]*domain.SimPosition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return memPositions{r.s.data}.GetOpenByAccount(ctx, accountID)
}

func (r lockedPositions) GetOpenBySymbol(ctx context.Context, accountID int64, symbol string) (*domain.SimPosition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return memPositions{r.s.data}.GetOpenBySymbol(ctx, accountID, symbol)
}

func (r lockedPositions) Update(ctx context.Context, p *domain.SimPosition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return memPositions{r.s.data}.Update(ctx, p)
}

func (r lockedPositions) History(ctx context.Context, accountID int64, limit int) ([]*domain.SimPosition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return memPositions{r.s.data}.History(ctx, accountID, limit)
}

type lockedTrades struct{ s *MemoryStore }

func (r lockedTrades) Create(ctx context.Context, t *domain.SimTrade) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return memTrades{r.s.data}.Create(ctx, t)
}

func (r lockedTrades) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*domain.SimTrade, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return memTrades{r.s.data}.ListByAccount(ctx, accountID, limit)
}

type lockedLogs struct{ s *MemoryStore }

func (r lockedLogs) Create(ctx context.Context, e *domain.AutoTradeLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return memLogs{r.s.data}.Create(ctx, e)
}

func (r lockedLogs) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*domain.AutoTradeLogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return memLogs{r.s.data}.ListByAccount(ctx, accountID, limit)
}
