package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"simtrader-backend/internal/domain"
)

// Remaining quantity below this fraction of the original size counts as zero.
const closeEpsilon = 1e-9

// SimTradingService owns the position lifecycle and the account ledger.
// All balance and equity mutations flow through it, each applied as one
// transactional unit together with its trade and log records.
type SimTradingService struct {
	store    domain.Store
	market   domain.MarketData
	notifier domain.Notifier
	now      func() time.Time
}

func NewSimTradingService(store domain.Store, market domain.MarketData, notifier domain.Notifier) *SimTradingService {
	return &SimTradingService{
		store:    store,
		market:   market,
		notifier: notifier,
		now:      time.Now,
	}
}

// ==================== Account Management ====================

// CreateAccount validates the config and creates a new simulated account.
func (s *SimTradingService) CreateAccount(ctx context.Context, name string, initialBalance float64, cfg domain.AccountConfig) (*domain.SimAccount, error) {
	if name == "" {
		return nil, fmt.Errorf("account name is required")
	}
	if initialBalance <= 0 {
		return nil, fmt.Errorf("initial balance must be positive, got %.2f", initialBalance)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid account config: %w", err)
	}

	now := s.now()
	account := &domain.SimAccount{
		AccountName:    name,
		InitialBalance: initialBalance,
		CurrentBalance: initialBalance,
		TotalEquity:    initialBalance,
		Config:         cfg,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Accounts().Create(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

func (s *SimTradingService) GetAccount(ctx context.Context, id int64) (*domain.SimAccount, error) {
	return s.store.Accounts().GetByID(ctx, id)
}

func (s *SimTradingService) ListAccounts(ctx context.Context) ([]*domain.SimAccount, error) {
	return s.store.Accounts().GetAll(ctx)
}

// UpdateAccountConfig replaces the account's config after validation.
func (s *SimTradingService) UpdateAccountConfig(ctx context.Context, id int64, cfg domain.AccountConfig) (*domain.SimAccount, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid account config: %w", err)
	}

	account, err := s.store.Accounts().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	account.Config = cfg
	account.UpdatedAt = s.now()
	if err := s.store.Accounts().Update(ctx, account); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	return account, nil
}

// SetAutoTrading toggles automated entries for the account.
func (s *SimTradingService) SetAutoTrading(ctx context.Context, id int64, enabled bool) (*domain.SimAccount, error) {
	account, err := s.store.Accounts().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	account.Config.AutoTradingEnabled = enabled
	account.UpdatedAt = s.now()
	if err := s.store.Accounts().Update(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *SimTradingService) DeleteAccount(ctx context.Context, id int64) error {
	return s.store.Accounts().Delete(ctx, id)
}

// AccountSummary aggregates ledger state and recent activity for the UI.
func (s *SimTradingService) AccountSummary(ctx context.Context, id int64) (map[string]interface{}, error) {
	account, err := s.store.Accounts().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	open, err := s.store.Positions().GetOpenByAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	trades, err := s.store.Trades().ListByAccount(ctx, id, 20)
	if err != nil {
		return nil, err
	}

	winRate := 0.0
	if account.TotalTrades > 0 {
		winRate = float64(account.WinningTrades) / float64(account.TotalTrades) * 100
	}
	totalReturn := account.TotalEquity - account.InitialBalance
	totalReturnPct := 0.0
	if account.InitialBalance > 0 {
		totalReturnPct = totalReturn / account.InitialBalance * 100
	}

	return map[string]interface{}{
		"account":          account,
		"totalReturn":      totalReturn,
		"totalReturnPct":   totalReturnPct,
		"winRate":          winRate,
		"openPositions":    open,
		"openPositionsCnt": len(open),
		"recentTrades":     trades,
	}, nil
}

// ==================== Position Lifecycle ====================

// OpenPosition sizes and opens a position for the account inside one
// transaction: position row, ENTRY trade, balance debit. The caller supplies
// the ATR when the account uses ATR exits.
func (s *SimTradingService) OpenPosition(ctx context.Context, accountID int64, rec domain.ScoreRecord, atr float64) (*domain.SimPosition, error) {
	var opened *domain.SimPosition

	err := s.store.WithinTx(ctx, func(st domain.Store) error {
		account, err := st.Accounts().GetByID(ctx, accountID)
		if err != nil {
			return err
		}

		existing, err := st.Positions().GetOpenBySymbol(ctx, accountID, rec.Symbol)
		if err != nil && !errors.Is(err, domain.ErrPositionNotFound) {
			return err
		}
		if existing != nil {
			return domain.ErrPositionExists
		}

		open, err := st.Positions().GetOpenByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if len(open) >= account.Config.MaxPositions {
			return domain.ErrMaxPositions
		}

		entryPrice := rec.CurrentPrice
		if entryPrice <= 0 {
			return fmt.Errorf("invalid entry price %.8f for %s", entryPrice, rec.Symbol)
		}

		notional := account.TotalEquity * account.Config.PositionSizePct / 100
		if notional > account.CurrentBalance {
			return domain.ErrInsufficientBalance
		}
		quantity := notional / entryPrice

		guards, err := ComputeExitGuards(GuardInput{
			EntryPrice: entryPrice,
			ATR:        atr,
			Config:     account.Config,
		})
		if err != nil {
			return err
		}

		now := s.now()
		position := &domain.SimPosition{
			AccountID:         accountID,
			Symbol:            rec.Symbol,
			EntryPrice:        entryPrice,
			Quantity:          quantity,
			RemainingQuantity: quantity,
			StopLossPrice:     guards.StopLossPrice,
			TakeProfits:       guards.TakeProfits,
			HighestPrice:      entryPrice,
			EntryScore:        rec.TotalScore,
			OpenedAt:          now,
			Status:            domain.PositionOpen,
		}
		if err := st.Positions().Create(ctx, position); err != nil {
			return err
		}

		trade := &domain.SimTrade{
			AccountID:  accountID,
			PositionID: position.ID,
			Symbol:     rec.Symbol,
			Side:       "BUY",
			Price:      entryPrice,
			Quantity:   quantity,
			TradeType:  domain.TradeEntry,
			TradeTime:  now,
		}
		if err := st.Trades().Create(ctx, trade); err != nil {
			return err
		}

		// Equity is unchanged by an open: balance drops by the notional,
		// open-position value rises by the same amount.
		account.CurrentBalance -= notional
		account.UpdatedAt = now
		if err := st.Accounts().Update(ctx, account); err != nil {
			return err
		}

		opened = position
		return nil
	})
	if err != nil {
		return nil, err
	}

	return opened, nil
}

// ExitAction describes one slice closed (or a trailing-stop update) during an
// exit evaluation.
type ExitAction struct {
	TradeType string
	Price     float64
	Quantity  float64
	PnL       float64
	PnLPct    float64
	Terminal  bool
	Reason    string
}

// EvaluateExits runs the exit state machine for one open position against a
// fresh price, applying every resulting mutation through st. Checks run in
// strict order: stop loss, holding-time limit, take-profit levels ascending,
// then the trailing-stop ratchet if the position survives.
func (s *SimTradingService) EvaluateExits(ctx context.Context, st domain.Store, account *domain.SimAccount, position *domain.SimPosition, price float64) ([]ExitAction, error) {
	if !position.IsOpen() {
		return nil, nil
	}
	now := s.now()
	var actions []ExitAction

	// 1. Stop loss closes everything.
	if price <= position.StopLossPrice {
		act, err := s.closeSlice(ctx, st, account, position, position.RemainingQuantity, price, domain.TradeStopLoss, "stop loss hit", now)
		if err != nil {
			return nil, err
		}
		return append(actions, act), nil
	}

	// 2. Holding-time limit closes everything regardless of price.
	cfg := account.Config
	if cfg.MaxHoldingHours > 0 {
		held := now.Sub(position.OpenedAt)
		if held >= time.Duration(cfg.MaxHoldingHours*float64(time.Hour)) {
			act, err := s.closeSlice(ctx, st, account, position, position.RemainingQuantity, price, domain.TradeFullExit, "max holding time reached", now)
			if err != nil {
				return nil, err
			}
			return append(actions, act), nil
		}
	}

	// 3. Take-profit levels in ascending order, each consumed at most once.
	// Non-final levels close one third of the original quantity; the final
	// level closes the remainder.
	for i := range position.TakeProfits {
		if !position.IsOpen() {
			break
		}
		tp := &position.TakeProfits[i]
		if tp.Consumed || price < tp.Price {
			continue
		}

		last := i == len(position.TakeProfits)-1
		if last {
			act, err := s.closeSlice(ctx, st, account, position, position.RemainingQuantity, price, domain.TradeTakeProfit,
				fmt.Sprintf("take profit %d hit", i+1), now)
			if err != nil {
				return nil, err
			}
			actions = append(actions, act)
			break
		}

		tp.Consumed = true
		slice := position.Quantity / 3
		if slice > position.RemainingQuantity {
			slice = position.RemainingQuantity
		}
		act, err := s.closeSlice(ctx, st, account, position, slice, price, domain.TradePartialExit,
			fmt.Sprintf("take profit %d hit", i+1), now)
		if err != nil {
			return nil, err
		}
		actions = append(actions, act)
	}

	// 4. Trailing stop: ratchet only, never lowered.
	if position.IsOpen() {
		if cfg.TrailingStopEnabled {
			if price > position.HighestPrice {
				position.HighestPrice = price
			}
			candidate := position.HighestPrice * (1 - cfg.TrailingStopPct/100)
			if candidate > position.StopLossPrice {
				position.StopLossPrice = candidate
			}
		}
		if err := st.Positions().Update(ctx, position); err != nil {
			return nil, err
		}
	}

	return actions, nil
}

// ClosePosition closes the full remaining quantity at the given price, or the
// current market price when exitPrice is nil. Used by the manual close
// operation.
func (s *SimTradingService) ClosePosition(ctx context.Context, positionID int64, exitPrice *float64) (*domain.SimPosition, error) {
	position, err := s.store.Positions().GetByID(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if !position.IsOpen() {
		return nil, domain.ErrPositionNotFound
	}

	price := 0.0
	if exitPrice != nil {
		price = *exitPrice
	} else {
		price, err = s.market.GetPrice(ctx, position.Symbol)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
		}
	}
	if price <= 0 {
		return nil, fmt.Errorf("invalid exit price %.8f", price)
	}

	var act ExitAction
	err = s.store.WithinTx(ctx, func(st domain.Store) error {
		account, err := st.Accounts().GetByID(ctx, position.AccountID)
		if err != nil {
			return err
		}
		pos, err := st.Positions().GetByID(ctx, positionID)
		if err != nil {
			return err
		}
		if !pos.IsOpen() {
			return domain.ErrPositionNotFound
		}

		now := s.now()
		act, err = s.closeSlice(ctx, st, account, pos, pos.RemainingQuantity, price, domain.TradeFullExit, "manual close", now)
		if err != nil {
			return err
		}

		entry := &domain.AutoTradeLogEntry{
			AccountID: pos.AccountID,
			Action:    domain.ActionClosePosition,
			Symbol:    pos.Symbol,
			Reason:    "manual close",
			Success:   true,
			Timestamp: now,
		}
		if err := st.AutoTradeLogs().Create(ctx, entry); err != nil {
			return err
		}
		position = pos
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(domain.TradeEvent{
		Type:      act.TradeType,
		AccountID: position.AccountID,
		Symbol:    position.Symbol,
		Price:     price,
		Quantity:  act.Quantity,
		PnL:       act.PnL,
		PnLPct:    act.PnLPct,
		Reason:    act.Reason,
	})
	return position, nil
}

// closeSlice books one exit fill: trade row, position shrink, ledger credit.
// Called only while holding the account's scan lock or inside a transaction
// opened by the caller.
func (s *SimTradingService) closeSlice(ctx context.Context, st domain.Store, account *domain.SimAccount, position *domain.SimPosition, quantity, price float64, tradeType, reason string, now time.Time) (ExitAction, error) {
	if quantity > position.RemainingQuantity {
		quantity = position.RemainingQuantity
	}

	pnl := (price - position.EntryPrice) * quantity
	pnlPct := 0.0
	if position.EntryPrice > 0 {
		pnlPct = (price - position.EntryPrice) / position.EntryPrice * 100
	}

	position.RemainingQuantity -= quantity
	position.RealizedPnL += pnl

	terminal := position.RemainingQuantity <= position.Quantity*closeEpsilon
	if terminal {
		position.RemainingQuantity = 0
		position.Status = domain.PositionClosed
		position.ClosedAt = &now
		position.CloseReason = reason
	}
	if err := st.Positions().Update(ctx, position); err != nil {
		return ExitAction{}, err
	}

	trade := &domain.SimTrade{
		AccountID:  account.ID,
		PositionID: position.ID,
		Symbol:     position.Symbol,
		Side:       "SELL",
		Price:      price,
		Quantity:   quantity,
		PnL:        pnl,
		PnLPct:     pnlPct,
		TradeType:  tradeType,
		TradeTime:  now,
	}
	if err := st.Trades().Create(ctx, trade); err != nil {
		return ExitAction{}, err
	}

	// Ledger: balance takes the exit proceeds; equity moves by exactly the
	// realized pnl since the position's entry-basis value shrinks.
	account.CurrentBalance += quantity * price
	account.TotalEquity += pnl
	account.TotalPnL += pnl
	if terminal {
		account.TotalTrades++
		if position.RealizedPnL > 0 {
			account.WinningTrades++
		}
	}
	account.UpdatedAt = now
	if err := st.Accounts().Update(ctx, account); err != nil {
		return ExitAction{}, err
	}

	return ExitAction{
		TradeType: tradeType,
		Price:     price,
		Quantity:  quantity,
		PnL:       pnl,
		PnLPct:    pnlPct,
		Terminal:  terminal,
		Reason:    reason,
	}, nil
}

func (s *SimTradingService) notify(event domain.TradeEvent) {
	if s.notifier == nil {
		return
	}
	// Fire and forget: delivery failures never affect trading decisions.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("notifier panic: %v", r)
			}
		}()
		s.notifier.Notify(event)
	}()
}

// ==================== Queries ====================

func (s *SimTradingService) OpenPositions(ctx context.Context, accountID int64) ([]*domain.SimPosition, error) {
	return s.store.Positions().GetOpenByAccount(ctx, accountID)
}

func (s *SimTradingService) PositionHistory(ctx context.Context, accountID int64, limit int) ([]*domain.SimPosition, error) {
	return s.store.Positions().History(ctx, accountID, limit)
}

func (s *SimTradingService) Trades(ctx context.Context, accountID int64, limit int) ([]*domain.SimTrade, error) {
	return s.store.Trades().ListByAccount(ctx, accountID, limit)
}

func (s *SimTradingService) AutoTradeLogs(ctx context.Context, accountID int64, limit int) ([]*domain.AutoTradeLogEntry, error) {
	return s.store.AutoTradeLogs().ListByAccount(ctx, accountID, limit)
}
