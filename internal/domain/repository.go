package domain

import "context"

type AccountRepository interface {
	Create(ctx context.Context, account *SimAccount) error
	GetByID(ctx context.Context, id int64) (*SimAccount, error)
	GetAll(ctx context.Context) ([]*SimAccount, error)
	Update(ctx context.Context, account *SimAccount) error
	Delete(ctx context.Context, id int64) error
}

type PositionRepository interface {
	Create(ctx context.Context, position *SimPosition) error
	GetByID(ctx context.Context, id int64) (*SimPosition, error)
	GetOpenByAccount(ctx context.Context, accountID int64) ([]*SimPosition, error)
	GetOpenBySymbol(ctx context.Context, accountID int64, symbol string) (*SimPosition, error)
	Update(ctx context.Context, position *SimPosition) error
	History(ctx context.Context, accountID int64, limit int) ([]*SimPosition, error)
}

type TradeRepository interface {
	Create(ctx context.Context, trade *SimTrade) error
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]*SimTrade, error)
}

type AutoTradeLogRepository interface {
	Create(ctx context.Context, entry *AutoTradeLogEntry) error
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]*AutoTradeLogEntry, error)
}

// Store bundles the repositories behind one persistence boundary. WithinTx
// runs fn against a transactional view: either every write fn makes is
// committed, or none are.
type Store interface {
	Accounts() AccountRepository
	Positions() PositionRepository
	Trades() TradeRepository
	AutoTradeLogs() AutoTradeLogRepository
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// ScreenerRepository holds the latest screening results.
type ScreenerRepository interface {
	SaveScores(ctx context.Context, scores []ScoreRecord) error
	LatestScores(ctx context.Context) ([]ScoreRecord, error)
	Candidates(ctx context.Context, timeframe string, minScore float64) ([]ScoreRecord, error)
}

// MarketData supplies live prices and volatility per symbol.
type MarketData interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
	GetATR(ctx context.Context, symbol, timeframe string) (float64, error)
}

// TradeEvent is a fire-and-forget notification payload. Delivery failures
// must never affect trading decisions.
type TradeEvent struct {
	Type      string  // e.g. "OPEN", "STOP_LOSS", "TAKE_PROFIT", "PARTIAL_EXIT", "FULL_EXIT"
	AccountID int64
	Symbol    string
	Price     float64
	Quantity  float64
	PnL       float64
	PnLPct    float64
	Score     float64
	Reason    string
}

type Notifier interface {
	Notify(event TradeEvent)
}
