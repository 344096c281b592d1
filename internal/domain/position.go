package domain

import "time"

// Position status values.
const (
	PositionOpen   = "OPEN"
	PositionClosed = "CLOSED"
)

// Trade types recorded on SimTrade rows.
const (
	TradeEntry       = "ENTRY"
	TradePartialExit = "PARTIAL_EXIT"
	TradeFullExit    = "FULL_EXIT"
	TradeStopLoss    = "STOP_LOSS"
	TradeTakeProfit  = "TAKE_PROFIT"
)

// TakeProfitLevel is one target price; consumed at most once, evaluated in
// ascending order.
type TakeProfitLevel struct {
	Price    float64 `json:"price"`
	Consumed bool    `json:"consumed"`
}

// SimPosition is one simulated position. Quantity is the size at entry and
// never changes; RemainingQuantity shrinks through partial exits. At most one
// OPEN position exists per (account, symbol).
type SimPosition struct {
	ID                int64             `json:"id"`
	AccountID         int64             `json:"accountId"`
	Symbol            string            `json:"symbol"`
	EntryPrice        float64           `json:"entryPrice"`
	Quantity          float64           `json:"quantity"`
	RemainingQuantity float64           `json:"remainingQuantity"`
	StopLossPrice     float64           `json:"stopLossPrice"`
	TakeProfits       []TakeProfitLevel `json:"takeProfits"`
	HighestPrice      float64           `json:"highestPrice"`
	EntryScore        float64           `json:"entryScore"`
	RealizedPnL       float64           `json:"realizedPnl"`
	OpenedAt          time.Time         `json:"openedAt"`
	Status            string            `json:"status"`
	ClosedAt          *time.Time        `json:"closedAt,omitempty"`
	CloseReason       string            `json:"closeReason,omitempty"`
}

// IsOpen reports whether the position still holds quantity.
func (p *SimPosition) IsOpen() bool {
	return p.Status == PositionOpen
}

// SimTrade is one fill event. Append-only, one row per entry or exit slice.
type SimTrade struct {
	ID         int64     `json:"id"`
	AccountID  int64     `json:"accountId"`
	PositionID int64     `json:"positionId"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"` // BUY or SELL
	Price      float64   `json:"price"`
	Quantity   float64   `json:"quantity"`
	PnL        float64   `json:"pnl"`
	PnLPct     float64   `json:"pnlPct"`
	TradeType  string    `json:"tradeType"`
	TradeTime  time.Time `json:"tradeTime"`
}
