package domain

import "time"

// Actions recorded in the auto-trade log.
const (
	ActionOpenPosition  = "OPEN_POSITION"
	ActionPartialExit   = "PARTIAL_EXIT"
	ActionClosePosition = "CLOSE_POSITION"
	ActionStopLoss      = "STOP_LOSS"
	ActionTakeProfit    = "TAKE_PROFIT"
	ActionSkip          = "SKIP"
	ActionError         = "ERROR"
)

// AutoTradeLogEntry is one append-only audit record. Every decision the
// controller takes or declines to take produces exactly one entry, carrying
// the scoring snapshot that justified it.
type AutoTradeLogEntry struct {
	ID            int64        `json:"id"`
	AccountID     int64        `json:"accountId"`
	ScanID        string       `json:"scanId"`
	Action        string       `json:"action"`
	Symbol        string       `json:"symbol"`
	ScreeningScore float64     `json:"screeningScore"`
	Reason        string       `json:"reason"`
	Success       bool         `json:"success"`
	ErrorMessage  string       `json:"errorMessage,omitempty"`
	ScreeningData *ScoreRecord `json:"screeningData,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// ScanResult summarizes one runScan invocation for one account.
type ScanResult struct {
	ScanID          string              `json:"scanId"`
	AccountID       int64               `json:"accountId"`
	PositionsOpened []string            `json:"positionsOpened"`
	PositionsClosed []string            `json:"positionsClosed"`
	PartialExits    []string            `json:"partialExits"`
	Skipped         []string            `json:"skipped"`
	Entries         []AutoTradeLogEntry `json:"entries"`
	StartedAt       time.Time           `json:"startedAt"`
	FinishedAt      time.Time           `json:"finishedAt"`
}
