package domain

import (
	"fmt"
	"time"
)

// ExitMode selects how stop-loss and take-profit prices are derived at entry.
type ExitMode string

const (
	ExitModeFixed ExitMode = "fixed" // percent offsets from entry price
	ExitModeATR   ExitMode = "atr"   // multiples of the ATR at entry
)

// AccountConfig is the per-account risk and entry configuration.
type AccountConfig struct {
	MaxPositions      int      `json:"maxPositions"`
	PositionSizePct   float64  `json:"positionSizePct"`
	EntryTimeframe    string   `json:"entryTimeframe"`
	EntryScoreMin     float64  `json:"entryScoreMin"`
	EntryTechnicalMin float64  `json:"entryTechnicalMin"`
	RequireMACDGolden bool     `json:"requireMacdGolden"`
	RequireVolSurge   bool     `json:"requireVolumeSurge"`

	ExitMode          ExitMode  `json:"exitMode"`
	StopLossPct       float64   `json:"stopLossPct"`
	HardStopPct       float64   `json:"hardStopPct"`
	ATRStopMultiplier float64   `json:"atrStopMultiplier"`
	ATRTPMultipliers  []float64 `json:"atrTpMultipliers"`
	TakeProfitLevels  []float64 `json:"takeProfitLevels"`

	TrailingStopEnabled bool    `json:"trailingStopEnabled"`
	TrailingStopPct     float64 `json:"trailingStopPct"`
	MaxHoldingHours     float64 `json:"maxHoldingHours"`

	AutoTradingEnabled bool `json:"autoTradingEnabled"`
}

// SimAccount is one simulated trading account with its ledger counters.
// Balance and equity are mutated only through position opens and closes.
type SimAccount struct {
	ID             int64         `json:"id"`
	AccountName    string        `json:"accountName"`
	InitialBalance float64       `json:"initialBalance"`
	CurrentBalance float64       `json:"currentBalance"`
	TotalEquity    float64       `json:"totalEquity"`
	TotalPnL       float64       `json:"totalPnl"`
	TotalTrades    int           `json:"totalTrades"`
	WinningTrades  int           `json:"winningTrades"`
	Config         AccountConfig `json:"config"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// Validate rejects malformed configs at creation/update time so the scan
// loop never sees them.
func (c *AccountConfig) Validate() error {
	if c.MaxPositions < 1 {
		return fmt.Errorf("maxPositions must be at least 1, got %d", c.MaxPositions)
	}
	if c.PositionSizePct <= 0 || c.PositionSizePct > 100 {
		return fmt.Errorf("positionSizePct must be in (0, 100], got %.2f", c.PositionSizePct)
	}
	if c.EntryTimeframe == "" {
		return fmt.Errorf("entryTimeframe is required")
	}
	if c.EntryScoreMin < 0 || c.EntryScoreMin > 100 {
		return fmt.Errorf("entryScoreMin must be in [0, 100], got %.2f", c.EntryScoreMin)
	}
	if c.EntryTechnicalMin < 0 || c.EntryTechnicalMin > 100 {
		return fmt.Errorf("entryTechnicalMin must be in [0, 100], got %.2f", c.EntryTechnicalMin)
	}

	switch c.ExitMode {
	case ExitModeFixed:
		if c.StopLossPct <= 0 {
			return fmt.Errorf("stopLossPct must be positive, got %.2f", c.StopLossPct)
		}
		if len(c.TakeProfitLevels) == 0 || len(c.TakeProfitLevels) > 3 {
			return fmt.Errorf("takeProfitLevels must have 1-3 entries, got %d", len(c.TakeProfitLevels))
		}
		if err := ascending(c.TakeProfitLevels); err != nil {
			return fmt.Errorf("takeProfitLevels: %w", err)
		}
	case ExitModeATR:
		if c.ATRStopMultiplier <= 0 {
			return fmt.Errorf("atrStopMultiplier must be positive, got %.2f", c.ATRStopMultiplier)
		}
		if c.HardStopPct <= 0 {
			return fmt.Errorf("hardStopPct must be positive, got %.2f", c.HardStopPct)
		}
		if len(c.ATRTPMultipliers) == 0 || len(c.ATRTPMultipliers) > 3 {
			return fmt.Errorf("atrTpMultipliers must have 1-3 entries, got %d", len(c.ATRTPMultipliers))
		}
		if err := ascending(c.ATRTPMultipliers); err != nil {
			return fmt.Errorf("atrTpMultipliers: %w", err)
		}
	default:
		return fmt.Errorf("exitMode must be %q or %q, got %q", ExitModeFixed, ExitModeATR, c.ExitMode)
	}

	if c.TrailingStopEnabled && c.TrailingStopPct <= 0 {
		return fmt.Errorf("trailingStopPct must be positive when trailing is enabled, got %.2f", c.TrailingStopPct)
	}
	if c.MaxHoldingHours < 0 {
		return fmt.Errorf("maxHoldingHours must not be negative, got %.2f", c.MaxHoldingHours)
	}
	return nil
}

func ascending(levels []float64) error {
	for i, v := range levels {
		if v <= 0 {
			return fmt.Errorf("level %d must be positive, got %.2f", i+1, v)
		}
		if i > 0 && v <= levels[i-1] {
			return fmt.Errorf("levels must be strictly ascending, got %.2f after %.2f", v, levels[i-1])
		}
	}
	return nil
}
