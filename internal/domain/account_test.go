package domain

import "testing"

func validFixed() AccountConfig {
	return AccountConfig{
		MaxPositions:     3,
		PositionSizePct:  5,
		EntryTimeframe:   "15m",
		EntryScoreMin:    70,
		ExitMode:         ExitModeFixed,
		StopLossPct:      3,
		TakeProfitLevels: []float64{2, 4, 6},
	}
}

func TestConfigValidateFixed(t *testing.T) {
	cfg := validFixed()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AccountConfig)
	}{
		{"zero max positions", func(c *AccountConfig) { c.MaxPositions = 0 }},
		{"position size over 100", func(c *AccountConfig) { c.PositionSizePct = 150 }},
		{"missing timeframe", func(c *AccountConfig) { c.EntryTimeframe = "" }},
		{"score threshold over 100", func(c *AccountConfig) { c.EntryScoreMin = 120 }},
		{"zero stop loss", func(c *AccountConfig) { c.StopLossPct = 0 }},
		{"no take profit levels", func(c *AccountConfig) { c.TakeProfitLevels = nil }},
		{"four take profit levels", func(c *AccountConfig) { c.TakeProfitLevels = []float64{1, 2, 3, 4} }},
		{"descending take profit levels", func(c *AccountConfig) { c.TakeProfitLevels = []float64{4, 2} }},
		{"equal take profit levels", func(c *AccountConfig) { c.TakeProfitLevels = []float64{2, 2} }},
		{"unknown exit mode", func(c *AccountConfig) { c.ExitMode = "martingale" }},
		{"trailing enabled without pct", func(c *AccountConfig) { c.TrailingStopEnabled = true }},
		{"negative holding hours", func(c *AccountConfig) { c.MaxHoldingHours = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validFixed()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfigValidateATR(t *testing.T) {
	cfg := AccountConfig{
		MaxPositions:      2,
		PositionSizePct:   10,
		EntryTimeframe:    "1h",
		ExitMode:          ExitModeATR,
		ATRStopMultiplier: 2,
		HardStopPct:       5,
		ATRTPMultipliers:  []float64{1, 2, 3},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid ATR config rejected: %v", err)
	}

	cfg.HardStopPct = 0
	if err := cfg.Validate(); err == nil {
		t.Error("ATR mode must require a hard stop")
	}
}
