package usecase

import (
	"fmt"

	"simtrader-backend/internal/domain"
)

// ExitGuards are the stop and target prices computed once at entry.
type ExitGuards struct {
	StopLossPrice float64
	TakeProfits   []domain.TakeProfitLevel
}

// GuardInput is the shared input for both exit modes.
type GuardInput struct {
	EntryPrice float64
	ATR        float64
	Config     domain.AccountConfig
}

// ComputeExitGuards dispatches on the account's exit mode. Each mode is a
// pure function of GuardInput.
func ComputeExitGuards(in GuardInput) (ExitGuards, error) {
	switch in.Config.ExitMode {
	case domain.ExitModeFixed:
		return fixedGuards(in), nil
	case domain.ExitModeATR:
		return atrGuards(in), nil
	default:
		return ExitGuards{}, fmt.Errorf("unknown exit mode %q", in.Config.ExitMode)
	}
}

// fixedGuards derives stop and targets from percent offsets.
func fixedGuards(in GuardInput) ExitGuards {
	g := ExitGuards{
		StopLossPrice: in.EntryPrice * (1 - in.Config.StopLossPct/100),
	}
	for _, pct := range in.Config.TakeProfitLevels {
		g.TakeProfits = append(g.TakeProfits, domain.TakeProfitLevel{
			Price: in.EntryPrice * (1 + pct/100),
		})
	}
	return g
}

// atrGuards derives stop and targets from ATR multiples. The stop distance is
// clamped by the hard stop floor: the tighter of the two governs downside
// risk.
func atrGuards(in GuardInput) ExitGuards {
	stop := in.EntryPrice - in.Config.ATRStopMultiplier*in.ATR

	if in.Config.HardStopPct > 0 {
		floor := in.EntryPrice * (1 - in.Config.HardStopPct/100)
		if stop < floor {
			stop = floor
		}
	}

	g := ExitGuards{StopLossPrice: stop}
	for _, mult := range in.Config.ATRTPMultipliers {
		g.TakeProfits = append(g.TakeProfits, domain.TakeProfitLevel{
			Price: in.EntryPrice + mult*in.ATR,
		})
	}
	return g
}
