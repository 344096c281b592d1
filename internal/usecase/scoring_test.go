package usecase

import (
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeScoreEmptyInputScoresZero(t *testing.T) {
	rec := ComputeScore(ScoreInput{Symbol: "XYZUSDT", Timeframe: "15m", Timestamp: time.Now()})

	if rec.TotalScore != 0 {
		t.Errorf("expected total score 0, got %v", rec.TotalScore)
	}
	if rec.TechnicalScore != 0 || rec.BetaScore != 0 || rec.VolumeScore != 0 {
		t.Errorf("expected all components 0, got technical=%v beta=%v volume=%v",
			rec.TechnicalScore, rec.BetaScore, rec.VolumeScore)
	}
	if rec.CurrentPrice != 0 {
		t.Errorf("expected price 0, got %v", rec.CurrentPrice)
	}
}

func TestComputeScoreWeights(t *testing.T) {
	if betaWeight+volumeWeight+technicalWeight != 1.0 {
		t.Fatalf("component weights must sum to 1, got %v", betaWeight+volumeWeight+technicalWeight)
	}
}

func TestBetaScoreMapping(t *testing.T) {
	cases := []struct {
		name     string
		btc, eth float64
		want     float64
	}{
		{"five percent outperformance scores 50", 5, 5, 50},
		{"ten percent caps at 100", 10, 10, 100},
		{"beyond ten percent stays capped", 30, 20, 100},
		{"underperformance floors at 0", -5, -3, 0},
		{"mixed averages first", 4, 2, 30},
		{"flat scores 0", 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := betaScore(tc.btc, tc.eth); !almostEqual(got, tc.want) {
				t.Errorf("betaScore(%v, %v) = %v, want %v", tc.btc, tc.eth, got, tc.want)
			}
		})
	}
}

func TestVolumeScoreTiers(t *testing.T) {
	cases := []struct {
		volume float64
		surge  bool
		want   float64
	}{
		{12_000_000, false, 100},
		{10_000_000, false, 100},
		{6_000_000, false, 80},
		{3_000_000, false, 60},
		{1_500_000, false, 40},
		{500_000, false, 20},
		{0, false, 0},
		{6_000_000, true, 100},
		{1_500_000, true, 60},
		{12_000_000, true, 100}, // bonus never exceeds the cap
	}
	for _, tc := range cases {
		if got := volumeScore(tc.volume, tc.surge); !almostEqual(got, tc.want) {
			t.Errorf("volumeScore(%v, %v) = %v, want %v", tc.volume, tc.surge, got, tc.want)
		}
	}
}

func TestRelativeRatioChange(t *testing.T) {
	// Symbol doubles while the reference is flat: ratio change is +100%.
	closes := []float64{1, 1, 2}
	ref := []float64{100, 100, 100}
	if got := relativeRatioChange(closes, ref, 2); !almostEqual(got, 100) {
		t.Errorf("expected +100, got %v", got)
	}

	// Both move identically: ratio change is 0.
	if got := relativeRatioChange(ref, ref, 2); !almostEqual(got, 0) {
		t.Errorf("expected 0, got %v", got)
	}

	// Series shorter than the lookback scores 0 instead of erroring.
	if got := relativeRatioChange([]float64{1, 2}, ref, 5); got != 0 {
		t.Errorf("expected 0 for short series, got %v", got)
	}
}

func TestLookback24h(t *testing.T) {
	cases := map[string]int{
		"1m":  1440,
		"5m":  288,
		"15m": 96,
		"1h":  24,
		"4h":  6,
		"1d":  1,
	}
	for tf, want := range cases {
		if got := lookback24h(tf); got != want {
			t.Errorf("lookback24h(%q) = %d, want %d", tf, got, want)
		}
	}
	if got := lookback24h("weird"); got != 288 {
		t.Errorf("unknown timeframe should fall back to 5m candles, got %d", got)
	}
}

func TestTechnicalScoreRisingMarket(t *testing.T) {
	// A steady uptrend with a volume spike at the end: price sits above the
	// SMA20 and all EMAs and volume surges. RSI of an uninterrupted rise is
	// near 100, outside the healthy band.
	n := 80
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
		volumes[i] = 1000
	}
	volumes[n-1] = 5000

	in := ScoreInput{Symbol: "UPUSDT", Timeframe: "15m", Closes: closes, Volumes: volumes}
	signals, score := technicalScore(in)

	if !signals.AboveSMA {
		t.Error("expected AboveSMA in an uptrend")
	}
	if !signals.AboveAllEMA {
		t.Error("expected AboveAllEMA in an uptrend")
	}
	if signals.RSIHealthy {
		t.Error("RSI of an uninterrupted rise should be outside [40,70]")
	}
	if !signals.VolumeSurge {
		t.Error("expected VolumeSurge with a 5x final volume")
	}
	if score < 40 {
		t.Errorf("expected at least SMA+EMA+volume signals, got score %v", score)
	}
	if math.Mod(score, 20) != 0 {
		t.Errorf("technical score must be a multiple of 20, got %v", score)
	}
}

func TestTechnicalScorePriceAnomaly(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	closes[39] = 103 // +3% in one candle

	signals, _ := technicalScore(ScoreInput{Closes: closes})
	if !signals.PriceAnomaly {
		t.Error("expected PriceAnomaly for a 3% single-candle move")
	}

	closes[39] = 101 // +1%
	signals, _ = technicalScore(ScoreInput{Closes: closes})
	if signals.PriceAnomaly {
		t.Error("did not expect PriceAnomaly for a 1% move")
	}
}

func TestComputeScoreTotalIsClamped(t *testing.T) {
	n := 80
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
		volumes[i] = 1000
	}
	rec := ComputeScore(ScoreInput{
		Symbol:    "UPUSDT",
		Timeframe: "15m",
		Closes:    closes,
		Volumes:   volumes,
		Volume24h: 50_000_000,
	})
	if rec.TotalScore < 0 || rec.TotalScore > 100 {
		t.Errorf("total score out of range: %v", rec.TotalScore)
	}
	if rec.CurrentPrice != closes[n-1] {
		t.Errorf("expected current price %v, got %v", closes[n-1], rec.CurrentPrice)
	}
}
