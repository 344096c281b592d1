package usecase

import (
	"time"

	"simtrader-backend/internal/domain"
	"simtrader-backend/internal/infrastructure/indicators"
)

// Scoring parameters. Signal periods follow the screener's charting setup;
// each technical signal is worth exactly 20 points, no partial credit.
const (
	smaPeriod         = 20
	rsiPeriod         = 14
	macdFast          = 12
	macdSlow          = 26
	macdSignal        = 9
	macdCrossLookback = 3
	volumeSMAPeriod   = 20
	volumeSurgeMult   = 1.5
	rsiHealthyLow     = 40
	rsiHealthyHigh    = 70
	anomalyThreshold  = 2.0

	betaWeight      = 0.3
	volumeWeight    = 0.2
	technicalWeight = 0.5
)

var emaPeriods = []int{7, 14, 30, 52}

// ScoreInput is the per-symbol market snapshot the scoring engine consumes.
// BTCCloses/ETHCloses are reference series over the same candle window.
type ScoreInput struct {
	Symbol    string
	Timeframe string
	Closes    []float64
	Highs     []float64
	Lows      []float64
	Volumes   []float64
	Volume24h float64
	BTCCloses []float64
	ETHCloses []float64
	Timestamp time.Time
}

// ComputeScore produces the composite 0-100 score for one symbol. Missing or
// short data never errors: the affected component simply scores 0 and entry
// gating downstream decides whether the record is usable.
func ComputeScore(in ScoreInput) domain.ScoreRecord {
	signals, technical := technicalScore(in)
	btcChange := relativeRatioChange(in.Closes, in.BTCCloses, lookback24h(in.Timeframe))
	ethChange := relativeRatioChange(in.Closes, in.ETHCloses, lookback24h(in.Timeframe))
	beta := betaScore(btcChange, ethChange)
	volume := volumeScore(in.Volume24h, signals.VolumeSurge)

	total := clamp(beta*betaWeight + volume*volumeWeight + technical*technicalWeight)

	price := 0.0
	if len(in.Closes) > 0 {
		price = in.Closes[len(in.Closes)-1]
	}

	return domain.ScoreRecord{
		Symbol:         in.Symbol,
		Timeframe:      in.Timeframe,
		CurrentPrice:   price,
		TotalScore:     total,
		BetaScore:      beta,
		VolumeScore:    volume,
		TechnicalScore: technical,
		Signals:        signals,
		Volume24h:      in.Volume24h,
		BTCRatioChange: btcChange,
		ETHRatioChange: ethChange,
		Timestamp:      in.Timestamp,
	}
}

// technicalScore evaluates the five 20-point signals.
func technicalScore(in ScoreInput) (domain.Signals, float64) {
	var s domain.Signals
	if len(in.Closes) == 0 {
		return s, 0
	}

	last := len(in.Closes) - 1
	price := in.Closes[last]

	sma := indicators.CalculateSMA(in.Closes, smaPeriod)
	if sma[last] > 0 && price > sma[last] {
		s.AboveSMA = true
	}

	macd := indicators.CalculateMACD(in.Closes, macdFast, macdSlow, macdSignal)
	s.MACDGoldenCross = macd.GoldenCrossWithin(macdCrossLookback)

	s.AboveAllEMA = aboveAllEMAs(in.Closes, price)

	rsi := indicators.CalculateRSI(in.Closes, rsiPeriod)
	if rsi[last] >= rsiHealthyLow && rsi[last] <= rsiHealthyHigh {
		s.RSIHealthy = true
	}

	s.VolumeSurge = indicators.VolumeSurge(in.Volumes, volumeSMAPeriod, volumeSurgeMult)

	if last > 0 && in.Closes[last-1] > 0 {
		changePct := (price - in.Closes[last-1]) / in.Closes[last-1] * 100
		if changePct >= anomalyThreshold || changePct <= -anomalyThreshold {
			s.PriceAnomaly = true
		}
	}

	score := 0.0
	for _, hit := range []bool{s.AboveSMA, s.MACDGoldenCross, s.AboveAllEMA, s.RSIHealthy, s.VolumeSurge} {
		if hit {
			score += 20
		}
	}
	return s, clamp(score)
}

func aboveAllEMAs(closes []float64, price float64) bool {
	last := len(closes) - 1
	for _, period := range emaPeriods {
		ema := indicators.CalculateEMA(closes, period)
		if ema[last] <= 0 || price <= ema[last] {
			return false
		}
	}
	return true
}

// relativeRatioChange measures how the symbol/reference price ratio moved
// over the lookback window, in percent. Zero when either series is too short.
func relativeRatioChange(closes, refCloses []float64, lookback int) float64 {
	if lookback <= 0 {
		return 0
	}
	if len(closes) <= lookback || len(refCloses) <= lookback {
		return 0
	}

	last := len(closes) - 1
	refLast := len(refCloses) - 1

	if refCloses[refLast] == 0 || refCloses[refLast-lookback] == 0 {
		return 0
	}

	ratioNow := closes[last] / refCloses[refLast]
	ratioOld := closes[last-lookback] / refCloses[refLast-lookback]
	if ratioOld == 0 {
		return 0
	}
	return (ratioNow - ratioOld) / ratioOld * 100
}

// betaScore maps average relative outperformance versus BTC and ETH into
// [0,100]: 5% outperformance scores 50, 10% or more scores 100. Linear and
// monotonic; underperformance floors at 0.
func betaScore(btcRatioChange, ethRatioChange float64) float64 {
	avg := (btcRatioChange + ethRatioChange) / 2
	return clamp(avg * 10)
}

// volumeScore rates 24h quote volume against liquidity tiers, with a surge
// bonus.
func volumeScore(volume24h float64, surge bool) float64 {
	var base float64
	switch {
	case volume24h >= 10000000:
		base = 100
	case volume24h >= 5000000:
		base = 80
	case volume24h >= 2000000:
		base = 60
	case volume24h >= 1000000:
		base = 40
	case volume24h > 0:
		base = 20
	default:
		base = 0
	}

	if surge {
		base += 20
	}
	return clamp(base)
}

// lookback24h converts a timeframe string into the number of candles that
// cover 24 hours.
func lookback24h(timeframe string) int {
	minutes := map[string]int{
		"1m":  1,
		"5m":  5,
		"15m": 15,
		"30m": 30,
		"1h":  60,
		"4h":  240,
		"1d":  1440,
	}
	m, ok := minutes[timeframe]
	if !ok {
		m = 5
	}
	return 1440 / m
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
