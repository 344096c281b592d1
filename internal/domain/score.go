package domain

import "time"

// ScoreRecord is one screening result for a symbol on a timeframe.
// Immutable once produced by the scoring engine.
type ScoreRecord struct {
	Symbol         string    `json:"symbol"`
	Timeframe      string    `json:"timeframe"`
	CurrentPrice   float64   `json:"currentPrice"`
	TotalScore     float64   `json:"totalScore"`
	BetaScore      float64   `json:"betaScore"`
	VolumeScore    float64   `json:"volumeScore"`
	TechnicalScore float64   `json:"technicalScore"`
	Signals        Signals   `json:"signals"`
	Volume24h      float64   `json:"volume24h"`
	BTCRatioChange float64   `json:"btcRatioChangePct"`
	ETHRatioChange float64   `json:"ethRatioChangePct"`
	Timestamp      time.Time `json:"timestamp"`
}

// Signals are the boolean conditions feeding the technical score.
type Signals struct {
	AboveSMA        bool `json:"aboveSma"`
	MACDGoldenCross bool `json:"macdGoldenCross"`
	AboveAllEMA     bool `json:"aboveAllEma"`
	RSIHealthy      bool `json:"rsiHealthy"`
	VolumeSurge     bool `json:"volumeSurge"`
	PriceAnomaly    bool `json:"priceAnomaly"`
}
