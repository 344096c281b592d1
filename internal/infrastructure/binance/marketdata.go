package binance

import (
	"context"
	"fmt"

	"simtrader-backend/internal/domain"
	"simtrader-backend/internal/infrastructure/indicators"
)

const atrPeriod = 14

// MarketData adapts the REST client to the trading side, which only needs a
// live price and the current ATR per symbol.
type MarketData struct {
	client *Client
}

var _ domain.MarketData = (*MarketData)(nil)

func NewMarketData(client *Client) *MarketData {
	return &MarketData{client: client}
}

func (m *MarketData) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return m.client.GetPrice(ctx, symbol)
}

func (m *MarketData) GetATR(ctx context.Context, symbol, timeframe string) (float64, error) {
	klines, err := m.client.GetKlines(ctx, symbol, timeframe, 100)
	if err != nil {
		return 0, err
	}
	if len(klines) <= atrPeriod {
		return 0, fmt.Errorf("%w: %d candles for %s %s", domain.ErrDataUnavailable, len(klines), symbol, timeframe)
	}

	highs := make([]float64, len(klines))
	lows := make([]float64, len(klines))
	closes := make([]float64, len(klines))
	for i, k := range klines {
		highs[i] = k.High
		lows[i] = k.Low
		closes[i] = k.Close
	}
	return indicators.CurrentATR(highs, lows, closes, atrPeriod), nil
}
