package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const DefaultBaseURL = "https://api.binance.com"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type Ticker24h struct {
	Symbol             string `json:"symbol"`
	PriceChangePercent string `json:"priceChangePercent"`
	LastPrice          string `json:"lastPrice"`
	QuoteVolume        string `json:"quoteVolume"`
}

// QuoteVolumeFloat parses the 24h quote volume, 0 when malformed.
func (t Ticker24h) QuoteVolumeFloat() float64 {
	v, _ := strconv.ParseFloat(t.QuoteVolume, 64)
	return v
}

type ExchangeInfo struct {
	Symbols []SymbolInfo `json:"symbols"`
}

type SymbolInfo struct {
	Symbol     string `json:"symbol"`
	Status     string `json:"status"`
	QuoteAsset string `json:"quoteAsset"`
}

// Kline is one parsed candle.
type Kline struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("binance API error: %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetActiveTradingSymbols returns USDT-quoted symbols with status "TRADING".
func (c *Client) GetActiveTradingSymbols(ctx context.Context) ([]string, error) {
	var info ExchangeInfo
	if err := c.get(ctx, "/api/v3/exchangeInfo", &info); err != nil {
		return nil, err
	}

	var active []string
	for _, s := range info.Symbols {
		if s.Status == "TRADING" && s.QuoteAsset == "USDT" {
			active = append(active, s.Symbol)
		}
	}
	return active, nil
}

// Get24hrTickers returns 24hr statistics for all markets.
func (c *Client) Get24hrTickers(ctx context.Context) ([]Ticker24h, error) {
	var tickers []Ticker24h
	if err := c.get(ctx, "/api/v3/ticker/24hr", &tickers); err != nil {
		return nil, err
	}
	return tickers, nil
}

// GetPrice returns the latest traded price for one symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	var data struct {
		Price string `json:"price"`
	}
	if err := c.get(ctx, "/api/v3/ticker/price?symbol="+symbol, &data); err != nil {
		return 0, err
	}
	price, err := strconv.ParseFloat(data.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", data.Price, err)
	}
	return price, nil
}

// GetKlines returns parsed candlestick data, oldest first.
// Binance returns: [ [open_time, open, high, low, close, volume, ...], ... ]
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	path := fmt.Sprintf("/api/v3/klines?symbol=%s&interval=%s&limit=%d", symbol, interval, limit)
	var raw [][]interface{}
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}

	klines := make([]Kline, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		var parsed Kline
		if ts, ok := k[0].(float64); ok {
			parsed.OpenTime = time.UnixMilli(int64(ts))
		}
		parsed.Open = parseValue(k[1])
		parsed.High = parseValue(k[2])
		parsed.Low = parseValue(k[3])
		parsed.Close = parseValue(k[4])
		parsed.Volume = parseValue(k[5])
		klines = append(klines, parsed)
	}
	return klines, nil
}

func parseValue(v interface{}) float64 {
	switch val := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	case float64:
		return val
	}
	return 0
}
