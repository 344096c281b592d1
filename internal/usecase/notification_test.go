package usecase

import (
	"strings"
	"testing"

	"simtrader-backend/internal/domain"
)

func TestFormatEvent(t *testing.T) {
	title, body := formatEvent(domain.TradeEvent{
		Type: "OPEN", Symbol: "BTCUSDT", Price: 50000, Quantity: 0.004, Score: 85,
	})
	if title != "Opened BTCUSDT" {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(body, "score 85.0") {
		t.Errorf("open body missing score: %q", body)
	}

	title, _ = formatEvent(domain.TradeEvent{Type: "HIGH_SCORE", Symbol: "ETHUSDT", Score: 92})
	if title != "ETHUSDT scored 92.0" {
		t.Errorf("title = %q", title)
	}

	_, body = formatEvent(domain.TradeEvent{
		Type: "STOP_LOSS", Symbol: "BTCUSDT", Price: 48000, Quantity: 0.004, PnL: -8, PnLPct: -4,
	})
	if !strings.Contains(body, "-8.00 USDT") || !strings.Contains(body, "-4.00%") {
		t.Errorf("close body missing P&L: %q", body)
	}
}

func TestEventDataCarriesScoreOnEntries(t *testing.T) {
	data := eventData(domain.TradeEvent{
		Type: "OPEN", Symbol: "BTCUSDT", Price: 50000, Quantity: 0.004, Score: 85,
	})
	if data["type"] != "OPEN" || data["symbol"] != "BTCUSDT" {
		t.Errorf("routing keys wrong: %v", data)
	}
	if data["score"] != "85.0" {
		t.Errorf("score = %q, want 85.0", data["score"])
	}
	if _, ok := data["pnl"]; ok {
		t.Error("entry payload must not carry pnl")
	}
}

func TestEventDataCarriesPnLOnExits(t *testing.T) {
	data := eventData(domain.TradeEvent{
		Type: "TAKE_PROFIT", Symbol: "ETHUSDT", Price: 3120, Quantity: 0.5, PnL: 60, PnLPct: 4,
	})
	if data["pnl"] != "60.00" || data["pnlPct"] != "4.00" {
		t.Errorf("exit payload P&L wrong: %v", data)
	}
	if data["quantity"] != "0.5" {
		t.Errorf("quantity = %q", data["quantity"])
	}
	if _, ok := data["score"]; ok {
		t.Error("exit payload must not carry score")
	}
}
