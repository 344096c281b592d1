package usecase

import (
	"fmt"
	"log"
	"strconv"

	"simtrader-backend/internal/domain"
	"simtrader-backend/internal/infrastructure/fcm"
	"simtrader-backend/internal/infrastructure/telegram"
	"simtrader-backend/internal/repository"
)

// NotificationService fans trade events out to every configured channel.
// It implements domain.Notifier; callers already run it off the trading
// path, so sends here are synchronous.
type NotificationService struct {
	fcmClient *fcm.Client
	tokenRepo *repository.TokenRepository
	telegram  *telegram.Notifier
}

var _ domain.Notifier = (*NotificationService)(nil)

func NewNotificationService(fcmClient *fcm.Client, tokenRepo *repository.TokenRepository, tg *telegram.Notifier) *NotificationService {
	return &NotificationService{
		fcmClient: fcmClient,
		tokenRepo: tokenRepo,
		telegram:  tg,
	}
}

func (s *NotificationService) Notify(event domain.TradeEvent) {
	title, body := formatEvent(event)

	if s.telegram != nil && s.telegram.IsEnabled() {
		switch event.Type {
		case "OPEN":
			s.telegram.NotifyOpen(event.Symbol, event.Price, event.Quantity, event.Score)
		case "HIGH_SCORE":
			s.telegram.NotifyHighScore(event.Symbol, event.Price, event.Score)
		default:
			s.telegram.NotifyClose(event.Type, event.Symbol, event.Price, event.Quantity, event.PnL)
		}
	}

	if s.fcmClient != nil && s.fcmClient.IsEnabled() && s.tokenRepo != nil {
		tokens := s.tokenRepo.AllTokens()
		if len(tokens) == 0 {
			return
		}
		if err := s.fcmClient.SendMulticast(tokens, title, body, eventData(event)); err != nil {
			log.Printf("fcm send: %v", err)
		}
	}
}

// eventData builds the FCM data payload. Clients route on "type"; entry and
// screener events carry the composite score, exit events the realized P&L.
func eventData(event domain.TradeEvent) map[string]string {
	data := map[string]string{
		"type":   event.Type,
		"symbol": event.Symbol,
		"price":  strconv.FormatFloat(event.Price, 'f', -1, 64),
	}
	switch event.Type {
	case "OPEN", "HIGH_SCORE":
		data["score"] = strconv.FormatFloat(event.Score, 'f', 1, 64)
	default:
		data["quantity"] = strconv.FormatFloat(event.Quantity, 'f', -1, 64)
		data["pnl"] = strconv.FormatFloat(event.PnL, 'f', 2, 64)
		data["pnlPct"] = strconv.FormatFloat(event.PnLPct, 'f', 2, 64)
	}
	return data
}

func formatEvent(event domain.TradeEvent) (title, body string) {
	switch event.Type {
	case "OPEN":
		title = fmt.Sprintf("Opened %s", event.Symbol)
		body = fmt.Sprintf("Bought %.6f at %.8f (score %.1f)", event.Quantity, event.Price, event.Score)
	case "HIGH_SCORE":
		title = fmt.Sprintf("%s scored %.1f", event.Symbol, event.Score)
		body = fmt.Sprintf("Price %.8f", event.Price)
	default:
		title = fmt.Sprintf("%s %s", event.Type, event.Symbol)
		body = fmt.Sprintf("Sold %.6f at %.8f, P&L %.2f USDT (%.2f%%)",
			event.Quantity, event.Price, event.PnL, event.PnLPct)
	}
	return title, body
}
