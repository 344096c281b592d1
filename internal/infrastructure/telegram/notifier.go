package telegram

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier sends trade and screening alerts to one Telegram chat. A failed
// bot setup degrades to a disabled notifier instead of blocking startup.
type Notifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	enabled bool
}

func NewNotifier(botToken string, chatID int64, enabled bool) *Notifier {
	if !enabled {
		return &Notifier{enabled: false}
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		log.Printf("failed to create telegram bot: %v", err)
		return &Notifier{enabled: false}
	}

	log.Printf("telegram bot connected: %s", bot.Self.UserName)

	return &Notifier{
		bot:     bot,
		chatID:  chatID,
		enabled: true,
	}
}

func (n *Notifier) IsEnabled() bool {
	return n.enabled
}

// Send delivers one markdown message, best effort.
func (n *Notifier) Send(text string) {
	if !n.enabled {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		log.Printf("send telegram message: %v", err)
	}
}

func (n *Notifier) NotifyOpen(symbol string, price, quantity, score float64) {
	n.Send(fmt.Sprintf("🟢 *BUY* %s\nPrice: %.8f\nQty: %.6f\nScore: %.1f",
		symbol, price, quantity, score))
}

func (n *Notifier) NotifyClose(kind, symbol string, price, quantity, pnl float64) {
	emoji := "🔴"
	if pnl > 0 {
		emoji = "💰"
	}
	n.Send(fmt.Sprintf("%s *%s* %s\nPrice: %.8f\nQty: %.6f\nP&L: %.2f USDT",
		emoji, kind, symbol, price, quantity, pnl))
}

func (n *Notifier) NotifyHighScore(symbol string, price, score float64) {
	n.Send(fmt.Sprintf("📈 *%s* scored %.1f\nPrice: %.8f", symbol, score, price))
}
