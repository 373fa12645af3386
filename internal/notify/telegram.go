package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rivalwatch/internal/monitoring"
	"rivalwatch/pkg/retry"
)

// MessageSender is the part of *tgbotapi.BotAPI the channel uses.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel posts a short alert digest to one chat.
type TelegramChannel struct {
	bot    MessageSender
	chatID int64
	policy retry.Policy
}

func NewTelegramChannel(bot MessageSender, chatID int64, policy retry.Policy) *TelegramChannel {
	return &TelegramChannel{bot: bot, chatID: chatID, policy: policy}
}

// NewTelegramBot logs in with token. It calls getMe, so it needs network.
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return bot, nil
}

func (t *TelegramChannel) Name() string {
	return "telegram"
}

func (t *TelegramChannel) Send(ctx context.Context, result *monitoring.MonitoringResult) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatAlert(result))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	err := retry.Retry(ctx, t.policy, func() error {
		_, err := t.bot.Send(msg)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram alert for %s: %w", result.Keyword, err)
	}
	return nil
}

// FormatAlert renders a result as Telegram HTML.
func FormatAlert(result *monitoring.MonitoringResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 <b>%s</b> competitor alert\n", html.EscapeString(result.Keyword))
	fmt.Fprintf(&b, "<i>%s</i>\n", result.CheckedAt.Format("2006-01-02 15:04 MST"))

	event := alertEvent(result)
	for _, c := range event.Competitors {
		if !c.Alerts {
			continue
		}
		fmt.Fprintf(&b, "\n<b>%s</b>", html.EscapeString(c.Competitor))
		if c.Provenance == string(monitoring.ProvenanceFallback) {
			b.WriteString(" (fallback data)")
		}
		b.WriteString("\n")
		if c.PriceChanges > 0 {
			fmt.Fprintf(&b, "• price changes: %d (max %+.2f%%)\n", c.PriceChanges, c.MaxPriceChangePercent)
		}
		if c.RankChanges > 0 {
			fmt.Fprintf(&b, "• rank changes: %d\n", c.RankChanges)
		}
		if c.ReviewChanges > 0 {
			fmt.Fprintf(&b, "• review changes: %d\n", c.ReviewChanges)
		}
		if c.NewProducts > 0 {
			fmt.Fprintf(&b, "• new products: %d\n", c.NewProducts)
		}
	}

	return b.String()
}
