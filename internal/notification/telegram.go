package notification

import (
	"context"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/pkg/errors"
	"github.com/qqdog1/ws/pkg/logger"
)

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// TelegramNotifier posts alerts to one Telegram chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier authorizes the bot. A nil client uses http.DefaultClient.
func NewTelegramNotifier(botToken, chatID string, client *http.Client) (*TelegramNotifier, error) {
	if botToken == "" || chatID == "" {
		return nil, errors.New("telegram bot token and chat id are required")
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "chat id is not valid")
	}
	if client == nil {
		client = http.DefaultClient
	}
	bot, err := tgbotapi.NewBotAPIWithClient(botToken, client)
	if err != nil {
		return nil, errors.Wrap(err, "authorize telegram bot")
	}
	logger.GetLogger().WithField("bot", bot.Self.UserName).Info("Telegram notifier authorized")
	return &TelegramNotifier{bot: bot, chatID: id}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, message))
	return errors.Wrap(err, "send telegram message")
}

// LogNotifier writes alerts to the application log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, message string) error {
	logger.GetLogger().WithField("component", "alert").Warn(message)
	return nil
}

// New returns a Telegram notifier when configured and a LogNotifier otherwise.
func New(botToken, chatID string) Notifier {
	if botToken == "" {
		return LogNotifier{}
	}
	n, err := NewTelegramNotifier(botToken, chatID, nil)
	if err != nil {
		logger.GetLogger().WithError(err).Warn("Telegram notifier unavailable, alerts go to the log")
		return LogNotifier{}
	}
	return n
}
