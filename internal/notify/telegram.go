package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aatumaykin/habitflow/internal/logger"
	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
)

// TelegramConfig configures the Telegram bot sender.
type TelegramConfig struct {
	Token          string
	SendTimeoutSec int
}

// botAPI is the part of telego.Bot the sender needs.
type botAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// TelegramSender delivers reminders as bot messages to User.TelegramChatID.
type TelegramSender struct {
	bot     botAPI
	timeout time.Duration
	logger  *logger.Logger
}

func NewTelegramSender(cfg TelegramConfig, log *logger.Logger) (*TelegramSender, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newTelegramSender(bot, cfg.SendTimeoutSec, log), nil
}

func newTelegramSender(bot botAPI, timeoutSec int, log *logger.Logger) *TelegramSender {
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TelegramSender{bot: bot, timeout: time.Duration(timeoutSec) * time.Second, logger: log}
}

func (s *TelegramSender) Name() string { return "telegram" }

// Send delivers the HTML markup. When Telegram cannot parse it the same
// message goes out once more as plain text.
func (s *TelegramSender) Send(ctx context.Context, msg Message) error {
	if msg.To.ChatID == 0 {
		return fmt.Errorf("%w: telegram chat id", ErrNoRecipient)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: msg.To.ChatID},
		Text:      msg.Markup,
		ParseMode: telego.ModeHTML,
	}
	if msg.Markup == "" {
		params.Text = msg.Text
		params.ParseMode = ""
	}

	_, err := s.bot.SendMessage(sendCtx, params)
	if err != nil && params.ParseMode != "" && isParseError(err) {
		s.logger.WarnCtx(ctx, "telegram parse error, sending plain text",
			logger.Field{Key: "chat_id", Value: msg.To.ChatID},
			logger.Field{Key: "error", Value: err.Error()})

		params.Text = msg.Text
		params.ParseMode = ""
		_, err = s.bot.SendMessage(sendCtx, params)
	}
	if err == nil {
		return nil
	}

	if isBadRequest(err) {
		return fmt.Errorf("%w: telegram chat %d: %w", ErrMessageRejected, msg.To.ChatID, err)
	}
	return fmt.Errorf("telegram send to %d: %w", msg.To.ChatID, err)
}

func isBadRequest(err error) bool {
	var telErr *telegoapi.Error
	return errors.As(err, &telErr) && telErr.ErrorCode == 400
}

func isParseError(err error) bool {
	var telErr *telegoapi.Error
	if !errors.As(err, &telErr) || telErr.ErrorCode != 400 {
		return false
	}
	desc := strings.ToLower(telErr.Description)
	return strings.Contains(desc, "can't parse entities") ||
		strings.Contains(desc, "can't find end of the entity") ||
		strings.Contains(desc, "wrong number of entities") ||
		strings.Contains(desc, "unsupported start tag")
}
