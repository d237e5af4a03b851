// Package notify formats habit reminders and hands them to a delivery
// transport. Delivery failures are reported to the caller and logged; they
// never affect the recurring job that triggered them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aatumaykin/habitflow/internal/logger"
)

var (
	// ErrDispatch wraps every failed delivery.
	ErrDispatch = errors.New("reminder dispatch failed")

	// ErrNoRecipient is returned when the user has no address for the sender.
	ErrNoRecipient = errors.New("no recipient address")

	// ErrMessageRejected is returned when the transport refused this
	// particular message while the transport itself is healthy.
	ErrMessageRejected = errors.New("message rejected")
)

// Sender delivers a rendered message.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Config selects and configures the sender.
type Config struct {
	Transport string // smtp, telegram, log
	SMTP      SMTPConfig
	Telegram  TelegramConfig
}

// NewSender builds the sender named by cfg.Transport.
func NewSender(cfg Config, log *logger.Logger) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case "smtp":
		return NewSMTPSender(cfg.SMTP), nil
	case "telegram":
		s, err := NewTelegramSender(cfg.Telegram, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "log", "":
		return NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("unknown notify transport: %s", cfg.Transport)
	}
}

// LogSender writes reminders to the log instead of delivering them.
type LogSender struct {
	logger *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{logger: log}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoCtx(ctx, "reminder",
		logger.Field{Key: "to", Value: msg.To.Email},
		logger.Field{Key: "subject", Value: msg.Subject},
		logger.Field{Key: "text", Value: msg.Text})
	return nil
}
