package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/cyclescope-go/internal/models"
	"github.com/irfndi/cyclescope-go/internal/telemetry"
)

// TelegramNotifier delivers cycle alerts through the Telegram Bot API.
type TelegramNotifier struct {
	bot           *bot.Bot
	logger        *logrus.Logger
	tracer        *telemetry.EngineTracer
	errorRecovery *ErrorRecoveryManager
}

// NewTelegramNotifier creates a notifier for the given bot token. The error
// recovery manager is optional; with one attached, sends run through the
// telegram_send policy and its circuit breaker.
func NewTelegramNotifier(botToken string, errorRecovery *ErrorRecoveryManager, logger *logrus.Logger) (*TelegramNotifier, error) {
	if botToken == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	if logger == nil {
		logger = logrus.New()
	}

	b, err := bot.New(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:           b,
		logger:        logger,
		tracer:        telemetry.NewEngineTracer(),
		errorRecovery: errorRecovery,
	}, nil
}

// SendAlert pushes one formatted alert to a chat.
func (tn *TelegramNotifier) SendAlert(ctx context.Context, chatID int64, alert *models.CycleAlert) error {
	ctx, span := tn.tracer.TraceNotification(ctx, alert.Kind, "telegram")
	defer span.End()

	send := func() (interface{}, error) {
		// Alert messages are plain text, no parse mode needed.
		return tn.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   alert.Message(),
		})
	}

	var err error
	if tn.errorRecovery != nil {
		result := tn.errorRecovery.ExecuteWithRecovery(ctx, "telegram_send", send, nil)
		if !result.Success {
			err = result.Error
		}
	} else {
		_, err = send()
	}

	tn.tracer.RecordNotificationResult(span, err == nil, 1, err)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	tn.logger.WithFields(logrus.Fields{
		"symbol":  alert.Symbol,
		"kind":    alert.Kind,
		"chat_id": chatID,
	}).Info("Cycle alert delivered")
	return nil
}
