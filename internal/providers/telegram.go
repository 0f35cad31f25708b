package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"safety-telemetry-service/internal/config"
	"safety-telemetry-service/internal/logging"
	"safety-telemetry-service/internal/models"
	"safety-telemetry-service/internal/utils"
)

// Telegram delivers the one-time SOS-raised notification to the response
// channel. It implements services.Notifier.
type Telegram struct {
	cfg     config.Config
	logger  *logging.Logger
	limiter *rate.Limiter
}

func NewTelegram(cfg config.Config, logger *logging.Logger) *Telegram {
	return &Telegram{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.Telegram.RateLimit)), cfg.Telegram.RateLimit),
	}
}

// NotifySOS sends the SOS message for one device. The engine calls this
// exactly once per SOS episode.
func (t *Telegram) NotifySOS(ctx context.Context, device models.Device, reading models.DeviceTelemetry) error {
	if t.cfg.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token not configured")
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit exceeded: %w", err)
	}

	worker := device.WorkerName
	if worker == "" {
		worker = "unknown worker"
	}
	text := fmt.Sprintf(
		"*SOS RAISED*\n"+
			"*Device:* %s\n"+
			"*Worker:* %s\n"+
			"*Temperature:* %.1f\n"+
			"*Gas level:* %.1f\n"+
			"*Battery:* %.0f%%",
		device.ID,
		worker,
		reading.Temperature,
		reading.GasLevel,
		reading.Battery,
	)
	if reading.GPS.Valid {
		text += fmt.Sprintf("\n*Location:* %.6f, %.6f", reading.GPS.Latitude, reading.GPS.Longitude)
	} else {
		text += "\n*Location:* acquiring"
	}

	return utils.Retry(t.logger, 3, time.Second, func() error {
		b, err := bot.New(t.cfg.Telegram.BotToken)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot: %w", err)
		}

		params := &bot.SendMessageParams{
			ChatID:    t.cfg.Telegram.ChatID,
			Text:      text,
			ParseMode: "Markdown",
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", t.cfg.Telegram.ChatID, err)
		}
		return nil
	})
}
