package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"safety-telemetry-service/internal/config"
	"safety-telemetry-service/internal/logging"
	"safety-telemetry-service/internal/metrics"
	"safety-telemetry-service/internal/models"
	"safety-telemetry-service/internal/services"
)

// Consumer reads the two inbound streams: per-device telemetry readings and
// pushed alert records. Both feed the fusion engine; a malformed message is
// logged and skipped, never fatal.
type Consumer struct {
	telemetry *kafka.Reader
	alerts    *kafka.Reader
	engine    *services.Engine
	logger    *logging.Logger
}

func NewConsumer(cfg config.Config, engine *services.Engine, logger *logging.Logger) *Consumer {
	return &Consumer{
		telemetry: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  []string{cfg.Kafka.Broker},
			Topic:    cfg.Kafka.TelemetryTopic,
			GroupID:  cfg.Kafka.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  500 * time.Millisecond,
		}),
		alerts: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  []string{cfg.Kafka.Broker},
			Topic:    cfg.Kafka.AlertTopic,
			GroupID:  cfg.Kafka.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  500 * time.Millisecond,
		}),
		engine: engine,
		logger: logger,
	}
}

// Start launches one goroutine per stream. Both stop when ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.logger.Infof("Telemetry consumer started on topic %s", c.telemetry.Config().Topic)
		c.consumeTelemetry(ctx)
	}()
	go func() {
		defer wg.Done()
		c.logger.Infof("Alert consumer started on topic %s", c.alerts.Config().Topic)
		c.consumeAlerts(ctx)
	}()
}

func (c *Consumer) consumeTelemetry(ctx context.Context) {
	for {
		msg, err := c.telemetry.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Errorf("Read telemetry message failed: %v", err)
			continue
		}

		reading, err := models.DecodeTelemetry(msg.Value)
		if err != nil {
			metrics.MalformedEvents.Inc()
			c.logger.Errorf("Drop unparseable telemetry message: %v", err)
			continue
		}
		if reading.DeviceID == "" {
			// fall back to the message key for the device id
			reading.DeviceID = string(msg.Key)
		}

		if err := c.engine.HandleTelemetry(reading); err != nil {
			c.logger.Errorf("Drop telemetry message: %v", err)
		}
	}
}

// alertEvent is the wire shape of a pushed alert record.
type alertEvent struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"deviceId"`
	WorkerID  string    `json:"workerId"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	Escalated bool      `json:"escalated"`
	Priority  int       `json:"priority"`
}

func (c *Consumer) consumeAlerts(ctx context.Context) {
	for {
		msg, err := c.alerts.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Errorf("Read alert message failed: %v", err)
			continue
		}

		var ev alertEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			metrics.MalformedEvents.Inc()
			c.logger.Errorf("Drop unparseable alert message: %v", err)
			continue
		}
		if ev.ID == "" || ev.DeviceID == "" {
			metrics.MalformedEvents.Inc()
			c.logger.Errorf("Invalid alert message: missing id or deviceId")
			continue
		}

		status := models.AlertStatus(ev.Status)
		if status == "" {
			status = models.AlertPending
		}
		c.engine.HandleAlertPush(models.Alert{
			ID:        ev.ID,
			DeviceID:  ev.DeviceID,
			WorkerID:  ev.WorkerID,
			Type:      ev.Type,
			Severity:  ev.Severity,
			Status:    status,
			CreatedAt: ev.CreatedAt,
			Escalated: ev.Escalated,
			Priority:  ev.Priority,
		})
	}
}

func (c *Consumer) Close() {
	if err := c.telemetry.Close(); err != nil {
		c.logger.Errorf("Close telemetry reader failed: %v", err)
	}
	if err := c.alerts.Close(); err != nil {
		c.logger.Errorf("Close alert reader failed: %v", err)
	}
}
