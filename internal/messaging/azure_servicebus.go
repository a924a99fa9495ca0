package messaging

import (
	"context"
	"encoding/json"
	"time"

	"example.com/coastwatch/config"
	"example.com/coastwatch/internal/models"
	"example.com/coastwatch/internal/notify"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// serviceBusSink publishes alert events to the queue the notification dispatcher drains
type serviceBusSink struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
}

// logSink stands in for the queue when no connection string is configured
type logSink struct{}

// NewAlertSink creates the Service Bus alert sink, or a logging sink for local development
func NewAlertSink(cfg config.AzureConfig) (notify.AlertSink, error) {
	if cfg.ConnectionString == "" {
		log.Warn().Msg("Service Bus connection string not provided, alerts will only be logged")
		return &logSink{}, nil
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &serviceBusSink{client: client, sender: sender, queueName: cfg.QueueName}, nil
}

// NewAlertMessage builds the queue message for an alert; the session keeps a device's alerts ordered
func NewAlertMessage(event models.AlertEvent) (*azservicebus.Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal alert event")
	}

	messageID := event.ID.String()
	sessionID := event.DeviceID
	contentType := "application/json"
	subject := string(event.Severity)

	return &azservicebus.Message{
		Body:        body,
		MessageID:   &messageID,
		SessionID:   &sessionID,
		ContentType: &contentType,
		Subject:     &subject,
		ApplicationProperties: map[string]interface{}{
			"source":      "coastwatch-telemetry",
			"device_type": string(event.DeviceType),
			"severity":    string(event.Severity),
			"time":        event.Timestamp.UTC().Format(time.RFC3339),
		},
	}, nil
}

func (s *serviceBusSink) SendAlert(ctx context.Context, event models.AlertEvent) error {
	msg, err := NewAlertMessage(event)
	if err != nil {
		return err
	}
	if err := s.sender.SendMessage(ctx, msg, nil); err != nil {
		return errors.Wrapf(err, "failed to send alert to queue %s", s.queueName)
	}
	return nil
}

func (s *serviceBusSink) Close() error {
	if s.sender != nil {
		if err := s.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if s.client != nil {
		return s.client.Close(context.Background())
	}
	return nil
}

func (l *logSink) SendAlert(_ context.Context, event models.AlertEvent) error {
	log.Info().
		Str("alert_id", event.ID.String()).
		Str("device_id", event.DeviceID).
		Str("severity", string(event.Severity)).
		Msg(event.Message)
	return nil
}

func (l *logSink) Close() error {
	return nil
}
