package messaging

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"example.com/coastwatch/config"
	"example.com/coastwatch/internal/hub"
	"example.com/coastwatch/internal/models"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Publisher is the subset of a NATS connection the bridge needs
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSBridge republishes hub envelopes on per-device NATS subjects
type NATSBridge struct {
	conn      *nats.Conn
	publisher Publisher
	prefix    string
}

// NewNATSBridge connects to NATS
func NewNATSBridge(cfg config.NATSConfig) (*NATSBridge, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("coastwatch-telemetry"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to NATS")
	}

	return &NATSBridge{conn: conn, publisher: conn, prefix: cfg.SubjectPrefix}, nil
}

// NewNATSBridgeWithPublisher builds a bridge on an existing publisher
func NewNATSBridgeWithPublisher(p Publisher, prefix string) *NATSBridge {
	return &NATSBridge{publisher: p, prefix: prefix}
}

// Subject returns the subject an envelope from the device is published on
func (b *NATSBridge) Subject(deviceType models.DeviceType, deviceID string) string {
	token := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(deviceID)
	return b.prefix + "." + string(deviceType) + "." + token
}

// Handle publishes one hub message; it is meant to run under hub.Forward
func (b *NATSBridge) Handle(_ context.Context, msg hub.Message) error {
	env, ok := msg.Payload.(models.Envelope)
	if !ok {
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal envelope")
	}
	subject := b.Subject(env.Reading.DeviceType, env.Reading.DeviceID)
	if err := b.publisher.Publish(subject, data); err != nil {
		return errors.Wrapf(err, "failed to publish to %s", subject)
	}
	return nil
}

// Close drains and closes the connection
func (b *NATSBridge) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Drain()
}
