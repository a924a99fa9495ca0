package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"example.com/coastwatch/config"
	"example.com/coastwatch/internal/hub"
	"example.com/coastwatch/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(subject string, data []byte) error {
	args := m.Called(subject, data)
	return args.Error(0)
}

func sampleAlert() models.AlertEvent {
	return models.AlertEvent{
		ID:         uuid.New(),
		DeviceID:   "wave-kuta-01",
		DeviceType: models.DeviceTypeWave,
		Field:      "height",
		Value:      4.5,
		Severity:   models.SeverityHigh,
		Message:    "wave-kuta-01 height 4.50 above threshold 4.00 (high)",
		Timestamp:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNewAlertSinkFallsBackToLogging(t *testing.T) {
	sink, err := NewAlertSink(config.AzureConfig{QueueName: "coastal-alerts"})
	require.NoError(t, err)
	require.IsType(t, &logSink{}, sink)
	require.NoError(t, sink.SendAlert(context.Background(), sampleAlert()))
	require.NoError(t, sink.Close())
}

func TestNewAlertMessage(t *testing.T) {
	event := sampleAlert()
	msg, err := NewAlertMessage(event)
	require.NoError(t, err)

	require.Equal(t, event.DeviceID, *msg.SessionID)
	require.Equal(t, event.ID.String(), *msg.MessageID)
	require.Equal(t, "high", msg.ApplicationProperties["severity"])
	require.Equal(t, "2026-01-02T03:04:05Z", msg.ApplicationProperties["time"])

	var decoded models.AlertEvent
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	require.Equal(t, event.ID, decoded.ID)
	require.Equal(t, 4.5, decoded.Value)
}

func TestNATSBridgePublishesEnvelopes(t *testing.T) {
	pub := new(MockPublisher)
	bridge := NewNATSBridgeWithPublisher(pub, "coastal.telemetry")

	env := models.Envelope{Reading: models.Reading{
		DeviceID:   "tide.benoa 01",
		DeviceType: models.DeviceTypeTide,
		Data:       models.TideData{Level: 1.1},
	}}
	pub.On("Publish", "coastal.telemetry.tide.tide_benoa_01", mock.MatchedBy(func(data []byte) bool {
		var decoded map[string]any
		return json.Unmarshal(data, &decoded) == nil && decoded["kind"] == hub.KindReading
	})).Return(nil).Once()

	require.NoError(t, bridge.Handle(context.Background(), hub.Message{Kind: hub.KindReading, Payload: env}))
	require.NoError(t, bridge.Handle(context.Background(), hub.Message{Kind: "other", Payload: 42}))
	require.NoError(t, bridge.Close())
	pub.AssertExpectations(t)
}
