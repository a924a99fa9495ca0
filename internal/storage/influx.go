package storage

import (
	"context"

	"example.com/coastwatch/config"
	"example.com/coastwatch/internal/hub"
	"example.com/coastwatch/internal/models"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog/log"
)

// InfluxRecorder archives readings as InfluxDB points
type InfluxRecorder struct {
	client influxdb2.Client
	writer api.WriteAPI
}

// NewInfluxRecorder creates a recorder with a non-blocking write API
func NewInfluxRecorder(cfg config.InfluxConfig) *InfluxRecorder {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writer := client.WriteAPI(cfg.Org, cfg.Bucket)

	go func() {
		for err := range writer.Errors() {
			log.Error().Err(err).Msg("InfluxDB write error")
		}
	}()

	return &InfluxRecorder{client: client, writer: writer}
}

// ReadingPoint converts a reading into a point; measurement is the device type
func ReadingPoint(r models.Reading) *write.Point {
	p := influxdb2.NewPointWithMeasurement(string(r.DeviceType)).
		AddTag("device_id", r.DeviceID).
		AddTag("quality", string(r.Quality)).
		AddField("battery", r.Battery).
		AddField("signal", r.Signal).
		SetTime(r.Timestamp)

	for name, value := range r.NumericFields() {
		p.AddField(name, value)
	}
	return p
}

// Handle writes envelopes arriving from the hub
func (r *InfluxRecorder) Handle(_ context.Context, msg hub.Message) error {
	env, ok := msg.Payload.(models.Envelope)
	if !ok {
		return nil
	}
	r.writer.WritePoint(ReadingPoint(env.Reading))
	return nil
}

// Close flushes pending points and closes the client
func (r *InfluxRecorder) Close() {
	r.writer.Flush()
	r.client.Close()
}
