package maintenance

import (
	"context"
	"time"

	"example.com/coastwatch/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Source supplies the latest known service date per device
type Source interface {
	LatestServiceDates(ctx context.Context) (map[string]time.Time, error)
}

// Target is the device owner that accepts new service dates
type Target interface {
	Device(id string) (models.DeviceConfig, error)
	RecordService(id string, at time.Time) (models.DeviceConfig, error)
}

// Syncer copies service dates from the maintenance database into the running fleet
type Syncer struct {
	source Source
	target Target
}

// NewSyncer creates a new syncer
func NewSyncer(source Source, target Target) *Syncer {
	return &Syncer{source: source, target: target}
}

// Sync applies every service date newer than the one the device already has and returns how many changed
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	dates, err := s.source.LatestServiceDates(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to load service dates")
	}

	updated := 0
	for id, at := range dates {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		cfg, err := s.target.Device(id)
		if err != nil {
			if errors.Is(err, models.ErrUnknownDevice) {
				log.Debug().Str("device_id", id).Msg("Service record for unregistered device")
				continue
			}
			return updated, err
		}
		if !at.After(cfg.LastService) {
			continue
		}

		if _, err := s.target.RecordService(id, at); err != nil {
			log.Error().Err(err).Str("device_id", id).Msg("Failed to apply service date")
			continue
		}
		updated++
	}

	log.Info().Int("records", len(dates)).Int("updated", updated).Msg("Service dates synchronised")
	return updated, nil
}

// Run adapts Sync to a scheduled job
func (s *Syncer) Run(ctx context.Context) {
	if _, err := s.Sync(ctx); err != nil {
		log.Error().Err(err).Msg("Service date sync failed")
	}
}
