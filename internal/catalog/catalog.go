package catalog

import (
	_ "embed"
	"os"

	"example.com/coastwatch/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed zones.yaml
var defaultZones []byte

type document struct {
	Zones []models.RiskZone `yaml:"zones"`
}

// Load reads the risk zone catalog from path, or the built-in catalog when path is empty
func Load(path string) ([]models.RiskZone, error) {
	data := defaultZones
	source := "embedded"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read risk zone catalog %s", path)
		}
		data, source = b, path
	}

	zones, err := Parse(data)
	if err != nil {
		return nil, err
	}

	log.Info().Str("source", source).Int("zones", len(zones)).Msg("Risk zone catalog loaded")
	return zones, nil
}

// Parse decodes and validates a YAML catalog
func Parse(data []byte) ([]models.RiskZone, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode risk zone catalog")
	}

	seen := make(map[string]struct{}, len(doc.Zones))
	for i, z := range doc.Zones {
		if err := Validate(z); err != nil {
			return nil, errors.Wrapf(err, "zone %d", i)
		}
		if _, ok := seen[z.ID]; ok {
			return nil, errors.Wrapf(models.ErrInvalidRiskZone, "duplicate zone id %q", z.ID)
		}
		seen[z.ID] = struct{}{}
	}
	return doc.Zones, nil
}

// Validate checks a single zone's shape
func Validate(z models.RiskZone) error {
	if z.ID == "" {
		return errors.Wrap(models.ErrInvalidRiskZone, "missing id")
	}
	if len(z.Polygon) < 3 {
		return errors.Wrapf(models.ErrInvalidRiskZone, "%s: polygon needs at least 3 vertices, got %d", z.ID, len(z.Polygon))
	}
	if !z.RiskLevel.Valid() {
		return errors.Wrapf(models.ErrInvalidRiskZone, "%s: unknown risk level %q", z.ID, z.RiskLevel)
	}
	for _, r := range z.EvacuationRoutes {
		if len(r.Path) == 0 {
			return errors.Wrapf(models.ErrInvalidRiskZone, "%s: route %q has no coordinates", z.ID, r.Name)
		}
		if r.Capacity < 0 {
			return errors.Wrapf(models.ErrInvalidRiskZone, "%s: route %q has negative capacity", z.ID, r.Name)
		}
	}
	return nil
}
