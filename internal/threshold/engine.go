package threshold

import (
	"fmt"

	"example.com/coastwatch/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Engine evaluates readings against a fixed rule set
type Engine struct {
	rules  []models.AlertRule
	byType map[models.DeviceType][]models.AlertRule
}

// NewEngine validates the rules and indexes them by device type
func NewEngine(rules []models.AlertRule) (*Engine, error) {
	e := &Engine{
		rules:  make([]models.AlertRule, 0, len(rules)),
		byType: make(map[models.DeviceType][]models.AlertRule),
	}
	for i, r := range rules {
		if r.ID == "" {
			r.ID = fmt.Sprintf("%s-%s-%s-%d", r.DeviceType, r.Field, r.Condition, i)
		}
		if err := r.Validate(); err != nil {
			return nil, models.NewConfigurationError("", err)
		}
		e.rules = append(e.rules, r)
		e.byType[r.DeviceType] = append(e.byType[r.DeviceType], r)
	}
	return e, nil
}

// Rules returns a copy of the configured rules
func (e *Engine) Rules() []models.AlertRule {
	out := make([]models.AlertRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate returns one event per rule the reading violates
func (e *Engine) Evaluate(reading models.Reading) []models.AlertEvent {
	var events []models.AlertEvent

	for _, rule := range e.byType[reading.DeviceType] {
		value, ok := reading.Numeric(rule.Field)
		if !ok {
			log.Debug().
				Str("device_id", reading.DeviceID).
				Str("field", rule.Field).
				Str("rule_id", rule.ID).
				Msg("Rule field absent or not numeric, skipping")
			continue
		}

		violated, message := check(rule, value)
		if !violated {
			continue
		}

		events = append(events, models.AlertEvent{
			ID:         uuid.New(),
			DeviceID:   reading.DeviceID,
			DeviceType: reading.DeviceType,
			Field:      rule.Field,
			Value:      value,
			Rule:       rule,
			Severity:   rule.Severity,
			Message:    fmt.Sprintf("%s %s %s (%s)", reading.DeviceID, rule.Field, message, rule.Severity),
			Timestamp:  reading.Timestamp,
		})
	}

	return events
}

func check(rule models.AlertRule, value float64) (bool, string) {
	switch rule.Condition {
	case models.ComparisonAbove:
		if value > *rule.Max {
			return true, fmt.Sprintf("%.2f above threshold %.2f", value, *rule.Max)
		}
	case models.ComparisonBelow:
		if value < *rule.Min {
			return true, fmt.Sprintf("%.2f below threshold %.2f", value, *rule.Min)
		}
	case models.ComparisonOutside:
		if value < *rule.Min || value > *rule.Max {
			return true, fmt.Sprintf("%.2f outside range %.2f to %.2f", value, *rule.Min, *rule.Max)
		}
	}
	return false, ""
}

// DefaultRules is the built-in rule set used when none is configured
func DefaultRules() []models.AlertRule {
	f := models.Float
	return []models.AlertRule{
		{ID: "wave-height-high", DeviceType: models.DeviceTypeWave, Field: "height", Max: f(4), Condition: models.ComparisonAbove, Severity: models.SeverityHigh},
		{ID: "wave-height-critical", DeviceType: models.DeviceTypeWave, Field: "height", Max: f(6), Condition: models.ComparisonAbove, Severity: models.SeverityCritical},
		{ID: "tide-level-range", DeviceType: models.DeviceTypeTide, Field: "level", Min: f(-3), Max: f(3), Condition: models.ComparisonOutside, Severity: models.SeverityMedium},
		{ID: "weather-wind-high", DeviceType: models.DeviceTypeWeather, Field: "wind_speed", Max: f(20), Condition: models.ComparisonAbove, Severity: models.SeverityHigh},
		{ID: "weather-rainfall-heavy", DeviceType: models.DeviceTypeWeather, Field: "rainfall", Max: f(10), Condition: models.ComparisonAbove, Severity: models.SeverityMedium},
		{ID: "seismic-magnitude-high", DeviceType: models.DeviceTypeSeismic, Field: "magnitude", Max: f(3), Condition: models.ComparisonAbove, Severity: models.SeverityHigh},
		{ID: "seismic-magnitude-critical", DeviceType: models.DeviceTypeSeismic, Field: "magnitude", Max: f(4), Condition: models.ComparisonAbove, Severity: models.SeverityCritical},
		{ID: "water-ph-range", DeviceType: models.DeviceTypeWaterQuality, Field: "ph", Min: f(7.8), Max: f(8.4), Condition: models.ComparisonOutside, Severity: models.SeverityMedium},
		{ID: "water-oxygen-low", DeviceType: models.DeviceTypeWaterQuality, Field: "dissolved_oxygen", Min: f(5.8), Condition: models.ComparisonBelow, Severity: models.SeverityHigh},
		{ID: "water-turbidity-high", DeviceType: models.DeviceTypeWaterQuality, Field: "turbidity", Max: f(6.5), Condition: models.ComparisonAbove, Severity: models.SeverityLow},
		{ID: "marine-activity-low", DeviceType: models.DeviceTypeMarineLife, Field: "activity_index", Min: f(0.5), Condition: models.ComparisonBelow, Severity: models.SeverityLow},
	}
}
