package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Comparison is how a rule compares a field against its bounds
type Comparison string

const (
	ComparisonAbove   Comparison = "above"
	ComparisonBelow   Comparison = "below"
	ComparisonOutside Comparison = "outside"
)

// Severity of an alert
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// AlertRule is a statically configured threshold on one field of one device type
type AlertRule struct {
	ID         string     `json:"id" mapstructure:"id"`
	DeviceType DeviceType `json:"device_type" mapstructure:"device_type"`
	Field      string     `json:"field" mapstructure:"field"`
	Min        *float64   `json:"min,omitempty" mapstructure:"min"`
	Max        *float64   `json:"max,omitempty" mapstructure:"max"`
	Condition  Comparison `json:"condition" mapstructure:"condition"`
	Severity   Severity   `json:"severity" mapstructure:"severity"`
}

// Validate checks the rule carries the bounds its comparison needs
func (r AlertRule) Validate() error {
	if !r.DeviceType.Valid() {
		return errors.Wrapf(ErrInvalidRule, "rule %s: unknown device type %q", r.ID, r.DeviceType)
	}
	if r.Field == "" {
		return errors.Wrapf(ErrInvalidRule, "rule %s: field is required", r.ID)
	}
	if !r.Severity.Valid() {
		return errors.Wrapf(ErrInvalidRule, "rule %s: unknown severity %q", r.ID, r.Severity)
	}

	switch r.Condition {
	case ComparisonAbove:
		if r.Max == nil {
			return errors.Wrapf(ErrInvalidRule, "rule %s: above requires max", r.ID)
		}
	case ComparisonBelow:
		if r.Min == nil {
			return errors.Wrapf(ErrInvalidRule, "rule %s: below requires min", r.ID)
		}
	case ComparisonOutside:
		if r.Min == nil || r.Max == nil {
			return errors.Wrapf(ErrInvalidRule, "rule %s: outside requires min and max", r.ID)
		}
		if *r.Min > *r.Max {
			return errors.Wrapf(ErrInvalidRule, "rule %s: min greater than max", r.ID)
		}
	default:
		return errors.Wrapf(ErrInvalidRule, "rule %s: unknown condition %q", r.ID, r.Condition)
	}
	return nil
}

// AlertEvent is emitted once per violated rule per reading
type AlertEvent struct {
	ID         uuid.UUID  `json:"id"`
	DeviceID   string     `json:"device_id"`
	DeviceType DeviceType `json:"device_type"`
	Field      string     `json:"field"`
	Value      float64    `json:"value"`
	Rule       AlertRule  `json:"rule"`
	Severity   Severity   `json:"severity"`
	Message    string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Envelope pairs a reading with the alerts it raised
type Envelope struct {
	Reading Reading      `json:"reading"`
	Alerts  []AlertEvent `json:"alerts"`
}

// Float returns a pointer to v, for building rule bounds
func Float(v float64) *float64 {
	return &v
}
