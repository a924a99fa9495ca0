package models

import (
	"time"

	"example.com/coastwatch/internal/geo"
)

// DeviceType identifies the kind of telemetry source
type DeviceType string

const (
	DeviceTypeWave         DeviceType = "wave"
	DeviceTypeTide         DeviceType = "tide"
	DeviceTypeWeather      DeviceType = "weather"
	DeviceTypeSeismic      DeviceType = "seismic"
	DeviceTypeWaterQuality DeviceType = "water_quality"
	DeviceTypeMarineLife   DeviceType = "marine_life"
)

// DeviceTypes lists every supported device type
var DeviceTypes = []DeviceType{
	DeviceTypeWave,
	DeviceTypeTide,
	DeviceTypeWeather,
	DeviceTypeSeismic,
	DeviceTypeWaterQuality,
	DeviceTypeMarineLife,
}

// Valid reports whether t is a known device type
func (t DeviceType) Valid() bool {
	for _, known := range DeviceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Location is where a device is deployed
type Location struct {
	Lat  float64 `json:"lat" mapstructure:"lat" validate:"gte=-90,lte=90"`
	Lon  float64 `json:"lon" mapstructure:"lon" validate:"gte=-180,lte=180"`
	Name string  `json:"name" mapstructure:"name"`
}

// Point returns the location as a geo point
func (l Location) Point() geo.Point {
	return geo.Point{Lat: l.Lat, Lon: l.Lon}
}

// DeviceConfig is the registry's record of a telemetry source
type DeviceConfig struct {
	ID              string     `json:"id" mapstructure:"id" validate:"required"`
	Type            DeviceType `json:"type" mapstructure:"type" validate:"required,device_type"`
	Location        Location   `json:"location" mapstructure:"location"`
	IntervalSeconds float64    `json:"interval_seconds" mapstructure:"interval_seconds"`
	Active          bool       `json:"active" mapstructure:"active"`
	LastService     time.Time  `json:"last_service" mapstructure:"last_service"`
}

// Interval returns the sampling interval as a duration
func (c DeviceConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds * float64(time.Second))
}

// DaysSinceService returns the whole days elapsed between the last service and now
func (c DeviceConfig) DaysSinceService(now time.Time) int {
	if c.LastService.IsZero() || now.Before(c.LastService) {
		return 0
	}
	return int(now.Sub(c.LastService).Hours() / 24)
}

// DevicePatch is a partial DeviceConfig; nil fields are left untouched
type DevicePatch struct {
	Type            *DeviceType `json:"type,omitempty" validate:"omitempty,device_type"`
	Location        *Location   `json:"location,omitempty"`
	IntervalSeconds *float64    `json:"interval_seconds,omitempty"`
	Active          *bool       `json:"active,omitempty"`
	LastService     *time.Time  `json:"last_service,omitempty"`
}

// Apply returns cfg with the patch applied
func (p DevicePatch) Apply(cfg DeviceConfig) DeviceConfig {
	if p.Type != nil {
		cfg.Type = *p.Type
	}
	if p.Location != nil {
		cfg.Location = *p.Location
	}
	if p.IntervalSeconds != nil {
		cfg.IntervalSeconds = *p.IntervalSeconds
	}
	if p.Active != nil {
		cfg.Active = *p.Active
	}
	if p.LastService != nil {
		cfg.LastService = *p.LastService
	}
	return cfg
}
