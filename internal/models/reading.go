package models

import (
	"time"
)

// Quality is a coarse confidence label on a reading
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
)

// QualityForServiceAge grades a reading by how long ago the device was serviced
func QualityForServiceAge(days int) Quality {
	switch {
	case days > 30:
		return QualityPoor
	case days > 14:
		return QualityFair
	case days > 7:
		return QualityGood
	default:
		return QualityExcellent
	}
}

// ReadingData is the device-type-specific payload of a reading.
// Value looks a field up by its wire name; unknown names report false.
type ReadingData interface {
	Kind() DeviceType
	Value(field string) (any, bool)
}

// Reading is one synthesized sample from one device
type Reading struct {
	DeviceID   string      `json:"device_id"`
	DeviceType DeviceType  `json:"device_type"`
	Timestamp  time.Time   `json:"timestamp"`
	Quality    Quality     `json:"quality"`
	Battery    float64     `json:"battery"`
	Signal     float64     `json:"signal"`
	Data       ReadingData `json:"data"`
}

// Field returns the raw value of a named field
func (r Reading) Field(name string) (any, bool) {
	if r.Data == nil {
		return nil, false
	}
	return r.Data.Value(name)
}

// Numeric returns a named field as float64; text and boolean fields report false
func (r Reading) Numeric(name string) (float64, bool) {
	v, ok := r.Field(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// NumericFields returns every numeric field of the reading keyed by name
func (r Reading) NumericFields() map[string]float64 {
	fields := make(map[string]float64)
	if r.Data == nil {
		return fields
	}
	for _, name := range FieldNames(r.Data.Kind()) {
		if v, ok := r.Numeric(name); ok {
			fields[name] = v
		}
	}
	return fields
}

// FieldNames lists the wire field names of a device type's reading schema
func FieldNames(t DeviceType) []string {
	switch t {
	case DeviceTypeWave:
		return []string{"height", "period", "direction", "energy"}
	case DeviceTypeTide:
		return []string{"level", "flow", "temperature", "rising"}
	case DeviceTypeWeather:
		return []string{"temperature", "humidity", "pressure", "wind_speed", "wind_direction", "rainfall", "condition"}
	case DeviceTypeSeismic:
		return []string{"magnitude", "depth", "peak_acceleration", "spike"}
	case DeviceTypeWaterQuality:
		return []string{"ph", "dissolved_oxygen", "turbidity", "salinity", "nitrate", "phosphate"}
	case DeviceTypeMarineLife:
		return []string{"species_count", "activity_index", "water_temperature", "acoustic_detections", "dominant_species"}
	}
	return nil
}

type WaveData struct {
	Height    float64 `json:"height"`
	Period    float64 `json:"period"`
	Direction float64 `json:"direction"`
	Energy    float64 `json:"energy"`
}

func (WaveData) Kind() DeviceType { return DeviceTypeWave }

func (d WaveData) Value(field string) (any, bool) {
	switch field {
	case "height":
		return d.Height, true
	case "period":
		return d.Period, true
	case "direction":
		return d.Direction, true
	case "energy":
		return d.Energy, true
	}
	return nil, false
}

type TideData struct {
	Level       float64 `json:"level"`
	Flow        float64 `json:"flow"`
	Temperature float64 `json:"temperature"`
	Rising      bool    `json:"rising"`
}

func (TideData) Kind() DeviceType { return DeviceTypeTide }

func (d TideData) Value(field string) (any, bool) {
	switch field {
	case "level":
		return d.Level, true
	case "flow":
		return d.Flow, true
	case "temperature":
		return d.Temperature, true
	case "rising":
		return d.Rising, true
	}
	return nil, false
}

type WeatherData struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	Pressure      float64 `json:"pressure"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection float64 `json:"wind_direction"`
	Rainfall      float64 `json:"rainfall"`
	Condition     string  `json:"condition"`
}

func (WeatherData) Kind() DeviceType { return DeviceTypeWeather }

func (d WeatherData) Value(field string) (any, bool) {
	switch field {
	case "temperature":
		return d.Temperature, true
	case "humidity":
		return d.Humidity, true
	case "pressure":
		return d.Pressure, true
	case "wind_speed":
		return d.WindSpeed, true
	case "wind_direction":
		return d.WindDirection, true
	case "rainfall":
		return d.Rainfall, true
	case "condition":
		return d.Condition, true
	}
	return nil, false
}

type SeismicData struct {
	Magnitude        float64 `json:"magnitude"`
	Depth            float64 `json:"depth"`
	PeakAcceleration float64 `json:"peak_acceleration"`
	Spike            bool    `json:"spike"`
}

func (SeismicData) Kind() DeviceType { return DeviceTypeSeismic }

func (d SeismicData) Value(field string) (any, bool) {
	switch field {
	case "magnitude":
		return d.Magnitude, true
	case "depth":
		return d.Depth, true
	case "peak_acceleration":
		return d.PeakAcceleration, true
	case "spike":
		return d.Spike, true
	}
	return nil, false
}

type WaterQualityData struct {
	PH              float64 `json:"ph"`
	DissolvedOxygen float64 `json:"dissolved_oxygen"`
	Turbidity       float64 `json:"turbidity"`
	Salinity        float64 `json:"salinity"`
	Nitrate         float64 `json:"nitrate"`
	Phosphate       float64 `json:"phosphate"`
}

func (WaterQualityData) Kind() DeviceType { return DeviceTypeWaterQuality }

func (d WaterQualityData) Value(field string) (any, bool) {
	switch field {
	case "ph":
		return d.PH, true
	case "dissolved_oxygen":
		return d.DissolvedOxygen, true
	case "turbidity":
		return d.Turbidity, true
	case "salinity":
		return d.Salinity, true
	case "nitrate":
		return d.Nitrate, true
	case "phosphate":
		return d.Phosphate, true
	}
	return nil, false
}

type MarineLifeData struct {
	SpeciesCount       int     `json:"species_count"`
	ActivityIndex      float64 `json:"activity_index"`
	WaterTemperature   float64 `json:"water_temperature"`
	AcousticDetections int     `json:"acoustic_detections"`
	DominantSpecies    string  `json:"dominant_species"`
}

func (MarineLifeData) Kind() DeviceType { return DeviceTypeMarineLife }

func (d MarineLifeData) Value(field string) (any, bool) {
	switch field {
	case "species_count":
		return d.SpeciesCount, true
	case "activity_index":
		return d.ActivityIndex, true
	case "water_temperature":
		return d.WaterTemperature, true
	case "acoustic_detections":
		return d.AcousticDetections, true
	case "dominant_species":
		return d.DominantSpecies, true
	}
	return nil, false
}
