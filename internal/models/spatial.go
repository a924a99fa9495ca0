package models

import (
	"time"

	"example.com/coastwatch/internal/geo"
	"github.com/google/uuid"
)

// RiskLevel is the qualitative risk of a zone or cluster
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Weight is the proximity scoring weight of a risk level
func (l RiskLevel) Weight() float64 {
	switch l {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	}
	return 0
}

// Valid reports whether l is a known risk level
func (l RiskLevel) Valid() bool {
	return l.Weight() > 0
}

// EvacuationRoute is a named path out of a risk zone
type EvacuationRoute struct {
	Name     string      `json:"name" yaml:"name"`
	Path     []geo.Point `json:"path" yaml:"path"`
	Capacity int         `json:"capacity" yaml:"capacity"`
}

// RiskZone is a static named polygon with evacuation routes
type RiskZone struct {
	ID               string            `json:"id" yaml:"id"`
	Name             string            `json:"name" yaml:"name"`
	Polygon          []geo.Point       `json:"polygon" yaml:"polygon"`
	RiskLevel        RiskLevel         `json:"risk_level" yaml:"risk_level"`
	RiskFactors      []string          `json:"risk_factors" yaml:"risk_factors"`
	EvacuationRoutes []EvacuationRoute `json:"evacuation_routes" yaml:"evacuation_routes"`
}

// ReferencePoint is the vertex used for proximity lookups
func (z RiskZone) ReferencePoint() geo.Point {
	if len(z.Polygon) == 0 {
		return geo.Point{}
	}
	return z.Polygon[0]
}

// LocationEvent is a geo-tagged observation fed to the spatial analytics
type LocationEvent struct {
	Lat       float64   `json:"lat" validate:"gte=-90,lte=90"`
	Lon       float64   `json:"lon" validate:"gte=-180,lte=180"`
	Timestamp time.Time `json:"timestamp"`
}

// Point returns the event position
func (e LocationEvent) Point() geo.Point {
	return geo.Point{Lat: e.Lat, Lon: e.Lon}
}

// LocationCluster is one result of a clustering run
type LocationCluster struct {
	ID           uuid.UUID `json:"id"`
	Centroid     geo.Point `json:"centroid"`
	RadiusKm     float64   `json:"radius_km"`
	RiskLevel    RiskLevel `json:"risk_level"`
	PointCount   int       `json:"point_count"`
	LastActivity time.Time `json:"last_activity"`
}

// NearbyZone is a risk zone found within a proximity query radius
type NearbyZone struct {
	ZoneID      string    `json:"zone_id"`
	Name        string    `json:"name"`
	RiskLevel   RiskLevel `json:"risk_level"`
	RiskFactors []string  `json:"risk_factors"`
	DistanceKm  float64   `json:"distance_km"`
	Inside      bool      `json:"inside"`
}

// ProximityReport scores a location against the risk zone catalog
type ProximityReport struct {
	Location        geo.Point    `json:"location"`
	RadiusKm        float64      `json:"radius_km"`
	RiskScore       int          `json:"risk_score"`
	NearbyZones     []NearbyZone `json:"nearby_zones"`
	Recommendations []string     `json:"recommendations"`
}

// RouteOption is an evacuation route ranked against a query point
type RouteOption struct {
	ZoneID           string      `json:"zone_id"`
	ZoneName         string      `json:"zone_name"`
	Name             string      `json:"name"`
	DistanceKm       float64     `json:"distance_km"`
	EstimatedMinutes int         `json:"estimated_minutes"`
	Capacity         int         `json:"capacity"`
	Path             []geo.Point `json:"path"`
}

// Congestion levels reported by evacuation planning
const (
	CongestionLow      = "low"
	CongestionModerate = "moderate"
	CongestionHigh     = "high"
	CongestionUnknown  = "unknown"
)

// EvacuationPlan is the nearest route plus nearby alternatives
type EvacuationPlan struct {
	NearestRoute *RouteOption  `json:"nearest_route"`
	Alternatives []RouteOption `json:"alternatives"`
	Congestion   string        `json:"congestion"`
}

// Heatmap is a grid of normalised event density over a bounding box
type Heatmap struct {
	Bounds   geo.BoundingBox `json:"bounds"`
	Rows     int             `json:"rows"`
	Cols     int             `json:"cols"`
	Cells    [][]float64     `json:"cells"`
	MaxCount int             `json:"max_count"`
}
