package spatial

import (
	"fmt"
	"math"
	"sort"

	"example.com/coastwatch/internal/geo"
	"example.com/coastwatch/internal/models"
)

const (
	maxRiskScore          = 100
	scoreScale            = 20.0
	evacuationBand        = 70
	awarenessBand         = 40
	alternativeRadiusKm   = 20.0
	maxAlternatives       = 3
	minutesPerKilometre   = 3.0
	highCongestionCap     = 2000
	moderateCongestionCap = 5000
)

// Analyzer scores locations against a static risk zone catalog
type Analyzer struct {
	zones []models.RiskZone
}

// NewAnalyzer creates an analyzer over an immutable copy of the catalog
func NewAnalyzer(zones []models.RiskZone) *Analyzer {
	cp := make([]models.RiskZone, len(zones))
	copy(cp, zones)
	return &Analyzer{zones: cp}
}

// Zones returns the catalog
func (a *Analyzer) Zones() []models.RiskZone {
	out := make([]models.RiskZone, len(a.zones))
	copy(out, a.zones)
	return out
}

// AssessProximity scores the point against every zone whose reference vertex is within radiusKm
func (a *Analyzer) AssessProximity(lat, lon, radiusKm float64) models.ProximityReport {
	query := geo.Point{Lat: lat, Lon: lon}
	report := models.ProximityReport{
		Location:    query,
		RadiusKm:    radiusKm,
		NearbyZones: []models.NearbyZone{},
	}

	if radiusKm > 0 {
		for _, z := range a.zones {
			d := geo.Distance(query, z.ReferencePoint())
			if d > radiusKm {
				continue
			}
			report.NearbyZones = append(report.NearbyZones, models.NearbyZone{
				ZoneID:      z.ID,
				Name:        z.Name,
				RiskLevel:   z.RiskLevel,
				RiskFactors: z.RiskFactors,
				DistanceKm:  d,
				Inside:      geo.InPolygon(query, z.Polygon),
			})
		}
	}

	sort.SliceStable(report.NearbyZones, func(i, j int) bool {
		return report.NearbyZones[i].DistanceKm < report.NearbyZones[j].DistanceKm
	})

	var score float64
	for _, z := range report.NearbyZones {
		score += math.Max(0, (radiusKm-z.DistanceKm)/radiusKm) * z.RiskLevel.Weight() * scoreScale
	}
	report.RiskScore = int(math.Min(maxRiskScore, math.Round(score)))
	report.Recommendations = recommendations(report)

	return report
}

func recommendations(r models.ProximityReport) []string {
	var recs []string
	switch {
	case r.RiskScore > evacuationBand:
		recs = []string{
			"Move to higher ground using the nearest designated evacuation route",
			"Follow instructions from local emergency authorities",
			"Keep emergency supplies and documents with you",
		}
	case r.RiskScore > awarenessBand:
		recs = []string{
			"Stay alert for official warnings and monitor local conditions",
			"Review your evacuation route and prepare an emergency kit",
		}
	default:
		recs = []string{
			"No immediate action required",
			"Stay informed about coastal conditions in your area",
		}
	}

	if len(r.NearbyZones) > 0 {
		z := r.NearbyZones[0]
		recs = append(recs, fmt.Sprintf("Nearest risk zone: %s, %.1f km away (%s risk)", z.Name, z.DistanceKm, z.RiskLevel))
	}
	return recs
}

// NearestEvacuation ranks every catalog route by the distance to its first coordinate
func (a *Analyzer) NearestEvacuation(lat, lon float64) models.EvacuationPlan {
	query := geo.Point{Lat: lat, Lon: lon}

	var options []models.RouteOption
	for _, z := range a.zones {
		for _, r := range z.EvacuationRoutes {
			if len(r.Path) == 0 {
				continue
			}
			d := geo.Distance(query, r.Path[0])
			options = append(options, models.RouteOption{
				ZoneID:           z.ID,
				ZoneName:         z.Name,
				Name:             r.Name,
				DistanceKm:       d,
				EstimatedMinutes: int(math.Round(d * minutesPerKilometre)),
				Capacity:         r.Capacity,
				Path:             r.Path,
			})
		}
	}

	plan := models.EvacuationPlan{Alternatives: []models.RouteOption{}, Congestion: models.CongestionUnknown}
	if len(options) == 0 {
		return plan
	}

	sort.SliceStable(options, func(i, j int) bool { return options[i].DistanceKm < options[j].DistanceKm })
	nearest := options[0]
	plan.NearestRoute = &nearest

	for _, o := range options {
		if o.DistanceKm > alternativeRadiusKm || len(plan.Alternatives) == maxAlternatives {
			break
		}
		plan.Alternatives = append(plan.Alternatives, o)
	}
	plan.Congestion = congestion(plan)

	return plan
}

// congestion estimates load from the capacity available near the query point
func congestion(plan models.EvacuationPlan) string {
	routes := plan.Alternatives
	if len(routes) == 0 {
		routes = []models.RouteOption{*plan.NearestRoute}
	}

	total := 0
	for _, r := range routes {
		total += r.Capacity
	}
	switch {
	case total < highCongestionCap:
		return models.CongestionHigh
	case total < moderateCongestionCap:
		return models.CongestionModerate
	default:
		return models.CongestionLow
	}
}
