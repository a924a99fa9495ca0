package spatial

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"example.com/coastwatch/internal/geo"
	"example.com/coastwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedPerm always seeds centroids from the given indices
type fixedPerm []int

func (f fixedPerm) Perm(n int) []int {
	out := make([]int, 0, n)
	out = append(out, f...)
	for i := len(f); i < n; i++ {
		out = append(out, i)
	}
	return out
}

func event(lat, lon float64, ts time.Time) models.LocationEvent {
	return models.LocationEvent{Lat: lat, Lon: lon, Timestamp: ts}
}

func twoGroups(base time.Time) []models.LocationEvent {
	return []models.LocationEvent{
		event(-8.700, 115.200, base),
		event(-8.701, 115.201, base.Add(time.Minute)),
		event(-8.699, 115.199, base.Add(2*time.Minute)),
		event(-8.300, 115.600, base),
		event(-8.301, 115.601, base.Add(5*time.Minute)),
		event(-8.299, 115.599, base.Add(time.Minute)),
	}
}

func TestClusterSeparatesDistantGroups(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	events := twoGroups(base)

	clusters := NewClusterer(fixedPerm{0, 3}).Cluster(events, 2)
	require.Len(t, clusters, 2)

	total := 0
	for _, c := range clusters {
		total += c.PointCount
		assert.Equal(t, 3, c.PointCount)
		assert.Less(t, c.RadiusKm, 1.0)
		assert.NotEqual(t, [16]byte{}, [16]byte(c.ID))
	}
	assert.Equal(t, len(events), total)

	assert.InDelta(t, -8.700, clusters[0].Centroid.Lat, 1e-9)
	assert.InDelta(t, 115.200, clusters[0].Centroid.Lon, 1e-9)
	assert.Equal(t, base.Add(2*time.Minute), clusters[0].LastActivity)
	assert.Equal(t, base.Add(5*time.Minute), clusters[1].LastActivity)
}

func TestClusterDropsEmptyClusters(t *testing.T) {
	now := time.Now()
	events := []models.LocationEvent{
		event(-8.7, 115.2, now),
		event(-8.7, 115.2, now),
		event(-8.7, 115.2, now),
	}

	// identical points: every point ties and goes to the first centroid
	clusters := NewClusterer(nil).Cluster(events, 3)
	require.Len(t, clusters, 1)
	assert.Equal(t, 3, clusters[0].PointCount)
	assert.Zero(t, clusters[0].RadiusKm)
	assert.Equal(t, models.RiskLow, clusters[0].RiskLevel)
}

func TestClusterEdgeCases(t *testing.T) {
	c := NewClusterer(nil)
	now := time.Now()

	assert.Empty(t, c.Cluster(nil, 3))
	assert.NotNil(t, c.Cluster(nil, 3))
	assert.Empty(t, c.Cluster([]models.LocationEvent{event(1, 1, now)}, 0))

	single := c.Cluster([]models.LocationEvent{event(-8.7, 115.2, now)}, 5)
	require.Len(t, single, 1)
	assert.Equal(t, 1, single[0].PointCount)
	assert.Equal(t, models.RiskLow, single[0].RiskLevel)
}

func TestClusterPointCountsSumToInput(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	box := geo.BoundingBox{MinLat: -8.9, MinLon: 114.9, MaxLat: -8.1, MaxLon: 115.7}
	events := SyntheticEvents(box, 200, time.Now(), time.Hour, rng)

	clusters := NewClusterer(rng).Cluster(events, 6)
	require.NotEmpty(t, clusters)
	require.LessOrEqual(t, len(clusters), 6)

	total := 0
	for _, c := range clusters {
		total += c.PointCount
		assert.True(t, c.RiskLevel.Valid())
	}
	assert.Equal(t, 200, total)
}

func TestDensityRisk(t *testing.T) {
	assert.Equal(t, models.RiskLow, DensityRisk(50, 0))
	// 100 points in ~3.14 km² is ~31.8 per km²
	assert.Equal(t, models.RiskHigh, DensityRisk(100, 1))
	// 20 points in ~3.14 km² is ~6.4 per km²
	assert.Equal(t, models.RiskMedium, DensityRisk(20, 1))
	assert.Equal(t, models.RiskLow, DensityRisk(10, 1))
}

func zone(id string, level models.RiskLevel, ref geo.Point, routes ...models.EvacuationRoute) models.RiskZone {
	return models.RiskZone{
		ID:   id,
		Name: id,
		Polygon: []geo.Point{
			ref,
			{Lat: ref.Lat + 0.02, Lon: ref.Lon},
			{Lat: ref.Lat + 0.02, Lon: ref.Lon + 0.02},
			{Lat: ref.Lat, Lon: ref.Lon + 0.02},
		},
		RiskLevel:        level,
		RiskFactors:      []string{"tsunami"},
		EvacuationRoutes: routes,
	}
}

func TestAssessProximityScoresAndSorts(t *testing.T) {
	query := geo.Point{Lat: -8.70, Lon: 115.20}
	near := zone("near-high", models.RiskHigh, geo.Point{Lat: -8.71, Lon: 115.20})
	far := zone("far-low", models.RiskLow, geo.Point{Lat: -8.75, Lon: 115.20})
	outside := zone("outside", models.RiskHigh, geo.Point{Lat: -9.50, Lon: 115.20})

	a := NewAnalyzer([]models.RiskZone{far, outside, near})
	report := a.AssessProximity(query.Lat, query.Lon, 10)

	require.Len(t, report.NearbyZones, 2)
	assert.Equal(t, "near-high", report.NearbyZones[0].ZoneID)
	assert.Equal(t, "far-low", report.NearbyZones[1].ZoneID)
	assert.Less(t, report.NearbyZones[0].DistanceKm, report.NearbyZones[1].DistanceKm)

	dNear := geo.Distance(query, near.Polygon[0])
	dFar := geo.Distance(query, far.Polygon[0])
	want := (10-dNear)/10*3*20 + (10-dFar)/10*1*20
	assert.Equal(t, int(want+0.5), report.RiskScore)
	assert.Contains(t, report.Recommendations[len(report.Recommendations)-1], "near-high")
}

func TestAssessProximityCapsAt100(t *testing.T) {
	ref := geo.Point{Lat: -8.70, Lon: 115.20}
	zones := []models.RiskZone{
		zone("a", models.RiskHigh, ref),
		zone("b", models.RiskHigh, ref),
		zone("c", models.RiskHigh, ref),
	}

	report := NewAnalyzer(zones).AssessProximity(-8.695, 115.205, 5)
	assert.Equal(t, 100, report.RiskScore)
	assert.Contains(t, report.Recommendations[0], "evacuation route")
	assert.True(t, report.NearbyZones[0].Inside)
}

func TestAssessProximityMonotonicInRiskLevel(t *testing.T) {
	ref := geo.Point{Lat: -8.72, Lon: 115.20}
	score := func(level models.RiskLevel) int {
		return NewAnalyzer([]models.RiskZone{zone("z", level, ref)}).AssessProximity(-8.70, 115.20, 10).RiskScore
	}

	low, medium, high := score(models.RiskLow), score(models.RiskMedium), score(models.RiskHigh)
	assert.LessOrEqual(t, low, medium)
	assert.LessOrEqual(t, medium, high)
	assert.Positive(t, low)
}

func TestAssessProximityBaseline(t *testing.T) {
	empty := NewAnalyzer(nil).AssessProximity(-8.7, 115.2, 10)
	assert.Zero(t, empty.RiskScore)
	assert.NotNil(t, empty.NearbyZones)
	assert.Empty(t, empty.NearbyZones)
	assert.Equal(t, "No immediate action required", empty.Recommendations[0])

	zones := []models.RiskZone{zone("z", models.RiskHigh, geo.Point{Lat: -8.7, Lon: 115.2})}
	zeroRadius := NewAnalyzer(zones).AssessProximity(-8.7, 115.2, 0)
	assert.Zero(t, zeroRadius.RiskScore)
	assert.Empty(t, zeroRadius.NearbyZones)
}

func TestAssessProximityAntipodalZoneIsFinite(t *testing.T) {
	z := zone("far-side", models.RiskHigh, geo.Point{Lat: -10, Lon: -160})
	report := NewAnalyzer([]models.RiskZone{z}).AssessProximity(10, 20, 25000)

	require.Len(t, report.NearbyZones, 1)
	assert.False(t, math.IsNaN(report.NearbyZones[0].DistanceKm))
	assert.GreaterOrEqual(t, report.RiskScore, 0)
	_, err := json.Marshal(report)
	require.NoError(t, err)
}

func TestAssessProximityBands(t *testing.T) {
	ref := geo.Point{Lat: -8.70, Lon: 115.20}
	// one medium zone at distance zero scores exactly 40: baseline band
	report := NewAnalyzer([]models.RiskZone{zone("m", models.RiskMedium, ref)}).AssessProximity(ref.Lat, ref.Lon, 10)
	assert.Equal(t, 40, report.RiskScore)
	assert.Equal(t, "No immediate action required", report.Recommendations[0])

	// one high zone at distance zero scores 60: awareness band
	report = NewAnalyzer([]models.RiskZone{zone("h", models.RiskHigh, ref)}).AssessProximity(ref.Lat, ref.Lon, 10)
	assert.Equal(t, 60, report.RiskScore)
	assert.Contains(t, report.Recommendations[0], "Stay alert")
}

func route(name string, start geo.Point, capacity int) models.EvacuationRoute {
	return models.EvacuationRoute{
		Name:     name,
		Path:     []geo.Point{start, {Lat: start.Lat + 0.05, Lon: start.Lon}},
		Capacity: capacity,
	}
}

func TestNearestEvacuation(t *testing.T) {
	query := geo.Point{Lat: -8.70, Lon: 115.20}
	zones := []models.RiskZone{
		zone("kuta", models.RiskHigh, query,
			route("r-far", geo.Point{Lat: -8.80, Lon: 115.20}, 3000),
			route("r-near", geo.Point{Lat: -8.71, Lon: 115.20}, 1500),
		),
		zone("sanur", models.RiskMedium, query,
			route("r-mid", geo.Point{Lat: -8.75, Lon: 115.20}, 1000),
			route("r-mid2", geo.Point{Lat: -8.78, Lon: 115.20}, 800),
			route("r-remote", geo.Point{Lat: -9.50, Lon: 115.20}, 9000),
			models.EvacuationRoute{Name: "no-path", Capacity: 100},
		),
	}

	plan := NewAnalyzer(zones).NearestEvacuation(query.Lat, query.Lon)
	require.NotNil(t, plan.NearestRoute)
	assert.Equal(t, "r-near", plan.NearestRoute.Name)
	assert.Equal(t, "kuta", plan.NearestRoute.ZoneID)
	assert.Equal(t, 1500, plan.NearestRoute.Capacity)

	d := geo.Distance(query, geo.Point{Lat: -8.71, Lon: 115.20})
	assert.Equal(t, int(d*3+0.5), plan.NearestRoute.EstimatedMinutes)

	require.Len(t, plan.Alternatives, 3)
	assert.Equal(t, "r-near", plan.Alternatives[0].Name)
	assert.Equal(t, "r-mid", plan.Alternatives[1].Name)
	assert.Equal(t, "r-mid2", plan.Alternatives[2].Name)
	for _, alt := range plan.Alternatives {
		assert.LessOrEqual(t, alt.DistanceKm, 20.0)
	}
	// 1500 + 1000 + 800
	assert.Equal(t, models.CongestionModerate, plan.Congestion)
}

func TestNearestEvacuationRemoteAndEmpty(t *testing.T) {
	query := geo.Point{Lat: -8.70, Lon: 115.20}

	empty := NewAnalyzer(nil).NearestEvacuation(query.Lat, query.Lon)
	assert.Nil(t, empty.NearestRoute)
	assert.Empty(t, empty.Alternatives)
	assert.Equal(t, models.CongestionUnknown, empty.Congestion)

	remote := NewAnalyzer([]models.RiskZone{
		zone("z", models.RiskLow, query, route("r", geo.Point{Lat: -9.70, Lon: 115.20}, 500)),
	}).NearestEvacuation(query.Lat, query.Lon)
	require.NotNil(t, remote.NearestRoute)
	assert.Greater(t, remote.NearestRoute.DistanceKm, 20.0)
	assert.Empty(t, remote.Alternatives)
	assert.Equal(t, models.CongestionHigh, remote.Congestion)
}

func TestHeatmap(t *testing.T) {
	now := time.Now()
	box := geo.BoundingBox{MinLat: 0, MinLon: 0, MaxLat: 1, MaxLon: 1}
	events := []models.LocationEvent{
		event(0.05, 0.05, now),
		event(0.06, 0.04, now),
		event(0.95, 0.95, now),
		event(1.0, 1.0, now),
		event(2.0, 2.0, now),
	}

	hm := Heatmap(events, box, 2, 2)
	require.Len(t, hm.Cells, 2)
	require.Len(t, hm.Cells[0], 2)
	assert.Equal(t, 2, hm.MaxCount)
	assert.Equal(t, 1.0, hm.Cells[0][0])
	assert.Equal(t, 1.0, hm.Cells[1][1])
	assert.Zero(t, hm.Cells[0][1])
	assert.Zero(t, hm.Cells[1][0])
}

func TestHeatmapDefaults(t *testing.T) {
	hm := Heatmap(nil, geo.BoundingBox{}, 0, 0)
	assert.Equal(t, DefaultHeatmapSize, hm.Rows)
	assert.Equal(t, DefaultHeatmapSize, hm.Cols)
	assert.Zero(t, hm.MaxCount)

	events := []models.LocationEvent{event(-8.7, 115.1, time.Now()), event(-8.5, 115.3, time.Now())}
	hm = Heatmap(events, geo.BoundingBox{}, 4, 4)
	assert.Equal(t, -8.7, hm.Bounds.MinLat)
	assert.Equal(t, 115.3, hm.Bounds.MaxLon)
	assert.Equal(t, 1, hm.MaxCount)
	assert.Equal(t, 1.0, hm.Cells[0][0])
	assert.Equal(t, 1.0, hm.Cells[3][3])
}
