package spatial

import (
	"math"
	"math/rand/v2"
	"time"

	"example.com/coastwatch/internal/geo"
	"example.com/coastwatch/internal/models"

	"github.com/google/uuid"
)

// Iterations is the fixed number of assign/update rounds per clustering run
const Iterations = 10

const (
	highDensity   = 10.0
	mediumDensity = 5.0
)

// Permuter picks the random initial centroids
type Permuter interface {
	Perm(n int) []int
}

type globalPermuter struct{}

func (globalPermuter) Perm(n int) []int { return rand.Perm(n) }

// Clusterer groups location events with k-means over great-circle distance
type Clusterer struct {
	rng Permuter
}

// NewClusterer creates a clusterer; nil uses the shared math/rand generator
func NewClusterer(rng Permuter) *Clusterer {
	if rng == nil {
		rng = globalPermuter{}
	}
	return &Clusterer{rng: rng}
}

// Cluster partitions events into at most k clusters. Runs are not
// deterministic: centroids are seeded from random input points and exactly
// Iterations rounds are performed with no convergence check.
func (c *Clusterer) Cluster(events []models.LocationEvent, k int) []models.LocationCluster {
	if len(events) == 0 || k <= 0 {
		return []models.LocationCluster{}
	}
	if k > len(events) {
		k = len(events)
	}

	points := make([]geo.Point, len(events))
	for i, e := range events {
		points[i] = e.Point()
	}

	perm := c.rng.Perm(len(points))
	centroids := make([]geo.Point, k)
	for i := range centroids {
		centroids[i] = points[perm[i]]
	}

	assignment := make([]int, len(points))
	for iter := 0; iter < Iterations; iter++ {
		for i, p := range points {
			assignment[i] = nearestCentroid(p, centroids)
		}
		centroids = recompute(points, assignment, centroids)
	}

	return summarize(events, points, assignment, centroids)
}

// nearestCentroid returns the closest centroid; ties go to the lower index
func nearestCentroid(p geo.Point, centroids []geo.Point) int {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range centroids {
		if d := geo.Distance(p, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// recompute moves each non-empty centroid to the mean of its points
func recompute(points []geo.Point, assignment []int, centroids []geo.Point) []geo.Point {
	sums := make([]geo.Point, len(centroids))
	counts := make([]int, len(centroids))
	for i, p := range points {
		c := assignment[i]
		sums[c].Lat += p.Lat
		sums[c].Lon += p.Lon
		counts[c]++
	}

	next := make([]geo.Point, len(centroids))
	for i := range centroids {
		if counts[i] == 0 {
			next[i] = centroids[i]
			continue
		}
		n := float64(counts[i])
		next[i] = geo.Point{Lat: sums[i].Lat / n, Lon: sums[i].Lon / n}
	}
	return next
}

func summarize(events []models.LocationEvent, points []geo.Point, assignment []int, centroids []geo.Point) []models.LocationCluster {
	clusters := make([]models.LocationCluster, len(centroids))
	for i := range clusters {
		clusters[i].Centroid = centroids[i]
	}

	for i, p := range points {
		c := &clusters[assignment[i]]
		c.PointCount++
		if d := geo.Distance(p, c.Centroid); d > c.RadiusKm {
			c.RadiusKm = d
		}
		if ts := events[i].Timestamp; ts.After(c.LastActivity) {
			c.LastActivity = ts
		}
	}

	out := make([]models.LocationCluster, 0, len(clusters))
	for _, c := range clusters {
		if c.PointCount == 0 {
			continue
		}
		c.ID = uuid.New()
		c.RiskLevel = DensityRisk(c.PointCount, c.RadiusKm)
		out = append(out, c)
	}
	return out
}

// DensityRisk grades a cluster by points per square kilometre
func DensityRisk(count int, radiusKm float64) models.RiskLevel {
	if radiusKm <= 0 {
		return models.RiskLow
	}
	density := float64(count) / (math.Pi * radiusKm * radiusKm)
	switch {
	case density > highDensity:
		return models.RiskHigh
	case density > mediumDensity:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// DefaultRegion is the monitored coastline used when a request gives no bounds
var DefaultRegion = geo.BoundingBox{MinLat: -8.85, MinLon: 114.43, MaxLat: -8.06, MaxLon: 115.71}

// SyntheticEvents scatters n events uniformly over a bounding box, stamped within the last window
func SyntheticEvents(box geo.BoundingBox, n int, now time.Time, window time.Duration, rng *rand.Rand) []models.LocationEvent {
	points := geo.SamplePoints(box, n, rng)
	events := make([]models.LocationEvent, len(points))
	for i, p := range points {
		offset := time.Duration(rng.Float64() * float64(window))
		events[i] = models.LocationEvent{Lat: p.Lat, Lon: p.Lon, Timestamp: now.Add(-offset)}
	}
	return events
}
