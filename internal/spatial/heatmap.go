package spatial

import (
	"example.com/coastwatch/internal/geo"
	"example.com/coastwatch/internal/models"
)

// DefaultHeatmapSize is the grid edge used when rows or cols are not given
const DefaultHeatmapSize = 10

// Heatmap bins events into a rows x cols grid over box and normalises counts to [0, 1].
// A zero box is replaced by the events' bounds; events outside the box are ignored.
func Heatmap(events []models.LocationEvent, box geo.BoundingBox, rows, cols int) models.Heatmap {
	if rows <= 0 {
		rows = DefaultHeatmapSize
	}
	if cols <= 0 {
		cols = DefaultHeatmapSize
	}

	points := make([]geo.Point, len(events))
	for i, e := range events {
		points[i] = e.Point()
	}
	if box.IsZero() {
		box = geo.BoundsOf(points)
	}

	counts := make([][]int, rows)
	for r := range counts {
		counts[r] = make([]int, cols)
	}

	maxCount := 0
	for _, p := range points {
		if !box.Contains(p) {
			continue
		}
		r := cellIndex(p.Lat, box.MinLat, box.MaxLat, rows)
		c := cellIndex(p.Lon, box.MinLon, box.MaxLon, cols)
		counts[r][c]++
		if counts[r][c] > maxCount {
			maxCount = counts[r][c]
		}
	}

	cells := make([][]float64, rows)
	for r := range cells {
		cells[r] = make([]float64, cols)
		if maxCount == 0 {
			continue
		}
		for c := range cells[r] {
			cells[r][c] = float64(counts[r][c]) / float64(maxCount)
		}
	}

	return models.Heatmap{Bounds: box, Rows: rows, Cols: cols, Cells: cells, MaxCount: maxCount}
}

func cellIndex(v, lo, hi float64, n int) int {
	span := hi - lo
	if span <= 0 {
		return 0
	}
	i := int((v - lo) / span * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
