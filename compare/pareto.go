package compare

import (
	"cmp"
	"math"
	"slices"
)

// Point is one run placed on the latency/quality plane.
type Point struct {
	LatencyMs float64
	Quality   float64
}

// ParetoFront reports, for each point, whether it lies on the Pareto front:
// sweeping points by ascending latency, a point is on the front when its
// quality strictly exceeds every quality seen before it. Points of equal
// latency are visited in input order.
func ParetoFront(points []Point) []bool {
	order := make([]int, len(points))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(points[a].LatencyMs, points[b].LatencyMs)
	})

	front := make([]bool, len(points))
	best := math.Inf(-1)
	for _, i := range order {
		if points[i].Quality > best {
			front[i] = true
			best = points[i].Quality
		}
	}
	return front
}
