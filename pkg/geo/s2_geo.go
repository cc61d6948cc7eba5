package geo

import (
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
)

const earthRadiusM = 6371007.0

func toS2(c datastructure.Coordinate) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat, c.Lon))
}

// DistanceMeters is the great-circle distance between two coordinates.
func DistanceMeters(a, b datastructure.Coordinate) float64 {
	return s2.LatLngFromDegrees(a.Lat, a.Lon).Distance(s2.LatLngFromDegrees(b.Lat, b.Lon)).Radians() * earthRadiusM
}

// CumulativeDistances returns, for every coordinate, the path length in meters
// from coords[0] up to it. The first entry is always 0.
func CumulativeDistances(coords []datastructure.Coordinate) []float64 {
	out := make([]float64, len(coords))
	for i := 1; i < len(coords); i++ {
		out[i] = out[i-1] + DistanceMeters(coords[i-1], coords[i])
	}
	return out
}

// Simplify drops points closer than toleranceM to the chord of their span
// (Douglas-Peucker). Endpoints are always kept.
func Simplify(coords []datastructure.Coordinate, toleranceM float64) []datastructure.Coordinate {
	if len(coords) < 3 {
		return coords
	}

	tolerance := s1.ChordAngleFromAngle(s1.Angle(toleranceM / earthRadiusM))
	keep := make([]bool, len(coords))
	keep[0], keep[len(coords)-1] = true, true

	spans := [][2]int{{0, len(coords) - 1}}
	for len(spans) > 0 {
		span := spans[len(spans)-1]
		spans = spans[:len(spans)-1]

		a, b := toS2(coords[span[0]]), toS2(coords[span[1]])
		farthest, farthestDist := -1, tolerance
		for i := span[0] + 1; i < span[1]; i++ {
			d := s2.DistanceFromSegment(toS2(coords[i]), a, b)
			if s1.ChordAngleFromAngle(d) > farthestDist {
				farthest, farthestDist = i, s1.ChordAngleFromAngle(d)
			}
		}
		if farthest < 0 {
			continue
		}
		keep[farthest] = true
		spans = append(spans, [2]int{span[0], farthest}, [2]int{farthest, span[1]})
	}

	out := make([]datastructure.Coordinate, 0, len(coords))
	for i, c := range coords {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out
}
