package geo

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/util"
)

const earthRadiusKM = 6371.0

// ToCartesian projects a lat/lon pair (degrees) onto a sphere of radius 6371 km.
func ToCartesian(lat, lon float64) r3.Vector {
	phi := lat * math.Pi / 180
	theta := lon * math.Pi / 180
	return r3.Vector{
		X: earthRadiusKM * math.Cos(phi) * math.Cos(theta),
		Y: earthRadiusKM * math.Cos(phi) * math.Sin(theta),
		Z: earthRadiusKM * math.Sin(phi),
	}
}

// TurnAngle returns the heading change at b, in degrees, for the walk a -> b -> c.
// A straight line gives 0, a full U-turn 180. Degenerate legs give 0.
func TurnAngle(a, b, c datastructure.Coordinate) float64 {
	p1 := ToCartesian(a.Lat, a.Lon)
	p2 := ToCartesian(b.Lat, b.Lon)
	p3 := ToCartesian(c.Lat, c.Lon)

	v1 := p2.Sub(p1)
	v2 := p3.Sub(p2)
	n1, n2 := v1.Norm(), v2.Norm()
	if n1 == 0 || n2 == 0 {
		return 0
	}

	cos := util.Clip(v1.Dot(v2)/(n1*n2), -1, 1)
	return math.Acos(cos) * 180 / math.Pi
}

// PathAngle sums the turn angle at every interior point of coords.
func PathAngle(coords []datastructure.Coordinate) float64 {
	total := 0.0
	for i := 1; i+1 < len(coords); i++ {
		total += TurnAngle(coords[i-1], coords[i], coords[i+1])
	}
	return total
}
