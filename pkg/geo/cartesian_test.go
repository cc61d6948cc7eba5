package geo

import (
	"testing"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/stretchr/testify/assert"
)

func TestToCartesian(t *testing.T) {
	p := ToCartesian(0, 0)
	assert.InDelta(t, earthRadiusKM, p.X, 1e-9)
	assert.InDelta(t, 0, p.Y, 1e-9)
	assert.InDelta(t, 0, p.Z, 1e-9)

	north := ToCartesian(90, 0)
	assert.InDelta(t, earthRadiusKM, north.Z, 1e-9)
}

func TestTurnAngle(t *testing.T) {
	a := datastructure.NewCoordinate(0, 0)
	b := datastructure.NewCoordinate(0, 0.01)

	t.Run("straight", func(t *testing.T) {
		assert.InDelta(t, 0, TurnAngle(a, b, datastructure.NewCoordinate(0, 0.02)), 0.02)
	})
	t.Run("right angle", func(t *testing.T) {
		assert.InDelta(t, 90, TurnAngle(a, b, datastructure.NewCoordinate(0.01, 0.01)), 0.1)
	})
	t.Run("u turn", func(t *testing.T) {
		assert.InDelta(t, 180, TurnAngle(a, b, a), 1e-3)
	})
	t.Run("repeated point", func(t *testing.T) {
		assert.Equal(t, 0.0, TurnAngle(a, a, b))
	})
}

func TestPathAngle(t *testing.T) {
	coords := []datastructure.Coordinate{
		datastructure.NewCoordinate(0, 0),
		datastructure.NewCoordinate(0, 0.01),
		datastructure.NewCoordinate(0.01, 0.01),
		datastructure.NewCoordinate(0.01, 0.02),
	}
	assert.InDelta(t, 180, PathAngle(coords), 0.2)
	assert.Equal(t, 0.0, PathAngle(coords[:2]))
}

func TestAscentDescent(t *testing.T) {
	ascent, descent := AscentDescent([]float64{100, 110, 105, 105, 120})
	assert.Equal(t, 25.0, ascent)
	assert.Equal(t, 5.0, descent)

	ascent, descent = AscentDescent(nil)
	assert.Zero(t, ascent)
	assert.Zero(t, descent)
}
