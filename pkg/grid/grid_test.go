package grid

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var slovenia = datastructure.BoundingBox{MinLat: 45.4, MaxLat: 46.9, MinLon: 13.6, MaxLon: 16.6}

func TestColoringSafety(t *testing.T) {
	for _, size := range []int{1, 2, 3, 5, 8, 28} {
		colors := NewGrid(slovenia, size).Color()
		for i := 0; i < size; i++ {
			for j := 0; j < size; j++ {
				c := colors[i][j]
				require.GreaterOrEqual(t, c, 1)
				require.LessOrEqual(t, c, numColors)
				for di := -1; di <= 1; di++ {
					for dj := -1; dj <= 1; dj++ {
						ni, nj := i+di, j+dj
						if (di == 0 && dj == 0) || ni < 0 || nj < 0 || ni >= size || nj >= size {
							continue
						}
						assert.NotEqual(t, c, colors[ni][nj], "size %d cell (%d,%d) vs (%d,%d)", size, i, j, ni, nj)
					}
				}
			}
		}
	}
}

func TestColorPattern(t *testing.T) {
	colors := NewGrid(slovenia, 4).Color()
	for i := range colors {
		for j := range colors[i] {
			assert.Equal(t, 1+(i%2)*2+(j%2), colors[i][j])
		}
	}
}

func TestCellsCoverBoundaryOnce(t *testing.T) {
	g := NewGrid(slovenia, 3)
	cells := g.Cells()
	require.Len(t, cells, 9)

	points := [][2]float64{
		{45.4, 13.6},
		{46.9, 16.6},
		{45.9, 14.6}, // exactly on an inner corner
		{46.4, 15.0},
		{45.4, 16.6},
	}
	for _, p := range points {
		owners := 0
		for _, c := range cells {
			if c.Box.Contains(p[0], p[1]) {
				owners++
			}
		}
		assert.Equal(t, 1, owners, "point %v", p)
	}
}

func TestBatchesPartitionCells(t *testing.T) {
	g := NewGrid(slovenia, 5)
	total := 0
	for _, batch := range g.Batches() {
		color := batch[0].Color
		for _, c := range batch {
			assert.Equal(t, color, c.Color)
		}
		total += len(batch)
	}
	assert.Equal(t, 25, total)
	assert.Len(t, g.Batches(), 4)
}

func TestRunBarrierBetweenBatches(t *testing.T) {
	g := NewGrid(slovenia, 4)

	var mu sync.Mutex
	order := []int{}
	var running atomic.Int32
	err := g.Run(context.Background(), 3, func(ctx context.Context, c Cell) error {
		n := running.Add(1)
		defer running.Add(-1)
		assert.LessOrEqual(t, n, int32(3))

		mu.Lock()
		order = append(order, c.Color)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	require.Len(t, order, 16)

	for i := 1; i < len(order); i++ {
		assert.LessOrEqual(t, order[i-1], order[i], "colour batches must not interleave")
	}
}

func TestRunStopsOnError(t *testing.T) {
	g := NewGrid(slovenia, 2)
	boom := errors.New("boom")
	var calls atomic.Int32
	err := g.Run(context.Background(), 1, func(ctx context.Context, c Cell) error {
		calls.Add(1)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), calls.Load())
}
