// Package grid splits a bounding box into cells and schedules them in colour
// batches so that no two cells running at the same time touch each other.
package grid

import (
	"context"
	"fmt"
	"sort"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/logging"
	"golang.org/x/sync/errgroup"
)

const numColors = 4

type Cell struct {
	Row   int
	Col   int
	Color int
	Box   datastructure.BoundingBox
}

func (c Cell) String() string {
	return fmt.Sprintf("cell(%d,%d)", c.Row, c.Col)
}

type Grid struct {
	boundary datastructure.BoundingBox
	size     int
	colors   [][]int
}

// NewGrid cuts boundary into size x size cells. A size below 1 is treated as 1.
func NewGrid(boundary datastructure.BoundingBox, size int) *Grid {
	g := &Grid{boundary: boundary, size: max(size, 1)}
	g.colors = g.color()
	return g
}

func (g *Grid) Size() int { return g.size }

// Color returns the colour matrix, indexed [row][col], with colours 1..4.
func (g *Grid) Color() [][]int {
	out := make([][]int, g.size)
	for i := range g.colors {
		out[i] = append([]int(nil), g.colors[i]...)
	}
	return out
}

// color assigns each cell the smallest colour not used by an already coloured
// king-move neighbour. Scanning row-major only ever sees the west, north-west,
// north and north-east neighbours, so four colours always suffice.
func (g *Grid) color() [][]int {
	colors := make([][]int, g.size)
	for i := range colors {
		colors[i] = make([]int, g.size)
	}

	for i := 0; i < g.size; i++ {
		for j := 0; j < g.size; j++ {
			var used [numColors + 1]bool
			for di := -1; di <= 1; di++ {
				for dj := -1; dj <= 1; dj++ {
					ni, nj := i+di, j+dj
					if (di == 0 && dj == 0) || ni < 0 || nj < 0 || ni >= g.size || nj >= g.size {
						continue
					}
					used[colors[ni][nj]] = true
				}
			}
			for c := 1; c <= numColors; c++ {
				if !used[c] {
					colors[i][j] = c
					break
				}
			}
		}
	}
	return colors
}

// Cells returns every cell in row-major order.
func (g *Grid) Cells() []Cell {
	latStep := (g.boundary.MaxLat - g.boundary.MinLat) / float64(g.size)
	lonStep := (g.boundary.MaxLon - g.boundary.MinLon) / float64(g.size)

	cells := make([]Cell, 0, g.size*g.size)
	for i := 0; i < g.size; i++ {
		for j := 0; j < g.size; j++ {
			box := datastructure.BoundingBox{
				MinLat:    g.boundary.MinLat + float64(i)*latStep,
				MaxLat:    g.boundary.MinLat + float64(i+1)*latStep,
				MinLon:    g.boundary.MinLon + float64(j)*lonStep,
				MaxLon:    g.boundary.MinLon + float64(j+1)*lonStep,
				ClosedLat: i == g.size-1,
				ClosedLon: j == g.size-1,
			}
			// the last row and column end exactly on the boundary
			if i == g.size-1 {
				box.MaxLat = g.boundary.MaxLat
			}
			if j == g.size-1 {
				box.MaxLon = g.boundary.MaxLon
			}
			cells = append(cells, Cell{Row: i, Col: j, Color: g.colors[i][j], Box: box})
		}
	}
	return cells
}

// Batches groups cells by colour, lowest colour first.
func (g *Grid) Batches() [][]Cell {
	byColor := make(map[int][]Cell, numColors)
	for _, c := range g.Cells() {
		byColor[c.Color] = append(byColor[c.Color], c)
	}

	colors := make([]int, 0, len(byColor))
	for c := range byColor {
		colors = append(colors, c)
	}
	sort.Ints(colors)

	batches := make([][]Cell, 0, len(colors))
	for _, c := range colors {
		batches = append(batches, byColor[c])
	}
	return batches
}

// Run executes fn over every cell, at most workers at a time. A batch must
// finish before the next one starts. The first error cancels the remaining
// cells of its batch and is returned.
func (g *Grid) Run(ctx context.Context, workers int, fn func(ctx context.Context, cell Cell) error) error {
	logger := logging.FromContext(ctx)
	batches := g.Batches()

	for i, batch := range batches {
		logger.Info("running grid batch", "batch", i+1, "of", len(batches), "cells", len(batch))

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(max(workers, 1))
		for _, cell := range batch {
			eg.Go(func() error {
				return fn(egCtx, cell)
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
