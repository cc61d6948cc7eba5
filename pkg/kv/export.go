package kv

import (
	"context"
	"errors"
	"math"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/lintang-b-s/roadgraph/pkg/geo"
	"github.com/lintang-b-s/roadgraph/pkg/logging"
	"github.com/uber/h3-go/v4"
)

const (
	nodePrefix = "node:"
	edgePrefix = "edge:"
	cellPrefix = "h3:"

	DefaultResolution = 9
	exportBatchSize   = 1000

	// stored polylines drop points closer than this to their chord, in meters
	polylineTolerance = 1.0
)

type ExportSource interface {
	ForEachSplitNode(ctx context.Context, batchSize int, fn func([]datastructure.SplitNode) error) error
	ForEachSplitPath(ctx context.Context, batchSize int, fn func([]datastructure.SplitPathDoc) error) error
}

// GraphExporter writes the split graph into badger for routing: nodes and
// edges by id, plus an h3 cell index over edge geometry.
type GraphExporter struct {
	kv         *KVDB
	resolution int
}

func NewGraphExporter(kv *KVDB, resolution int) *GraphExporter {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	return &GraphExporter{kv: kv, resolution: resolution}
}

type ExportResult struct {
	Nodes int
	Edges int
	Cells int
}

func (g *GraphExporter) Export(ctx context.Context, src ExportSource) (ExportResult, error) {
	logger := logging.FromContext(ctx)
	progress := logging.NewProgress(logger)
	var res ExportResult

	err := src.ForEachSplitNode(ctx, exportBatchSize, func(nodes []datastructure.SplitNode) error {
		batch := make([]batchData, 0, len(nodes))
		for _, n := range nodes {
			val, err := encodeNode(NodeRecord{
				ID:             n.ID,
				OriginalID:     n.OriginalID,
				Lat:            n.Lat,
				Lon:            n.Lon,
				Elevation:      n.Elevation,
				TrafficSignals: n.TrafficSignals,
				Start:          n.Start,
			})
			if err != nil {
				return err
			}
			batch = append(batch, batchData{key: []byte(nodePrefix + n.ID), value: val})
		}
		res.Nodes += len(batch)
		return g.kv.saveBatch(ctx, batch)
	})
	if err != nil {
		return res, errs.Annotate(err, "export nodes")
	}

	cells := make(map[string][]string)
	err = src.ForEachSplitPath(ctx, exportBatchSize, func(paths []datastructure.SplitPathDoc) error {
		batch := make([]batchData, 0, len(paths))
		for _, p := range paths {
			coords := p.Coordinates()
			val, err := encodeEdge(toEdgeRecord(p, coords))
			if err != nil {
				return err
			}
			batch = append(batch, batchData{key: []byte(edgePrefix + p.ID), value: val})

			for _, cell := range g.cellsOf(coords) {
				cells[cell] = append(cells[cell], p.ID)
			}
		}
		res.Edges += len(batch)
		return g.kv.saveBatch(ctx, batch)
	})
	if err != nil {
		return res, errs.Annotate(err, "export edges")
	}

	if err := g.kv.dropPrefix([]byte(cellPrefix)); err != nil {
		return res, errs.Annotate(err, "drop old cell index")
	}
	batch := make([]batchData, 0, exportBatchSize)
	for cell, ids := range cells {
		val, err := encodeEdgeIDs(ids)
		if err != nil {
			return res, err
		}
		batch = append(batch, batchData{key: []byte(cellPrefix + cell), value: val})
		if len(batch) == exportBatchSize {
			if err := g.kv.saveBatch(ctx, batch); err != nil {
				return res, err
			}
			batch = make([]batchData, 0, exportBatchSize)
		}
	}
	if len(batch) > 0 {
		if err := g.kv.saveBatch(ctx, batch); err != nil {
			return res, err
		}
	}
	res.Cells = len(cells)

	progress.Done("graph exported", "nodes", res.Nodes, "edges", res.Edges, "cells", res.Cells)
	return res, nil
}

func toEdgeRecord(p datastructure.SplitPathDoc, coords []datastructure.Coordinate) EdgeRecord {
	h := p.Hills()
	return EdgeRecord{
		ID:            p.ID,
		From:          p.StartNode,
		To:            p.EndNode,
		Transition:    p.Transition,
		Distance:      p.Distance,
		Ascent:        p.Ascent,
		Descent:       p.Descent,
		Curviness:     p.Curviness,
		TotalAngle:    p.TotalAngle,
		TrafficLights: p.TrafficLights,
		PathType:      p.PathType,
		Surface:       p.Surface,
		Hills:         []float64{h.Flat, h.Gentle, h.Moderate, h.Challenging, h.Steep, h.ExtremelySteep},
		Forward:       p.Forward,
		Backward:      p.Backward,
		BicycleAccess: p.BicycleAccess,
		FootAccess:    p.FootAccess,
		CarAccess:     p.CarAccess,
		Polyline:      datastructure.CreatePolyline(geo.Simplify(coords, polylineTolerance)),
	}
}

// cellsOf returns the distinct cells touched by the unsimplified geometry nodes.
func (g *GraphExporter) cellsOf(coords []datastructure.Coordinate) []string {
	seen := make(map[string]struct{}, len(coords))
	out := make([]string, 0, 2)
	for _, c := range coords {
		cell := h3.LatLngToCell(h3.NewLatLng(c.Lat, c.Lon), g.resolution).String()
		if _, ok := seen[cell]; ok {
			continue
		}
		seen[cell] = struct{}{}
		out = append(out, cell)
	}
	return out
}

func (g *GraphExporter) GetNode(id string) (NodeRecord, error) {
	val, err := g.kv.get([]byte(nodePrefix + id))
	if err != nil {
		return NodeRecord{}, err
	}
	return decodeNode(val)
}

func (g *GraphExporter) GetEdge(id string) (EdgeRecord, error) {
	val, err := g.kv.get([]byte(edgePrefix + id))
	if err != nil {
		return EdgeRecord{}, err
	}
	return decodeEdge(val)
}

// EdgesNear returns the ids of edges whose geometry touches a cell within
// radiusKm of (lat, lon).
func (g *GraphExporter) EdgesNear(lat, lon, radiusKm float64) ([]string, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, cell := range g.kRingIndexesArea(lat, lon, radiusKm) {
		val, err := g.kv.get([]byte(cellPrefix + cell.String()))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		cellIDs, err := decodeEdgeIDs(val)
		if err != nil {
			return nil, err
		}
		for _, id := range cellIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func (g *GraphExporter) kRingIndexesArea(lat, lon, searchRadiusKm float64) []h3.Cell {
	origin := h3.LatLngToCell(h3.NewLatLng(lat, lon), g.resolution)
	originArea := h3.CellAreaKm2(origin)
	searchArea := math.Pi * searchRadiusKm * searchRadiusKm

	radius := 0
	diskArea := originArea

	for diskArea < searchArea {
		radius++
		cellCount := float64(3*radius*(radius+1) + 1)
		diskArea = cellCount * originArea
	}

	return h3.GridDisk(origin, radius)
}
