// Package enrich fills in the elevation, traffic signal flag and way ids of
// intersections.
package enrich

import (
	"context"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/lintang-b-s/roadgraph/pkg/logging"
)

const DefaultBatchSize = 500

type IntersectionStore interface {
	IntersectionsMissingElevation(ctx context.Context, limit int) ([]datastructure.Intersection, error)
	NodeWays(ctx context.Context, ids []int64) (map[int64][]int64, error)
	UpdateEnrichment(ctx context.Context, intersections []datastructure.Intersection) error
}

// ElevationLookup returns one altitude per coordinate. When the service keeps
// failing it returns sentinel altitudes together with a transient error.
type ElevationLookup interface {
	LookupOrSentinel(ctx context.Context, coords []datastructure.Coordinate) ([]float64, error)
}

type Enricher struct {
	store     IntersectionStore
	elevation ElevationLookup
	batchSize int
}

func NewEnricher(st IntersectionStore, elev ElevationLookup, batchSize int) *Enricher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Enricher{store: st, elevation: elev, batchSize: batchSize}
}

type Result struct {
	Enriched  int
	Sentinels int
	Batches   int
}

// Run enriches batches until no intersection is missing an elevation.
func (e *Enricher) Run(ctx context.Context) (Result, error) {
	logger := logging.FromContext(ctx)
	progress := logging.NewProgress(logger)
	var res Result

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		batch, err := e.store.IntersectionsMissingElevation(ctx, e.batchSize)
		if err != nil {
			return res, errs.Annotate(err, "select intersections without elevation")
		}
		if len(batch) == 0 {
			break
		}

		sentinel, err := e.enrichBatch(ctx, batch)
		if err != nil {
			return res, err
		}
		res.Batches++
		res.Enriched += len(batch)
		if sentinel {
			res.Sentinels += len(batch)
		}
		logger.Info("enrichment batch", "batch", res.Batches, "size", len(batch), "total", res.Enriched)
	}

	progress.Done("enrichment finished", "intersections", res.Enriched, "sentinel", res.Sentinels)
	return res, nil
}

func (e *Enricher) enrichBatch(ctx context.Context, batch []datastructure.Intersection) (bool, error) {
	coords := make([]datastructure.Coordinate, len(batch))
	ids := make([]int64, len(batch))
	for i, in := range batch {
		coords[i] = datastructure.NewCoordinate(in.Lat, in.Lon)
		ids[i] = in.ID
	}

	sentinel := false
	altitudes, err := e.elevation.LookupOrSentinel(ctx, coords)
	if err != nil {
		if !errs.IsTransient(err) {
			return false, errs.Annotate(err, "elevation of %d intersections", len(batch))
		}
		sentinel = true
		logging.FromContext(ctx).Warn("elevation unavailable, using sentinel",
			"first", ids[0], "size", len(batch), "err", err)
	}

	ways, err := e.store.NodeWays(ctx, ids)
	if err != nil {
		return false, errs.Annotate(err, "way ids of %d intersections", len(batch))
	}

	updates := make([]datastructure.Intersection, len(batch))
	for i, in := range batch {
		elev := altitudes[i]
		signals := in.Tags["highway"] == "traffic_signals"
		in.Elevation = &elev
		in.TrafficSignals = &signals
		in.WayIDs = ways[in.ID]
		if in.WayIDs == nil {
			in.WayIDs = []int64{}
		}
		updates[i] = in
	}
	if err := e.store.UpdateEnrichment(ctx, updates); err != nil {
		return false, errs.Annotate(err, "update %d intersections", len(updates))
	}
	return sentinel, nil
}
