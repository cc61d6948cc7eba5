package tracer

import (
	"context"
	"sync/atomic"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/lintang-b-s/roadgraph/pkg/grid"
	"github.com/lintang-b-s/roadgraph/pkg/logging"
	"github.com/lintang-b-s/roadgraph/pkg/pathway"
)

// Stats sums what a run did. Safe for concurrent use.
type Stats struct {
	Processed atomic.Int64
	Skipped   atomic.Int64
	Failed    atomic.Int64
	Inserted  atomic.Int64
}

// Run refreshes the snapshots and traces every cell of g, colour batch by
// colour batch.
func (t *Tracer) Run(ctx context.Context, g *grid.Grid, workers int) (*Stats, error) {
	if err := t.Refresh(ctx); err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx)
	progress := logging.NewProgress(logger)

	stats := &Stats{}
	err := g.Run(ctx, workers, func(ctx context.Context, cell grid.Cell) error {
		return t.processCell(ctx, cell, stats)
	})
	progress.Done("discovery finished",
		"processed", stats.Processed.Load(),
		"skipped", stats.Skipped.Load(),
		"failed", stats.Failed.Load(),
		"rows", stats.Inserted.Load())
	return stats, err
}

// ProcessCell traces every unaddressed intersection inside cell.
func (t *Tracer) ProcessCell(ctx context.Context, cell grid.Cell) error {
	return t.processCell(ctx, cell, &Stats{})
}

func (t *Tracer) processCell(ctx context.Context, cell grid.Cell, stats *Stats) error {
	logger := logging.FromContext(ctx).With("cell", cell.String())

	nodes, err := t.store.IntersectionsInBox(ctx, cell.Box)
	if err != nil {
		return errs.Annotate(err, "intersections of %s", cell)
	}
	logger.Debug("cell loaded", "intersections", len(nodes))

	for i, in := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if t.addressed.Contains(in.ID) {
			stats.Skipped.Add(1)
			continue
		}

		inserted, err := t.ProcessIntersection(ctx, in.Node())
		if err != nil {
			if !errs.IsTransient(err) {
				return err
			}
			// left unaddressed, so the next run picks it up again
			stats.Failed.Add(1)
			logger.Log(logLevelFor(err), "intersection failed", "node", in.ID, "err", err)
			continue
		}
		stats.Processed.Add(1)
		stats.Inserted.Add(int64(inserted))

		if (i+1)%1000 == 0 {
			logger.Info("cell progress", "done", i+1, "of", len(nodes))
		}
	}
	return nil
}

// ProcessIntersection discovers the pathways leaving node, persists the
// missing directed rows and marks node as addressed. It returns the number of
// rows written.
func (t *Tracer) ProcessIntersection(ctx context.Context, node datastructure.Node) (int, error) {
	ways, err := t.waysOfNode(ctx, node.ID)
	if err != nil {
		return 0, err
	}
	pathways, err := t.Discover(ctx, node, ways, NewWaySet(), 0)
	if err != nil {
		return 0, errs.Annotate(err, "discover from %d", node.ID)
	}

	inserted := 0
	for _, p := range pathways {
		n, err := t.persist(ctx, p)
		inserted += n
		if err != nil {
			return inserted, errs.Annotate(err, "persist pathway %d-%d", p.IntersectionA().ID, p.IntersectionB().ID)
		}
	}

	err = errs.Retry(ctx, t.opts.MarkAttempts, t.opts.MarkDelay, func() error {
		return t.progress.MarkAddressed(ctx, node.ID)
	}, t.retryHook(ctx, "mark_addressed", node.ID))
	if err != nil {
		return inserted, errs.Annotate(err, "mark %d addressed", node.ID)
	}
	t.metrics.IntersectionsProcessed.Inc()
	return inserted, nil
}

// persist writes each direction of p that may be travelled and is not stored
// yet. Rows are only written between two known intersections.
func (t *Tracer) persist(ctx context.Context, p *pathway.Pathway) (int, error) {
	a, b := p.IntersectionA().ID, p.IntersectionB().ID
	if !t.intersections.Contains(a) || !t.intersections.Contains(b) {
		return 0, nil
	}
	forward, backward := p.DirectedPaths()

	inserted := 0
	rows := []struct {
		allowed   bool
		doc       datastructure.PathDoc
		direction string
	}{
		{p.Forward, forward, "forward"},
		{p.Backward, backward, "backward"},
	}
	for _, row := range rows {
		if !row.allowed {
			continue
		}
		exists, err := t.store.PathExists(ctx, row.doc.StartNode, row.doc.EndNode)
		if err != nil {
			return inserted, err
		}
		if exists {
			continue
		}
		if err := t.store.InsertPaths(ctx, []datastructure.PathDoc{row.doc}); err != nil {
			return inserted, err
		}
		t.metrics.PathwaysInserted.WithLabelValues(row.direction).Inc()
		inserted++
	}
	return inserted, nil
}
