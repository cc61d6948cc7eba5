// Package contractor removes pass-through intersections from the persisted
// path graph. Every pass scans the topology, proposes non-overlapping degree-2
// merges and applies each one in its own transaction. Passes repeat until
// nothing is left to merge.
package contractor

import (
	"context"

	"github.com/lintang-b-s/roadgraph/pkg/concurrent"
	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/lintang-b-s/roadgraph/pkg/logging"
	"github.com/lintang-b-s/roadgraph/pkg/metrics"
)

type GraphStore interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	PathEndpoints(ctx context.Context) ([]datastructure.PathEndpoints, error)
	GetPaths(ctx context.Context, ids []string) ([]datastructure.PathDoc, error)
	CountPathsBetween(ctx context.Context, start, end int64) (int64, error)
	CountPaths(ctx context.Context) (int64, error)
	CountIntersections(ctx context.Context) (int64, error)
	InsertPaths(ctx context.Context, paths []datastructure.PathDoc) error
	DeletePaths(ctx context.Context, ids []string) (int64, error)
	DeleteIntersection(ctx context.Context, id int64) error
	DeleteSelfLoops(ctx context.Context) (int64, error)
	DeleteIsolatedIntersections(ctx context.Context) (int64, error)
	DuplicatePairs(ctx context.Context) (int64, error)
}

type Contractor struct {
	store   GraphStore
	metrics *metrics.Metrics
	workers int

	// pivots whose merge failed; they stay in the graph for the rest of the run
	rejected map[int64]struct{}
}

func NewContractor(st GraphStore, m *metrics.Metrics, workers int) *Contractor {
	return &Contractor{
		store:    st,
		metrics:  m,
		workers:  max(workers, 1),
		rejected: make(map[int64]struct{}),
	}
}

// PassResult describes one Scan, Propose, Apply round.
type PassResult struct {
	Index          int
	Proposals      int
	Applied        int
	Failed         int
	EdgesBefore    int64
	EdgesAfter     int64
	NodesBefore    int64
	NodesAfter     int64
	DuplicatePairs int64
}

// Run contracts the graph to a fixed point, then drops self-loops and
// isolated intersections and reports duplicate pairs.
func (c *Contractor) Run(ctx context.Context) ([]PassResult, error) {
	passes, err := c.Contract(ctx)
	if err != nil {
		return passes, err
	}
	if err := c.Cleanup(ctx); err != nil {
		return passes, err
	}
	_, err = c.ReportDuplicates(ctx)
	return passes, err
}

// Contract repeats RunPass until a pass proposes nothing.
func (c *Contractor) Contract(ctx context.Context) ([]PassResult, error) {
	progress := logging.NewProgress(logging.FromContext(ctx))

	passes := make([]PassResult, 0)
	for i := 0; ; i++ {
		res, err := c.RunPass(ctx, i)
		if err != nil {
			return passes, err
		}
		passes = append(passes, res)
		if res.Proposals == 0 {
			break
		}
	}

	merged := 0
	for _, p := range passes {
		merged += p.Applied
	}
	progress.Done("contraction finished", "passes", len(passes), "merged", merged, "rejected", len(c.rejected))
	return passes, nil
}

type applyResult struct {
	proposal MergeProposal
	err      error
}

// RunPass scans the stored topology and applies every proposal it yields.
// Proposals never share a node, so they run concurrently.
func (c *Contractor) RunPass(ctx context.Context, index int) (PassResult, error) {
	logger := logging.FromContext(ctx)
	res := PassResult{Index: index}

	var err error
	if res.EdgesBefore, res.NodesBefore, err = c.counts(ctx); err != nil {
		return res, err
	}
	if res.DuplicatePairs, err = c.store.DuplicatePairs(ctx); err != nil {
		return res, errs.Annotate(err, "count duplicate pairs")
	}

	endpoints, err := c.store.PathEndpoints(ctx)
	if err != nil {
		return res, errs.Annotate(err, "scan path endpoints")
	}
	proposals := Scan(endpoints).Propose(c.rejected)
	res.Proposals = len(proposals)

	if len(proposals) > 0 {
		wp := concurrent.NewWorkerPool[MergeProposal, applyResult](c.workers, len(proposals))
		for _, p := range proposals {
			wp.AddJob(p)
		}
		wp.Close()
		wp.Start(func(p MergeProposal) applyResult {
			return applyResult{proposal: p, err: c.Apply(ctx, p)}
		})
		wp.Wait()

		for r := range wp.CollectResults() {
			if r.err == nil {
				res.Applied++
				continue
			}
			res.Failed++
			c.rejected[r.proposal.Pivot] = struct{}{}
			if errs.Is(r.err, errs.ErrCodeStructural) {
				c.metrics.StructuralInconsistency.Inc()
			}
			logger.Warn("merge skipped", "pivot", r.proposal.Pivot, "a", r.proposal.A, "c", r.proposal.C, "err", r.err)
		}
		c.metrics.MergesApplied.Add(float64(res.Applied))
	}

	if res.EdgesAfter, res.NodesAfter, err = c.counts(ctx); err != nil {
		return res, err
	}
	c.metrics.ContractionPassEdges.Set(float64(res.EdgesAfter))

	logger.Info("contraction pass",
		"pass", index,
		"proposals", res.Proposals,
		"applied", res.Applied,
		"failed", res.Failed,
		"edges_before", res.EdgesBefore,
		"edges_after", res.EdgesAfter,
		"nodes_before", res.NodesBefore,
		"nodes_after", res.NodesAfter,
		"duplicate_pairs", res.DuplicatePairs)
	return res, nil
}

func (c *Contractor) counts(ctx context.Context) (edges, nodes int64, err error) {
	if edges, err = c.store.CountPaths(ctx); err != nil {
		return 0, 0, errs.Annotate(err, "count paths")
	}
	if nodes, err = c.store.CountIntersections(ctx); err != nil {
		return 0, 0, errs.Annotate(err, "count intersections")
	}
	return edges, nodes, nil
}

// Apply replaces A->B->C and C->B->A by A->C and C->A and deletes B, all in
// one transaction. If the stored paths do not match the proposal exactly,
// nothing is changed and a structural error is returned.
func (c *Contractor) Apply(ctx context.Context, p MergeProposal) error {
	return c.store.WithTransaction(ctx, func(ctx context.Context) error {
		docs, err := c.fetch(ctx, p)
		if err != nil {
			return err
		}
		inA, outC, inC, outA := docs[0], docs[1], docs[2], docs[3]

		pairs := [][2]int64{{p.A, p.Pivot}, {p.Pivot, p.C}, {p.C, p.Pivot}, {p.Pivot, p.A}}
		for _, pair := range pairs {
			n, err := c.store.CountPathsBetween(ctx, pair[0], pair[1])
			if err != nil {
				return errs.Annotate(err, "count paths %d->%d", pair[0], pair[1])
			}
			if n != 1 {
				return errs.New(errs.ErrCodeStructural, "pivot %d: %d paths %d->%d, want 1", p.Pivot, n, pair[0], pair[1])
			}
		}

		forward := mergeDocs(inA, outC)
		backward := mergeDocs(inC, outA)

		deleted, err := c.store.DeletePaths(ctx, p.EdgeIDs())
		if err != nil {
			return errs.Annotate(err, "delete paths around %d", p.Pivot)
		}
		if deleted != 4 {
			return errs.New(errs.ErrCodeStructural, "pivot %d: deleted %d paths, want 4", p.Pivot, deleted)
		}
		if err := c.store.InsertPaths(ctx, []datastructure.PathDoc{forward, backward}); err != nil {
			return errs.Annotate(err, "insert merged paths for %d", p.Pivot)
		}
		if err := c.store.DeleteIntersection(ctx, p.Pivot); err != nil {
			return errs.Annotate(err, "delete intersection %d", p.Pivot)
		}
		return nil
	})
}

// fetch loads the four paths of p in EdgeIDs order and checks that each one
// runs in the direction the proposal expects.
func (c *Contractor) fetch(ctx context.Context, p MergeProposal) ([4]datastructure.PathDoc, error) {
	var out [4]datastructure.PathDoc

	docs, err := c.store.GetPaths(ctx, p.EdgeIDs())
	if err != nil {
		return out, errs.Annotate(err, "get paths around %d", p.Pivot)
	}
	byID := make(map[string]datastructure.PathDoc, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	want := [4][2]int64{{p.A, p.Pivot}, {p.Pivot, p.C}, {p.C, p.Pivot}, {p.Pivot, p.A}}
	for i, id := range p.EdgeIDs() {
		d, ok := byID[id]
		if !ok {
			return out, errs.New(errs.ErrCodeStructural, "pivot %d: path %s is missing", p.Pivot, id)
		}
		if d.StartNode != want[i][0] || d.EndNode != want[i][1] {
			return out, errs.New(errs.ErrCodeStructural, "pivot %d: path %s runs %d->%d, want %d->%d",
				p.Pivot, id, d.StartNode, d.EndNode, want[i][0], want[i][1])
		}
		out[i] = d
	}
	return out, nil
}

// Cleanup deletes self-loops left by contraction, then every intersection
// without an incident path.
func (c *Contractor) Cleanup(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	loops, err := c.store.DeleteSelfLoops(ctx)
	if err != nil {
		return errs.Annotate(err, "delete self loops")
	}
	isolated, err := c.store.DeleteIsolatedIntersections(ctx)
	if err != nil {
		return errs.Annotate(err, "delete isolated intersections")
	}
	logger.Info("graph cleaned", "self_loops", loops, "isolated_intersections", isolated)
	return nil
}

// ReportDuplicates logs how many ordered node pairs have more than one path.
func (c *Contractor) ReportDuplicates(ctx context.Context) (int64, error) {
	n, err := c.store.DuplicatePairs(ctx)
	if err != nil {
		return 0, errs.Annotate(err, "count duplicate pairs")
	}
	logging.FromContext(ctx).Info("duplicate paths", "pairs", n)
	return n, nil
}
