// Package tracer walks the way graph outward from every intersection and
// persists the pathways it finds as pairs of directed path rows.
package tracer

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/lintang-b-s/roadgraph/pkg/logging"
	"github.com/lintang-b-s/roadgraph/pkg/metrics"
	"github.com/lintang-b-s/roadgraph/pkg/pathway"
	"golang.org/x/exp/slices"
)

const DefaultMaxDepth = 4

type PathStore interface {
	WaysOfNode(ctx context.Context, nodeID int64) ([]datastructure.Way, error)
	IntersectionIDs(ctx context.Context) (datastructure.IntersectionSet, error)
	IntersectionsInBox(ctx context.Context, box datastructure.BoundingBox) ([]datastructure.Intersection, error)
	PathExists(ctx context.Context, start, end int64) (bool, error)
	InsertPaths(ctx context.Context, paths []datastructure.PathDoc) error
}

type ElevationReader interface {
	ReadNodes(ctx context.Context, nodes []datastructure.Node) (pathway.Elevation, error)
}

// Progress is the checkpoint of intersections that were fully traced.
type Progress interface {
	Addressed(ctx context.Context) (datastructure.IntersectionSet, error)
	MarkAddressed(ctx context.Context, nodeID int64) error
}

type Options struct {
	MaxDepth       int
	LookupAttempts int
	LookupDelay    time.Duration
	MarkAttempts   int
	MarkDelay      time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxDepth:       DefaultMaxDepth,
		LookupAttempts: 3,
		LookupDelay:    2 * time.Second,
		MarkAttempts:   5,
		MarkDelay:      time.Second,
	}
}

type Tracer struct {
	store     PathStore
	elevation ElevationReader
	progress  Progress
	metrics   *metrics.Metrics
	opts      Options

	intersections datastructure.IntersectionSet
	addressed     datastructure.IntersectionSet
}

// NewTracer takes the intersection snapshot used to decide where pathways
// end. Refresh replaces it, together with the addressed snapshot.
func NewTracer(st PathStore, elev ElevationReader, progress Progress, m *metrics.Metrics,
	intersections datastructure.IntersectionSet, opts Options) *Tracer {
	if intersections == nil {
		intersections = datastructure.NewIntersectionSet()
	}
	return &Tracer{
		store:         st,
		elevation:     elev,
		progress:      progress,
		metrics:       m,
		opts:          opts,
		intersections: intersections,
		addressed:     datastructure.NewIntersectionSet(),
	}
}

// Refresh reloads the intersection and addressed snapshots. Call it between
// runs only, never while cells are being processed.
func (t *Tracer) Refresh(ctx context.Context) error {
	intersections, err := t.store.IntersectionIDs(ctx)
	if err != nil {
		return errs.WrapErrorf(err, errs.ErrCodeInternal, "load intersection ids")
	}
	addressed, err := t.progress.Addressed(ctx)
	if err != nil {
		return errs.WrapErrorf(err, errs.ErrCodeInternal, "load addressed nodes")
	}
	t.intersections = intersections
	t.addressed = addressed

	logger := logging.FromContext(ctx)
	total := len(intersections)
	logger.Info("tracer snapshot loaded",
		"intersections", total,
		"addressed", len(addressed),
		"unaddressed", total-len(addressed))
	return nil
}

// WaySet holds the ids of ways already walked in one traversal.
type WaySet map[int64]struct{}

func NewWaySet(ids ...int64) WaySet {
	s := make(WaySet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s WaySet) has(id int64) bool {
	_, ok := s[id]
	return ok
}

func (s WaySet) clone() WaySet {
	out := make(WaySet, len(s)+1)
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Discover returns the pathways leaving start along ways. visited is updated
// in place for the ways handled at this level; every recursive call works on
// its own copy so sibling branches never see each other's ways.
func (t *Tracer) Discover(ctx context.Context, start datastructure.Node, ways []datastructure.Way,
	visited WaySet, depth int) ([]*pathway.Pathway, error) {
	if depth >= t.opts.MaxDepth {
		t.metrics.DepthTruncations.Inc()
		return nil, nil
	}
	logger := logging.FromContext(ctx)

	pathways := make([]*pathway.Pathway, 0, 2)
	for _, way := range ways {
		if visited.has(way.ID) {
			continue
		}
		visited[way.ID] = struct{}{}

		highway, ok := way.Tags["highway"]
		if !ok {
			logger.Debug("not a highway", "way", way.ID)
			continue
		}
		if len(way.Nodes) < 2 {
			continue
		}

		ids := way.NodeIDs()
		idx := slices.Index(ids, start.ID)
		if idx < 0 {
			continue
		}
		mask := t.intersections.Mask(ids)
		surface := way.Tags["surface"]

		// towards the first node of the way
		if idx > 0 {
			k := scanBackward(ids, mask, idx, start.ID)
			var (
				p   *pathway.Pathway
				err error
			)
			if k >= 0 {
				p, err = t.segment(ctx, way.Nodes[k:idx+1], highway, surface, way.Tags)
			} else {
				p, err = t.extend(ctx, way.Nodes[:idx+1], way.Nodes[0], highway, surface, way.Tags, visited, depth)
			}
			if err != nil {
				return nil, err
			}
			if p != nil {
				pathways = append(pathways, p)
			}
		}

		// towards the last node of the way
		if idx < len(ids)-1 {
			k := scanForward(ids, mask, idx, start.ID)
			var (
				p   *pathway.Pathway
				err error
			)
			if k >= 0 {
				p, err = t.segment(ctx, way.Nodes[idx:k+1], highway, surface, way.Tags)
			} else {
				p, err = t.extend(ctx, way.Nodes[idx:], way.Nodes[len(way.Nodes)-1], highway, surface, way.Tags, visited, depth)
			}
			if err != nil {
				return nil, err
			}
			if p != nil {
				pathways = append(pathways, p)
			}
		}
	}
	return pathways, nil
}

func scanForward(ids []int64, mask []bool, from int, startID int64) int {
	for i := from; i < len(ids); i++ {
		if mask[i] && ids[i] != startID {
			return i
		}
	}
	return -1
}

func scanBackward(ids []int64, mask []bool, from int, startID int64) int {
	for i := from; i >= 0; i-- {
		if mask[i] && ids[i] != startID {
			return i
		}
	}
	return -1
}

func (t *Tracer) segment(ctx context.Context, nodes []datastructure.Node, highway, surface string,
	tags map[string]string) (*pathway.Pathway, error) {
	elev, err := t.elevation.ReadNodes(ctx, nodes)
	if err != nil {
		return nil, errs.Annotate(err, "read elevation of %d nodes from %d", len(nodes), nodes[0].ID)
	}
	return pathway.New(nodes, elev, highway, surface, tags)
}

// extend continues a section that ran off the end of its way without meeting
// an intersection. The section is kept only when the endpoint leads to exactly
// one pathway.
func (t *Tracer) extend(ctx context.Context, partial []datastructure.Node, endpoint datastructure.Node,
	highway, surface string, tags map[string]string, visited WaySet, depth int) (*pathway.Pathway, error) {
	ways, err := t.waysOfNode(ctx, endpoint.ID)
	if err != nil {
		return nil, err
	}
	if len(ways) <= 1 {
		// dead end
		return nil, nil
	}

	sub, err := t.Discover(ctx, endpoint, ways, visited.clone(), depth+1)
	if err != nil {
		return nil, err
	}
	switch {
	case len(sub) == 0:
		return nil, nil
	case len(sub) > 1:
		t.metrics.AmbiguousTraversals.Inc()
		logging.FromContext(ctx).Debug("ambiguous traversal dropped",
			"endpoint", endpoint.ID, "candidates", len(sub), "depth", depth+1)
		return nil, nil
	}

	head, err := t.segment(ctx, partial, highway, surface, tags)
	if err != nil {
		return nil, err
	}
	p, err := pathway.Compose(head, sub[0])
	if err != nil {
		logging.FromContext(ctx).Debug("branch closes on itself", "endpoint", endpoint.ID, "err", err)
		return nil, nil
	}
	return p, nil
}

func (t *Tracer) waysOfNode(ctx context.Context, nodeID int64) ([]datastructure.Way, error) {
	var ways []datastructure.Way
	err := errs.Retry(ctx, t.opts.LookupAttempts, t.opts.LookupDelay, func() error {
		var err error
		ways, err = t.store.WaysOfNode(ctx, nodeID)
		return err
	}, t.retryHook(ctx, "ways_of_node", nodeID))
	if err != nil {
		return nil, errs.Annotate(err, "ways of node %d", nodeID)
	}
	return ways, nil
}

func (t *Tracer) retryHook(ctx context.Context, call string, nodeID int64) func(int, error) {
	count := t.metrics.RetryHook(call)
	return func(attempt int, err error) {
		count(attempt, err)
		logging.FromContext(ctx).Warn("retrying", "call", call, "node", nodeID, "attempt", attempt, "err", err)
	}
}

func logLevelFor(err error) log.Level {
	if errs.IsTransient(err) {
		return log.WarnLevel
	}
	return log.ErrorLevel
}
