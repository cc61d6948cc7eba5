// Package splitter expands every intersection of the contracted graph into
// one sub-node per incident path and links incoming to outgoing sub-nodes
// with turn transitions.
package splitter

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/elevation"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/lintang-b-s/roadgraph/pkg/geo"
	"github.com/lintang-b-s/roadgraph/pkg/logging"
	"github.com/lintang-b-s/roadgraph/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	TransitionType = "Intersection"
	batchSize      = 1000
)

type SplitStore interface {
	ForEachIntersection(ctx context.Context, batchSize int, fn func([]datastructure.Intersection) error) error
	ForEachPath(ctx context.Context, batchSize int, fn func([]datastructure.PathDoc) error) error
	PathsStartingAt(ctx context.Context, nodeID int64) ([]datastructure.PathDoc, error)
	PathsEndingAt(ctx context.Context, nodeID int64) ([]datastructure.PathDoc, error)
	InsertSplitNodes(ctx context.Context, nodes []datastructure.SplitNode) error
	UpsertSplitPaths(ctx context.Context, paths []datastructure.SplitPathDoc) error
}

type Splitter struct {
	store   SplitStore
	metrics *metrics.Metrics
	workers int
}

func NewSplitter(st SplitStore, m *metrics.Metrics, workers int) *Splitter {
	return &Splitter{store: st, metrics: m, workers: max(workers, 1)}
}

type Result struct {
	Intersections int64
	SubNodes      int64
	Transitions   int64
	Rerouted      int64
}

// Split writes intersections_splitted and paths_splitted. Both writes are
// keyed by deterministic ids, so running it again changes nothing.
func (s *Splitter) Split(ctx context.Context) (Result, error) {
	logger := logging.FromContext(ctx)
	progress := logging.NewProgress(logger)

	var (
		res                              Result
		intersections, subs, transitions atomic.Int64
	)
	err := s.store.ForEachIntersection(ctx, batchSize, func(batch []datastructure.Intersection) error {
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(s.workers)
		for _, in := range batch {
			eg.Go(func() error {
				n, t, err := s.splitIntersection(egCtx, in)
				if err != nil {
					return err
				}
				intersections.Add(1)
				subs.Add(int64(n))
				transitions.Add(int64(t))
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
		logger.Debug("split batch done", "intersections", intersections.Load())
		return nil
	})
	res.Intersections, res.SubNodes, res.Transitions = intersections.Load(), subs.Load(), transitions.Load()
	if err != nil {
		return res, err
	}

	if res.Rerouted, err = s.reroute(ctx); err != nil {
		return res, err
	}
	progress.Done("intersections split",
		"intersections", res.Intersections,
		"sub_nodes", res.SubNodes,
		"transitions", res.Transitions,
		"rerouted", res.Rerouted)
	return res, nil
}

func (s *Splitter) splitIntersection(ctx context.Context, in datastructure.Intersection) (int, int, error) {
	incoming, err := s.store.PathsEndingAt(ctx, in.ID)
	if err != nil {
		return 0, 0, errs.Annotate(err, "paths ending at %d", in.ID)
	}
	outgoing, err := s.store.PathsStartingAt(ctx, in.ID)
	if err != nil {
		return 0, 0, errs.Annotate(err, "paths starting at %d", in.ID)
	}

	nodes := make([]datastructure.SplitNode, 0, len(incoming)+len(outgoing))
	for _, p := range incoming {
		nodes = append(nodes, subNode(in, p.ID, false))
	}
	for _, p := range outgoing {
		nodes = append(nodes, subNode(in, p.ID, true))
	}
	if len(nodes) > 0 {
		if err := s.store.InsertSplitNodes(ctx, nodes); err != nil {
			return 0, 0, errs.Annotate(err, "insert sub-nodes of %d", in.ID)
		}
	}

	transitions := make([]datastructure.SplitPathDoc, 0, len(incoming)*len(outgoing))
	for _, from := range incoming {
		for _, to := range outgoing {
			transitions = append(transitions, Transition(in.ID, from, to))
		}
	}
	if len(transitions) > 0 {
		if err := s.store.UpsertSplitPaths(ctx, transitions); err != nil {
			return 0, 0, errs.Annotate(err, "insert transitions of %d", in.ID)
		}
		s.metrics.SplitTransitionsInserted.Add(float64(len(transitions)))
	}
	return len(nodes), len(transitions), nil
}

// subNode is the sub-node of in owned by path edgeID. Outgoing sub-nodes
// never carry the traffic signal, so a signalised turn is counted once.
func subNode(in datastructure.Intersection, edgeID string, start bool) datastructure.SplitNode {
	return datastructure.SplitNode{
		ID:             datastructure.SplitNodeID(in.ID, edgeID),
		OriginalID:     in.ID,
		Lat:            in.Lat,
		Lon:            in.Lon,
		Elevation:      in.ElevationOr(elevation.Sentinel),
		TrafficSignals: in.Signalised() && !start,
		Start:          start,
	}
}

// Transition links the sub-node of intersection id where from arrives to the
// sub-node where to leaves. Its angle is the turn between the last leg of
// from and the first leg of to.
func Transition(id int64, from, to datastructure.PathDoc) datastructure.SplitPathDoc {
	startID := datastructure.SplitNodeID(id, from.ID)
	endID := datastructure.SplitNodeID(id, to.ID)

	angle := 0.0
	if len(from.Nodes) >= 2 && len(to.Nodes) >= 2 {
		angle = geo.TurnAngle(
			from.Nodes[len(from.Nodes)-2].Coordinate(),
			to.Nodes[0].Coordinate(),
			to.Nodes[1].Coordinate(),
		)
	}

	return datastructure.SplitPathDoc{
		ID:         fmt.Sprintf("%s>%s", startID, endID),
		StartNode:  startID,
		EndNode:    endID,
		Transition: true,
		EdgeFeatures: datastructure.EdgeFeatures{
			PathType:      []string{TransitionType},
			Surface:       []string{TransitionType},
			TotalAngle:    angle,
			Curviness:     angle,
			Forward:       true,
			Backward:      false,
			BicycleAccess: true,
			FootAccess:    true,
			CarAccess:     true,
			Valid:         true,
			Nodes:         []datastructure.PathNode{},
		},
	}
}

// reroute copies every path into paths_splitted with its endpoints re-keyed
// to the sub-nodes created for it.
func (s *Splitter) reroute(ctx context.Context) (int64, error) {
	var n int64
	err := s.store.ForEachPath(ctx, batchSize, func(batch []datastructure.PathDoc) error {
		docs := make([]datastructure.SplitPathDoc, len(batch))
		for i, p := range batch {
			docs[i] = datastructure.SplitPathDoc{
				ID:           p.ID,
				StartNode:    datastructure.SplitNodeID(p.StartNode, p.ID),
				EndNode:      datastructure.SplitNodeID(p.EndNode, p.ID),
				EdgeFeatures: p.EdgeFeatures,
			}
		}
		if err := s.store.UpsertSplitPaths(ctx, docs); err != nil {
			return errs.Annotate(err, "reroute %d paths", len(docs))
		}
		n += int64(len(docs))
		return nil
	})
	return n, err
}
