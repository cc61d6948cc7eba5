// Package memstore is an in-process implementation of store.Store. Writes made
// inside WithTransaction are journaled and undone when the callback fails.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/lintang-b-s/roadgraph/pkg/store"
)

var _ store.Store = (*Store)(nil)

type pathEntry struct {
	doc datastructure.PathDoc
	seq int64
}

type Store struct {
	mu sync.Mutex

	ways          map[int64]datastructure.Way
	nodeWays      map[int64][]int64
	intersections map[int64]datastructure.Intersection
	paths         map[string]pathEntry
	splitNodes    map[string]datastructure.SplitNode
	splitPaths    map[string]datastructure.SplitPathDoc
	splitOrder    []string
	seq           int64

	txMu   sync.Mutex
	faults map[string]error
}

func New() *Store {
	return &Store{
		ways:          make(map[int64]datastructure.Way),
		nodeWays:      make(map[int64][]int64),
		intersections: make(map[int64]datastructure.Intersection),
		paths:         make(map[string]pathEntry),
		splitNodes:    make(map[string]datastructure.SplitNode),
		splitPaths:    make(map[string]datastructure.SplitPathDoc),
		faults:        make(map[string]error),
	}
}

// FailNext makes the next call to the named method return err.
func (s *Store) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = err
}

// fault must be called with s.mu held.
func (s *Store) fault(method string) error {
	if err, ok := s.faults[method]; ok {
		delete(s.faults, method)
		return err
	}
	return nil
}

type txKey struct{}

type journal struct {
	undo []func()
}

// record registers an undo step when ctx belongs to a transaction. Must be
// called with s.mu held.
func record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(txKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	j := &journal{}
	if err := fn(context.WithValue(ctx, txKey{}, j)); err != nil {
		s.mu.Lock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	return nil
}

func (s *Store) InsertWays(ctx context.Context, ways []datastructure.Way) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range ways {
		s.ways[w.ID] = w
	}
	return nil
}

func (s *Store) InsertNodeWays(ctx context.Context, nodes []datastructure.NodeWays) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range nodes {
		s.nodeWays[n.ID] = append([]int64(nil), n.Ways...)
	}
	return nil
}

func (s *Store) UpsertIntersections(ctx context.Context, intersections []datastructure.Intersection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range intersections {
		if _, ok := s.intersections[in.ID]; !ok {
			s.intersections[in.ID] = in
		}
	}
	return nil
}

func (s *Store) WaysOfNode(ctx context.Context, nodeID int64) ([]datastructure.Way, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("WaysOfNode"); err != nil {
		return nil, err
	}
	ways := make([]datastructure.Way, 0, len(s.nodeWays[nodeID]))
	for _, id := range s.nodeWays[nodeID] {
		if w, ok := s.ways[id]; ok {
			ways = append(ways, w)
		}
	}
	return ways, nil
}

func (s *Store) NodeWays(ctx context.Context, ids []int64) (map[int64][]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64][]int64, len(ids))
	for _, id := range ids {
		if ways, ok := s.nodeWays[id]; ok {
			out[id] = append([]int64(nil), ways...)
		}
	}
	return out, nil
}

func (s *Store) sortedIntersections(keep func(datastructure.Intersection) bool) []datastructure.Intersection {
	out := make([]datastructure.Intersection, 0)
	for _, in := range s.intersections {
		if keep == nil || keep(in) {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) IntersectionIDs(ctx context.Context) (datastructure.IntersectionSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(datastructure.IntersectionSet, len(s.intersections))
	for id := range s.intersections {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *Store) IntersectionsInBox(ctx context.Context, box datastructure.BoundingBox) ([]datastructure.Intersection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedIntersections(func(in datastructure.Intersection) bool {
		return box.Contains(in.Lat, in.Lon)
	}), nil
}

func (s *Store) ForEachIntersection(ctx context.Context, batchSize int, fn func([]datastructure.Intersection) error) error {
	s.mu.Lock()
	all := s.sortedIntersections(nil)
	s.mu.Unlock()
	return forEachBatch(ctx, all, batchSize, fn)
}

func (s *Store) IntersectionsMissingElevation(ctx context.Context, limit int) ([]datastructure.Intersection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("IntersectionsMissingElevation"); err != nil {
		return nil, err
	}
	out := s.sortedIntersections(func(in datastructure.Intersection) bool { return in.Elevation == nil })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateEnrichment(ctx context.Context, intersections []datastructure.Intersection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range intersections {
		cur, ok := s.intersections[in.ID]
		if !ok {
			continue
		}
		cur.Elevation = in.Elevation
		cur.TrafficSignals = in.TrafficSignals
		cur.WayIDs = in.WayIDs
		s.intersections[in.ID] = cur
	}
	return nil
}

func (s *Store) CountIntersections(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.intersections)), nil
}

func (s *Store) PathExists(ctx context.Context, start, end int64) (bool, error) {
	n, err := s.CountPathsBetween(ctx, start, end)
	return n > 0, err
}

func (s *Store) InsertPaths(ctx context.Context, paths []datastructure.PathDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("InsertPaths"); err != nil {
		return err
	}
	for _, p := range paths {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, ok := s.paths[p.ID]; ok {
			return errs.New(errs.ErrCodeInvalidInput, "duplicate path id %s", p.ID)
		}
	}
	for _, p := range paths {
		s.seq++
		s.paths[p.ID] = pathEntry{doc: p, seq: s.seq}
		id := p.ID
		record(ctx, func() { delete(s.paths, id) })
	}
	return nil
}

func (s *Store) orderedPaths(keep func(datastructure.PathDoc) bool) []datastructure.PathDoc {
	entries := make([]pathEntry, 0, len(s.paths))
	for _, e := range s.paths {
		if keep == nil || keep(e.doc) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]datastructure.PathDoc, len(entries))
	for i, e := range entries {
		out[i] = e.doc
	}
	return out
}

func (s *Store) PathEndpoints(ctx context.Context) ([]datastructure.PathEndpoints, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := s.orderedPaths(nil)
	out := make([]datastructure.PathEndpoints, len(paths))
	for i, p := range paths {
		out[i] = datastructure.PathEndpoints{ID: p.ID, StartNode: p.StartNode, EndNode: p.EndNode}
	}
	return out, nil
}

func (s *Store) GetPaths(ctx context.Context, ids []string) ([]datastructure.PathDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("GetPaths"); err != nil {
		return nil, err
	}
	out := make([]datastructure.PathDoc, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.paths[id]; ok {
			out = append(out, e.doc)
		}
	}
	return out, nil
}

func (s *Store) CountPathsBetween(ctx context.Context, start, end int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.paths {
		if e.doc.StartNode == start && e.doc.EndNode == end {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountPaths(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.paths)), nil
}

func (s *Store) PathsStartingAt(ctx context.Context, nodeID int64) ([]datastructure.PathDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderedPaths(func(p datastructure.PathDoc) bool { return p.StartNode == nodeID }), nil
}

func (s *Store) PathsEndingAt(ctx context.Context, nodeID int64) ([]datastructure.PathDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderedPaths(func(p datastructure.PathDoc) bool { return p.EndNode == nodeID }), nil
}

func (s *Store) ForEachPath(ctx context.Context, batchSize int, fn func([]datastructure.PathDoc) error) error {
	s.mu.Lock()
	all := s.orderedPaths(nil)
	s.mu.Unlock()
	return forEachBatch(ctx, all, batchSize, fn)
}

func (s *Store) DeletePaths(ctx context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("DeletePaths"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		e, ok := s.paths[id]
		if !ok {
			continue
		}
		delete(s.paths, id)
		n++
		record(ctx, func() { s.paths[e.doc.ID] = e })
	}
	return n, nil
}

func (s *Store) DeleteIntersection(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("DeleteIntersection"); err != nil {
		return err
	}
	in, ok := s.intersections[id]
	if !ok {
		return errs.New(errs.ErrCodeNotFound, "intersection %d", id)
	}
	delete(s.intersections, id)
	record(ctx, func() { s.intersections[id] = in })
	return nil
}

func (s *Store) DeleteSelfLoops(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.paths {
		if e.doc.IsSelfLoop() {
			delete(s.paths, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteIsolatedIntersections(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	used := make(map[int64]struct{}, len(s.intersections))
	for _, e := range s.paths {
		used[e.doc.StartNode] = struct{}{}
		used[e.doc.EndNode] = struct{}{}
	}
	var n int64
	for id := range s.intersections {
		if _, ok := used[id]; !ok {
			delete(s.intersections, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) DuplicatePairs(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[[2]int64]int)
	for _, e := range s.paths {
		counts[[2]int64{e.doc.StartNode, e.doc.EndNode}]++
	}
	var n int64
	for _, c := range counts {
		if c > 1 {
			n++
		}
	}
	return n, nil
}

func (s *Store) InsertSplitNodes(ctx context.Context, nodes []datastructure.SplitNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range nodes {
		if _, ok := s.splitNodes[n.ID]; !ok {
			s.splitNodes[n.ID] = n
		}
	}
	return nil
}

func (s *Store) UpsertSplitPaths(ctx context.Context, paths []datastructure.SplitPathDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	for _, p := range paths {
		if _, ok := s.splitPaths[p.ID]; !ok {
			s.splitOrder = append(s.splitOrder, p.ID)
		}
		s.splitPaths[p.ID] = p
	}
	return nil
}

func (s *Store) ForEachSplitNode(ctx context.Context, batchSize int, fn func([]datastructure.SplitNode) error) error {
	s.mu.Lock()
	all := make([]datastructure.SplitNode, 0, len(s.splitNodes))
	for _, n := range s.splitNodes {
		all = append(all, n)
	}
	s.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return forEachBatch(ctx, all, batchSize, fn)
}

func (s *Store) ForEachSplitPath(ctx context.Context, batchSize int, fn func([]datastructure.SplitPathDoc) error) error {
	s.mu.Lock()
	all := make([]datastructure.SplitPathDoc, 0, len(s.splitOrder))
	for _, id := range s.splitOrder {
		all = append(all, s.splitPaths[id])
	}
	s.mu.Unlock()
	return forEachBatch(ctx, all, batchSize, fn)
}

func (s *Store) Reset(ctx context.Context, all bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = make(map[string]pathEntry)
	s.splitNodes = make(map[string]datastructure.SplitNode)
	s.splitPaths = make(map[string]datastructure.SplitPathDoc)
	s.splitOrder = nil
	if all {
		s.intersections = make(map[int64]datastructure.Intersection)
		s.ways = make(map[int64]datastructure.Way)
		s.nodeWays = make(map[int64][]int64)
		return nil
	}
	for id, in := range s.intersections {
		in.Elevation, in.TrafficSignals, in.WayIDs = nil, nil, nil
		s.intersections[id] = in
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

func forEachBatch[T any](ctx context.Context, all []T, batchSize int, fn func([]T) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	for start := 0; start < len(all); start += batchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		end := min(start+batchSize, len(all))
		if err := fn(all[start:end]); err != nil {
			return err
		}
	}
	return nil
}
