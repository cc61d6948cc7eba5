// Package store declares the document store every pipeline stage reads from
// and writes to. Collection names follow the geo_data layout.
package store

import (
	"context"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
)

const (
	CollectionIntersections         = "intersections"
	CollectionPaths                 = "paths"
	CollectionIntersectionsSplitted = "intersections_splitted"
	CollectionPathsSplitted         = "paths_splitted"
	CollectionHighwaysHelper        = "highways_helper"
	CollectionNodesHelper           = "nodes_helper"
)

// Store is implemented by mongostore for production and memstore for tests.
// Stages depend on the narrower interfaces they declare themselves.
type Store interface {
	EnsureIndexes(ctx context.Context) error
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// ingest
	InsertWays(ctx context.Context, ways []datastructure.Way) error
	InsertNodeWays(ctx context.Context, nodes []datastructure.NodeWays) error
	UpsertIntersections(ctx context.Context, intersections []datastructure.Intersection) error

	// lookup
	WaysOfNode(ctx context.Context, nodeID int64) ([]datastructure.Way, error)
	NodeWays(ctx context.Context, ids []int64) (map[int64][]int64, error)
	IntersectionIDs(ctx context.Context) (datastructure.IntersectionSet, error)
	IntersectionsInBox(ctx context.Context, box datastructure.BoundingBox) ([]datastructure.Intersection, error)
	ForEachIntersection(ctx context.Context, batchSize int, fn func([]datastructure.Intersection) error) error
	IntersectionsMissingElevation(ctx context.Context, limit int) ([]datastructure.Intersection, error)
	UpdateEnrichment(ctx context.Context, intersections []datastructure.Intersection) error
	CountIntersections(ctx context.Context) (int64, error)

	// paths
	PathExists(ctx context.Context, start, end int64) (bool, error)
	InsertPaths(ctx context.Context, paths []datastructure.PathDoc) error
	PathEndpoints(ctx context.Context) ([]datastructure.PathEndpoints, error)
	GetPaths(ctx context.Context, ids []string) ([]datastructure.PathDoc, error)
	CountPathsBetween(ctx context.Context, start, end int64) (int64, error)
	CountPaths(ctx context.Context) (int64, error)
	PathsStartingAt(ctx context.Context, nodeID int64) ([]datastructure.PathDoc, error)
	PathsEndingAt(ctx context.Context, nodeID int64) ([]datastructure.PathDoc, error)
	ForEachPath(ctx context.Context, batchSize int, fn func([]datastructure.PathDoc) error) error
	DeletePaths(ctx context.Context, ids []string) (int64, error)
	DeleteIntersection(ctx context.Context, id int64) error
	DeleteSelfLoops(ctx context.Context) (int64, error)
	DeleteIsolatedIntersections(ctx context.Context) (int64, error)
	DuplicatePairs(ctx context.Context) (int64, error)

	// split graph
	InsertSplitNodes(ctx context.Context, nodes []datastructure.SplitNode) error
	UpsertSplitPaths(ctx context.Context, paths []datastructure.SplitPathDoc) error
	ForEachSplitNode(ctx context.Context, batchSize int, fn func([]datastructure.SplitNode) error) error
	ForEachSplitPath(ctx context.Context, batchSize int, fn func([]datastructure.SplitPathDoc) error) error

	Reset(ctx context.Context, all bool) error
	Close(ctx context.Context) error
}
