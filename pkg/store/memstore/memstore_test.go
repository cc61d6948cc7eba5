package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func path(id string, start, end int64) datastructure.PathDoc {
	return datastructure.PathDoc{
		ID:        id,
		StartNode: start,
		EndNode:   end,
		EdgeFeatures: datastructure.EdgeFeatures{
			Distance: 10,
			PathType: []string{"residential"},
			Surface:  []string{"asphalt"},
			Valid:    true,
			Nodes:    []datastructure.PathNode{{ID: start}, {ID: end}},
		},
	}
}

func TestTransactionRollback(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.UpsertIntersections(ctx, []datastructure.Intersection{{ID: 1}, {ID: 2}, {ID: 3}}))
	require.NoError(t, s.InsertPaths(ctx, []datastructure.PathDoc{path("a", 1, 2), path("b", 2, 3)}))

	boom := errors.New("boom")
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		n, err := s.DeletePaths(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		require.NoError(t, s.InsertPaths(ctx, []datastructure.PathDoc{path("c", 1, 3)}))
		require.NoError(t, s.DeleteIntersection(ctx, 2))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	eps, err := s.PathEndpoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, []datastructure.PathEndpoints{{ID: "a", StartNode: 1, EndNode: 2}, {ID: "b", StartNode: 2, EndNode: 3}}, eps)
	n, _ := s.CountIntersections(ctx)
	assert.Equal(t, int64(3), n)
}

func TestFailNext(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")
	s.FailNext("InsertPaths", boom)

	assert.ErrorIs(t, s.InsertPaths(ctx, []datastructure.PathDoc{path("a", 1, 2)}), boom)
	assert.NoError(t, s.InsertPaths(ctx, []datastructure.PathDoc{path("a", 1, 2)}))
	assert.Error(t, s.InsertPaths(ctx, []datastructure.PathDoc{path("a", 1, 2)}), "duplicate id")
}

func TestCleanupQueries(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.UpsertIntersections(ctx, []datastructure.Intersection{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}))
	require.NoError(t, s.InsertPaths(ctx, []datastructure.PathDoc{
		path("a", 1, 2), path("b", 1, 2), path("c", 3, 3),
	}))

	dup, err := s.DuplicatePairs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dup)

	loops, err := s.DeleteSelfLoops(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), loops)

	isolated, err := s.DeleteIsolatedIntersections(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), isolated)

	ids, err := s.IntersectionIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, datastructure.NewIntersectionSet(1, 2), ids)
}

func TestIntersectionsInBox(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.UpsertIntersections(ctx, []datastructure.Intersection{
		{ID: 1, Lat: 0, Lon: 0},
		{ID: 2, Lat: 1, Lon: 0.5},
		{ID: 3, Lat: 0.5, Lon: 1},
	}))

	box := datastructure.BoundingBox{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1}
	got, err := s.IntersectionsInBox(ctx, box)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	box.ClosedLat, box.ClosedLon = true, true
	got, err = s.IntersectionsInBox(ctx, box)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := New()
	elev := 300.0
	require.NoError(t, s.UpsertIntersections(ctx, []datastructure.Intersection{{ID: 1}, {ID: 2}}))
	require.NoError(t, s.UpdateEnrichment(ctx, []datastructure.Intersection{{ID: 1, Elevation: &elev}}))
	require.NoError(t, s.InsertPaths(ctx, []datastructure.PathDoc{path("a", 1, 2)}))

	require.NoError(t, s.Reset(ctx, false))
	n, _ := s.CountPaths(ctx)
	assert.Zero(t, n)
	missing, err := s.IntersectionsMissingElevation(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, missing, 2)

	require.NoError(t, s.Reset(ctx, true))
	n, _ = s.CountIntersections(ctx)
	assert.Zero(t, n)
}
