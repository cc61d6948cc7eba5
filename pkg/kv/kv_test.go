package kv

import (
	"context"
	"testing"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMem(t *testing.T) *KVDB {
	t.Helper()
	kv, err := OpenKVDB("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestBadgerProgress(t *testing.T) {
	ctx := context.Background()
	p := NewBadgerProgress(openMem(t))

	for _, id := range []int64{10, 20, 30, 20} {
		require.NoError(t, p.MarkAddressed(ctx, id))
	}

	set, err := p.Addressed(ctx)
	require.NoError(t, err)
	assert.Equal(t, datastructure.NewIntersectionSet(10, 20, 30), set)

	ok, err := p.IsAddressed(ctx, 20)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = p.IsAddressed(ctx, 40)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Clear(ctx))
	set, err = p.Addressed(ctx)
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestCompressRoundTrip(t *testing.T) {
	ids := []string{"a", "b", "0b7f3c1e-aaaa-bbbb-cccc-000000000000"}
	bb, err := encodeEdgeIDs(ids)
	require.NoError(t, err)

	got, err := decodeEdgeIDs(bb)
	require.NoError(t, err)
	assert.Equal(t, ids, got)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	require.NoError(t, st.InsertSplitNodes(ctx, []datastructure.SplitNode{
		{ID: "1_e", OriginalID: 1, Lat: 46.05, Lon: 14.50, Elevation: 295, Start: true},
		{ID: "2_e", OriginalID: 2, Lat: 46.05, Lon: 14.51, Elevation: 298},
	}))
	require.NoError(t, st.UpsertSplitPaths(ctx, []datastructure.SplitPathDoc{{
		ID:        "e",
		StartNode: "1_e",
		EndNode:   "2_e",
		EdgeFeatures: datastructure.EdgeFeatures{
			Distance: 773,
			PathType: []string{"residential"},
			Surface:  []string{"asphalt"},
			HillFlat: 773,
			Forward:  true,
			Backward: true,
			Valid:    true,
			Nodes: []datastructure.PathNode{
				{ID: 1, Lat: 46.05, Lon: 14.50},
				{ID: 2, Lat: 46.05, Lon: 14.51},
			},
		},
	}}))

	exp := NewGraphExporter(openMem(t), DefaultResolution)
	res, err := exp.Export(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Nodes)
	assert.Equal(t, 1, res.Edges)
	assert.GreaterOrEqual(t, res.Cells, 2)

	n, err := exp.GetNode("1_e")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.OriginalID)
	assert.True(t, n.Start)

	e, err := exp.GetEdge("e")
	require.NoError(t, err)
	assert.Equal(t, "1_e", e.From)
	assert.Equal(t, "2_e", e.To)
	assert.Equal(t, 773.0, e.Hills[0])
	coords, err := datastructure.DecodePolyline(e.Polyline)
	require.NoError(t, err)
	require.Len(t, coords, 2)
	assert.InDelta(t, 14.51, coords[1].Lon, 1e-5)

	near, err := exp.EdgesNear(46.05, 14.50, 0.2)
	require.NoError(t, err)
	assert.Equal(t, []string{"e"}, near)

	_, err = exp.GetNode("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// exporting again only overwrites
	res2, err := exp.Export(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, res, res2)
}
