package enrich

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/lintang-b-s/roadgraph/pkg/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	calls int
	down  bool
}

func (f *fakeLookup) LookupOrSentinel(ctx context.Context, coords []datastructure.Coordinate) ([]float64, error) {
	f.calls++
	out := make([]float64, len(coords))
	for i, c := range coords {
		out[i] = c.Lat * 10
		if f.down {
			out[i] = -1000
		}
	}
	if f.down {
		return out, errs.Transient(stderrors.New("down"), "lookup")
	}
	return out, nil
}

func seed(t *testing.T, n int) *memstore.Store {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	ins := make([]datastructure.Intersection, n)
	nodeWays := make([]datastructure.NodeWays, 0, n)
	for i := range n {
		id := int64(i + 1)
		ins[i] = datastructure.Intersection{ID: id, Lat: float64(id), Lon: 14}
		nodeWays = append(nodeWays, datastructure.NodeWays{ID: id, Ways: []int64{100 + id, 200 + id}})
	}
	ins[0].Tags = map[string]string{"highway": "traffic_signals"}
	require.NoError(t, st.UpsertIntersections(ctx, ins))
	require.NoError(t, st.InsertNodeWays(ctx, nodeWays))
	return st
}

func all(t *testing.T, st *memstore.Store) []datastructure.Intersection {
	t.Helper()
	var out []datastructure.Intersection
	require.NoError(t, st.ForEachIntersection(context.Background(), 100, func(b []datastructure.Intersection) error {
		out = append(out, b...)
		return nil
	}))
	return out
}

func TestEnrichInBatches(t *testing.T) {
	st := seed(t, 7)
	lookup := &fakeLookup{}
	e := NewEnricher(st, lookup, 3)

	res, err := e.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Result{Enriched: 7, Batches: 3}, res)
	assert.Equal(t, 3, lookup.calls)

	got := all(t, st)
	require.Len(t, got, 7)
	assert.True(t, got[0].Signalised())
	assert.False(t, got[1].Signalised())
	assert.Equal(t, 20.0, got[1].ElevationOr(0))
	assert.Equal(t, []int64{103, 203}, got[2].WayIDs)
}

func TestEnrichFallsBackToSentinel(t *testing.T) {
	st := seed(t, 2)
	e := NewEnricher(st, &fakeLookup{down: true}, 10)

	res, err := e.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, res.Sentinels)
	for _, in := range all(t, st) {
		assert.Equal(t, -1000.0, in.ElevationOr(0))
	}
}

func TestEnrichStopsOnStoreError(t *testing.T) {
	st := seed(t, 2)
	boom := errs.New(errs.ErrCodeInternal, "boom")
	st.FailNext("IntersectionsMissingElevation", boom)
	e := NewEnricher(st, &fakeLookup{}, 10)

	_, err := e.Run(context.Background())

	assert.ErrorIs(t, err, boom)
}
