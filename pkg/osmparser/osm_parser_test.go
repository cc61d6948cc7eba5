package osmparser

import (
	"context"
	"testing"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/store/memstore"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func osmWay(id int64, tags osm.Tags, nodes ...int64) *osm.Way {
	w := &osm.Way{ID: osm.WayID(id), Tags: tags}
	for _, n := range nodes {
		w.Nodes = append(w.Nodes, osm.WayNode{ID: osm.NodeID(n)})
	}
	return w
}

func osmNode(id int64, lat, lon float64, tags ...osm.Tag) *osm.Node {
	return &osm.Node{ID: osm.NodeID(id), Lat: lat, Lon: lon, Tags: tags}
}

var testBoundary = datastructure.BoundingBox{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1, ClosedLat: true, ClosedLon: true}

/*
	    4
	    |
	1 - 2 - 3 - 11

	    9
	    |
	6 - 7 - 8     (7 lies outside the boundary)
	    |
	    10
*/
func newTestParser() *OsmParser {
	p := NewOSMParser(testBoundary)
	residential := osm.Tags{{Key: "highway", Value: "residential"}, {Key: "name", Value: "Glavna"}, {Key: "oneway", Value: "yes"}}
	p.AddWay(osmWay(10, residential, 1, 2, 3))
	p.AddWay(osmWay(11, osm.Tags{{Key: "highway", Value: "primary"}}, 2, 4))
	p.AddWay(osmWay(15, osm.Tags{{Key: "highway", Value: "service"}}, 3, 11))
	p.AddWay(osmWay(12, osm.Tags{{Key: "building", Value: "yes"}}, 3, 5))
	p.AddWay(osmWay(13, osm.Tags{{Key: "highway", Value: "track"}}, 6, 7, 8))
	p.AddWay(osmWay(14, osm.Tags{{Key: "highway", Value: "track"}}, 9, 7, 10))

	p.AddNode(osmNode(1, 0.1, 0.1))
	p.AddNode(osmNode(2, 0.1, 0.2, osm.Tag{Key: "highway", Value: "traffic_signals"}, osm.Tag{Key: "created_by", Value: "JOSM"}))
	p.AddNode(osmNode(3, 0.1, 0.3))
	p.AddNode(osmNode(4, 0.2, 0.2))
	p.AddNode(osmNode(5, 0.0, 0.3))
	p.AddNode(osmNode(11, 0.1, 0.4))
	for _, id := range []int64{6, 7, 8, 9, 10} {
		p.AddNode(osmNode(id, 5, float64(id)))
	}
	return p
}

func TestWayLinks(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		node int64
		want int
	}{
		{1, 1},
		{2, 3}, // interior of 10, endpoint of 11
		{3, 2}, // way 10 continues as way 15
		{4, 1},
		{5, 0}, // only referenced by a building
		{7, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.WayLinks(tt.node), "node %d", tt.node)
	}
}

func TestAddWayFiltersHighways(t *testing.T) {
	p := NewOSMParser(testBoundary)
	assert.False(t, p.AddWay(osmWay(1, osm.Tags{{Key: "building", Value: "yes"}}, 1, 2)))
	assert.False(t, p.AddWay(osmWay(2, osm.Tags{{Key: "highway", Value: "primary"}}, 1)))
	assert.True(t, p.AddWay(osmWay(3, osm.Tags{{Key: "highway", Value: "primary"}}, 1, 2)))

	assert.False(t, p.AddNode(osmNode(9, 0, 0)), "node outside every highway")
	assert.True(t, p.AddNode(osmNode(1, 0, 0)))
}

func TestFlush(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	p := newTestParser()

	res, err := p.Flush(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, Result{Ways: 5, Nodes: 10, Intersections: 1}, res)

	ids, err := st.IntersectionIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, datastructure.NewIntersectionSet(2), ids)

	ways, err := st.WaysOfNode(ctx, 2)
	require.NoError(t, err)
	require.Len(t, ways, 2)
	assert.Equal(t, int64(10), ways[0].ID)
	assert.Equal(t, map[string]string{"highway": "residential", "oneway": "yes"}, ways[0].Tags)
	assert.Equal(t, []int64{1, 2, 3}, ways[0].NodeIDs())
	assert.Equal(t, map[string]string{"highway": "traffic_signals"}, ways[0].Nodes[1].Tags)
	assert.True(t, ways[0].Nodes[1].HasTrafficSignals())

	nodeWays, err := st.NodeWays(ctx, []int64{3, 5})
	require.NoError(t, err)
	assert.Equal(t, map[int64][]int64{3: {10, 15}}, nodeWays)
}

func TestFlushDropsUnresolvedNodes(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	p := NewOSMParser(testBoundary)
	p.AddWay(osmWay(1, osm.Tags{{Key: "highway", Value: "residential"}}, 1, 2, 3))
	p.AddWay(osmWay(2, osm.Tags{{Key: "highway", Value: "residential"}}, 3, 4))
	p.AddNode(osmNode(1, 0.1, 0.1))
	p.AddNode(osmNode(3, 0.1, 0.3))

	res, err := p.Flush(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ways)

	ways, err := st.WaysOfNode(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ways, 1)
	assert.Equal(t, []int64{1, 3}, ways[0].NodeIDs())
}
