package datastructure

import (
	"testing"

	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/lintang-b-s/roadgraph/pkg/hill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPath() PathDoc {
	return PathDoc{
		ID:        NewPathID(),
		StartNode: 1,
		EndNode:   2,
		EdgeFeatures: EdgeFeatures{
			Distance: 100,
			PathType: []string{"residential"},
			Surface:  []string{"asphalt"},
			Valid:    true,
			Nodes:    []PathNode{{ID: 1}, {ID: 2, Lon: 0.001}},
		},
	}
}

func TestPathDocValidate(t *testing.T) {
	assert.NoError(t, validPath().Validate())

	tests := []struct {
		name   string
		mutate func(p *PathDoc)
	}{
		{"missing id", func(p *PathDoc) { p.ID = "" }},
		{"missing start", func(p *PathDoc) { p.StartNode = 0 }},
		{"negative distance", func(p *PathDoc) { p.Distance = -1 }},
		{"no path type", func(p *PathDoc) { p.PathType = nil }},
		{"single node", func(p *PathDoc) { p.Nodes = p.Nodes[:1] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPath()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.ErrCodeInvalidInput))
		})
	}
}

func TestHillsRoundTrip(t *testing.T) {
	var f EdgeFeatures
	b := hill.Bands{Flat: 1, Gentle: 2, Moderate: 3, Challenging: 4, Steep: 5, ExtremelySteep: 6}
	f.SetHills(b)
	assert.Equal(t, b, f.Hills())
}

func TestSplitNodeID(t *testing.T) {
	key := SplitNodeID(123, "abc-def")
	assert.Equal(t, "123_abc-def", key)

	id, edge, err := ParseSplitNodeID(key)
	require.NoError(t, err)
	assert.Equal(t, int64(123), id)
	assert.Equal(t, "abc-def", edge)

	_, _, err = ParseSplitNodeID("nodash")
	assert.Error(t, err)
}

func TestIntersectionSetMask(t *testing.T) {
	s := NewIntersectionSet(1, 3)
	assert.Equal(t, []bool{true, false, true}, s.Mask([]int64{1, 2, 3}))
}

func TestNodeHasTrafficSignals(t *testing.T) {
	assert.True(t, Node{Tags: map[string]string{"highway": "traffic_signals"}}.HasTrafficSignals())
	assert.True(t, Node{Tags: map[string]string{"traffic_signals": "signal"}}.HasTrafficSignals())
	assert.False(t, Node{Tags: map[string]string{"highway": "crossing"}}.HasTrafficSignals())
	assert.False(t, Node{}.HasTrafficSignals())
}
