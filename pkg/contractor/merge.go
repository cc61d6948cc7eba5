package contractor

import (
	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/util"
)

// mergeDocs joins first (X->Y) and second (Y->Z) into a new path X->Z.
func mergeDocs(first, second datastructure.PathDoc) datastructure.PathDoc {
	a, b := first.EdgeFeatures, second.EdgeFeatures

	f := datastructure.EdgeFeatures{
		Distance:      a.Distance + b.Distance,
		Ascent:        a.Ascent + b.Ascent,
		Descent:       a.Descent + b.Descent,
		PathType:      util.SortedUnion(a.PathType, b.PathType),
		Surface:       util.SortedUnion(a.Surface, b.Surface),
		TotalAngle:    a.TotalAngle + b.TotalAngle,
		TrafficLights: a.TrafficLights + b.TrafficLights,
		Forward:       a.Forward && b.Forward,
		Backward:      a.Backward && b.Backward,
		BicycleAccess: a.BicycleAccess && b.BicycleAccess,
		FootAccess:    a.FootAccess && b.FootAccess,
		CarAccess:     a.CarAccess && b.CarAccess,
		Valid:         a.Valid && b.Valid,
		Nodes:         joinNodes(a.Nodes, b.Nodes),
	}
	f.SetHills(a.Hills().Plus(b.Hills()))
	if f.Distance > 0 {
		f.Curviness = f.TotalAngle / f.Distance
	}

	return datastructure.PathDoc{
		ID:           datastructure.NewPathID(),
		StartNode:    first.StartNode,
		EndNode:      second.EndNode,
		EdgeFeatures: f,
	}
}

// joinNodes concatenates a and b keeping the first occurrence of every id.
func joinNodes(a, b []datastructure.PathNode) []datastructure.PathNode {
	seen := make(map[int64]struct{}, len(a)+len(b))
	out := make([]datastructure.PathNode, 0, len(a)+len(b))
	for _, n := range append(append([]datastructure.PathNode(nil), a...), b...) {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}
