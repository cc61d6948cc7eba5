package contractor

import (
	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/util"
)

// incidence is what one scan learns about a node. Both lists keep the order
// in which paths were read and may repeat a neighbour.
type incidence struct {
	inNodes  []int64 // start nodes of paths ending here
	inEdges  []string
	outNodes []int64 // end nodes of paths starting here
	outEdges []string
}

// Topology is the per-node view of one scan.
type Topology struct {
	order []int64
	nodes map[int64]*incidence
	edges int
}

// Scan indexes paths by the nodes they touch.
func Scan(paths []datastructure.PathEndpoints) *Topology {
	t := &Topology{nodes: make(map[int64]*incidence), edges: len(paths)}
	get := func(id int64) *incidence {
		inc, ok := t.nodes[id]
		if !ok {
			inc = &incidence{}
			t.nodes[id] = inc
			t.order = append(t.order, id)
		}
		return inc
	}
	for _, p := range paths {
		start := get(p.StartNode)
		start.outNodes = append(start.outNodes, p.EndNode)
		start.outEdges = append(start.outEdges, p.ID)

		end := get(p.EndNode)
		end.inNodes = append(end.inNodes, p.StartNode)
		end.inEdges = append(end.inEdges, p.ID)
	}
	return t
}

func (t *Topology) Nodes() int { return len(t.order) }
func (t *Topology) Edges() int { return t.edges }

// MergeProposal contracts Pivot, which is connected both ways to exactly A
// and C, into the paths A->C and C->A.
type MergeProposal struct {
	Pivot int64
	A     int64
	C     int64

	InFromA string // A -> Pivot
	OutToC  string // Pivot -> C
	InFromC string // C -> Pivot
	OutToA  string // Pivot -> A
}

// Neighbours returns the nodes the proposal locks besides the pivot.
func (p MergeProposal) Neighbours() [2]int64 {
	return [2]int64{p.A, p.C}
}

func (p MergeProposal) EdgeIDs() []string {
	return []string{p.InFromA, p.OutToC, p.InFromC, p.OutToA}
}

// proposal reports whether id passes straight through: two distinct
// neighbours, each reached by exactly one inbound and one outbound path.
func (t *Topology) proposal(id int64) (MergeProposal, bool) {
	inc := t.nodes[id]
	if inc == nil || len(inc.inNodes) != 2 || len(inc.outNodes) != 2 {
		return MergeProposal{}, false
	}
	if util.HasDuplicates(inc.inNodes) || util.HasDuplicates(inc.outNodes) {
		return MergeProposal{}, false
	}
	if !util.SetEqual(inc.inNodes, inc.outNodes) {
		return MergeProposal{}, false
	}
	a, c := inc.inNodes[0], inc.inNodes[1]
	if a == id || c == id {
		return MergeProposal{}, false
	}

	out := func(to int64) string {
		for i, n := range inc.outNodes {
			if n == to {
				return inc.outEdges[i]
			}
		}
		return ""
	}
	return MergeProposal{
		Pivot:   id,
		A:       a,
		C:       c,
		InFromA: inc.inEdges[0],
		OutToC:  out(c),
		InFromC: inc.inEdges[1],
		OutToA:  out(a),
	}, true
}

// Propose returns non-overlapping proposals in scan order. A node that is
// the pivot or a neighbour of an accepted proposal cannot take part in
// another one. Nodes in skip are never proposed.
func (t *Topology) Propose(skip map[int64]struct{}) []MergeProposal {
	locked := make(map[int64]struct{})
	isLocked := func(ids ...int64) bool {
		for _, id := range ids {
			if _, ok := locked[id]; ok {
				return true
			}
		}
		return false
	}

	proposals := make([]MergeProposal, 0)
	for _, id := range t.order {
		if _, ok := skip[id]; ok {
			continue
		}
		p, ok := t.proposal(id)
		if !ok || isLocked(p.Pivot, p.A, p.C) {
			continue
		}
		proposals = append(proposals, p)
		locked[p.Pivot] = struct{}{}
		locked[p.A] = struct{}{}
		locked[p.C] = struct{}{}
	}
	return proposals
}
