// Package pathway models an edge candidate between two intersections and the
// algebra used to fuse adjacent candidates into one.
package pathway

import (
	"errors"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/lintang-b-s/roadgraph/pkg/geo"
	"github.com/lintang-b-s/roadgraph/pkg/hill"
	"github.com/lintang-b-s/roadgraph/pkg/util"
)

const UnknownSurface = "Unknown"

var (
	ErrNoSharedEndpoint = errors.New("pathways share no endpoint")
	ErrClosedLoop       = errors.New("pathways share both endpoints")
)

// Elevation is the per-node altitude (m) and cumulative distance (m) of a node list.
type Elevation struct {
	Altitudes []float64
	Distances []float64
}

// Pathway runs from Nodes[0] to Nodes[len-1]. Forward and Backward tell
// whether it may be travelled in that order and in reverse.
type Pathway struct {
	Nodes         []datastructure.Node
	Distance      float64
	TotalAscent   float64
	TotalDescent  float64
	Hills         hill.Profile
	TotalAngle    float64
	Curviness     float64
	TrafficLights int
	PathType      []string
	Surface       []string
	Forward       bool
	Backward      bool
	Access        Access
}

// New computes the features of the way section nodes. tags are the tags of
// the way the section was cut from.
func New(nodes []datastructure.Node, elev Elevation, pathType, surface string, tags map[string]string) (*Pathway, error) {
	if len(nodes) < 2 {
		return nil, errs.New(errs.ErrCodeInvalidInput, "pathway needs at least 2 nodes, got %d", len(nodes))
	}
	if len(elev.Altitudes) != len(nodes) || len(elev.Distances) != len(nodes) {
		return nil, errs.New(errs.ErrCodeInvalidInput, "elevation covers %d/%d of %d nodes",
			len(elev.Altitudes), len(elev.Distances), len(nodes))
	}
	if surface == "" {
		surface = UnknownSurface
	}

	p := &Pathway{
		Nodes:    append([]datastructure.Node(nil), nodes...),
		Distance: elev.Distances[len(elev.Distances)-1],
		Hills:    hill.Accumulate(elev.Altitudes, elev.Distances),
		PathType: []string{pathType},
		Surface:  []string{surface},
		Forward:  true,
		Backward: tags["oneway"] != "yes",
		Access:   AccessFor(tags),
	}
	p.TotalAscent, p.TotalDescent = geo.AscentDescent(elev.Altitudes)
	p.TotalAngle = geo.PathAngle(datastructure.Coordinates(nodes))
	p.updateCurviness()

	for _, n := range nodes[1 : len(nodes)-1] {
		if n.HasTrafficSignals() {
			p.TrafficLights++
		}
	}
	return p, nil
}

func (p *Pathway) IntersectionA() datastructure.Node {
	return p.Nodes[0]
}

func (p *Pathway) IntersectionB() datastructure.Node {
	return p.Nodes[len(p.Nodes)-1]
}

func (p *Pathway) updateCurviness() {
	if p.Distance > 0 {
		p.Curviness = p.TotalAngle / p.Distance
	} else {
		p.Curviness = 0
	}
}

// reversed returns p travelled from its last node to its first.
func (p *Pathway) reversed() *Pathway {
	r := *p
	r.Nodes = util.ReverseG(p.Nodes)
	r.TotalAscent, r.TotalDescent = p.TotalDescent, p.TotalAscent
	r.Hills = p.Hills.Reversed()
	r.Forward, r.Backward = p.Backward, p.Forward
	return &r
}

// Compose fuses a and b, which must share exactly one endpoint, into a single
// pathway that keeps a's orientation. Neither operand is modified.
func Compose(a, b *Pathway) (*Pathway, error) {
	aStart, aEnd := a.IntersectionA().ID, a.IntersectionB().ID
	bStart, bEnd := b.IntersectionA().ID, b.IntersectionB().ID

	shared := 0
	for _, x := range []int64{aStart, aEnd} {
		if x == bStart || x == bEnd {
			shared++
		}
	}
	switch {
	case shared == 0:
		return nil, ErrNoSharedEndpoint
	case shared == 2 || aStart == aEnd || bStart == bEnd:
		return nil, ErrClosedLoop
	}

	var head, tail *Pathway
	switch {
	case aEnd == bStart:
		head, tail = a, b
	case aStart == bEnd:
		head, tail = b, a
	case aEnd == bEnd:
		head, tail = a, b.reversed()
	default: // aStart == bStart
		head, tail = b.reversed(), a
	}

	joint := tail.Nodes[0]
	out := &Pathway{
		Nodes:         append(append([]datastructure.Node(nil), head.Nodes...), tail.Nodes[1:]...),
		Distance:      a.Distance + b.Distance,
		TotalAscent:   head.TotalAscent + tail.TotalAscent,
		TotalDescent:  head.TotalDescent + tail.TotalDescent,
		Hills:         head.Hills,
		TotalAngle:    a.TotalAngle + b.TotalAngle,
		TrafficLights: a.TrafficLights + b.TrafficLights,
		PathType:      util.SortedUnion(a.PathType, b.PathType),
		Surface:       util.SortedUnion(a.Surface, b.Surface),
		Forward:       head.Forward && tail.Forward,
		Backward:      head.Backward && tail.Backward,
		Access:        a.Access.And(b.Access),
	}
	out.Hills.Add(tail.Hills)
	if joint.HasTrafficSignals() {
		out.TrafficLights++
	}
	out.updateCurviness()
	return out, nil
}

// DirectedPaths returns the row travelling Nodes in order and the row
// travelling them in reverse. Callers decide, from Forward and Backward,
// which rows to persist.
func (p *Pathway) DirectedPaths() (forward, backward datastructure.PathDoc) {
	nodes := make([]datastructure.PathNode, len(p.Nodes))
	for i, n := range p.Nodes {
		nodes[i] = datastructure.PathNode{ID: n.ID, Lat: n.Lat, Lon: n.Lon}
	}

	base := datastructure.EdgeFeatures{
		Distance:      p.Distance,
		PathType:      append([]string(nil), p.PathType...),
		Surface:       append([]string(nil), p.Surface...),
		Curviness:     p.Curviness,
		TotalAngle:    p.TotalAngle,
		TrafficLights: p.TrafficLights,
		BicycleAccess: p.Access.Bicycle,
		FootAccess:    p.Access.Foot,
		CarAccess:     p.Access.Car,
		Valid:         true,
	}

	fwd := base
	fwd.Ascent, fwd.Descent = p.TotalAscent, p.TotalDescent
	fwd.SetHills(p.Hills.Forward)
	fwd.Forward, fwd.Backward = p.Forward, p.Backward
	fwd.Nodes = nodes

	bwd := base
	bwd.Ascent, bwd.Descent = p.TotalDescent, p.TotalAscent
	bwd.SetHills(p.Hills.Backward)
	bwd.Forward, bwd.Backward = p.Backward, p.Forward
	bwd.Nodes = util.ReverseG(nodes)

	a, b := p.IntersectionA().ID, p.IntersectionB().ID
	forward = datastructure.PathDoc{ID: datastructure.NewPathID(), StartNode: a, EndNode: b, EdgeFeatures: fwd}
	backward = datastructure.PathDoc{ID: datastructure.NewPathID(), StartNode: b, EndNode: a, EdgeFeatures: bwd}
	return forward, backward
}
