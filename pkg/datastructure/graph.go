package datastructure

type Coordinate struct {
	Lat float64
	Lon float64
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Lat: lat, Lon: lon}
}

// Node is an OSM node as embedded in way documents.
type Node struct {
	ID   int64             `bson:"id"`
	Lat  float64           `bson:"lat"`
	Lon  float64           `bson:"lon"`
	Tags map[string]string `bson:"tags,omitempty"`
}

func NewNode(id int64, lat, lon float64) Node {
	return Node{ID: id, Lat: lat, Lon: lon}
}

func (n Node) Coordinate() Coordinate {
	return Coordinate{Lat: n.Lat, Lon: n.Lon}
}

// HasTrafficSignals reports whether the node is signalised, either through
// highway=traffic_signals or a bare traffic_signals key.
func (n Node) HasTrafficSignals() bool {
	if n.Tags["highway"] == "traffic_signals" {
		return true
	}
	_, ok := n.Tags["traffic_signals"]
	return ok
}

func Coordinates(nodes []Node) []Coordinate {
	coords := make([]Coordinate, len(nodes))
	for i, n := range nodes {
		coords[i] = n.Coordinate()
	}
	return coords
}

// Way is a highways_helper document: a highway with its resolved nodes.
type Way struct {
	ID    int64             `bson:"_id"`
	Tags  map[string]string `bson:"tags"`
	Nodes []Node            `bson:"nodes"`
}

func (w Way) NodeIDs() []int64 {
	ids := make([]int64, len(w.Nodes))
	for i, n := range w.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// NodeWays is a nodes_helper document: every highway referencing a node.
type NodeWays struct {
	ID   int64   `bson:"_id"`
	Ways []int64 `bson:"ways"`
}

// Intersection is a graph vertex candidate. Elevation, TrafficSignals and
// WayIDs stay nil until enrichment runs.
type Intersection struct {
	ID             int64             `bson:"_id"`
	Lat            float64           `bson:"lat"`
	Lon            float64           `bson:"lon"`
	Tags           map[string]string `bson:"tags,omitempty"`
	Elevation      *float64          `bson:"elevation,omitempty"`
	TrafficSignals *bool             `bson:"traffic_signals,omitempty"`
	WayIDs         []int64           `bson:"way_ids,omitempty"`
}

func (i Intersection) Node() Node {
	return Node{ID: i.ID, Lat: i.Lat, Lon: i.Lon, Tags: i.Tags}
}

// ElevationOr returns the enriched elevation or def when none is recorded.
func (i Intersection) ElevationOr(def float64) float64 {
	if i.Elevation == nil {
		return def
	}
	return *i.Elevation
}

func (i Intersection) Signalised() bool {
	if i.TrafficSignals != nil {
		return *i.TrafficSignals
	}
	return i.Tags["highway"] == "traffic_signals"
}

// IntersectionSet is an immutable snapshot of intersection ids.
type IntersectionSet map[int64]struct{}

func NewIntersectionSet(ids ...int64) IntersectionSet {
	s := make(IntersectionSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IntersectionSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// Mask flags, for every id, whether it is an intersection.
func (s IntersectionSet) Mask(ids []int64) []bool {
	mask := make([]bool, len(ids))
	for i, id := range ids {
		mask[i] = s.Contains(id)
	}
	return mask
}

// BoundingBox is a lat/lon rectangle, closed at the minimum edges. A maximum
// edge is closed only when the matching Closed flag is set, so adjacent grid
// cells never both own a point on their shared border.
type BoundingBox struct {
	MinLat    float64
	MaxLat    float64
	MinLon    float64
	MaxLon    float64
	ClosedLat bool
	ClosedLon bool
}

func (b BoundingBox) Contains(lat, lon float64) bool {
	if lat < b.MinLat || lon < b.MinLon {
		return false
	}
	if lat > b.MaxLat || (lat == b.MaxLat && !b.ClosedLat) {
		return false
	}
	if lon > b.MaxLon || (lon == b.MaxLon && !b.ClosedLon) {
		return false
	}
	return true
}

// PathEndpoints is the projection of a path row used to scan the topology.
type PathEndpoints struct {
	ID        string `bson:"_id"`
	StartNode int64  `bson:"start_node"`
	EndNode   int64  `bson:"end_node"`
}
