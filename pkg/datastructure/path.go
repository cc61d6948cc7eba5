package datastructure

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lintang-b-s/roadgraph/pkg/hill"
	"github.com/twpayne/go-polyline"
)

// PathNode is the geometry point stored inside a path document.
type PathNode struct {
	ID  int64   `bson:"id"`
	Lat float64 `bson:"lat"`
	Lon float64 `bson:"lon"`
}

func (p PathNode) Coordinate() Coordinate {
	return Coordinate{Lat: p.Lat, Lon: p.Lon}
}

// EdgeFeatures are the physical attributes shared by every persisted edge kind.
// Hill fields describe travel from start_node to end_node.
type EdgeFeatures struct {
	Distance           float64    `bson:"distance" validate:"gte=0"`
	Ascent             float64    `bson:"ascent" validate:"gte=0"`
	Descent            float64    `bson:"descent" validate:"gte=0"`
	PathType           []string   `bson:"path_type" validate:"required,min=1"`
	Surface            []string   `bson:"surface" validate:"required,min=1"`
	Curviness          float64    `bson:"curviness" validate:"gte=0"`
	TotalAngle         float64    `bson:"total_angle" validate:"gte=0"`
	TrafficLights      int        `bson:"traffic_lights" validate:"gte=0"`
	HillFlat           float64    `bson:"hill_flat" validate:"gte=0"`
	HillGentle         float64    `bson:"hill_gentle" validate:"gte=0"`
	HillModerate       float64    `bson:"hill_moderate" validate:"gte=0"`
	HillChallenging    float64    `bson:"hill_challenging" validate:"gte=0"`
	HillSteep          float64    `bson:"hill_steep" validate:"gte=0"`
	HillExtremelySteep float64    `bson:"hill_extremely_steep" validate:"gte=0"`
	Forward            bool       `bson:"forward"`
	Backward           bool       `bson:"backward"`
	BicycleAccess      bool       `bson:"bicycle_access"`
	FootAccess         bool       `bson:"foot_access"`
	CarAccess          bool       `bson:"car_access"`
	Valid              bool       `bson:"valid"`
	Nodes              []PathNode `bson:"nodes"`
}

func (f EdgeFeatures) Hills() hill.Bands {
	return hill.Bands{
		Flat:           f.HillFlat,
		Gentle:         f.HillGentle,
		Moderate:       f.HillModerate,
		Challenging:    f.HillChallenging,
		Steep:          f.HillSteep,
		ExtremelySteep: f.HillExtremelySteep,
	}
}

func (f *EdgeFeatures) SetHills(b hill.Bands) {
	f.HillFlat = b.Flat
	f.HillGentle = b.Gentle
	f.HillModerate = b.Moderate
	f.HillChallenging = b.Challenging
	f.HillSteep = b.Steep
	f.HillExtremelySteep = b.ExtremelySteep
}

func (f EdgeFeatures) Coordinates() []Coordinate {
	coords := make([]Coordinate, len(f.Nodes))
	for i, n := range f.Nodes {
		coords[i] = n.Coordinate()
	}
	return coords
}

// PathDoc is one directed row of the paths collection.
type PathDoc struct {
	ID           string `bson:"_id" validate:"required"`
	StartNode    int64  `bson:"start_node" validate:"required"`
	EndNode      int64  `bson:"end_node" validate:"required"`
	EdgeFeatures `bson:",inline"`
}

func (p PathDoc) IsSelfLoop() bool {
	return p.StartNode == p.EndNode
}

// SplitNode is a direction-aware sub-node of an intersection. Start is true
// when the sub-node is the tail of an outgoing edge.
type SplitNode struct {
	ID             string  `bson:"_id"`
	OriginalID     int64   `bson:"original_id"`
	Lat            float64 `bson:"lat"`
	Lon            float64 `bson:"lon"`
	Elevation      float64 `bson:"elevation"`
	TrafficSignals bool    `bson:"traffic_signals"`
	Start          bool    `bson:"start"`
}

// SplitPathDoc is a row of paths_splitted. Transition rows connect the
// sub-nodes of one intersection and carry no geometry of their own.
type SplitPathDoc struct {
	ID           string `bson:"_id" validate:"required"`
	StartNode    string `bson:"start_node" validate:"required"`
	EndNode      string `bson:"end_node" validate:"required"`
	Transition   bool   `bson:"transition"`
	EdgeFeatures `bson:",inline"`
}

// NewPathID returns a fresh, globally unique edge id.
func NewPathID() string {
	return uuid.NewString()
}

// SplitNodeID keys the sub-node of intersection id that belongs to edge edgeID.
func SplitNodeID(id int64, edgeID string) string {
	return fmt.Sprintf("%d_%s", id, edgeID)
}

// ParseSplitNodeID is the inverse of SplitNodeID.
func ParseSplitNodeID(key string) (id int64, edgeID string, err error) {
	head, tail, ok := strings.Cut(key, "_")
	if !ok {
		return 0, "", fmt.Errorf("split node id %q has no edge part", key)
	}
	id, err = strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("split node id %q: %w", key, err)
	}
	return id, tail, nil
}

func CreatePolyline(path []Coordinate) string {
	coords := make([][]float64, 0, len(path))
	for _, p := range path {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	return string(polyline.EncodeCoords(coords))
}

func DecodePolyline(encoded string) ([]Coordinate, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, err
	}
	out := make([]Coordinate, len(coords))
	for i, c := range coords {
		out[i] = NewCoordinate(c[0], c[1])
	}
	return out, nil
}
