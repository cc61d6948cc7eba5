package kv

import (
	"github.com/kelindar/binary"
)

// NodeRecord is the exported form of a split node.
type NodeRecord struct {
	ID             string
	OriginalID     int64
	Lat            float64
	Lon            float64
	Elevation      float64
	TrafficSignals bool
	Start          bool
}

// EdgeRecord is the exported form of a split path. Geometry is kept as an
// encoded polyline.
type EdgeRecord struct {
	ID            string
	From          string
	To            string
	Transition    bool
	Distance      float64
	Ascent        float64
	Descent       float64
	Curviness     float64
	TotalAngle    float64
	TrafficLights int
	PathType      []string
	Surface       []string
	Hills         []float64 // flat .. extremely steep
	Forward       bool
	Backward      bool
	BicycleAccess bool
	FootAccess    bool
	CarAccess     bool
	Polyline      string
}

func encodeNode(n NodeRecord) ([]byte, error) {
	return binary.Marshal(n)
}

func decodeNode(bb []byte) (NodeRecord, error) {
	var n NodeRecord
	err := binary.Unmarshal(bb, &n)
	return n, err
}

func encodeEdge(e EdgeRecord) ([]byte, error) {
	return binary.Marshal(e)
}

func decodeEdge(bb []byte) (EdgeRecord, error) {
	var e EdgeRecord
	err := binary.Unmarshal(bb, &e)
	return e, err
}

// encodeEdgeIDs packs the edge ids of one h3 cell.
func encodeEdgeIDs(ids []string) ([]byte, error) {
	bb, err := binary.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return compress(bb)
}

func decodeEdgeIDs(bbCompressed []byte) ([]string, error) {
	bb, err := decompress(bbCompressed)
	if err != nil {
		return nil, err
	}
	var ids []string
	err = binary.Unmarshal(bb, &ids)
	return ids, err
}
