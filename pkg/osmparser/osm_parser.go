// Package osmparser builds the helper collections and the intersection set
// from an OpenStreetMap .osm.pbf extract.
package osmparser

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/lintang-b-s/roadgraph/pkg/logging"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"golang.org/x/exp/slices"
)

const (
	batchSize = 1000
	logEvery  = 50000

	// a node becomes an intersection once it has this many way links
	IntersectionLinks = 3
)

// way tags a pathway needs later on; everything else is dropped at ingest
var relevantTags = map[string]struct{}{
	"bicycle":         {},
	"foot":            {},
	"highway":         {},
	"oneway":          {},
	"surface":         {},
	"sidewalk":        {},
	"access":          {},
	"motorcar":        {},
	"motor_vehicle":   {},
	"crossing":        {},
	"bridge":          {},
	"traffic_signals": {},
	"cycleway":        {},
	"vehicle":         {},
}

type IngestStore interface {
	InsertWays(ctx context.Context, ways []datastructure.Way) error
	InsertNodeWays(ctx context.Context, nodes []datastructure.NodeWays) error
	UpsertIntersections(ctx context.Context, intersections []datastructure.Intersection) error
}

type wayRecord struct {
	id    int64
	tags  map[string]string
	nodes []int64
}

type nodeCoord struct {
	lat float64
	lon float64
}

type OsmParser struct {
	boundary datastructure.BoundingBox

	ways      []wayRecord
	nodeWays  map[int64][]int64
	wayLinks  map[int64]int
	coords    map[int64]nodeCoord
	nodeTags  map[int64]map[string]string
	wayCount  int
	nodeCount int
}

func NewOSMParser(boundary datastructure.BoundingBox) *OsmParser {
	return &OsmParser{
		boundary: boundary,
		nodeWays: make(map[int64][]int64),
		wayLinks: make(map[int64]int),
		coords:   make(map[int64]nodeCoord),
		nodeTags: make(map[int64]map[string]string),
	}
}

type Result struct {
	Ways          int
	Nodes         int
	Intersections int
}

// Parse scans mapFile twice: ways first, then the coordinates and tags of the
// nodes those ways reference. The helper collections and intersections are
// written once both passes are done.
func (p *OsmParser) Parse(ctx context.Context, mapFile string, st IngestStore) (Result, error) {
	logger := logging.FromContext(ctx)
	progress := logging.NewProgress(logger)

	f, err := os.Open(mapFile)
	if err != nil {
		return Result{}, errs.Wrap(errs.ErrCodeInvalidInput, err, "open map file %s", mapFile)
	}
	defer f.Close()

	// must not be parallel, pass 2 depends on every way of pass 1
	if err := p.scan(ctx, f, p.scanWayObject); err != nil {
		return Result{}, err
	}
	logger.Infof("read %d highways", p.wayCount)

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Result{}, errs.Wrap(errs.ErrCodeInternal, err, "rewind map file %s", mapFile)
	}
	if err := p.scan(ctx, f, p.scanNodeObject); err != nil {
		return Result{}, err
	}
	logger.Infof("resolved %d highway nodes", len(p.coords))

	res, err := p.Flush(ctx, st)
	if err != nil {
		return res, err
	}
	progress.Done("map ingested", "ways", res.Ways, "nodes", res.Nodes, "intersections", res.Intersections)
	return res, nil
}

func (p *OsmParser) scan(ctx context.Context, r io.Reader, fn func(ctx context.Context, o osm.Object)) error {
	scanner := osmpbf.New(ctx, r, 1)
	defer scanner.Close()

	for scanner.Scan() {
		fn(ctx, scanner.Object())
	}
	if err := scanner.Err(); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidInput, err, "scan osm pbf")
	}
	return nil
}

func (p *OsmParser) scanWayObject(ctx context.Context, o osm.Object) {
	if way, ok := o.(*osm.Way); ok {
		if p.AddWay(way) && p.wayCount%logEvery == 0 {
			logging.FromContext(ctx).Infof("reading openstreetmap ways: %d...", p.wayCount)
		}
	}
}

func (p *OsmParser) scanNodeObject(ctx context.Context, o osm.Object) {
	if node, ok := o.(*osm.Node); ok {
		if p.AddNode(node) && p.nodeCount%logEvery == 0 {
			logging.FromContext(ctx).Infof("processing openstreetmap nodes: %d...", p.nodeCount)
		}
	}
}

// AddWay records a highway and its way links. It reports whether the way was kept.
func (p *OsmParser) AddWay(way *osm.Way) bool {
	if way.Tags.Find("highway") == "" || len(way.Nodes) < 2 {
		return false
	}
	p.wayCount++

	rec := wayRecord{
		id:    int64(way.ID),
		tags:  filterTags(way.Tags),
		nodes: make([]int64, len(way.Nodes)),
	}
	for i, n := range way.Nodes {
		id := int64(n.ID)
		rec.nodes[i] = id
		if !slices.Contains(p.nodeWays[id], rec.id) {
			p.nodeWays[id] = append(p.nodeWays[id], rec.id)
		}
		p.wayLinks[id] += linkWeight(i, len(way.Nodes))
	}
	p.ways = append(p.ways, rec)
	return true
}

// linkWeight counts an interior occurrence as two links (the road goes on
// both sides of the node) and an endpoint occurrence as one.
func linkWeight(i, n int) int {
	if i == 0 || i == n-1 {
		return 1
	}
	return 2
}

// AddNode keeps the coordinates and tags of nodes referenced by a highway.
func (p *OsmParser) AddNode(node *osm.Node) bool {
	id := int64(node.ID)
	if _, ok := p.nodeWays[id]; !ok {
		return false
	}
	p.nodeCount++
	p.coords[id] = nodeCoord{lat: node.Lat, lon: node.Lon}

	tags := make(map[string]string)
	for _, tag := range node.Tags {
		if strings.Contains(tag.Key, "created_by") ||
			strings.Contains(tag.Key, "source") ||
			strings.Contains(tag.Key, "note") ||
			strings.Contains(tag.Key, "fixme") {
			continue
		}
		tags[tag.Key] = tag.Value
	}
	if len(tags) > 0 {
		p.nodeTags[id] = tags
	}
	return true
}

func filterTags(tags osm.Tags) map[string]string {
	out := make(map[string]string)
	for _, tag := range tags {
		if _, ok := relevantTags[tag.Key]; ok {
			out[tag.Key] = tag.Value
		}
	}
	return out
}

// WayLinks returns the number of way links recorded for a node.
func (p *OsmParser) WayLinks(nodeID int64) int {
	return p.wayLinks[nodeID]
}

// Flush writes highways_helper, nodes_helper and intersections in batches.
// Way nodes whose coordinates never showed up are dropped, and so is a way
// left with fewer than two nodes.
func (p *OsmParser) Flush(ctx context.Context, st IngestStore) (Result, error) {
	var res Result

	ways := make([]datastructure.Way, 0, batchSize)
	for _, rec := range p.ways {
		w, ok := p.resolve(rec)
		if !ok {
			continue
		}
		ways = append(ways, w)
		if len(ways) == batchSize {
			if err := st.InsertWays(ctx, ways); err != nil {
				return res, errs.Annotate(err, "insert highways")
			}
			res.Ways += len(ways)
			ways = ways[:0]
		}
	}
	if len(ways) > 0 {
		if err := st.InsertWays(ctx, ways); err != nil {
			return res, errs.Annotate(err, "insert highways")
		}
		res.Ways += len(ways)
	}

	ids := make([]int64, 0, len(p.coords))
	for id := range p.coords {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	nodes := make([]datastructure.NodeWays, 0, batchSize)
	intersections := make([]datastructure.Intersection, 0, batchSize)
	for _, id := range ids {
		nodes = append(nodes, datastructure.NodeWays{ID: id, Ways: p.nodeWays[id]})
		if p.isIntersection(id) {
			c := p.coords[id]
			intersections = append(intersections, datastructure.Intersection{
				ID:   id,
				Lat:  c.lat,
				Lon:  c.lon,
				Tags: p.nodeTags[id],
			})
		}

		if len(nodes) == batchSize {
			if err := st.InsertNodeWays(ctx, nodes); err != nil {
				return res, errs.Annotate(err, "insert node ways")
			}
			res.Nodes += len(nodes)
			nodes = nodes[:0]
		}
		if len(intersections) == batchSize {
			if err := st.UpsertIntersections(ctx, intersections); err != nil {
				return res, errs.Annotate(err, "upsert intersections")
			}
			res.Intersections += len(intersections)
			intersections = intersections[:0]
		}
	}
	if len(nodes) > 0 {
		if err := st.InsertNodeWays(ctx, nodes); err != nil {
			return res, errs.Annotate(err, "insert node ways")
		}
		res.Nodes += len(nodes)
	}
	if len(intersections) > 0 {
		if err := st.UpsertIntersections(ctx, intersections); err != nil {
			return res, errs.Annotate(err, "upsert intersections")
		}
		res.Intersections += len(intersections)
	}
	return res, nil
}

func (p *OsmParser) isIntersection(id int64) bool {
	if p.wayLinks[id] < IntersectionLinks {
		return false
	}
	c := p.coords[id]
	return p.boundary.Contains(c.lat, c.lon)
}

func (p *OsmParser) resolve(rec wayRecord) (datastructure.Way, bool) {
	nodes := make([]datastructure.Node, 0, len(rec.nodes))
	for _, id := range rec.nodes {
		c, ok := p.coords[id]
		if !ok {
			continue
		}
		n := datastructure.NewNode(id, c.lat, c.lon)
		n.Tags = p.nodeTags[id]
		nodes = append(nodes, n)
	}
	if len(nodes) < 2 {
		return datastructure.Way{}, false
	}
	return datastructure.Way{ID: rec.id, Tags: rec.tags, Nodes: nodes}, true
}
