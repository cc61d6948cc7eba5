// Package mongostore implements the pipeline store on MongoDB.
package mongostore

import (
	"context"
	"errors"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/lintang-b-s/roadgraph/pkg/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const deleteBatch = 1000

type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool
}

type Option func(*Store)

// WithoutTransactions runs WithTransaction bodies directly, for standalone
// servers that have no replica set.
func WithoutTransactions() Option {
	return func(s *Store) { s.transactions = false }
}

var _ store.Store = (*Store)(nil)

func Connect(ctx context.Context, uri, database string, opts ...Option) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, classify(err, "connect %s", uri)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, classify(err, "ping %s", uri)
	}
	s := &Store{client: client, db: client.Database(database), transactions: true}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// classify maps driver errors onto pipeline codes. Network failures and
// timeouts are transient, a missing document is NotFound.
func classify(err error, format string, args ...any) error {
	switch {
	case err == nil:
		return nil
	case errs.GetCode(err) != "":
		return errs.Annotate(err, format, args...)
	case errors.Is(err, mongo.ErrNoDocuments):
		return errs.Wrap(errs.ErrCodeNotFound, err, format, args...)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return errs.Transient(err, format, args...)
	case mongo.IsDuplicateKeyError(err):
		return errs.Wrap(errs.ErrCodeInvalidInput, err, format, args...)
	default:
		return errs.Wrap(errs.ErrCodeInternal, err, format, args...)
	}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		store.CollectionPaths: {
			{Keys: bson.D{{Key: "start_node", Value: 1}, {Key: "end_node", Value: 1}}},
			{Keys: bson.D{{Key: "end_node", Value: 1}}},
		},
		store.CollectionIntersections: {
			{Keys: bson.D{{Key: "lat", Value: 1}, {Key: "lon", Value: 1}}},
		},
		store.CollectionPathsSplitted: {
			{Keys: bson.D{{Key: "start_node", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := s.coll(name).Indexes().CreateMany(ctx, models); err != nil {
			return classify(err, "create indexes on %s", name)
		}
	}
	return nil
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions {
		return fn(ctx)
	}
	sess, err := s.client.StartSession()
	if err != nil {
		return classify(err, "start session")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return classify(err, "transaction")
}

func bulkWrite(ctx context.Context, coll *mongo.Collection, models []mongo.WriteModel) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return classify(err, "bulk write %s", coll.Name())
	}
	return nil
}

func replaceByID[T any](id any, doc T) mongo.WriteModel {
	return mongo.NewReplaceOneModel().SetFilter(bson.M{"_id": id}).SetReplacement(doc).SetUpsert(true)
}

// insertIfMissing upserts doc with $setOnInsert, leaving an existing document
// untouched. The _id comes from the filter.
func insertIfMissing(id any, doc any) (mongo.WriteModel, error) {
	fields, err := withoutID(doc)
	if err != nil {
		return nil, err
	}
	return mongo.NewUpdateOneModel().
		SetFilter(bson.M{"_id": id}).
		SetUpdate(bson.M{"$setOnInsert": fields}).
		SetUpsert(true), nil
}

func withoutID(doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "marshal document")
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "unmarshal document")
	}
	delete(m, "_id")
	return m, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, classify(err, "find in %s", coll.Name())
	}
	out := make([]T, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, classify(err, "decode %s", coll.Name())
	}
	return out, nil
}

// forEachBatch streams a cursor to fn in slices of at most batchSize documents.
func forEachBatch[T any](ctx context.Context, coll *mongo.Collection, filter any, sort any, batchSize int,
	fn func([]T) error) error {
	if batchSize <= 0 {
		return errs.New(errs.ErrCodeInvalidInput, "batch size must be positive, got %d", batchSize)
	}
	opts := options.Find().SetBatchSize(int32(batchSize))
	if sort != nil {
		opts.SetSort(sort)
	}
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return classify(err, "find in %s", coll.Name())
	}
	defer cur.Close(ctx)

	batch := make([]T, 0, batchSize)
	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			return classify(err, "decode %s", coll.Name())
		}
		batch = append(batch, doc)
		if len(batch) == batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]T, 0, batchSize)
		}
	}
	if err := cur.Err(); err != nil {
		return classify(err, "iterate %s", coll.Name())
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

var byID = bson.D{{Key: "_id", Value: 1}}

func (s *Store) InsertWays(ctx context.Context, ways []datastructure.Way) error {
	models := make([]mongo.WriteModel, len(ways))
	for i, w := range ways {
		models[i] = replaceByID(w.ID, w)
	}
	return bulkWrite(ctx, s.coll(store.CollectionHighwaysHelper), models)
}

func (s *Store) InsertNodeWays(ctx context.Context, nodes []datastructure.NodeWays) error {
	models := make([]mongo.WriteModel, len(nodes))
	for i, n := range nodes {
		models[i] = replaceByID(n.ID, n)
	}
	return bulkWrite(ctx, s.coll(store.CollectionNodesHelper), models)
}

func (s *Store) UpsertIntersections(ctx context.Context, intersections []datastructure.Intersection) error {
	models := make([]mongo.WriteModel, 0, len(intersections))
	for _, in := range intersections {
		m, err := insertIfMissing(in.ID, in)
		if err != nil {
			return err
		}
		models = append(models, m)
	}
	return bulkWrite(ctx, s.coll(store.CollectionIntersections), models)
}

// WaysOfNode returns the highways through nodeID in nodes_helper order.
func (s *Store) WaysOfNode(ctx context.Context, nodeID int64) ([]datastructure.Way, error) {
	var nw datastructure.NodeWays
	err := s.coll(store.CollectionNodesHelper).FindOne(ctx, bson.M{"_id": nodeID}).Decode(&nw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []datastructure.Way{}, nil
	}
	if err != nil {
		return nil, classify(err, "ways of node %d", nodeID)
	}

	found, err := findAll[datastructure.Way](ctx, s.coll(store.CollectionHighwaysHelper), bson.M{"_id": bson.M{"$in": nw.Ways}})
	if err != nil {
		return nil, errs.Annotate(err, "ways of node %d", nodeID)
	}
	byWay := make(map[int64]datastructure.Way, len(found))
	for _, w := range found {
		byWay[w.ID] = w
	}
	ways := make([]datastructure.Way, 0, len(nw.Ways))
	for _, id := range nw.Ways {
		if w, ok := byWay[id]; ok {
			ways = append(ways, w)
		}
	}
	return ways, nil
}

func (s *Store) NodeWays(ctx context.Context, ids []int64) (map[int64][]int64, error) {
	docs, err := findAll[datastructure.NodeWays](ctx, s.coll(store.CollectionNodesHelper), bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]int64, len(docs))
	for _, d := range docs {
		out[d.ID] = d.Ways
	}
	return out, nil
}

type idDoc struct {
	ID int64 `bson:"_id"`
}

func (s *Store) IntersectionIDs(ctx context.Context) (datastructure.IntersectionSet, error) {
	docs, err := findAll[idDoc](ctx, s.coll(store.CollectionIntersections), bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	set := make(datastructure.IntersectionSet, len(docs))
	for _, d := range docs {
		set[d.ID] = struct{}{}
	}
	return set, nil
}

// boxFilter matches the same points as box.Contains.
func boxFilter(box datastructure.BoundingBox) bson.M {
	maxOp := func(closed bool) string {
		if closed {
			return "$lte"
		}
		return "$lt"
	}
	return bson.M{
		"lat": bson.M{"$gte": box.MinLat, maxOp(box.ClosedLat): box.MaxLat},
		"lon": bson.M{"$gte": box.MinLon, maxOp(box.ClosedLon): box.MaxLon},
	}
}

func (s *Store) IntersectionsInBox(ctx context.Context, box datastructure.BoundingBox) ([]datastructure.Intersection, error) {
	return findAll[datastructure.Intersection](ctx, s.coll(store.CollectionIntersections), boxFilter(box),
		options.Find().SetSort(byID))
}

func (s *Store) ForEachIntersection(ctx context.Context, batchSize int, fn func([]datastructure.Intersection) error) error {
	return forEachBatch(ctx, s.coll(store.CollectionIntersections), bson.M{}, byID, batchSize, fn)
}

func (s *Store) IntersectionsMissingElevation(ctx context.Context, limit int) ([]datastructure.Intersection, error) {
	return findAll[datastructure.Intersection](ctx, s.coll(store.CollectionIntersections),
		bson.M{"elevation": bson.M{"$exists": false}},
		options.Find().SetSort(byID).SetLimit(int64(limit)))
}

func (s *Store) UpdateEnrichment(ctx context.Context, intersections []datastructure.Intersection) error {
	models := make([]mongo.WriteModel, len(intersections))
	for i, in := range intersections {
		models[i] = mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": in.ID}).
			SetUpdate(bson.M{"$set": bson.M{
				"elevation":       in.Elevation,
				"traffic_signals": in.TrafficSignals,
				"way_ids":         in.WayIDs,
			}})
	}
	return bulkWrite(ctx, s.coll(store.CollectionIntersections), models)
}

func (s *Store) CountIntersections(ctx context.Context) (int64, error) {
	n, err := s.coll(store.CollectionIntersections).CountDocuments(ctx, bson.M{})
	return n, classify(err, "count intersections")
}

func (s *Store) PathExists(ctx context.Context, start, end int64) (bool, error) {
	n, err := s.coll(store.CollectionPaths).CountDocuments(ctx,
		bson.M{"start_node": start, "end_node": end}, options.Count().SetLimit(1))
	if err != nil {
		return false, classify(err, "path %d -> %d", start, end)
	}
	return n > 0, nil
}

func (s *Store) InsertPaths(ctx context.Context, paths []datastructure.PathDoc) error {
	if len(paths) == 0 {
		return nil
	}
	docs := make([]interface{}, len(paths))
	for i, p := range paths {
		if err := p.Validate(); err != nil {
			return err
		}
		docs[i] = p
	}
	_, err := s.coll(store.CollectionPaths).InsertMany(ctx, docs)
	return classify(err, "insert %d paths", len(paths))
}

func (s *Store) PathEndpoints(ctx context.Context) ([]datastructure.PathEndpoints, error) {
	return findAll[datastructure.PathEndpoints](ctx, s.coll(store.CollectionPaths), bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1, "start_node": 1, "end_node": 1}))
}

// GetPaths returns the paths with the given ids in the order of ids. Missing
// ids are skipped.
func (s *Store) GetPaths(ctx context.Context, ids []string) ([]datastructure.PathDoc, error) {
	docs, err := findAll[datastructure.PathDoc](ctx, s.coll(store.CollectionPaths), bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]datastructure.PathDoc, len(docs))
	for _, d := range docs {
		byPath[d.ID] = d
	}
	out := make([]datastructure.PathDoc, 0, len(ids))
	for _, id := range ids {
		if d, ok := byPath[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) CountPathsBetween(ctx context.Context, start, end int64) (int64, error) {
	n, err := s.coll(store.CollectionPaths).CountDocuments(ctx, bson.M{"start_node": start, "end_node": end})
	return n, classify(err, "count paths %d -> %d", start, end)
}

func (s *Store) CountPaths(ctx context.Context) (int64, error) {
	n, err := s.coll(store.CollectionPaths).CountDocuments(ctx, bson.M{})
	return n, classify(err, "count paths")
}

func (s *Store) PathsStartingAt(ctx context.Context, nodeID int64) ([]datastructure.PathDoc, error) {
	return findAll[datastructure.PathDoc](ctx, s.coll(store.CollectionPaths), bson.M{"start_node": nodeID})
}

func (s *Store) PathsEndingAt(ctx context.Context, nodeID int64) ([]datastructure.PathDoc, error) {
	return findAll[datastructure.PathDoc](ctx, s.coll(store.CollectionPaths), bson.M{"end_node": nodeID})
}

func (s *Store) ForEachPath(ctx context.Context, batchSize int, fn func([]datastructure.PathDoc) error) error {
	return forEachBatch(ctx, s.coll(store.CollectionPaths), bson.M{}, nil, batchSize, fn)
}

func (s *Store) DeletePaths(ctx context.Context, ids []string) (int64, error) {
	res, err := s.coll(store.CollectionPaths).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, classify(err, "delete %d paths", len(ids))
	}
	return res.DeletedCount, nil
}

func (s *Store) DeleteIntersection(ctx context.Context, id int64) error {
	res, err := s.coll(store.CollectionIntersections).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return classify(err, "delete intersection %d", id)
	}
	if res.DeletedCount == 0 {
		return errs.New(errs.ErrCodeNotFound, "intersection %d", id)
	}
	return nil
}

func (s *Store) DeleteSelfLoops(ctx context.Context) (int64, error) {
	res, err := s.coll(store.CollectionPaths).DeleteMany(ctx,
		bson.M{"$expr": bson.M{"$eq": bson.A{"$start_node", "$end_node"}}})
	if err != nil {
		return 0, classify(err, "delete self loops")
	}
	return res.DeletedCount, nil
}

// isolatedPipeline selects intersections that no path starts or ends at.
var isolatedPipeline = mongo.Pipeline{
	{{Key: "$lookup", Value: bson.M{"from": store.CollectionPaths, "localField": "_id", "foreignField": "start_node", "as": "out"}}},
	{{Key: "$lookup", Value: bson.M{"from": store.CollectionPaths, "localField": "_id", "foreignField": "end_node", "as": "in"}}},
	{{Key: "$match", Value: bson.M{"out": bson.M{"$size": 0}, "in": bson.M{"$size": 0}}}},
	{{Key: "$project", Value: bson.M{"_id": 1}}},
}

func (s *Store) DeleteIsolatedIntersections(ctx context.Context) (int64, error) {
	coll := s.coll(store.CollectionIntersections)
	cur, err := coll.Aggregate(ctx, isolatedPipeline)
	if err != nil {
		return 0, classify(err, "find isolated intersections")
	}
	var ids []int64
	for cur.Next(ctx) {
		var d idDoc
		if err := cur.Decode(&d); err != nil {
			cur.Close(ctx)
			return 0, classify(err, "decode isolated intersection")
		}
		ids = append(ids, d.ID)
	}
	err = cur.Err()
	cur.Close(ctx)
	if err != nil {
		return 0, classify(err, "find isolated intersections")
	}

	var deleted int64
	for start := 0; start < len(ids); start += deleteBatch {
		end := min(start+deleteBatch, len(ids))
		res, err := coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids[start:end]}})
		if err != nil {
			return deleted, classify(err, "delete isolated intersections")
		}
		deleted += res.DeletedCount
	}
	return deleted, nil
}

var duplicatePipeline = mongo.Pipeline{
	{{Key: "$group", Value: bson.M{
		"_id": bson.M{"start": "$start_node", "end": "$end_node"},
		"n":   bson.M{"$sum": 1},
	}}},
	{{Key: "$match", Value: bson.M{"n": bson.M{"$gt": 1}}}},
	{{Key: "$count", Value: "pairs"}},
}

func (s *Store) DuplicatePairs(ctx context.Context) (int64, error) {
	cur, err := s.coll(store.CollectionPaths).Aggregate(ctx, duplicatePipeline)
	if err != nil {
		return 0, classify(err, "group duplicate paths")
	}
	var res []struct {
		Pairs int64 `bson:"pairs"`
	}
	if err := cur.All(ctx, &res); err != nil {
		return 0, classify(err, "decode duplicate paths")
	}
	if len(res) == 0 {
		return 0, nil
	}
	return res[0].Pairs, nil
}

func (s *Store) InsertSplitNodes(ctx context.Context, nodes []datastructure.SplitNode) error {
	models := make([]mongo.WriteModel, 0, len(nodes))
	for _, n := range nodes {
		m, err := insertIfMissing(n.ID, n)
		if err != nil {
			return err
		}
		models = append(models, m)
	}
	return bulkWrite(ctx, s.coll(store.CollectionIntersectionsSplitted), models)
}

func (s *Store) UpsertSplitPaths(ctx context.Context, paths []datastructure.SplitPathDoc) error {
	models := make([]mongo.WriteModel, len(paths))
	for i, p := range paths {
		if err := p.Validate(); err != nil {
			return err
		}
		models[i] = replaceByID(p.ID, p)
	}
	return bulkWrite(ctx, s.coll(store.CollectionPathsSplitted), models)
}

func (s *Store) ForEachSplitNode(ctx context.Context, batchSize int, fn func([]datastructure.SplitNode) error) error {
	return forEachBatch(ctx, s.coll(store.CollectionIntersectionsSplitted), bson.M{}, byID, batchSize, fn)
}

func (s *Store) ForEachSplitPath(ctx context.Context, batchSize int, fn func([]datastructure.SplitPathDoc) error) error {
	return forEachBatch(ctx, s.coll(store.CollectionPathsSplitted), bson.M{}, nil, batchSize, fn)
}

// Reset drops the derived collections and the enrichment fields. With all it
// also drops the intersections and the helper collections.
func (s *Store) Reset(ctx context.Context, all bool) error {
	drop := []string{store.CollectionPaths, store.CollectionIntersectionsSplitted, store.CollectionPathsSplitted}
	if all {
		drop = append(drop, store.CollectionIntersections, store.CollectionHighwaysHelper, store.CollectionNodesHelper)
	}
	for _, name := range drop {
		if err := s.coll(name).Drop(ctx); err != nil {
			return classify(err, "drop %s", name)
		}
	}
	if all {
		return nil
	}
	_, err := s.coll(store.CollectionIntersections).UpdateMany(ctx, bson.M{},
		bson.M{"$unset": bson.M{"elevation": "", "traffic_signals": "", "way_ids": ""}})
	return classify(err, "unset enrichment")
}

func (s *Store) Close(ctx context.Context) error {
	return classify(s.client.Disconnect(ctx), "disconnect")
}
