package mongostore

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.Code
	}{
		{"no documents", mongo.ErrNoDocuments, errs.ErrCodeNotFound},
		{"deadline", context.DeadlineExceeded, errs.ErrCodeTransientRemote},
		{"duplicate key", mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000"}}}, errs.ErrCodeInvalidInput},
		{"coded error keeps its code", errs.New(errs.ErrCodeStructural, "bad edge"), errs.ErrCodeStructural},
		{"anything else", stderrors.New("boom"), errs.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err, "op")
			assert.Equal(t, tt.want, errs.GetCode(err))
			assert.Contains(t, err.Error(), tt.err.Error())
		})
	}
	assert.NoError(t, classify(nil, "op"))
}

func TestBoxFilter(t *testing.T) {
	open := boxFilter(datastructure.BoundingBox{MinLat: 1, MaxLat: 2, MinLon: 3, MaxLon: 4})
	assert.Equal(t, bson.M{
		"lat": bson.M{"$gte": 1.0, "$lt": 2.0},
		"lon": bson.M{"$gte": 3.0, "$lt": 4.0},
	}, open)

	closed := boxFilter(datastructure.BoundingBox{MinLat: 1, MaxLat: 2, MinLon: 3, MaxLon: 4, ClosedLat: true})
	assert.Equal(t, bson.M{"$gte": 1.0, "$lte": 2.0}, closed["lat"])
	assert.Equal(t, bson.M{"$gte": 3.0, "$lt": 4.0}, closed["lon"])
}

func TestWithoutID(t *testing.T) {
	m, err := withoutID(datastructure.Intersection{ID: 7, Lat: 46.1, Lon: 14.5})
	require.NoError(t, err)

	_, hasID := m["_id"]
	assert.False(t, hasID)
	assert.Equal(t, 46.1, m["lat"])
	assert.Equal(t, 14.5, m["lon"])
	_, hasElevation := m["elevation"]
	assert.False(t, hasElevation, "unset enrichment fields are omitted")
}
