package elevation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService answers with elevation = latitude * 100 after failing the first `failures` calls.
func fakeService(t *testing.T, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		if n <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req lookupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp lookupResponse
		for _, l := range req.Locations {
			resp.Results = append(resp.Results, struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
				Elevation float64 `json:"elevation"`
			}{l.Latitude, l.Longitude, l.Latitude * 100})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestLookup(t *testing.T) {
	srv, calls := fakeService(t, 2)
	retries := 0
	c := NewClient(srv.URL, time.Second, WithRetry(3, time.Millisecond), WithRetryHook(func(int, error) { retries++ }))

	got, err := c.Lookup(context.Background(), []datastructure.Coordinate{{Lat: 1, Lon: 2}, {Lat: 3, Lon: 4}})

	require.NoError(t, err)
	assert.Equal(t, []float64{100, 300}, got)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2, retries)
}

func TestLookupOrSentinel(t *testing.T) {
	srv, calls := fakeService(t, 100)
	c := NewClient(srv.URL, time.Second, WithRetry(5, time.Millisecond))

	got, err := c.LookupOrSentinel(context.Background(), []datastructure.Coordinate{{Lat: 1}, {Lat: 2}})

	assert.True(t, errs.IsTransient(err))
	assert.Equal(t, []float64{Sentinel, Sentinel}, got)
	assert.Equal(t, int32(5), calls.Load())
}

func TestReadNodes(t *testing.T) {
	srv, _ := fakeService(t, 0)
	c := NewClient(srv.URL, time.Second)

	elev, err := c.ReadNodes(context.Background(), []datastructure.Node{
		datastructure.NewNode(1, 0, 0),
		datastructure.NewNode(2, 0.01, 0),
	})

	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, elev.Altitudes)
	assert.Equal(t, 0.0, elev.Distances[0])
	assert.InDelta(t, 1112, elev.Distances[1], 1)
}

func TestLookupClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad locations", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, WithRetry(3, time.Millisecond))
	_, err := c.Lookup(context.Background(), []datastructure.Coordinate{{Lat: 1}})

	assert.True(t, errs.Is(err, errs.ErrCodeInvalidInput))
	assert.Equal(t, int32(1), calls.Load())
}
