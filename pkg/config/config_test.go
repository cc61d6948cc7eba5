package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roadgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, "geo_data", c.Mongo.Database)
	assert.Equal(t, BackendBadger, c.Progress.Backend)
	assert.Equal(t, BoundaryConfig{MinLat: 45.4, MaxLat: 46.9, MinLon: 13.6, MaxLon: 16.6}, c.Boundary)
	assert.Equal(t, 1, c.Grid.Size)
	assert.Equal(t, 30*time.Second, c.Elevation.Timeout)
	assert.Equal(t, 9, c.Export.Resolution)
}

func TestLoad(t *testing.T) {
	t.Run("missing file gives defaults", func(t *testing.T) {
		c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), c)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		c, err := Load(writeConfig(t, `
mongo:
  uri: mongodb://mongo:27017
  disable_transactions: true
progress:
  backend: redis
  redis:
    addr: redis:6379
    db: 2
elevation:
  timeout: 5s
grid:
  multi: true
metrics:
  listen_addr: ":9090"
`))
		require.NoError(t, err)
		assert.Equal(t, "mongodb://mongo:27017", c.Mongo.URI)
		assert.True(t, c.Mongo.DisableTransactions)
		assert.Equal(t, "geo_data", c.Mongo.Database)
		assert.Equal(t, BackendRedis, c.Progress.Backend)
		assert.Equal(t, 2, c.Progress.Redis.DB)
		assert.Equal(t, 5*time.Second, c.Elevation.Timeout)
		assert.Equal(t, MultiGridSize, c.Grid.Size)
		assert.Equal(t, ":9090", c.Metrics.ListenAddr)
	})

	t.Run("invalid values are reported together", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
progress:
  backend: etcd
boundary:
  min_lat: 47
  max_lat: 46
  min_lon: 13
  max_lon: 16
`))
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.ErrCodeInvalidInput))
		assert.Contains(t, err.Error(), "backend must be one of [redis badger]")
		assert.Contains(t, err.Error(), "min_lat")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "grid: [1, 2"))
		assert.True(t, errs.Is(err, errs.ErrCodeInvalidInput))
	})
}

func TestBoundingBoxIsClosed(t *testing.T) {
	box := Default().Boundary.BoundingBox()
	assert.True(t, box.Contains(46.9, 16.6))
	assert.False(t, box.Contains(47, 15))
}
