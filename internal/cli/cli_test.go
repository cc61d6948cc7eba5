package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := New(&bytes.Buffer{}).RootCommand()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"ingest", "enrich", "discover", "merge", "split", "export", "reset"} {
		assert.Contains(t, names, want)
	}

	discover, _, err := root.Find([]string{"discover"})
	require.NoError(t, err)
	assert.NotNil(t, discover.Flags().Lookup("multi"))
	assert.NotNil(t, discover.Flags().Lookup("grid"))
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
}

func TestIngestRequiresFile(t *testing.T) {
	root := New(&bytes.Buffer{}).RootCommand()
	root.SetArgs([]string{"ingest"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"file"`)
}

func TestInvalidConfigStopsBeforeConnecting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roadgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("progress:\n  backend: etcd\n"), 0o644))

	root := New(&bytes.Buffer{}).RootCommand()
	root.SetArgs([]string{"merge", "--config", path})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrCodeInvalidInput))
}

func TestGridSize(t *testing.T) {
	tests := []struct {
		name         string
		configured   int
		modeDefault  int
		multiChanged bool
		flag         int
		want         int
	}{
		{"config value", 10, 1, false, 0, 10},
		{"explicit grid flag", 10, 28, true, 4, 4},
		{"multi flag resets to mode default", 1, 28, true, 0, 28},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gridSize(tt.configured, tt.modeDefault, tt.multiChanged, tt.flag))
		})
	}
}
