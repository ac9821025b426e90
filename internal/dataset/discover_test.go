package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscoverShardsSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "shard-000000.tar"))
	touch(t, filepath.Join(dir, "nested", "shard-000001.tar"))
	touch(t, filepath.Join(dir, "shard-1.tar"))
	touch(t, filepath.Join(dir, "labels.txt"))

	shards, err := DiscoverShards(dir)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "nested", "shard-000001.tar"),
		filepath.Join(dir, "shard-000000.tar"),
	}, shards)
}

func TestDiscoverShardsPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "shard-000000.tar"))

	first, err := DiscoverShards(dir)
	require.NoError(t, err)
	require.Len(t, first, 1)

	touch(t, filepath.Join(dir, "shard-000001.tar"))

	second, err := DiscoverShards(dir)
	require.NoError(t, err)
	require.Len(t, second, 2)
}

func TestDiscoverShardsMissingRoot(t *testing.T) {
	_, err := DiscoverShards(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}
