package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndex(t *testing.T) *SQLiteDB {
	t.Helper()
	index, err := NewSQLite(filepath.Join(t.TempDir(), Filename))
	require.NoError(t, err)
	require.NoError(t, index.Init())
	t.Cleanup(func() { index.Close() })
	return index
}

func TestStoreConfig(t *testing.T) {
	index := newIndex(t)

	require.NoError(t, index.StoreConfig(&Config{
		Path:    "/data/run42",
		HPSS:    "archive/run42",
		Maxsize: 256 << 30,
		Keep:    true,
	}))

	values, err := index.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"path":    "/data/run42",
		"hpss":    "archive/run42",
		"maxsize": "274877906944",
		"keep":    "true",
	}, values)
}

func TestCommitFiles(t *testing.T) {
	index := newIndex(t)

	digest := "9e107d9d372bb6826bd81d3542a419d6"
	mtime := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	records := []*FileRecord{
		{Name: "a.txt", Size: 42, Mtime: mtime, Digest: &digest, Chunk: "000000.tar", Offset: 0},
		{Name: "emptydir", Size: 0, Mtime: mtime, Chunk: "000000.tar", Offset: 1024},
	}

	require.NoError(t, index.CommitFiles(records))
	assert.Positive(t, records[0].ID)

	stored, err := index.Files()
	require.NoError(t, err)
	require.Len(t, stored, 2)

	assert.Equal(t, "a.txt", stored[0].Name)
	assert.Equal(t, int64(42), stored[0].Size)
	require.NotNil(t, stored[0].Digest)
	assert.Equal(t, digest, *stored[0].Digest)
	assert.True(t, stored[0].Mtime.Equal(mtime))

	// The placeholder has no content stream and therefore no digest.
	assert.Nil(t, stored[1].Digest)
	assert.Equal(t, int64(1024), stored[1].Offset)
}

func TestCommitFilesEmpty(t *testing.T) {
	index := newIndex(t)
	require.NoError(t, index.CommitFiles(nil))

	stored, err := index.Files()
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestCommitFilesPerChunk(t *testing.T) {
	index := newIndex(t)
	mtime := time.Now()

	require.NoError(t, index.CommitFiles([]*FileRecord{
		{Name: "a", Mtime: mtime, Chunk: "000000.tar"},
	}))
	require.NoError(t, index.CommitFiles([]*FileRecord{
		{Name: "b", Mtime: mtime, Chunk: "000001.tar"},
		{Name: "c", Mtime: mtime, Chunk: "000001.tar"},
	}))

	stored, err := index.Files()
	require.NoError(t, err)
	require.Len(t, stored, 3)

	last, err := index.LastChunk()
	require.NoError(t, err)
	assert.Equal(t, "000001.tar", last)
}

func TestDuplicateNamesAllowed(t *testing.T) {
	index := newIndex(t)
	mtime := time.Now()

	// No uniqueness constraint on name: a restarted session against a kept
	// index may record a path twice.
	require.NoError(t, index.CommitFiles([]*FileRecord{
		{Name: "a", Mtime: mtime, Chunk: "000000.tar"},
		{Name: "a", Mtime: mtime, Chunk: "000001.tar"},
	}))

	stored, err := index.Files()
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestLastChunkEmpty(t *testing.T) {
	index := newIndex(t)
	last, err := index.LastChunk()
	require.NoError(t, err)
	assert.Empty(t, last)
}
