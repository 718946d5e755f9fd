package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, name string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
}

func paths(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Path)
	}
	return out
}

func TestTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.txt")
	writeFile(t, root, "a.txt")
	writeFile(t, root, "sub/c.txt")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "emptydir"), 0o755))
	writeFile(t, root, "tapestash/000000.tar") // cache must not be enumerated

	entries, err := Tree(root, "tapestash")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt", "emptydir", "sub/c.txt"}, paths(entries))
	for _, e := range entries {
		if e.Path == "emptydir" {
			assert.Zero(t, e.Size)
		} else {
			assert.Equal(t, int64(len(e.Path)), e.Size)
		}
	}
}

func TestTreeEmptyDirsOnly(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "x", "y"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "z"), 0o755))

	entries, err := Tree(root, "tapestash")
	require.NoError(t, err)

	// Only directories containing nothing at all become placeholders; x
	// holds y and is represented by y's placeholder path.
	assert.Equal(t, []string{"x/y", "z"}, paths(entries))
}

func TestTreeDeterminism(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sub/a.txt")
	writeFile(t, root, "sub/b.txt")
	writeFile(t, root, "top.txt")

	first, err := Tree(root, "tapestash")
	require.NoError(t, err)
	second, err := Tree(root, "tapestash")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExcludeSubtreePattern(t *testing.T) {
	entries := []Entry{
		{Path: "logs/a.txt"},
		{Path: "logs/sub/b.txt"},
		{Path: "logs_backup/a.txt"},
	}

	kept, err := Exclude("logs/", entries)
	require.NoError(t, err)
	assert.Equal(t, []string{"logs_backup/a.txt"}, paths(kept))
}

func TestExcludeMultiplePatterns(t *testing.T) {
	entries := []Entry{
		{Path: "data/run1.nc"},
		{Path: "data/run1.txt"},
		{Path: "notes.md"},
		{Path: "scratch/tmp.bin"},
	}

	kept, err := Exclude("*.nc,scratch/", entries)
	require.NoError(t, err)
	assert.Equal(t, []string{"data/run1.txt", "notes.md"}, paths(kept))
}

func TestExcludeEmptyPatternList(t *testing.T) {
	entries := []Entry{{Path: "a"}, {Path: "b"}}
	kept, err := Exclude("", entries)
	require.NoError(t, err)
	assert.Equal(t, entries, kept)
}

func TestExcludeBadPattern(t *testing.T) {
	_, err := Exclude("[", []Entry{{Path: "a"}})
	assert.Error(t, err)
}
