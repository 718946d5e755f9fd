// Package scan enumerates and filters the entries of a source tree. The
// result is the exact, ordered work list the archive builder consumes:
// ordering is significant because it makes chunk contents and index offsets
// reproducible across runs over an unchanged tree.
package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// Entry is one candidate for archiving: a path relative to the source root
// and its pre-measured size. An empty directory is represented by a single
// placeholder entry with size 0.
type Entry struct {
	Path string
	Size int64
}

// Tree walks root and returns its entries sorted by (directory, filename).
// The cache directory (relative to root) is skipped entirely. Sizes come
// from lstat so symlinks are measured as themselves, not their targets.
func Tree(root string, cache string) ([]Entry, error) {
	type candidate struct {
		dir  string
		name string
		size int64
	}

	cachePath := filepath.Join(root, cache)
	var candidates []candidate

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == cachePath {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if rel == "." {
				return nil
			}
			empty, err := isEmptyDir(path)
			if err != nil {
				return err
			}
			if empty {
				candidates = append(candidates, candidate{dir: rel, name: "", size: 0})
			}
			return nil
		}
		candidates = append(candidates, candidate{dir: filepath.Dir(rel), name: filepath.Base(rel), size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking %s", root)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dir != candidates[j].dir {
			return candidates[i].dir < candidates[j].dir
		}
		return candidates[i].name < candidates[j].name
	})

	entries := make([]Entry, 0, len(candidates))
	for _, c := range candidates {
		path := c.dir
		if c.name != "" {
			path = filepath.Join(c.dir, c.name)
		}
		entries = append(entries, Entry{Path: filepath.ToSlash(path), Size: c.size})
	}
	return entries, nil
}

func isEmptyDir(path string) (bool, error) {
	names, err := os.ReadDir(path)
	if err != nil {
		return false, err
	}
	return len(names) == 0, nil
}

// Exclude drops every entry matching any of the comma-separated glob
// patterns. A pattern with a trailing path separator excludes the whole
// subtree beneath it. Wildcards match across separators, so "*.nc" excludes
// matching files at any depth. An empty pattern list passes everything
// through unchanged.
func Exclude(patterns string, entries []Entry) ([]Entry, error) {
	if patterns == "" {
		return entries, nil
	}

	var globs []glob.Glob
	for _, pattern := range strings.Split(patterns, ",") {
		if strings.HasSuffix(pattern, "/") {
			pattern += "*"
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "bad exclude pattern %q", pattern)
		}
		globs = append(globs, g)
	}

	kept := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		excluded := false
		for _, g := range globs {
			if g.Match(entry.Path) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, entry)
		}
	}
	return kept, nil
}
