package db

import (
	"time"
)

// Filename is the name of the index database inside the cache directory.
const Filename = "index.db"

// Config holds the session settings persisted to the config table when an
// archive is created. It never changes afterwards.
type Config struct {
	Path    string
	HPSS    string
	Maxsize int64
	Keep    bool
}

// FileRecord is one archived entry: where it lives in which chunk, and the
// digest of its content. Digest is nil for directories, empty-directory
// placeholders and other entries without a content stream.
type FileRecord struct {
	ID     int64
	Name   string
	Size   int64
	Mtime  time.Time
	Digest *string
	Chunk  string
	Offset int64
}
