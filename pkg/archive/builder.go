// Package archive packs an ordered list of entries into size-bounded tar
// chunks, hashing content as it streams and committing index records only
// once their chunk is durable on the remote tier.
package archive

import (
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/tapestash/tapestash/pkg/db"
	"github.com/tapestash/tapestash/pkg/hpss"
	"github.com/tapestash/tapestash/pkg/scan"
)

type Builder struct {
	root     string
	cache    string
	maxsize  int64
	keep     bool
	endpoint hpss.Endpoint
	index    db.DB
	ordinal  int
}

// NewBuilder returns a builder writing chunks into cache. lastOrdinal is the
// ordinal of the last chunk of any prior sequence; a fresh archive passes -1.
func NewBuilder(root, cache string, maxsize int64, keep bool, endpoint hpss.Endpoint, index db.DB, lastOrdinal int) *Builder {
	return &Builder{
		root:     root,
		cache:    cache,
		maxsize:  maxsize,
		keep:     keep,
		endpoint: endpoint,
		index:    index,
		ordinal:  lastOrdinal,
	}
}

// closeAfter decides whether the open chunk must close after the entry just
// appended: when it was the last entry overall, or when the next entry would
// push the accumulated pre-archive size past the maximum. The one-entry
// lookahead means a chunk may fill right up to capacity, and an oversized
// entry lands alone in its own chunk rather than being split.
func closeAfter(accumulated, next int64, last bool, maxsize int64) bool {
	return last || accumulated+next > maxsize
}

// Archive streams every entry into chunks. Per-entry faults are contained:
// the failing path is collected and the session continues. Transfer and
// index faults are fatal and returned as an error; chunks committed before
// the fault remain valid and indexed.
func (b *Builder) Archive(entries []scan.Entry) (failures []string, err error) {
	var w *Writer
	var archived []*db.FileRecord

	for i, entry := range entries {
		if w == nil {
			b.ordinal++
			if w, err = NewWriter(b.cache, b.ordinal); err != nil {
				return failures, err
			}
			log.Info().Str("chunk", w.Name()).Msg("creating new chunk")
		}

		log.Info().Str("file", entry.Path).Msg("archiving")
		record, addErr := w.Add(b.root, entry)
		if addErr != nil {
			log.Error().Err(addErr).Str("file", entry.Path).Msg("archiving failed")
			failures = append(failures, entry.Path)
		} else {
			archived = append(archived, record)
			w.accumulated += entry.Size
		}

		last := i == len(entries)-1
		var next int64
		if !last {
			next = entries[i+1].Size
		}
		if closeAfter(w.accumulated, next, last, b.maxsize) {
			if err := b.closeChunk(w, archived); err != nil {
				return failures, err
			}
			w = nil
			archived = nil
		}
	}

	return failures, nil
}

func (b *Builder) closeChunk(w *Writer, archived []*db.FileRecord) error {
	log.Debug().
		Str("chunk", w.Name()).
		Str("size", humanize.IBytes(uint64(w.accumulated))).
		Int("files", len(archived)).
		Msg("closing chunk")

	if err := w.Close(); err != nil {
		return err
	}
	if err := b.endpoint.Put(w.Path(), b.keep); err != nil {
		return errors.Wrapf(err, "transferring chunk %s", w.Name())
	}
	return b.index.CommitFiles(archived)
}
