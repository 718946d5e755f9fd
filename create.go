package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/tapestash/tapestash/pkg/archive"
	"github.com/tapestash/tapestash/pkg/db"
	"github.com/tapestash/tapestash/pkg/hpss"
	"github.com/tapestash/tapestash/pkg/scan"
)

type Create struct {
	Path    string  `arg:"" help:"Root directory to archive" type:"existingdir"`
	HPSS    string  `help:"Path to storage on HPSS, or \"none\" for local archiving" required:""`
	Exclude string  `help:"Comma separated list of file patterns to exclude"`
	Maxsize float64 `help:"Maximum size of chunk archives in GB" default:"256"`
	Keep    bool    `help:"Keep chunk files in the local cache after uploading"`
	Cache   string  `help:"Name of the local cache directory" default:"tapestash"`
}

func create(params *Create) error {
	maxsize := int64(params.Maxsize * (1 << 30))

	log.Debug().
		Str("path", params.Path).
		Str("hpss", params.HPSS).
		Int64("maxsize", maxsize).
		Bool("keep", params.Keep).
		Msg("running create")

	endpoint := hpss.For(params.HPSS)
	if err := endpoint.Prepare(); err != nil {
		return err
	}

	cache := filepath.Join(params.Path, params.Cache)
	if err := os.MkdirAll(cache, 0o755); err != nil {
		return errors.Wrap(err, "cannot create local cache directory")
	}

	// A create always starts a fresh session: any index left behind by a
	// previous run in the same cache is discarded.
	dbPath := filepath.Join(cache, db.Filename)
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing stale index")
	}

	index, err := db.NewSQLite(dbPath)
	if err != nil {
		return err
	}
	defer index.Close()
	if err := index.Init(); err != nil {
		return errors.Wrap(err, "initialising index")
	}
	if err := index.StoreConfig(&db.Config{
		Path:    params.Path,
		HPSS:    params.HPSS,
		Maxsize: maxsize,
		Keep:    params.Keep,
	}); err != nil {
		return err
	}

	log.Info().Msg("gathering list of files to archive")
	entries, err := scan.Tree(params.Path, params.Cache)
	if err != nil {
		return err
	}
	entries, err = scan.Exclude(params.Exclude, entries)
	if err != nil {
		return err
	}
	log.Info().Int("entries", len(entries)).Msg("archiving")

	builder := archive.NewBuilder(params.Path, cache, maxsize, params.Keep, endpoint, index, -1)
	failures, err := builder.Archive(entries)
	if err != nil {
		return err
	}

	if err := index.Close(); err != nil {
		return err
	}
	// The index itself goes to the remote tier too, but its local copy is
	// always kept: without it the cache cannot be read at all.
	if err := endpoint.Put(dbPath, true); err != nil {
		return errors.Wrap(err, "transferring index")
	}

	if len(failures) > 0 {
		log.Warn().Int("count", len(failures)).Msg("some files could not be archived")
		for _, path := range failures {
			log.Error().Str("file", path).Msg("archiving failed")
		}
	}
	return nil
}
