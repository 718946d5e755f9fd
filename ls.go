package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/tapestash/tapestash/pkg/db"
)

type Ls struct {
	Cache string `help:"Path to the local cache directory" default:"tapestash"`
}

func ls(params *Ls) error {
	dbPath := filepath.Join(params.Cache, db.Filename)
	if _, err := os.Stat(dbPath); err != nil {
		return errors.Wrapf(err, "no index found in %s", params.Cache)
	}

	index, err := db.NewSQLite(dbPath)
	if err != nil {
		return err
	}
	defer index.Close()

	records, err := index.Files()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	for _, record := range records {
		digest := "-"
		if record.Digest != nil {
			digest = *record.Digest
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			humanize.IBytes(uint64(record.Size)),
			record.Mtime.Format("2006-01-02 15:04:05"),
			record.Chunk,
			record.Offset,
			digest,
			record.Name,
		)
	}
	return w.Flush()
}
