package main

import (
	"github.com/alecthomas/kong"
	"github.com/gentoomaniac/logging"
	"github.com/rs/zerolog/log"
)

var (
	version = "unset"
	commit  = "unset"
	binName = "tapestash"
	builtBy = "manual"
	date    = "unset"
)

var cli struct {
	logging.LoggingConfig

	Create Create `cmd:"" help:"Create a new archive"`
	Ls     Ls     `cmd:"" help:"List the entries recorded in an archive index"`

	Version kong.VersionFlag `help:"Display version."`
}

func main() {
	ctx := kong.Parse(&cli, kong.UsageOnError(), kong.Vars{
		"version": version,
		"commit":  commit,
		"binName": binName,
		"builtBy": builtBy,
		"date":    date,
	})
	logging.Setup(&cli.LoggingConfig)

	var err error
	switch ctx.Command() {
	case "create <path>":
		err = create(&cli.Create)
	case "ls":
		err = ls(&cli.Ls)
	}
	if err != nil {
		log.Error().Err(err).Msg("")
		ctx.Exit(1)
	}
	ctx.Exit(0)
}
