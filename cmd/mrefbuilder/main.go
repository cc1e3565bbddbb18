package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/mrefbuilder/cmd/mrefbuilder/commands"
	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/mrefbuilder/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("mrefbuilder"),
		kong.Description("Writes reflection data files for API reference documentation."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := commands.NewGlobal()
	err := ctx.Run(global, &cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
