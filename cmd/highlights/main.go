package main

import (
	_ "time/tzdata"

	"github.com/MakeNowJust/heredoc"
	"github.com/alecthomas/kong"
	"go.ntppool.org/common/logger"

	basecmd "go.readwell.dev/highlights/cmd"
	"go.readwell.dev/highlights/hldb"
	"go.readwell.dev/highlights/opsapi"
	"go.readwell.dev/highlights/selector"
)

func init() {
	logger.ConfigPrefix = "HIGHLIGHTS"
}

type CLI struct {
	Database  hldb.DBConfig   `embed:"" prefix:"database-"`
	Selection selector.Config `embed:"" prefix:"selection-"`

	Server  serverCmd    `cmd:"" help:"Run the scheduler and the ops listener"`
	Select  selector.Cmd `cmd:"" help:"Selection commands"`
	DB      dbCmd        `cmd:"" name:"db" help:"Database utilities"`
	Version versionCmd   `cmd:"" help:"Show version"`
}

func main() {
	cli := &CLI{}
	basecmd.Run(cli, "highlights",
		heredoc.Doc(`
			Daily highlights selection.

			Picks a deterministic, rotating set of highlights for each
			calendar window and keeps a record of what was served.
		`),
		kong.Bind(&cli.Database, &cli.Selection),
		kong.Vars{"ops_listen": opsapi.DefaultListen},
	)
}
