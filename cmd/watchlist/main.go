// Command watchlist manages a small list of Taiwan-listed symbols: it adds and
// removes symbols, refreshes their quotes, records user figures against a
// trade date and exports the list as a CSV report.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"quotewatch/internal/logger"
)

var configPath = flag.String("config", os.Getenv("CONFIG_FILE"), "path to config.json or config.yaml (optional)")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	register(commander)

	flag.Parse()
	code := commander.Execute(context.Background())
	logger.Sync()
	os.Exit(int(code))
}

func register(c *subcommands.Commander) {
	c.Register(&addCmd{}, "watchlist")
	c.Register(&removeCmd{}, "watchlist")
	c.Register(&listCmd{}, "watchlist")
	c.Register(&refreshCmd{}, "watchlist")
	c.Register(&exportCmd{}, "watchlist")

	c.Register(&overlaySetCmd{}, "overlay")
	c.Register(&overlayShowCmd{}, "overlay")
	c.Register(&overlayClearCmd{}, "overlay")
}
