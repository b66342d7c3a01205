package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/subcommands"

	"quotewatch/internal/export"
)

type exportCmd struct {
	dir     string
	refresh bool
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the watchlist as a CSV report" }
func (*exportCmd) Usage() string {
	return `export [-o dir] [-refresh]

  Writes watchlist_realtime_<date>.csv with the stored quotes and any overlay
  figures recorded for their trade date. With -refresh the quotes are
  fetched first. An empty watchlist still produces a report with the
  metadata block and the header row.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dir, "o", "", "output directory (default from config)")
	f.BoolVar(&c.refresh, "refresh", false, "refresh quotes before exporting")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := openSession()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer s.close()

	if c.refresh {
		if err := refresh(ctx, s); err != nil {
			fail("%v", err)
			return subcommands.ExitFailure
		}
	}

	snaps, err := s.app.Overlay.Apply(ctx, snapshots(s))
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}

	dir := c.dir
	if dir == "" {
		dir = s.app.Config.Export.Dir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	path := filepath.Join(dir, export.FileName(time.Now()))
	out, err := os.Create(path)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	if err := s.app.Exporter.Export(out, snaps); err != nil {
		out.Close()
		fail("%v", err)
		return subcommands.ExitFailure
	}
	if err := out.Close(); err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "wrote %s (%d rows)\n", path, len(snaps))
	return subcommands.ExitSuccess
}
