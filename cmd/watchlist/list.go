package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/subcommands"

	"quotewatch/internal/export"
	"quotewatch/internal/quote"
)

type listCmd struct{}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "show the watchlist with its last known quotes" }
func (*listCmd) Usage() string {
	return `list

  Prints the watched symbols in the order they were added, with the quote
  recorded at the last add or refresh.
`
}

func (*listCmd) SetFlags(*flag.FlagSet) {}

func (*listCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := openSession()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer s.close()

	printTable(stdout, snapshots(s))
	fmt.Fprintf(stdout, "%d/%d symbols\n", s.list.Len(), s.list.Limit())
	return subcommands.ExitSuccess
}

func printTable(w io.Writer, snaps []quote.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NO.\tSYMBOL\tNAME\tLAST\tCHANGE\tCHANGE %\tVOLUME\tTRADE")
	for i, snap := range snaps {
		change, pct := export.Change(snap.Last, snap.PrevClose)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s %s\n",
			i+1, snap.Symbol, snap.Name, snap.Last, change, pct, snap.Volume, snap.TradeDate, snap.LastTradeTime)
	}
	tw.Flush()
}
