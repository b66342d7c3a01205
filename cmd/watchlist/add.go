package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"quotewatch/internal/watchlist"
)

type addCmd struct{}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "fetch a symbol and add it to the watchlist" }
func (*addCmd) Usage() string {
	return `add <symbol>

  Fetches the current quote for <symbol> and appends it to the watchlist.
  The watchlist holds at most 10 symbols; duplicates are rejected.
`
}

func (*addCmd) SetFlags(*flag.FlagSet) {}

func (*addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fail("add takes exactly one symbol")
		return subcommands.ExitUsageError
	}
	s, err := openSession()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer s.close()

	symbol := f.Arg(0)
	// check locally first so a full or duplicate list costs no upstream call
	if s.list.Len() >= s.list.Limit() {
		fail("%v (max %d)", watchlist.ErrCapacityExceeded, s.list.Limit())
		return subcommands.ExitFailure
	}
	if s.list.Contains(symbol) {
		fail("%s: %v", symbol, watchlist.ErrDuplicateSymbol)
		return subcommands.ExitFailure
	}

	res, err := s.app.Reconciler.Reconcile(ctx, []string{symbol})
	if err != nil {
		fail("%v", err)
		for _, fl := range res.Failures {
			fail("%s: %v", fl.Symbol, fl.Err)
		}
		return subcommands.ExitFailure
	}
	snap := res.Snapshots[0]
	if err := s.list.Add(snap); err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	if err := s.save(); err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "added %s %s (%d/%d)\n", snap.Symbol, snap.Name, s.list.Len(), s.list.Limit())
	return subcommands.ExitSuccess
}
