package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type removeCmd struct{}

func (*removeCmd) Name() string     { return "remove" }
func (*removeCmd) Synopsis() string { return "remove a symbol from the watchlist" }
func (*removeCmd) Usage() string {
	return `remove <symbol>

  Removes <symbol> from the watchlist. Overlay figures recorded for the
  symbol are kept.
`
}

func (*removeCmd) SetFlags(*flag.FlagSet) {}

func (*removeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fail("remove takes exactly one symbol")
		return subcommands.ExitUsageError
	}
	s, err := openSession()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer s.close()

	if !s.list.Remove(f.Arg(0)) {
		fmt.Fprintf(stdout, "%s is not in the watchlist\n", f.Arg(0))
		return subcommands.ExitSuccess
	}
	if err := s.save(); err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "removed %s (%d/%d)\n", f.Arg(0), s.list.Len(), s.list.Limit())
	return subcommands.ExitSuccess
}
