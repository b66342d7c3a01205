package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type refreshCmd struct{}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "fetch fresh quotes for every watched symbol" }
func (*refreshCmd) Usage() string {
	return `refresh

  Fetches every watched symbol concurrently. Symbols that fail keep their
  previous quote and are named in a warning; if every fetch fails the
  watchlist is left untouched and the command exits non-zero.
`
}

func (*refreshCmd) SetFlags(*flag.FlagSet) {}

func (*refreshCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := openSession()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer s.close()

	if err := refresh(ctx, s); err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	printTable(stdout, snapshots(s))
	return subcommands.ExitSuccess
}

// refresh updates the watchlist in place with a new batch. Failed symbols keep
// their previous snapshot.
func refresh(ctx context.Context, s *session) error {
	if s.list.Len() == 0 {
		return nil
	}
	res, err := s.app.Reconciler.Reconcile(ctx, s.list.Symbols())
	if err != nil {
		return err
	}
	for _, snap := range res.Snapshots {
		s.list.Update(snap)
	}
	if w := res.Warning(); w != "" {
		fmt.Fprintln(stderr, "Warning: "+w)
	}
	return s.save()
}
