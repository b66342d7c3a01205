package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/google/subcommands"
)

type overlaySetCmd struct{}

func (*overlaySetCmd) Name() string     { return "overlay-set" }
func (*overlaySetCmd) Synopsis() string { return "record a user figure for a symbol on a trade date" }
func (*overlaySetCmd) Usage() string {
	return `overlay-set <symbol> <date> <field> <value>

  Stores <value> for <field> (e.g. foreignInvestor, chips, mainBuy) against
  <symbol> on <date> (YYYY-MM-DD or YYYYMMDD). Other fields recorded for the
  same symbol and date are kept. The figure is merged into every later
  export for that trade date.
`
}

func (*overlaySetCmd) SetFlags(*flag.FlagSet) {}

func (*overlaySetCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 4 {
		fail("overlay-set takes <symbol> <date> <field> <value>")
		return subcommands.ExitUsageError
	}
	value, err := strconv.ParseFloat(f.Arg(3), 64)
	if err != nil {
		fail("value %q is not a number", f.Arg(3))
		return subcommands.ExitUsageError
	}
	s, err := openSession()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer s.close()

	if err := s.app.Overlay.SetField(ctx, f.Arg(0), f.Arg(1), f.Arg(2), value); err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "set %s on %s: %s = %s\n", f.Arg(0), f.Arg(1), f.Arg(2), f.Arg(3))
	return subcommands.ExitSuccess
}

type overlayShowCmd struct{}

func (*overlayShowCmd) Name() string     { return "overlay-show" }
func (*overlayShowCmd) Synopsis() string { return "print the user figures for a symbol on a trade date" }
func (*overlayShowCmd) Usage() string {
	return `overlay-show <symbol> <date>
`
}

func (*overlayShowCmd) SetFlags(*flag.FlagSet) {}

func (*overlayShowCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fail("overlay-show takes <symbol> <date>")
		return subcommands.ExitUsageError
	}
	s, err := openSession()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer s.close()

	rec, err := s.app.Overlay.Get(ctx, f.Arg(0), f.Arg(1))
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	if len(rec.Fields) == 0 {
		fmt.Fprintf(stdout, "no figures recorded for %s\n", rec.Key)
		return subcommands.ExitSuccess
	}
	for _, name := range rec.Overridden {
		fmt.Fprintf(stdout, "%s\t%s\n", name, strconv.FormatFloat(rec.Fields[name], 'f', -1, 64))
	}
	return subcommands.ExitSuccess
}

type overlayClearCmd struct{}

func (*overlayClearCmd) Name() string     { return "overlay-clear" }
func (*overlayClearCmd) Synopsis() string { return "drop every recorded user figure" }
func (*overlayClearCmd) Usage() string {
	return `overlay-clear

  Removes all overlay figures for all symbols and dates.
`
}

func (*overlayClearCmd) SetFlags(*flag.FlagSet) {}

func (*overlayClearCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := openSession()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer s.close()

	if err := s.app.Overlay.Clear(ctx); err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(stdout, "overlays cleared")
	return subcommands.ExitSuccess
}
