package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/aristath/compass/internal/modules/portfolio"
)

type portfoliosCmd struct {
	create      string
	description string
}

func (*portfoliosCmd) Name() string     { return "portfolios" }
func (*portfoliosCmd) Synopsis() string { return "list or create portfolios" }
func (*portfoliosCmd) Usage() string {
	return `compass portfolios [-create <name> [-description <text>]]

  Lists your portfolios, or creates one.
`
}

func (c *portfoliosCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.create, "create", "", "Create a portfolio with this name")
	f.StringVar(&c.description, "description", "", "Description for -create")
}

func (c *portfoliosCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cl := newClient()

	if c.create != "" {
		p, err := cl.CreatePortfolio(ctx, c.create, c.description)
		if err != nil {
			return fail(err)
		}
		fmt.Fprintf(stdout, "Created portfolio %s (%s)\n", p.Name, p.ID)
		return subcommands.ExitSuccess
	}

	list, err := cl.Portfolios(ctx)
	if err != nil {
		return fail(err)
	}
	printMarkdown(portfoliosMarkdown(list))
	return subcommands.ExitSuccess
}

type holdingsCmd struct {
	pos portfolio.PositionInput
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "show priced holdings of a portfolio" }
func (*holdingsCmd) Usage() string {
	return `compass holdings [-set <ticker> -shares <n> -price <avg>] <portfolio-id>

  Shows holdings valued at live prices. With -set, adds or replaces a position first.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.pos.TickerSymbol, "set", "", "Ticker of a position to add or replace")
	f.StringVar(&c.pos.CompanyName, "company", "", "Company name for -set")
	f.Float64Var(&c.pos.Shares, "shares", 0, "Shares for -set")
	f.Float64Var(&c.pos.AveragePrice, "price", 0, "Average price for -set")
}

func (c *holdingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected exactly one portfolio id")
		return subcommands.ExitUsageError
	}
	id := f.Arg(0)
	cl := newClient()

	if c.pos.TickerSymbol != "" {
		if _, err := cl.SetPosition(ctx, id, c.pos); err != nil {
			return fail(err)
		}
	}

	v, err := cl.Holdings(ctx, id)
	if err != nil {
		return fail(err)
	}
	printMarkdown(holdingsMarkdown(v))
	return subcommands.ExitSuccess
}
