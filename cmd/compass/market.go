package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/aristath/compass/internal/modules/commentary"
	"github.com/aristath/compass/internal/modules/market"
	markethandlers "github.com/aristath/compass/internal/modules/market/handlers"
)

type indicesCmd struct {
	watch bool
}

func (*indicesCmd) Name() string     { return "indices" }
func (*indicesCmd) Synopsis() string { return "show the market index board" }
func (*indicesCmd) Usage() string {
	return `compass indices [-watch]

  Shows the latest index snapshot. With -watch, redraws on every server refresh
  until interrupted.
`
}

func (c *indicesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.watch, "watch", false, "Follow the live stream")
}

func (c *indicesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cl := newClient()

	if !c.watch {
		s, err := cl.Indices(ctx)
		if err != nil {
			return fail(err)
		}
		printMarkdown(indicesMarkdown(s))
		return subcommands.ExitSuccess
	}

	err := cl.WatchIndices(ctx, func(f markethandlers.StreamFrame) error {
		fmt.Fprint(stdout, "\033[2J\033[H")
		printMarkdown(indicesMarkdown(&market.Snapshot{
			UpdatedAt: time.UnixMilli(f.Timestamp),
			Indices:   f.Indices,
			Error:     f.Error,
			Loading:   f.Loading,
		}))
		return nil
	})
	if err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type cardCmd struct{}

func (*cardCmd) Name() string     { return "card" }
func (*cardCmd) Synopsis() string { return "show a stock card" }
func (*cardCmd) Usage() string {
	return `compass card <symbol>

  Shows the quote and technical indicators for a symbol.
`
}
func (*cardCmd) SetFlags(_ *flag.FlagSet) {}

func (*cardCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected exactly one symbol")
		return subcommands.ExitUsageError
	}
	card, err := newClient().StockCard(ctx, strings.ToUpper(f.Arg(0)))
	if err != nil {
		return fail(err)
	}
	printMarkdown(cardMarkdown(card))
	return subcommands.ExitSuccess
}

type commentaryCmd struct{}

func (*commentaryCmd) Name() string     { return "commentary" }
func (*commentaryCmd) Synopsis() string { return "show AI commentary" }
func (*commentaryCmd) Usage() string {
	return `compass commentary market|coach
compass commentary stock <symbol>

  Shows commentary on the market, a stock, or your recent decisions.
`
}
func (*commentaryCmd) SetFlags(_ *flag.FlagSet) {}

func (*commentaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: expected market, stock <symbol> or coach")
		return subcommands.ExitUsageError
	}
	kind := strings.ToLower(f.Arg(0))
	symbol := ""
	if kind == commentary.KindStock {
		symbol = strings.ToUpper(f.Arg(1))
	}

	out, err := newClient().Commentary(ctx, kind, symbol)
	if err != nil {
		return fail(err)
	}
	printMarkdown(commentaryMarkdown(out))
	return subcommands.ExitSuccess
}

type newsCmd struct {
	category string
	symbol   string
	days     int
	limit    int
}

func (*newsCmd) Name() string     { return "news" }
func (*newsCmd) Synopsis() string { return "show market or company news" }
func (*newsCmd) Usage() string {
	return `compass news [-category <general|forex|crypto|merger>] [-symbol <ticker> [-days n]] [-n count]

  Shows general market news, or company news when -symbol is set.
`
}

func (c *newsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.category, "category", "general", "Market news category")
	f.StringVar(&c.symbol, "symbol", "", "Company ticker for company news")
	f.IntVar(&c.days, "days", 7, "Days of company news to show")
	f.IntVar(&c.limit, "n", 10, "Maximum headlines")
}

func (c *newsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cl := newClient()

	var (
		raw json.RawMessage
		err error
	)
	if c.symbol != "" {
		to := time.Now()
		from := to.AddDate(0, 0, -c.days)
		raw, err = cl.CompanyNews(ctx, strings.ToUpper(c.symbol), from.Format(time.DateOnly), to.Format(time.DateOnly))
	} else {
		raw, err = cl.MarketNews(ctx, c.category)
	}
	if err != nil {
		return fail(err)
	}

	out, err := newsMarkdown(raw, c.limit)
	if err != nil {
		return fail(err)
	}
	printMarkdown(out)
	return subcommands.ExitSuccess
}

type logoCmd struct{}

func (*logoCmd) Name() string             { return "logo" }
func (*logoCmd) Synopsis() string         { return "print a company logo URL" }
func (*logoCmd) Usage() string            { return "compass logo <symbol>\n" }
func (*logoCmd) SetFlags(_ *flag.FlagSet) {}

func (*logoCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected exactly one symbol")
		return subcommands.ExitUsageError
	}
	logo, err := newClient().LogoURL(ctx, strings.ToUpper(f.Arg(0)))
	if err != nil {
		return fail(err)
	}
	if logo == nil {
		fmt.Fprintln(stdout, "No logo found")
		return subcommands.ExitSuccess
	}
	fmt.Fprintln(stdout, *logo)
	return subcommands.ExitSuccess
}
