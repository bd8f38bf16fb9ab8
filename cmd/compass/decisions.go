package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/aristath/compass/internal/dashboard"
	"github.com/aristath/compass/internal/domain"
)

type decisionsCmd struct {
	limit int
}

func (*decisionsCmd) Name() string     { return "decisions" }
func (*decisionsCmd) Synopsis() string { return "list recorded trade decisions" }
func (*decisionsCmd) Usage() string {
	return `compass decisions [-n <count>]

  Lists your decisions, newest first.
`
}

func (c *decisionsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 0, "Show only the newest n decisions")
}

func (c *decisionsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	feed := dashboard.NewDecisionsFeed(newClient(), newLogger())
	state := feed.Load(ctx)
	if state.Err != nil {
		return fail(state.Err)
	}

	list := state.Decisions
	if c.limit > 0 && len(list) > c.limit {
		list = list[:c.limit]
	}
	printMarkdown(decisionsMarkdown(list))
	return subcommands.ExitSuccess
}

type decideCmd struct {
	in     domain.DecisionInput
	action string
}

func (*decideCmd) Name() string     { return "decide" }
func (*decideCmd) Synopsis() string { return "record a trade decision" }
func (*decideCmd) Usage() string {
	return `compass decide -ticker <symbol> -action buy|sell -shares <n> -price <p> -emotion <1-10> [-plan] [-research] [-checked] [-d <date>]

  Records a decision with your self-assessed discipline flags.
`
}

func (c *decideCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.in.TickerSymbol, "ticker", "", "Ticker symbol")
	f.StringVar(&c.action, "action", "buy", "buy or sell")
	f.Float64Var(&c.in.Shares, "shares", 0, "Number of shares")
	f.Float64Var(&c.in.PricePerShare, "price", 0, "Price per share")
	f.IntVar(&c.in.EmotionalState, "emotion", 5, "Emotional state from 1 (calm) to 10 (agitated)")
	f.BoolVar(&c.in.FollowedPlan, "plan", false, "The trade follows your plan")
	f.BoolVar(&c.in.DidResearch, "research", false, "You researched the trade")
	f.BoolVar(&c.in.CheckedEmotions, "checked", false, "You checked your emotions")
	f.StringVar(&c.in.DecisionDate, "d", "", "Decision date YYYY-MM-DD (defaults to today)")
}

func (c *decideCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	c.in.Action = domain.DecisionAction(strings.ToLower(c.action))
	in := c.in
	in.Normalize(time.Now())
	if err := in.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	feed := dashboard.NewDecisionsFeed(newClient(), newLogger())
	d, err := feed.Create(ctx, in)
	if err != nil {
		return fail(err)
	}

	verdict := "not rational"
	if d.IsRational() {
		verdict = "rational"
	}
	fmt.Fprintf(stdout, "Recorded %s %g %s at %.2f (%s)\n", d.Action, d.Shares, d.TickerSymbol, d.PricePerShare, verdict)
	return subcommands.ExitSuccess
}

type statsCmd struct {
	local bool
}

func (*statsCmd) Name() string     { return "stats" }
func (*statsCmd) Synopsis() string { return "show this week's decision stats" }
func (*statsCmd) Usage() string {
	return `compass stats [-local]

  Shows how many of the last seven days' decisions were rational.
`
}

func (c *statsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.local, "local", false, "Compute from the decision list instead of asking the server")
}

func (c *statsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cl := newClient()

	var stats domain.WeeklyStats
	if c.local {
		feed := dashboard.NewDecisionsFeed(cl, newLogger())
		if state := feed.Load(ctx); state.Err != nil {
			return fail(state.Err)
		}
		stats = feed.WeeklyStats(time.Now())
	} else {
		s, err := cl.WeeklyStats(ctx)
		if err != nil {
			return fail(err)
		}
		stats = s
	}

	printMarkdown(statsMarkdown(stats))
	return subcommands.ExitSuccess
}
