package commentary

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/modules/decisions"
)

func marketPrompt(now time.Time, indices []domain.IndexData) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are a calm, plain-spoken market commentator. Today is %s.\n\n", now.Format("Monday, 2 January 2006")))
	sb.WriteString("Current index levels:\n")
	for _, idx := range indices {
		sb.WriteString(fmt.Sprintf("- %s (%s): %.2f, %+.2f (%+.2f%%)\n", idx.Name, idx.Symbol, idx.Price, idx.Change, idx.ChangePercent))
	}
	sb.WriteString(`
Write a short market overview (2 paragraphs, under 150 words) for a long-term individual investor.
Rules:
- Describe what moved and by how much; do not predict prices
- Remind the reader that daily moves rarely warrant action
- No investment advice, no ticker recommendations
- Plain text or light markdown only`)

	return sb.String()
}

func stockPrompt(symbol string, card *domain.StockCard) string {
	var sb strings.Builder

	q := card.Quote
	name := q.Name
	if name == "" {
		name = symbol
	}

	sb.WriteString(fmt.Sprintf("You are a balanced equity analyst. Comment on %s (%s).\n\n", name, symbol))
	sb.WriteString(fmt.Sprintf("Price: %.2f %s, change today %+.2f (%+.2f%%)\n", q.Price, q.Currency, q.Change, q.ChangePercent))
	if card.SMA20 != nil {
		sb.WriteString(fmt.Sprintf("20-day SMA: %.2f\n", *card.SMA20))
	}
	if card.RSI14 != nil {
		sb.WriteString(fmt.Sprintf("14-day RSI: %.1f\n", *card.RSI14))
	}
	if card.Volatility30 != nil {
		sb.WriteString(fmt.Sprintf("30-day annualized volatility: %.1f%%\n", *card.Volatility30))
	}
	if n := len(card.History); n > 1 {
		first, last := card.History[0], card.History[n-1]
		if first.Close > 0 {
			sb.WriteString(fmt.Sprintf("3-month change: %+.2f%% (%s to %s)\n", (last.Close/first.Close-1)*100, first.Date, last.Date))
		}
	}
	sb.WriteString(`
Write 1-2 short paragraphs explaining what these numbers say about recent price behaviour.
Mention both the bullish and the bearish reading. No buy or sell recommendation.`)

	return sb.String()
}

func coachPrompt(list []domain.Decision, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("You are a trading psychology coach reviewing a user's decisions from the past week.\n\n")
	if len(list) == 0 {
		sb.WriteString("The user recorded no decisions this week.\n")
	} else {
		stats := decisions.ComputeWeeklyStats(list, now)
		sb.WriteString(fmt.Sprintf("Decisions: %d, fully rational: %d (%d%%), average emotional state: %.1f of %d\n\n",
			stats.TotalDecisions, stats.RationalDecisions, stats.RationalPercentage, stats.AverageEmotionalState, domain.MaxEmotionalState))
		for _, d := range list {
			sb.WriteString(fmt.Sprintf("- %s %s %g @ %.2f on %s; followed plan: %t, did research: %t, checked emotions: %t, emotion %d\n",
				strings.ToUpper(string(d.Action)), d.TickerSymbol, d.Shares, d.PricePerShare, d.DecisionDate,
				d.FollowedPlan, d.DidResearch, d.CheckedEmotions, d.EmotionalState))
		}
	}
	sb.WriteString(`
Give brief, encouraging feedback (under 120 words): one pattern you notice and one concrete habit to try next week.
Do not comment on whether the trades will be profitable.`)

	return sb.String()
}
