package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	md "github.com/nao1215/markdown"

	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/modules/commentary"
	"github.com/aristath/compass/internal/modules/market"
	"github.com/aristath/compass/internal/modules/portfolio"
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func signed(v float64) string {
	return fmt.Sprintf("%+.2f", v)
}

func optional(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}

func decisionsMarkdown(list []domain.Decision) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Decisions")
	if len(list) == 0 {
		doc.PlainText("No decisions recorded yet.")
		return doc.String()
	}

	rows := make([][]string, 0, len(list))
	for _, d := range list {
		rows = append(rows, []string{
			d.DecisionDate,
			d.TickerSymbol,
			string(d.Action),
			fmt.Sprintf("%g", d.Shares),
			fmt.Sprintf("%.2f", d.PricePerShare),
			fmt.Sprintf("%d/10", d.EmotionalState),
			yesNo(d.IsRational()),
		})
	}
	doc.Table(md.TableSet{
		Header: []string{"Date", "Ticker", "Action", "Shares", "Price", "Emotion", "Rational"},
		Rows:   rows,
	})
	return doc.String()
}

func statsMarkdown(s domain.WeeklyStats) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("This week")
	doc.Table(md.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Decisions", fmt.Sprintf("%d", s.TotalDecisions)},
			{"Rational", fmt.Sprintf("%d", s.RationalDecisions)},
			{"Rational share", md.Bold(fmt.Sprintf("%d%%", s.RationalPercentage))},
			{"Average emotion", fmt.Sprintf("%.1f/10", s.AverageEmotionalState)},
		},
	})
	return doc.String()
}

func indicesMarkdown(s *market.Snapshot) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Market indices")
	if s.Error != "" {
		doc.PlainText(md.Bold("Error: ") + s.Error)
	}
	if s.Loading && len(s.Indices) == 0 {
		doc.PlainText("Loading...")
		return doc.String()
	}

	rows := make([][]string, 0, len(s.Indices))
	for _, idx := range s.Indices {
		rows = append(rows, []string{
			idx.Name,
			idx.Symbol,
			fmt.Sprintf("%.2f", idx.Price),
			signed(idx.Change),
			fmt.Sprintf("%+.2f%%", idx.ChangePercent),
		})
	}
	doc.Table(md.TableSet{
		Header: []string{"Index", "Symbol", "Price", "Change", "Change %"},
		Rows:   rows,
	})
	if !s.UpdatedAt.IsZero() {
		doc.PlainText("Updated " + s.UpdatedAt.Local().Format(time.Kitchen))
	}
	return doc.String()
}

func cardMarkdown(c *domain.StockCard) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	title := c.Quote.Symbol
	if c.Quote.Name != "" {
		title = fmt.Sprintf("%s (%s)", c.Quote.Name, c.Quote.Symbol)
	}
	doc.H1(title)
	doc.PlainText(fmt.Sprintf("%s %.2f %s (%+.2f%%)", md.Bold("Price"), c.Quote.Price, c.Quote.Currency, c.Quote.ChangePercent))

	doc.H2("Indicators")
	doc.Table(md.TableSet{
		Header: []string{"Indicator", "Value"},
		Rows: [][]string{
			{"RSI 14", optional(c.RSI14, "%.1f")},
			{"SMA 20", optional(c.SMA20, "%.2f")},
			{"Volatility 30d", optional(c.Volatility30, "%.1f%%")},
		},
	})
	if c.LogoURL != nil {
		doc.PlainText("Logo: " + *c.LogoURL)
	}
	return doc.String()
}

func portfoliosMarkdown(list []domain.Portfolio) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Portfolios")
	if len(list) == 0 {
		doc.PlainText("No portfolios yet.")
		return doc.String()
	}
	rows := make([][]string, 0, len(list))
	for _, p := range list {
		desc := ""
		if p.Description != nil {
			desc = *p.Description
		}
		rows = append(rows, []string{p.ID, p.Name, desc})
	}
	doc.Table(md.TableSet{Header: []string{"ID", "Name", "Description"}, Rows: rows})
	return doc.String()
}

func holdingsMarkdown(v *portfolio.Valuation) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Holdings")
	rows := make([][]string, 0, len(v.Holdings))
	for _, h := range v.Holdings {
		price, value, ret := "n/a", "n/a", "n/a"
		if h.PriceAvailable {
			price = fmt.Sprintf("%.2f", h.CurrentPrice)
			value = fmt.Sprintf("%.2f", h.TotalValue)
			ret = fmt.Sprintf("%s (%+.2f%%)", signed(h.TotalReturn), h.ReturnPercent)
		}
		rows = append(rows, []string{h.TickerSymbol, fmt.Sprintf("%g", h.Shares), fmt.Sprintf("%.2f", h.AveragePrice), price, value, ret})
	}
	doc.Table(md.TableSet{
		Header: []string{"Ticker", "Shares", "Avg price", "Price", "Value", "Return"},
		Rows:   rows,
	})
	doc.PlainText(fmt.Sprintf("%s %.2f, cost %.2f, return %s (%+.2f%%); %d of %d priced",
		md.Bold("Total"), v.TotalValue, v.TotalCost, signed(v.TotalReturn), v.ReturnPercent, v.Priced, len(v.Holdings)))
	return doc.String()
}

func commentaryMarkdown(c *commentary.Commentary) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.PlainText(c.Text)
	note := "Generated " + c.GeneratedAt.Local().Format("2006-01-02 15:04")
	if c.Cached {
		note += " (cached)"
	}
	doc.PlainText(md.Italic(note))
	return doc.String()
}

type newsItem struct {
	Headline string `json:"headline"`
	Source   string `json:"source"`
	URL      string `json:"url"`
	Summary  string `json:"summary"`
	Datetime int64  `json:"datetime"`
}

// newsMarkdown lists headlines from a Finnhub news payload
func newsMarkdown(raw json.RawMessage, limit int) (string, error) {
	var items []newsItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return "", fmt.Errorf("unexpected news payload: %w", err)
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1("News")
	if len(items) == 0 {
		doc.PlainText("No news.")
		return doc.String(), nil
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		line := md.Link(it.Headline, it.URL)
		if it.Source != "" {
			line += " - " + it.Source
		}
		if it.Datetime > 0 {
			line += ", " + time.Unix(it.Datetime, 0).Format("Jan 2 15:04")
		}
		lines = append(lines, line)
	}
	doc.BulletList(lines...)
	return doc.String(), nil
}
