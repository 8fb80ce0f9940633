package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"coin-chat/internal/chatclient"
	"coin-chat/internal/conversation"
	"coin-chat/internal/format"
	"coin-chat/internal/integrations/coingecko"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "find coins by name or symbol",
		ArgsUsage: "<query>",
		Action: func(c *cli.Context) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return cli.Exit("search needs a query", 2)
			}
			results, err := marketClient(c).Search(c.Context, query)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(c.App.Writer, "No coins found.")
				return nil
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tSYMBOL\tNAME\tID")
			for _, r := range results {
				rank := "-"
				if r.MarketCapRank != nil {
					rank = fmt.Sprintf("#%d", *r.MarketCapRank)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rank, strings.ToUpper(r.Symbol), r.Name, r.ID)
			}
			return tw.Flush()
		},
	}
}

func trendingCommand() *cli.Command {
	return &cli.Command{
		Name:  "trending",
		Usage: "list trending coins",
		Action: func(c *cli.Context) error {
			coins, err := marketClient(c).Trending(c.Context)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SYMBOL\tNAME\tPRICE\t24H\tID")
			for _, coin := range coins {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					strings.ToUpper(coin.Symbol),
					coin.Name,
					format.Price(coin.Data.Price),
					format.Percent(coin.Data.PriceChangePercentage24h["usd"]),
					coin.ID,
				)
			}
			return tw.Flush()
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "show market data and a price summary for a coin",
		ArgsUsage: "<coin-id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Value: coingecko.DefaultChartDays, Usage: "chart range: 1, 7, 30, 90 or 365"},
		},
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" {
				return cli.Exit("show needs a coin id", 2)
			}
			days := c.Int("days")
			if !slices.Contains(coingecko.ChartDays, days) {
				return cli.Exit(fmt.Sprintf("unsupported --days %d", days), 2)
			}

			market := marketClient(c)
			var (
				detail coingecko.CoinDetail
				chart  coingecko.MarketChart
			)
			g, ctx := errgroup.WithContext(c.Context)
			g.Go(func() error {
				var err error
				detail, err = market.Coin(ctx, id)
				return err
			})
			g.Go(func() error {
				var err error
				chart, err = market.MarketChart(ctx, id, days)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			printDetail(c.App.Writer, detail)
			printChart(c.App.Writer, chart.Summary(), days)
			return nil
		},
	}
}

func askCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "ask one question about a coin; lists suggestions when none is given",
		ArgsUsage: "<coin-id> [question...]",
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" {
				return cli.Exit("ask needs a coin id", 2)
			}
			detail, err := marketClient(c).Coin(c.Context, id)
			if err != nil {
				return err
			}

			question := strings.Join(c.Args().Tail(), " ")
			if strings.TrimSpace(question) == "" {
				fmt.Fprintln(c.App.Writer, "Suggested questions:")
				for i, q := range suggestedQuestions(detail) {
					fmt.Fprintf(c.App.Writer, "  %d. %s\n", i+1, q)
				}
				return nil
			}

			client, err := relayClient(c, chatclient.OnDelta(func(d string) {
				_, _ = io.WriteString(c.App.Writer, d)
			}))
			if err != nil {
				return err
			}
			_, err = client.Ask(c.Context, conversation.New(), questionFor(detail, question))
			fmt.Fprintln(c.App.Writer)
			return friendly(err)
		},
	}
}

func questionFor(detail coingecko.CoinDetail, text string) chatclient.Question {
	return chatclient.Question{
		Text:       text,
		CoinName:   detail.Name,
		CoinSymbol: strings.ToUpper(detail.Symbol),
		CoinData:   coingecko.Snapshot(detail),
	}
}

func suggestedQuestions(detail coingecko.CoinDetail) []string {
	symbol := strings.ToUpper(detail.Symbol)
	return []string{
		fmt.Sprintf("What is %s?", symbol),
		fmt.Sprintf("Is %s a good investment?", detail.Name),
		fmt.Sprintf("What affects %s price?", symbol),
	}
}

// friendly turns relay rejections into messages fit for the terminal.
func friendly(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chatclient.ErrRateLimited):
		return cli.Exit("Rate limited: too many requests. Please try again later.", 1)
	case errors.Is(err, chatclient.ErrPaymentRequired):
		return cli.Exit("Payment required: please add funds to continue using AI features.", 1)
	default:
		return err
	}
}

func printDetail(w io.Writer, d coingecko.CoinDetail) {
	md := d.MarketData
	fmt.Fprintf(w, "%s (%s)  %s  %s 24h\n\n", d.Name, strings.ToUpper(d.Symbol), format.Price(md.CurrentPrice.USD), format.Percent(md.PriceChangePercentage24h))

	supply := "∞"
	if md.TotalSupply != nil {
		supply = format.Number(*md.TotalSupply)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Market Cap", format.MarketCap(md.MarketCap.USD)},
		{"24h Volume", format.MarketCap(md.TotalVolume.USD)},
		{"Circulating Supply", format.Number(md.CirculatingSupply)},
		{"Total Supply", supply},
		{"Rank", fmt.Sprintf("#%d", md.MarketCapRank)},
		{"24h High", format.Price(md.High24h.USD)},
		{"24h Low", format.Price(md.Low24h.USD)},
		{"All-Time High", format.Price(md.ATH.USD)},
		{"7d", format.Percent(md.PriceChangePercentage7d)},
		{"30d", format.Percent(md.PriceChangePercentage30d)},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1])
	}
	_ = tw.Flush()
}

func printChart(w io.Writer, s coingecko.ChartSummary, days int) {
	label := fmt.Sprintf("%dd", days)
	switch days {
	case 1:
		label = "24h"
	case 365:
		label = "1y"
	}
	if s.Points == 0 {
		fmt.Fprintf(w, "\nNo price history for %s.\n", label)
		return
	}
	fmt.Fprintf(w, "\nPrice over %s: low %s, high %s, %s\n",
		label, format.Price(s.Low), format.Price(s.High), format.Percent(s.Change))
}
