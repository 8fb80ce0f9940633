package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"coin-chat/internal/chatclient"
	"coin-chat/internal/conversation"
	"coin-chat/internal/integrations/coingecko"
)

const chatHelp = "Type a question, a suggestion number, /clear to reset the chat, or /quit."

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:      "chat",
		Usage:     "interactive question loop about one coin",
		ArgsUsage: "<coin-id>",
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" {
				return cli.Exit("chat needs a coin id", 2)
			}
			detail, err := marketClient(c).Coin(c.Context, id)
			if err != nil {
				return err
			}
			client, err := relayClient(c, chatclient.OnDelta(func(d string) {
				_, _ = io.WriteString(c.App.Writer, d)
			}))
			if err != nil {
				return err
			}
			return runChat(c, client, detail)
		},
	}
}

func runChat(c *cli.Context, client *chatclient.Client, detail coingecko.CoinDetail) error {
	out := c.App.Writer
	log := conversation.New()
	suggestions := suggestedQuestions(detail)

	fmt.Fprintf(out, "Ask about %s (%s). %s\n", detail.Name, strings.ToUpper(detail.Symbol), chatHelp)
	for i, q := range suggestions {
		fmt.Fprintf(out, "  %d. %s\n", i+1, q)
	}

	in := bufio.NewScanner(c.App.Reader)
	for {
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			fmt.Fprintln(out)
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := log.Clear(); err != nil {
				fmt.Fprintln(out, err)
			}
			fmt.Fprintln(out, "Chat cleared.")
			continue
		case "/help":
			fmt.Fprintln(out, chatHelp)
			continue
		}
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(suggestions) {
			line = suggestions[n-1]
			fmt.Fprintln(out, line)
		}

		_, err := client.Ask(c.Context, log, questionFor(detail, line))
		fmt.Fprintln(out)
		switch {
		case err == nil:
		case c.Context.Err() != nil:
			return nil
		case errors.Is(err, chatclient.ErrRateLimited):
			fmt.Fprintln(out, "Rate limited: too many requests. Please try again later.")
		case errors.Is(err, chatclient.ErrPaymentRequired):
			fmt.Fprintln(out, "Payment required: please add funds to continue using AI features.")
		default:
			fmt.Fprintln(out, "Failed to get an answer. Please try again.")
			fmt.Fprintln(c.App.ErrWriter, err)
		}
	}
}
