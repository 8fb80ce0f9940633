// Command coinchat browses CoinGecko market data and asks the coin-chat relay
// questions about a coin from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"

	"coin-chat/internal/chatclient"
	"coin-chat/internal/integrations/coingecko"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp(os.Stdin, os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "coinchat:", err)
		code := 1
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		os.Exit(code)
	}
}

func newApp(in io.Reader, out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "coinchat",
		Usage:     "look up a cryptocurrency and ask questions about it",
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		// main maps ExitCoder errors to the process exit code.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "relay-url",
				Usage:   "coin-chat relay endpoint",
				Value:   "http://localhost:8080/coin-chat",
				EnvVars: []string{"COINCHAT_RELAY_URL"},
			},
			&cli.StringFlag{
				Name:    "relay-token",
				Usage:   "bearer token sent to the relay",
				EnvVars: []string{"COINCHAT_RELAY_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "coingecko-url",
				Usage:   "CoinGecko API base URL",
				Value:   "https://api.coingecko.com/api/v3",
				EnvVars: []string{"COINGECKO_BASE_URL"},
			},
			&cli.StringFlag{
				Name:    "coingecko-key",
				Usage:   "CoinGecko demo API key",
				EnvVars: []string{"COINGECKO_API_KEY"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "debug logging on stderr",
			},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelWarn
			if c.Bool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Commands: []*cli.Command{
			searchCommand(),
			trendingCommand(),
			showCommand(),
			askCommand(),
			chatCommand(),
		},
	}
}

func marketClient(c *cli.Context) *coingecko.Client {
	return coingecko.NewClient(
		coingecko.WithBaseURL(c.String("coingecko-url")),
		coingecko.WithAPIKey(c.String("coingecko-key")),
	)
}

func relayClient(c *cli.Context, opts ...chatclient.Option) (*chatclient.Client, error) {
	opts = append([]chatclient.Option{chatclient.WithToken(c.String("relay-token"))}, opts...)
	return chatclient.NewClient(c.String("relay-url"), opts...)
}
