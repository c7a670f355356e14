package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/stocksync/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{
		ConfigPath: defaultConfigPath,
		Logger:     logger,
	})
	defer runner.Close()

	app := newApp(runner)
	if err := app.Run(context.Background(), os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn("not implemented")
			os.Exit(0)
		case errors.Is(err, shared.ErrRunAborted):
			logger.Error("sync stopped early", "error", err)
			os.Exit(2)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "stocksync",
		Usage:   "Sync prices and stock levels from supplier files into a Shopify store",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfigPath,
				Sources: cli.EnvVars("STOCKSYNC_CONFIG"),
			},
		},
		Commands: r.register(),
	}
}
