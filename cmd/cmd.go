// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func syncFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "sheet",
			Usage: "Workbook sheet to read from XLSX sources (default: first sheet)",
		},
		&cli.BoolFlag{
			Name:  "prices-only",
			Usage: "Plan price updates only",
		},
		&cli.BoolFlag{
			Name:  "inventory-only",
			Usage: "Plan inventory updates only",
		},
	}
}

func reportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "report-dir",
			Aliases: []string{"o"},
			Usage:   "Write run reports to this directory",
		},
		&cli.StringSliceFlag{
			Name:  "format",
			Usage: "Report formats: csv, unmatched, md, txt, json (default: all)",
		},
	}
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize the history database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config.toml template and validate it",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "check",
						Usage: "Only validate an existing config file",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// syncCommand handles preview and execution of a stock file against the shop.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync prices and stock from a CSV or XLSX file",
		Commands: []*cli.Command{
			{
				Name:      "preview",
				Usage:     "Match rows and show the planned updates without applying them",
				ArgsUsage: "<file>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "file"},
				},
				Flags: append(syncFlags(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of planned operations to print (0 for all)",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the preview as JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				),
				Action: r.SyncPreview,
			},
			{
				Name:      "run",
				Usage:     "Preview and apply updates to the shop",
				ArgsUsage: "<file>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "file"},
				},
				Flags: append(append(syncFlags(), reportFlags()...),
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Record every planned operation as skipped without calling the shop",
					},
				),
				Action: r.SyncRun,
			},
			{
				Name:      "ui",
				Aliases:   []string{"tui", "interactive"},
				Usage:     "Review and apply updates in the interactive TUI",
				ArgsUsage: "<file>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "file"},
				},
				Flags: append(append(syncFlags(), reportFlags()...),
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Record every planned operation as skipped without calling the shop",
					},
				),
				Action: r.SyncUI,
			},
		},
	}
}

// shopCommand handles setup queries against the shop.
func shopCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "shop",
		Usage: "Inspect the configured shop",
		Commands: []*cli.Command{
			{
				Name:  "locations",
				Usage: "List stock locations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ShopLocations,
			},
			{
				Name:   "scopes",
				Usage:  "Check the access token has the scopes a sync needs",
				Action: r.ShopScopes,
			},
		},
	}
}

// historyCommand handles the stored sync runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Browse and export past sync runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to list",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only runs with this status (success, partial, failed, cancelled, dry_run)",
					},
					&cli.StringFlag{
						Name:  "trigger",
						Usage: "Only runs started by this trigger (manual, schedule, watch)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show one run with its failed operations and unmatched rows",
				ArgsUsage: "<run>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "run"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format: txt, md, json, csv, unmatched",
						Value: "txt",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:   "stats",
				Usage:  "Summarize stored runs",
				Action: r.HistoryStats,
			},
			{
				Name:      "export",
				Usage:     "Write report files for a run, or for many runs with --all or --last",
				ArgsUsage: "[run]",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "run"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: . for one run, sync_reports_{timestamp} for many)",
					},
					&cli.StringSliceFlag{
						Name:  "format",
						Usage: "Report formats: csv, unmatched, md, txt, json (default: all)",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Export every stored run",
					},
					&cli.IntFlag{
						Name:  "last",
						Usage: "Export the N most recent runs",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent export workers (max 8)",
						Value: 4,
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Suppress per-run progress",
					},
				},
				Action: r.HistoryExport,
			},
			{
				Name:  "clear",
				Usage: "Delete every stored run",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm deletion",
					},
				},
				Action: r.HistoryClear,
			},
		},
	}
}

// autoCommand runs the scheduler in the foreground.
func autoCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auto",
		Usage: "Sync on an interval and/or when the source file changes",
		Flags: append(append(syncFlags(), reportFlags()...),
			&cli.StringFlag{
				Name:  "source",
				Usage: "Source file (overrides autosync.source)",
			},
			&cli.IntFlag{
				Name:  "interval",
				Usage: "Minutes between runs, 0 disables interval runs (overrides autosync.interval_minutes)",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Run when the source file changes (overrides autosync.watch)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Record every planned operation as skipped without calling the shop",
			},
		),
		Action: r.Auto,
	}
}
