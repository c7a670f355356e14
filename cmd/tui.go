package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogFile = "./tmp/stocksync-tui.log"

// SyncUI launches the interactive review → confirm → apply flow for a file.
func (r *Runner) SyncUI(ctx context.Context, cmd *cli.Command) error {
	path, err := r.prepareSync(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	if err := r.useFileLogger(tuiLogFile); err != nil {
		return err
	}

	shop, err := r.connectShop(ctx)
	if err != nil {
		return err
	}

	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	engine := r.newEngine(shop, repo)
	req := r.syncRequest(path, cmd.String("sheet"), models.TriggerManual)

	model := ui.NewModel(ctx, engine, req)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if result := model.Result(); result != nil {
		r.printResult(result, model.Err())
		if dir := cmd.String("report-dir"); dir != "" {
			if err := r.writeReports(ctx, repo, dir, cmd.StringSlice("format")); err != nil {
				return err
			}
		}
	}
	return nil
}
