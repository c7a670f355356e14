package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stocksync/internal/formatter"
	"github.com/desertthunder/stocksync/internal/ingest"
	"github.com/desertthunder/stocksync/internal/matching"
	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/repositories"
	"github.com/desertthunder/stocksync/internal/services"
	"github.com/desertthunder/stocksync/internal/shared"
	"github.com/desertthunder/stocksync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ShopBackend is the shop a command talks to: catalog, writes and setup queries.
//
// *services.ShopifyService implements it.
type ShopBackend interface {
	services.Service
	services.ShopAdmin
	Shop() string
	LocationID() string
	SetLocation(id string)
	ResolveLocation(ctx context.Context, nameOrID string) (services.Location, error)
}

// ShopFactory builds a [ShopBackend] from the [shop] config section.
type ShopFactory func(cfg shared.ShopConfig, logger *log.Logger) (ShopBackend, error)

func newShopifyBackend(cfg shared.ShopConfig, logger *log.Logger) (ShopBackend, error) {
	svc, err := services.NewShopifyService(cfg, services.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	newShop    ShopFactory
	closers    []io.Closer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Shop       ShopFactory
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Shop == nil {
		opts.Shop = newShopifyBackend
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		newShop:    opts.Shop,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, syncCommand, shopCommand, historyCommand, autoCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the runner logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// useFileLogger sends logs to the configured rotating file, or to fallback when none is configured.
func (r *Runner) useFileLogger(fallback string) error {
	path := r.config.Log.File
	if path == "" {
		path = fallback
	}
	if path == "" {
		return nil
	}

	logger, closer, err := shared.NewFileLogger(path, r.config.Log.MaxSizeMB, r.config.Log.MaxBackups)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(r.config.Log.Level))
	r.closers = append(r.closers, closer)
	r.SetLogger(logger)
	return nil
}

// Close releases log files opened by commands.
func (r *Runner) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}

// loadConfig reads the file named by --config, keeping the current config when the flag is unset
// and the default file does not exist.
func (r *Runner) loadConfig(cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		path = r.configPath
	}
	if path == "" {
		return nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		if errors.Is(err, shared.ErrMissingConfig) && !cmd.IsSet("config") {
			r.logger.Debug("no config file, using defaults", "path", path)
			return nil
		}
		return err
	}

	r.config = config
	r.configPath = path
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(config.Log.Level))
	return nil
}

// openHistory opens the configured database, running pending migrations.
func (r *Runner) openHistory() (*sql.DB, *repositories.SyncRunRepository, error) {
	db, err := shared.OpenConfiguredDatabase(r.config.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, repositories.NewSyncRunRepository(db), nil
}

// connectShop validates the [shop] section, creates the backend and resolves location_name
// when no location id is configured.
func (r *Runner) connectShop(ctx context.Context) (ShopBackend, error) {
	if err := r.config.ValidateShop(false); err != nil {
		return nil, err
	}
	shop, err := r.newShop(r.config.Shop, r.logger)
	if err != nil {
		return nil, err
	}

	if shop.LocationID() == "" && r.config.Shop.LocationName != "" {
		loc, err := shop.ResolveLocation(ctx, r.config.Shop.LocationName)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("resolved location", "name", loc.Name, "id", loc.ID)
		shop.SetLocation(loc.ID)
	}

	if r.config.Sync.UpdateInventory && shop.LocationID() == "" {
		r.logger.Warn("no location configured, inventory updates will fail")
	}
	return shop, nil
}

// newEngine wires shop and the history store into a sync engine. repo may be nil.
func (r *Runner) newEngine(shop ShopBackend, repo *repositories.SyncRunRepository) *tasks.Engine {
	opts := []tasks.EngineOption{
		tasks.WithLogger(r.logger),
		tasks.WithDuplicatePolicy(matching.ParseDuplicatePolicy(r.config.Sync.DuplicateSKUPolicy)),
	}
	if repo != nil {
		history := repositories.NewHistory(repo, shop.Shop(), shop.LocationID(), r.config.Database.HistoryLimit, r.logger)
		opts = append(opts, tasks.WithHistory(history))
	}
	return tasks.NewEngine(shop, shop, opts...)
}

// syncRequest builds a request for the file at path from the [mapping] and [sync] sections.
func (r *Runner) syncRequest(path, sheet, trigger string) tasks.Request {
	opts := []ingest.SourceOption{ingest.WithLogger(r.logger)}
	if sheet != "" {
		opts = append(opts, ingest.WithSheet(sheet))
	}

	return tasks.Request{
		Source:     ingest.NewFileSourceFromConfig(path, r.config.Mapping, opts...),
		SourceName: filepath.Base(path),
		Trigger:    trigger,
		Options: tasks.PlanOptions{
			UpdatePrices:      r.config.Sync.UpdatePrices,
			UpdateInventory:   r.config.Sync.UpdateInventory,
			CoalesceInventory: r.config.Sync.CoalesceInventory,
		},
		DryRun:           r.config.Sync.DryRun,
		SkipAfterFailure: r.config.Sync.SkipAfterFailure,
	}
}

// applySyncFlags lets command flags override the [sync] section.
func (r *Runner) applySyncFlags(cmd *cli.Command) error {
	if cmd.IsSet("dry-run") {
		r.config.Sync.DryRun = cmd.Bool("dry-run")
	}
	if cmd.Bool("prices-only") && cmd.Bool("inventory-only") {
		return fmt.Errorf("%w: --prices-only and --inventory-only are exclusive", shared.ErrInvalidFlag)
	}
	if cmd.Bool("prices-only") {
		r.config.Sync.UpdateInventory = false
		r.config.Sync.UpdatePrices = true
	}
	if cmd.Bool("inventory-only") {
		r.config.Sync.UpdatePrices = false
		r.config.Sync.UpdateInventory = true
	}
	return r.config.ValidateMapping()
}

// writeReports writes the latest recorded run to dir in the requested formats.
func (r *Runner) writeReports(ctx context.Context, repo *repositories.SyncRunRepository, dir string, names []string) error {
	formats, err := parseFormats(names)
	if err != nil {
		return err
	}
	run, err := repo.Latest(ctx)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: no recorded run to report", shared.ErrInvalidArgument)
	}
	return r.writeRunReport(run, dir, formats)
}

func (r *Runner) writeRunReport(run *models.SyncRun, dir string, formats []formatter.Format) error {
	files, err := formatter.WriteReport(run, dir, formats...)
	if err != nil {
		return err
	}
	r.writePlain("Reports written to %s:\n", files.Directory)
	for _, f := range files.Files {
		r.writePlain("  %s\n", f)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
