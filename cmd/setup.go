package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/stocksync/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
//
// A missing config file is created from the template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}
	if err := r.loadConfig(cmd); err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		r.config = shared.DefaultConfig()
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	applied, err := shared.AppliedVersions(db)
	if err != nil {
		return err
	}
	version := 0
	for v := range applied {
		version = max(version, v)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s (schema version %d)\n", r.config.Database.Path, version)
	return nil
}

// SetupConfig writes the config template when missing and validates the file.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if !cmd.Bool("check") {
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("config file not written", "error", err)
		} else {
			r.writePlain("✓ Config template written to %s\n", configPath)
			r.writePlainln("Next steps:")
			r.writePlain("1. Set shop.url and shop.access_token\n")
			r.writePlain("2. Run 'stocksync shop locations' and set shop.location_id or shop.location_name\n")
			r.writePlain("3. Map your file columns in the [mapping] section\n")
			r.writePlain("4. Run 'stocksync sync preview <file>'\n")
			return nil
		}
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return err
	}
	r.config = config

	var problems []error
	if err := config.ValidateShop(config.Sync.UpdateInventory && config.Shop.LocationName == ""); err != nil {
		problems = append(problems, err)
	}
	if err := config.ValidateMapping(); err != nil {
		problems = append(problems, err)
	}
	if len(problems) > 0 {
		for _, p := range problems {
			r.writePlain("✗ %v\n", p)
		}
		return errors.Join(problems...)
	}

	r.writePlain("✓ %s is valid\n", configPath)
	r.writePlain("  Shop: %s (API %s)\n", shared.NormalizeShopURL(config.Shop.URL), config.Shop.APIVersion)
	r.writePlain("  Updates: prices=%t inventory=%t\n", config.Sync.UpdatePrices, config.Sync.UpdateInventory)
	return nil
}
