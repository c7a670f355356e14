package main

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/desertthunder/stocksync/internal/services"
	"github.com/desertthunder/stocksync/internal/shared"
	"github.com/urfave/cli/v3"
)

// ShopLocations lists the stock locations of the shop and marks the configured one.
func (r *Runner) ShopLocations(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	if err := r.config.ValidateShop(false); err != nil {
		return err
	}
	shop, err := r.newShop(r.config.Shop, r.logger)
	if err != nil {
		return err
	}

	locations, err := shop.Locations(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(locations, true)
	}

	r.writePlain("Found %d locations:\n\n", len(locations))
	for i, l := range locations {
		marker := ""
		if l.ID == r.config.Shop.LocationID || (r.config.Shop.LocationID == "" && l.Name == r.config.Shop.LocationName) {
			marker = " (configured)"
		}
		r.writePlain("%d. %s%s\n", i+1, l.Name, marker)
		r.writePlain("   ID: %s\n", l.ID)
		if !l.IsActive {
			r.writePlain("   Inactive\n")
		}
	}
	return nil
}

// ShopScopes checks the access token against [services.RequiredScopes].
func (r *Runner) ShopScopes(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	if err := r.config.ValidateShop(false); err != nil {
		return err
	}
	shop, err := r.newShop(r.config.Shop, r.logger)
	if err != nil {
		return err
	}

	missing, err := services.CheckScopes(ctx, shop, services.RequiredScopes)
	if err != nil && !errors.Is(err, shared.ErrMissingAccessScopes) {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	r.writePlain("Required scopes for %s:\n", shop.Shop())
	for _, scope := range services.RequiredScopes {
		mark := "✓"
		if slices.Contains(missing, scope) {
			mark = "✗"
		}
		r.writePlain("  %s %s\n", mark, scope)
	}

	if len(missing) > 0 {
		r.writePlainln("Grant the missing scopes to the app and reinstall it.")
	}
	return err
}
