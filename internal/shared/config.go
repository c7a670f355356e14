package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	DuplicatePolicyLastWriteWins  = "last_write_wins"
	DuplicatePolicyFirstWriteWins = "first_write_wins"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Shop     ShopConfig     `toml:"shop"`
	Mapping  MappingConfig  `toml:"mapping"`
	Sync     SyncConfig     `toml:"sync"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
	AutoSync AutoSyncConfig `toml:"autosync"`
}

// ShopConfig contains the Shopify Admin API connection settings.
type ShopConfig struct {
	URL            string  `toml:"url"`
	AccessToken    string  `toml:"access_token"`
	APIVersion     string  `toml:"api_version"`
	LocationID     string  `toml:"location_id"`
	LocationName   string  `toml:"location_name"`
	RateLimit      float64 `toml:"rate_limit"`
	MaxRetries     int     `toml:"max_retries"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// MappingConfig maps row fields onto source columns, by header name or column letter.
type MappingConfig struct {
	SKU       string `toml:"sku"`
	Name      string `toml:"name"`
	Price     string `toml:"price"`
	Stock     string `toml:"stock"`
	Delimiter string `toml:"delimiter"`
	Encoding  string `toml:"encoding"`
}

// SyncConfig holds planning and execution defaults.
type SyncConfig struct {
	UpdatePrices       bool   `toml:"update_prices"`
	UpdateInventory    bool   `toml:"update_inventory"`
	DuplicateSKUPolicy string `toml:"duplicate_sku_policy"`
	SkipAfterFailure   bool   `toml:"skip_after_failure"`
	CoalesceInventory  bool   `toml:"coalesce_inventory"`
	DryRun             bool   `toml:"dry_run"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	HistoryLimit int    `toml:"history_limit"`
}

// LogConfig controls log level and the optional rotating log file.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// AutoSyncConfig configures unattended runs.
type AutoSyncConfig struct {
	Enabled         bool   `toml:"enabled"`
	Source          string `toml:"source"`
	IntervalMinutes int    `toml:"interval_minutes"`
	Watch           bool   `toml:"watch"`
	DebounceSeconds int    `toml:"debounce_seconds"`
}

// Interval returns the scheduler interval, zero when interval runs are disabled.
func (c AutoSyncConfig) Interval() time.Duration {
	if c.IntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// Debounce returns how long file events are coalesced before a run starts.
func (c AutoSyncConfig) Debounce() time.Duration {
	if c.DebounceSeconds <= 0 {
		return time.Second
	}
	return time.Duration(c.DebounceSeconds) * time.Second
}

// Timeout returns the per-request HTTP timeout.
func (c ShopConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Endpoint returns the Admin GraphQL endpoint for the configured shop and API version.
func (c ShopConfig) Endpoint() string {
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", NormalizeShopURL(c.URL), c.APIVersion)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ValidateShop checks the settings needed to reach the shop.
//
// Inventory updates additionally require a location.
func (c *Config) ValidateShop(needLocation bool) error {
	var problems []string
	if !ValidShopURL(c.Shop.URL) {
		problems = append(problems, "shop url must end with .myshopify.com")
	}
	if !ValidAccessToken(c.Shop.AccessToken) {
		problems = append(problems, "access token must start with shpat_ or shpca_")
	}
	if c.Shop.APIVersion == "" {
		problems = append(problems, "api version is required")
	}
	if needLocation && c.Shop.LocationID == "" {
		problems = append(problems, "location_id is required for inventory updates")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// ValidateMapping checks the column mapping and sync settings.
func (c *Config) ValidateMapping() error {
	var problems []string
	if strings.TrimSpace(c.Mapping.SKU) == "" && strings.TrimSpace(c.Mapping.Name) == "" {
		problems = append(problems, "mapping needs at least one of sku or name")
	}
	if c.Sync.UpdatePrices && strings.TrimSpace(c.Mapping.Price) == "" {
		problems = append(problems, "mapping.price is required when update_prices is set")
	}
	if c.Sync.UpdateInventory && strings.TrimSpace(c.Mapping.Stock) == "" {
		problems = append(problems, "mapping.stock is required when update_inventory is set")
	}
	if len([]rune(c.Mapping.Delimiter)) > 1 {
		problems = append(problems, "mapping.delimiter must be a single character")
	}
	switch c.Sync.DuplicateSKUPolicy {
	case "", DuplicatePolicyLastWriteWins, DuplicatePolicyFirstWriteWins:
	default:
		problems = append(problems, fmt.Sprintf("unknown duplicate_sku_policy %q", c.Sync.DuplicateSKUPolicy))
	}
	if !c.Sync.UpdatePrices && !c.Sync.UpdateInventory {
		problems = append(problems, "at least one of update_prices or update_inventory must be set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// NormalizeShopURL prefixes https:// when the scheme is missing and drops trailing slashes.
func NormalizeShopURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	return strings.TrimRight(s, "/")
}

// ValidShopURL reports whether raw points at a *.myshopify.com host.
func ValidShopURL(raw string) bool {
	u, err := url.Parse(NormalizeShopURL(raw))
	if err != nil || u.Hostname() == "" {
		return false
	}
	return strings.HasSuffix(u.Hostname(), ".myshopify.com")
}

// ValidAccessToken reports whether token has an Admin API token prefix.
func ValidAccessToken(token string) bool {
	return strings.HasPrefix(token, "shpat_") || strings.HasPrefix(token, "shpca_")
}
