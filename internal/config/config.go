package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tcgmx/storefront-core/internal/domain"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	Shop        ShopConfig
	Filter      FilterConfig
	Inventory   InventoryConfig
	Sync        SyncConfig
	Notify      NotifyConfig
}

// ShopConfig points the client at the storefront whose AJAX cart API we drive
type ShopConfig struct {
	Domain         string
	RequestTimeout time.Duration
}

// FilterConfig selects which filter engine variant a deployment runs. One
// concrete engine is picked at startup; there is no runtime switching.
type FilterConfig struct {
	TagMode         domain.TagMatchMode
	PriceMode       domain.PriceFilterMode
	EmptyState      domain.EmptyStatePolicy
	CatalogMaxCents int64
	CatalogMinCents int64
}

type InventoryConfig struct {
	OversellMultiplier int
	OversellFloor      int
	ListingTTL         time.Duration
}

type SyncConfig struct {
	Sections    []string
	SectionsURL string
	GracePeriod time.Duration
	BusyTimeout time.Duration
}

type NotifyConfig struct {
	DismissAfter time.Duration
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		Shop: ShopConfig{
			Domain:         strings.TrimSpace(getEnvOrViper("SHOP_DOMAIN", "")),
			RequestTimeout: getDuration("SHOP_REQUEST_TIMEOUT", 30*time.Second),
		},
		Filter: FilterConfig{
			TagMode:         domain.TagMatchMode(getEnvOrViper("FILTER_TAG_MODE", "all")),
			PriceMode:       domain.PriceFilterMode(getEnvOrViper("FILTER_PRICE_MODE", "ceiling")),
			EmptyState:      domain.EmptyStatePolicy(getEnvOrViper("FILTER_EMPTY_STATE", "when_filtered")),
			CatalogMaxCents: getInt64("FILTER_CATALOG_MAX_CENTS", 0),
			CatalogMinCents: getInt64("FILTER_CATALOG_MIN_CENTS", 0),
		},
		Inventory: InventoryConfig{
			OversellMultiplier: int(getInt64("OVERSELL_MULTIPLIER", 2)),
			OversellFloor:      int(getInt64("OVERSELL_FLOOR", 3)),
			ListingTTL:         getDuration("INVENTORY_LISTING_TTL", 5*time.Minute),
		},
		Sync: SyncConfig{
			Sections:    splitList(getEnvOrViper("CART_SECTIONS", "cart-drawer,cart-icon-bubble")),
			SectionsURL: getEnvOrViper("CART_SECTIONS_URL", "/"),
			GracePeriod: getDuration("SYNC_GRACE_PERIOD", 500*time.Millisecond),
			BusyTimeout: getDuration("SYNC_BUSY_TIMEOUT", 10*time.Second),
		},
		Notify: NotifyConfig{
			DismissAfter: getDuration("NOTICE_DISMISS_AFTER", 4*time.Second),
		},
	}

	// Validate required fields
	if cfg.Shop.Domain == "" {
		return nil, fmt.Errorf("SHOP_DOMAIN is required")
	}
	if !cfg.Filter.TagMode.IsValid() {
		return nil, fmt.Errorf("FILTER_TAG_MODE must be \"all\" or \"any\"")
	}
	if !cfg.Filter.PriceMode.IsValid() {
		return nil, fmt.Errorf("FILTER_PRICE_MODE must be \"ceiling\" or \"buckets\"")
	}
	if !cfg.Filter.EmptyState.IsValid() {
		return nil, fmt.Errorf("FILTER_EMPTY_STATE must be \"when_zero\" or \"when_filtered\"")
	}
	if cfg.Filter.CatalogMaxCents <= 0 {
		return nil, fmt.Errorf("FILTER_CATALOG_MAX_CENTS must be a positive price in cents")
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}

func getInt64(key string, defaultValue int64) int64 {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	var parsed int64
	if _, err := fmt.Sscanf(raw, "%d", &parsed); err != nil {
		return defaultValue
	}
	return parsed
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
