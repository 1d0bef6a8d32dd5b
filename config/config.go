package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nits22/smart-grocery-cart/internal/domain"
	"github.com/nits22/smart-grocery-cart/internal/optimizer"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Stores    []StoreEntry    `mapstructure:"stores"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Summary   SummaryConfig   `mapstructure:"summary"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	DefaultCity    string   `mapstructure:"default_city"`
}

// StoreConfig configures the sqlite database used for the price cache and run history.
// Path "none" disables persistence.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type            string        `mapstructure:"type"` // "memory" or "none"
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// ScraperConfig configures live store search
type ScraperConfig struct {
	Endpoints    map[string]string `mapstructure:"endpoints"` // store name -> search API base URL
	Timeout      time.Duration     `mapstructure:"timeout"`
	RateLimit    float64           `mapstructure:"rate_limit"` // requests per second per store
	Burst        int               `mapstructure:"burst"`
	MaxRetries   int               `mapstructure:"max_retries"`
	Backoff      time.Duration     `mapstructure:"backoff"`
	Concurrency  int               `mapstructure:"concurrency"` // items fetched in parallel
	FetchTimeout time.Duration     `mapstructure:"fetch_timeout"`
}

// CatalogConfig points at an optional fallback price catalog file
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// StoreEntry is one delivery platform and its fee in rupees
type StoreEntry struct {
	Name        string  `mapstructure:"name"`
	DeliveryFee float64 `mapstructure:"delivery_fee"`
}

// OptimizerConfig holds optimizer configuration
type OptimizerConfig struct {
	DefaultStrategy string `mapstructure:"default_strategy"`
	MaxExactStores  int    `mapstructure:"max_exact_stores"`
	MaxItems        int    `mapstructure:"max_items"`
}

// MatchingConfig holds configuration for listing matching
type MatchingConfig struct {
	MinConfidenceThreshold float64 `mapstructure:"min_confidence_threshold"`
	ScoreTolerance         float64 `mapstructure:"score_tolerance"`
	EnableFuzzyMatching    bool    `mapstructure:"enable_fuzzy_matching"`
	EnableDebugLogging     bool    `mapstructure:"enable_debug_logging"`
}

// SummaryConfig selects the summary provider
type SummaryConfig struct {
	Provider  string        `mapstructure:"provider"` // "template" or "anthropic"
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int64         `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/grocerycart/")

	// Environment variable settings: GROCERY_SERVER_PORT -> server.port
	v.SetEnvPrefix("GROCERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	canonicalizeEndpoints(&config)

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// canonicalizeEndpoints restores store name casing on endpoint keys, which viper lowercases
func canonicalizeEndpoints(config *Config) {
	if len(config.Scraper.Endpoints) == 0 {
		return
	}
	endpoints := make(map[string]string, len(config.Scraper.Endpoints))
	for key, url := range config.Scraper.Endpoints {
		name := key
		for _, s := range config.Stores {
			if strings.EqualFold(s.Name, key) {
				name = s.Name
				break
			}
		}
		endpoints[name] = url
	}
	config.Scraper.Endpoints = endpoints
}

// loadEnvFile loads .env from the working directory into the process environment.
// Variables that are already set are not overridden.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return gotenv.Load(".env")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.default_city", "Bengaluru")

	// Store defaults
	v.SetDefault("store.path", "grocerycart.db")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "6h")
	v.SetDefault("cache.cleanup_interval", "10m")

	// Scraper defaults
	v.SetDefault("scraper.endpoints", map[string]string{})
	v.SetDefault("scraper.timeout", "10s")
	v.SetDefault("scraper.rate_limit", 2.0)
	v.SetDefault("scraper.burst", 5)
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.backoff", "500ms")
	v.SetDefault("scraper.concurrency", 4)
	v.SetDefault("scraper.fetch_timeout", "30s")

	// Catalog defaults
	v.SetDefault("catalog.path", "")

	// Delivery fees in rupees
	v.SetDefault("stores", []map[string]any{
		{"name": "BigBasket", "delivery_fee": 30},
		{"name": "Blinkit", "delivery_fee": 30},
		{"name": "Swiggy Instamart", "delivery_fee": 30},
		{"name": "Zepto", "delivery_fee": 30},
	})

	// Optimizer defaults
	v.SetDefault("optimizer.default_strategy", "greedy")
	v.SetDefault("optimizer.max_exact_stores", 20)
	v.SetDefault("optimizer.max_items", 50)

	// Matching defaults
	v.SetDefault("matching.min_confidence_threshold", 40.0)
	v.SetDefault("matching.score_tolerance", 5.0)
	v.SetDefault("matching.enable_fuzzy_matching", true)
	v.SetDefault("matching.enable_debug_logging", false)

	// Summary defaults
	v.SetDefault("summary.provider", "template")
	v.SetDefault("summary.api_key", "")
	v.SetDefault("summary.model", "claude-haiku-4-5")
	v.SetDefault("summary.max_tokens", 400)
	v.SetDefault("summary.timeout", "20s")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Cache.Type != "memory" && config.Cache.Type != "none" {
		return fmt.Errorf("cache type must be 'memory' or 'none', got: %s", config.Cache.Type)
	}

	if config.Store.Path == "" {
		return fmt.Errorf("store path is required (use 'none' to disable persistence)")
	}

	if len(config.Stores) == 0 {
		return fmt.Errorf("at least one store must be configured")
	}
	seen := make(map[string]bool, len(config.Stores))
	for _, s := range config.Stores {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("store name must not be empty")
		}
		if s.DeliveryFee < 0 {
			return fmt.Errorf("store %s has negative delivery fee", s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("store %s is configured twice", s.Name)
		}
		seen[s.Name] = true
	}

	for store := range config.Scraper.Endpoints {
		if !seen[store] {
			return fmt.Errorf("scraper endpoint configured for unknown store %s", store)
		}
	}
	if config.Scraper.Concurrency < 1 {
		return fmt.Errorf("scraper concurrency must be at least 1, got: %d", config.Scraper.Concurrency)
	}

	if _, err := domain.ParseStrategy(config.Optimizer.DefaultStrategy); err != nil {
		return fmt.Errorf("optimizer default strategy: %w", err)
	}
	if config.Optimizer.MaxExactStores < 1 || config.Optimizer.MaxExactStores > optimizer.DefaultMaxExactStores {
		return fmt.Errorf("optimizer max exact stores must be between 1 and %d, got: %d",
			optimizer.DefaultMaxExactStores, config.Optimizer.MaxExactStores)
	}

	switch config.Summary.Provider {
	case "template":
	case "anthropic":
		if config.Summary.APIKey == "" {
			return fmt.Errorf("summary API key is required when provider is 'anthropic' (set GROCERY_SUMMARY_API_KEY)")
		}
	default:
		return fmt.Errorf("summary provider must be 'template' or 'anthropic', got: %s", config.Summary.Provider)
	}

	return nil
}

// DomainStores converts the configured stores, fees in rupees, to domain stores
func (c *Config) DomainStores() ([]domain.Store, error) {
	stores := make([]domain.Store, 0, len(c.Stores))
	for _, s := range c.Stores {
		fee, err := domain.MoneyFromFloat(s.DeliveryFee)
		if err != nil {
			return nil, eris.Wrapf(err, "config: delivery fee for %s", s.Name)
		}
		stores = append(stores, domain.Store{Name: s.Name, DeliveryFee: fee})
	}
	return stores, nil
}

// InitLogger builds the global zap logger from cfg
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
