package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Map      MapConfig      `yaml:"map" mapstructure:"map"`
	Picker   PickerConfig   `yaml:"picker" mapstructure:"picker"`
	Scrape   ScrapeConfig   `yaml:"scrape" mapstructure:"scrape"`
	Estimate EstimateConfig `yaml:"estimate" mapstructure:"estimate"`
	Boundary BoundaryConfig `yaml:"boundary" mapstructure:"boundary"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MapConfig holds the picker map defaults and the basemap tile proxy.
type MapConfig struct {
	CenterLat     float64 `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLon     float64 `yaml:"center_lon" mapstructure:"center_lon"`
	Zoom          int     `yaml:"zoom" mapstructure:"zoom"`
	TileURL       string  `yaml:"tile_url" mapstructure:"tile_url"`
	Attribution   string  `yaml:"attribution" mapstructure:"attribution"`
	TileUpstream  string  `yaml:"tile_upstream" mapstructure:"tile_upstream"` // empty disables the proxy
	TileCacheSize int     `yaml:"tile_cache_size" mapstructure:"tile_cache_size"`
	TileCacheTTL  int     `yaml:"tile_cache_ttl_mins" mapstructure:"tile_cache_ttl_mins"`
}

// PickerConfig configures picker sessions.
type PickerConfig struct {
	SessionTTLMins int `yaml:"session_ttl_mins" mapstructure:"session_ttl_mins"`
}

// ScrapeSource binds one district to its listing-site search URL.
type ScrapeSource struct {
	District  string `yaml:"district" mapstructure:"district"`
	SearchURL string `yaml:"search_url" mapstructure:"search_url"`
}

// ScrapeConfig configures listing-site scrape runs.
type ScrapeConfig struct {
	CitySlug       string         `yaml:"city_slug" mapstructure:"city_slug"`
	MaxPages       int            `yaml:"max_pages" mapstructure:"max_pages"`
	Concurrency    int            `yaml:"concurrency" mapstructure:"concurrency"`
	RequestsPerSec float64        `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Sources        []ScrapeSource `yaml:"sources" mapstructure:"sources"`
}

// EstimateConfig configures price model training.
type EstimateConfig struct {
	EvalSplits int `yaml:"eval_splits" mapstructure:"eval_splits"`
}

// BoundaryConfig points at an optional district boundary shapefile.
type BoundaryConfig struct {
	ShapefilePath string `yaml:"shapefile_path" mapstructure:"shapefile_path"`
	CodeField     string `yaml:"code_field" mapstructure:"code_field"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "bure.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("map.center_lat", 42.3601)
	v.SetDefault("map.center_lon", -71.0589)
	v.SetDefault("map.zoom", 12)
	v.SetDefault("map.tile_url", "https://tile.openstreetmap.org/{z}/{x}/{y}.png")
	v.SetDefault("map.attribution", "© OpenStreetMap contributors")
	v.SetDefault("map.tile_cache_size", 2048)
	v.SetDefault("map.tile_cache_ttl_mins", 60)
	v.SetDefault("picker.session_ttl_mins", 30)
	v.SetDefault("scrape.city_slug", "boston-ma")
	v.SetDefault("scrape.max_pages", 2)
	v.SetDefault("scrape.concurrency", 3)
	v.SetDefault("scrape.requests_per_sec", 2)
	v.SetDefault("estimate.eval_splits", 100)
	v.SetDefault("boundary.code_field", "NAME")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
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

// Validate checks the fields the given command mode depends on.
func (c *Config) Validate(mode string) error {
	var problems []string
	check := func(cond bool, msg string) {
		if cond {
			problems = append(problems, msg)
		}
	}

	switch c.Store.Driver {
	case "sqlite":
		check(c.Store.SQLitePath == "", "store.sqlite_path is required")
	case "postgres":
		check(c.Store.DatabaseURL == "", "store.database_url is required")
	default:
		check(true, "store.driver must be sqlite or postgres")
	}

	switch mode {
	case "serve":
		check(c.Server.Port <= 0, "server.port must be > 0")
		check(c.Picker.SessionTTLMins <= 0, "picker.session_ttl_mins must be > 0")
		check(c.Map.Zoom <= 0, "map.zoom must be > 0")
	case "scrape":
		check(len(c.Scrape.Sources) == 0, "scrape.sources must not be empty")
		check(c.Scrape.Concurrency < 1 || c.Scrape.Concurrency > 16,
			"scrape.concurrency must be between 1 and 16")
		check(c.Scrape.MaxPages < 1, "scrape.max_pages must be >= 1")
	case "train":
		check(c.Estimate.EvalSplits <= 0, "estimate.eval_splits must be > 0")
	case "import":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}
