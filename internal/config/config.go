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
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Attom       AttomConfig       `yaml:"attom" mapstructure:"attom"`
	Redfin      RedfinConfig      `yaml:"redfin" mapstructure:"redfin"`
	Scrape      ScrapeConfig      `yaml:"scrape" mapstructure:"scrape"`
	Normalize   NormalizeConfig   `yaml:"normalize" mapstructure:"normalize"`
	Corrections CorrectionsConfig `yaml:"corrections" mapstructure:"corrections"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// AttomConfig holds the metered property-data API settings.
type AttomConfig struct {
	Key          string  `yaml:"key" mapstructure:"key"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	MonthlyQuota int     `yaml:"monthly_quota" mapstructure:"monthly_quota"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// RedfinConfig holds the bulk property-search API settings.
type RedfinConfig struct {
	Key        string   `yaml:"key" mapstructure:"key"`
	Host       string   `yaml:"host" mapstructure:"host"`
	BaseURL    string   `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Limit      int      `yaml:"limit" mapstructure:"limit"`
	Regions    []Region `yaml:"regions" mapstructure:"regions"`
}

// Region identifies one searchable region of the bulk API.
//
// RegionID must be quoted in config.yaml: a bare 6_12517 is a YAML
// integer with a digit separator and decodes as 612517.
type Region struct {
	Name     string `yaml:"name" mapstructure:"name"`
	RegionID string `yaml:"region_id" mapstructure:"region_id"`
}

// ScrapeConfig configures the rendering-proxy scrape path.
type ScrapeConfig struct {
	ProxyKey     string  `yaml:"proxy_key" mapstructure:"proxy_key"`
	ProxyBaseURL string  `yaml:"proxy_base_url" mapstructure:"proxy_base_url"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// NormalizeConfig holds defaulting rules applied by the normalizer.
type NormalizeConfig struct {
	DefaultAcres    float64 `yaml:"default_acres" mapstructure:"default_acres"`
	FallbackLabel   string  `yaml:"fallback_label" mapstructure:"fallback_label"`
	CentroidLat     float64 `yaml:"centroid_lat" mapstructure:"centroid_lat"`
	CentroidLng     float64 `yaml:"centroid_lng" mapstructure:"centroid_lng"`
	DefaultLocation string  `yaml:"default_location" mapstructure:"default_location"`
}

// CorrectionsConfig locates the manually curated price override file.
type CorrectionsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("PROPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "propsync.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("attom.base_url", "https://api.gateway.attomdata.com")
	v.SetDefault("attom.monthly_quota", 100)
	v.SetDefault("attom.rate_per_sec", 1)
	v.SetDefault("redfin.host", "redfin-com-data.p.rapidapi.com")
	v.SetDefault("redfin.base_url", "https://redfin-com-data.p.rapidapi.com")
	v.SetDefault("redfin.rate_per_sec", 1)
	v.SetDefault("redfin.limit", 15)
	v.SetDefault("scrape.proxy_base_url", "https://api.scraperapi.com")
	v.SetDefault("scrape.rate_per_sec", 0.5)
	v.SetDefault("scrape.timeout_secs", 60)
	v.SetDefault("normalize.default_acres", 0.5)
	v.SetDefault("normalize.fallback_label", "Westchester County")
	v.SetDefault("normalize.centroid_lat", 41.2048)
	v.SetDefault("normalize.centroid_lng", -73.7032)
	v.SetDefault("normalize.default_location", "Mount Kisco, NY")
	v.SetDefault("corrections.path", "listing-price-corrections.json")

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

// Validate checks that the named subsystem has the credentials it needs.
func (c *Config) Validate(subsystem string) error {
	switch subsystem {
	case "attom":
		if c.Attom.Key == "" {
			return eris.New("config: attom.key is required (PROPSYNC_ATTOM_KEY)")
		}
	case "redfin":
		if c.Redfin.Key == "" {
			return eris.New("config: redfin.key is required (PROPSYNC_REDFIN_KEY)")
		}
	case "scrape":
		if c.Scrape.ProxyKey == "" {
			return eris.New("config: scrape.proxy_key is required (PROPSYNC_SCRAPE_PROXY_KEY)")
		}
	case "store":
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required (PROPSYNC_STORE_DATABASE_URL)")
		}
	}
	return nil
}

// DefaultRegions returns the region list used when the config file
// supplies none.
func DefaultRegions() []Region {
	return []Region{
		{Name: "Mount Kisco", RegionID: "6_12517"},
		{Name: "Bedford", RegionID: "6_12518"},
		{Name: "Chappaqua", RegionID: "6_12519"},
		{Name: "Yorktown Heights", RegionID: "6_12520"},
	}
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
