package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Census CensusConfig `yaml:"census" mapstructure:"census"`
	Tiger  TigerConfig  `yaml:"tiger" mapstructure:"tiger"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	View   ViewConfig   `yaml:"view" mapstructure:"view"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	CORSOrigins    []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeout int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// CacheConfig configures the payload cache in front of the dataset endpoints.
type CacheConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	TTLSecs       int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
	MaxEntries    int    `yaml:"max_entries" mapstructure:"max_entries"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
}

// CensusConfig configures the ACS demographics download.
type CensusConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Year    int    `yaml:"year" mapstructure:"year"`
}

// TigerConfig configures the ZCTA boundary download.
type TigerConfig struct {
	ZCTAURL string `yaml:"zcta_url" mapstructure:"zcta_url"`
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// IngestConfig holds local input file locations.
type IngestConfig struct {
	CollegesPath       string `yaml:"colleges_path" mapstructure:"colleges_path"`
	ZIPCoordinatesPath string `yaml:"zip_coordinates_path" mapstructure:"zip_coordinates_path"`
}

// ViewConfig configures the render client.
type ViewConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// EnvPrefix prefixes every environment override, e.g. COLLEGEMAP_STORE_DRIVER.
const EnvPrefix = "COLLEGEMAP"

// firstACSYear is the first ACS 5-year release published at ZCTA level.
const firstACSYear = 2011

var defaults = map[string]any{
	"store.driver":                "sqlite",
	"store.database_url":          "education_demographics.db",
	"log.level":                   "info",
	"log.format":                  "json",
	"server.port":                 8080,
	"server.cors_origins":         []string{"*"},
	"server.request_timeout_secs": 60,
	"cache.driver":                "memory",
	"cache.ttl_secs":              600,
	"cache.max_entries":           16,
	"cache.redis_addr":            "127.0.0.1:6379",
	"census.base_url":             "https://api.census.gov/data",
	"census.year":                 2021,
	"census.api_key":              "",
	"tiger.zcta_url":              "https://www2.census.gov/geo/tiger/TIGER2023/ZCTA520/tl_2023_us_zcta520.zip",
	"tiger.temp_dir":              "/tmp/college-map",
	"ingest.colleges_path":        "all-college-data.csv",
	"ingest.zip_coordinates_path": "ZIP-lat-long.csv",
	"view.base_url":               "http://localhost:8080",
}

// Load builds the configuration from defaults, an optional YAML file, a .env
// file and COLLEGEMAP_* environment variables, in increasing precedence.
// With file empty, ./config.yaml is used when present; a named file must exist.
func Load(file string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// Validate checks the fields a command mode depends on and reports every
// problem at once. Modes: "serve", "ingest", "render".
func (c *Config) Validate(mode string) error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	storeOK := c.Store.Driver == "sqlite" || c.Store.Driver == "postgres"
	check(storeOK, "store.driver %q is not supported", c.Store.Driver)

	switch mode {
	case "serve":
		check(c.Server.Port > 0, "server.port must be > 0")
		check(c.Store.DatabaseURL != "", "store.database_url is required")
		switch c.Cache.Driver {
		case "memory", "none":
		case "redis":
			check(c.Cache.RedisAddr != "", "cache.redis_addr is required for the redis cache")
		default:
			check(false, "cache.driver %q is not supported", c.Cache.Driver)
		}
	case "ingest":
		check(c.Store.DatabaseURL != "", "store.database_url is required")
		check(c.Census.Year == 0 || c.Census.Year >= firstACSYear,
			"census.year %d predates ZCTA-level ACS data (%d)", c.Census.Year, firstACSYear)
	case "render":
		check(c.View.BaseURL != "", "view.base_url is required")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger installs the global zap logger: console output for "console",
// JSON otherwise.
func InitLogger(cfg LogConfig) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
