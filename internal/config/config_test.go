package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// inTempDir runs the test from an empty directory so no stray config.yaml or
// .env is picked up.
func inTempDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t, nil)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, StoreConfig{Driver: "sqlite", DatabaseURL: "education_demographics.db"}, cfg.Store)
	assert.Equal(t, LogConfig{Level: "info", Format: "json"}, cfg.Log)
	assert.Equal(t, ServerConfig{Port: 8080, CORSOrigins: []string{"*"}, RequestTimeout: 60}, cfg.Server)
	assert.Equal(t, CacheConfig{Driver: "memory", TTLSecs: 600, MaxEntries: 16, RedisAddr: "127.0.0.1:6379"}, cfg.Cache)
	assert.Equal(t, CensusConfig{BaseURL: "https://api.census.gov/data", Year: 2021}, cfg.Census)
	assert.Contains(t, cfg.Tiger.ZCTAURL, "ZCTA520/tl_2023_us_zcta520.zip")
	assert.Equal(t, "all-college-data.csv", cfg.Ingest.CollegesPath)
	assert.Equal(t, "ZIP-lat-long.csv", cfg.Ingest.ZIPCoordinatesPath)
	assert.Equal(t, "http://localhost:8080", cfg.View.BaseURL)
}

func TestLoad_Layering(t *testing.T) {
	inTempDir(t, map[string]string{
		"config.yaml": `
store:
  driver: postgres
  database_url: postgres://localhost/colleges
census:
  year: 2019
cache:
  driver: redis
  redis_db: 3
`,
		".env": "COLLEGEMAP_CENSUS_API_KEY=from-dotenv\n",
	})
	t.Setenv("COLLEGEMAP_CENSUS_API_KEY", "")
	require.NoError(t, os.Unsetenv("COLLEGEMAP_CENSUS_API_KEY"))
	t.Setenv("COLLEGEMAP_CENSUS_YEAR", "2022")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver, "file beats default")
	assert.Equal(t, 2022, cfg.Census.Year, "env beats file")
	assert.Equal(t, "from-dotenv", cfg.Census.APIKey, ".env feeds the environment")
	assert.Equal(t, 3, cfg.Cache.RedisDB)
	assert.Equal(t, 600, cfg.Cache.TTLSecs, "unset keys keep defaults")
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := inTempDir(t, map[string]string{
		"config.yaml":  "server:\n  port: 9090\n",
		"staging.yaml": "server:\n  port: 7070\n",
	})

	cfg, err := Load(filepath.Join(dir, "staging.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	inTempDir(t, map[string]string{"config.yaml": "store: [unclosed"})

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLogger(t *testing.T) {
	for _, format := range []string{"console", "json", ""} {
		require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: format}), format)
		assert.True(t, zap.L().Core().Enabled(zap.DebugLevel), format)
	}

	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: parse log level")
}

func baseConfig() Config {
	var cfg Config
	cfg.Store = StoreConfig{Driver: "sqlite", DatabaseURL: "colleges.db"}
	cfg.Server.Port = 8080
	cfg.Cache.Driver = "memory"
	cfg.Census.Year = 2021
	cfg.View.BaseURL = "http://localhost:8080"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		edit    func(*Config)
		wantErr []string
	}{
		{"serve ok", "serve", nil, nil},
		{"ingest ok", "ingest", nil, nil},
		{"render ok", "render", nil, nil},
		{"serve without cache", "serve", func(c *Config) { c.Cache.Driver = "none" }, nil},
		{"redis with addr", "serve", func(c *Config) { c.Cache = CacheConfig{Driver: "redis", RedisAddr: "cache:6379"} }, nil},
		{"zero port", "serve", func(c *Config) { c.Server.Port = 0 }, []string{"server.port must be > 0"}},
		{"redis without addr", "serve", func(c *Config) { c.Cache.Driver = "redis" }, []string{"cache.redis_addr"}},
		{"unknown cache", "serve", func(c *Config) { c.Cache.Driver = "memcached" }, []string{`cache.driver "memcached"`}},
		{"unknown store", "ingest", func(c *Config) { c.Store.Driver = "mysql" }, []string{`store.driver "mysql"`}},
		{"old census year", "ingest", func(c *Config) { c.Census.Year = 2009 }, []string{"census.year 2009 predates"}},
		{"render without base url", "render", func(c *Config) { c.View.BaseURL = "" }, []string{"view.base_url is required"}},
		{
			"every problem reported", "serve",
			func(c *Config) {
				c.Store = StoreConfig{Driver: "mysql"}
				c.Server.Port = -1
			},
			[]string{"store.driver", "server.port", "store.database_url"},
		},
		{"unknown mode", "export", nil, []string{`unknown mode "export"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			if tt.edit != nil {
				tt.edit(&cfg)
			}
			err := cfg.Validate(tt.mode)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}
