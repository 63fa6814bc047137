// Package config loads CLI configuration from flags, GIZMO_* environment
// variables and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

const (
	envPrefix = "GIZMO"

	defaultLogLevel           = 4
	defaultPreloadConcurrency = 4
	maxLogLevel               = 6
)

type Config struct {
	CacheDir           string
	SearchDirs         []string
	LogLevel           int
	PreloadConcurrency int
}

var (
	ConfigFile = &cli.StringFlag{
		Usage: "Path to a YAML, TOML or JSON config file",
		Name:  "config", EnvVars: env("CONFIG"),
	}
	CacheDir = &cli.StringFlag{
		Usage: "Directory holding cached assets and the cache index",
		Name:  "cache-dir", EnvVars: env("CACHE_DIR"),
	}
	SearchDirs = &cli.StringSliceFlag{
		Usage: "Directories searched for containers and archives",
		Name:  "search-dirs", EnvVars: env("SEARCH_DIRS"),
	}
	LogLevel = &cli.IntFlag{
		Usage: "Logging level (0-6, where 6 is trace)",
		Name:  "log-level", EnvVars: env("LOG_LEVEL"),
		Value: defaultLogLevel,
	}
	PreloadConcurrency = &cli.IntFlag{
		Usage: "Number of assets loaded in parallel by preload",
		Name:  "preload-concurrency", EnvVars: env("PRELOAD_CONCURRENCY"),
		Value: defaultPreloadConcurrency,
	}
)

// Flags are the global flags understood by LoadConfig.
var Flags = []cli.Flag{
	ConfigFile,
	CacheDir,
	SearchDirs,
	LogLevel,
	PreloadConcurrency,
}

func env(values ...string) []string {
	envs := make([]string, len(values))
	for i, value := range values {
		envs[i] = fmt.Sprintf("%s_%s", envPrefix, value)
	}
	return envs
}

// DefaultCacheDir returns the per-user cache directory for gizmo.
func DefaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ".gizmo-cache"
	}
	return filepath.Join(base, "gizmo")
}

// LoadConfig resolves the configuration for c. Flags and environment
// variables win over the config file, which wins over defaults.
func LoadConfig(c *cli.Context) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault(CacheDir.Name, DefaultCacheDir())
	v.SetDefault(SearchDirs.Name, []string{"."})
	v.SetDefault(LogLevel.Name, defaultLogLevel)
	v.SetDefault(PreloadConcurrency.Name, defaultPreloadConcurrency)

	if path := c.String(ConfigFile.Name); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Explicit flags (including their env vars) override the file.
	if c.IsSet(CacheDir.Name) {
		v.Set(CacheDir.Name, c.String(CacheDir.Name))
	}
	if c.IsSet(SearchDirs.Name) {
		v.Set(SearchDirs.Name, c.StringSlice(SearchDirs.Name))
	}
	if c.IsSet(LogLevel.Name) {
		v.Set(LogLevel.Name, c.Int(LogLevel.Name))
	}
	if c.IsSet(PreloadConcurrency.Name) {
		v.Set(PreloadConcurrency.Name, c.Int(PreloadConcurrency.Name))
	}

	cfg := &Config{
		CacheDir:           v.GetString(CacheDir.Name),
		SearchDirs:         v.GetStringSlice(SearchDirs.Name),
		LogLevel:           v.GetInt(LogLevel.Name),
		PreloadConcurrency: v.GetInt(PreloadConcurrency.Name),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CacheDir == "" {
		return errors.New("cache dir must not be empty")
	}
	if len(c.SearchDirs) == 0 {
		return errors.New("at least one search dir is required")
	}
	if c.LogLevel < 0 || c.LogLevel > maxLogLevel {
		return fmt.Errorf("log level must be between 0 and %d, got %d", maxLogLevel, c.LogLevel)
	}
	if c.PreloadConcurrency < 1 {
		return fmt.Errorf("preload concurrency must be positive, got %d", c.PreloadConcurrency)
	}
	return nil
}
