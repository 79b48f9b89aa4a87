package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/Goodman667/NeuraSense/internal/features"
)

// Config is the full engine configuration, loaded from the environment.
// Variables are unprefixed (ADDR, DB_PATH, ...); cmd/engine loads a .env
// file first when one exists.
type Config struct {
	Addr        string `envconfig:"ADDR" default:":8080"`
	DBPath      string `envconfig:"DB_PATH" default:"data/neurasense.db"`
	RulesPath   string `envconfig:"RULES_PATH" default:"configs/rules.yaml"`
	CatalogPath string `envconfig:"CATALOG_PATH" default:"configs/tool_items.yaml"`

	MaxTools      int           `envconfig:"MAX_TOOLS" default:"2"`
	ShutdownGrace time.Duration `envconfig:"SHUTDOWN_GRACE" default:"10s"`
	CacheTTL      time.Duration `envconfig:"CHECKIN_CACHE_TTL" default:"10m"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`

	Redis features.RedisConfig
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return c, nil
}
