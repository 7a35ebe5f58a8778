// Package config loads service settings from a YAML file and the environment.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"eticket_parser/internal/feed"
	"eticket_parser/internal/storage"
)

type Config struct {
	HTTP    HTTP           `yaml:"http"`
	Log     Log            `yaml:"log"`
	Storage storage.Config `yaml:"storage"`
	NATS    feed.Config    `yaml:"nats"`
}

type HTTP struct {
	Addr    string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	Timeout time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"60s"`
	// MaxUploadMB caps PDF upload size.
	MaxUploadMB int64 `yaml:"max_upload_mb" env:"MAX_UPLOAD_MB" env-default:"10"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// Load reads path when it is non-empty, then lets environment variables
// override it. Without a file, settings come from the environment and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}
