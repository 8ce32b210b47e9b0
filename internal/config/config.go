package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// StorageBackend selects the persistence variant: memory, sqlite, badger.
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"sqlite"`
	DataDir        string `env:"DATA_DIR" envDefault:"data"`

	// TokensPath points at the token catalog JSON exported by the authoring
	// tool. Empty falls back to the catalog cached in storage.
	TokensPath string `env:"TOKENS_PATH" envDefault:"data/tokens.json"`

	BackupInterval time.Duration `env:"BACKUP_INTERVAL" envDefault:"5m"`
	BackupMaxAge   time.Duration `env:"BACKUP_MAX_AGE" envDefault:"24h"`

	// VideoControlURL is the external AV controller's HTTP control interface.
	// Empty disables playback intents.
	VideoControlURL string `env:"VIDEO_CONTROL_URL"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
