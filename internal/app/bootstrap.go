package app

import (
	"errors"
	"io/fs"
	"os"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/geofence/internal/config"
	"github.com/relabs-tech/geofence/internal/logging"
)

// Bootstrap loads the configuration at configPath and builds the logger it
// asks for. A missing config file falls back to defaults and the environment.
func Bootstrap(configPath string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	missing := errors.Is(err, fs.ErrNotExist)
	if missing {
		cfg, err = config.Load("")
	}
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if missing {
		logger.Warn().Str("path", configPath).Msg("config file not found, using defaults and environment")
	}
	return cfg, logger, nil
}
