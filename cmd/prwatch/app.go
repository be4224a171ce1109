package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/drewdunne/prwatch/internal/config"
	"github.com/drewdunne/prwatch/internal/logging"
	"github.com/drewdunne/prwatch/internal/store"
	"github.com/drewdunne/prwatch/internal/store/memory"
	"github.com/drewdunne/prwatch/internal/store/postgres"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
	envFile    string
}

// load reads .env files, the config file and the environment overlay, then
// installs the configured logger into the returned context. A missing
// config file is fine unless --config was given explicitly.
func (o *globalOptions) load(cmd *cobra.Command) (context.Context, *config.Config, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			clog.WarnContextf(ctx, "Could not load env file %s: %v", o.envFile, err)
		}
	} else {
		// Optional default locations.
		_ = godotenv.Load(".env")
		_ = godotenv.Load("/etc/prwatch/prwatch.env")
	}

	var cfg *config.Config
	_, statErr := os.Stat(o.configPath)
	if errors.Is(statErr, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg = config.DefaultConfig()
		if err := cfg.ApplyEnv(ctx, envconfig.OsLookuper()); err != nil {
			return nil, nil, err
		}
	} else {
		var err error
		cfg, err = config.Load(o.configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := logging.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	return clog.WithLogger(ctx, logger), cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := postgres.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return memory.New(), nil
	}
}
