package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"tufline/internal/config"
	"tufline/internal/db"
	"tufline/internal/engine"
	"tufline/internal/logger"
	"tufline/internal/metrics"
	"tufline/internal/migrate"
)

// Options select the workspace and override values from tufline.yml.
type Options struct {
	Workspace string
	// ConfigFile, when set, replaces the workspace tufline.yml.
	ConfigFile  string
	LogLevel    string
	TokenSecret string
	LogOutput   io.Writer
}

// Runtime bundles everything an entry point needs to run engine operations.
type Runtime struct {
	Conn    *sql.DB
	Config  *config.Config
	Log     logger.Logger
	Metrics *metrics.Manager
	Engine  engine.Engine
}

// Close releases the database handle.
func (r *Runtime) Close() error {
	if r == nil || r.Conn == nil {
		return nil
	}
	return r.Conn.Close()
}

// LoadConfig reads the workspace config and applies overrides on top of it.
func LoadConfig(opts Options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigFile != "" {
		cfg, err = config.FromFile(opts.ConfigFile)
	} else {
		cfg, err = config.Load(opts.Workspace)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.TokenSecret != "" {
		cfg.Auth.TokenSecret = opts.TokenSecret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Open loads config, opens and migrates the workspace database and builds the engine.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	log, err := logger.New(out, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if _, err := db.EnsureWorkspace(opts.Workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	m := metrics.New()
	return &Runtime{
		Conn:    conn,
		Config:  cfg,
		Log:     log,
		Metrics: m,
		Engine:  engine.New(conn, cfg, log, m),
	}, nil
}
