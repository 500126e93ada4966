package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/encodeous/nyroute/core"
	"github.com/encodeous/nyroute/state"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	debugAddr  string
)

// env is what every command needs after startup
type env struct {
	cfg     *state.LocalCfg
	log     *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	logFile io.Closer
}

func (e *env) Close() {
	e.cancel()
	_ = e.logFile.Close()
}

// setup loads the config and logger, and returns a context cancelled on SIGINT/SIGTERM.
func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := core.ReadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", configPath, err)
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log, logFile, err := core.NewLogger(cfg.Id, level, cfg.LogPath, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	ctx, cancel := core.SignalContext(cmd.Context(), log)
	if debugAddr != "" {
		core.ServeDebug(ctx, debugAddr, log)
	}
	return &env{
		cfg:     cfg,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		logFile: logFile,
	}, nil
}

// loadStore reads the metric store given by --metrics, falling back to the configured path.
func loadStore(cmd *cobra.Command, cfg *state.LocalCfg) (*state.MetricStore, error) {
	p := cmd.Flag("metrics").Value.String()
	if p == "" {
		p = cfg.MetricsPath
	}
	store, err := state.LoadMetricStore(p)
	if err != nil {
		return nil, err
	}
	return store, nil
}
