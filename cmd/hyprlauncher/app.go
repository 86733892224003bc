package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hyprutils/hyprlauncher/internal/config"
	"github.com/hyprutils/hyprlauncher/internal/desktop"
	"github.com/hyprutils/hyprlauncher/internal/index"
	"github.com/hyprutils/hyprlauncher/internal/logging"
	"github.com/hyprutils/hyprlauncher/internal/search"
)

var cliLog = logging.ForComponent(logging.CompCLI)

// loadConfig reads the user config. Parse errors are reported and the
// defaults are used.
func (c *cli) loadConfig() *config.UserConfig {
	cfg, err := config.Load()
	if err != nil {
		c.warnf("%v (using defaults)", err)
	}
	return cfg
}

func (c *cli) warnf(format string, args ...any) {
	fmt.Fprintf(c.stderr, "Warning: "+format+"\n", args...)
}

// setupLogging initializes the logger from the [debug] section. verbose
// forces logging on and mirrors records to stderr.
func setupLogging(cfg *config.UserConfig, verbose bool) {
	dir, _ := config.LogDir()
	level := cfg.Debug.LogLevel
	if verbose {
		level = "debug"
	}
	logging.Init(logging.Config{
		LogDir:                dir,
		Level:                 level,
		Format:                cfg.Debug.LogFormat,
		MaxSizeMB:             10,
		MaxBackups:            3,
		MaxAgeDays:            10,
		Compress:              true,
		AggregateIntervalSecs: 30,
		Stderr:                verbose,
		Enabled:               cfg.Debug.EnableLogging || verbose,
	})
}

// engineSettings maps the user config onto engine settings.
func engineSettings(cfg *config.UserConfig, env index.Env) search.Settings {
	s := search.Settings{
		Dirs:          index.ResolveDirs(env, cfg.Index.Dirs, cfg.Index.ExtraDirs),
		MaxEntries:    cfg.Window.MaxEntries,
		CaseSensitive: cfg.Dmenu.CaseSensitive,
		Parse: desktop.ParseOptions{
			Locale:          env.Locale,
			CurrentDesktops: env.CurrentDesktops(),
		},
		Workers:           cfg.Index.Workers,
		Debounce:          cfg.Index.Debounce(),
		MinRescanInterval: cfg.Index.MinRescanInterval(),
	}
	if cfg.Index.ScanPath() {
		s.PathDirs = env.PathDirs()
	}
	return s
}

// openEngine creates and starts an engine for cfg.
func openEngine(ctx context.Context, cfg *config.UserConfig, watch bool) (*search.Engine, error) {
	hmPath, err := cfg.Heatmap.ResolvePath()
	if err != nil {
		return nil, err
	}

	settings := engineSettings(cfg, index.EnvFromOS())
	settings.Watch = watch

	e, err := search.New(search.Options{
		Settings:      settings,
		HeatmapPath:   hmPath,
		FlushInterval: cfg.Heatmap.FlushInterval(),
	})
	if err != nil {
		return nil, err
	}
	if err := e.Start(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}
	cliLog.Debug("engine_started",
		slog.Int("entries", e.Snapshot().Len()),
		slog.String("heatmap", hmPath),
		slog.Bool("watch", watch))
	return e, nil
}
