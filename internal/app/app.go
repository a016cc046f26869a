// Package app wires the manifest loader, the build engine, and logging
// into one runnable application.
package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/docforge/internal/build"
	"github.com/vk/docforge/internal/ctxlog"
	"github.com/vk/docforge/internal/manifest"
)

// App is one configured docforge run.
type App struct {
	cfg    *Config
	loader *manifest.Loader
	logger *slog.Logger
}

// NewApp assembles an application writing its log to logW.
func NewApp(logW io.Writer, cfg *Config, loader *manifest.Loader) *App {
	return &App{
		cfg:    cfg,
		loader: loader,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, logW),
	}
}

// Run loads the manifest and brings the requested targets up to date.
// Failures already logged at their origin are not logged again here.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	if root, err := manifestRoot(a.cfg.ManifestPath); err == nil {
		build.SetDisplayRoot(root)
	}

	graph, err := a.loader.Load(ctx, a.cfg.ManifestPath, a.cfg.Vars)
	if err != nil {
		a.logger.Error("failed to load manifest", "path", a.cfg.ManifestPath, "error", err)
		return err
	}

	targets, err := graph.Targets(a.cfg.Targets)
	if err != nil {
		a.logger.Error("failed to resolve targets", "error", err)
		return err
	}

	names := make([]string, len(targets))
	for i, n := range targets {
		names[i] = n.Name()
	}
	a.logger.Info("building", "targets", strings.Join(names, ", "), "jobs", a.cfg.Jobs)

	if err := build.NewUpdater(a.cfg.Jobs).Update(ctx, targets...); err != nil {
		if !build.IsReported(err) {
			a.logger.Error("build failed", "error", err)
		}
		return err
	}

	a.logger.Info("build succeeded", "targets", len(targets))
	return nil
}

// manifestRoot resolves the directory log messages render paths against.
func manifestRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return abs, nil
	}
	return filepath.Dir(abs), nil
}
