// Package app wires configuration, the step registry and the shared
// services into a runnable daemon.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Nr18/shipline/internal/artifact"
	"github.com/Nr18/shipline/internal/cache"
	"github.com/Nr18/shipline/internal/config"
	"github.com/Nr18/shipline/internal/ctxlog"
	"github.com/Nr18/shipline/internal/hclcfg"
	"github.com/Nr18/shipline/internal/registry"
	"github.com/Nr18/shipline/internal/release"
	"github.com/Nr18/shipline/internal/tagsync"
)

// App encapsulates the daemon's dependencies, configuration and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	cfg     *FileConfig
	reg     *registry.Registry
	model   *config.Model
	cache   cache.Cache
	relHost release.Host
	tags    *tagsync.Synchronizer
}

// New constructs a fully initialized application: logger, pipeline model,
// registry and backends. Any configuration defect is a fatal startup
// error; nothing is deferred to the first webhook.
func New(outW io.Writer, cfg *FileConfig, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if loader == nil {
		loader = hclcfg.NewLoader()
	}
	model, err := loader.Load(ctx, cfg.PipelineDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline definitions: %w", err)
	}
	logger.Debug("Pipeline definitions loaded into unified model.",
		"pipelines", len(model.Pipelines), "templates", len(model.Templates))

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All step modules registered.", "types", reg.Types())

	a := &App{outW: outW, logger: logger, cfg: cfg, reg: reg, model: model}

	switch cfg.Cache.Backend {
	case "dir":
		a.cache, err = cache.NewDirCache(cfg.Cache.Dir)
	case "s3":
		a.cache, err = cache.NewS3Cache(cfg.Cache.S3)
	default:
		a.cache = cache.Noop{}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache backend: %w", err)
	}

	if cfg.Release.Host != "" {
		a.relHost = release.NewForgeHost(cfg.Release.Host, cfg.Release.Owner, cfg.Release.Repo, cfg.Release.Token)
	} else {
		a.relHost = release.NewMemoryHost()
	}

	if cfg.ManifestPath != "" {
		a.tags = tagsync.New(&tagsync.GitRemote{Dir: cfg.WorkDir}, cfg.ManifestPath)
	}

	a.sweepArtifacts(ctx)

	return a, nil
}

// Registry returns the application's registry. This is primarily for
// testing.
func (a *App) Registry() *registry.Registry {
	return a.reg
}

// ReleaseHost returns the configured release host. This is primarily for
// testing against the in-memory implementation.
func (a *App) ReleaseHost() release.Host {
	return a.relHost
}

// newArtifactStore builds the per-run artifact store.
func (a *App) newArtifactStore(runID string) (artifact.Store, error) {
	if a.cfg.Artifacts.Dir == "" {
		return artifact.NewMemoryStore(), nil
	}
	return artifact.NewFSStore(a.cfg.Artifacts.Dir, runID)
}
