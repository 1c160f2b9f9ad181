package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Nr18/shipline/internal/artifact"
	"github.com/Nr18/shipline/internal/ctxlog"
	"github.com/Nr18/shipline/internal/engine"
	"github.com/Nr18/shipline/internal/plan"
	"github.com/Nr18/shipline/internal/release"
	"github.com/Nr18/shipline/internal/run"
	"github.com/Nr18/shipline/internal/trigger"
)

// Run processes one trigger event end to end: select and plan the entry
// pipeline, execute the graph, report the result. The returned Result is
// non-nil whenever execution started, even when the run failed.
func (a *App) Run(ctx context.Context, event trigger.Event) (*engine.Result, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	repo := event.Repo
	if repo == "" {
		repo = a.cfg.Repo
	}
	r := run.New(event.Kind, repo, event.Ref, event.Commit, a.cfg.Secrets, a.cfg.Vars)
	logger := a.logger.With("run_id", r.ID, "trigger", r.Kind, "ref", r.ShortRef())
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("Run started.", "repo", repo, "commit", r.Commit)

	graph, err := plan.Build(ctx, a.model, a.reg, r)
	if err != nil {
		return nil, fmt.Errorf("failed to plan run: %w", err)
	}
	logger.Debug("Job graph built.", "instances", len(graph.Instances))

	store, err := a.newArtifactStore(r.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}

	workers := a.cfg.Workers
	if workers < 1 {
		workers = 4
	}
	eng := engine.New(graph, a.reg, r, workers, engine.Services{
		Artifacts: store,
		Cache:     a.cache,
		Releases:  release.NewComposer(a.relHost, store),
		TagSync: a.tags,
		// Each run gets its own directory tree: serve mode dispatches
		// runs concurrently, and overlapping runs of the same pipeline
		// must not share instance workdirs.
		WorkRoot: filepath.Join(a.cfg.WorkDir, r.ID),
	})

	result, err := eng.Run(ctx)
	a.sweepArtifacts(ctx)
	if err != nil {
		logger.Error("Run failed.", "error", err)
		return result, err
	}
	logger.Info("Run finished.", "pipeline", result.Pipeline, "instances", len(result.Instances))
	return result, nil
}

// sweepArtifacts applies the retention window to persisted artifacts. It
// runs after every completed run so a long-lived daemon keeps reclaiming
// space, not just at startup.
func (a *App) sweepArtifacts(ctx context.Context) {
	if a.cfg.Artifacts.Dir == "" || a.cfg.Artifacts.Retention <= 0 {
		return
	}
	artifact.Sweep(ctx, a.cfg.Artifacts.Dir, time.Duration(a.cfg.Artifacts.Retention))
}
