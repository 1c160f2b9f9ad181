// Package engine executes a planned job graph: instances without
// unresolved dependencies run concurrently on a bounded worker pool,
// dependents unblock as their dependencies reach terminal states, and
// upstream failures skip the downstream branch while independent branches
// run to completion.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Nr18/shipline/internal/artifact"
	"github.com/Nr18/shipline/internal/cache"
	"github.com/Nr18/shipline/internal/ctxlog"
	"github.com/Nr18/shipline/internal/plan"
	"github.com/Nr18/shipline/internal/registry"
	"github.com/Nr18/shipline/internal/release"
	"github.com/Nr18/shipline/internal/run"
	"github.com/Nr18/shipline/internal/tagsync"
)

// Services are the run-scoped shared collaborators handed to steps.
type Services struct {
	Artifacts artifact.Store
	Cache     cache.Cache
	Releases  *release.Composer
	TagSync   *tagsync.Synchronizer

	// WorkRoot is the directory under which per-instance working
	// directories are created.
	WorkRoot string
}

// node pairs a planned instance with its runtime bookkeeping.
type node struct {
	inst *plan.Instance

	state       atomic.Int32
	depCount    atomic.Int32
	failedDeps  atomic.Int32
	skippedDeps atomic.Int32
	finishOnce  sync.Once

	err      error
	duration time.Duration
}

func (n *node) setState(s State) { n.state.Store(int32(s)) }
func (n *node) getState() State  { return State(n.state.Load()) }

// Engine runs one graph to completion.
type Engine struct {
	graph    *plan.Graph
	reg      *registry.Registry
	run      *run.Run
	workers  int
	services Services

	nodes     map[string]*node
	readyChan chan *node
	wg        sync.WaitGroup
}

// New prepares an engine for a single run of the graph.
func New(graph *plan.Graph, reg *registry.Registry, r *run.Run, workers int, services Services) *Engine {
	if workers < 1 {
		workers = 1
	}
	e := &Engine{
		graph:    graph,
		reg:      reg,
		run:      r,
		workers:  workers,
		services: services,
		nodes:    make(map[string]*node, len(graph.Instances)),
	}
	for id, inst := range graph.Instances {
		n := &node{inst: inst}
		n.depCount.Store(int32(len(inst.Deps)))
		if len(inst.Deps) > 0 {
			n.setState(StateBlocked)
		}
		e.nodes[id] = n
	}
	return e
}

// Run executes the graph and returns the per-instance outcomes. The
// returned error is the root cause of the first real failure, nil when
// every non-skipped instance succeeded. External cancellation stops
// scheduling immediately; instances already running observe it through
// their step context.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	e.readyChan = make(chan *node, len(e.nodes))

	rootCount := 0
	for _, n := range e.nodes {
		if n.depCount.Load() == 0 {
			e.readyChan <- n
			rootCount++
		}
	}
	logger.Debug("Engine initialized.", "instances", len(e.nodes), "roots", rootCount, "workers", e.workers)

	e.wg.Add(len(e.nodes))
	for i := 0; i < e.workers; i++ {
		go e.worker(ctx, i)
	}

	e.wg.Wait()
	close(e.readyChan)
	logger.Debug("All instances reached a terminal state.")

	result := e.collect()
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, result.Err()
}

// worker is the processing loop for one concurrent worker.
func (e *Engine) worker(ctx context.Context, workerID int) {
	logger := ctxlog.FromContext(ctx).With("worker", workerID)

	for n := range e.readyChan {
		if ctx.Err() != nil {
			e.finish(ctx, n, StateSkipped, fmt.Errorf("run cancelled: %w", ctx.Err()))
			continue
		}

		instLogger := logger.With("instance", n.inst.ID)
		gateOpen, err := e.evaluateGates(n)
		if err != nil {
			instLogger.Error("Gate evaluation failed.", "error", err)
			e.finish(ctx, n, StateFailed, err)
			continue
		}
		if !gateOpen {
			instLogger.Info("Gate condition false, skipping instance.")
			e.finish(ctx, n, StateSkipped, nil)
			continue
		}

		n.setState(StateRunning)
		instLogger.Info("Instance started.")
		started := time.Now()
		err = e.execute(ctxlog.WithLogger(ctx, instLogger), n)
		n.duration = time.Since(started)

		if err != nil {
			instLogger.Error("Instance failed.", "error", err, "duration", n.duration)
			e.finish(ctx, n, StateFailed, err)
			continue
		}
		instLogger.Info("Instance succeeded.", "duration", n.duration)
		e.finish(ctx, n, StateSucceeded, nil)
	}
}

// finish records a terminal state exactly once and releases dependents.
// A dependent whose last dependency just resolved is skipped when any
// dependency failed, or when one was skipped and the dependent requires
// success; otherwise it is enqueued. Skips cascade through here too, so
// a failure's whole downstream closure resolves without ever occupying a
// worker.
func (e *Engine) finish(ctx context.Context, n *node, state State, err error) {
	n.finishOnce.Do(func() {
		n.setState(state)
		n.err = err
		e.wg.Done()

		for _, dep := range n.inst.Dependents {
			dn := e.nodes[dep.ID]
			switch state {
			case StateFailed:
				dn.failedDeps.Add(1)
			case StateSkipped:
				dn.skippedDeps.Add(1)
			}
			if dn.depCount.Add(-1) != 0 {
				continue
			}
			switch {
			case dn.failedDeps.Load() > 0:
				e.finish(ctx, dn, StateSkipped, fmt.Errorf("skipped: upstream %q did not succeed", n.inst.ID))
			case dn.skippedDeps.Load() > 0 && dn.inst.RequiresSuccess:
				e.finish(ctx, dn, StateSkipped, fmt.Errorf("skipped: upstream %q was skipped and %q requires success", n.inst.ID, dep.ID))
			default:
				e.readyChan <- dn
			}
		}
	})
}

// collect builds the final result once every node is terminal.
func (e *Engine) collect() *Result {
	result := &Result{
		Pipeline:  e.graph.Pipeline,
		Instances: make(map[string]*InstanceResult, len(e.nodes)),
	}
	for id, n := range e.nodes {
		result.Instances[id] = &InstanceResult{
			State:    n.getState(),
			Err:      n.err,
			Duration: n.duration,
		}
	}
	return result
}

// Result holds the terminal outcome of every instance in a run.
type Result struct {
	Pipeline  string
	Instances map[string]*InstanceResult
}

// InstanceResult is one instance's terminal outcome.
type InstanceResult struct {
	State    State
	Err      error
	Duration time.Duration
}

// Failed reports whether any instance failed. Skipped instances do not
// fail a run.
func (r *Result) Failed() bool {
	for _, inst := range r.Instances {
		if inst.State == StateFailed {
			return true
		}
	}
	return false
}

// Err returns the root cause of the run's failure: the first error of a
// failed instance that is itself not a cancellation symptom.
func (r *Result) Err() error {
	var rootCause error
	var failed []string
	for id, inst := range r.Instances {
		if inst.State != StateFailed {
			continue
		}
		failed = append(failed, id)
		if rootCause == nil && inst.Err != nil && !errors.Is(inst.Err, context.Canceled) {
			rootCause = inst.Err
		}
	}
	if rootCause == nil {
		if len(failed) == 0 {
			return nil
		}
		return fmt.Errorf("execution failed for %d instance(s)", len(failed))
	}
	return fmt.Errorf("execution failed: %w", rootCause)
}
