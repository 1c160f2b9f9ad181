package engine

// State is the lifecycle state of one job instance.
type State int32

const (
	// StatePending: created, dependencies not yet examined.
	StatePending State = iota
	// StateBlocked: waiting on at least one unresolved dependency.
	StateBlocked
	// StateRunning: steps are executing on a worker.
	StateRunning
	// StateSucceeded: every step completed.
	StateSucceeded
	// StateFailed: a step failed or the instance timed out.
	StateFailed
	// StateSkipped: gate condition false, an upstream instance failed, or
	// the run was cancelled before the instance started.
	StateSkipped
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateBlocked:
		return "blocked"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateSkipped
}
