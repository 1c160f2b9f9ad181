package config

import "context"

// Loader is the interface for a format-specific pipeline definition loader.
type Loader interface {
	// Load reads every definition file reachable from the given paths,
	// translates them into the format-agnostic model, and validates
	// cross-references (template names, duplicate jobs).
	Load(ctx context.Context, paths ...string) (*Model, error)
}
