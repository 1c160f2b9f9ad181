// Package registry holds the step runner handlers available to pipeline
// definitions. Modules self-register a typed handler per step type; plan
// construction fails if a definition references a type nobody registered.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Module is the interface all step runner modules implement to be
// registered with an application instance.
type Module interface {
	Register(r *Registry)
}

// RunFunc executes one step. The input value is the struct produced by
// the handler's NewInput factory, populated from the step's arguments
// block. The returned value, if non-nil, is exposed to later steps of the
// same job instance as `step.<name>`.
type RunFunc func(ctx context.Context, sc *StepContext, input any) (cty.Value, error)

// Handler is one registered step runner.
type Handler struct {
	// NewInput returns a fresh pointer to the handler's input struct, or
	// nil for handlers that take no arguments.
	NewInput func() any
	// Fn is the handler body.
	Fn RunFunc
}

// Registry maps step types to handlers for one application instance.
type Registry struct {
	handlers map[string]*Handler
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]*Handler)}
}

// Register adds a handler for a step type. Registering the same type
// twice is a programmer error and panics at startup.
func (r *Registry) Register(stepType string, h *Handler) {
	if _, ok := r.handlers[stepType]; ok {
		panic(fmt.Sprintf("step type %q registered twice", stepType))
	}
	r.handlers[stepType] = h
}

// Lookup returns the handler for a step type.
func (r *Registry) Lookup(stepType string) (*Handler, bool) {
	h, ok := r.handlers[stepType]
	return h, ok
}

// Types returns the sorted registered step types, for diagnostics.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
