// Package artifact implements the run-scoped artifact store: named,
// write-once slots used to pass build products between jobs in one run.
package artifact

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for a slot that has no content. Callers
// must treat it as fatal: a downstream job reading an artifact assumes the
// producing job succeeded, so an absent slot means the run is inconsistent.
var ErrNotFound = errors.New("artifact slot not found")

// ErrSlotSealed is returned by Put when the slot already has content.
// Slots are write-once per (name, matrix value, call site) within a run.
var ErrSlotSealed = errors.New("artifact slot already written")

// Key addresses one slot. Matrix distinguishes instances of a matrix job
// ("os=ubuntu"), CallSite distinguishes expansions of the same sub-pipeline
// template invoked from different jobs. Either may be empty.
type Key struct {
	Slot     string
	Matrix   string
	CallSite string
}

// File is one named artifact inside a slot.
type File struct {
	Name string
	Data []byte
}

// Store holds the artifacts of a single run. Put is write-once per key;
// Get of an absent key returns ErrNotFound, never an empty result.
type Store interface {
	Put(ctx context.Context, key Key, files []File) error
	Get(ctx context.Context, key Key) ([]File, error)
}
