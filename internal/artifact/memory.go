package artifact

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store. It is the default for one-shot runs
// and the backend used by tests.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[Key][]File
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[Key][]File)}
}

// Put stores files under the key. A second Put for the same key fails with
// ErrSlotSealed regardless of content.
func (s *MemoryStore) Put(_ context.Context, key Key, files []File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slots[key]; ok {
		return fmt.Errorf("slot %q (matrix %q, call site %q): %w", key.Slot, key.Matrix, key.CallSite, ErrSlotSealed)
	}

	stored := make([]File, len(files))
	for i, f := range files {
		data := make([]byte, len(f.Data))
		copy(data, f.Data)
		stored[i] = File{Name: f.Name, Data: data}
	}
	s.slots[key] = stored
	return nil
}

// Get returns the files stored under the key, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, key Key) ([]File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, ok := s.slots[key]
	if !ok {
		return nil, fmt.Errorf("slot %q (matrix %q, call site %q): %w", key.Slot, key.Matrix, key.CallSite, ErrNotFound)
	}

	out := make([]File, len(files))
	for i, f := range files {
		data := make([]byte, len(f.Data))
		copy(data, f.Data)
		out[i] = File{Name: f.Name, Data: data}
	}
	return out, nil
}
