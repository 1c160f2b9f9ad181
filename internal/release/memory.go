package release

import (
	"context"
	"sync"

	"github.com/Nr18/shipline/internal/artifact"
)

// MemoryHost keeps published releases in memory. Used in tests and as the
// default host when no forge is configured.
type MemoryHost struct {
	mu       sync.Mutex
	releases map[string]published
}

type published struct {
	Record Record
	Assets []artifact.File
}

func NewMemoryHost() *MemoryHost {
	return &MemoryHost{releases: make(map[string]published)}
}

func (h *MemoryHost) Replace(_ context.Context, rec Record, assets []artifact.File) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	copied := make([]artifact.File, len(assets))
	for i, f := range assets {
		copied[i] = artifact.File{Name: f.Name, Data: append([]byte(nil), f.Data...)}
	}
	h.releases[rec.Tag] = published{Record: rec, Assets: copied}
	return nil
}

// Get returns the published record for a tag, if any.
func (h *MemoryHost) Get(tag string) (Record, []artifact.File, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.releases[tag]
	return p.Record, p.Assets, ok
}

// Count reports how many distinct release records exist.
func (h *MemoryHost) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.releases)
}
