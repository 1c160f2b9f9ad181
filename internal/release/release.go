// Package release publishes composed release records to a hosting forge.
package release

import (
	"context"
	"fmt"

	"github.com/Nr18/shipline/internal/artifact"
	"github.com/Nr18/shipline/internal/ctxlog"
)

// Record describes one release to publish.
type Record struct {
	Tag        string
	Title      string
	Notes      string
	Draft      bool
	Prerelease bool
}

// AssetRef names an artifact slot whose files become release assets.
// Name overrides the stored file name when set; a ref with an empty
// Name publishes the files under their stored names.
type AssetRef struct {
	Key  artifact.Key
	Name string
}

// Host is the forge-side releases API. Replace is an idempotent upsert
// keyed by tag: publishing the same tag twice leaves exactly one record
// carrying the assets of the latest call.
type Host interface {
	Replace(ctx context.Context, rec Record, assets []artifact.File) error
}

// Composer gathers artifacts from the run's store and publishes them.
type Composer struct {
	host  Host
	store artifact.Store
}

func NewComposer(host Host, store artifact.Store) *Composer {
	return &Composer{host: host, store: store}
}

// Compose verifies that every referenced artifact exists, then publishes
// the record. A missing artifact fails the whole composition; nothing is
// published partially.
func (c *Composer) Compose(ctx context.Context, rec Record, refs []AssetRef) error {
	log := ctxlog.FromContext(ctx)

	var assets []artifact.File
	for _, ref := range refs {
		files, err := c.store.Get(ctx, ref.Key)
		if err != nil {
			return fmt.Errorf("release %q: asset slot %q: %w", rec.Tag, ref.Key.Slot, err)
		}
		if ref.Name != "" {
			if len(files) != 1 {
				return fmt.Errorf("release %q: asset slot %q holds %d files, cannot rename to %q",
					rec.Tag, ref.Key.Slot, len(files), ref.Name)
			}
			files = []artifact.File{{Name: ref.Name, Data: files[0].Data}}
		}
		assets = append(assets, files...)
	}

	if err := c.host.Replace(ctx, rec, assets); err != nil {
		return fmt.Errorf("release %q: publish: %w", rec.Tag, err)
	}
	log.Info("Release published", "tag", rec.Tag, "assets", len(assets))
	return nil
}
