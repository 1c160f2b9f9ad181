package releasestep

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nr18/shipline/internal/artifact"
	"github.com/Nr18/shipline/internal/registry"
	"github.com/Nr18/shipline/internal/release"
)

func TestOnRunRelease(t *testing.T) {
	ctx := context.Background()

	store := artifact.NewMemoryStore()
	require.NoError(t, store.Put(ctx, artifact.Key{Slot: "ubuntu", Matrix: "os=ubuntu", CallSite: "build"},
		[]artifact.File{{Name: "out.bin", Data: []byte("elf")}}))
	require.NoError(t, store.Put(ctx, artifact.Key{Slot: "windows", Matrix: "os=windows", CallSite: "build"},
		[]artifact.File{{Name: "out.bin", Data: []byte("pe")}}))

	host := release.NewMemoryHost()
	sc := &registry.StepContext{
		Workdir:  t.TempDir(),
		Releases: release.NewComposer(host, store),
	}

	t.Run("composes from matrix producer slots", func(t *testing.T) {
		out, err := OnRunRelease(ctx, sc, &Input{
			Tag:       "v1.4.0",
			Assets:    map[string]string{"ubuntu": "marked-space", "windows": "marked-space.exe"},
			Matrices:  map[string]string{"ubuntu": "os=ubuntu", "windows": "os=windows"},
			CallSites: map[string]string{"ubuntu": "build", "windows": "build"},
		})
		require.NoError(t, err)
		assert.Equal(t, "v1.4.0", out.GetAttr("tag").AsString())

		rec, assets, ok := host.Get("v1.4.0")
		require.True(t, ok)
		assert.Equal(t, "v1.4.0", rec.Title, "title defaults to the tag")
		require.Len(t, assets, 2)
		assert.ElementsMatch(t, []string{"marked-space", "marked-space.exe"},
			[]string{assets[0].Name, assets[1].Name})
	})

	t.Run("missing producer slot fails the step", func(t *testing.T) {
		_, err := OnRunRelease(ctx, sc, &Input{
			Tag:    "v1.5.0",
			Assets: map[string]string{"macos": "marked-space-darwin"},
		})
		require.ErrorIs(t, err, artifact.ErrNotFound)
		_, _, ok := host.Get("v1.5.0")
		assert.False(t, ok)
	})
}
