package release

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nr18/shipline/internal/artifact"
)

func seedStore(t *testing.T, entries map[string][]artifact.File) artifact.Store {
	t.Helper()
	store := artifact.NewMemoryStore()
	for slot, files := range entries {
		require.NoError(t, store.Put(context.Background(), artifact.Key{Slot: slot}, files))
	}
	return store
}

func TestComposer(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes record with gathered assets", func(t *testing.T) {
		store := seedStore(t, map[string][]artifact.File{
			"linux-binary":   {{Name: "app-linux", Data: []byte("elf")}},
			"windows-binary": {{Name: "app.exe", Data: []byte("pe")}},
		})
		host := NewMemoryHost()
		c := NewComposer(host, store)

		err := c.Compose(ctx, Record{Tag: "v1.4.0", Title: "v1.4.0"}, []AssetRef{
			{Key: artifact.Key{Slot: "linux-binary"}},
			{Key: artifact.Key{Slot: "windows-binary"}},
		})
		require.NoError(t, err)

		rec, assets, ok := host.Get("v1.4.0")
		require.True(t, ok)
		assert.Equal(t, "v1.4.0", rec.Title)
		require.Len(t, assets, 2)
		assert.Equal(t, "app-linux", assets[0].Name)
		assert.Equal(t, "app.exe", assets[1].Name)
	})

	t.Run("missing artifact is fatal and publishes nothing", func(t *testing.T) {
		store := seedStore(t, map[string][]artifact.File{
			"linux-binary": {{Name: "app-linux", Data: []byte("elf")}},
		})
		host := NewMemoryHost()
		c := NewComposer(host, store)

		err := c.Compose(ctx, Record{Tag: "v1.4.0"}, []AssetRef{
			{Key: artifact.Key{Slot: "linux-binary"}},
			{Key: artifact.Key{Slot: "windows-binary"}},
		})
		require.ErrorIs(t, err, artifact.ErrNotFound)
		assert.Equal(t, 0, host.Count())
	})

	t.Run("asset renamed via ref name", func(t *testing.T) {
		store := seedStore(t, map[string][]artifact.File{
			"binary": {{Name: "target/release/app", Data: []byte("elf")}},
		})
		host := NewMemoryHost()
		c := NewComposer(host, store)

		err := c.Compose(ctx, Record{Tag: "latest"}, []AssetRef{
			{Key: artifact.Key{Slot: "binary"}, Name: "app-linux-amd64"},
		})
		require.NoError(t, err)

		_, assets, ok := host.Get("latest")
		require.True(t, ok)
		require.Len(t, assets, 1)
		assert.Equal(t, "app-linux-amd64", assets[0].Name)
	})

	t.Run("rename of a multi-file slot is rejected", func(t *testing.T) {
		store := seedStore(t, map[string][]artifact.File{
			"bundle": {{Name: "a"}, {Name: "b"}},
		})
		c := NewComposer(NewMemoryHost(), store)

		err := c.Compose(ctx, Record{Tag: "latest"}, []AssetRef{
			{Key: artifact.Key{Slot: "bundle"}, Name: "only-one"},
		})
		assert.ErrorContains(t, err, "cannot rename")
	})

	t.Run("rolling tag republish keeps exactly one record", func(t *testing.T) {
		store := seedStore(t, map[string][]artifact.File{
			"binary": {{Name: "app", Data: []byte("v1")}},
		})
		host := NewMemoryHost()
		c := NewComposer(host, store)

		require.NoError(t, c.Compose(ctx, Record{Tag: "latest", Prerelease: true}, []AssetRef{
			{Key: artifact.Key{Slot: "binary"}},
		}))
		require.NoError(t, c.Compose(ctx, Record{Tag: "latest", Prerelease: true}, []AssetRef{
			{Key: artifact.Key{Slot: "binary"}},
		}))

		assert.Equal(t, 1, host.Count())
	})
}

// forgeState is a minimal in-process releases API for exercising ForgeHost.
type forgeState struct {
	nextID   int64
	releases map[string]forgeRelease
	assets   map[int64][]string
	deletes  int
}

func newForgeServer(t *testing.T) (*httptest.Server, *forgeState) {
	t.Helper()
	state := &forgeState{nextID: 1, releases: map[string]forgeRelease{}, assets: map[int64][]string{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/marked-space/releases/tags/{tag}", func(w http.ResponseWriter, r *http.Request) {
		rel, ok := state.releases[r.PathValue("tag")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rel)
	})
	mux.HandleFunc("DELETE /repos/acme/marked-space/releases/{id}", func(w http.ResponseWriter, r *http.Request) {
		for tag, rel := range state.releases {
			if got := r.PathValue("id"); got == jsonID(rel.ID) {
				delete(state.releases, tag)
				state.deletes++
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("POST /repos/acme/marked-space/releases", func(w http.ResponseWriter, r *http.Request) {
		var rel forgeRelease
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rel))
		rel.ID = state.nextID
		state.nextID++
		state.releases[rel.TagName] = rel
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(rel)
	})
	mux.HandleFunc("POST /repos/acme/marked-space/releases/{id}/assets", func(w http.ResponseWriter, r *http.Request) {
		for _, rel := range state.releases {
			if r.PathValue("id") == jsonID(rel.ID) {
				state.assets[rel.ID] = append(state.assets[rel.ID], r.URL.Query().Get("name"))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				_ = json.NewEncoder(w).Encode(map[string]any{"id": rel.ID})
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, state
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestForgeHost(t *testing.T) {
	ctx := context.Background()

	t.Run("create then upload", func(t *testing.T) {
		srv, state := newForgeServer(t)
		host := NewForgeHost(srv.URL, "acme", "marked-space", "tok")
		defer host.Close()

		err := host.Replace(ctx, Record{Tag: "v1.4.0", Title: "v1.4.0"}, []artifact.File{
			{Name: "app-linux", Data: []byte("elf")},
		})
		require.NoError(t, err)
		rel, ok := state.releases["v1.4.0"]
		require.True(t, ok)
		assert.Equal(t, []string{"app-linux"}, state.assets[rel.ID])
		assert.Equal(t, 0, state.deletes)
	})

	t.Run("replace deletes the previous record first", func(t *testing.T) {
		srv, state := newForgeServer(t)
		host := NewForgeHost(srv.URL, "acme", "marked-space", "tok")
		defer host.Close()

		require.NoError(t, host.Replace(ctx, Record{Tag: "latest"}, nil))
		require.NoError(t, host.Replace(ctx, Record{Tag: "latest"}, nil))

		assert.Equal(t, 1, state.deletes)
		assert.Len(t, state.releases, 1)
	})
}
