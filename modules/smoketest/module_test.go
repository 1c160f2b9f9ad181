package smoketest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nr18/shipline/internal/artifact"
	"github.com/Nr18/shipline/internal/registry"
)

const passingBinary = "#!/bin/sh\ntest \"$1\" = \"--space\" && test -n \"$API_TOKEN\"\n"

func apiServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "ci-bot" || pass != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func stepContext(t *testing.T, host string) *registry.StepContext {
	t.Helper()
	store := artifact.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), artifact.Key{Slot: "binary"}, []artifact.File{
		{Name: "marked-space", Data: []byte(passingBinary)},
	}))
	return &registry.StepContext{
		Workdir:   t.TempDir(),
		Artifacts: store,
		Env: map[string]string{
			"CONFLUENCE_HOST": host,
			"API_USER":        "ci-bot",
			"API_TOKEN":       "tok",
		},
	}
}

func TestOnRunSmokeTest(t *testing.T) {
	ctx := context.Background()

	t.Run("passes against a healthy API", func(t *testing.T) {
		srv := apiServer(t, http.StatusOK)
		sc := stepContext(t, srv.URL)

		out, err := OnRunSmokeTest(ctx, sc, &Input{Slot: "binary", SpaceDirectory: "docs"})
		require.NoError(t, err)
		assert.True(t, out.GetAttr("passed").True())
	})

	t.Run("preflight failure stops before running the binary", func(t *testing.T) {
		srv := apiServer(t, http.StatusInternalServerError)
		sc := stepContext(t, srv.URL)

		_, err := OnRunSmokeTest(ctx, sc, &Input{Slot: "binary", SpaceDirectory: "docs"})
		assert.ErrorContains(t, err, "preflight")
	})

	t.Run("bad credentials fail the preflight", func(t *testing.T) {
		srv := apiServer(t, http.StatusOK)
		sc := stepContext(t, srv.URL)
		sc.Env["API_TOKEN"] = "wrong"

		_, err := OnRunSmokeTest(ctx, sc, &Input{Slot: "binary", SpaceDirectory: "docs"})
		assert.ErrorContains(t, err, "preflight")
	})

	t.Run("missing secret is rejected before any network call", func(t *testing.T) {
		sc := stepContext(t, "http://unreachable.invalid")
		delete(sc.Env, "API_TOKEN")

		_, err := OnRunSmokeTest(ctx, sc, &Input{Slot: "binary", SpaceDirectory: "docs"})
		assert.ErrorContains(t, err, "API_TOKEN")
	})

	t.Run("missing binary artifact fails", func(t *testing.T) {
		srv := apiServer(t, http.StatusOK)
		sc := stepContext(t, srv.URL)
		sc.Artifacts = artifact.NewMemoryStore()

		_, err := OnRunSmokeTest(ctx, sc, &Input{Slot: "binary", SpaceDirectory: "docs"})
		require.ErrorIs(t, err, artifact.ErrNotFound)
	})
}
