package trigger

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nr18/shipline/internal/run"
)

func TestClassifyPush(t *testing.T) {
	kind, err := ClassifyPush("refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, run.TriggerPushBranch, kind)

	kind, err = ClassifyPush("refs/tags/v1.4.0")
	require.NoError(t, err)
	assert.Equal(t, run.TriggerPushTag, kind)

	_, err = ClassifyPush("refs/notes/commits")
	assert.Error(t, err)
}

func postWebhook(t *testing.T, srv *Server, event, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("X-Forge-Event", event)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestWebhook(t *testing.T) {
	t.Run("branch push maps to push_branch event", func(t *testing.T) {
		var got []Event
		srv := NewServer(DispatcherFunc(func(e Event) { got = append(got, e) }))

		rec := postWebhook(t, srv, "push", `{
			"ref": "refs/heads/main",
			"after": "abc123",
			"repository": {"full_name": "acme/marked-space"}
		}`)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, got, 1)
		assert.Equal(t, run.TriggerPushBranch, got[0].Kind)
		assert.Equal(t, "acme/marked-space", got[0].Repo)
		assert.Equal(t, "main", got[0].ShortRef())
		assert.Equal(t, "abc123", got[0].Commit)
	})

	t.Run("tag push maps to push_tag event", func(t *testing.T) {
		var got []Event
		srv := NewServer(DispatcherFunc(func(e Event) { got = append(got, e) }))

		postWebhook(t, srv, "push", `{
			"ref": "refs/tags/v1.4.0",
			"after": "abc123",
			"repository": {"full_name": "acme/marked-space"}
		}`)

		require.Len(t, got, 1)
		assert.Equal(t, run.TriggerPushTag, got[0].Kind)
		assert.Equal(t, "v1.4.0", got[0].ShortRef())
	})

	t.Run("pull_request synchronize maps to pull_request event", func(t *testing.T) {
		var got []Event
		srv := NewServer(DispatcherFunc(func(e Event) { got = append(got, e) }))

		rec := postWebhook(t, srv, "pull_request", `{
			"action": "synchronize",
			"pull_request": {"head": {"ref": "feature/x", "sha": "def456"}},
			"repository": {"full_name": "acme/marked-space"}
		}`)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, got, 1)
		assert.Equal(t, run.TriggerPullRequest, got[0].Kind)
		assert.Equal(t, "refs/heads/feature/x", got[0].Ref)
		assert.Equal(t, "def456", got[0].Commit)
	})

	t.Run("pull_request closed is ignored", func(t *testing.T) {
		var got []Event
		srv := NewServer(DispatcherFunc(func(e Event) { got = append(got, e) }))

		rec := postWebhook(t, srv, "pull_request", `{"action": "closed"}`)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, got)
	})

	t.Run("branch deletion push is ignored", func(t *testing.T) {
		var got []Event
		srv := NewServer(DispatcherFunc(func(e Event) { got = append(got, e) }))

		rec := postWebhook(t, srv, "push", `{
			"ref": "refs/heads/old",
			"after": "0000000000000000000000000000000000000000"
		}`)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, got)
	})

	t.Run("unknown event type is acknowledged without dispatch", func(t *testing.T) {
		var got []Event
		srv := NewServer(DispatcherFunc(func(e Event) { got = append(got, e) }))

		rec := postWebhook(t, srv, "star", `{}`)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, got)
	})

	t.Run("malformed payload is a bad request", func(t *testing.T) {
		srv := NewServer(DispatcherFunc(func(Event) {}))
		rec := postWebhook(t, srv, "push", `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
