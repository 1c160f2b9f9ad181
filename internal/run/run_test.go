package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCopiesMaps(t *testing.T) {
	secrets := map[string]string{"API_TOKEN": "t0"}
	vars := map[string]string{"CONFLUENCE_HOST": "example.atlassian.net"}
	r := New(TriggerPushBranch, "Nr18/marked-space", "refs/heads/main", "abc123", secrets, vars)

	secrets["API_TOKEN"] = "mutated"
	vars["CONFLUENCE_HOST"] = "mutated"

	got, err := r.ScopedSecrets([]string{"API_TOKEN"}, false)
	require.NoError(t, err)
	assert.Equal(t, "t0", got["API_TOKEN"])
	assert.Equal(t, "example.atlassian.net", r.Vars()["CONFLUENCE_HOST"])
	assert.NotEmpty(t, r.ID)
}

func TestShortRef(t *testing.T) {
	assert.Equal(t, "v1.4.0", New(TriggerPushTag, "r", "refs/tags/v1.4.0", "c", nil, nil).ShortRef())
	assert.Equal(t, "main", New(TriggerPushBranch, "r", "refs/heads/main", "c", nil, nil).ShortRef())
}

func TestScopedSecrets(t *testing.T) {
	r := New(TriggerPushTag, "r", "refs/tags/v1.0.0", "c", map[string]string{
		"API_USER":  "u",
		"API_TOKEN": "t",
	}, nil)

	t.Run("explicit subset", func(t *testing.T) {
		got, err := r.ScopedSecrets([]string{"API_TOKEN"}, false)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"API_TOKEN": "t"}, got)
	})

	t.Run("inherit all", func(t *testing.T) {
		got, err := r.ScopedSecrets(nil, true)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("empty set by default", func(t *testing.T) {
		got, err := r.ScopedSecrets(nil, false)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unknown secret name is an error", func(t *testing.T) {
		_, err := r.ScopedSecrets([]string{"REGISTRY_TOKEN"}, false)
		assert.ErrorContains(t, err, "not available")
	})
}
