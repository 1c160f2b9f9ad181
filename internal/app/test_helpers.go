package app

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest writes pipeline fixtures into a temp dir and constructs an
// app around them with the compiled-in step modules.
func SetupAppTest(t *testing.T, pipelines map[string]string, mutate func(*FileConfig)) (*App, *SafeBuffer) {
	t.Helper()

	dir := t.TempDir()
	for name, content := range pipelines {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	cfg := &FileConfig{
		Repo:        "acme/marked-space",
		PipelineDir: dir,
		WorkDir:     t.TempDir(),
		Workers:     4,
		LogLevel:    "debug",
	}
	if mutate != nil {
		mutate(cfg)
	}

	logBuffer := &SafeBuffer{}
	testApp, err := New(logBuffer, cfg, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		if os.Getenv("SHIPLINE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
