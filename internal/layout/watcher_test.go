package layout

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dash.yaml")
	require.NoError(t, os.WriteFile(path, []byte("layout: []\n"), 0o644))

	w, err := NewWatcher([]string{path}, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("layout:\n  - entity: sensor.a\n"), 0o644))

	select {
	case got := <-w.Events():
		assert.True(t, strings.HasSuffix(got, "dash.yaml"), "got %q", got)
	case <-time.After(3 * time.Second):
		t.Fatal("no change event within 3s")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dash.yaml")
	require.NoError(t, os.WriteFile(path, []byte("layout: []\n"), 0o644))

	w, err := NewWatcher([]string{path}, nil)
	require.NoError(t, err)
	defer w.Close()

	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("unrelated"), 0o644))

	select {
	case got := <-w.Events():
		t.Fatalf("unexpected event for %q", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dash.yaml")
	require.NoError(t, os.WriteFile(path, []byte("layout: []\n"), 0o644))

	w, err := NewWatcher([]string{path}, nil)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
