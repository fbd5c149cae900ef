package shader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsPermutations(t *testing.T) {
	dir := t.TempDir()
	w, err := Watch(dir, ".glsl")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	name := PermutationName("GLTFPbrPass", Vertex, 0x1234, ".glsl")
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("void main() {}"), 0644))

	select {
	case got := <-w.Changes():
		assert.Equal(t, name, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	require.NoError(t, w.Close())
	for range w.Changes() {
	}
	assert.False(t, w.Drain(), "closed watcher reports nothing")
}

func TestWatchMissingDir(t *testing.T) {
	_, err := Watch(filepath.Join(t.TempDir(), "missing"), ".glsl")
	assert.Error(t, err)
}
