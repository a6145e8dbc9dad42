package buildstamp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherFiresIncrementalBuild(t *testing.T) {
	dir := t.TempDir()
	path := writeVersion(t, dir, "1.2.3.4\n")
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0755))

	ctrl := NewController(NewStore(path))
	w := NewWatcher([]string{dir}, WithDebounce(50*time.Millisecond))
	w.IgnoreController(ctrl)
	ctrl.Apply(w)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-errCh)
	}()

	// Keep touching the file until the watcher has registered it.
	var r Record
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(src, "main.js"), []byte("console.log(1)\n"), 0644)
		data, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		r, err = ParseRecord(string(data))
		return err == nil && r.Build > 4
	}, 5*time.Second, 100*time.Millisecond)

	assert.Equal(t, uint64(3), r.Patch)
}

func TestWatcherIgnoresOwnWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "VERSION")
	out := filepath.Join(dir, "version.json")
	ctrl := NewController(NewStore(path), WithTargets(Target{Type: TargetJSON, File: out}))

	w := NewWatcher([]string{dir})
	w.IgnoreController(ctrl)

	for _, p := range []string{path, ctrl.LockPath(), out} {
		assert.False(t, w.relevant(fsnotify.Event{Name: p, Op: fsnotify.Write}), p)
	}
	assert.True(t, w.relevant(fsnotify.Event{Name: filepath.Join(dir, "app.js"), Op: fsnotify.Write}))
	assert.True(t, w.relevant(fsnotify.Event{Name: filepath.Join(dir, "app.js"), Op: fsnotify.Remove}))
	assert.False(t, w.relevant(fsnotify.Event{Name: filepath.Join(dir, "app.js"), Op: fsnotify.Chmod}))
}

func TestWatcherMissingPath(t *testing.T) {
	w := NewWatcher([]string{filepath.Join(t.TempDir(), "missing")})
	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to watch")
}

func TestWatcherDefaultDebounce(t *testing.T) {
	assert.Equal(t, DefaultDebounce, NewWatcher(nil).debounce)
	assert.Equal(t, DefaultDebounce, NewWatcher(nil, WithDebounce(0)).debounce)
	assert.Equal(t, time.Second, NewWatcher(nil, WithDebounce(time.Second)).debounce)
}
