package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("partial"), 0o644))

	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestDeleteExpiredFiles(t *testing.T) {
	dir := t.TempDir()

	old := filepath.Join(dir, "Old [B0001].aax")
	nested := filepath.Join(dir, "sub", "Older [B0002].aax")
	fresh := filepath.Join(dir, "Fresh [B0003].aax")
	busy := filepath.Join(dir, "Busy [B0004].aax")

	writeAged(t, old, 48*time.Hour)
	writeAged(t, nested, 96*time.Hour)
	writeAged(t, fresh, time.Minute)
	writeAged(t, busy, 48*time.Hour)

	deleted, err := DeleteExpiredFiles(context.Background(), dir, 24*time.Hour, func(path string) bool {
		return path == busy
	})
	require.NoError(t, err)

	assert.Equal(t, 2, deleted)
	assert.NoFileExists(t, old)
	assert.NoFileExists(t, nested)
	assert.FileExists(t, fresh)
	assert.FileExists(t, busy)
}

func TestDeleteExpiredFiles_MissingDir(t *testing.T) {
	deleted, err := DeleteExpiredFiles(context.Background(), filepath.Join(t.TempDir(), "nope"), time.Hour, nil)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dir := t.TempDir()
	done := make(chan struct{})

	go func() {
		Run(ctx, dir, time.Millisecond, time.Hour, nil)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not stop")
	}
}
