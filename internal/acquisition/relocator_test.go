package acquisition

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/italolelis/aax_downloader/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stagedPair(t *testing.T, root string) StagingPaths {
	t.Helper()

	paths := artifactPaths(filestore.ValidFilename, root, validItem(), "aax", "json")
	require.NoError(t, os.WriteFile(paths.Content, []byte("content"), 0o644))
	require.NoError(t, WriteSidecar(paths.Sidecar, &DownloadLicense{DownloadURL: "https://cdn.example.com/b"}))

	return paths
}

func TestRenameRelocator_MovesPair(t *testing.T) {
	base := t.TempDir()
	from := stagedPair(t, filepath.Join(base))
	to := artifactPaths(filestore.ValidFilename, filepath.Join(base, "final", "nested"), validItem(), "aax", "json")

	require.NoError(t, RenameRelocator{}.Relocate(from, to))

	assert.NoFileExists(t, from.Content)
	assert.NoFileExists(t, from.Sidecar)
	assert.FileExists(t, to.Content)
	assert.FileExists(t, to.Sidecar)

	lic, err := ReadSidecar(to.Sidecar)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/b", lic.DownloadURL)
}

func TestRenameRelocator_OverwritesExisting(t *testing.T) {
	base := t.TempDir()
	to := artifactPaths(filestore.ValidFilename, filepath.Join(base, "final"), validItem(), "aax", "json")
	require.NoError(t, os.MkdirAll(filepath.Dir(to.Content), 0o755))
	require.NoError(t, os.WriteFile(to.Content, []byte("old"), 0o644))

	require.NoError(t, RenameRelocator{}.Relocate(stagedPair(t, base), to))

	data, err := os.ReadFile(to.Content)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestRenameRelocator_MissingSidecarLeavesContentMoved(t *testing.T) {
	base := t.TempDir()
	from := stagedPair(t, base)
	require.NoError(t, os.Remove(from.Sidecar))
	to := artifactPaths(filestore.ValidFilename, filepath.Join(base, "final"), validItem(), "aax", "json")

	err := RenameRelocator{}.Relocate(from, to)

	var rErr *RelocationError
	require.True(t, errors.As(err, &rErr))
	assert.True(t, rErr.ContentMoved)
	assert.Equal(t, from.Sidecar, rErr.From)
	assert.FileExists(t, to.Content)
	assert.NoFileExists(t, to.Sidecar)
}

func TestRenameRelocator_MissingContent(t *testing.T) {
	base := t.TempDir()
	from := artifactPaths(filestore.ValidFilename, base, validItem(), "aax", "json")
	to := artifactPaths(filestore.ValidFilename, filepath.Join(base, "final"), validItem(), "aax", "json")

	err := RenameRelocator{}.Relocate(from, to)

	var rErr *RelocationError
	require.True(t, errors.As(err, &rErr))
	assert.False(t, rErr.ContentMoved)
}

func TestArtifactPaths_ShareBaseName(t *testing.T) {
	paths := artifactPaths(filestore.ValidFilename, "/srv/final", validItem(), "aax", "json")

	assert.Equal(t, "/srv/final/The Hobbit [B0001].aax", filepath.ToSlash(paths.Content))
	assert.Equal(t, "/srv/final/The Hobbit [B0001].json", filepath.ToSlash(paths.Sidecar))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	require.NoError(t, copyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.NoFileExists(t, dst+".partial")
}
