package acquisition

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

const dirPerm = 0755

// Relocator moves a staged artifact and its sidecar into final storage.
type Relocator interface {
	Relocate(from StagingPaths, to FinalPaths) error
}

// RenameRelocator moves the content file first and the sidecar second. A failure on the second move
// leaves the content relocated without its sidecar and is reported with RelocationError.ContentMoved set.
// Destinations are overwritten, so relocating the same item twice ends in the same place.
type RenameRelocator struct{}

func (RenameRelocator) Relocate(from StagingPaths, to FinalPaths) error {
	if err := os.MkdirAll(filepath.Dir(to.Content), dirPerm); err != nil {
		return &RelocationError{From: from.Content, To: to.Content, Err: err}
	}

	if err := moveFile(from.Content, to.Content); err != nil {
		return &RelocationError{From: from.Content, To: to.Content, Err: err}
	}

	if err := moveFile(from.Sidecar, to.Sidecar); err != nil {
		return &RelocationError{From: from.Sidecar, To: to.Sidecar, ContentMoved: true, Err: err}
	}

	return nil
}

// moveFile renames src to dst and falls back to copy and delete across filesystems.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("failed to copy across devices: %w", err)
	}

	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".partial"

	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)

		return err
	}

	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)

		return err
	}

	if err := out.Close(); err != nil {
		os.Remove(tmp)

		return err
	}

	return os.Rename(tmp, dst)
}
