package cleanup

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/italolelis/aax_downloader/internal/logctx"
)

// InUseFunc reports whether a staged file still belongs to a running attempt.
type InUseFunc func(path string) bool

// DeleteExpiredFiles removes files under dir not modified within keepDuration. Partial downloads
// left behind by failed transfers accumulate in staging; this sweeps them once they are old enough
// that nobody will inspect them. Files for which inUse returns true are skipped.
func DeleteExpiredFiles(ctx context.Context, dir string, keepDuration time.Duration, inUse InUseFunc) (int, error) {
	logger := logctx.LoggerFromContext(ctx)
	now := time.Now()
	deleted := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil // already deleted
			}

			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			logger.ErrorContext(ctx, "failed to stat file", "file", path, "err", err)

			return err
		}

		if now.Sub(info.ModTime()) <= keepDuration || (inUse != nil && inUse(path)) {
			return nil
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.ErrorContext(ctx, "failed to delete expired file", "file", path, "err", err)

			return err
		}

		deleted++

		logger.InfoContext(ctx, "deleted expired file", "file", path, "size", humanize.Bytes(uint64(info.Size())))

		return nil
	})

	return deleted, err
}

// Run sweeps dir every interval until ctx is done.
func Run(ctx context.Context, dir string, interval, keepDuration time.Duration, inUse InUseFunc) {
	logger := logctx.LoggerFromContext(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "cleanup goroutine shutting down")

			return
		case <-ticker.C:
			n, err := DeleteExpiredFiles(ctx, dir, keepDuration, inUse)
			if err != nil {
				logger.ErrorContext(ctx, "failed to delete expired staging files", "err", err)

				continue
			}

			if n > 0 {
				logger.InfoContext(ctx, "staging sweep finished", "deleted", n)
			}
		}
	}
}
