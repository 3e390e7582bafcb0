package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/italolelis/aax_downloader/internal/acquisition"
	"github.com/italolelis/aax_downloader/internal/downloader/progress"
	"github.com/italolelis/aax_downloader/internal/logctx"
)

const (
	dirPerm  = 0755
	filePerm = 0644

	defaultProgressInterval = int64(10 * 1024 * 1024) // 10MB
)

// Option configures a Downloader.
type Option func(*Downloader)

// WithUserAgent sets the User-Agent header sent with every content request.
func WithUserAgent(ua string) Option {
	return func(d *Downloader) { d.userAgent = ua }
}

// WithProgressInterval sets how many bytes pass between progress reports.
func WithProgressInterval(n int64) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.progressInterval = n
		}
	}
}

// Downloader streams content over HTTP into a local file.
// It only cares about the transport: a 2xx response is written out whatever its body looks like.
type Downloader struct {
	client           *http.Client
	userAgent        string
	progressInterval int64
}

// New creates a Downloader. A nil client means http.DefaultClient.
func New(client *http.Client, opts ...Option) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}

	d := &Downloader{
		client:           client,
		progressInterval: defaultProgressInterval,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Download fetches url into targetPath and returns the number of bytes written.
// Transport failures and non-2xx responses are returned as *acquisition.TransferError.
// On failure or cancellation mid-stream the partial file is left at targetPath.
func (d *Downloader) Download(ctx context.Context, url, targetPath string, onProgress func(written, total int64)) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &acquisition.TransferError{URL: url, Path: targetPath, Err: fmt.Errorf("failed to build request: %w", err)}
	}

	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, &acquisition.TransferError{URL: url, Path: targetPath, Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return 0, &acquisition.TransferError{
			URL:        url,
			Path:       targetPath,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", resp.Status),
		}
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), dirPerm); err != nil {
		return 0, &acquisition.TransferError{URL: url, Path: targetPath, Err: fmt.Errorf("failed to create target directory: %w", err)}
	}

	out, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return 0, &acquisition.TransferError{URL: url, Path: targetPath, Err: fmt.Errorf("failed to create target file: %w", err)}
	}

	logger.InfoContext(ctx, "downloading file", "file_path", targetPath, "file_size", humanize.Bytes(uint64(max(resp.ContentLength, 0))))

	written, err := d.writeFile(ctx, out, resp.Body, targetPath, resp.ContentLength, onProgress)
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close target file: %w", closeErr)
	}

	if err != nil {
		return written, &acquisition.TransferError{URL: url, Path: targetPath, Written: written, Err: err}
	}

	logger.DebugContext(ctx, "downloaded and saved file", "target", targetPath, "size", humanize.Bytes(uint64(written)))

	return written, nil
}

func (d *Downloader) writeFile(
	ctx context.Context,
	out *os.File,
	reader io.Reader,
	targetPath string,
	totalBytes int64,
	onProgress func(written, total int64),
) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	progressCb := func(written int64, total int64) {
		if total > 0 {
			logger.DebugContext(ctx, "download progress",
				"file_path", targetPath,
				"downloaded", humanize.Bytes(uint64(written)),
				"total", humanize.Bytes(uint64(total)),
				"percent", humanize.FtoaWithDigits(float64(written)*100/float64(total), 2))
		} else {
			logger.DebugContext(ctx, "download progress", "file_path", targetPath, "downloaded", humanize.Bytes(uint64(written)))
		}

		if onProgress != nil {
			onProgress(written, total)
		}
	}
	pr := progress.NewReader(reader, totalBytes, d.progressInterval, progressCb)

	if _, err := io.Copy(out, pr); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}

		return pr.Written(), fmt.Errorf("failed to copy file: %w", err)
	}

	if err := out.Sync(); err != nil {
		return pr.Written(), fmt.Errorf("failed to sync file: %w", err)
	}

	return pr.Written(), nil
}
