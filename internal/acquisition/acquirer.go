package acquisition

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/italolelis/aax_downloader/internal/filestore"
	"github.com/italolelis/aax_downloader/internal/logctx"
	"github.com/italolelis/aax_downloader/internal/telemetry"
)

const (
	DefaultContentExt = "aax"
	DefaultSidecarExt = "json"

	successStatusPrefix = "Successfully downloaded. Moved to: "
)

// Options tunes an Acquirer. Zero values fall back to the defaults noted on each field.
type Options struct {
	ContentExt string       // DefaultContentExt
	SidecarExt string       // DefaultSidecarExt
	Filename   FilenameFunc // filestore.ValidFilename
	Classifier Classifier   // NewSizeClassifier(DefaultSettleDelay)
	Relocator  Relocator    // RenameRelocator
	Sink       StatusSink   // discards everything
	Telemetry  *telemetry.Telemetry
}

// Acquirer runs the acquisition pipeline for one item at a time. It holds no per-attempt
// state, so independent items may be acquired concurrently with the same Acquirer.
type Acquirer struct {
	licenses   *LicenseAcquirer
	downloader StreamDownloader
	locator    StorageLocator

	contentExt string
	sidecarExt string
	filename   FilenameFunc
	classifier Classifier
	relocator  Relocator
	sink       StatusSink
	telemetry  *telemetry.Telemetry
}

func NewAcquirer(licenses LicenseClient, downloader StreamDownloader, locator StorageLocator, opts Options) *Acquirer {
	a := &Acquirer{
		licenses:   NewLicenseAcquirer(licenses),
		downloader: downloader,
		locator:    locator,
		contentExt: opts.ContentExt,
		sidecarExt: opts.SidecarExt,
		filename:   opts.Filename,
		classifier: opts.Classifier,
		relocator:  opts.Relocator,
		sink:       opts.Sink,
		telemetry:  opts.Telemetry,
	}

	if a.contentExt == "" {
		a.contentExt = DefaultContentExt
	}

	if a.sidecarExt == "" {
		a.sidecarExt = DefaultSidecarExt
	}

	if a.filename == nil {
		a.filename = filestore.ValidFilename
	}

	if a.classifier == nil {
		a.classifier = NewSizeClassifier(DefaultSettleDelay)
	}

	if a.relocator == nil {
		a.relocator = RenameRelocator{}
	}

	if a.sink == nil {
		a.sink = nopSink{}
	}

	return a
}

// NeedsAcquisition reports whether item still has to be downloaded: it does unless either the
// encrypted artifact or the decrypted audio for its identifier is already in storage.
func (a *Acquirer) NeedsAcquisition(item ContentItemRef) (bool, error) {
	for _, kind := range []filestore.ContentKind{filestore.KindAudio, filestore.KindEncrypted} {
		found, err := a.locator.Exists(item.ID, kind)
		if err != nil {
			return false, fmt.Errorf("failed to look up %s artifact for %s: %w", kind, item.ID, err)
		}

		if found {
			return false, nil
		}
	}

	return true, nil
}

// Acquire runs one attempt for item: validate, request a license, download into staging,
// classify the bytes, write the sidecar, relocate both files and verify the result.
// On success it returns the final paths; every failure is one of the typed errors in this package.
func (a *Acquirer) Acquire(ctx context.Context, item ContentItemRef) (FinalPaths, error) {
	ctx, logger := logctx.With(ctx, "item_id", item.ID, "locale", item.Locale)

	var final FinalPaths

	err := a.telemetry.InstrumentAcquisition(ctx, func(ctx context.Context) error {
		var err error

		final, err = a.run(ctx, item)

		return err
	})
	if err != nil {
		kind := KindOf(err)
		a.telemetry.RecordAcquisitionFailure(ctx, string(kind))

		logger.WarnContext(ctx, "acquisition failed", "kind", kind, "err", err)
		a.sink.Status(ctx, item, err.Error())

		return FinalPaths{}, err
	}

	return final, nil
}

func (a *Acquirer) run(ctx context.Context, item ContentItemRef) (FinalPaths, error) {
	logger := logctx.LoggerFromContext(ctx)

	if err := ValidatePreconditions(item); err != nil {
		return FinalPaths{}, err
	}

	var license *DownloadLicense

	err := a.telemetry.InstrumentOperation(ctx, "request_license", "acquisition", func(ctx context.Context) error {
		var err error

		license, err = a.licenses.Acquire(ctx, item)

		return err
	})
	if err != nil {
		return FinalPaths{}, err
	}

	staging := artifactPaths(a.filename, a.locator.StagingRoot(), item, a.contentExt, a.sidecarExt)

	logger.DebugContext(ctx, "license acquired, starting download", "staging_path", staging.Content)

	if err := a.download(ctx, item, license.DownloadURL, staging.Content); err != nil {
		return FinalPaths{}, err
	}

	if err := a.classify(ctx, item, staging.Content); err != nil {
		return FinalPaths{}, err
	}

	if err := WriteSidecar(staging.Sidecar, license); err != nil {
		removeStaged(staging)

		return FinalPaths{}, &RelocationError{From: staging.Content, To: staging.Sidecar, Err: err}
	}

	final := artifactPaths(a.filename, a.locator.FinalRoot(), item, a.contentExt, a.sidecarExt)

	err = a.telemetry.InstrumentOperation(ctx, "relocate", "acquisition", func(context.Context) error {
		return a.relocator.Relocate(staging, final)
	})
	if err != nil {
		var rErr *RelocationError
		if !errors.As(err, &rErr) {
			err = &RelocationError{From: staging.Content, To: final.Content, Err: err}
		}

		return FinalPaths{}, err
	}

	a.sink.Status(ctx, item, successStatusPrefix+final.Content)

	if err := verify(item, final); err != nil {
		return FinalPaths{}, err
	}

	logger.InfoContext(ctx, "acquisition completed", "path", final.Content)

	return final, nil
}

func (a *Acquirer) download(ctx context.Context, item ContentItemRef, url, target string) error {
	logger := logctx.LoggerFromContext(ctx)
	start := time.Now()

	var written int64

	err := a.telemetry.InstrumentOperation(ctx, "download", "acquisition", func(ctx context.Context) error {
		var err error

		written, err = a.downloader.Download(ctx, url, target, func(n, total int64) {
			a.sink.Progress(ctx, item, n, total)
		})

		return err
	})

	a.telemetry.RecordDownloadedBytes(ctx, written)

	if err != nil {
		var tErr *TransferError
		if !errors.As(err, &tErr) {
			err = &TransferError{URL: url, Path: target, Written: written, Err: err}
		}

		return err
	}

	logger.InfoContext(ctx, "download finished",
		"size", humanize.Bytes(uint64(written)),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return nil
}

// classify converts a failed verdict into a ClassificationError. A cancelled context during the
// settle delay counts as an interrupted transfer and keeps the file.
func (a *Acquirer) classify(ctx context.Context, item ContentItemRef, path string) error {
	logger := logctx.LoggerFromContext(ctx)

	result, err := a.classifier.Classify(ctx, path)
	if err != nil && ctx.Err() != nil {
		return &TransferError{Path: path, Written: result.Length, Err: ctx.Err()}
	}

	if err == nil {
		a.telemetry.RecordClassification(ctx, result.Verdict.String())

		if result.Verdict == VerdictSuccess {
			return nil
		}
	}

	cErr := &ClassificationError{
		Verdict: result.Verdict,
		Err:     err,
		Diagnostics: Diagnostics{
			Title:       DisplayTitle(item.Title),
			ItemID:      item.ID,
			Locale:      item.Locale,
			Account:     MaskAccount(item.Account),
			StagingPath: path,
			Length:      result.Length,
			Contents:    truncateContents(result.Contents),
		},
	}

	// An I/O failure while classifying still must not leave the staged file behind.
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			logger.WarnContext(ctx, "failed to remove staged file", "path", path, "err", rmErr)
		}
	}

	logger.ErrorContext(ctx, "downloaded file failed classification",
		"verdict", result.Verdict.String(),
		"title", cErr.Diagnostics.Title,
		"account", cErr.Diagnostics.Account,
		"staging_path", path,
		"length", result.Length,
		"contents", cErr.Diagnostics.Contents,
		"err", err,
	)

	return cErr
}

func verify(item ContentItemRef, final FinalPaths) error {
	info, err := os.Stat(final.Content)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = nil
		}

		return &VerificationError{ItemID: item.ID, Path: final.Content, Err: err}
	}

	if info.IsDir() {
		return &VerificationError{ItemID: item.ID, Path: final.Content}
	}

	return nil
}

// removeStaged is best effort; the staging sweeper collects anything left behind.
func removeStaged(paths StagingPaths) {
	_ = os.Remove(paths.Content)
	_ = os.Remove(paths.Sidecar)
}

type nopSink struct{}

func (nopSink) Status(context.Context, ContentItemRef, string)        {}
func (nopSink) Progress(context.Context, ContentItemRef, int64, int64) {}
