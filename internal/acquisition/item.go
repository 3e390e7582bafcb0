package acquisition

import (
	"context"

	"github.com/italolelis/aax_downloader/internal/filestore"
)

// ContentItemRef identifies the item to acquire. It is supplied by the caller and is not modified.
type ContentItemRef struct {
	ID      string `json:"id" validate:"notblank"`
	Title   string `json:"title"`
	Account string `json:"account" validate:"notblank"`
	Locale  string `json:"locale" validate:"notblank"`
}

// DownloadLicense describes where the encrypted stream lives and what the decryption stage needs.
// It is written verbatim as the sidecar of the downloaded artifact.
type DownloadLicense struct {
	DownloadURL string `json:"download_url"`
	Key         string `json:"key,omitempty"`
	IV          string `json:"iv,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	// Metadata carries any additional license fields untouched.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ArtifactPaths is a content file and its sidecar. Both share the same base name.
type ArtifactPaths struct {
	Content string `json:"content"`
	Sidecar string `json:"sidecar"`
}

type (
	// StagingPaths locate an in-progress download.
	StagingPaths = ArtifactPaths
	// FinalPaths locate a relocated, verified artifact.
	FinalPaths = ArtifactPaths
)

// LicenseClient is the remote API collaborator that issues download licenses.
type LicenseClient interface {
	RequestLicense(ctx context.Context, itemID string) (*DownloadLicense, error)
}

// StreamDownloader transfers the bytes at url into targetPath and returns the number of bytes written.
type StreamDownloader interface {
	Download(ctx context.Context, url, targetPath string, onProgress func(written, total int64)) (int64, error)
}

// StorageLocator resolves the storage roots and checks for existing artifacts.
type StorageLocator interface {
	StagingRoot() string
	FinalRoot() string
	Exists(itemID string, kind filestore.ContentKind) (bool, error)
}

// FilenameFunc derives a collision-free path for an item under root.
type FilenameFunc func(root, title, ext, id string) string

// StatusSink receives human readable status messages and progress ticks. Delivery is fire-and-forget.
type StatusSink interface {
	Status(ctx context.Context, item ContentItemRef, message string)
	Progress(ctx context.Context, item ContentItemRef, written, total int64)
}
