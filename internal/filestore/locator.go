package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const dirPerm = 0755

// ContentKind names what kind of artifact an existence check looks for.
type ContentKind string

const (
	// KindEncrypted is the DRM protected download as it leaves the acquisition pipeline.
	KindEncrypted ContentKind = "encrypted"
	// KindAudio is the decrypted audio a later stage produces in the library.
	KindAudio ContentKind = "audio"
)

// LocatorConfig holds the roots and extensions a Locator resolves against.
type LocatorConfig struct {
	StagingRoot string
	FinalRoot   string
	// LibraryRoot is where decrypted audio lives. Optional.
	LibraryRoot string
	ContentExt  string
	AudioExts   []string
}

// Locator resolves the storage roots and answers whether an artifact already exists for an item.
type Locator struct {
	cfg LocatorConfig
}

// NewLocator creates the staging and final roots when missing.
func NewLocator(cfg LocatorConfig) (*Locator, error) {
	if cfg.StagingRoot == "" || cfg.FinalRoot == "" {
		return nil, errors.New("staging and final roots are required")
	}

	for _, dir := range []string{cfg.StagingRoot, cfg.FinalRoot} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, fmt.Errorf("failed to create storage root %s: %w", dir, err)
		}
	}

	if cfg.ContentExt == "" {
		cfg.ContentExt = "aax"
	}

	if len(cfg.AudioExts) == 0 {
		cfg.AudioExts = []string{"m4b", "mp3"}
	}

	return &Locator{cfg: cfg}, nil
}

func (l *Locator) StagingRoot() string { return l.cfg.StagingRoot }

func (l *Locator) FinalRoot() string { return l.cfg.FinalRoot }

// Exists reports whether an artifact of the given kind carrying the item's identifier tag is present.
func (l *Locator) Exists(id string, kind ContentKind) (bool, error) {
	var (
		root string
		exts []string
	)

	switch kind {
	case KindEncrypted:
		root, exts = l.cfg.FinalRoot, []string{l.cfg.ContentExt}
	case KindAudio:
		root, exts = l.cfg.LibraryRoot, l.cfg.AudioExts
	default:
		return false, fmt.Errorf("unknown content kind %q", kind)
	}

	if root == "" {
		return false, nil
	}

	return findTagged(root, IDTag(id), exts)
}

var errFound = errors.New("found")

func findTagged(root, tag string, exts []string) (bool, error) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if d.IsDir() || !strings.HasSuffix(strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())), tag) {
			return nil
		}

		ext := strings.TrimPrefix(filepath.Ext(d.Name()), ".")
		for _, want := range exts {
			if strings.EqualFold(ext, strings.Trim(want, ".")) {
				return errFound
			}
		}

		return nil
	})

	switch {
	case errors.Is(err, errFound):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	return false, nil
}
