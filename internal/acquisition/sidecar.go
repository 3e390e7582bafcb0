package acquisition

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/italolelis/aax_downloader/internal/filestore"
)

const filePerm = 0644

// WriteSidecar stores the license as indented JSON at path.
func WriteSidecar(path string, license *DownloadLicense) error {
	data, err := json.MarshalIndent(license, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode license: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), filePerm); err != nil {
		return fmt.Errorf("failed to write sidecar: %w", err)
	}

	return nil
}

// ReadSidecar loads a license written by WriteSidecar.
func ReadSidecar(path string) (*DownloadLicense, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sidecar: %w", err)
	}

	var license DownloadLicense
	if err := json.Unmarshal(data, &license); err != nil {
		return nil, fmt.Errorf("failed to decode sidecar %s: %w", path, err)
	}

	return &license, nil
}

// artifactPaths derives the content and sidecar paths for item under root.
// The sidecar always shares the content file's base name.
func artifactPaths(filename FilenameFunc, root string, item ContentItemRef, contentExt, sidecarExt string) ArtifactPaths {
	content := filename(root, item.Title, contentExt, item.ID)

	return ArtifactPaths{
		Content: content,
		Sidecar: filestore.ReplaceExtension(content, sidecarExt),
	}
}
