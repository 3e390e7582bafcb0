package acquisition

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceUnavailable marks a transfer that produced the service's "not available" body.
	// It is transient; a wrapping scheduler may retry it.
	ErrServiceUnavailable = errors.New("content delivery service is not available")
	// ErrCorrupt marks a transfer that produced too few bytes to be real content.
	ErrCorrupt = errors.New("error downloading file")
)

// PreconditionError is returned when an item lacks data required to request a license.
// Nothing has been created on disk or requested over the network when it is returned.
type PreconditionError struct {
	ItemID string
	Title  string // already truncated for display
	Field  string // the missing field
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s [%s]\nCannot download book. %s is not known. Try re-importing the account which owns this book.",
		e.Title, e.ItemID, e.Field)
}

// LicenseError wraps a failure of the license collaborator.
type LicenseError struct {
	ItemID string
	Reason string
	Err    error
}

func (e *LicenseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to acquire license for %s: %s: %v", e.ItemID, e.Reason, e.Err)
	}

	return fmt.Sprintf("failed to acquire license for %s: %s", e.ItemID, e.Reason)
}

func (e *LicenseError) Unwrap() error {
	return e.Err
}

// TransferError is a transport level download failure. Any partial file is left at Path.
type TransferError struct {
	URL        string
	Path       string
	StatusCode int   // HTTP status, 0 when the failure happened below HTTP
	Written    int64 // bytes written to Path before the failure
	Err        error
}

func (e *TransferError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transfer failed for %s (HTTP %d)", e.Path, e.StatusCode)
	}

	return fmt.Sprintf("transfer failed for %s after %d bytes: %v", e.Path, e.Written, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Diagnostics is the context attached to a failed classification, enough to tell a transient outage
// from a corrupt transfer without downloading again.
type Diagnostics struct {
	Title       string `json:"title"`
	ItemID      string `json:"item_id"`
	Locale      string `json:"locale"`
	Account     string `json:"account"` // masked
	StagingPath string `json:"staging_path"`
	Length      int64  `json:"length"`
	Contents    string `json:"contents"`
}

// ClassificationError is returned when the downloaded bytes are not plausible content.
type ClassificationError struct {
	Verdict     Verdict
	Diagnostics Diagnostics
	Err         error // underlying I/O failure, if any
}

func (e *ClassificationError) Error() string {
	switch e.Verdict {
	case VerdictServiceUnavailable:
		return serviceUnavailableMessage
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", ErrCorrupt, e.Err)
		}

		return ErrCorrupt.Error()
	}
}

// Is lets errors.Is match the verdict sentinels.
func (e *ClassificationError) Is(target error) bool {
	switch target {
	case ErrServiceUnavailable:
		return e.Verdict == VerdictServiceUnavailable
	case ErrCorrupt:
		return e.Verdict != VerdictServiceUnavailable
	}

	return false
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// RelocationError is returned when moving the artifact to final storage fails.
// When ContentMoved is true the content file already sits in final storage but its sidecar does not.
type RelocationError struct {
	From         string
	To           string
	ContentMoved bool
	Err          error
}

func (e *RelocationError) Error() string {
	return fmt.Sprintf("failed to move %s to %s: %v", e.From, e.To, e.Err)
}

func (e *RelocationError) Unwrap() error {
	return e.Err
}

// VerificationError is returned when the pipeline finished but the final artifact is not where it should be.
type VerificationError struct {
	ItemID string
	Path   string
	Err    error // error from the existence check, if any
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("downloaded artifact cannot be found: %s", e.Path)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}
