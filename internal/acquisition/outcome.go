package acquisition

import (
	"context"
	"errors"
)

// Status is the terminal state of one acquisition attempt.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// FailureKind classifies why an attempt failed.
type FailureKind string

const (
	FailurePrecondition       FailureKind = "precondition"
	FailureLicense            FailureKind = "license"
	FailureTransfer           FailureKind = "transfer"
	FailureServiceUnavailable FailureKind = "service_unavailable"
	FailureCorrupt            FailureKind = "corrupt_or_unknown"
	FailureRelocation         FailureKind = "relocation"
	FailureVerification       FailureKind = "verification"
	FailureUnknown            FailureKind = "unknown"
)

// Failure describes a failed attempt.
type Failure struct {
	Kind        FailureKind  `json:"kind"`
	Reason      string       `json:"reason"`
	Retryable   bool         `json:"retryable"`
	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
}

// Outcome is the terminal value of an attempt: either Paths or Failure is set, never both.
type Outcome struct {
	ItemID  string      `json:"item_id"`
	Status  Status      `json:"status"`
	Paths   *FinalPaths `json:"paths,omitempty"`
	Failure *Failure    `json:"failure,omitempty"`
}

// NewOutcome folds the result of Acquirer.Acquire into an Outcome.
func NewOutcome(itemID string, paths FinalPaths, err error) Outcome {
	if err == nil {
		return Outcome{ItemID: itemID, Status: StatusCompleted, Paths: &paths}
	}

	failure := &Failure{
		Kind:      KindOf(err),
		Reason:    err.Error(),
		Retryable: errors.Is(err, ErrServiceUnavailable),
	}

	var cErr *ClassificationError
	if errors.As(err, &cErr) {
		diag := cErr.Diagnostics
		failure.Diagnostics = &diag
	}

	return Outcome{ItemID: itemID, Status: StatusFailed, Failure: failure}
}

// KindOf maps an error returned by the pipeline to its FailureKind.
func KindOf(err error) FailureKind {
	var (
		pErr *PreconditionError
		lErr *LicenseError
		tErr *TransferError
		cErr *ClassificationError
		rErr *RelocationError
		vErr *VerificationError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &pErr):
		return FailurePrecondition
	case errors.As(err, &lErr):
		return FailureLicense
	case errors.As(err, &tErr), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureTransfer
	case errors.As(err, &cErr):
		if cErr.Verdict == VerdictServiceUnavailable {
			return FailureServiceUnavailable
		}

		return FailureCorrupt
	case errors.As(err, &rErr):
		return FailureRelocation
	case errors.As(err, &vErr):
		return FailureVerification
	}

	return FailureUnknown
}
