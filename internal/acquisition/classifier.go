package acquisition

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

const (
	// MinContentSize is the largest byte count still treated as a failed transfer.
	// Broken downloads leave 0-33 bytes behind and the outage notice is 52 bytes.
	MinContentSize = 100
	// DefaultSettleDelay is waited after a transfer before the file is inspected.
	DefaultSettleDelay = 100 * time.Millisecond

	serviceUnavailableMessage = "Content Delivery Companion Service is not available."
	maxDiagnosticContents     = 512
)

// Verdict is the outcome of inspecting a finished transfer. The zero value is the pessimistic one.
type Verdict int

const (
	VerdictCorruptOrUnknown Verdict = iota
	VerdictServiceUnavailable
	VerdictSuccess
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictServiceUnavailable:
		return "service_unavailable"
	default:
		return "corrupt_or_unknown"
	}
}

// Classification is what a Classifier learned about a staged file.
type Classification struct {
	Verdict  Verdict
	Length   int64
	Contents string // text of the file for failed verdicts
}

// Classifier decides whether a finished transfer produced usable content.
// On a failed verdict it removes the staged file before returning.
type Classifier interface {
	Classify(ctx context.Context, path string) (Classification, error)
}

// SizeClassifier judges a transfer by its size: anything above MinContentSize bytes is content.
// Smaller files are read as text to tell the service outage notice from other garbage.
type SizeClassifier struct {
	SettleDelay time.Duration
}

// NewSizeClassifier returns a SizeClassifier that waits settle before inspecting a file.
func NewSizeClassifier(settle time.Duration) *SizeClassifier {
	return &SizeClassifier{SettleDelay: settle}
}

func (c *SizeClassifier) Classify(ctx context.Context, path string) (Classification, error) {
	if err := settle(ctx, c.SettleDelay); err != nil {
		return Classification{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return Classification{}, fmt.Errorf("failed to stat staged file: %w", err)
	}

	result := Classification{Length: info.Size()}

	if result.Length > MinContentSize {
		result.Verdict = VerdictSuccess

		return result, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("failed to read staged file: %w", err)
	}

	result.Contents = string(contents)
	if isServiceUnavailable(result.Contents) {
		result.Verdict = VerdictServiceUnavailable
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return result, fmt.Errorf("failed to remove staged file: %w", err)
	}

	return result, nil
}

func isServiceUnavailable(contents string) bool {
	return len(contents) >= len(serviceUnavailableMessage) &&
		strings.EqualFold(contents[:len(serviceUnavailableMessage)], serviceUnavailableMessage)
}

func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncateContents(s string) string {
	if len(s) <= maxDiagnosticContents {
		return s
	}

	return s[:maxDiagnosticContents] + "..."
}
