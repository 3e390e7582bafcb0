package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"strconv"
	"time"
)

// ErrNotFound is returned when the ledger holds no record for an item.
var ErrNotFound = errors.New("acquisition record not found")

// Ledger statuses. Terminal statuses mirror acquisition outcomes.
const (
	StatusAcquiring = "acquiring"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// AcquisitionRecord is the ledger entry for one item. It reflects the latest attempt.
type AcquisitionRecord struct {
	ItemID      string    `json:"item_id"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	FailureKind string    `json:"failure_kind,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	FinalPath   string    `json:"final_path,omitempty"`
	Attempts    int       `json:"attempts"`
	AttemptedAt time.Time `json:"attempted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LockedBy    string    `json:"locked_by,omitempty"`
}

// Result is the terminal state written back once an attempt ends.
type Result struct {
	Status      string
	FailureKind string
	Reason      string
	FinalPath   string
}

type AcquisitionReadRepository interface {
	GetAcquisitions(ctx context.Context) ([]AcquisitionRecord, error)
	GetAcquisition(ctx context.Context, itemID string) (*AcquisitionRecord, error)
}

type AcquisitionWriteRepository interface {
	// ClaimItem marks the item as being acquired by instanceID. It returns false when another
	// attempt already holds the item.
	ClaimItem(ctx context.Context, itemID, title, instanceID string) (bool, error)
	// RecordResult stores the outcome of the attempt and releases the claim.
	RecordResult(ctx context.Context, itemID string, result Result) error
	// ReleaseStaleClaims fails claims taken before the cutoff, returning how many were released.
	ReleaseStaleClaims(ctx context.Context, before time.Time) (int64, error)
}

// AcquisitionRepository is the full ledger.
type AcquisitionRepository interface {
	AcquisitionReadRepository
	AcquisitionWriteRepository
}

// GenerateInstanceID returns a unique string for this process (hostname+pid+random).
func GenerateInstanceID() string {
	host, _ := os.Hostname()
	rnd := make([]byte, 4)
	_, _ = rand.Read(rnd)

	return host + "-" + strconv.Itoa(os.Getpid()) + "-" + hex.EncodeToString(rnd)
}
