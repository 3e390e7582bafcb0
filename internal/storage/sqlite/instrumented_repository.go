package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/italolelis/aax_downloader/internal/storage"
	"github.com/italolelis/aax_downloader/internal/telemetry"
)

// InstrumentedAcquisitionRepository wraps AcquisitionRepository with telemetry.
type InstrumentedAcquisitionRepository struct {
	repo      *AcquisitionRepository
	telemetry *telemetry.Telemetry
}

// NewInstrumentedAcquisitionRepository creates a new instrumented acquisition repository.
func NewInstrumentedAcquisitionRepository(db *sql.DB, tel *telemetry.Telemetry) *InstrumentedAcquisitionRepository {
	return &InstrumentedAcquisitionRepository{
		repo:      NewAcquisitionRepository(db),
		telemetry: tel,
	}
}

// GetAcquisitions retrieves all ledger entries with telemetry.
func (r *InstrumentedAcquisitionRepository) GetAcquisitions(ctx context.Context) ([]storage.AcquisitionRecord, error) {
	var result []storage.AcquisitionRecord

	err := r.telemetry.InstrumentDBOperation(ctx, "get_acquisitions", func(ctx context.Context) error {
		var err error

		result, err = r.repo.GetAcquisitions(ctx)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetAcquisition retrieves one ledger entry with telemetry.
func (r *InstrumentedAcquisitionRepository) GetAcquisition(ctx context.Context, itemID string) (*storage.AcquisitionRecord, error) {
	var result *storage.AcquisitionRecord

	err := r.telemetry.InstrumentDBOperation(ctx, "get_acquisition", func(ctx context.Context) error {
		var err error

		result, err = r.repo.GetAcquisition(ctx, itemID)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ClaimItem claims an item with telemetry.
func (r *InstrumentedAcquisitionRepository) ClaimItem(ctx context.Context, itemID, title, instanceID string) (bool, error) {
	var result bool

	err := r.telemetry.InstrumentDBOperation(ctx, "claim_item", func(ctx context.Context) error {
		var err error

		result, err = r.repo.ClaimItem(ctx, itemID, title, instanceID)

		return err
	})
	if err != nil {
		return false, err
	}

	return result, nil
}

// RecordResult records an attempt result with telemetry.
func (r *InstrumentedAcquisitionRepository) RecordResult(ctx context.Context, itemID string, result storage.Result) error {
	return r.telemetry.InstrumentDBOperation(ctx, "record_result", func(ctx context.Context) error {
		return r.repo.RecordResult(ctx, itemID, result)
	})
}

// ReleaseStaleClaims releases abandoned claims with telemetry.
func (r *InstrumentedAcquisitionRepository) ReleaseStaleClaims(ctx context.Context, before time.Time) (int64, error) {
	var released int64

	err := r.telemetry.InstrumentDBOperation(ctx, "release_stale_claims", func(ctx context.Context) error {
		var err error

		released, err = r.repo.ReleaseStaleClaims(ctx, before)

		return err
	})

	return released, err
}
