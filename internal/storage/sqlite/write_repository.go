package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/italolelis/aax_downloader/internal/storage"
)

// ClaimItem atomically marks the item as acquiring and locked by instanceID unless another
// attempt holds it.
func (r *AcquisitionRepository) ClaimItem(ctx context.Context, itemID, title, instanceID string) (bool, error) {
	now := time.Now().UTC().Format(timeLayout)

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO acquisitions (item_id, title, status, attempts, attempted_at, updated_at, locked_by)
		VALUES (?, ?, 'acquiring', 1, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			title = excluded.title,
			status = 'acquiring',
			failure_kind = '',
			reason = '',
			attempts = acquisitions.attempts + 1,
			attempted_at = excluded.attempted_at,
			updated_at = excluded.updated_at,
			locked_by = excluded.locked_by
		WHERE acquisitions.locked_by IS NULL OR acquisitions.locked_by = ''
	`, itemID, title, now, now, instanceID)
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", itemID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// RecordResult stores the terminal state of the latest attempt and releases the claim.
func (r *AcquisitionRepository) RecordResult(ctx context.Context, itemID string, result storage.Result) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE acquisitions SET
			status = ?, failure_kind = ?, reason = ?, final_path = ?, updated_at = ?, locked_by = NULL
		WHERE item_id = ?
	`, result.Status, result.FailureKind, result.Reason, result.FinalPath, time.Now().UTC().Format(timeLayout), itemID)
	if err != nil {
		return fmt.Errorf("failed to record result for %s: %w", itemID, err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// ReleaseStaleClaims marks claims taken before the cutoff as failed so the items can be claimed again.
// It recovers items locked by a process that died mid-attempt.
func (r *AcquisitionRepository) ReleaseStaleClaims(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE acquisitions SET
			status = 'failed', failure_kind = 'unknown', reason = 'attempt abandoned', updated_at = ?, locked_by = NULL
		WHERE locked_by IS NOT NULL AND locked_by != '' AND attempted_at < ?
	`, time.Now().UTC().Format(timeLayout), before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to release stale claims: %w", err)
	}

	return res.RowsAffected()
}
