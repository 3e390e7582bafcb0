package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/italolelis/aax_downloader/internal/storage"
)

const selectColumns = `SELECT item_id, title, status, failure_kind, reason, final_path, attempts, attempted_at, updated_at, locked_by
	FROM acquisitions`

// AcquisitionRepository implements storage.AcquisitionRepository on SQLite.
type AcquisitionRepository struct {
	db *sql.DB
}

func NewAcquisitionRepository(db *sql.DB) *AcquisitionRepository {
	return &AcquisitionRepository{db: db}
}

// GetAcquisitions returns every ledger entry, most recently updated first.
func (r *AcquisitionRepository) GetAcquisitions(ctx context.Context) ([]storage.AcquisitionRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY updated_at DESC, item_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query acquisitions: %w", err)
	}
	defer rows.Close()

	var records []storage.AcquisitionRecord

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, *record)
	}

	return records, rows.Err()
}

func (r *AcquisitionRepository) GetAcquisition(ctx context.Context, itemID string) (*storage.AcquisitionRecord, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE item_id = ?`, itemID)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}

	return record, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*storage.AcquisitionRecord, error) {
	var (
		record                 storage.AcquisitionRecord
		attemptedAt, updatedAt string
		lockedBy               sql.NullString
	)

	err := s.Scan(
		&record.ItemID, &record.Title, &record.Status, &record.FailureKind, &record.Reason,
		&record.FinalPath, &record.Attempts, &attemptedAt, &updatedAt, &lockedBy,
	)
	if err != nil {
		return nil, err
	}

	record.LockedBy = lockedBy.String

	if record.AttemptedAt, err = time.Parse(timeLayout, attemptedAt); err != nil {
		return nil, fmt.Errorf("invalid attempted_at for %s: %w", record.ItemID, err)
	}

	if record.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at for %s: %w", record.ItemID, err)
	}

	return &record, nil
}
