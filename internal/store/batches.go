package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/brewlog/internal/brew"
)

const batchColumns = `id, recipe_id, batch_name, start_date, expected_end_date, actual_end_date, status, notes, created_at, updated_at`

// CreateBatchWithAlarms inserts a batch and its planned alarms in one
// transaction. Each alarm's BatchID is set to the new batch id. Either the
// batch and every alarm are stored, or nothing is.
func (s *Store) CreateBatchWithAlarms(ctx context.Context, b brew.Batch, alarms []brew.AlarmItem) (brew.Batch, []brew.AlarmItem, error) {
	now := s.stamp()
	b.CreatedAt, b.UpdatedAt = now, now
	if b.Status == "" {
		b.Status = brew.BatchFermenting
	}

	out := make([]brew.AlarmItem, len(alarms))
	copy(out, alarms)

	err := s.withTx(ctx, "create batch", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO batches
			(recipe_id, batch_name, start_date, expected_end_date, actual_end_date, status, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, b.RecipeID, b.BatchName, toMillis(b.StartDate), toMillis(b.ExpectedEndDate),
			nullMillis(b.ActualEndDate), string(b.Status), b.Notes, toMillis(now), toMillis(now))
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("insert batch: recipe %d: %w", b.RecipeID, brew.ErrNotFound)
			}
			return brew.StoreUnavailable("insert batch", err)
		}
		if b.ID, err = res.LastInsertId(); err != nil {
			return brew.StoreUnavailable("insert batch", err)
		}

		for i := range out {
			out[i].BatchID = b.ID
			if out[i], err = insertAlarm(ctx, tx, out[i], now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return brew.Batch{}, nil, err
	}
	b.StartDate = fromMillis(toMillis(b.StartDate))
	b.ExpectedEndDate = fromMillis(toMillis(b.ExpectedEndDate))
	return b, out, nil
}

// GetBatch returns the batch with the given id.
func (s *Store) GetBatch(ctx context.Context, id int64) (brew.Batch, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = ?`, id)
	b, err := scanBatch(row)
	if err != nil {
		return brew.Batch{}, wrap(fmt.Sprintf("get batch %d", id), err)
	}
	return b, nil
}

// ListBatches returns every batch, most recently started first.
func (s *Store) ListBatches(ctx context.Context) ([]brew.Batch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+batchColumns+` FROM batches ORDER BY start_date DESC, id DESC`)
	if err != nil {
		return nil, wrap("list batches", err)
	}
	defer rows.Close()

	batches := []brew.Batch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, wrap("scan batch", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate batches", err)
	}
	return batches, nil
}

// UpdateBatchStatus changes a batch's status. Moving to a finished status
// records the actual end date; moving back clears it.
func (s *Store) UpdateBatchStatus(ctx context.Context, id int64, status brew.BatchStatus) (brew.Batch, error) {
	if !brew.ValidBatchStatuses[status] {
		return brew.Batch{}, fmt.Errorf("update batch %d: unknown status %q", id, status)
	}

	now := s.stamp()
	var end sql.NullInt64
	if status.Finished() {
		end = sql.NullInt64{Int64: toMillis(now), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE batches SET status = ?, actual_end_date = ?, updated_at = ? WHERE id = ?
	`, string(status), end, toMillis(now), id)
	if err != nil {
		return brew.Batch{}, wrap("update batch status", err)
	}
	if err := requireOne(res, fmt.Sprintf("update batch %d", id)); err != nil {
		return brew.Batch{}, err
	}
	return s.GetBatch(ctx, id)
}

// DeleteBatch removes a batch and, through the foreign-key cascade, all of
// its alarms in the same transaction.
func (s *Store) DeleteBatch(ctx context.Context, id int64) error {
	return s.withTx(ctx, "delete batch", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM alarm_items WHERE batch_id = ?`, id); err != nil {
			return brew.StoreUnavailable("delete batch alarms", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, id)
		if err != nil {
			return brew.StoreUnavailable("delete batch", err)
		}
		return requireOne(res, fmt.Sprintf("delete batch %d", id))
	})
}

func scanBatch(row rowScanner) (brew.Batch, error) {
	var (
		b                  brew.Batch
		start, expected    int64
		actual             sql.NullInt64
		status             string
		created, updatedAt int64
	)
	if err := row.Scan(&b.ID, &b.RecipeID, &b.BatchName, &start, &expected, &actual,
		&status, &b.Notes, &created, &updatedAt); err != nil {
		return brew.Batch{}, err
	}
	b.StartDate = fromMillis(start)
	b.ExpectedEndDate = fromMillis(expected)
	if actual.Valid {
		t := fromMillis(actual.Int64)
		b.ActualEndDate = &t
	}
	b.Status = brew.BatchStatus(status)
	b.CreatedAt = fromMillis(created)
	b.UpdatedAt = fromMillis(updatedAt)
	return b, nil
}
