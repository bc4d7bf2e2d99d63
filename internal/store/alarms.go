package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/brewlog/internal/brew"
)

const alarmColumns = `id, batch_id, alarm_type, title, description, scheduled_time, is_enabled, is_triggered, created_at, updated_at`

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertAlarm stores a new alarm and returns it with its id. The owning
// batch must exist.
func (s *Store) InsertAlarm(ctx context.Context, a brew.AlarmItem) (brew.AlarmItem, error) {
	return insertAlarm(ctx, s.db, a, s.stamp())
}

func insertAlarm(ctx context.Context, db execer, a brew.AlarmItem, now time.Time) (brew.AlarmItem, error) {
	if !brew.ValidAlarmTypes[a.AlarmType] {
		return brew.AlarmItem{}, brew.InvalidAlarm(a.ID, "unknown alarm type %q", a.AlarmType)
	}
	if a.BatchID <= 0 {
		return brew.AlarmItem{}, brew.InvalidAlarm(a.ID, "alarm has no batch")
	}

	a.CreatedAt, a.UpdatedAt = now, now
	a.ScheduledTime = fromMillis(toMillis(a.ScheduledTime))

	res, err := db.ExecContext(ctx, `
		INSERT INTO alarm_items
		(batch_id, alarm_type, title, description, scheduled_time, is_enabled, is_triggered, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.BatchID, string(a.AlarmType), a.Title, a.Description, toMillis(a.ScheduledTime),
		boolInt(a.IsEnabled), boolInt(a.IsTriggered), toMillis(now), toMillis(now))
	if err != nil {
		if isForeignKeyViolation(err) {
			return brew.AlarmItem{}, fmt.Errorf("insert alarm: batch %d: %w", a.BatchID, brew.ErrNotFound)
		}
		return brew.AlarmItem{}, brew.StoreUnavailable("insert alarm", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return brew.AlarmItem{}, brew.StoreUnavailable("insert alarm", err)
	}
	return a, nil
}

// UpdateAlarm writes an alarm's user-editable fields: title, description,
// scheduled time and enabled flag. The trigger latch and type are never
// changed here.
func (s *Store) UpdateAlarm(ctx context.Context, a brew.AlarmItem) (brew.AlarmItem, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alarm_items
		SET title = ?, description = ?, scheduled_time = ?, is_enabled = ?, updated_at = ?
		WHERE id = ?
	`, a.Title, a.Description, toMillis(a.ScheduledTime), boolInt(a.IsEnabled), toMillis(s.stamp()), a.ID)
	if err != nil {
		return brew.AlarmItem{}, wrap("update alarm", err)
	}
	if err := requireOne(res, fmt.Sprintf("update alarm %d", a.ID)); err != nil {
		return brew.AlarmItem{}, err
	}
	return s.GetAlarm(ctx, a.ID)
}

// SetEnabled flips the user toggle of one alarm.
func (s *Store) SetEnabled(ctx context.Context, id int64, enabled bool) (brew.AlarmItem, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alarm_items SET is_enabled = ?, updated_at = ? WHERE id = ?
	`, boolInt(enabled), toMillis(s.stamp()), id)
	if err != nil {
		return brew.AlarmItem{}, wrap("set enabled", err)
	}
	if err := requireOne(res, fmt.Sprintf("set enabled %d", id)); err != nil {
		return brew.AlarmItem{}, err
	}
	return s.GetAlarm(ctx, id)
}

// MarkTriggered latches an alarm as triggered. Calling it on an alarm that
// is already triggered is a no-op. A missing alarm yields ErrNotFound.
func (s *Store) MarkTriggered(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alarm_items SET is_triggered = 1, updated_at = ?
		WHERE id = ? AND is_triggered = 0
	`, toMillis(s.stamp()), id)
	if err != nil {
		return wrap("mark triggered", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return brew.StoreUnavailable("mark triggered", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alarm_items WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return wrap("mark triggered", err)
	}
	if exists == 0 {
		return fmt.Errorf("mark triggered %d: %w", id, brew.ErrNotFound)
	}
	return nil
}

// DeleteAlarm removes one alarm.
func (s *Store) DeleteAlarm(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alarm_items WHERE id = ?`, id)
	if err != nil {
		return wrap("delete alarm", err)
	}
	return requireOne(res, fmt.Sprintf("delete alarm %d", id))
}

// DeleteByBatch removes every alarm of a batch and reports how many went.
func (s *Store) DeleteByBatch(ctx context.Context, batchID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alarm_items WHERE batch_id = ?`, batchID)
	if err != nil {
		return 0, wrap("delete alarms by batch", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, brew.StoreUnavailable("delete alarms by batch", err)
	}
	return n, nil
}

// GetAlarm returns the alarm with the given id.
func (s *Store) GetAlarm(ctx context.Context, id int64) (brew.AlarmItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alarmColumns+` FROM alarm_items WHERE id = ?`, id)
	a, err := scanAlarm(row)
	if err != nil {
		return brew.AlarmItem{}, wrap(fmt.Sprintf("get alarm %d", id), err)
	}
	return a, nil
}

// AlarmsByBatch returns every alarm of a batch in firing order, whatever
// its state.
func (s *Store) AlarmsByBatch(ctx context.Context, batchID int64) ([]brew.AlarmItem, error) {
	return s.queryAlarms(ctx, "alarms by batch", `
		SELECT `+alarmColumns+` FROM alarm_items
		WHERE batch_id = ?
		ORDER BY scheduled_time ASC, id ASC
	`, batchID)
}

// ActiveAlarms returns every enabled, untriggered alarm in firing order.
func (s *Store) ActiveAlarms(ctx context.Context) ([]brew.AlarmItem, error) {
	return s.queryAlarms(ctx, "active alarms", `
		SELECT `+alarmColumns+` FROM alarm_items
		WHERE is_enabled = 1 AND is_triggered = 0
		ORDER BY scheduled_time ASC, id ASC
	`)
}

// AllAlarms returns every alarm in firing order.
func (s *Store) AllAlarms(ctx context.Context) ([]brew.AlarmItem, error) {
	return s.queryAlarms(ctx, "all alarms", `
		SELECT `+alarmColumns+` FROM alarm_items
		ORDER BY scheduled_time ASC, id ASC
	`)
}

// DueAlarms returns active alarms scheduled at or before now. These are the
// alarms that were never armed, or whose fire was lost, and have not been
// delivered.
func (s *Store) DueAlarms(ctx context.Context, now time.Time) ([]brew.AlarmItem, error) {
	return s.queryAlarms(ctx, "due alarms", `
		SELECT `+alarmColumns+` FROM alarm_items
		WHERE is_enabled = 1 AND is_triggered = 0 AND scheduled_time <= ?
		ORDER BY scheduled_time ASC, id ASC
	`, toMillis(now))
}

func (s *Store) queryAlarms(ctx context.Context, op, query string, args ...any) ([]brew.AlarmItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	alarms := []brew.AlarmItem{}
	for rows.Next() {
		a, err := scanAlarm(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		alarms = append(alarms, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return alarms, nil
}

func scanAlarm(row rowScanner) (brew.AlarmItem, error) {
	var (
		a                  brew.AlarmItem
		alarmType          string
		scheduled          int64
		enabled, triggered int
		created, updatedAt int64
	)
	if err := row.Scan(&a.ID, &a.BatchID, &alarmType, &a.Title, &a.Description, &scheduled,
		&enabled, &triggered, &created, &updatedAt); err != nil {
		return brew.AlarmItem{}, err
	}
	a.AlarmType = brew.AlarmType(alarmType)
	a.ScheduledTime = fromMillis(scheduled)
	a.IsEnabled = enabled == 1
	a.IsTriggered = triggered == 1
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}

func isForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}
