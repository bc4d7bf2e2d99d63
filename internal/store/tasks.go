package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/brewlog/internal/brew"
)

// Task is one deferred-task registration held for the durable queue.
// Token identifies this particular registration of UniqueKey; replacing the
// registration issues a new token.
type Task struct {
	UniqueKey    string
	Token        string
	Tags         []string
	Payload      []byte
	DueAt        time.Time
	Attempt      int
	ClaimedUntil time.Time
	CreatedAt    time.Time
}

// PutTask stores a registration, replacing any existing one with the same
// unique key together with its tags.
func (s *Store) PutTask(ctx context.Context, t Task) error {
	now := s.stamp()
	return s.withTx(ctx, "put task", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM deferred_tasks WHERE unique_key = ?`, t.UniqueKey); err != nil {
			return brew.StoreUnavailable("replace task", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO deferred_tasks (unique_key, token, payload, due_at, attempt, claimed_until, created_at)
			VALUES (?, ?, ?, ?, ?, 0, ?)
		`, t.UniqueKey, t.Token, string(t.Payload), toMillis(t.DueAt), t.Attempt, toMillis(now))
		if err != nil {
			return brew.StoreUnavailable("insert task", err)
		}
		for _, tag := range t.Tags {
			_, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO deferred_task_tags (unique_key, tag) VALUES (?, ?)
			`, t.UniqueKey, tag)
			if err != nil {
				return brew.StoreUnavailable("insert task tag", err)
			}
		}
		return nil
	})
}

// DeleteTask removes the registration with the given key. Removing an
// absent key is not an error.
func (s *Store) DeleteTask(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM deferred_tasks WHERE unique_key = ?`, key); err != nil {
		return wrap("delete task", err)
	}
	return nil
}

// DeleteTasksByTag removes every registration carrying tag and reports how
// many were removed.
func (s *Store) DeleteTasksByTag(ctx context.Context, tag string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM deferred_tasks
		WHERE unique_key IN (SELECT unique_key FROM deferred_task_tags WHERE tag = ?)
	`, tag)
	if err != nil {
		return 0, wrap("delete tasks by tag", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, brew.StoreUnavailable("delete tasks by tag", err)
	}
	return n, nil
}

// ClaimDueTasks leases up to limit registrations that are due at now and
// not held by another claim. A claimed task is invisible to other claims
// until the lease expires, so a crashed worker's tasks come back.
func (s *Store) ClaimDueTasks(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]Task, error) {
	var claimed []Task
	err := s.withTx(ctx, "claim tasks", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT unique_key, token, payload, due_at, attempt, created_at
			FROM deferred_tasks
			WHERE due_at <= ? AND claimed_until <= ?
			ORDER BY due_at ASC, unique_key ASC
			LIMIT ?
		`, toMillis(now), toMillis(now), limit)
		if err != nil {
			return brew.StoreUnavailable("select due tasks", err)
		}
		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				rows.Close()
				return brew.StoreUnavailable("scan task", err)
			}
			claimed = append(claimed, t)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return brew.StoreUnavailable("iterate tasks", err)
		}
		rows.Close()

		until := toMillis(now.Add(lease))
		for i := range claimed {
			_, err := tx.ExecContext(ctx, `
				UPDATE deferred_tasks SET claimed_until = ? WHERE unique_key = ? AND token = ?
			`, until, claimed[i].UniqueKey, claimed[i].Token)
			if err != nil {
				return brew.StoreUnavailable("lease task", err)
			}
			claimed[i].ClaimedUntil = fromMillis(until)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// CompleteTask removes a finished registration. It reports false when the
// registration was replaced or cancelled since it was claimed.
func (s *Store) CompleteTask(ctx context.Context, key, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM deferred_tasks WHERE unique_key = ? AND token = ?
	`, key, token)
	if err != nil {
		return false, wrap("complete task", err)
	}
	return affected(res, "complete task")
}

// RetryTask releases a claimed registration for another attempt at dueAt.
// It reports false when the registration was replaced or cancelled since
// it was claimed.
func (s *Store) RetryTask(ctx context.Context, key, token string, attempt int, dueAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE deferred_tasks SET attempt = ?, due_at = ?, claimed_until = 0
		WHERE unique_key = ? AND token = ?
	`, attempt, toMillis(dueAt), key, token)
	if err != nil {
		return false, wrap("retry task", err)
	}
	return affected(res, "retry task")
}

// ListTasks returns every registration with its tags, ordered by due time.
func (s *Store) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unique_key, token, payload, due_at, attempt, created_at
		FROM deferred_tasks
		ORDER BY due_at ASC, unique_key ASC
	`)
	if err != nil {
		return nil, wrap("list tasks", err)
	}
	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, wrap("scan task", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, wrap("iterate tasks", err)
	}
	rows.Close()

	// Tags are read after the task rows are closed; the single connection
	// cannot serve two open result sets.
	tagRows, err := s.db.QueryContext(ctx, `SELECT unique_key, tag FROM deferred_task_tags ORDER BY unique_key, tag`)
	if err != nil {
		return nil, wrap("list task tags", err)
	}
	defer tagRows.Close()

	tags := map[string][]string{}
	for tagRows.Next() {
		var key, tag string
		if err := tagRows.Scan(&key, &tag); err != nil {
			return nil, wrap("scan task tag", err)
		}
		tags[key] = append(tags[key], tag)
	}
	if err := tagRows.Err(); err != nil {
		return nil, wrap("iterate task tags", err)
	}

	for i := range tasks {
		tasks[i].Tags = tags[tasks[i].UniqueKey]
	}
	return tasks, nil
}

func scanTask(row rowScanner) (Task, error) {
	var (
		t            Task
		payload      string
		due, created int64
	)
	if err := row.Scan(&t.UniqueKey, &t.Token, &payload, &due, &t.Attempt, &created); err != nil {
		return Task{}, err
	}
	t.Payload = []byte(payload)
	t.DueAt = fromMillis(due)
	t.CreatedAt = fromMillis(created)
	return t, nil
}

func affected(res sql.Result, op string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, brew.StoreUnavailable(op, err)
	}
	return n > 0, nil
}

// HostValue returns a stored host fact. The second result is false when
// the key has never been set.
func (s *Store) HostValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM host_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap(fmt.Sprintf("host value %q", key), err)
	}
	return value, true, nil
}

// SetHostValue stores a host fact.
func (s *Store) SetHostValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO host_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return wrap("set host value", err)
	}
	return nil
}
