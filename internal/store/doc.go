// Package store provides SQLite-backed durable storage for brewlog.
//
// Tables:
//   - recipes, recipe_stages: reusable schedules
//   - batches: one run of a recipe, owning its alarms
//   - alarm_items: absolute reminders, deleted with their batch
//   - deferred_tasks, deferred_task_tags: registrations of the durable queue
//   - host_state: small key/value facts about the host (last boot id)
//
// # Wire format
//
// Times are stored as epoch milliseconds INTEGER, enums by canonical name,
// booleans as 0/1. Round-tripped times are UTC with millisecond precision.
//
// # Concurrency
//
// The store holds a single connection, so writers are serialized by the
// database/sql pool. Updates are per-row; MarkTriggered only ever moves an
// alarm from untriggered to triggered, which makes last-writer-wins safe.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity and cascades
//
// Keyed lookups that match nothing return an error wrapping
// brew.ErrNotFound. Other database failures are brew STORE_UNAVAILABLE
// errors.
package store
