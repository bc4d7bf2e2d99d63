// Package queue provides the deferred-task facilities the scheduler arms
// alarms on.
//
// Memory keeps registrations as in-process timers. They are lost when the
// process exits, the way a host's delayed-task facility loses them on
// reboot, so callers treat every start of a Memory-backed process as a
// boot.
//
// Durable keeps registrations in the store's deferred_tasks table and runs
// them from a poll loop. They survive restarts; the boot signal decides
// when they must be rebuilt.
//
// Both replace by unique key, fence stale timers or claims with a
// per-registration token, and retry handler failures with capped
// exponential backoff until the retry policy is exhausted.
package queue
