// Package engine runs the user-facing batch and alarm flows.
//
// Every flow follows the same ordering: registrations are removed before
// the records they point at, and added only after the record is durable.
// A registration that outlives its record is harmless because the executor
// re-reads the alarm at fire time; a record without a registration is
// repaired by the next recovery pass.
//
// Flows touching one alarm:
//
//	AddAlarm         persist, arm
//	RescheduleAlarm  persist, arm (replaces), cancel if no longer armable
//	SetAlarmEnabled  disable: cancel, persist. enable: persist, arm
//	DeleteAlarm      cancel, delete
//
// Flows touching a batch:
//
//	CreateBatch      plan, persist batch and alarms in one transaction, arm each
//	DeleteBatch      cancel the batch tag, delete, re-arm on delete failure
package engine
