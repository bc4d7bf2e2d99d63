package scheduler

import (
	"context"
	"fmt"
	"time"
)

// Tag carried by every alarm registration. RearmAll clears it before
// re-registering, so registrations left over from alarms that have since
// become inactive do not survive recovery.
const TagAlarm = "alarm"

// AlarmKey is the unique key and individual-cancel tag of an alarm.
func AlarmKey(alarmID int64) string {
	return fmt.Sprintf("alarm_%d", alarmID)
}

// BatchTag is the bulk-cancel tag shared by all of a batch's alarms.
func BatchTag(batchID int64) string {
	return fmt.Sprintf("batch_%d", batchID)
}

// Payload is the data a registration carries to the executor.
type Payload struct {
	AlarmID     int64  `json:"alarm_id"`
	BatchID     int64  `json:"batch_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Registration is one deferred one-shot task.
type Registration struct {
	UniqueKey string    `json:"unique_key"`
	Tags      []string  `json:"tags"`
	DueAt     time.Time `json:"due_at"`
	Payload   Payload   `json:"payload"`
}

// HasTag reports whether the registration carries tag.
func (r Registration) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Handler runs a registration's payload when it comes due. A non-nil error
// asks the queue to try again later.
type Handler func(ctx context.Context, p Payload) error

// Queue is a deferred-task facility.
//
// Enqueue replaces any registration with the same UniqueKey. CancelUnique
// and CancelTag are no-ops when nothing matches. All methods must be safe
// for concurrent use.
type Queue interface {
	Enqueue(ctx context.Context, r Registration) error
	CancelUnique(ctx context.Context, key string) error
	CancelTag(ctx context.Context, tag string) error
	Registrations(ctx context.Context) ([]Registration, error)
}
