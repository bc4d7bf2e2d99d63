package brew

import (
	"fmt"
	"time"
)

// AlarmType categorizes an alarm.
type AlarmType string

const (
	AlarmNextStage   AlarmType = "NEXT_STAGE"   // add the next stage of a multi-stage brew
	AlarmFilter      AlarmType = "FILTER"       // filter the brew
	AlarmCheckStatus AlarmType = "CHECK_STATUS" // check fermentation progress
	AlarmCompletion  AlarmType = "COMPLETION"   // fermentation is expected to be done
	AlarmCustom      AlarmType = "CUSTOM"       // user-defined
)

// ValidAlarmTypes lists the accepted alarm type names.
var ValidAlarmTypes = map[AlarmType]bool{
	AlarmNextStage:   true,
	AlarmFilter:      true,
	AlarmCheckStatus: true,
	AlarmCompletion:  true,
	AlarmCustom:      true,
}

// ParseAlarmType returns the alarm type with the given canonical name.
func ParseAlarmType(s string) (AlarmType, error) {
	t := AlarmType(s)
	if !ValidAlarmTypes[t] {
		return "", fmt.Errorf("unknown alarm type %q", s)
	}
	return t, nil
}

// SystemGenerated reports whether the planner owns alarms of this type.
// Their scheduled time never changes after creation.
func (t AlarmType) SystemGenerated() bool {
	return t == AlarmNextStage || t == AlarmFilter
}

// AlarmItem is a reminder tied to a batch and an absolute time.
//
// IsTriggered is a one-way latch set only by the executor. IsEnabled is the
// user's toggle and is independent of it.
type AlarmItem struct {
	ID            int64     `json:"id"`
	BatchID       int64     `json:"batch_id"`
	AlarmType     AlarmType `json:"alarm_type"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ScheduledTime time.Time `json:"scheduled_time"`
	IsEnabled     bool      `json:"is_enabled"`
	IsTriggered   bool      `json:"is_triggered"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Active reports whether the alarm may be armed: enabled and not yet
// triggered.
func (a AlarmItem) Active() bool {
	return a.IsEnabled && !a.IsTriggered
}

// Missed reports whether an active alarm's time has passed at now.
func (a AlarmItem) Missed(now time.Time) bool {
	return a.Active() && !a.ScheduledTime.After(now)
}
