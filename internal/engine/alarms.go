package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/brewlog/internal/brew"
	"github.com/roach88/brewlog/internal/scheduler"
)

// NewAlarm describes a manual alarm on an existing batch.
type NewAlarm struct {
	BatchID     int64
	Type        brew.AlarmType
	Title       string
	Description string
	At          time.Time
}

// AddAlarm stores a user alarm and arms it. Only CUSTOM, CHECK_STATUS and
// COMPLETION alarms can be added by hand.
//
// When arming fails the alarm stays stored and the REGISTRATION_FAILED
// error is returned with it.
func (e *Engine) AddAlarm(ctx context.Context, na NewAlarm) (brew.AlarmItem, scheduler.ArmResult, error) {
	if !brew.ValidAlarmTypes[na.Type] {
		return brew.AlarmItem{}, scheduler.Inactive, brew.InvalidAlarm(0, "unknown alarm type %q", na.Type)
	}
	if na.Type.SystemGenerated() {
		return brew.AlarmItem{}, scheduler.Inactive, brew.InvalidAlarm(0, "%s alarms are created with the batch", na.Type)
	}
	title := strings.TrimSpace(na.Title)
	if title == "" {
		return brew.AlarmItem{}, scheduler.Inactive, brew.InvalidAlarm(0, "alarm title is required")
	}
	if na.At.IsZero() {
		return brew.AlarmItem{}, scheduler.Inactive, brew.InvalidAlarm(0, "alarm time is required")
	}

	a, err := e.store.InsertAlarm(ctx, brew.AlarmItem{
		BatchID:       na.BatchID,
		AlarmType:     na.Type,
		Title:         title,
		Description:   na.Description,
		ScheduledTime: ms(na.At),
		IsEnabled:     true,
	})
	if err != nil {
		return brew.AlarmItem{}, scheduler.Inactive, fmt.Errorf("add alarm: %w", err)
	}

	res, err := e.sched.Arm(ctx, a)
	if err != nil {
		return a, res, err
	}
	e.log.Info("alarm added", "alarm_id", a.ID, "batch_id", a.BatchID, "result", res)
	return a, res, nil
}

// RescheduleAlarm moves a user alarm to at and replaces its registration.
// NEXT_STAGE and FILTER alarms keep their planned time. A triggered alarm
// may be moved but stays triggered, so it is not armed again.
func (e *Engine) RescheduleAlarm(ctx context.Context, alarmID int64, at time.Time) (brew.AlarmItem, scheduler.ArmResult, error) {
	a, err := e.store.GetAlarm(ctx, alarmID)
	if err != nil {
		return brew.AlarmItem{}, scheduler.Inactive, fmt.Errorf("load alarm %d: %w", alarmID, err)
	}
	if a.AlarmType.SystemGenerated() {
		return a, scheduler.Inactive, brew.ImmutableSchedule(a.ID, a.AlarmType)
	}

	a.ScheduledTime = ms(at)
	if a, err = e.store.UpdateAlarm(ctx, a); err != nil {
		return brew.AlarmItem{}, scheduler.Inactive, fmt.Errorf("reschedule alarm %d: %w", alarmID, err)
	}

	res, err := e.rearm(ctx, a)
	if err != nil {
		return a, res, err
	}
	e.log.Info("alarm rescheduled", "alarm_id", a.ID, "scheduled_time", a.ScheduledTime, "result", res)
	return a, res, nil
}

// SetAlarmEnabled toggles an alarm. Disabling cancels the registration
// before the write; enabling writes first and then arms.
func (e *Engine) SetAlarmEnabled(ctx context.Context, alarmID int64, enabled bool) (brew.AlarmItem, scheduler.ArmResult, error) {
	if !enabled {
		if err := e.sched.Cancel(ctx, alarmID); err != nil {
			return brew.AlarmItem{}, scheduler.Inactive, err
		}
		a, err := e.store.SetEnabled(ctx, alarmID, false)
		if err != nil {
			return brew.AlarmItem{}, scheduler.Inactive, fmt.Errorf("disable alarm %d: %w", alarmID, err)
		}
		e.log.Info("alarm disabled", "alarm_id", alarmID)
		return a, scheduler.Inactive, nil
	}

	a, err := e.store.SetEnabled(ctx, alarmID, true)
	if err != nil {
		return brew.AlarmItem{}, scheduler.Inactive, fmt.Errorf("enable alarm %d: %w", alarmID, err)
	}
	res, err := e.sched.Arm(ctx, a)
	if err != nil {
		return a, res, err
	}
	e.log.Info("alarm enabled", "alarm_id", alarmID, "result", res)
	return a, res, nil
}

// DeleteAlarm cancels an alarm's registration and deletes it.
func (e *Engine) DeleteAlarm(ctx context.Context, alarmID int64) error {
	if err := e.sched.Cancel(ctx, alarmID); err != nil {
		return err
	}
	if err := e.store.DeleteAlarm(ctx, alarmID); err != nil {
		return fmt.Errorf("delete alarm %d: %w", alarmID, err)
	}
	e.log.Info("alarm deleted", "alarm_id", alarmID)
	return nil
}

// ActiveAlarms lists every enabled, untriggered alarm.
func (e *Engine) ActiveAlarms(ctx context.Context) ([]brew.AlarmItem, error) {
	return e.store.ActiveAlarms(ctx)
}

// MissedAlarms lists active alarms whose time has already passed. They are
// never armed and never fire on their own.
func (e *Engine) MissedAlarms(ctx context.Context) ([]brew.AlarmItem, error) {
	return e.store.DueAlarms(ctx, e.clock.Now())
}

// rearm arms a and drops any earlier registration when a can no longer be
// armed.
func (e *Engine) rearm(ctx context.Context, a brew.AlarmItem) (scheduler.ArmResult, error) {
	res, err := e.sched.Arm(ctx, a)
	if err != nil {
		return res, err
	}
	if res != scheduler.Armed {
		if err := e.sched.Cancel(ctx, a.ID); err != nil {
			return res, err
		}
	}
	return res, nil
}
