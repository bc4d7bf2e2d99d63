// Package scheduler maps alarms onto deferred-task registrations.
//
// Each armed alarm has exactly one registration, keyed by AlarmKey and
// tagged with TagAlarm, its own key and its BatchTag. Arming the same alarm
// again replaces the registration; cancelling something already gone is a
// no-op. There is no lock here: correctness under concurrent arm, cancel
// and RearmAll traffic comes from the queue's replace-by-key semantics and
// from the executor re-checking the alarm when it fires.
package scheduler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/brewlog/internal/brew"
	"github.com/roach88/brewlog/internal/clock"
	"github.com/roach88/brewlog/internal/metrics"
	"github.com/roach88/brewlog/internal/retry"
)

// ArmResult is what Arm did with an alarm.
type ArmResult int

const (
	// Armed means a registration now exists for the alarm.
	Armed ArmResult = iota
	// Inactive means the alarm is disabled or already triggered.
	Inactive
	// Missed means the alarm's time has passed; it was not armed.
	Missed
)

func (r ArmResult) String() string {
	switch r {
	case Armed:
		return "armed"
	case Inactive:
		return "inactive"
	case Missed:
		return "missed"
	default:
		return "unknown"
	}
}

// RearmSummary counts the results of RearmAll.
type RearmSummary struct {
	Armed    int `json:"armed"`
	Missed   int `json:"missed"`
	Inactive int `json:"inactive"`
	Failed   int `json:"failed"`
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used to compute delays.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records arm and cancel counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithRetry sets the backoff RearmAll applies to each alarm whose
// registration fails. The default is a single attempt.
func WithRetry(p retry.Policy) Option {
	return func(s *Scheduler) {
		s.policy = p
	}
}

// Scheduler arms and cancels alarms on a Queue.
type Scheduler struct {
	queue   Queue
	clock   clock.Clock
	log     *slog.Logger
	metrics *metrics.Metrics
	policy  retry.Policy
}

// New creates a scheduler on q.
func New(q Queue, opts ...Option) *Scheduler {
	s := &Scheduler{
		queue: q,
		clock:  clock.Real{},
		log:    slog.Default(),
		policy: retry.Policy{MaxAttempts: 1},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Arm registers a deferred task for an active, future alarm. Inactive
// alarms are left alone and past-due alarms are reported as Missed without
// being registered.
func (s *Scheduler) Arm(ctx context.Context, a brew.AlarmItem) (ArmResult, error) {
	if a.ID <= 0 {
		s.metrics.Armed("failed")
		return Inactive, brew.InvalidAlarm(a.ID, "alarm has no id")
	}
	if !a.Active() {
		s.metrics.Armed(Inactive.String())
		return Inactive, nil
	}

	delay := a.ScheduledTime.Sub(s.clock.Now())
	if delay <= 0 {
		s.log.Debug("alarm missed, not armed", "alarm_id", a.ID, "batch_id", a.BatchID, "scheduled_time", a.ScheduledTime)
		s.metrics.Armed(Missed.String())
		return Missed, nil
	}

	key := AlarmKey(a.ID)
	reg := Registration{
		UniqueKey: key,
		Tags:      []string{TagAlarm, key, BatchTag(a.BatchID)},
		DueAt:     a.ScheduledTime,
		Payload: Payload{
			AlarmID:     a.ID,
			BatchID:     a.BatchID,
			Title:       a.Title,
			Description: a.Description,
		},
	}
	if err := s.queue.Enqueue(ctx, reg); err != nil {
		s.metrics.Armed("failed")
		return Inactive, brew.RegistrationFailed(a.ID, err)
	}

	s.log.Debug("alarm armed", "alarm_id", a.ID, "batch_id", a.BatchID, "delay", delay)
	s.metrics.Armed(Armed.String())
	return Armed, nil
}

// Cancel removes the registration of one alarm.
func (s *Scheduler) Cancel(ctx context.Context, alarmID int64) error {
	if err := s.queue.CancelUnique(ctx, AlarmKey(alarmID)); err != nil {
		return brew.RegistrationFailed(alarmID, err)
	}
	s.metrics.Cancelled("alarm")
	return nil
}

// CancelByBatch removes every registration of a batch's alarms.
func (s *Scheduler) CancelByBatch(ctx context.Context, batchID int64) error {
	if err := s.queue.CancelTag(ctx, BatchTag(batchID)); err != nil {
		e := brew.RegistrationFailed(0, err)
		e.BatchID = batchID
		return e
	}
	s.metrics.Cancelled("batch")
	return nil
}

// RearmAll clears every alarm registration and arms each alarm again.
// Registration failures are retried per alarm with the retry policy; an
// alarm that still fails is logged and counted, and the rest are still
// armed. The returned error is non-nil only when clearing failed; arming
// still proceeds in that case.
func (s *Scheduler) RearmAll(ctx context.Context, alarms []brew.AlarmItem) (RearmSummary, error) {
	var sum RearmSummary

	clearErr := s.queue.CancelTag(ctx, TagAlarm)
	if clearErr != nil {
		s.log.Warn("clearing stale registrations failed", "error", clearErr)
		clearErr = brew.RegistrationFailed(0, clearErr)
	} else {
		s.metrics.Cancelled("all")
	}

	for _, a := range alarms {
		if err := ctx.Err(); err != nil {
			return sum, errors.Join(clearErr, err)
		}

		res, err := s.armWithRetry(ctx, a)
		if err != nil {
			sum.Failed++
			s.log.Warn("re-arm failed", "alarm_id", a.ID, "batch_id", a.BatchID, "error", err)
			continue
		}
		switch res {
		case Armed:
			sum.Armed++
		case Missed:
			sum.Missed++
		case Inactive:
			sum.Inactive++
		}
	}
	return sum, clearErr
}

// armWithRetry arms a with the retry policy. Only registration failures
// are retried; an invalid alarm fails at once.
func (s *Scheduler) armWithRetry(ctx context.Context, a brew.AlarmItem) (ArmResult, error) {
	var res ArmResult
	err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		var err error
		res, err = s.Arm(ctx, a)
		if err != nil && !brew.IsRegistrationFailed(err) {
			return retry.Permanent(err)
		}
		if err != nil {
			s.log.Debug("re-arm attempt failed", "alarm_id", a.ID, "error", err)
		}
		return err
	})
	return res, err
}

// Pending lists the queue's current registrations.
func (s *Scheduler) Pending(ctx context.Context) ([]Registration, error) {
	return s.queue.Registrations(ctx)
}
