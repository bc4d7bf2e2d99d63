// Package recovery re-arms active alarms after the deferred-task facility
// lost its registrations.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/brewlog/internal/brew"
	"github.com/roach88/brewlog/internal/metrics"
	"github.com/roach88/brewlog/internal/retry"
	"github.com/roach88/brewlog/internal/scheduler"
)

// ErrIncomplete reports a recovery pass that left some active alarms
// unregistered. The summary returned alongside it holds the counts.
var ErrIncomplete = errors.New("recovery incomplete")

// AlarmSource lists the alarms to re-arm. *store.Store implements it.
type AlarmSource interface {
	ActiveAlarms(ctx context.Context) ([]brew.AlarmItem, error)
}

// Rearmer rebuilds registrations. *scheduler.Scheduler implements it.
type Rearmer interface {
	RearmAll(ctx context.Context, alarms []brew.AlarmItem) (scheduler.RearmSummary, error)
}

// Option configures the coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records recovery results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithRetry sets the policy for reading the active alarms.
func WithRetry(p retry.Policy) Option {
	return func(c *Coordinator) { c.policy = p }
}

// Coordinator runs recovery passes.
type Coordinator struct {
	alarms  AlarmSource
	rearmer Rearmer
	log     *slog.Logger
	metrics *metrics.Metrics
	policy  retry.Policy
}

// New creates a coordinator.
func New(alarms AlarmSource, r Rearmer, opts ...Option) *Coordinator {
	c := &Coordinator{
		alarms:  alarms,
		rearmer: r,
		log:     slog.Default(),
		policy:  retry.Default,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recover reads every active alarm and re-arms them. Individual alarms that
// fail to arm are counted in the summary and do not stop the pass; if any
// failed, the error wraps ErrIncomplete. The pass also fails if the active
// alarms could not be read or ctx ended before every alarm was visited.
func (c *Coordinator) Recover(ctx context.Context) (scheduler.RearmSummary, error) {
	var active []brew.AlarmItem
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		var err error
		active, err = c.alarms.ActiveAlarms(ctx)
		if err != nil {
			c.log.Warn("reading active alarms failed", "error", err)
		}
		return err
	})
	if err != nil {
		return scheduler.RearmSummary{}, fmt.Errorf("recover: %w", err)
	}

	sum, err := c.rearmer.RearmAll(ctx, active)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return sum, fmt.Errorf("recover: interrupted: %w", ctxErr)
	}
	if err != nil {
		// Stale registrations may remain; the executor suppresses them.
		c.log.Warn("recovery could not clear registrations", "error", err)
	}

	c.metrics.Recovered("armed", sum.Armed)
	c.metrics.Recovered("missed", sum.Missed)
	c.metrics.Recovered("inactive", sum.Inactive)
	c.metrics.Recovered("failed", sum.Failed)
	c.log.Info("recovery finished",
		"active", len(active), "armed", sum.Armed, "missed", sum.Missed,
		"inactive", sum.Inactive, "failed", sum.Failed)

	if sum.Failed > 0 {
		return sum, fmt.Errorf("recover: %d of %d alarms not re-armed: %w", sum.Failed, len(active), ErrIncomplete)
	}
	return sum, nil
}

// Listen waits for the one-shot boot signal and runs a single recovery
// pass when it arrives. It returns nil without recovering if the channel
// closes with no signal, and the pass's error otherwise.
func (c *Coordinator) Listen(ctx context.Context, signal <-chan struct{}) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case _, ok := <-signal:
		if !ok {
			c.log.Debug("no boot since last start, skipping recovery")
			return nil
		}
	}
	_, err := c.Recover(ctx)
	return err
}
