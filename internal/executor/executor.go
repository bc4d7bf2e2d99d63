// Package executor runs an alarm when its deferred task comes due.
//
// Fire reloads the alarm and re-checks it before anything is shown, so a
// fire racing a disable, delete or earlier fire is suppressed. Delivery and
// the triggered mark are separate steps: once a notification is out the
// alarm is never delivered again, even if marking it fails.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/brewlog/internal/brew"
	"github.com/roach88/brewlog/internal/metrics"
	"github.com/roach88/brewlog/internal/notify"
	"github.com/roach88/brewlog/internal/retry"
	"github.com/roach88/brewlog/internal/scheduler"
)

// DefaultPlaceholder is the batch name shown when the batch is gone.
const DefaultPlaceholder = "Unknown Batch"

// markTimeout bounds latching a delivered alarm after the fire's context
// has ended.
const markTimeout = 10 * time.Second

// Store is the storage the executor reads and latches. *store.Store
// implements it.
type Store interface {
	GetAlarm(ctx context.Context, id int64) (brew.AlarmItem, error)
	GetBatch(ctx context.Context, id int64) (brew.Batch, error)
	MarkTriggered(ctx context.Context, id int64) error
}

// Outcome is the result of one fire.
type Outcome int

const (
	// Delivered means the notification went out.
	Delivered Outcome = iota
	// Suppressed means the alarm was missing, disabled or already triggered.
	Suppressed
	// Failed means nothing was delivered and the fire may be retried.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Suppressed:
		return "suppressed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Executor turns due payloads into notifications.
type Executor struct {
	store       Store
	notifier    notify.Notifier
	log         *slog.Logger
	metrics     *metrics.Metrics
	policy      retry.Policy
	placeholder string
}

// Option configures the executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics records fire outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithPlaceholder sets the batch name used when the batch cannot be found.
func WithPlaceholder(name string) Option {
	return func(e *Executor) {
		if name != "" {
			e.placeholder = name
		}
	}
}

// WithMarkRetry sets the retry policy for the triggered mark after delivery.
func WithMarkRetry(p retry.Policy) Option {
	return func(e *Executor) { e.policy = p }
}

// New creates an executor.
func New(s Store, n notify.Notifier, opts ...Option) *Executor {
	e := &Executor{
		store:       s,
		notifier:    n,
		log:         slog.Default(),
		policy:      retry.Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second},
		placeholder: DefaultPlaceholder,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fire runs one due payload. The error is non-nil only for Failed.
func (e *Executor) Fire(ctx context.Context, p scheduler.Payload) (Outcome, error) {
	fireID := uuid.Must(uuid.NewV7()).String()
	log := e.log.With("fire_id", fireID, "alarm_id", p.AlarmID, "batch_id", p.BatchID)

	out, err := e.fire(ctx, log, p)
	e.metrics.Fired(out.String())
	if err != nil {
		log.Warn("alarm fire failed", "outcome", out, "error", err)
	} else {
		log.Info("alarm fired", "outcome", out)
	}
	return out, err
}

func (e *Executor) fire(ctx context.Context, log *slog.Logger, p scheduler.Payload) (Outcome, error) {
	a, err := e.store.GetAlarm(ctx, p.AlarmID)
	if errors.Is(err, brew.ErrNotFound) {
		log.Debug("alarm gone, suppressing")
		return Suppressed, nil
	}
	if err != nil {
		return Failed, fmt.Errorf("load alarm: %w", err)
	}
	if !a.IsEnabled {
		log.Debug("alarm disabled, suppressing")
		return Suppressed, nil
	}
	if a.IsTriggered {
		log.Debug("alarm already triggered, suppressing")
		return Suppressed, nil
	}

	name := e.placeholder
	b, err := e.store.GetBatch(ctx, a.BatchID)
	switch {
	case err == nil:
		name = b.BatchName
	case errors.Is(err, brew.ErrNotFound):
		log.Warn("batch missing for alarm, using placeholder name")
	default:
		return Failed, fmt.Errorf("load batch: %w", err)
	}

	n := notify.Notification{
		ID:    a.ID,
		Title: a.Title,
		Body:  notify.Body(name, a.Description),
	}
	if err := e.notifier.Deliver(ctx, n); err != nil {
		return Failed, fmt.Errorf("deliver notification: %w", err)
	}

	// The notification is out: latch it even if the caller is shutting down.
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()
	err = retry.Do(markCtx, e.policy, func(ctx context.Context) error {
		err := e.store.MarkTriggered(ctx, a.ID)
		if errors.Is(err, brew.ErrNotFound) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		// Delivered already; the fire must not be retried.
		log.Error("mark triggered failed after delivery", "error", err)
	}
	return Delivered, nil
}

// Handle adapts Fire to scheduler.Handler: only Failed asks the queue for
// another attempt.
func (e *Executor) Handle(ctx context.Context, p scheduler.Payload) error {
	_, err := e.Fire(ctx, p)
	return err
}
