package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/brewlog/internal/brew"
	"github.com/roach88/brewlog/internal/clock"
	"github.com/roach88/brewlog/internal/scheduler"
)

// ErrBatchName rejects a batch whose name is empty after trimming.
var ErrBatchName = errors.New("batch name is required")

// Store is the persistence the engine drives. *store.Store implements it.
type Store interface {
	GetRecipe(ctx context.Context, id int64) (brew.Recipe, error)
	RecipeStages(ctx context.Context, recipeID int64) ([]brew.RecipeStage, error)

	CreateBatchWithAlarms(ctx context.Context, b brew.Batch, alarms []brew.AlarmItem) (brew.Batch, []brew.AlarmItem, error)
	GetBatch(ctx context.Context, id int64) (brew.Batch, error)
	UpdateBatchStatus(ctx context.Context, id int64, status brew.BatchStatus) (brew.Batch, error)
	DeleteBatch(ctx context.Context, id int64) error

	InsertAlarm(ctx context.Context, a brew.AlarmItem) (brew.AlarmItem, error)
	UpdateAlarm(ctx context.Context, a brew.AlarmItem) (brew.AlarmItem, error)
	SetEnabled(ctx context.Context, id int64, enabled bool) (brew.AlarmItem, error)
	DeleteAlarm(ctx context.Context, id int64) error
	GetAlarm(ctx context.Context, id int64) (brew.AlarmItem, error)
	AlarmsByBatch(ctx context.Context, batchID int64) ([]brew.AlarmItem, error)
	ActiveAlarms(ctx context.Context) ([]brew.AlarmItem, error)
	DueAlarms(ctx context.Context, now time.Time) ([]brew.AlarmItem, error)
}

// Scheduler arms and cancels alarm registrations. *scheduler.Scheduler
// implements it.
type Scheduler interface {
	Arm(ctx context.Context, a brew.AlarmItem) (scheduler.ArmResult, error)
	Cancel(ctx context.Context, alarmID int64) error
	CancelByBatch(ctx context.Context, batchID int64) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for default start times and the missed
// view.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger. nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine coordinates the store and the scheduler.
type Engine struct {
	store Store
	sched Scheduler
	clock clock.Clock
	log   *slog.Logger
}

// New creates an Engine.
func New(s Store, sched Scheduler, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		sched: sched,
		clock: clock.Real{},
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// arm registers a, logging instead of failing. The next recovery pass, at
// boot or from "brewlog recover", re-arms anything left unregistered.
func (e *Engine) arm(ctx context.Context, a brew.AlarmItem) scheduler.ArmResult {
	res, err := e.sched.Arm(ctx, a)
	if err != nil {
		e.log.Warn("arm failed", "alarm_id", a.ID, "batch_id", a.BatchID, "error", err)
	}
	return res
}

// ms drops sub-millisecond precision so values match what the store reads
// back.
func ms(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
