package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/brewlog/internal/scheduler"
	"github.com/roach88/brewlog/internal/store"
)

// TaskStore is the storage the durable queue needs. *store.Store
// implements it.
type TaskStore interface {
	PutTask(ctx context.Context, t store.Task) error
	DeleteTask(ctx context.Context, key string) error
	DeleteTasksByTag(ctx context.Context, tag string) (int64, error)
	ClaimDueTasks(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]store.Task, error)
	CompleteTask(ctx context.Context, key, token string) (bool, error)
	RetryTask(ctx context.Context, key, token string, attempt int, dueAt time.Time) (bool, error)
	ListTasks(ctx context.Context) ([]store.Task, error)
}

// DurableConfig tunes the poll loop.
type DurableConfig struct {
	PollInterval time.Duration // base wait between polls (default: 1s)
	MaxBackoff   time.Duration // cap on the idle wait (default: 30s)
	Concurrency  int           // handlers running at once (default: 1)
	Lease        time.Duration // how long a claim hides a task (default: 1m)
}

// Durable is a deferred-task facility persisted in the store and run by a
// poll loop.
type Durable struct {
	options
	store   TaskStore
	handler scheduler.Handler
	config  DurableConfig
}

var _ scheduler.Queue = (*Durable)(nil)

// NewDurable creates a durable queue on ts that runs due registrations
// through h.
func NewDurable(ts TaskStore, h scheduler.Handler, config DurableConfig, opts ...Option) *Durable {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if config.MaxBackoff < config.PollInterval {
		config.MaxBackoff = config.PollInterval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.Lease <= 0 {
		config.Lease = time.Minute
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Durable{options: o, store: ts, handler: h, config: config}
}

// Enqueue implements scheduler.Queue.
func (d *Durable) Enqueue(ctx context.Context, r scheduler.Registration) error {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	token, err := uuid.NewV7()
	if err != nil {
		return err
	}
	return d.store.PutTask(ctx, store.Task{
		UniqueKey: r.UniqueKey,
		Token:     token.String(),
		Tags:      r.Tags,
		Payload:   payload,
		DueAt:     r.DueAt,
	})
}

// CancelUnique implements scheduler.Queue.
func (d *Durable) CancelUnique(ctx context.Context, key string) error {
	return d.store.DeleteTask(ctx, key)
}

// CancelTag implements scheduler.Queue.
func (d *Durable) CancelTag(ctx context.Context, tag string) error {
	_, err := d.store.DeleteTasksByTag(ctx, tag)
	return err
}

// Registrations implements scheduler.Queue.
func (d *Durable) Registrations(ctx context.Context) ([]scheduler.Registration, error) {
	tasks, err := d.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	regs := make([]scheduler.Registration, 0, len(tasks))
	for _, t := range tasks {
		var p scheduler.Payload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			d.log.Warn("skipping undecodable task payload", "key", t.UniqueKey, "error", err)
			continue
		}
		regs = append(regs, scheduler.Registration{UniqueKey: t.UniqueKey, Tags: t.Tags, DueAt: t.DueAt, Payload: p})
	}
	sortRegistrations(regs)
	return regs, nil
}

// RunOnce claims the registrations due now, up to the configured
// concurrency, runs them and waits for them to finish. It returns how many
// ran.
func (d *Durable) RunOnce(ctx context.Context) (int, error) {
	tasks, err := d.store.ClaimDueTasks(ctx, d.clock.Now(), d.config.Concurrency, d.config.Lease)
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t store.Task) {
			defer wg.Done()
			d.process(ctx, t)
		}(t)
	}
	wg.Wait()
	return len(tasks), nil
}

// Run polls for due registrations until ctx is cancelled, then waits for
// running handlers. Idle polls back off exponentially up to MaxBackoff and
// reset as soon as work is found or a slot frees up.
func (d *Durable) Run(ctx context.Context) error {
	d.log.Info("durable queue started", "concurrency", d.config.Concurrency, "poll_interval", d.config.PollInterval)

	sem := make(chan struct{}, d.config.Concurrency)
	var wg sync.WaitGroup

	pollNow := make(chan struct{}, 1)
	triggerPoll := func() {
		select {
		case pollNow <- struct{}{}:
		default:
		}
	}

	backoff := d.config.PollInterval
	triggerPoll()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("durable queue stopping, waiting for running handlers")
			wg.Wait()
			return ctx.Err()

		case <-time.After(backoff):
			triggerPoll()

		case <-pollNow:
			slots := d.config.Concurrency - len(sem)
			if slots <= 0 {
				continue
			}

			tasks, err := d.store.ClaimDueTasks(ctx, d.clock.Now(), slots, d.config.Lease)
			if err != nil {
				d.log.Warn("claim due tasks failed", "error", err)
				continue
			}
			if len(tasks) == 0 {
				backoff *= 2
				if backoff > d.config.MaxBackoff {
					backoff = d.config.MaxBackoff
				}
				continue
			}
			backoff = d.config.PollInterval

			for _, t := range tasks {
				sem <- struct{}{}
				wg.Add(1)
				go func(t store.Task) {
					defer wg.Done()
					defer func() {
						<-sem
						triggerPoll()
					}()
					d.process(ctx, t)
				}(t)
			}
			if len(tasks) < slots {
				triggerPoll()
			}
		}
	}
}

// process runs one claimed task and settles it by token. It detaches from
// cancellation of ctx so a shutdown lets a running handler finish and its
// result be recorded; the lease bounds how long that may take.
func (d *Durable) process(ctx context.Context, t store.Task) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.config.Lease)
	defer cancel()

	var p scheduler.Payload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		d.log.Error("dropping undecodable task", "key", t.UniqueKey, "error", err)
		d.settle(ctx, t, "dropped", func() (bool, error) { return d.store.CompleteTask(ctx, t.UniqueKey, t.Token) })
		return
	}

	err := d.handler(ctx, p)
	if err == nil {
		d.settle(ctx, t, "done", func() (bool, error) { return d.store.CompleteTask(ctx, t.UniqueKey, t.Token) })
		return
	}

	attempt := t.Attempt + 1
	if d.policy.Exhausted(attempt) {
		d.log.Error("deferred task given up", "key", t.UniqueKey, "attempt", attempt, "error", err)
		d.settle(ctx, t, "dropped", func() (bool, error) { return d.store.CompleteTask(ctx, t.UniqueKey, t.Token) })
		return
	}

	due := d.clock.Now().Add(d.policy.Delay(attempt))
	d.log.Warn("deferred task failed, retrying", "key", t.UniqueKey, "attempt", attempt, "due_at", due, "error", err)
	d.settle(ctx, t, "retried", func() (bool, error) { return d.store.RetryTask(ctx, t.UniqueKey, t.Token, attempt, due) })
}

func (d *Durable) settle(ctx context.Context, t store.Task, result string, fn func() (bool, error)) {
	ok, err := fn()
	if err != nil {
		// The lease expires and the task is claimed again.
		d.log.Warn("settle deferred task failed", "key", t.UniqueKey, "result", result, "error", err)
		return
	}
	if !ok {
		d.log.Debug("deferred task replaced while running", "key", t.UniqueKey)
		return
	}
	d.metrics.Task("sqlite", result)
}
