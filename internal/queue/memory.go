package queue

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/brewlog/internal/clock"
	"github.com/roach88/brewlog/internal/metrics"
	"github.com/roach88/brewlog/internal/retry"
	"github.com/roach88/brewlog/internal/scheduler"
)

// Option configures a queue.
type Option func(*options)

type options struct {
	clock   clock.Clock
	log     *slog.Logger
	metrics *metrics.Metrics
	policy  retry.Policy
}

func defaultOptions() options {
	return options{
		clock:  clock.Real{},
		log:    slog.Default(),
		policy: retry.Default,
	}
}

// WithClock sets the clock used for due times and timers.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics records task results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRetry sets the policy for handler failures.
func WithRetry(p retry.Policy) Option {
	return func(o *options) { o.policy = p }
}

// Memory is a volatile deferred-task facility built on clock timers.
type Memory struct {
	options
	handler scheduler.Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	entries map[string]*memEntry
	closed  bool
}

var _ scheduler.Queue = (*Memory)(nil)

type memEntry struct {
	reg     scheduler.Registration
	token   string
	attempt int
	timer   clock.Timer
}

// NewMemory creates a Memory queue that runs due registrations through h.
func NewMemory(h scheduler.Handler, opts ...Option) *Memory {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Memory{
		options: o,
		handler: h,
		ctx:     ctx,
		cancel:  cancel,
		entries: map[string]*memEntry{},
	}
}

// Enqueue implements scheduler.Queue.
func (m *Memory) Enqueue(ctx context.Context, r scheduler.Registration) error {
	token, err := uuid.NewV7()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if old, ok := m.entries[r.UniqueKey]; ok {
		old.timer.Stop()
	}

	e := &memEntry{reg: r, token: token.String()}
	m.entries[r.UniqueKey] = e
	m.schedule(e)
	return nil
}

// schedule starts e's timer. Caller must hold m.mu.
func (m *Memory) schedule(e *memEntry) {
	key, token := e.reg.UniqueKey, e.token
	delay := e.reg.DueAt.Sub(m.clock.Now())
	if delay < 0 {
		delay = 0
	}
	e.timer = m.clock.AfterFunc(delay, func() { m.fire(key, token) })
}

// CancelUnique implements scheduler.Queue.
func (m *Memory) CancelUnique(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok {
		e.timer.Stop()
		delete(m.entries, key)
	}
	return nil
}

// CancelTag implements scheduler.Queue.
func (m *Memory) CancelTag(ctx context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, e := range m.entries {
		if e.reg.HasTag(tag) {
			e.timer.Stop()
			delete(m.entries, key)
		}
	}
	return nil
}

// Registrations implements scheduler.Queue. Results are ordered by due
// time, then key.
func (m *Memory) Registrations(ctx context.Context) ([]scheduler.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]scheduler.Registration, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.reg)
	}
	sortRegistrations(out)
	return out, nil
}

// fire runs a due registration unless it was replaced or cancelled after
// its timer was set.
func (m *Memory) fire(key, token string) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok || e.token != token || m.closed {
		m.mu.Unlock()
		return
	}
	reg := e.reg
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()

	err := m.handler(m.ctx, reg.Payload)

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok = m.entries[key]
	if !ok || e.token != token {
		// Replaced or cancelled while the handler ran; the new state wins.
		return
	}
	if err == nil {
		delete(m.entries, key)
		m.metrics.Task("memory", "done")
		return
	}

	e.attempt++
	if m.policy.Exhausted(e.attempt) || m.closed {
		delete(m.entries, key)
		m.metrics.Task("memory", "dropped")
		m.log.Error("deferred task given up", "key", key, "attempt", e.attempt, "error", err)
		return
	}

	e.reg.DueAt = m.clock.Now().Add(m.policy.Delay(e.attempt))
	m.schedule(e)
	m.metrics.Task("memory", "retried")
	m.log.Warn("deferred task failed, retrying", "key", key, "attempt", e.attempt, "due_at", e.reg.DueAt, "error", err)
}

// Close stops every timer, discards the registrations and waits for
// running handlers to return.
func (m *Memory) Close() error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		for key, e := range m.entries {
			e.timer.Stop()
			delete(m.entries, key)
		}
		m.cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

func sortRegistrations(regs []scheduler.Registration) {
	sort.Slice(regs, func(i, j int) bool {
		if !regs[i].DueAt.Equal(regs[j].DueAt) {
			return regs[i].DueAt.Before(regs[j].DueAt)
		}
		return regs[i].UniqueKey < regs[j].UniqueKey
	})
}
