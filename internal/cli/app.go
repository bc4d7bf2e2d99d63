package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/brewlog/internal/config"
	"github.com/roach88/brewlog/internal/engine"
	"github.com/roach88/brewlog/internal/executor"
	"github.com/roach88/brewlog/internal/metrics"
	"github.com/roach88/brewlog/internal/notify"
	"github.com/roach88/brewlog/internal/queue"
	"github.com/roach88/brewlog/internal/recovery"
	"github.com/roach88/brewlog/internal/scheduler"
	"github.com/roach88/brewlog/internal/store"
)

// app is the wired component graph shared by every command.
//
//	store -> executor -> queue (durable or memory) -> scheduler -> recovery, engine
//
// Exactly one of durable and memory is set.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	store    *store.Store
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	executor *executor.Executor
	durable  *queue.Durable
	memory   *queue.Memory
	sched    *scheduler.Scheduler
	recovery *recovery.Coordinator
	engine   *engine.Engine
}

// openApp loads configuration, opens the database and wires the
// components. Notifications print to stdout and logs go to stderr.
func openApp(opts *RootOptions, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	log := cfg.NewLogger(stderr, opts.Verbose)

	log.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	notifier := notify.Multi{notify.Log{Logger: log}, notify.NewWriter(stdout)}
	exec := executor.New(st, notifier,
		executor.WithLogger(log),
		executor.WithMetrics(m),
		executor.WithPlaceholder(cfg.Notify.PlaceholderBatchName),
	)

	policy := cfg.RetryPolicy()
	qopts := []queue.Option{queue.WithLogger(log), queue.WithMetrics(m), queue.WithRetry(policy)}

	a := &app{cfg: cfg, log: log, store: st, registry: registry, metrics: m, executor: exec}

	var q scheduler.Queue
	switch cfg.Queue.Backend {
	case config.BackendMemory:
		a.memory = queue.NewMemory(exec.Handle, qopts...)
		q = a.memory
	default:
		a.durable = queue.NewDurable(st, exec.Handle, queue.DurableConfig{
			PollInterval: cfg.Queue.PollInterval,
			Concurrency:  cfg.Queue.Concurrency,
			Lease:        cfg.Queue.Lease,
		}, qopts...)
		q = a.durable
	}

	a.sched = scheduler.New(q, scheduler.WithLogger(log), scheduler.WithMetrics(m), scheduler.WithRetry(policy))
	a.recovery = recovery.New(st, a.sched,
		recovery.WithLogger(log),
		recovery.WithMetrics(m),
		recovery.WithRetry(policy),
	)
	a.engine = engine.New(st, a.sched, engine.WithLogger(log))
	return a, nil
}

// Close stops the memory queue, if any, and closes the database.
func (a *app) Close() error {
	if a.memory != nil {
		a.memory.Close()
	}
	if err := a.store.Close(); err != nil {
		a.log.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// withApp opens the app for one command run and closes it afterwards.
func withApp(opts *RootOptions, stdout, stderr io.Writer, fn func(a *app) error) error {
	a, err := openApp(opts, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
