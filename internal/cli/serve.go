package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/brewlog/internal/bootsignal"
	"github.com/roach88/brewlog/internal/metrics"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	MetricsAddr string

	// BootReader overrides the boot id source (for testing).
	// If nil, the configured boot_id_path is read.
	BootReader bootsignal.Reader

	// Ready, if set, is closed once recovery finished and the queue runs
	// (for testing).
	Ready chan<- struct{}
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Deliver alarms as they fall due",
		Long: `Run the alarm worker until interrupted.

On start the host boot id is compared with the one recorded last time.
After a reboot, or on first start, every active alarm is re-armed. With
the memory queue backend every start counts as a reboot.

Due alarms are printed to stdout and logged. When metrics.addr (or
--metrics-addr) is set, Prometheus metrics are served on /metrics.

Example:
  brewlog serve --db ./brewlog.db
  brewlog serve --metrics-addr :9464 --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "listen address for /metrics (overrides config)")
	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			a.log.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	addr := a.cfg.Metrics.Addr
	if opts.MetricsAddr != "" {
		addr = opts.MetricsAddr
	}
	if addr != "" {
		stop, err := serveMetrics(a, addr)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start metrics server", err)
		}
		defer stop()
	}

	booted := true
	var bootID string
	if a.durable != nil {
		read := opts.BootReader
		if read == nil {
			read = bootsignal.FileReader(a.cfg.BootIDPath)
		}
		bootID, booted, err = bootsignal.Detect(ctx, a.store, read)
		if err != nil {
			a.log.Warn("boot detection failed, recovering anyway", "error", err)
			booted = true
		}
	}

	if err := a.recovery.Listen(ctx, bootsignal.Once(booted)); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		// The boot id stays uncommitted, so the next start recovers again.
		a.log.Error("recovery incomplete, it runs again on the next start", "error", err)
	} else if booted && bootID != "" {
		if err := bootsignal.Commit(ctx, a.store, bootID); err != nil {
			a.log.Warn("recording boot id failed", "error", err)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Worker started. Waiting for alarms...")
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	if opts.Ready != nil {
		close(opts.Ready)
	}

	if a.durable != nil {
		err = a.durable.Run(ctx)
	} else {
		<-ctx.Done()
		err = ctx.Err()
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "worker error", err)
	}

	a.log.Info("worker stopped gracefully")
	return nil
}

// serveMetrics starts the /metrics endpoint on addr and returns a func
// that shuts it down.
func serveMetrics(a *app, addr string) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.registry))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.log.Info("metrics listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.log.Warn("metrics server shutdown", "error", err)
		}
	}, nil
}
