package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brewlog/internal/bootsignal"
	"github.com/roach88/brewlog/internal/store"
)

// syncBuffer is a bytes.Buffer safe for the worker's goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brewlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// startServe runs the serve command until the returned stop func is called.
func startServe(t *testing.T, opts *ServeOptions) (stdout *syncBuffer, stop func() error) {
	t.Helper()
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	ready := make(chan struct{})
	opts.Ready = ready

	cmd := newServeCommand(opts)
	cmd.SetArgs([]string{})
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	select {
	case <-ready:
	case err := <-done:
		cancel()
		t.Fatalf("serve exited early: %v\nstderr: %s", err, stderr.String())
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatalf("serve not ready\nstderr: %s", stderr.String())
	}

	return stdout, func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(10 * time.Second):
			return context.DeadlineExceeded
		}
	}
}

func TestServe_DeliversDueAlarm(t *testing.T) {
	tests := []struct {
		name    string
		backend string
	}{
		{name: "sqlite", backend: "sqlite"},
		{name: "memory", backend: "memory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t)
			created := env.startBatch(env.importRecipe())

			res := env.json("alarm", "add", "--batch", itoa(created.Batch.ID),
				"--title", "Taste", "--description", "sip it", "--at", "+2s")
			require.Equal(t, ExitSuccess, res.code, res.stdout+res.stderr)
			var added jsonAlarm
			res.decode(t, &added)

			cfg := writeConfig(t, "queue:\n  backend: "+tt.backend+"\n  poll_interval: 50ms\n")
			stdout, stop := startServe(t, &ServeOptions{
				RootOptions: &RootOptions{ConfigPath: cfg, Database: env.db, Format: "text"},
				BootReader:  func() (string, error) { return "boot-a", nil },
			})

			assert.Contains(t, stdout.String(), "Worker started")
			require.Eventually(t, func() bool {
				return strings.Contains(stdout.String(), "] Taste")
			}, 8*time.Second, 50*time.Millisecond, "stdout: %s", stdout.String())
			assert.Contains(t, stdout.String(), "Batch: Spring - sip it")

			var alarms []jsonAlarm
			require.Eventually(t, func() bool {
				alarms = nil
				env.json("alarm", "list", "--batch", itoa(created.Batch.ID)).decode(t, &alarms)
				for _, a := range alarms {
					if a.ID == added.ID {
						return a.IsTriggered
					}
				}
				return false
			}, 5*time.Second, 50*time.Millisecond)
			require.NoError(t, stop())

			for _, a := range alarms {
				assert.Equal(t, a.ID == added.ID, a.IsTriggered, "alarm %d", a.ID)
			}
		})
	}
}

func TestServe_MetricsEndpoint(t *testing.T) {
	env := newCLIEnv(t)
	env.importRecipe()

	_, stop := startServe(t, &ServeOptions{
		RootOptions: &RootOptions{Database: env.db, Format: "text"},
		MetricsAddr: "127.0.0.1:0",
		BootReader:  func() (string, error) { return "boot-a", nil },
	})
	assert.NoError(t, stop())
}

func TestServe_CommitsBootIDAfterRecovery(t *testing.T) {
	env := newCLIEnv(t)
	env.startBatch(env.importRecipe())

	_, stop := startServe(t, &ServeOptions{
		RootOptions: &RootOptions{Database: env.db, Format: "text"},
		BootReader:  func() (string, error) { return "boot-b", nil },
	})
	require.NoError(t, stop())

	s, err := store.Open(env.db)
	require.NoError(t, err)
	defer s.Close()
	id, ok, err := s.HostValue(context.Background(), bootsignal.BootIDKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "boot-b", id)
}

func TestServe_BadConfig(t *testing.T) {
	env := newCLIEnv(t)
	cfg := writeConfig(t, "queue:\n  backend: kafka\n")

	cmd := newServeCommand(&ServeOptions{RootOptions: &RootOptions{ConfigPath: cfg, Database: env.db, Format: "text"}})
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "kafka")
}
