// Package bootsignal derives the one-shot boot-completion signal.
//
// Registrations held by the host's deferred-task facility are lost when the
// host restarts. On Linux the kernel exposes a random id per boot; when it
// differs from the one committed after the last complete recovery, the
// host has rebooted since and recovery must run.
package bootsignal

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// BootIDKey is the host_state key holding the last seen boot id.
const BootIDKey = "boot_id"

// DefaultPath is where Linux publishes the current boot id.
const DefaultPath = "/proc/sys/kernel/random/boot_id"

// HostState stores small facts about the host. *store.Store implements it.
type HostState interface {
	HostValue(ctx context.Context, key string) (string, bool, error)
	SetHostValue(ctx context.Context, key, value string) error
}

// Reader returns the current boot id.
type Reader func() (string, error)

// FileReader reads the boot id from path.
func FileReader(path string) Reader {
	return func() (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read boot id: %w", err)
		}
		id := strings.TrimSpace(string(data))
		if id == "" {
			return "", fmt.Errorf("read boot id: %s is empty", path)
		}
		return id, nil
	}
}

// Detect reports whether recovery is due: the host booted since a boot id
// was last committed, or no id was ever committed. It returns the current
// boot id for Commit and records nothing itself.
func Detect(ctx context.Context, hs HostState, read Reader) (string, bool, error) {
	current, err := read()
	if err != nil {
		return "", false, err
	}

	last, ok, err := hs.HostValue(ctx, BootIDKey)
	if err != nil {
		return "", false, err
	}
	return current, !ok || last != current, nil
}

// Commit records id as recovered. Call it only after a recovery pass armed
// every active alarm; until then each start on the same boot recovers again.
func Commit(ctx context.Context, hs HostState, id string) error {
	if err := hs.SetHostValue(ctx, BootIDKey, id); err != nil {
		return fmt.Errorf("commit boot id: %w", err)
	}
	return nil
}

// Once returns a channel that delivers a single signal and closes when
// booted is true, and is closed without a signal otherwise.
func Once(booted bool) <-chan struct{} {
	ch := make(chan struct{}, 1)
	if booted {
		ch <- struct{}{}
	}
	close(ch)
	return ch
}
