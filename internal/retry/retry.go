// Package retry runs operations with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy bounds a retry loop. The delay before attempt n (n >= 1) is
// BaseDelay * 2^(n-1), capped at MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Default is five attempts starting at 10s, capped at 5m.
var Default = Policy{MaxAttempts: 5, BaseDelay: 10 * time.Second, MaxDelay: 5 * time.Minute}

// Delay returns the backoff to wait after the given number of failed
// attempts.
func (p Policy) Delay(failed int) time.Duration {
	if failed < 1 {
		failed = 1
	}
	d := p.BaseDelay
	for i := 1; i < failed; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Exhausted reports whether failed attempts have used up the policy.
func (p Policy) Exhausted(failed int) bool {
	return failed >= p.attempts()
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanent
	return errors.As(err, &p)
}

// Do calls fn until it succeeds, returns a Permanent error, the policy is
// exhausted, or ctx is done. It returns the last error from fn, unwrapped
// from Permanent, or ctx.Err() if the context ended a wait.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var err error
	for failed := 0; ; {
		if err = fn(ctx); err == nil {
			return nil
		}
		var perm permanent
		if errors.As(err, &perm) {
			return perm.err
		}

		failed++
		if p.Exhausted(failed) {
			return err
		}

		t := time.NewTimer(p.Delay(failed))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
