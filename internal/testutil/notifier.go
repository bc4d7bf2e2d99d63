package testutil

import (
	"context"
	"sync"

	"github.com/roach88/brewlog/internal/notify"
)

// RecordingNotifier records every delivered notification.
//
// FailNext makes the next n deliveries return Err without recording them.
type RecordingNotifier struct {
	mu        sync.Mutex
	delivered []notify.Notification
	failNext  int
	err       error
}

var _ notify.Notifier = (*RecordingNotifier)(nil)

// NewRecordingNotifier creates an empty recorder.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

// FailNext makes the next n deliveries fail with err.
func (r *RecordingNotifier) FailNext(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = n
	r.err = err
}

// Deliver implements notify.Notifier.
func (r *RecordingNotifier) Deliver(ctx context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failNext > 0 {
		r.failNext--
		return r.err
	}
	r.delivered = append(r.delivered, n)
	return nil
}

// Delivered returns a copy of the recorded notifications.
func (r *RecordingNotifier) Delivered() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Notification, len(r.delivered))
	copy(out, r.delivered)
	return out
}

// Count returns the number of recorded notifications.
func (r *RecordingNotifier) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.delivered)
}
