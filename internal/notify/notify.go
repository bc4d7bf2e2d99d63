// Package notify delivers alarm notifications to the user.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Notification is what the user sees when an alarm fires.
type Notification struct {
	ID    int64  `json:"id"` // alarm id; a later notification with the same id replaces it
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Deliver(ctx context.Context, n Notification) error
}

// Body composes the notification body for an alarm of the named batch.
func Body(batchName, description string) string {
	if description == "" {
		return "Batch: " + batchName
	}
	return fmt.Sprintf("Batch: %s - %s", batchName, description)
}

// Log delivers notifications as structured log records.
type Log struct {
	Logger *slog.Logger
}

// Deliver implements Notifier.
func (l Log) Deliver(ctx context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "alarm notification", "alarm_id", n.ID, "title", n.Title, "body", n.Body)
	return nil
}

// Writer prints notifications to an io.Writer, one block per notification.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a Writer notifier.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Deliver implements Notifier.
func (w *Writer) Deliver(ctx context.Context, n Notification) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintf(w.w, "[alarm %d] %s\n  %s\n", n.ID, n.Title, n.Body)
	return err
}

// Multi fans a notification out to several notifiers. Every notifier is
// attempted; the joined error reports the ones that failed.
type Multi []Notifier

// Deliver implements Notifier.
func (m Multi) Deliver(ctx context.Context, n Notification) error {
	var errs []error
	for _, d := range m {
		if err := d.Deliver(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
