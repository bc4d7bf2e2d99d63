package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failing struct{ err error }

func (f failing) Deliver(context.Context, Notification) error { return f.err }

func TestBody(t *testing.T) {
	assert.Equal(t, "Batch: Spring - Time to filter the batch", Body("Spring", "Time to filter the batch"))
	assert.Equal(t, "Batch: Spring", Body("Spring", ""))
}

func TestWriter_Deliver(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	err := w.Deliver(context.Background(), Notification{ID: 3, Title: "Filter - Spring", Body: "Batch: Spring"})
	require.NoError(t, err)
	assert.Equal(t, "[alarm 3] Filter - Spring\n  Batch: Spring\n", buf.String())
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")
	m := Multi{failing{boom}, NewWriter(&buf)}

	err := m.Deliver(context.Background(), Notification{ID: 1, Title: "t", Body: "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), "[alarm 1] t", "later notifiers still run")
}

func TestLog_NilLoggerUsesDefault(t *testing.T) {
	assert.NoError(t, Log{}.Deliver(context.Background(), Notification{ID: 1}))
}
