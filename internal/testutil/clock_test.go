package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_StartsAtGivenTime(t *testing.T) {
	c := NewFakeClock(epoch)
	assert.Equal(t, epoch, c.Now())
}

func TestFakeClock_AdvanceMovesTime(t *testing.T) {
	c := NewFakeClock(epoch)
	c.Advance(90 * time.Minute)
	assert.Equal(t, epoch.Add(90*time.Minute), c.Now())
}

func TestFakeClock_FiresDueTimersInOrder(t *testing.T) {
	c := NewFakeClock(epoch)
	var order []string
	var firedAt []time.Time

	c.AfterFunc(3*time.Hour, func() { order = append(order, "c"); firedAt = append(firedAt, c.Now()) })
	c.AfterFunc(time.Hour, func() { order = append(order, "a"); firedAt = append(firedAt, c.Now()) })
	c.AfterFunc(time.Hour, func() { order = append(order, "b"); firedAt = append(firedAt, c.Now()) })
	c.AfterFunc(5*time.Hour, func() { order = append(order, "late") })

	c.Advance(4 * time.Hour)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []time.Time{epoch.Add(time.Hour), epoch.Add(time.Hour), epoch.Add(3 * time.Hour)}, firedAt)
	assert.Equal(t, 1, c.Pending())
}

func TestFakeClock_StopPreventsFire(t *testing.T) {
	c := NewFakeClock(epoch)
	fired := false
	timer := c.AfterFunc(time.Minute, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports false")

	c.Advance(time.Hour)
	assert.False(t, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestFakeClock_StopAfterFireReportsFalse(t *testing.T) {
	c := NewFakeClock(epoch)
	timer := c.AfterFunc(time.Minute, func() {})
	c.Advance(time.Minute)
	assert.False(t, timer.Stop())
}

func TestFakeClock_CallbackMayScheduleMore(t *testing.T) {
	c := NewFakeClock(epoch)
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			c.AfterFunc(10*time.Minute, tick)
		}
	}
	c.AfterFunc(10*time.Minute, tick)

	c.Advance(time.Hour)
	assert.Equal(t, 3, count)
	assert.Equal(t, 0, c.Pending())
}

func TestFakeClock_ZeroDelayFiresOnAdvanceZero(t *testing.T) {
	c := NewFakeClock(epoch)
	fired := false
	c.AfterFunc(0, func() { fired = true })
	assert.False(t, fired)

	c.Advance(0)
	assert.True(t, fired)
}
