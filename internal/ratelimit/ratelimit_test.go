package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitSpacesActions(t *testing.T) {
	l := New(30*time.Millisecond, 30*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))
	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestWaitCancellation(t *testing.T) {
	l := New(time.Minute, time.Minute)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
}

func TestRecordFailureWidensWindow(t *testing.T) {
	l := New(time.Second, 2*time.Second)

	// Two failures are not yet a streak.
	l.RecordFailure()
	l.RecordFailure()
	minD, maxD := l.Delays()
	assert.Equal(t, time.Second, minD)
	assert.Equal(t, 2*time.Second, maxD)

	l.RecordFailure()
	minD, maxD = l.Delays()
	assert.Equal(t, 1500*time.Millisecond, minD)
	assert.Equal(t, 3*time.Second, maxD)
}

func TestRecordFailureRespectsCeiling(t *testing.T) {
	l := New(time.Second, 2*time.Second)

	for i := 0; i < 30; i++ {
		l.RecordFailure()
	}
	_, maxD := l.Delays()
	assert.LessOrEqual(t, maxD, 8*time.Second)
}

func TestRecordSuccessNarrowsWindowAfterStreak(t *testing.T) {
	l := New(time.Second, 2*time.Second)

	// Widen first so there is room to narrow.
	for i := 0; i < 3; i++ {
		l.RecordFailure()
	}
	widenedMin, widenedMax := l.Delays()

	for i := 0; i < 5; i++ {
		l.RecordSuccess()
	}
	minD, maxD := l.Delays()
	assert.Less(t, minD, widenedMin)
	assert.Less(t, maxD, widenedMax)
}

func TestRecordSuccessNeverDropsBelowFloor(t *testing.T) {
	l := New(time.Second, 2*time.Second)

	for i := 0; i < 100; i++ {
		l.RecordSuccess()
	}
	minD, maxD := l.Delays()
	assert.Equal(t, time.Second, minD)
	assert.GreaterOrEqual(t, maxD, minD)
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	l := New(time.Second, 2*time.Second)

	l.RecordFailure()
	l.RecordFailure()
	l.RecordSuccess()
	l.RecordFailure()
	l.RecordFailure()

	minD, _ := l.Delays()
	assert.Equal(t, time.Second, minD, "interleaved success must break the failure streak")
}
