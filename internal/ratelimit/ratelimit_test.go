package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBlocked = errors.New("blocked")

func isBlocked(err error) bool { return errors.Is(err, errBlocked) }

func TestJittered_FirstWaitIsImmediate(t *testing.T) {
	j := NewJittered(Window{Min: time.Hour, Max: time.Hour})

	start := time.Now()
	require.NoError(t, j.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestJittered_SpacesRequests(t *testing.T) {
	j := NewJittered(Window{Min: 50 * time.Millisecond, Max: 50 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, j.Wait(ctx))
	start := time.Now()
	require.NoError(t, j.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestJittered_Cancelled(t *testing.T) {
	j := NewJittered(Window{Min: time.Hour, Max: time.Hour})
	require.NoError(t, j.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, j.Wait(ctx), context.DeadlineExceeded)

	done, cancelDone := context.WithCancel(context.Background())
	cancelDone()
	assert.ErrorIs(t, NewJittered(Window{}).Wait(done), context.Canceled)
}

func TestJittered_Slots(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	j := NewJittered(Window{Min: time.Second, Max: 3 * time.Second})
	j.now = func() time.Time { return now }
	j.jitter = func(n int64) int64 { return n / 2 }

	assert.Equal(t, 2*time.Second, j.delay())

	require.NoError(t, j.Wait(context.Background()))
	assert.Equal(t, now.Add(2*time.Second), j.next)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, j.Wait(ctx), context.Canceled)
	assert.Equal(t, now.Add(2*time.Second), j.next, "a cancelled caller takes no slot")
}

func TestWindow_Normalized(t *testing.T) {
	j := NewJittered(Window{Min: 5 * time.Second, Max: time.Second})
	assert.Equal(t, Window{Min: 5 * time.Second, Max: 5 * time.Second}, j.Window())
	assert.Equal(t, 5*time.Second, j.delay())

	j.SetWindow(Window{Min: -time.Second, Max: 2 * time.Second})
	assert.Equal(t, Window{Min: 0, Max: 2 * time.Second}, j.Window())
}

func TestAdaptive_BacksOffAfterRepeatedErrors(t *testing.T) {
	a := NewAdaptive(Window{Min: time.Second, Max: 2 * time.Second}, isBlocked)

	a.Record(errors.New("timeout"))
	a.Record(errors.New("timeout"))
	assert.Equal(t, Window{Min: time.Second, Max: 2 * time.Second}, a.Window())

	a.Record(errors.New("timeout"))
	assert.Equal(t, Window{Min: 1500 * time.Millisecond, Max: 3 * time.Second}, a.Window())
}

func TestAdaptive_SuccessResetsErrorRun(t *testing.T) {
	a := NewAdaptive(Window{Min: time.Second, Max: 2 * time.Second}, nil)

	a.Record(errors.New("timeout"))
	a.Record(errors.New("timeout"))
	a.Record(nil)
	a.Record(errors.New("timeout"))
	assert.Equal(t, time.Second, a.Window().Min)
}

func TestAdaptive_BlockedBacksOffAtOnce(t *testing.T) {
	a := NewAdaptive(Window{Min: time.Second, Max: 2 * time.Second}, isBlocked)

	a.Record(errBlocked)
	assert.Equal(t, Window{Min: 2 * time.Second, Max: 4 * time.Second}, a.Window())
}

func TestAdaptive_EasesBackToBase(t *testing.T) {
	base := Window{Min: time.Second, Max: 2 * time.Second}
	a := NewAdaptive(base, isBlocked)
	a.Record(errBlocked)
	a.Record(errBlocked)

	for i := 0; i < 100; i++ {
		a.Record(nil)
	}
	assert.Equal(t, base, a.Window())
}

func TestAdaptive_Ceiling(t *testing.T) {
	a := NewAdaptive(Window{Min: 50 * time.Second, Max: 100 * time.Second}, isBlocked)
	a.Record(errBlocked)
	assert.Equal(t, Ceiling, a.Window())
}
