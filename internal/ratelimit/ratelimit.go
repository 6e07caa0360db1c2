package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Limiter paces page requests.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Recorder is implemented by limiters that adapt to request outcomes.
type Recorder interface {
	Record(err error)
}

// Window is the range a jittered delay is drawn from.
type Window struct {
	Min time.Duration
	Max time.Duration
}

func (w Window) normalized() Window {
	if w.Min < 0 {
		w.Min = 0
	}
	if w.Max < w.Min {
		w.Max = w.Min
	}
	return w
}

func (w Window) scale(f float64, ceiling Window) Window {
	w.Min = min(time.Duration(float64(w.Min)*f), ceiling.Min)
	w.Max = min(time.Duration(float64(w.Max)*f), ceiling.Max)
	return w.normalized()
}

// Jittered hands out request slots spaced by a random delay from its
// window. The first slot is immediate. Callers sleep outside the lock, so a
// cancelled waiter does not hold up the others.
type Jittered struct {
	mu     sync.Mutex
	window Window
	next   time.Time
	now    func() time.Time
	jitter func(n int64) int64
}

func NewJittered(w Window) *Jittered {
	return &Jittered{
		window: w.normalized(),
		now:    time.Now,
		jitter: rand.Int64N,
	}
}

func (j *Jittered) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j.mu.Lock()
	now := j.now()
	slot := j.next
	if slot.Before(now) {
		slot = now
	}
	j.next = slot.Add(j.delay())
	j.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (j *Jittered) Window() Window {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.window
}

func (j *Jittered) SetWindow(w Window) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.window = w.normalized()
}

// delay must be called with mu held.
func (j *Jittered) delay() time.Duration {
	spread := j.window.Max - j.window.Min
	if spread <= 0 {
		return j.window.Min
	}
	return j.window.Min + time.Duration(j.jitter(int64(spread)))
}

// Ceiling bounds how far Adaptive backs off.
var Ceiling = Window{Min: 60 * time.Second, Max: 120 * time.Second}

const (
	errorsBeforeBackoff = 3
	successesBeforeEase = 5
	backoffFactor       = 1.5
	severeBackoffFactor = 2.0
	easeFactor          = 0.9
)

// Adaptive widens its window after a run of failed requests and eases back
// towards the base window after a run of successes. Errors for which severe
// returns true, such as a bot-protection page, back off at once and harder.
type Adaptive struct {
	*Jittered
	base      Window
	severe    func(error) bool
	failures  int
	successes int
}

func NewAdaptive(base Window, severe func(error) bool) *Adaptive {
	if severe == nil {
		severe = func(error) bool { return false }
	}
	return &Adaptive{
		Jittered: NewJittered(base),
		base:     base.normalized(),
		severe:   severe,
	}
}

func (a *Adaptive) Record(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err == nil {
		a.failures = 0
		a.successes++
		if a.successes >= successesBeforeEase {
			a.successes = 0
			a.window = a.eased()
		}
		return
	}

	a.successes = 0
	a.failures++
	switch {
	case a.severe(err):
		a.failures = 0
		a.window = a.window.scale(severeBackoffFactor, Ceiling)
	case a.failures >= errorsBeforeBackoff:
		a.failures = 0
		a.window = a.window.scale(backoffFactor, Ceiling)
	}
}

// eased shrinks the window without going below the base window.
func (a *Adaptive) eased() Window {
	w := a.window.scale(easeFactor, Ceiling)
	w.Min = max(w.Min, a.base.Min)
	w.Max = max(w.Max, a.base.Max)
	return w
}
