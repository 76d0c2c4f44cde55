// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

// Package retry implements the bounded Fibonacci backoff driver used by
// every I/O path in the substrate.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// FibonacciSchedule is the fixed backoff schedule, in multiples of the
// base interval. F[n] = F[n-1] + F[n-2] for n >= 2. With the default
// 1 s base the schedule sums to 33 s, which bounds total delay.
var FibonacciSchedule = []int64{1, 1, 2, 3, 5, 8, 13}

const (
	// DefaultMaxRetries allows up to 8 invocations in total.
	DefaultMaxRetries = 7

	// DefaultBaseInterval is the unit the schedule is scaled by.
	DefaultBaseInterval = 1000 * time.Millisecond

	// DefaultJitter is the +/- fraction applied to each scheduled delay.
	DefaultJitter = 0.10
)

// SleepFunc waits for d or returns early with the context error.
type SleepFunc func(ctx context.Context, d time.Duration) error

// NotifyFunc is invoked before each retry wait.
type NotifyFunc func(attempt int, delay time.Duration, err error)

// Policy configures a retry run. The zero value is not usable; start
// from DefaultPolicy.
type Policy struct {
	MaxRetries   int
	BaseInterval time.Duration
	Jitter       float64 // fraction in [0,1] of each scheduled delay

	// Rand returns a value in [0,1). Injectable for deterministic tests.
	Rand func() float64

	Sleep  SleepFunc
	Notify NotifyFunc
}

// DefaultPolicy returns the standard Fibonacci policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   DefaultMaxRetries,
		BaseInterval: DefaultBaseInterval,
		Jitter:       DefaultJitter,
	}
}

// Attempt records one invocation in the attempt log.
type Attempt struct {
	Number int           `json:"number"` // 1-based invocation number
	Delay  time.Duration `json:"delay"`  // wait applied before this invocation
	Error  string        `json:"error,omitempty"`
}

// Result carries the outcome of a retry run.
type Result[T any] struct {
	Success    bool
	Value      T
	Err        error
	Attempts   int
	TotalDelay time.Duration
	Log        []Attempt
}

// DelayFor returns the backoff before retry number i (i=0 is the first
// retry). Jitter widens the scheduled delay by a random factor in
// [-Jitter, +Jitter]; the result never goes below zero.
func (p Policy) DelayFor(i int) time.Duration {
	if i < 0 {
		return 0
	}
	if i >= len(FibonacciSchedule) {
		i = len(FibonacciSchedule) - 1
	}

	scheduled := float64(FibonacciSchedule[i]) * float64(p.BaseInterval)
	if p.Jitter > 0 {
		randFn := p.Rand
		if randFn == nil {
			randFn = rand.Float64
		}
		r := (randFn()*2 - 1) * p.Jitter
		scheduled *= 1 + r
	}
	if scheduled < 0 {
		scheduled = 0
	}

	return time.Duration(scheduled)
}

// MaxTotalDelay returns the upper bound on cumulative backoff for the
// policy, ignoring jitter: sum of the schedule times the base interval.
func (p Policy) MaxTotalDelay() time.Duration {
	var sum int64
	n := p.MaxRetries
	if n > len(FibonacciSchedule) {
		n = len(FibonacciSchedule)
	}
	for i := 0; i < n; i++ {
		sum += FibonacciSchedule[i]
	}
	return time.Duration(sum) * p.BaseInterval
}

// Do executes fn with Fibonacci backoff between failures.
//
// The first invocation runs with zero delay. The first success returns
// immediately. When the retry budget is exhausted the last error is
// returned. Panics with non-error values are wrapped into an error
// carrying the stringified value. Cancellation is checked before every
// wait and wakes any in-progress wait.
func Do[T any](ctx context.Context, policy Policy, fn func(context.Context) (T, error)) Result[T] {
	result := Result[T]{}

	sleepFn := policy.Sleep
	if sleepFn == nil {
		sleepFn = sleepWithCtx
	}

	maxRetries := policy.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		var delay time.Duration
		if attempt > 0 {
			delay = policy.DelayFor(attempt - 1)
			if policy.Notify != nil {
				policy.Notify(attempt, delay, lastErr)
			}
			if err := sleepFn(ctx, delay); err != nil {
				result.Err = fmt.Errorf("retry cancelled: %w", err)
				return result
			}
			result.TotalDelay += delay
		}

		result.Attempts++
		value, err := invoke(ctx, fn)

		entry := Attempt{Number: attempt + 1, Delay: delay}
		if err != nil {
			entry.Error = err.Error()
		}
		result.Log = append(result.Log, entry)

		if err == nil {
			result.Success = true
			result.Value = value
			return result
		}
		lastErr = err

		if ctx.Err() != nil {
			result.Err = fmt.Errorf("retry cancelled: %w", ctx.Err())
			return result
		}
	}

	result.Err = lastErr
	return result
}

// invoke runs fn, converting panics into errors so one bad operation
// cannot take down the executor that drives it.
func invoke[T any](ctx context.Context, fn func(context.Context) (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func sleepWithCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
