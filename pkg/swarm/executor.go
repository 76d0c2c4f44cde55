// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package swarm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Worker executes one subtask attempt and returns its result.
type Worker func(ctx context.Context, st *SubTask) (any, error)

// AgentLimiter paces subtask attempts per agent. Implemented by
// ratelimit.TierLimiter; nil disables pacing.
type AgentLimiter interface {
	Wait(ctx context.Context, agentID string) error
}

// Execution defaults.
const (
	DefaultTimeout    = 5 * time.Minute
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
	DefaultTick       = 100 * time.Millisecond
)

// Options tunes one coordinate call. Zero values fall back to the
// defaults above.
type Options struct {
	Sequential bool
	Selection  string // roles strategy name, best_match when empty
	Synthesis  SynthesisStrategy
	Conflict   ConflictResolution

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Tick       time.Duration

	Limiter AgentLimiter

	// OnComplete fires once per completed subtask, from the scheduler
	// goroutine.
	OnComplete func(st *SubTask)

	// Sleep is injectable for tests; defaults to time.Sleep.
	Sleep func(time.Duration)
}

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTimeout
}

func (o Options) maxRetries() int {
	if o.MaxRetries > 0 {
		return o.MaxRetries
	}
	return DefaultMaxRetries
}

func (o Options) retryDelay() time.Duration {
	if o.RetryDelay > 0 {
		return o.RetryDelay
	}
	return DefaultRetryDelay
}

func (o Options) tick() time.Duration {
	if o.Tick > 0 {
		return o.Tick
	}
	return DefaultTick
}

func (o Options) sleep(d time.Duration) {
	if o.Sleep != nil {
		o.Sleep(d)
		return
	}
	time.Sleep(d)
}

// attemptOutcome travels from a worker goroutine back to the scheduler,
// which stays the single writer of subtask state.
type attemptOutcome struct {
	id     string
	result any
	err    error
}

// ExecuteParallel runs the graph with dependency-respecting
// parallelism. Each tick starts every ready subtask in its own
// goroutine, then waits for at least one outcome before re-selecting.
// Returns ErrTimeout when the global budget fires; outcomes arriving
// after that are abandoned.
func ExecuteParallel(ctx context.Context, g *Graph, worker Worker, opts Options) error {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	// Debounce between scheduling rounds so an empty ready set does
	// not busy-spin.
	pacer := rate.NewLimiter(rate.Every(opts.tick()), 1)
	outcomes := make(chan attemptOutcome, g.Len())
	running := 0

	for {
		failBlocked(g, opts)

		if g.AllTerminal() {
			return nil
		}

		for _, st := range g.Ready() {
			if err := st.Start(); err != nil {
				return err
			}
			running++
			go func(st *SubTask) {
				result, err := runWithRetry(ctx, st, worker, opts)
				outcomes <- attemptOutcome{id: st.ID, result: result, err: err}
			}(st)
		}

		if running == 0 {
			if g.HasPending() {
				return ErrDeadlock
			}
			// in_progress without a tracked goroutine cannot happen;
			// loop back and settle.
			continue
		}

		select {
		case out := <-outcomes:
			running--
			applyOutcome(g, out, opts)
		case <-ctx.Done():
			return ErrTimeout
		}

		// Drain whatever else finished during the wait.
	drain:
		for running > 0 {
			select {
			case out := <-outcomes:
				running--
				applyOutcome(g, out, opts)
			default:
				break drain
			}
		}

		if err := pacer.Wait(ctx); err != nil {
			return ErrTimeout
		}
	}
}

// ExecuteSequential runs one ready subtask at a time, in graph order.
func ExecuteSequential(ctx context.Context, g *Graph, worker Worker, opts Options) error {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	for {
		failBlocked(g, opts)

		if g.AllTerminal() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return ErrTimeout
		}

		ready := g.Ready()
		if len(ready) == 0 {
			if g.HasPending() {
				return ErrDeadlock
			}
			continue
		}

		st := ready[0]
		if err := st.Start(); err != nil {
			return err
		}
		result, err := runWithRetry(ctx, st, worker, opts)
		applyOutcome(g, attemptOutcome{id: st.ID, result: result, err: err}, opts)
	}
}

// runWithRetry attempts a subtask up to 1+maxRetries times with a fixed
// delay between attempts. Worker panics count as failed attempts.
func runWithRetry(ctx context.Context, st *SubTask, worker Worker, opts Options) (any, error) {
	var lastErr error
	attempts := opts.maxRetries() + 1

	for i := 0; i < attempts; i++ {
		if i > 0 {
			opts.sleep(opts.retryDelay())
		}
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return nil, lastErr
		}
		if opts.Limiter != nil && st.AgentID != "" {
			if err := opts.Limiter.Wait(ctx, st.AgentID); err != nil {
				return nil, err
			}
		}

		result, err := safeAttempt(ctx, st, worker)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

func safeAttempt(ctx context.Context, st *SubTask, worker Worker) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("subtask panicked: %w", e)
				return
			}
			err = fmt.Errorf("subtask panicked: %v", r)
		}
	}()
	return worker(ctx, st)
}

// applyOutcome moves a subtask to its terminal state from the scheduler
// goroutine.
func applyOutcome(g *Graph, out attemptOutcome, opts Options) {
	st, ok := g.Get(out.id)
	if !ok || st.Status != SubTaskInProgress {
		return
	}
	if out.err != nil {
		_ = st.Fail(out.err.Error())
		return
	}
	_ = st.Complete(out.result)
	if opts.OnComplete != nil {
		opts.OnComplete(st)
	}
}

// failBlocked marks pending subtasks behind a failed dependency as
// failed so the loop can terminate.
func failBlocked(g *Graph, opts Options) {
	for {
		blocked := g.Blocked()
		if len(blocked) == 0 {
			return
		}
		for _, st := range blocked {
			st.Status = SubTaskInProgress // permitted: scheduler is the writer
			failedDep := ""
			for _, dep := range st.Dependencies {
				if d, ok := g.Get(dep); ok && d.Status == SubTaskFailed {
					failedDep = dep
					break
				}
			}
			_ = st.Fail(fmt.Sprintf("dependency %s failed", failedDep))
		}
	}
}
