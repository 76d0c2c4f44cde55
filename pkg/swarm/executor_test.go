package swarm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func assigned(id string, deps ...string) *SubTask {
	st := pending(id, deps...)
	st.AgentID = "agent-" + id
	return st
}

func fastOpts() Options {
	return Options{
		Tick:       time.Millisecond,
		RetryDelay: time.Millisecond,
		Sleep:      func(time.Duration) {},
	}
}

func TestExecuteParallel_HappyPath(t *testing.T) {
	g, err := BuildGraph([]*SubTask{
		assigned("a"),
		assigned("b", "a"),
		assigned("c", "a", "b"),
	})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	var mu sync.Mutex
	var started []string
	worker := func(_ context.Context, st *SubTask) (any, error) {
		mu.Lock()
		started = append(started, st.ID)
		mu.Unlock()
		return st.ID + "-done", nil
	}

	if err := ExecuteParallel(context.Background(), g, worker, fastOpts()); err != nil {
		t.Fatalf("ExecuteParallel: %v", err)
	}
	if !g.AllTerminal() {
		t.Fatal("all subtasks must be terminal")
	}
	for _, st := range g.Subtasks() {
		if st.Status != SubTaskCompleted {
			t.Errorf("subtask %s = %s, want completed", st.ID, st.Status)
		}
	}
	if started[0] != "a" || started[2] != "c" {
		t.Errorf("start order = %v, want dependencies first", started)
	}
}

func TestExecuteParallel_RetriesWithFixedDelay(t *testing.T) {
	g, err := BuildGraph([]*SubTask{assigned("a")})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	var sleeps []time.Duration
	opts := Options{
		Tick:       time.Millisecond,
		RetryDelay: 3 * time.Millisecond,
		Sleep:      func(d time.Duration) { sleeps = append(sleeps, d) },
	}

	calls := 0
	worker := func(context.Context, *SubTask) (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	}

	if err := ExecuteParallel(context.Background(), g, worker, opts); err != nil {
		t.Fatalf("ExecuteParallel: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (two retries)", calls)
	}
	if len(sleeps) != 2 || sleeps[0] != 3*time.Millisecond || sleeps[1] != 3*time.Millisecond {
		t.Errorf("sleeps = %v, want two fixed 3ms delays", sleeps)
	}
}

func TestExecuteParallel_ExhaustedRetriesFailSubtask(t *testing.T) {
	g, err := BuildGraph([]*SubTask{assigned("a")})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	calls := 0
	worker := func(context.Context, *SubTask) (any, error) {
		calls++
		return nil, fmt.Errorf("attempt %d failed", calls)
	}

	opts := fastOpts()
	opts.MaxRetries = 2
	if err := ExecuteParallel(context.Background(), g, worker, opts); err != nil {
		t.Fatalf("ExecuteParallel: %v", err)
	}

	st, _ := g.Get("a")
	if st.Status != SubTaskFailed {
		t.Fatalf("status = %s, want failed", st.Status)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 1 + 2 retries", calls)
	}
	if st.Error != "attempt 3 failed" {
		t.Errorf("error = %q, want the last attempt's error", st.Error)
	}
}

func TestExecuteParallel_FailurePropagatesToDependents(t *testing.T) {
	g, err := BuildGraph([]*SubTask{
		assigned("a"),
		assigned("b", "a"),
		assigned("c", "b"),
	})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	worker := func(_ context.Context, st *SubTask) (any, error) {
		if st.ID == "a" {
			return nil, errors.New("root failure")
		}
		return "ok", nil
	}

	opts := fastOpts()
	opts.MaxRetries = 1
	if err := ExecuteParallel(context.Background(), g, worker, opts); err != nil {
		t.Fatalf("ExecuteParallel: %v", err)
	}

	for _, id := range []string{"b", "c"} {
		st, _ := g.Get(id)
		if st.Status != SubTaskFailed {
			t.Errorf("subtask %s = %s, want failed via dependency", id, st.Status)
		}
		if !strings.Contains(st.Error, "dependency") {
			t.Errorf("subtask %s error = %q, want a dependency failure message", id, st.Error)
		}
	}
}

func TestExecuteParallel_GlobalTimeout(t *testing.T) {
	g, err := BuildGraph([]*SubTask{assigned("a")})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	worker := func(ctx context.Context, _ *SubTask) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	opts := fastOpts()
	opts.Timeout = 20 * time.Millisecond
	err = ExecuteParallel(context.Background(), g, worker, opts)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if err.Error() != "Swarm execution timeout" {
		t.Errorf("timeout message = %q", err.Error())
	}
}

func TestExecuteParallel_WorkerPanicIsFailure(t *testing.T) {
	g, err := BuildGraph([]*SubTask{assigned("a")})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	worker := func(context.Context, *SubTask) (any, error) {
		panic("kaboom")
	}

	opts := fastOpts()
	opts.MaxRetries = 1
	if err := ExecuteParallel(context.Background(), g, worker, opts); err != nil {
		t.Fatalf("ExecuteParallel: %v", err)
	}

	st, _ := g.Get("a")
	if st.Status != SubTaskFailed || !strings.Contains(st.Error, "kaboom") {
		t.Errorf("status=%s error=%q, want panic captured as failure", st.Status, st.Error)
	}
}

func TestExecuteSequential_RunsOneAtATime(t *testing.T) {
	g, err := BuildGraph([]*SubTask{
		assigned("a"),
		assigned("b", "a"),
	})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	inFlight := 0
	worker := func(_ context.Context, st *SubTask) (any, error) {
		inFlight++
		defer func() { inFlight-- }()
		if inFlight > 1 {
			t.Error("sequential executor ran subtasks concurrently")
		}
		return st.ID, nil
	}

	if err := ExecuteSequential(context.Background(), g, worker, fastOpts()); err != nil {
		t.Fatalf("ExecuteSequential: %v", err)
	}
	if !g.AllTerminal() {
		t.Error("all subtasks must be terminal")
	}
}

func TestExecuteSequential_Timeout(t *testing.T) {
	g, err := BuildGraph([]*SubTask{
		assigned("a"),
		assigned("b", "a"),
	})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	worker := func(ctx context.Context, st *SubTask) (any, error) {
		if st.ID == "a" {
			time.Sleep(30 * time.Millisecond)
		}
		return st.ID, nil
	}

	opts := fastOpts()
	opts.Timeout = 10 * time.Millisecond
	err = ExecuteSequential(context.Background(), g, worker, opts)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestOnComplete_FiresPerCompletedSubtask(t *testing.T) {
	g, err := BuildGraph([]*SubTask{assigned("a"), assigned("b")})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	opts := fastOpts()
	opts.OnComplete = func(st *SubTask) {
		mu.Lock()
		seen[st.ID] = true
		mu.Unlock()
	}

	worker := func(_ context.Context, st *SubTask) (any, error) { return st.ID, nil }
	if err := ExecuteParallel(context.Background(), g, worker, opts); err != nil {
		t.Fatalf("ExecuteParallel: %v", err)
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("OnComplete fired for %v, want both subtasks", seen)
	}
}
