// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package swarm

import (
	"context"
	"fmt"
	"time"

	"github.com/agentic-reserve/ordo/pkg/agents"
	"github.com/agentic-reserve/ordo/pkg/bus"
	"github.com/agentic-reserve/ordo/pkg/logger"
	"github.com/agentic-reserve/ordo/pkg/retry"
	"github.com/agentic-reserve/ordo/pkg/roles"
	"github.com/agentic-reserve/ordo/pkg/sharedmem"
)

// Coordinator drives the full decompose-assign-execute-synthesise
// pipeline for complex tasks. Shared memory is the only channel other
// agents observe progress through; the event bus carries in-process
// notifications.
type Coordinator struct {
	store  *sharedmem.Store
	events *bus.EventBus
	worker Worker

	// publishPolicy retries shared-memory writes; progress records are
	// best-effort but transient store errors should not fail a task.
	publishPolicy retry.Policy
}

// NewCoordinator wires a coordinator. store and events may be nil, in
// which case progress publishing is skipped.
func NewCoordinator(store *sharedmem.Store, events *bus.EventBus, worker Worker) *Coordinator {
	return &Coordinator{
		store:  store,
		events: events,
		worker: worker,
		publishPolicy: retry.Policy{
			MaxRetries:   2,
			BaseInterval: 100 * time.Millisecond,
		},
	}
}

// Coordinate runs one complex task end to end and returns the
// collected result. Errors inside subtasks are gathered on the result,
// never returned; only precondition failures (bad task, no agents)
// surface as an error.
func (c *Coordinator) Coordinate(ctx context.Context, task *ComplexTask, candidates []*agents.Agent, coordinatorID string, opts Options) (*SwarmResult, error) {
	started := time.Now()

	subtasks, err := Decompose(task)
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}
	g, err := BuildGraph(subtasks)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	strategy := roles.Strategy(opts.Selection)
	if strategy == "" {
		strategy = roles.StrategyBestMatch
	}
	if err := Assign(g, candidates, strategy); err != nil {
		return nil, fmt.Errorf("assign: %w", err)
	}

	c.publishPlan(ctx, task, g, coordinatorID)
	c.emit("swarm:started", map[string]any{
		"task_id":  task.ID,
		"subtasks": g.Len(),
	})

	collab := c.openCollaboration(task, g, coordinatorID)

	prior := opts.OnComplete
	opts.OnComplete = func(st *SubTask) {
		c.persistResult(ctx, task.ID, st, coordinatorID)
		c.emit("swarm:subtask:completed", map[string]any{
			"task_id":    task.ID,
			"subtask_id": st.ID,
			"agent_id":   st.AgentID,
		})
		if prior != nil {
			prior(st)
		}
	}

	var execErr error
	if opts.Sequential {
		execErr = ExecuteSequential(ctx, g, c.worker, opts)
	} else {
		execErr = ExecuteParallel(ctx, g, c.worker, opts)
	}

	ReleaseLoads(g, candidates)

	result := c.buildResult(task, g, execErr, opts)
	result.DurationMs = time.Since(started).Milliseconds()

	if collab != nil {
		if err := collab.Close(result.Success, result.Output); err != nil {
			logger.WarnCF("swarm", "collaboration close failed", map[string]any{"collab_id": collab.ID, "error": err.Error()})
		}
		result.Collaboration = collab
	}

	c.emit("swarm:completed", map[string]any{
		"task_id":     task.ID,
		"success":     result.Success,
		"errors":      len(result.Errors),
		"duration_ms": result.DurationMs,
	})

	return result, nil
}

// buildResult folds terminal subtask state into a SwarmResult.
func (c *Coordinator) buildResult(task *ComplexTask, g *Graph, execErr error, opts Options) *SwarmResult {
	result := &SwarmResult{
		TaskID:         task.ID,
		SubtaskResults: make(map[string]any),
	}

	allCompleted := true
	for _, st := range g.Subtasks() {
		switch st.Status {
		case SubTaskCompleted:
			result.SubtaskResults[st.ID] = st.Result
		case SubTaskFailed:
			allCompleted = false
			result.Errors = append(result.Errors, fmt.Sprintf("subtask %s: %s", st.ID, st.Error))
		default:
			allCompleted = false
		}
	}

	if msg := g.CycleError(); msg != "" {
		result.Errors = append(result.Errors, msg)
	}
	if execErr != nil {
		allCompleted = false
		result.Errors = append(result.Errors, execErr.Error())
	}

	output, err := Synthesize(g.Subtasks(), opts.Synthesis, opts.Conflict)
	if err != nil {
		allCompleted = false
		result.Errors = append(result.Errors, fmt.Sprintf("synthesis: %v", err))
	} else {
		result.Output = output
	}

	result.Success = allCompleted
	return result
}

// openCollaboration records coordinator plus assigned agents. A run
// with fewer than two distinct participants carries no collaboration.
func (c *Coordinator) openCollaboration(task *ComplexTask, g *Graph, coordinatorID string) *Collaboration {
	participants := append([]string{coordinatorID}, AssignedAgents(g)...)
	collab, err := NewCollaboration(task.ID, participants)
	if err != nil {
		logger.DebugCF("swarm", "no collaboration recorded", map[string]any{"task_id": task.ID, "reason": err.Error()})
		return nil
	}
	return collab
}

// publishPlan writes the task and its assignment plan to shared memory
// under the swarm:{task.id} namespace.
func (c *Coordinator) publishPlan(ctx context.Context, task *ComplexTask, g *Graph, coordinatorID string) {
	if c.store == nil {
		return
	}

	c.publish(ctx, fmt.Sprintf("swarm:%s:task", task.ID), task, coordinatorID)

	plan := make([]map[string]any, 0, g.Len())
	for _, st := range g.Subtasks() {
		plan = append(plan, map[string]any{
			"id":           st.ID,
			"description":  st.Description,
			"dependencies": st.Dependencies,
			"role":         st.Role,
			"agent_id":     st.AgentID,
		})
	}
	c.publish(ctx, fmt.Sprintf("swarm:%s:plan", task.ID), plan, coordinatorID)
}

// persistResult writes one completed subtask result.
func (c *Coordinator) persistResult(ctx context.Context, taskID string, st *SubTask, coordinatorID string) {
	if c.store == nil {
		return
	}
	c.publish(ctx, fmt.Sprintf("swarm:%s:result:%s", taskID, st.ID), st.Result, coordinatorID)
}

func (c *Coordinator) publish(ctx context.Context, key string, value any, agentID string) {
	res := retry.Do(ctx, c.publishPolicy, func(ctx context.Context) (*sharedmem.Entry, error) {
		return c.store.Store(ctx, key, value, sharedmem.Metadata{}, agentID, 0)
	})
	if !res.Success {
		logger.WarnCF("swarm", "shared memory publish failed", map[string]any{
			"key":      key,
			"attempts": res.Attempts,
			"error":    fmt.Sprint(res.Err),
		})
	}
}

func (c *Coordinator) emit(eventType string, fields map[string]any) {
	if c.events == nil {
		return
	}
	c.events.Publish(eventType, fields)
}
