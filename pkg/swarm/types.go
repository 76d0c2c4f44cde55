// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package swarm

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentic-reserve/ordo/pkg/roles"
)

// Sentinel errors surfaced inside SwarmResult.Errors.
var (
	// ErrTimeout is reported when the global execution budget fires.
	ErrTimeout = errors.New("Swarm execution timeout")

	// ErrDeadlock is reported by the sequential executor when no
	// subtask is ready but some remain pending.
	ErrDeadlock = errors.New("Deadlock detected")
)

// ComplexTask is the unit of work handed to the coordinator.
type ComplexTask struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
}

// NewComplexTask creates a task with a fresh id.
func NewComplexTask(description string, requirements []string) *ComplexTask {
	return &ComplexTask{
		ID:           fmt.Sprintf("task-%s", uuid.New().String()[:8]),
		Description:  description,
		Requirements: requirements,
	}
}

// SubTaskStatus is the lifecycle state of a subtask. Transitions are
// pending -> in_progress -> {completed, failed}.
type SubTaskStatus string

const (
	SubTaskPending    SubTaskStatus = "pending"
	SubTaskInProgress SubTaskStatus = "in_progress"
	SubTaskCompleted  SubTaskStatus = "completed"
	SubTaskFailed     SubTaskStatus = "failed"
)

// SubTask is one node of the task DAG. The executor that starts a
// subtask is its single writer until it reaches a terminal status.
type SubTask struct {
	ID           string        `json:"id"`
	Description  string        `json:"description"`
	Dependencies []string      `json:"dependencies"`
	Role         roles.Role    `json:"assigned_role,omitempty"`
	AgentID      string        `json:"assigned_agent_id,omitempty"`
	Status       SubTaskStatus `json:"status"`
	Result       any           `json:"result,omitempty"`
	Error        string        `json:"error,omitempty"`
	StartedAt    int64         `json:"started_at,omitempty"`
	CompletedAt  int64         `json:"completed_at,omitempty"`
}

// Start transitions pending -> in_progress. The agent must be assigned
// first.
func (st *SubTask) Start() error {
	if st.Status != SubTaskPending {
		return fmt.Errorf("subtask %s: cannot start from %s", st.ID, st.Status)
	}
	if st.AgentID == "" {
		return fmt.Errorf("subtask %s: no agent assigned", st.ID)
	}
	st.Status = SubTaskInProgress
	st.StartedAt = time.Now().UnixMilli()
	return nil
}

// Complete transitions in_progress -> completed with a result.
func (st *SubTask) Complete(result any) error {
	if st.Status != SubTaskInProgress {
		return fmt.Errorf("subtask %s: cannot complete from %s", st.ID, st.Status)
	}
	st.Status = SubTaskCompleted
	st.Result = result
	st.CompletedAt = time.Now().UnixMilli()
	return nil
}

// Fail transitions in_progress -> failed with an error message.
func (st *SubTask) Fail(errMsg string) error {
	if st.Status != SubTaskInProgress {
		return fmt.Errorf("subtask %s: cannot fail from %s", st.ID, st.Status)
	}
	if errMsg == "" {
		errMsg = "unknown error"
	}
	st.Status = SubTaskFailed
	st.Error = errMsg
	st.CompletedAt = time.Now().UnixMilli()
	return nil
}

// Terminal reports whether the subtask has finished either way.
func (st *SubTask) Terminal() bool {
	return st.Status == SubTaskCompleted || st.Status == SubTaskFailed
}

// Collaboration records one multi-agent engagement. The completion
// triple is written once at the end.
type Collaboration struct {
	ID             string   `json:"id"`
	TaskID         string   `json:"task_id"`
	ParticipantIDs []string `json:"participant_ids"`
	StartedAt      int64    `json:"started_at"`
	CompletedAt    int64    `json:"completed_at,omitempty"`
	Success        *bool    `json:"success,omitempty"`
	Output         any      `json:"output,omitempty"`
}

// NewCollaboration starts a record. Participants are deduplicated; a
// collaboration needs at least two.
func NewCollaboration(taskID string, participantIDs []string) (*Collaboration, error) {
	seen := make(map[string]bool, len(participantIDs))
	unique := make([]string, 0, len(participantIDs))
	for _, id := range participantIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) < 2 {
		return nil, fmt.Errorf("collaboration needs at least 2 unique participants, got %d", len(unique))
	}

	return &Collaboration{
		ID:             fmt.Sprintf("collab-%s", uuid.New().String()[:8]),
		TaskID:         taskID,
		ParticipantIDs: unique,
		StartedAt:      time.Now().UnixMilli(),
	}, nil
}

// Close writes the completion triple. Closing twice is an error.
func (c *Collaboration) Close(success bool, output any) error {
	if c.Success != nil {
		return fmt.Errorf("collaboration %s already closed", c.ID)
	}
	now := time.Now().UnixMilli()
	if now < c.StartedAt {
		now = c.StartedAt
	}
	c.CompletedAt = now
	c.Success = &success
	c.Output = output
	return nil
}

// SwarmResult is the outcome of one coordinate call. Success holds iff
// every subtask completed; Errors is non-empty iff at least one failed
// or the run was cut short.
type SwarmResult struct {
	TaskID         string         `json:"task_id"`
	Success        bool           `json:"success"`
	SubtaskResults map[string]any `json:"subtask_results"`
	Output         any            `json:"output,omitempty"`
	Errors         []string       `json:"errors,omitempty"`
	DurationMs     int64          `json:"duration_ms"`
	Collaboration  *Collaboration `json:"collaboration,omitempty"`
}
