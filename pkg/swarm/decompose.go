// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package swarm

import (
	"fmt"
	"strings"

	"github.com/agentic-reserve/ordo/pkg/roles"
)

// Decompose turns a complex task into a validated subtask DAG. The
// output is deterministic for a given description and requirements
// ordering: one subtask per requirement (or a single subtask from the
// description when there are none), research-type subtasks as entry
// points, everything else depending on them, and a closing coordinator
// subtask once the DAG grows past three nodes.
func Decompose(task *ComplexTask) ([]*SubTask, error) {
	if task == nil || strings.TrimSpace(task.Description) == "" {
		return nil, fmt.Errorf("task description is required")
	}

	var subtasks []*SubTask

	if len(task.Requirements) == 0 {
		subtasks = append(subtasks, &SubTask{
			ID:          subtaskID(task.ID, 1),
			Description: task.Description,
			Role:        roleHint(task.Description),
			Status:      SubTaskPending,
		})
	} else {
		// Research subtasks first, so they exist before anything
		// that depends on them is numbered.
		var researchIDs []string
		for i, req := range task.Requirements {
			st := &SubTask{
				ID:          subtaskID(task.ID, i+1),
				Description: fmt.Sprintf("%s: %s", task.Description, req),
				Role:        roleHint(req),
				Status:      SubTaskPending,
			}
			if st.Role == roles.Researcher {
				researchIDs = append(researchIDs, st.ID)
			}
			subtasks = append(subtasks, st)
		}
		for _, st := range subtasks {
			if st.Role != roles.Researcher {
				st.Dependencies = append([]string(nil), researchIDs...)
			}
		}
	}

	if len(subtasks) > 3 {
		deps := make([]string, 0, len(subtasks))
		for _, st := range subtasks {
			deps = append(deps, st.ID)
		}
		subtasks = append(subtasks, &SubTask{
			ID:           subtaskID(task.ID, len(subtasks)+1),
			Description:  fmt.Sprintf("%s: coordinate and synthesise results", task.Description),
			Dependencies: deps,
			Role:         roles.Coordinator,
			Status:       SubTaskPending,
		})
	}

	// The construction above cannot produce cycles or dangling ids,
	// but the graph invariants are checked the same way regardless.
	g, err := BuildGraph(subtasks)
	if err != nil {
		return nil, err
	}
	if len(g.EntryPoints()) == 0 {
		return nil, fmt.Errorf("decomposition produced no entry points")
	}

	return subtasks, nil
}

func subtaskID(taskID string, n int) string {
	return fmt.Sprintf("%s-sub-%d", taskID, n)
}

// roleHint derives the role from description keywords.
func roleHint(text string) roles.Role {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "research") || strings.Contains(lower, "analy"):
		return roles.Researcher
	case strings.Contains(lower, "implement") || strings.Contains(lower, "code"):
		return roles.Coder
	case strings.Contains(lower, "trade") || strings.Contains(lower, "swap"):
		return roles.Trader
	case strings.Contains(lower, "coordinate"):
		return roles.Coordinator
	default:
		return roles.Researcher
	}
}
