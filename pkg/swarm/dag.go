// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package swarm

import (
	"fmt"
	"sort"
	"strings"
)

// Graph wraps a subtask list with dependency bookkeeping. Cycles do not
// fail the build: cyclic nodes are scheduled as if they had no
// dependencies and the cycle is surfaced through CyclicNodes so the
// coordinator can report it.
type Graph struct {
	tasks  map[string]*SubTask
	order  []string // insertion order
	cyclic map[string]bool
}

// BuildGraph indexes subtasks and validates that every dependency id
// resolves within the same list.
func BuildGraph(subtasks []*SubTask) (*Graph, error) {
	if len(subtasks) == 0 {
		return nil, fmt.Errorf("graph needs at least one subtask")
	}

	g := &Graph{tasks: make(map[string]*SubTask, len(subtasks))}
	for _, st := range subtasks {
		if _, exists := g.tasks[st.ID]; exists {
			return nil, fmt.Errorf("duplicate subtask id %s", st.ID)
		}
		g.tasks[st.ID] = st
		g.order = append(g.order, st.ID)
	}

	for _, st := range subtasks {
		for _, dep := range st.Dependencies {
			if _, ok := g.tasks[dep]; !ok {
				return nil, fmt.Errorf("subtask %s depends on non-existent subtask %s", st.ID, dep)
			}
		}
	}

	g.cyclic = g.findCyclic()
	return g, nil
}

// findCyclic peels off nodes whose dependencies all resolve; whatever
// remains is on a cycle (or reachable only through one).
func (g *Graph) findCyclic() map[string]bool {
	resolved := make(map[string]bool, len(g.tasks))
	for {
		progress := false
		for _, id := range g.order {
			if resolved[id] {
				continue
			}
			ok := true
			for _, dep := range g.tasks[id].Dependencies {
				if !resolved[dep] {
					ok = false
					break
				}
			}
			if ok {
				resolved[id] = true
				progress = true
			}
		}
		if !progress {
			break
		}
	}

	cyclic := make(map[string]bool)
	for _, id := range g.order {
		if !resolved[id] {
			cyclic[id] = true
		}
	}
	return cyclic
}

// CyclicNodes returns the ids caught in dependency cycles, sorted.
func (g *Graph) CyclicNodes() []string {
	ids := make([]string, 0, len(g.cyclic))
	for id := range g.cyclic {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CycleError formats the cycle report surfaced in SwarmResult.Errors,
// or "" when the graph is acyclic.
func (g *Graph) CycleError() string {
	if len(g.cyclic) == 0 {
		return ""
	}
	return fmt.Sprintf("dependency cycle involving: %s", strings.Join(g.CyclicNodes(), ", "))
}

// TopoSort returns subtask ids with dependencies before dependents.
// Cyclic nodes are appended in id order, as if they were roots.
func (g *Graph) TopoSort() []string {
	done := make(map[string]bool, len(g.tasks))
	out := make([]string, 0, len(g.tasks))

	remaining := len(g.tasks) - len(g.cyclic)
	for len(out) < remaining {
		for _, id := range g.order {
			if done[id] || g.cyclic[id] {
				continue
			}
			ready := true
			for _, dep := range g.tasks[id].Dependencies {
				if !done[dep] && !g.cyclic[dep] {
					ready = false
					break
				}
			}
			if ready {
				done[id] = true
				out = append(out, id)
			}
		}
	}

	out = append(out, g.CyclicNodes()...)
	return out
}

// depsOf returns the effective dependencies of a node: none when the
// node is cyclic.
func (g *Graph) depsOf(st *SubTask) []string {
	if g.cyclic[st.ID] {
		return nil
	}
	return st.Dependencies
}

// Ready returns pending subtasks whose effective dependencies have all
// completed, in insertion order.
func (g *Graph) Ready() []*SubTask {
	var ready []*SubTask
	for _, id := range g.order {
		st := g.tasks[id]
		if st.Status != SubTaskPending {
			continue
		}
		ok := true
		for _, dep := range g.depsOf(st) {
			if g.tasks[dep].Status != SubTaskCompleted {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, st)
		}
	}
	return ready
}

// Blocked returns pending subtasks with at least one failed effective
// dependency; they can never become ready.
func (g *Graph) Blocked() []*SubTask {
	var blocked []*SubTask
	for _, id := range g.order {
		st := g.tasks[id]
		if st.Status != SubTaskPending {
			continue
		}
		for _, dep := range g.depsOf(st) {
			if g.tasks[dep].Status == SubTaskFailed {
				blocked = append(blocked, st)
				break
			}
		}
	}
	return blocked
}

// EntryPoints returns the ids of subtasks with no effective
// dependencies.
func (g *Graph) EntryPoints() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.depsOf(g.tasks[id])) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// AllTerminal reports whether every subtask completed or failed.
func (g *Graph) AllTerminal() bool {
	for _, st := range g.tasks {
		if !st.Terminal() {
			return false
		}
	}
	return true
}

// HasPending reports whether any subtask is still pending.
func (g *Graph) HasPending() bool {
	for _, st := range g.tasks {
		if st.Status == SubTaskPending {
			return true
		}
	}
	return false
}

// Get returns a subtask by id.
func (g *Graph) Get(id string) (*SubTask, bool) {
	st, ok := g.tasks[id]
	return st, ok
}

// Subtasks returns all subtasks in insertion order.
func (g *Graph) Subtasks() []*SubTask {
	out := make([]*SubTask, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.tasks[id])
	}
	return out
}

// Len returns the node count.
func (g *Graph) Len() int {
	return len(g.tasks)
}
