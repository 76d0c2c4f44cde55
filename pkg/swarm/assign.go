// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package swarm

import (
	"fmt"

	"github.com/agentic-reserve/ordo/pkg/agents"
	"github.com/agentic-reserve/ordo/pkg/roles"
)

// Assign walks the graph in topological order and binds each pending
// subtask to an agent using the given selection strategy. Candidates
// are re-filtered per subtask since each assignment bumps the chosen
// agent's load.
func Assign(g *Graph, candidates []*agents.Agent, strategy roles.Strategy) error {
	if g == nil || g.Len() == 0 {
		return fmt.Errorf("nothing to assign")
	}

	for _, id := range g.TopoSort() {
		st, _ := g.Get(id)
		if st.Status != SubTaskPending || st.AgentID != "" {
			continue
		}

		available := roles.Available(candidates)
		if len(available) == 0 {
			return fmt.Errorf("no available agent for subtask %s", st.ID)
		}

		picked := roles.SelectAgent(available, st.Role, strategy)
		if picked == nil {
			return fmt.Errorf("no suitable agent for subtask %s", st.ID)
		}

		if st.Role == "" {
			role, _ := roles.AssignRole(picked, "")
			st.Role = role
		}
		st.AgentID = picked.ID
		picked.CurrentLoad++
	}

	return nil
}

// AssignedAgents returns the unique agent ids bound to subtasks, in
// first-assignment order.
func AssignedAgents(g *Graph) []string {
	seen := make(map[string]bool)
	var out []string
	for _, st := range g.Subtasks() {
		if st.AgentID == "" || seen[st.AgentID] {
			continue
		}
		seen[st.AgentID] = true
		out = append(out, st.AgentID)
	}
	return out
}

// ReleaseLoads decrements the load bumped during assignment for every
// terminal subtask. Called once after execution settles.
func ReleaseLoads(g *Graph, candidates []*agents.Agent) {
	byID := make(map[string]*agents.Agent, len(candidates))
	for _, a := range candidates {
		byID[a.ID] = a
	}
	for _, st := range g.Subtasks() {
		if st.AgentID == "" || !st.Terminal() {
			continue
		}
		if a, ok := byID[st.AgentID]; ok && a.CurrentLoad > 0 {
			a.CurrentLoad--
		}
	}
}
