package roles

import (
	"testing"

	"github.com/agentic-reserve/ordo/pkg/agents"
)

func fullFitAgent(id string, balance float64) *agents.Agent {
	return &agents.Agent{
		ID:         id,
		Balance:    balance,
		Experience: 1,
		Status:     agents.Alive,
		Fitness:    agents.Fitness{Survival: 1, Earnings: 1, Offspring: 1, Adaptation: 1, Innovation: 1},
		Traits: agents.Traits{
			Skills: []string{"research", "analysis", "coding", "debugging", "trading", "risk-analysis", "planning", "delegation"},
			Tools:  []string{"search", "scraper", "editor", "interpreter", "dex", "price-feed", "scheduler"},
		},
	}
}

func TestSuitability_Range(t *testing.T) {
	perfect := fullFitAgent("agent-1", 5)
	for _, role := range RoleOrder {
		score := Suitability(perfect, Catalog[role])
		if score != 1.0 {
			t.Errorf("perfect agent for %s scored %v, want 1.0", role, score)
		}
	}

	blank := &agents.Agent{ID: "agent-0", Status: agents.Alive}
	for _, role := range RoleOrder {
		score := Suitability(blank, Catalog[role])
		if score < 0 || score > 1 {
			t.Errorf("blank agent for %s scored %v, out of [0,1]", role, score)
		}
	}
}

func TestSuitability_GatePartialCredit(t *testing.T) {
	// Half the coordinator experience gate: half of the 20-point term.
	a := &agents.Agent{ID: "agent-1", Experience: 0.25, Status: agents.Alive}
	b := &agents.Agent{ID: "agent-2", Experience: 0.5, Status: agents.Alive}

	spec := Catalog[Coordinator] // MinExperience 0.5
	diff := Suitability(b, spec) - Suitability(a, spec)
	if diff < 0.09 || diff > 0.11 {
		t.Errorf("experience credit diff = %v, want ~0.10 (half of the 20%% term)", diff)
	}
}

func TestAssignRole_PreferredThreshold(t *testing.T) {
	a := fullFitAgent("agent-1", 5)
	role, score := AssignRole(a, Trader)
	if role != Trader {
		t.Errorf("role = %s, want preferred trader at score %v", role, score)
	}

	// Unfit agent falls through to the argmax, tie broken by role order.
	blank := &agents.Agent{ID: "agent-0", Status: agents.Alive}
	role, _ = AssignRole(blank, Trader)
	if role != Researcher {
		t.Errorf("role = %s, want researcher (first in enumeration order)", role)
	}
}

func TestMaxLoadFor(t *testing.T) {
	cases := map[string]int{
		"flourishing": 5,
		"thriving":    3,
		"surviving":   2,
		"struggling":  1,
		"dead":        1,
		"unknown":     1,
	}
	for condition, want := range cases {
		if got := MaxLoadFor(condition); got != want {
			t.Errorf("MaxLoadFor(%q) = %d, want %d", condition, got, want)
		}
	}
}

func TestAvailable_FiltersDeadAndLoaded(t *testing.T) {
	alive := fullFitAgent("agent-1", 20) // thriving tier -> flourishing -> cap 5
	loaded := fullFitAgent("agent-2", 0.5)
	loaded.CurrentLoad = MaxLoad(loaded)
	dead := fullFitAgent("agent-3", 20)
	dead.Status = agents.Dead

	got := Available([]*agents.Agent{alive, loaded, dead})
	if len(got) != 1 || got[0].ID != "agent-1" {
		t.Errorf("Available = %d agents, want only agent-1", len(got))
	}
}

func TestSelectAgent_BestMatchTieByID(t *testing.T) {
	a := fullFitAgent("agent-b", 5)
	b := fullFitAgent("agent-a", 5)

	picked := SelectAgent([]*agents.Agent{a, b}, Coder, StrategyBestMatch)
	if picked.ID != "agent-a" {
		t.Errorf("picked %s, want agent-a (tie broken by id ascending)", picked.ID)
	}
}

func TestSelectAgent_LoadBalanced(t *testing.T) {
	busy := fullFitAgent("agent-a", 20)
	busy.CurrentLoad = 3
	idle := fullFitAgent("agent-b", 20)

	picked := SelectAgent([]*agents.Agent{busy, idle}, Researcher, StrategyLoadBalanced)
	if picked.ID != "agent-b" {
		t.Errorf("picked %s, want the lower-loaded agent-b", picked.ID)
	}
}

func TestSelectAgent_Empty(t *testing.T) {
	if SelectAgent(nil, Coder, StrategyBestMatch) != nil {
		t.Error("empty candidate set must select nil")
	}
}

func TestRebalance_Idempotent(t *testing.T) {
	if moves := Rebalance(map[string]int{"a": 2, "b": 2, "c": 2}); len(moves) != 0 {
		t.Errorf("balanced map produced %d moves, want 0", len(moves))
	}
	if moves := Rebalance(nil); moves != nil {
		t.Error("empty map must produce no moves")
	}
}

func TestRebalance_MovesExcess(t *testing.T) {
	moves := Rebalance(map[string]int{"a": 4, "b": 2, "c": 0})
	if len(moves) != 1 {
		t.Fatalf("got %d moves, want 1: %v", len(moves), moves)
	}
	if moves[0].From != "a" || moves[0].To != "c" {
		t.Errorf("move = %+v, want a -> c", moves[0])
	}
}

func TestLoadMonitor_RollingAverage(t *testing.T) {
	lm := NewLoadMonitor(3)
	lm.Record("agent-1", 1)
	lm.Record("agent-1", 2)
	lm.Record("agent-1", 3)
	lm.Record("agent-1", 4) // evicts the first sample

	if avg := lm.Average("agent-1"); avg != 3 {
		t.Errorf("Average = %v, want 3 over window [2 3 4]", avg)
	}
	if avg := lm.Average("agent-2"); avg != 0 {
		t.Errorf("Average of untracked agent = %v, want 0", avg)
	}
}
