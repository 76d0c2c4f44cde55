// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

// Package roles scores agent-to-role fit and picks agents for subtasks
// under load constraints.
package roles

import (
	"sort"

	"github.com/agentic-reserve/ordo/pkg/agents"
	"github.com/agentic-reserve/ordo/pkg/tiers"
)

// Role is one of the four specialisations.
type Role string

const (
	Researcher  Role = "researcher"
	Coder       Role = "coder"
	Trader      Role = "trader"
	Coordinator Role = "coordinator"
)

// RoleOrder is the deterministic tie-break order.
var RoleOrder = []Role{Researcher, Coder, Trader, Coordinator}

// Spec declares what a role demands of an agent.
type Spec struct {
	Role                 Role     `json:"role"`
	RequiredCapabilities []string `json:"required_capabilities"`
	PreferredTools       []string `json:"preferred_tools"`
	MinExperience        float64  `json:"min_experience"`
	MinFitness           float64  `json:"min_fitness,omitempty"` // 0 = no gate
}

// Catalog maps each role to its spec.
var Catalog = map[Role]Spec{
	Researcher: {
		Role:                 Researcher,
		RequiredCapabilities: []string{"research", "analysis"},
		PreferredTools:       []string{"search", "scraper"},
		MinExperience:        0.2,
	},
	Coder: {
		Role:                 Coder,
		RequiredCapabilities: []string{"coding", "debugging"},
		PreferredTools:       []string{"editor", "interpreter"},
		MinExperience:        0.3,
	},
	Trader: {
		Role:                 Trader,
		RequiredCapabilities: []string{"trading", "risk-analysis"},
		PreferredTools:       []string{"dex", "price-feed"},
		MinExperience:        0.4,
		MinFitness:           0.5,
	},
	Coordinator: {
		Role:                 Coordinator,
		RequiredCapabilities: []string{"planning", "delegation"},
		PreferredTools:       []string{"scheduler"},
		MinExperience:        0.5,
		MinFitness:           0.6,
	},
}

// Suitability weights. The four terms sum to 100 and the score is
// normalised into [0,1].
const (
	maxExperiencePoints = 20.0
	maxFitnessPoints    = 20.0
	maxCapabilityPoints = 40.0
	maxToolPoints       = 20.0
)

// Suitability scores how well an agent fits a role, in [0,1]. Gates
// (MinExperience, MinFitness) give partial credit proportional to
// agent/gate when unmet.
func Suitability(a *agents.Agent, spec Spec) float64 {
	score := gateCredit(a.Experience, spec.MinExperience) * maxExperiencePoints
	score += gateCredit(fitnessMean(a.Fitness), spec.MinFitness) * maxFitnessPoints
	score += fractionPresent(spec.RequiredCapabilities, a.Traits.Skills) * maxCapabilityPoints
	score += fractionPresent(spec.PreferredTools, a.Traits.Tools) * maxToolPoints
	return score / 100
}

// AssignRole picks a role for an agent. A preferred role scoring at
// least 0.5 wins; otherwise the argmax over RoleOrder, ties broken by
// enumeration order.
func AssignRole(a *agents.Agent, preferred Role) (Role, float64) {
	if preferred != "" {
		if spec, ok := Catalog[preferred]; ok {
			if score := Suitability(a, spec); score >= 0.5 {
				return preferred, score
			}
		}
	}

	best := RoleOrder[0]
	bestScore := -1.0
	for _, role := range RoleOrder {
		if score := Suitability(a, Catalog[role]); score > bestScore {
			best = role
			bestScore = score
		}
	}
	return best, bestScore
}

// MaxLoadFor returns the concurrent-assignment cap for a load
// condition.
func MaxLoadFor(condition string) int {
	switch condition {
	case "flourishing":
		return 5
	case "thriving":
		return 3
	case "surviving":
		return 2
	case "struggling":
		return 1
	default:
		return 1
	}
}

// ConditionOf maps a survival tier onto the load-condition scale used
// by MaxLoadFor.
func ConditionOf(t tiers.Tier) string {
	switch t.Name {
	case tiers.Thriving:
		return "flourishing"
	case tiers.Normal:
		return "thriving"
	case tiers.LowCompute:
		return "surviving"
	case tiers.Critical:
		return "struggling"
	default:
		return "dead"
	}
}

// MaxLoad returns the agent's current assignment cap.
func MaxLoad(a *agents.Agent) int {
	return MaxLoadFor(ConditionOf(a.Tier()))
}

// Available filters candidates to alive agents with spare capacity.
func Available(candidates []*agents.Agent) []*agents.Agent {
	out := make([]*agents.Agent, 0, len(candidates))
	for _, a := range candidates {
		if a.Status != agents.Alive {
			continue
		}
		if a.CurrentLoad >= MaxLoad(a) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Strategy selects among available agents.
type Strategy string

const (
	StrategyBestMatch    Strategy = "best_match"
	StrategyLoadBalanced Strategy = "load_balanced"
	StrategyRoundRobin   Strategy = "round_robin"
)

// SelectAgent picks one agent for a role from the available set, or nil
// when the set is empty. All strategies are deterministic for a given
// input.
func SelectAgent(available []*agents.Agent, role Role, strategy Strategy) *agents.Agent {
	if len(available) == 0 {
		return nil
	}
	spec := Catalog[role]

	switch strategy {
	case StrategyLoadBalanced:
		return lowestLoad(roleFiltered(available, spec))
	case StrategyRoundRobin:
		pool := roleFiltered(available, spec)
		sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
		return lowestLoad(pool)
	default: // best_match
		best := available[0]
		bestScore := Suitability(best, spec)
		for _, a := range available[1:] {
			score := Suitability(a, spec)
			if score > bestScore || (score == bestScore && a.ID < best.ID) {
				best = a
				bestScore = score
			}
		}
		return best
	}
}

// roleFiltered keeps agents with a workable fit for the role, falling
// back to the full set when nobody qualifies.
func roleFiltered(available []*agents.Agent, spec Spec) []*agents.Agent {
	out := make([]*agents.Agent, 0, len(available))
	for _, a := range available {
		if Suitability(a, spec) >= 0.5 {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return append(out, available...)
	}
	return out
}

func lowestLoad(pool []*agents.Agent) *agents.Agent {
	if len(pool) == 0 {
		return nil
	}
	best := pool[0]
	for _, a := range pool[1:] {
		if a.CurrentLoad < best.CurrentLoad ||
			(a.CurrentLoad == best.CurrentLoad && a.ID < best.ID) {
			best = a
		}
	}
	return best
}

// gateCredit gives full credit at or above the gate and proportional
// credit below it. Ungated terms use the raw normalised value.
func gateCredit(have, gate float64) float64 {
	if gate <= 0 {
		return clamp01(have)
	}
	if have >= gate {
		return 1
	}
	if have <= 0 {
		return 0
	}
	return have / gate
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func fractionPresent(required, have []string) float64 {
	if len(required) == 0 {
		return 1
	}
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	matched := 0
	for _, r := range required {
		if set[r] {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

func fitnessMean(f agents.Fitness) float64 {
	return (f.Survival + f.Earnings + f.Offspring + f.Adaptation + f.Innovation) / 5
}
