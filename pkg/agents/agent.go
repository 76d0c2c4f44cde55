// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

// Package agents holds the agent record: identity, economic balance,
// fitness, liveness and declared traits. The survival tier is derived
// from the balance and never stored.
package agents

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/agentic-reserve/ordo/pkg/tiers"
)

// Liveness is the explicit life state of an agent.
type Liveness string

const (
	Alive Liveness = "alive"
	Dead  Liveness = "dead"
)

// Fitness carries the normalised fitness components, each in [0,1].
type Fitness struct {
	Survival   float64 `json:"survival"`
	Earnings   float64 `json:"earnings"`
	Offspring  float64 `json:"offspring"`
	Adaptation float64 `json:"adaptation"`
	Innovation float64 `json:"innovation"`
}

// Traits is the declared skill and tool bag used for role matching.
type Traits struct {
	Skills []string `json:"skills"`
	Tools  []string `json:"tools"`
}

// Clone copies the trait slices so two agents never share backing
// arrays.
func (t Traits) Clone() Traits {
	return Traits{
		Skills: slices.Clone(t.Skills),
		Tools:  slices.Clone(t.Tools),
	}
}

// Agent is a member of the population. The swarm coordinator owns
// CurrentLoad during execution; everything else is mutated only by turn
// outcomes.
type Agent struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	FounderID   string   `json:"founder_id,omitempty"`
	ParentID    string   `json:"parent_id,omitempty"`
	Balance     float64  `json:"balance"`
	Experience  float64  `json:"experience"` // normalised, [0,1]
	Fitness     Fitness  `json:"fitness"`
	Status      Liveness `json:"status"`
	Traits      Traits   `json:"traits"`
	CurrentLoad int      `json:"current_load"`
	Offspring   int      `json:"offspring"`
	SuccessOps  int64    `json:"success_ops"`
	FailedOps   int64    `json:"failed_ops"`
	CreatedAt   int64    `json:"created_at"`
}

// New creates a founder-born agent.
func New(name, founderID string, balance float64, traits Traits) *Agent {
	if balance < 0 {
		balance = 0
	}
	a := &Agent{
		ID:        fmt.Sprintf("agent-%s", uuid.New().String()[:8]),
		Name:      name,
		FounderID: founderID,
		Balance:   balance,
		Status:    Alive,
		Traits:    traits,
		CreatedAt: time.Now().UnixMilli(),
	}
	a.reapTier()
	return a
}

// Tier returns the survival tier for the current balance.
func (a *Agent) Tier() tiers.Tier {
	return tiers.TierOf(a.Balance)
}

// AgeDays returns the agent's age in fractional days.
func (a *Agent) AgeDays() float64 {
	return time.Since(time.UnixMilli(a.CreatedAt)).Hours() / 24
}

// ApplyTurn mutates the agent with a turn outcome: the balance delta
// and whether the turn's operation succeeded. A balance that falls into
// the dead tier terminates the agent.
func (a *Agent) ApplyTurn(balanceDelta float64, success bool) tiers.Transition {
	old := a.Balance
	a.Balance += balanceDelta
	if a.Balance < 0 {
		a.Balance = 0
	}
	if success {
		a.SuccessOps++
	} else {
		a.FailedOps++
	}
	a.reapTier()
	return tiers.TierTransition(old, a.Balance)
}

// Replicate creates an offspring carrying the parent's traits, funded
// with the given share of the parent's balance. Gated by the parent's
// tier.
func (a *Agent) Replicate(name string, fundShare float64) (*Agent, error) {
	if a.Status != Alive {
		return nil, fmt.Errorf("agent %s is not alive", a.ID)
	}
	if !a.Tier().CanReplicate {
		return nil, fmt.Errorf("tier %s cannot replicate", a.Tier().Name)
	}
	if fundShare <= 0 || fundShare >= 1 {
		return nil, fmt.Errorf("fund share must be in (0,1), got %v", fundShare)
	}

	fund := a.Balance * fundShare
	a.Balance -= fund
	a.Offspring++
	a.reapTier()

	child := New(name, a.FounderID, fund, a.Traits.Clone())
	child.ParentID = a.ID
	return child, nil
}

// Terminate explicitly sets liveness to dead.
func (a *Agent) Terminate() {
	a.Status = Dead
}

// reapTier enforces the lifecycle rule: an agent whose tier is dead is
// terminated.
func (a *Agent) reapTier() {
	if a.Tier().Name == tiers.Dead {
		a.Status = Dead
	}
}

// Snapshot is a point-in-time fitness record used by the improvement
// success tracker to compare before/after observation windows.
type Snapshot struct {
	AgentID        string  `json:"agent_id"`
	TakenAt        int64   `json:"taken_at"`
	SurvivalDays   float64 `json:"survival_days"`
	NetBalance     float64 `json:"net_balance"`
	TotalEarnings  float64 `json:"total_earnings"`
	OffspringCount int     `json:"offspring_count"`
	SuccessOps     int64   `json:"success_ops"`
	FailedOps      int64   `json:"failed_ops"`
	OverallFitness float64 `json:"overall_fitness"`
}

// Snapshot weights: survival 0.25, earnings 0.35, offspring 0.20,
// operational reliability 0.20.
const (
	weightSurvival    = 0.25
	weightEarnings    = 0.35
	weightOffspring   = 0.20
	weightReliability = 0.20
)

// TakeSnapshot captures the agent's fitness with totalEarnings supplied
// by the caller's ledger.
func TakeSnapshot(a *Agent, totalEarnings float64) Snapshot {
	return Snapshot{
		AgentID:        a.ID,
		TakenAt:        time.Now().UnixMilli(),
		SurvivalDays:   a.AgeDays(),
		NetBalance:     a.Balance,
		TotalEarnings:  totalEarnings,
		OffspringCount: a.Offspring,
		SuccessOps:     a.SuccessOps,
		FailedOps:      a.FailedOps,
		OverallFitness: overallFitness(a, totalEarnings),
	}
}

func overallFitness(a *Agent, totalEarnings float64) float64 {
	survival := clamp01(a.AgeDays() / 30)
	earnings := clamp01(totalEarnings / 100)
	offspring := clamp01(float64(a.Offspring) / 5)

	reliability := 0.0
	if total := a.SuccessOps + a.FailedOps; total > 0 {
		reliability = float64(a.SuccessOps) / float64(total)
	}

	return weightSurvival*survival +
		weightEarnings*earnings +
		weightOffspring*offspring +
		weightReliability*reliability
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
