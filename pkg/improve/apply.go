// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package improve

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrUnvalidated guards production apply.
var ErrUnvalidated = errors.New("Cannot apply unvalidated improvement")

// Impact score weights.
const (
	impactSpeedWeight       = 0.3
	impactCostWeight        = 0.4
	impactReliabilityWeight = 0.3
)

// Change is one production configuration mutation.
type Change struct {
	Target   string `json:"target"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// RollbackStep is one ordered revert action.
type RollbackStep struct {
	Order             int           `json:"order"`
	Action            string        `json:"action"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// Modification records an applied improvement with everything needed
// to audit or revert it.
type Modification struct {
	ID          string             `json:"id"`
	ProposalID  string             `json:"proposal_id"`
	AgentID     string             `json:"agent_id"`
	Changes     []Change           `json:"changes"`
	Rollback    []RollbackStep     `json:"rollback"`
	Measurement *ImpactMeasurement `json:"measurement"`
	ImpactScore float64            `json:"impact_score"`
	AppliedAt   int64              `json:"applied_at"`
}

// ApplyToProduction applies a validated proposal. Anything else is a
// precondition failure surfaced verbatim.
func ApplyToProduction(p *Proposal, m *ImpactMeasurement, changes []Change) (*Modification, error) {
	if p.Status != StatusValidated {
		return nil, ErrUnvalidated
	}
	if len(changes) == 0 {
		return nil, fmt.Errorf("proposal %s: no changes to apply", p.ID)
	}

	mod := &Modification{
		ID:          fmt.Sprintf("mod-%s", uuid.New().String()[:8]),
		ProposalID:  p.ID,
		AgentID:     p.AgentID,
		Changes:     changes,
		Rollback:    rollbackPlan(changes),
		Measurement: m,
		ImpactScore: ImpactScore(m.Deltas),
		AppliedAt:   time.Now().UnixMilli(),
	}

	if err := p.Advance(StatusApplied); err != nil {
		return nil, err
	}
	return mod, nil
}

// rollbackPlan reverts changes in reverse application order.
func rollbackPlan(changes []Change) []RollbackStep {
	steps := make([]RollbackStep, 0, len(changes))
	for i := len(changes) - 1; i >= 0; i-- {
		c := changes[i]
		steps = append(steps, RollbackStep{
			Order:             len(steps) + 1,
			Action:            fmt.Sprintf("restore %s to %v", c.Target, c.OldValue),
			EstimatedDuration: 30 * time.Second,
		})
	}
	return steps
}

// ImpactScore folds the measured deltas into one number: fractional
// gains weighted 0.3 speed, 0.4 cost, 0.3 reliability, each clamped to
// [0,1].
func ImpactScore(d Deltas) float64 {
	return impactSpeedWeight*clampFrac(d.SpeedPct/100) +
		impactCostWeight*clampFrac(d.CostPct/100) +
		impactReliabilityWeight*clampFrac(d.ReliabilityPP/100)
}

func clampFrac(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
