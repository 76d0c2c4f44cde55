// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

// Package improve implements the self-improvement pipeline: proposals
// are sandbox-tested, measured over a 7-day window, validated against
// per-metric thresholds and only then applied to production, with a
// rollback plan recorded alongside every modification.
package improve

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Opportunity is an observed chance to improve an agent, usually mined
// from execution history.
type Opportunity struct {
	ID             string  `json:"id"`
	AgentID        string  `json:"agent_id"`
	Category       string  `json:"category"` // cost, speed, reliability, ...
	Description    string  `json:"description"`
	TargetMetric   string  `json:"target_metric"` // speed, cost, reliability
	ExpectedImpact float64 `json:"expected_impact"`
}

// Kind classifies what a proposal changes.
type Kind string

const (
	KindModelSwitch      Kind = "model_switch"
	KindToolOptimization Kind = "tool_optimization"
	KindPromptRefinement Kind = "prompt_refinement"
	KindConfigChange     Kind = "config_change"
)

// KindFor maps an opportunity category to the proposal kind.
func KindFor(category string) Kind {
	switch category {
	case "cost":
		return KindModelSwitch
	case "speed":
		return KindToolOptimization
	case "reliability":
		return KindPromptRefinement
	default:
		return KindConfigChange
	}
}

// Status is the proposal lifecycle state. Transitions:
// proposed -> testing -> measuring -> {validated -> applied, rejected}.
type Status string

const (
	StatusProposed  Status = "proposed"
	StatusTesting   Status = "testing"
	StatusMeasuring Status = "measuring"
	StatusValidated Status = "validated"
	StatusApplied   Status = "applied"
	StatusRejected  Status = "rejected"
)

// allowedTransitions encodes the proposal state machine.
var allowedTransitions = map[Status][]Status{
	StatusProposed:  {StatusTesting},
	StatusTesting:   {StatusMeasuring, StatusRejected},
	StatusMeasuring: {StatusValidated, StatusRejected},
	StatusValidated: {StatusApplied},
}

// Proposal is one improvement hypothesis moving through the pipeline.
type Proposal struct {
	ID               string  `json:"id"`
	AgentID          string  `json:"agent_id"`
	OpportunityID    string  `json:"opportunity_id"`
	Kind             Kind    `json:"kind"`
	Hypothesis       string  `json:"hypothesis"`
	TargetMetric     string  `json:"target_metric"`
	ExpectedImpact   float64 `json:"expected_impact"`
	Status           Status  `json:"status"`
	ValidationReason string  `json:"validation_reason,omitempty"`
	CreatedAt        int64   `json:"created_at"`
}

// Propose authors a proposal from an opportunity.
func Propose(opp Opportunity) *Proposal {
	return &Proposal{
		ID:             fmt.Sprintf("prop-%s", uuid.New().String()[:8]),
		AgentID:        opp.AgentID,
		OpportunityID:  opp.ID,
		Kind:           KindFor(opp.Category),
		Hypothesis:     fmt.Sprintf("%s should improve %s by %.1f%%", opp.Description, opp.TargetMetric, opp.ExpectedImpact),
		TargetMetric:   opp.TargetMetric,
		ExpectedImpact: opp.ExpectedImpact,
		Status:         StatusProposed,
		CreatedAt:      time.Now().UnixMilli(),
	}
}

// Advance moves the proposal along the state machine.
func (p *Proposal) Advance(to Status) error {
	for _, next := range allowedTransitions[p.Status] {
		if next == to {
			p.Status = to
			return nil
		}
	}
	return fmt.Errorf("proposal %s: cannot move from %s to %s", p.ID, p.Status, to)
}
