// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package improve

import (
	"context"
	"fmt"
	"time"

	"github.com/agentic-reserve/ordo/pkg/bus"
	"github.com/agentic-reserve/ordo/pkg/logger"
)

// HistorySource returns the execution records of an agent for impact
// measurement.
type HistorySource func(agentID string) []ExecutionRecord

// Pipeline drives opportunities through propose, sandbox test, impact
// measurement, validation and production apply. Each call is an
// independent state machine over one proposal.
type Pipeline struct {
	probe      Probe
	history    HistorySource
	events     *bus.EventBus
	probeCount int
	now        func() time.Time
}

// NewPipeline wires a pipeline. events may be nil.
func NewPipeline(probe Probe, history HistorySource, events *bus.EventBus) *Pipeline {
	return &Pipeline{
		probe:      probe,
		history:    history,
		events:     events,
		probeCount: DefaultProbeCount,
		now:        time.Now,
	}
}

// PipelineResult is the structured outcome of one TestAndApply run.
// Rejections are results, not errors; the proposal carries the reason.
type PipelineResult struct {
	Proposal     *Proposal          `json:"proposal"`
	Sandbox      *SandboxResult     `json:"sandbox"`
	Measurement  *ImpactMeasurement `json:"measurement,omitempty"`
	Modification *Modification      `json:"modification,omitempty"`
}

// TestAndApply runs the full pipeline for one opportunity. The changes
// list describes what applying the proposal would mutate in
// production; it is only used once validation passes.
func (pl *Pipeline) TestAndApply(ctx context.Context, opp Opportunity, config ConfigSnapshot, changes []Change) (*PipelineResult, error) {
	p := Propose(opp)
	result := &PipelineResult{Proposal: p}

	if err := p.Advance(StatusTesting); err != nil {
		return nil, err
	}
	result.Sandbox = RunSandbox(ctx, config, pl.probe, pl.probeCount)
	if result.Sandbox.SuccessRate == 0 {
		return pl.reject(result, "sandbox probes all failed")
	}

	if err := p.Advance(StatusMeasuring); err != nil {
		return nil, err
	}
	result.Measurement = MeasureImpact(pl.history(opp.AgentID), pl.now())
	if result.Measurement.Baseline.Ops == 0 {
		return pl.reject(result, "no baseline execution history")
	}

	validated, reason := Validate(p, result.Measurement.Deltas)
	p.ValidationReason = reason
	if !validated {
		return pl.reject(result, reason)
	}
	if err := p.Advance(StatusValidated); err != nil {
		return nil, err
	}

	mod, err := ApplyToProduction(p, result.Measurement, changes)
	if err != nil {
		return nil, fmt.Errorf("apply proposal %s: %w", p.ID, err)
	}
	result.Modification = mod

	logger.InfoCF("improve", "improvement applied", map[string]any{
		"proposal_id":  p.ID,
		"agent_id":     p.AgentID,
		"impact_score": mod.ImpactScore,
	})
	pl.emit("improvement:applied", map[string]any{
		"proposal_id":     p.ID,
		"modification_id": mod.ID,
		"agent_id":        p.AgentID,
		"impact_score":    mod.ImpactScore,
	})
	return result, nil
}

func (pl *Pipeline) reject(result *PipelineResult, reason string) (*PipelineResult, error) {
	p := result.Proposal
	if p.ValidationReason == "" {
		p.ValidationReason = reason
	}
	if err := p.Advance(StatusRejected); err != nil {
		return nil, err
	}

	logger.DebugCF("improve", "proposal rejected", map[string]any{
		"proposal_id": p.ID,
		"agent_id":    p.AgentID,
		"reason":      reason,
	})
	pl.emit("improvement:rejected", map[string]any{
		"proposal_id": p.ID,
		"agent_id":    p.AgentID,
		"reason":      reason,
	})
	return result, nil
}

func (pl *Pipeline) emit(eventType string, fields map[string]any) {
	if pl.events == nil {
		return
	}
	pl.events.Publish(eventType, fields)
}
