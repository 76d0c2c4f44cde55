package improve

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/agentic-reserve/ordo/pkg/agents"
)

func TestRunSandbox_CountsPanicsAsFailures(t *testing.T) {
	calls := 0
	probe := func(context.Context, ConfigSnapshot) (ProbeResult, error) {
		calls++
		switch {
		case calls%10 == 0:
			panic("probe blew up")
		case calls%5 == 0:
			return ProbeResult{}, errors.New("transient")
		default:
			return ProbeResult{LatencyMs: 100, Cost: 0.5}, nil
		}
	}

	result := RunSandbox(context.Background(), ConfigSnapshot{"model": "standard"}, probe, 0)
	if result.Probes != DefaultProbeCount {
		t.Fatalf("probes = %d, want the default %d", result.Probes, DefaultProbeCount)
	}
	if result.Failures != 20 {
		t.Errorf("failures = %d, want 20 (10 errors + 10 panics)", result.Failures)
	}
	if result.SuccessRate != 0.8 {
		t.Errorf("success rate = %v, want 0.8", result.SuccessRate)
	}
	if result.AvgLatencyMs != 100 || result.AvgCost != 0.5 {
		t.Errorf("averages = %v/%v, want 100/0.5 over successful probes", result.AvgLatencyMs, result.AvgCost)
	}
}

func TestRunSandbox_DoesNotMutateOriginalConfig(t *testing.T) {
	config := ConfigSnapshot{"model": "standard"}
	probe := func(_ context.Context, c ConfigSnapshot) (ProbeResult, error) {
		c["model"] = "mutated"
		return ProbeResult{}, nil
	}

	RunSandbox(context.Background(), config, probe, 1)
	if config["model"] != "standard" {
		t.Error("sandbox must run against a clone, not the original config")
	}
}

func TestApplyToProduction_RequiresValidation(t *testing.T) {
	p := Propose(Opportunity{AgentID: "agent-1", Category: "cost", TargetMetric: "cost"})
	changes := []Change{{Target: "model", OldValue: "premium-large", NewValue: "standard"}}

	_, err := ApplyToProduction(p, &ImpactMeasurement{}, changes)
	if !errors.Is(err, ErrUnvalidated) {
		t.Fatalf("err = %v, want ErrUnvalidated", err)
	}
	if err.Error() != "Cannot apply unvalidated improvement" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestApplyToProduction_RollbackPlan(t *testing.T) {
	p := Propose(Opportunity{AgentID: "agent-1", Category: "cost", TargetMetric: "cost"})
	p.Status = StatusValidated

	changes := []Change{
		{Target: "model", OldValue: "premium-large", NewValue: "standard"},
		{Target: "max_tokens", OldValue: 4096, NewValue: 2048},
	}
	m := &ImpactMeasurement{Deltas: Deltas{CostPct: 50}}

	mod, err := ApplyToProduction(p, m, changes)
	if err != nil {
		t.Fatalf("ApplyToProduction: %v", err)
	}
	if p.Status != StatusApplied {
		t.Errorf("status = %s, want applied", p.Status)
	}
	if len(mod.Rollback) != 2 {
		t.Fatalf("rollback steps = %d, want one per change", len(mod.Rollback))
	}
	// Reverts run in reverse application order.
	if !strings.Contains(mod.Rollback[0].Action, "max_tokens") {
		t.Errorf("first revert = %q, want the last change undone first", mod.Rollback[0].Action)
	}
	if mod.Rollback[0].Order != 1 || mod.Rollback[1].Order != 2 {
		t.Error("rollback steps must be ordered")
	}
	if mod.ImpactScore != 0.2 {
		t.Errorf("impact score = %v, want 0.4 weight x 0.5 cost gain", mod.ImpactScore)
	}
}

func TestTrackSuccess_FivePercentGate(t *testing.T) {
	before := agents.Snapshot{OverallFitness: 0.50}

	up := TrackSuccess("mod-1", before, agents.Snapshot{OverallFitness: 0.525})
	if !up.Success {
		t.Errorf("+5%% fitness must be a success, change = %v%%", up.ChangePct)
	}

	flat := TrackSuccess("mod-1", before, agents.Snapshot{OverallFitness: 0.52})
	if flat.Success {
		t.Errorf("+4%% fitness must not be a success, change = %v%%", flat.ChangePct)
	}
}

func TestComputeROI(t *testing.T) {
	report := ComputeROI(ROIInput{
		BaselineCostPerOp: 0.5,
		ImprovedCostPerOp: 0.4,
		OpsPerDay:         100,
		TotalCost:         60,
	})

	if report.ProjectedSavings != 300 {
		t.Errorf("savings = %v, want 0.1 x 100 x 30 = 300", report.ProjectedSavings)
	}
	if report.ROIPct != 400 {
		t.Errorf("roi = %v%%, want (300-60)/60 = 400%%", report.ROIPct)
	}
	if report.PaybackDays != 6 {
		t.Errorf("payback = %v, want 60/(300/30) = 6 days", report.PaybackDays)
	}
	if report.ValueScore <= 0 || report.ValueScore > 100 {
		t.Errorf("value score = %v, out of (0,100]", report.ValueScore)
	}
}

func TestComputeROI_NonPositiveSavings(t *testing.T) {
	report := ComputeROI(ROIInput{
		BaselineCostPerOp: 0.4,
		ImprovedCostPerOp: 0.5,
		OpsPerDay:         100,
		TotalCost:         60,
	})
	if !math.IsInf(report.PaybackDays, 1) {
		t.Errorf("payback = %v, want +Inf when the improvement saves nothing", report.PaybackDays)
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	var history []ExecutionRecord
	history = append(history, historyFor(now, 10, 50, 200, 1.0, 0.95)...) // baseline
	history = append(history, historyFor(now, 3, 50, 200, 0.5, 0.95)...)  // test: cost halved

	probe := func(context.Context, ConfigSnapshot) (ProbeResult, error) {
		return ProbeResult{LatencyMs: 100, Cost: 0.4}, nil
	}
	pl := NewPipeline(probe, func(string) []ExecutionRecord { return history }, nil)
	pl.now = func() time.Time { return now }

	opp := Opportunity{ID: "opp-1", AgentID: "agent-1", Category: "cost", TargetMetric: "cost", Description: "switch to a cheaper model", ExpectedImpact: 50}
	changes := []Change{{Target: "model", OldValue: "premium-large", NewValue: "standard"}}

	result, err := pl.TestAndApply(context.Background(), opp, ConfigSnapshot{"model": "premium-large"}, changes)
	if err != nil {
		t.Fatalf("TestAndApply: %v", err)
	}
	if result.Proposal.Status != StatusApplied {
		t.Fatalf("status = %s (%s), want applied", result.Proposal.Status, result.Proposal.ValidationReason)
	}
	if result.Modification == nil {
		t.Fatal("modification record missing")
	}
	if result.Modification.ImpactScore <= 0 {
		t.Error("applied improvement must carry a positive impact score")
	}
}

func TestPipeline_RejectsBelowThreshold(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	var history []ExecutionRecord
	history = append(history, historyFor(now, 10, 50, 200, 1.0, 0.95)...)
	history = append(history, historyFor(now, 3, 50, 200, 0.98, 0.95)...) // 2% cheaper, below 10%

	probe := func(context.Context, ConfigSnapshot) (ProbeResult, error) {
		return ProbeResult{LatencyMs: 100, Cost: 0.9}, nil
	}
	pl := NewPipeline(probe, func(string) []ExecutionRecord { return history }, nil)
	pl.now = func() time.Time { return now }

	opp := Opportunity{ID: "opp-2", AgentID: "agent-1", Category: "cost", TargetMetric: "cost"}
	result, err := pl.TestAndApply(context.Background(), opp, ConfigSnapshot{}, nil)
	if err != nil {
		t.Fatalf("TestAndApply: %v", err)
	}
	if result.Proposal.Status != StatusRejected {
		t.Errorf("status = %s, want rejected", result.Proposal.Status)
	}
	if result.Modification != nil {
		t.Error("rejected proposal must not produce a modification")
	}
}
