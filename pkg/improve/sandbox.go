// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package improve

import (
	"context"
	"fmt"
)

// DefaultProbeCount is the number of probe operations a sandbox run
// executes.
const DefaultProbeCount = 100

// ConfigSnapshot is an agent configuration captured for isolated
// testing.
type ConfigSnapshot map[string]any

// Clone returns a shallow copy so the sandbox can mutate freely.
func (c ConfigSnapshot) Clone() ConfigSnapshot {
	out := make(ConfigSnapshot, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ProbeResult carries the per-operation measurements of one probe.
type ProbeResult struct {
	LatencyMs float64
	Cost      float64
}

// Probe runs one sandboxed operation against the cloned configuration.
type Probe func(ctx context.Context, config ConfigSnapshot) (ProbeResult, error)

// SandboxResult aggregates a full probe run.
type SandboxResult struct {
	Probes       int      `json:"probes"`
	Failures     int      `json:"failures"`
	SuccessRate  float64  `json:"success_rate"`
	AvgLatencyMs float64  `json:"avg_latency_ms"`
	AvgCost      float64  `json:"avg_cost"`
	Errors       []string `json:"errors,omitempty"`
}

// RunSandbox clones the configuration and drives n probe operations
// against it. A probe that panics counts as a failure; its message is
// collected with the other errors. Cancellation stops the run early
// with whatever was gathered.
func RunSandbox(ctx context.Context, config ConfigSnapshot, probe Probe, n int) *SandboxResult {
	if n <= 0 {
		n = DefaultProbeCount
	}
	isolated := config.Clone()
	result := &SandboxResult{}

	var totalLatency, totalCost float64
	successes := 0

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		result.Probes++

		pr, err := runProbe(ctx, isolated, probe)
		if err != nil {
			result.Failures++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		successes++
		totalLatency += pr.LatencyMs
		totalCost += pr.Cost
	}

	if result.Probes > 0 {
		result.SuccessRate = float64(successes) / float64(result.Probes)
	}
	if successes > 0 {
		result.AvgLatencyMs = totalLatency / float64(successes)
		result.AvgCost = totalCost / float64(successes)
	}
	return result
}

func runProbe(ctx context.Context, config ConfigSnapshot, probe Probe) (pr ProbeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	return probe(ctx, config)
}
