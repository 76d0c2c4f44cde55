// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentic-reserve/ordo/pkg/bus"
	"github.com/agentic-reserve/ordo/pkg/logger"
)

// Attempt records one try in the failover chain.
type Attempt struct {
	ModelID string        `json:"model_id"`
	Err     error         `json:"-"`
	Latency time.Duration `json:"latency"`
	Skipped bool          `json:"skipped"` // skipped due to cooldown
}

// Result carries the successful response plus the attempt trail.
type Result struct {
	Response *ChatResponse `json:"response"`
	ModelID  string        `json:"model_id"`
	Attempts []Attempt     `json:"attempts"`
}

// RunFunc executes one inference call against the given model.
type RunFunc func(ctx context.Context, modelID string) (*ChatResponse, error)

// FailoverChain tries the primary model, then its configured fallback
// order, then the whole registry sorted by affinity with the primary.
// Failed models cool down for five minutes before being retried.
type FailoverChain struct {
	registry *Registry
	cooldown *CooldownTracker
	events   *bus.EventBus
}

// NewFailoverChain wires a chain. events may be nil.
func NewFailoverChain(registry *Registry, cooldown *CooldownTracker, events *bus.EventBus) *FailoverChain {
	if cooldown == nil {
		cooldown = NewCooldownTracker(0)
	}
	return &FailoverChain{registry: registry, cooldown: cooldown, events: events}
}

// Execute runs the chain. Cancellation aborts immediately without
// trying further candidates; any other failure cools the model down
// and moves to the next. When every configured candidate is cooling,
// the chain widens to all registered models.
func (fc *FailoverChain) Execute(ctx context.Context, primary string, run RunFunc) (*Result, error) {
	candidates := fc.candidateOrder(primary)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("failover: no candidates for model %s", primary)
	}

	result := &Result{Attempts: make([]Attempt, 0, len(candidates))}

	for _, modelID := range candidates {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, context.Canceled
		}

		if !fc.cooldown.IsAvailable(modelID) {
			result.Attempts = append(result.Attempts, Attempt{
				ModelID: modelID,
				Skipped: true,
				Err:     fmt.Errorf("cooling down for %s", fc.cooldown.Remaining(modelID).Round(time.Second)),
			})
			continue
		}

		start := time.Now()
		resp, err := run(ctx, modelID)
		latency := time.Since(start)

		if err == nil {
			fc.cooldown.MarkSuccess(modelID)
			result.Response = resp
			result.ModelID = modelID
			if modelID != primary {
				fc.emitFailover(primary, modelID, "primary unavailable", true, latency)
			}
			return result, nil
		}

		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, context.Canceled
		}

		fc.cooldown.MarkFailure(modelID)
		result.Attempts = append(result.Attempts, Attempt{ModelID: modelID, Err: err, Latency: latency})
		if modelID != primary {
			fc.emitFailover(primary, modelID, err.Error(), false, latency)
		}
		logger.DebugCF("providers", "model attempt failed", map[string]any{
			"model": modelID,
			"error": err.Error(),
		})
	}

	return nil, fmt.Errorf("failover: all %d candidates for %s failed or cooling", len(candidates), primary)
}

// candidateOrder is primary, configured fallbacks, then the general
// registry order, deduplicated.
func (fc *FailoverChain) candidateOrder(primary string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	add(primary)
	for _, id := range fc.registry.Fallbacks(primary) {
		add(id)
	}
	for _, m := range fc.registry.GeneralCandidates(primary) {
		add(m.ID)
	}
	return out
}

func (fc *FailoverChain) emitFailover(primary, fallback, reason string, success bool, latency time.Duration) {
	if fc.events == nil {
		return
	}
	fc.events.Publish("provider:failover", map[string]any{
		"primary":  primary,
		"fallback": fallback,
		"reason":   reason,
		"success":  success,
		"latency":  latency.Milliseconds(),
	})
}
