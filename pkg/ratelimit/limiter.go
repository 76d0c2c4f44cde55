// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

// Package ratelimit paces agent operations with token buckets sized by
// survival tier. Wealthier tiers get more headroom; dead agents get
// none.
package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/agentic-reserve/ordo/pkg/tiers"
)

// Config holds per-tier operation budgets.
type Config struct {
	Enabled      bool
	OpsPerMinute map[string]int
	Burst        int
}

// DefaultConfig returns the tier budgets used when nothing overrides
// them. A zero budget means the tier may not operate at all.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		OpsPerMinute: map[string]int{
			tiers.Thriving:   120,
			tiers.Normal:     60,
			tiers.LowCompute: 20,
			tiers.Critical:   5,
			tiers.Dead:       0,
		},
		Burst: 5,
	}
}

// TierLookup resolves an agent id to its current tier name.
type TierLookup func(agentID string) string

// TierLimiter keeps one token bucket per agent, sized by the agent's
// tier at first use. Call Refresh after a tier transition so the next
// operation picks up the new budget.
type TierLimiter struct {
	config  Config
	lookup  TierLookup
	buckets sync.Map // agentID -> *rate.Limiter
}

// NewTierLimiter builds a limiter over the given tier lookup.
func NewTierLimiter(config Config, lookup TierLookup) *TierLimiter {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &TierLimiter{config: config, lookup: lookup}
}

// Allow reports whether the agent may run one operation right now.
func (l *TierLimiter) Allow(agentID string) bool {
	if !l.config.Enabled {
		return true
	}
	lim, ok := l.bucketFor(agentID)
	if !ok {
		return false
	}
	return lim.Allow()
}

// Wait blocks until the agent's bucket releases a token or the context
// is cancelled. Agents with a zero budget are rejected immediately.
func (l *TierLimiter) Wait(ctx context.Context, agentID string) error {
	if !l.config.Enabled {
		return nil
	}
	lim, ok := l.bucketFor(agentID)
	if !ok {
		return fmt.Errorf("agent %s has no operation budget", agentID)
	}
	return lim.Wait(ctx)
}

// Refresh drops the cached bucket so the agent's next operation is
// paced by its current tier.
func (l *TierLimiter) Refresh(agentID string) {
	l.buckets.Delete(agentID)
}

// Budget returns the per-minute budget for an agent's current tier.
func (l *TierLimiter) Budget(agentID string) int {
	return l.config.OpsPerMinute[l.lookup(agentID)]
}

func (l *TierLimiter) bucketFor(agentID string) (*rate.Limiter, bool) {
	if cached, ok := l.buckets.Load(agentID); ok {
		lim := cached.(*rate.Limiter)
		return lim, lim.Limit() > 0
	}

	perMinute := l.config.OpsPerMinute[l.lookup(agentID)]
	lim := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), l.config.Burst)
	if perMinute <= 0 {
		lim = rate.NewLimiter(0, 0)
	}

	actual, _ := l.buckets.LoadOrStore(agentID, lim)
	lim = actual.(*rate.Limiter)
	return lim, lim.Limit() > 0
}
