// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package providers

import (
	"sync"
	"time"
)

// DefaultCooldown is how long a failed model sits out of the chain.
const DefaultCooldown = 5 * time.Minute

// CooldownTracker remembers which models recently failed so the chain
// can skip them until their cooldown elapses.
type CooldownTracker struct {
	mu       sync.Mutex
	cooldown time.Duration
	until    map[string]time.Time
	now      func() time.Time
}

// NewCooldownTracker creates a tracker; d <= 0 uses DefaultCooldown.
func NewCooldownTracker(d time.Duration) *CooldownTracker {
	if d <= 0 {
		d = DefaultCooldown
	}
	return &CooldownTracker{
		cooldown: d,
		until:    make(map[string]time.Time),
		now:      time.Now,
	}
}

// MarkFailure starts or restarts the model's cooldown.
func (ct *CooldownTracker) MarkFailure(modelID string) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.until[modelID] = ct.now().Add(ct.cooldown)
}

// MarkSuccess clears any cooldown for the model.
func (ct *CooldownTracker) MarkSuccess(modelID string) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	delete(ct.until, modelID)
}

// IsAvailable reports whether the model may be tried.
func (ct *CooldownTracker) IsAvailable(modelID string) bool {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	deadline, cooling := ct.until[modelID]
	if !cooling {
		return true
	}
	if ct.now().After(deadline) {
		delete(ct.until, modelID)
		return true
	}
	return false
}

// Remaining returns how long until the model becomes available, zero
// when it already is.
func (ct *CooldownTracker) Remaining(modelID string) time.Duration {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	deadline, cooling := ct.until[modelID]
	if !cooling {
		return 0
	}
	remaining := deadline.Sub(ct.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
