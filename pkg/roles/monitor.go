// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package roles

import (
	"sort"
	"sync"
)

// LoadMonitor keeps rolling load samples per agent. Averages feed the
// rebalancer's overloaded/underloaded classification.
type LoadMonitor struct {
	sampleSize int
	samples    map[string][]float64
	mu         sync.RWMutex
}

// DefaultSampleSize bounds the rolling window.
const DefaultSampleSize = 60

// NewLoadMonitor creates a monitor with the given window size.
func NewLoadMonitor(sampleSize int) *LoadMonitor {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &LoadMonitor{
		sampleSize: sampleSize,
		samples:    make(map[string][]float64),
	}
}

// Record adds a load sample for an agent, evicting the oldest once the
// window is full.
func (lm *LoadMonitor) Record(agentID string, load float64) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	s := append(lm.samples[agentID], load)
	if len(s) > lm.sampleSize {
		s = s[len(s)-lm.sampleSize:]
	}
	lm.samples[agentID] = s
}

// Average returns the rolling average load for an agent, zero when no
// samples exist.
func (lm *LoadMonitor) Average(agentID string) float64 {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	s := lm.samples[agentID]
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}

// Averages returns the rolling average per tracked agent.
func (lm *LoadMonitor) Averages() map[string]float64 {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	out := make(map[string]float64, len(lm.samples))
	for id := range lm.samples {
		s := lm.samples[id]
		var sum float64
		for _, v := range s {
			sum += v
		}
		out[id] = sum / float64(len(s))
	}
	return out
}

// Rebalance thresholds relative to the mean load.
const (
	overloadedFactor  = 1.5
	underloadedFactor = 0.5
)

// Move transfers one assignment between agents.
type Move struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Rebalance computes the moves that bring overloaded agents (above
// 1.5x the average) down by shifting assignments to underloaded ones
// (below 0.5x). Returns no moves when the map is already balanced.
func Rebalance(load map[string]int) []Move {
	if len(load) == 0 {
		return nil
	}

	working := make(map[string]int, len(load))
	ids := make([]string, 0, len(load))
	total := 0
	for id, l := range load {
		working[id] = l
		ids = append(ids, id)
		total += l
	}
	sort.Strings(ids)
	avg := float64(total) / float64(len(load))

	var moves []Move
	for {
		from := pickExtreme(ids, working, func(l int) bool { return float64(l) > avg*overloadedFactor }, true)
		to := pickExtreme(ids, working, func(l int) bool { return float64(l) < avg*underloadedFactor }, false)
		if from == "" || to == "" {
			break
		}
		working[from]--
		working[to]++
		moves = append(moves, Move{From: from, To: to})
	}
	return moves
}

// pickExtreme returns the agent matching cond with the highest (or
// lowest) load, ties broken by id ascending.
func pickExtreme(ids []string, load map[string]int, cond func(int) bool, highest bool) string {
	picked := ""
	for _, id := range ids {
		l := load[id]
		if !cond(l) {
			continue
		}
		if picked == "" {
			picked = id
			continue
		}
		if (highest && l > load[picked]) || (!highest && l < load[picked]) {
			picked = id
		}
	}
	return picked
}
