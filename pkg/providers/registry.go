// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package providers

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the registered models and their configured fallback
// orders.
type Registry struct {
	mu        sync.RWMutex
	models    map[string]ModelInfo
	fallbacks map[string][]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		models:    make(map[string]ModelInfo),
		fallbacks: make(map[string][]string),
	}
}

// Register adds or replaces a model.
func (r *Registry) Register(m ModelInfo) error {
	if m.ID == "" {
		return fmt.Errorf("model id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[m.ID] = m
	return nil
}

// SetFallbacks configures the ordered fallback list for a primary
// model. Every id must already be registered.
func (r *Registry) SetFallbacks(primary string, fallbacks []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[primary]; !ok {
		return fmt.Errorf("unknown primary model %s", primary)
	}
	for _, id := range fallbacks {
		if _, ok := r.models[id]; !ok {
			return fmt.Errorf("unknown fallback model %s", id)
		}
	}
	r.fallbacks[primary] = append([]string(nil), fallbacks...)
	return nil
}

// Get returns a model by id.
func (r *Registry) Get(id string) (ModelInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	return m, ok
}

// Fallbacks returns the configured fallback order for a primary model.
func (r *Registry) Fallbacks(primary string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.fallbacks[primary]...)
}

// GeneralCandidates returns every registered model except the primary,
// sorted by quality match with the primary, then whether the context
// length covers at least 80% of the primary's, then priority, with id
// as the final tie break.
func (r *Registry) GeneralCandidates(primary string) []ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, hasRef := r.models[primary]

	out := make([]ModelInfo, 0, len(r.models))
	for id, m := range r.models {
		if id == primary {
			continue
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		if hasRef {
			qi, qj := out[i].Quality == ref.Quality, out[j].Quality == ref.Quality
			if qi != qj {
				return qi
			}
			ci, cj := contextCovers(out[i], ref), contextCovers(out[j], ref)
			if ci != cj {
				return ci
			}
		}
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// contextCovers reports whether m's context window is at least 80% of
// the reference model's.
func contextCovers(m, ref ModelInfo) bool {
	return float64(m.ContextLength) >= 0.8*float64(ref.ContextLength)
}
