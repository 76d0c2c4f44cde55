// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package improve

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/agentic-reserve/ordo/pkg/bus"
	"github.com/agentic-reserve/ordo/pkg/logger"
)

// DefaultVelocitySchedule evaluates velocity hourly.
const DefaultVelocitySchedule = "0 * * * *"

// GainSource returns the gain records of all tracked agents, keyed by
// agent id.
type GainSource func() map[string][]GainRecord

// VelocityMonitor periodically recomputes per-agent improvement
// velocity and publishes any resulting alerts on the event bus.
type VelocityMonitor struct {
	schedule   string
	gron       *gronx.Gronx
	source     GainSource
	events     *bus.EventBus
	windowDays int
	tick       time.Duration
	now        func() time.Time
}

// NewVelocityMonitor validates the cron expression and wires a monitor
// over a 7-day analysis window.
func NewVelocityMonitor(schedule string, source GainSource, events *bus.EventBus) (*VelocityMonitor, error) {
	if schedule == "" {
		schedule = DefaultVelocitySchedule
	}
	g := gronx.New()
	if !g.IsValid(schedule) {
		return nil, fmt.Errorf("invalid velocity schedule %q", schedule)
	}
	return &VelocityMonitor{
		schedule:   schedule,
		gron:       g,
		source:     source,
		events:     events,
		windowDays: 7,
		tick:       time.Minute,
		now:        time.Now,
	}, nil
}

// Run blocks until the context is cancelled, evaluating every agent's
// trend whenever the schedule is due.
func (m *VelocityMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := m.gron.IsDue(m.schedule, now)
			if err != nil {
				logger.WarnCF("improve", "velocity schedule check failed", map[string]any{"error": err.Error()})
				continue
			}
			if due {
				m.Evaluate()
			}
		}
	}
}

// Evaluate runs one velocity analysis pass over every tracked agent
// and returns the produced reports.
func (m *VelocityMonitor) Evaluate() []TrendReport {
	now := m.now()
	window := Window{Start: now.AddDate(0, 0, -m.windowDays), End: now}

	var reports []TrendReport
	for agentID, records := range m.source() {
		current, ok := ComputeVelocity(records, window)
		if !ok {
			continue
		}

		var prior *Velocity
		if pv, ok := ComputeVelocity(records, window.Prior()); ok {
			prior = &pv
		}

		report := AnalyzeTrend(agentID, current, prior)
		reports = append(reports, report)

		for _, alert := range report.Alerts {
			if m.events != nil {
				m.events.Publish("improvement:alert", map[string]any{
					"agent_id": alert.AgentID,
					"severity": alert.Severity,
					"message":  alert.Message,
				})
			}
			if alert.Severity == SeverityCritical {
				logger.WarnCF("improve", "capability gate tripped", map[string]any{
					"agent_id":     alert.AgentID,
					"gain_per_day": current.CapabilityGainPerDay,
				})
			}
		}
	}
	return reports
}
