// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package improve

import (
	"math"
	"time"
)

// CapabilityGatePct is the capability gate: a sustained capability gain
// above this rate per day trips the rapid_growth flag. Exactly at the
// gate is not a violation.
const CapabilityGatePct = 10.0

// Trend thresholds on the relative velocity change.
const (
	accelerationThreshold = 0.20
	decelerationThreshold = -0.20
)

// GainRecord is one improvement's measured gains, used for velocity
// analysis. Gains are percentages (capability in percentage points per
// improvement).
type GainRecord struct {
	AgentID        string  `json:"agent_id"`
	Timestamp      int64   `json:"timestamp"` // unix millis
	SpeedGain      float64 `json:"speed_gain"`
	CostReduction  float64 `json:"cost_reduction"`
	CapabilityGain float64 `json:"capability_gain"`
}

// Window bounds a velocity computation.
type Window struct {
	Start time.Time
	End   time.Time
}

// Days returns the window length in days, at least a small epsilon to
// keep rates finite.
func (w Window) Days() float64 {
	d := w.End.Sub(w.Start).Hours() / 24
	if d <= 0 {
		return math.SmallestNonzeroFloat64
	}
	return d
}

// Prior returns the window of equal length immediately before this one.
func (w Window) Prior() Window {
	length := w.End.Sub(w.Start)
	return Window{Start: w.Start.Add(-length), End: w.Start}
}

// Velocity holds per-day improvement rates. Overall blends the three
// rates 0.4 speed, 0.3 cost, 0.3 capability.
type Velocity struct {
	SpeedGainPerDay      float64 `json:"speed_gain_per_day"`
	CostReductionPerDay  float64 `json:"cost_reduction_per_day"`
	CapabilityGainPerDay float64 `json:"capability_gain_per_day"`
	OverallPerDay        float64 `json:"overall_per_day"`
	Improvements         int     `json:"improvements"`
}

// ComputeVelocity sums the gains of records falling inside the window
// and divides by its day count. The second return is false when the
// window holds no records, which callers treat as an absent window.
func ComputeVelocity(records []GainRecord, w Window) (Velocity, bool) {
	var v Velocity
	for _, r := range records {
		ts := time.UnixMilli(r.Timestamp)
		if ts.Before(w.Start) || !ts.Before(w.End) {
			continue
		}
		v.SpeedGainPerDay += r.SpeedGain
		v.CostReductionPerDay += r.CostReduction
		v.CapabilityGainPerDay += r.CapabilityGain
		v.Improvements++
	}
	if v.Improvements == 0 {
		return Velocity{}, false
	}

	days := w.Days()
	v.SpeedGainPerDay = nonNegative(v.SpeedGainPerDay / days)
	v.CostReductionPerDay = nonNegative(v.CostReductionPerDay / days)
	v.CapabilityGainPerDay = nonNegative(v.CapabilityGainPerDay / days)
	v.OverallPerDay = 0.4*v.SpeedGainPerDay + 0.3*v.CostReductionPerDay + 0.3*v.CapabilityGainPerDay
	return v, true
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// Trend classifies velocity movement between adjacent windows.
type Trend string

const (
	TrendAccelerating Trend = "accelerating"
	TrendDecelerating Trend = "decelerating"
	TrendStable       Trend = "stable"
	TrendNone         Trend = "none" // no prior window to compare against
)

// Alert severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert flags a velocity condition for an agent.
type Alert struct {
	AgentID  string `json:"agent_id"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// TrendReport is the outcome of one velocity analysis.
type TrendReport struct {
	AgentID          string  `json:"agent_id"`
	Trend            Trend   `json:"trend"`
	AccelerationRate float64 `json:"acceleration_rate"`
	RapidGrowth      bool    `json:"rapid_growth"`
	DaysToGate       float64 `json:"days_to_gate,omitempty"`
	Alerts           []Alert `json:"alerts,omitempty"`
}

// AnalyzeTrend compares the current window's velocity to the prior
// window's and checks the capability gate. A missing prior window
// yields trend "none"; the gate check still applies.
func AnalyzeTrend(agentID string, current Velocity, prior *Velocity) TrendReport {
	report := TrendReport{AgentID: agentID, Trend: TrendNone}

	if prior != nil && prior.OverallPerDay > 0 {
		report.AccelerationRate = (current.OverallPerDay - prior.OverallPerDay) / prior.OverallPerDay
		switch {
		case report.AccelerationRate >= accelerationThreshold:
			report.Trend = TrendAccelerating
		case report.AccelerationRate <= decelerationThreshold:
			report.Trend = TrendDecelerating
		default:
			report.Trend = TrendStable
		}
	}

	// Strictly above the gate; sitting exactly at it is allowed.
	report.RapidGrowth = current.CapabilityGainPerDay > CapabilityGatePct

	if report.Trend == TrendAccelerating && !report.RapidGrowth {
		report.DaysToGate = daysToGate(current.CapabilityGainPerDay, report.AccelerationRate)
	}

	if report.RapidGrowth {
		report.Alerts = append(report.Alerts, Alert{
			AgentID:  agentID,
			Severity: SeverityCritical,
			Message:  "capability gain exceeds the 10%/day gate",
		})
	}
	switch report.Trend {
	case TrendAccelerating:
		report.Alerts = append(report.Alerts, Alert{
			AgentID:  agentID,
			Severity: SeverityWarning,
			Message:  "improvement velocity accelerating",
		})
	case TrendDecelerating:
		report.Alerts = append(report.Alerts, Alert{
			AgentID:  agentID,
			Severity: SeverityInfo,
			Message:  "improvement velocity decelerating",
		})
	}

	return report
}

// daysToGate projects when compounding acceleration carries the
// capability rate through the gate. Already at or past the gate
// linearises to 0.
func daysToGate(current, accelerationRate float64) float64 {
	if current >= CapabilityGatePct {
		return 0
	}
	if current <= 0 || accelerationRate <= 0 {
		return math.Inf(1)
	}
	return math.Log(CapabilityGatePct/current) / math.Log(1+accelerationRate)
}
