// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package improve

import (
	"fmt"
	"time"
)

// Validation thresholds. Speed and cost are percentages; reliability is
// percentage points.
const (
	SpeedThresholdPct      = 10.0
	CostThresholdPct       = 10.0
	ReliabilityThresholdPP = 5.0
	ReliabilityMaxDropPP   = 5.0

	measurementWindow = 7 * 24 * time.Hour
	baselineWindow    = 14 * 24 * time.Hour
)

// ExecutionRecord is one historical operation used for impact
// measurement.
type ExecutionRecord struct {
	Timestamp int64   `json:"timestamp"` // unix millis
	LatencyMs float64 `json:"latency_ms"`
	Cost      float64 `json:"cost"`
	Success   bool    `json:"success"`
}

// DailySample is one day of aggregated metrics, for monotonicity
// checks over the measurement window.
type DailySample struct {
	Day          string  `json:"day"` // YYYY-MM-DD
	Ops          int     `json:"ops"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	AvgCost      float64 `json:"avg_cost"`
	SuccessRate  float64 `json:"success_rate"`
}

// PeriodMetrics aggregates one measurement window.
type PeriodMetrics struct {
	Ops          int           `json:"ops"`
	AvgLatencyMs float64       `json:"avg_latency_ms"`
	AvgCost      float64       `json:"avg_cost"`
	SuccessRate  float64       `json:"success_rate"`
	Daily        []DailySample `json:"daily"`
}

// Deltas compares the test window to the baseline. Positive speed/cost
// means the test period was faster/cheaper; reliability is the success
// rate change in percentage points.
type Deltas struct {
	SpeedPct      float64 `json:"speed_pct"`
	CostPct       float64 `json:"cost_pct"`
	ReliabilityPP float64 `json:"reliability_pp"`
}

// ImpactMeasurement is the full before/after comparison.
type ImpactMeasurement struct {
	Baseline PeriodMetrics `json:"baseline"`
	Test     PeriodMetrics `json:"test"`
	Deltas   Deltas        `json:"deltas"`
}

// MeasureImpact computes baseline metrics from the 14-to-7-days-ago
// window and test metrics from the last 7 days.
func MeasureImpact(records []ExecutionRecord, now time.Time) *ImpactMeasurement {
	testStart := now.Add(-measurementWindow)
	baselineStart := now.Add(-baselineWindow)

	var baseline, test []ExecutionRecord
	for _, r := range records {
		ts := time.UnixMilli(r.Timestamp)
		switch {
		case ts.Before(baselineStart) || ts.After(now):
			continue
		case ts.Before(testStart):
			baseline = append(baseline, r)
		default:
			test = append(test, r)
		}
	}

	m := &ImpactMeasurement{
		Baseline: aggregate(baseline),
		Test:     aggregate(test),
	}
	m.Deltas = computeDeltas(m.Baseline, m.Test)
	return m
}

func aggregate(records []ExecutionRecord) PeriodMetrics {
	pm := PeriodMetrics{Ops: len(records)}
	if len(records) == 0 {
		return pm
	}

	byDay := make(map[string][]ExecutionRecord)
	var dayOrder []string
	var totalLatency, totalCost float64
	successes := 0

	for _, r := range records {
		totalLatency += r.LatencyMs
		totalCost += r.Cost
		if r.Success {
			successes++
		}
		day := time.UnixMilli(r.Timestamp).UTC().Format("2006-01-02")
		if _, seen := byDay[day]; !seen {
			dayOrder = append(dayOrder, day)
		}
		byDay[day] = append(byDay[day], r)
	}

	pm.AvgLatencyMs = totalLatency / float64(len(records))
	pm.AvgCost = totalCost / float64(len(records))
	pm.SuccessRate = float64(successes) / float64(len(records))

	for _, day := range dayOrder {
		rs := byDay[day]
		var lat, cost float64
		ok := 0
		for _, r := range rs {
			lat += r.LatencyMs
			cost += r.Cost
			if r.Success {
				ok++
			}
		}
		pm.Daily = append(pm.Daily, DailySample{
			Day:          day,
			Ops:          len(rs),
			AvgLatencyMs: lat / float64(len(rs)),
			AvgCost:      cost / float64(len(rs)),
			SuccessRate:  float64(ok) / float64(len(rs)),
		})
	}
	return pm
}

func computeDeltas(baseline, test PeriodMetrics) Deltas {
	var d Deltas
	if baseline.AvgLatencyMs > 0 {
		d.SpeedPct = (baseline.AvgLatencyMs - test.AvgLatencyMs) / baseline.AvgLatencyMs * 100
	}
	if baseline.AvgCost > 0 {
		d.CostPct = (baseline.AvgCost - test.AvgCost) / baseline.AvgCost * 100
	}
	d.ReliabilityPP = (test.SuccessRate - baseline.SuccessRate) * 100
	return d
}

// Validate applies the validation rule: any reliability drop beyond 5
// percentage points rejects outright, otherwise the proposal's target
// metric must clear its threshold.
func Validate(p *Proposal, d Deltas) (bool, string) {
	if d.ReliabilityPP < -ReliabilityMaxDropPP {
		return false, fmt.Sprintf("Reliability degraded by %.1f pp, exceeding the %.0f pp tolerance", -d.ReliabilityPP, ReliabilityMaxDropPP)
	}

	switch p.TargetMetric {
	case "speed":
		if d.SpeedPct >= SpeedThresholdPct {
			return true, fmt.Sprintf("speed improved %.1f%%, meets %.0f%% threshold", d.SpeedPct, SpeedThresholdPct)
		}
		return false, fmt.Sprintf("speed improved %.1f%%, below %.0f%% threshold", d.SpeedPct, SpeedThresholdPct)
	case "cost":
		if d.CostPct >= CostThresholdPct {
			return true, fmt.Sprintf("cost reduced %.1f%%, meets %.0f%% threshold", d.CostPct, CostThresholdPct)
		}
		return false, fmt.Sprintf("cost reduced %.1f%%, below %.0f%% threshold", d.CostPct, CostThresholdPct)
	case "reliability":
		if d.ReliabilityPP >= ReliabilityThresholdPP {
			return true, fmt.Sprintf("reliability up %.1f pp, meets %.0f pp threshold", d.ReliabilityPP, ReliabilityThresholdPP)
		}
		return false, fmt.Sprintf("reliability up %.1f pp, below %.0f pp threshold", d.ReliabilityPP, ReliabilityThresholdPP)
	default:
		return false, fmt.Sprintf("unknown target metric %q", p.TargetMetric)
	}
}
