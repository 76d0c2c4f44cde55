// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package improve

import (
	"math"
)

// projectionDays is the horizon for savings projections.
const projectionDays = 30

// ROIInput describes one applied improvement for return-on-investment
// analysis.
type ROIInput struct {
	BaselineCostPerOp float64 `json:"baseline_cost_per_op"`
	ImprovedCostPerOp float64 `json:"improved_cost_per_op"`
	OpsPerDay         float64 `json:"ops_per_day"`
	TotalCost         float64 `json:"total_cost"` // cost of developing and testing the improvement
	SpeedPct          float64 `json:"speed_pct"`
	ReliabilityPP     float64 `json:"reliability_pp"`
}

// ROIReport is the projected return over the 30-day horizon.
type ROIReport struct {
	ProjectedSavings float64 `json:"projected_savings"`
	ROIPct           float64 `json:"roi_pct"`
	PaybackDays      float64 `json:"payback_days"` // +Inf when savings are non-positive
	ValueScore       float64 `json:"value_score"`  // 0..100
}

// ComputeROI projects savings over 30 days and scores the improvement.
// Payback is infinite when the improvement saves nothing.
func ComputeROI(in ROIInput) ROIReport {
	report := ROIReport{
		ProjectedSavings: (in.BaselineCostPerOp - in.ImprovedCostPerOp) * in.OpsPerDay * projectionDays,
		PaybackDays:      math.Inf(1),
	}

	if in.TotalCost > 0 {
		report.ROIPct = (report.ProjectedSavings - in.TotalCost) / in.TotalCost * 100
	}
	if report.ProjectedSavings > 0 && in.TotalCost > 0 {
		report.PaybackDays = in.TotalCost / (report.ProjectedSavings / projectionDays)
	}

	report.ValueScore = valueScore(report, in)
	return report
}

// valueScore combines ROI, payback speed, reliability gain and time
// saved into a 0..100 composite. Components saturate so one huge win
// cannot mask a regression elsewhere.
func valueScore(r ROIReport, in ROIInput) float64 {
	roi := clampFrac(r.ROIPct / 200)

	payback := 0.0
	if !math.IsInf(r.PaybackDays, 1) {
		payback = clampFrac(1 - r.PaybackDays/projectionDays)
	}

	reliability := clampFrac(in.ReliabilityPP / 10)
	timeSaved := clampFrac(in.SpeedPct / 50)

	return (0.4*roi + 0.2*payback + 0.2*reliability + 0.2*timeSaved) * 100
}
