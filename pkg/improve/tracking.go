// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package improve

import (
	"github.com/agentic-reserve/ordo/pkg/agents"
)

// SuccessThresholdPct is the overall fitness gain required to call an
// applied improvement a success after the observation window.
const SuccessThresholdPct = 5.0

// SuccessReport compares fitness snapshots taken before and after the
// 7-day observation window of an applied modification.
type SuccessReport struct {
	ModificationID string          `json:"modification_id"`
	Before         agents.Snapshot `json:"before"`
	After          agents.Snapshot `json:"after"`
	ChangePct      float64         `json:"change_pct"`
	Success        bool            `json:"success"`
}

// TrackSuccess declares success iff overall fitness rose by at least
// the threshold relative to the before snapshot.
func TrackSuccess(modificationID string, before, after agents.Snapshot) SuccessReport {
	report := SuccessReport{
		ModificationID: modificationID,
		Before:         before,
		After:          after,
	}
	if before.OverallFitness > 0 {
		report.ChangePct = (after.OverallFitness - before.OverallFitness) / before.OverallFitness * 100
	} else if after.OverallFitness > 0 {
		report.ChangePct = 100
	}
	report.Success = report.ChangePct >= SuccessThresholdPct
	return report
}
