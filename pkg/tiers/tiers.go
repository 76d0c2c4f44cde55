// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

// Package tiers maps an agent's economic balance to its survival tier.
// The tier gates what the agent is permitted to attempt: replication,
// experimentation, and which inference model it may call.
package tiers

// Tier is one discrete capability bracket. Instances are stable records;
// callers must treat them as read-only.
type Tier struct {
	Name          string   `json:"name"`
	MinBalance    float64  `json:"min_balance"`
	Capabilities  []string `json:"capabilities"`
	ModelID       string   `json:"model_id"`
	CanReplicate  bool     `json:"can_replicate"`
	CanExperiment bool     `json:"can_experiment"`
}

// Tier names.
const (
	Thriving   = "thriving"
	Normal     = "normal"
	LowCompute = "low-compute"
	Critical   = "critical"
	Dead       = "dead"
)

// TierOrder lists all tiers strictly by MinBalance descending. Lookup
// walks this table top-down and takes the first tier whose MinBalance
// the balance meets, so boundary balances belong to the higher tier.
var TierOrder = []Tier{
	{
		Name:          Thriving,
		MinBalance:    10,
		Capabilities:  []string{"inference", "tools", "trading", "replication", "experimentation"},
		ModelID:       "premium-large",
		CanReplicate:  true,
		CanExperiment: true,
	},
	{
		Name:          Normal,
		MinBalance:    1,
		Capabilities:  []string{"inference", "tools", "trading"},
		ModelID:       "standard",
		CanReplicate:  false,
		CanExperiment: true,
	},
	{
		Name:          LowCompute,
		MinBalance:    0.1,
		Capabilities:  []string{"inference", "tools"},
		ModelID:       "economy-small",
		CanReplicate:  false,
		CanExperiment: false,
	},
	{
		Name:          Critical,
		MinBalance:    0.01,
		Capabilities:  []string{"inference"},
		ModelID:       "minimal",
		CanReplicate:  false,
		CanExperiment: false,
	},
	{
		Name:          Dead,
		MinBalance:    0,
		Capabilities:  []string{},
		ModelID:       "none",
		CanReplicate:  false,
		CanExperiment: false,
	},
}

// TierOf classifies a balance. Deterministic and total: every
// non-negative balance matches exactly one tier, the highest whose
// MinBalance it meets. Negative balances classify as dead.
func TierOf(balance float64) Tier {
	for _, t := range TierOrder {
		if balance >= t.MinBalance {
			return t
		}
	}
	return TierOrder[len(TierOrder)-1]
}

// CanReplicate reports whether an agent at this balance may replicate.
func CanReplicate(balance float64) bool {
	return TierOf(balance).CanReplicate
}

// CanExperiment reports whether an agent at this balance may run
// self-improvement experiments.
func CanExperiment(balance float64) bool {
	return TierOf(balance).CanExperiment
}

// Direction of a tier transition.
type Direction string

const (
	DirectionUpgrade   Direction = "upgrade"
	DirectionDowngrade Direction = "downgrade"
	DirectionNone      Direction = "none"
)

// Transition describes a balance change in tier terms. Multi-tier jumps
// produce a single record.
type Transition struct {
	From      Tier      `json:"from"`
	To        Tier      `json:"to"`
	Direction Direction `json:"direction"`
	Delta     float64   `json:"delta"`
}

// TierTransition compares the tiers of two balances.
func TierTransition(oldBalance, newBalance float64) Transition {
	from := TierOf(oldBalance)
	to := TierOf(newBalance)

	dir := DirectionNone
	if to.MinBalance > from.MinBalance {
		dir = DirectionUpgrade
	} else if to.MinBalance < from.MinBalance {
		dir = DirectionDowngrade
	}

	return Transition{
		From:      from,
		To:        to,
		Direction: dir,
		Delta:     newBalance - oldBalance,
	}
}
