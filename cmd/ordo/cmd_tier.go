// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-reserve/ordo/pkg/tiers"
)

func newTierCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tier <balance>",
		Short: "Classify an agent balance into its survival tier",
		Args:  cobra.ExactArgs(1),
		RunE:  runTier,
	}
}

func runTier(cmd *cobra.Command, args []string) error {
	balance, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid balance %q: %w", args[0], err)
	}

	tier := tiers.TierOf(balance)
	fmt.Printf("Tier:         %s\n", tier.Name)
	fmt.Printf("Model:        %s\n", tier.ModelID)
	fmt.Printf("Capabilities: %s\n", strings.Join(tier.Capabilities, ", "))
	fmt.Printf("Replicate:    %v\n", tier.CanReplicate)
	fmt.Printf("Experiment:   %v\n", tier.CanExperiment)
	return nil
}
