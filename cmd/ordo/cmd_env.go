// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-reserve/ordo/pkg/config"
)

func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect the process environment",
	}
	cmd.AddCommand(newEnvValidateCmd())
	return cmd
}

func newEnvValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <KEY>...",
		Short: "Check that the named environment variables are set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := config.NewEnvProvider()
			if err := provider.Validate(args); err != nil {
				return err
			}
			fmt.Printf("All %d variables are set\n", len(args))
			return nil
		},
	}
}
