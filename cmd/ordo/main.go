// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agentic-reserve/ordo/pkg/config"
	"github.com/agentic-reserve/ordo/pkg/logger"
)

var (
	version   = "dev"
	gitCommit string
)

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func main() {
	root := &cobra.Command{
		Use:           "ordo",
		Short:         "Agent orchestration substrate",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.SetLevelFromString(cfg.LogLevel)
			cmd.SetContext(withConfig(cmd.Context(), cfg))
			return nil
		},
	}
	root.PersistentFlags().String("config", defaultConfigPath(), "Path to the Ordo config file")

	root.AddCommand(
		newVersionCmd(),
		newTierCmd(),
		newMemoryCmd(),
		newConfigCmd(),
		newEnvCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ordo %s (%s)\n", formatVersion(), runtime.Version())
		},
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ordo.json"
	}
	return home + "/.ordo/config.json"
}
