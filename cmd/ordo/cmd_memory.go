// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-reserve/ordo/pkg/sharedmem"
)

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and maintain the shared memory store",
	}
	cmd.AddCommand(newMemoryGetCmd(), newMemoryCleanupCmd())
	return cmd
}

func newMemoryGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the latest entry for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSharedMem(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			entry, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(entry, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func newMemoryCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSharedMem(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.CleanupExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d expired entries at %s\n", removed, time.Now().UTC().Format(time.RFC3339))
			return nil
		},
	}
}

func openSharedMem(cmd *cobra.Command) (*sharedmem.Store, error) {
	cfg := configFrom(cmd.Context())
	return sharedmem.NewStore(expandHome(cfg.SharedMem.DBPath))
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
