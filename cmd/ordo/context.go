// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package main

import (
	"context"

	"github.com/agentic-reserve/ordo/pkg/config"
)

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}
