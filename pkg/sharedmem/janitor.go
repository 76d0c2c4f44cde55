// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package sharedmem

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/agentic-reserve/ordo/pkg/logger"
)

// Janitor runs CleanupExpired on a cron schedule. The default schedule
// fires every minute.
type Janitor struct {
	store *Store
	expr  string
	gron  *gronx.Gronx

	// tick is the schedule poll interval, injectable for tests.
	tick time.Duration
}

// DefaultCleanupSchedule removes expired entries once a minute.
const DefaultCleanupSchedule = "* * * * *"

// NewJanitor validates the cron expression and returns a janitor bound
// to the store.
func NewJanitor(store *Store, cronExpr string) (*Janitor, error) {
	if cronExpr == "" {
		cronExpr = DefaultCleanupSchedule
	}
	g := gronx.New()
	if !g.IsValid(cronExpr) {
		return nil, fmt.Errorf("sharedmem: invalid cleanup schedule %q", cronExpr)
	}
	return &Janitor{store: store, expr: cronExpr, gron: g, tick: time.Minute}, nil
}

// Run blocks until the context is cancelled, firing cleanup whenever
// the schedule is due.
func (j *Janitor) Run(ctx context.Context) {
	logger.InfoCF("sharedmem", "Cleanup janitor started", map[string]any{"schedule": j.expr})

	ticker := time.NewTicker(j.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoC("sharedmem", "Cleanup janitor stopped")
			return
		case now := <-ticker.C:
			due, err := j.gron.IsDue(j.expr, now)
			if err != nil || !due {
				continue
			}
			if _, err := j.store.CleanupExpired(ctx); err != nil {
				logger.WarnCF("sharedmem", "Cleanup failed", map[string]any{"error": err.Error()})
			}
		}
	}
}
