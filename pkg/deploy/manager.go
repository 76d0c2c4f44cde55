// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package deploy

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentic-reserve/ordo/pkg/bus"
	"github.com/agentic-reserve/ordo/pkg/logger"
)

// HealthChecker probes one instance. A nil error means healthy.
type HealthChecker func(ctx context.Context, inst *ServiceInstance) error

// Manager runs deployments one at a time. Request tracking is safe to
// call concurrently from serving paths while a deployment is in
// flight.
type Manager struct {
	mu     sync.Mutex
	config Config
	events *bus.EventBus
	health HealthChecker

	// sleep is injectable so tests can run the timed waits instantly.
	sleep func(time.Duration)

	current  []*ServiceInstance
	previous []*ServiceInstance
	last     *Deployment
	nextPort int

	totalRequests  atomic.Int64
	failedRequests atomic.Int64

	deployments       int
	failedDeployments int
}

// NewManager wires a deployment controller. events may be nil.
func NewManager(config Config, events *bus.EventBus, health HealthChecker) *Manager {
	if config.InstanceCount <= 0 {
		config.InstanceCount = 1
	}
	if config.HealthCheckRetries <= 0 {
		config.HealthCheckRetries = 3
	}
	if config.BasePort <= 0 {
		config.BasePort = 8080
	}
	return &Manager{
		config:   config,
		events:   events,
		health:   health,
		sleep:    time.Sleep,
		nextPort: config.BasePort,
	}
}

// TrackRequest records one served request. Failures recorded while a
// deployment is in flight count against that deployment.
func (m *Manager) TrackRequest(success bool) {
	m.totalRequests.Add(1)
	if !success {
		m.failedRequests.Add(1)
	}
}

// CurrentInstances returns the instances serving traffic.
func (m *Manager) CurrentInstances() []*ServiceInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ServiceInstance(nil), m.current...)
}

// GetStats reports the deployment history. With no deployments the
// success rate is 100.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{Total: m.deployments, Failed: m.failedDeployments, SuccessRate: 100}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Total-stats.Failed) / float64(stats.Total) * 100
	}
	return stats
}

// Deploy rolls the given version out using the configured strategy. A
// failed deployment is a result, not an error: the returned record
// carries status failed and the failure message.
func (m *Manager) Deploy(ctx context.Context, version string) (*Deployment, error) {
	if version == "" {
		return nil, fmt.Errorf("version is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d := &Deployment{
		ID:        fmt.Sprintf("deploy-%d", time.Now().UnixMilli()),
		Version:   version,
		Strategy:  m.config.Strategy,
		Status:    StatusPending,
		StartedAt: time.Now().UnixMilli(),
	}
	m.deployments++
	m.last = d

	failedBefore := m.failedRequests.Load()
	totalBefore := m.totalRequests.Load()

	m.emit("deployment:started", map[string]any{"deployment_id": d.ID, "version": version})
	m.emit("deployment:strategy", map[string]any{"deployment_id": d.ID, "strategy": string(m.config.Strategy)})

	d.Status = StatusInProgress
	m.emit("deployment:status", map[string]any{"deployment_id": d.ID, "status": string(d.Status)})

	old := m.current
	newInstances, err := m.runStrategy(ctx, d, version, old)
	if err != nil {
		return m.fail(d, newInstances, old, err, failedBefore, totalBefore), nil
	}

	// Zero-downtime gate: any request dropped during the rollout fails
	// the deployment.
	if dropped := m.failedRequests.Load() - failedBefore; dropped > 0 {
		err := fmt.Errorf("%d requests failed during rollout", dropped)
		return m.fail(d, newInstances, old, err, failedBefore, totalBefore), nil
	}

	m.previous = old
	m.current = newInstances
	d.Status = StatusCompleted
	d.CompletedAt = time.Now().UnixMilli()
	d.FailedRequests = m.failedRequests.Load() - failedBefore
	d.TotalRequests = m.totalRequests.Load() - totalBefore

	m.emit("deployment:completed", map[string]any{
		"deployment_id":   d.ID,
		"version":         version,
		"failed_requests": d.FailedRequests,
	})
	logger.InfoCF("deploy", "deployment completed", map[string]any{
		"deployment_id": d.ID,
		"version":       version,
		"instances":     len(newInstances),
	})
	return d, nil
}

// Rollback reverts the last completed deployment: the previous
// instance set is restored to healthy and the replaced one stopped.
func (m *Manager) Rollback(ctx context.Context) (*Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.last == nil || m.last.Status != StatusCompleted {
		return nil, fmt.Errorf("no completed deployment to roll back")
	}
	if len(m.previous) == 0 {
		return nil, fmt.Errorf("no previous instances to restore")
	}

	m.emit("deployment:rollback_started", map[string]any{"deployment_id": m.last.ID})
	for _, inst := range m.previous {
		inst.Status = InstanceHealthy
	}
	m.stopInstances(m.current)
	m.current = m.previous
	m.previous = nil
	m.last.Status = StatusRolledBack
	m.emit("deployment:rollback_completed", map[string]any{"deployment_id": m.last.ID})
	return m.last, nil
}

// runStrategy dispatches the in_progress sub-flow and returns the new
// instance set on success.
func (m *Manager) runStrategy(ctx context.Context, d *Deployment, version string, old []*ServiceInstance) ([]*ServiceInstance, error) {
	switch m.config.Strategy {
	case BlueGreen:
		return m.blueGreen(ctx, d, version, old)
	case Rolling:
		return m.rolling(ctx, d, version, old)
	case Canary:
		return m.canary(ctx, d, version, old)
	default:
		return nil, fmt.Errorf("unknown strategy %q", m.config.Strategy)
	}
}

// blueGreen starts the full new set, waits for every instance to pass
// its health gate, switches traffic atomically and stops the old set.
func (m *Manager) blueGreen(ctx context.Context, d *Deployment, version string, old []*ServiceInstance) ([]*ServiceInstance, error) {
	newInstances := make([]*ServiceInstance, 0, m.config.InstanceCount)
	for i := 0; i < m.config.InstanceCount; i++ {
		newInstances = append(newInstances, m.startInstance(version))
	}

	d.Status = StatusHealthCheck
	for _, inst := range newInstances {
		if err := m.awaitHealthy(ctx, inst); err != nil {
			return newInstances, err
		}
	}

	d.Status = StatusTrafficShift
	m.emit("traffic:switching", map[string]any{"deployment_id": d.ID, "to_version": version})
	m.emit("traffic:switched", map[string]any{"deployment_id": d.ID, "to_version": version})

	m.stopInstances(old)
	return newInstances, nil
}

// rolling replaces old instances one at a time, stepping traffic
// through 25/50/75/100 between each replacement.
func (m *Manager) rolling(ctx context.Context, d *Deployment, version string, old []*ServiceInstance) ([]*ServiceInstance, error) {
	cycles := len(old)
	if cycles == 0 {
		cycles = 1
	}

	var newInstances []*ServiceInstance
	for i := 0; i < cycles; i++ {
		inst := m.startInstance(version)
		newInstances = append(newInstances, inst)

		d.Status = StatusHealthCheck
		if err := m.awaitHealthy(ctx, inst); err != nil {
			return newInstances, err
		}

		d.Status = StatusTrafficShift
		for _, pct := range rollingSteps {
			m.emit("traffic:shifting", map[string]any{"deployment_id": d.ID, "instance_id": inst.ID})
			m.emit("traffic:percentage", map[string]any{"deployment_id": d.ID, "instance_id": inst.ID, "percentage": pct})
			m.sleep(m.config.TrafficShiftDelay)
		}

		if i < len(old) {
			m.stopInstances(old[i : i+1])
		}
		m.sleep(m.config.TrafficShiftDelay)
	}
	return newInstances, nil
}

// canary starts one instance, routes a tenth of traffic to it, watches
// it for the monitor window and then proceeds as blue-green.
func (m *Manager) canary(ctx context.Context, d *Deployment, version string, old []*ServiceInstance) ([]*ServiceInstance, error) {
	inst := m.startInstance(version)

	d.Status = StatusHealthCheck
	if err := m.awaitHealthy(ctx, inst); err != nil {
		return []*ServiceInstance{inst}, err
	}

	d.Status = StatusTrafficShift
	m.emit("traffic:percentage", map[string]any{"deployment_id": d.ID, "instance_id": inst.ID, "percentage": canaryTrafficPct})
	m.sleep(m.config.CanaryMonitor)

	if err := m.checkOnce(ctx, inst); err != nil {
		inst.Status = InstanceUnhealthy
		return []*ServiceInstance{inst}, fmt.Errorf("canary unhealthy after monitor window: %w", err)
	}

	rest, err := m.blueGreen(ctx, d, version, old)
	if err != nil {
		return append(rest, inst), err
	}
	return append(rest, inst), nil
}

// awaitHealthy drives the health gate: up to HealthCheckRetries
// attempts with a fixed inter-attempt delay. A final failure marks the
// instance unhealthy.
func (m *Manager) awaitHealthy(ctx context.Context, inst *ServiceInstance) error {
	var lastErr error
	for attempt := 1; attempt <= m.config.HealthCheckRetries; attempt++ {
		if attempt > 1 {
			m.sleep(m.config.HealthCheckDelay)
		}
		m.emit("health_check:attempt", map[string]any{"instance_id": inst.ID, "attempt": attempt})

		if err := m.checkOnce(ctx, inst); err != nil {
			lastErr = err
			continue
		}
		inst.Status = InstanceHealthy
		m.emit("health_check:success", map[string]any{"instance_id": inst.ID, "attempt": attempt})
		return nil
	}

	inst.Status = InstanceUnhealthy
	m.emit("health_check:failed", map[string]any{"instance_id": inst.ID, "error": fmt.Sprint(lastErr)})
	return fmt.Errorf("instance %s failed health check after %d attempts: %w", inst.ID, m.config.HealthCheckRetries, lastErr)
}

func (m *Manager) checkOnce(ctx context.Context, inst *ServiceInstance) error {
	if m.health == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.health(ctx, inst)
}

func (m *Manager) startInstance(version string) *ServiceInstance {
	inst := newInstance(version, m.nextPort)
	m.nextPort++
	m.emit("instance:starting", map[string]any{"instance_id": inst.ID, "version": version, "port": inst.Port})
	m.emit("instance:started", map[string]any{"instance_id": inst.ID, "version": version, "port": inst.Port})
	return inst
}

func (m *Manager) stopInstances(instances []*ServiceInstance) {
	for _, inst := range instances {
		m.emit("instance:stopping", map[string]any{"instance_id": inst.ID})
		inst.Status = InstanceStopped
		m.emit("instance:stopped", map[string]any{"instance_id": inst.ID})
	}
}

// fail handles a mid-deployment error: optionally roll back (stop the
// new instances, restore stopped old ones to healthy) and return the
// deployment with status failed.
func (m *Manager) fail(d *Deployment, newInstances, old []*ServiceInstance, err error, failedBefore, totalBefore int64) *Deployment {
	m.failedDeployments++
	d.Status = StatusFailed
	d.Error = err.Error()
	d.CompletedAt = time.Now().UnixMilli()
	d.FailedRequests = m.failedRequests.Load() - failedBefore
	d.TotalRequests = m.totalRequests.Load() - totalBefore

	m.emit("deployment:failed", map[string]any{"deployment_id": d.ID, "error": err.Error()})
	logger.WarnCF("deploy", "deployment failed", map[string]any{
		"deployment_id": d.ID,
		"version":       d.Version,
		"error":         err.Error(),
	})

	if m.config.RollbackOnFailure {
		m.emit("deployment:rollback_started", map[string]any{"deployment_id": d.ID})
		m.stopInstances(newInstances)
		for _, inst := range old {
			if inst.Status == InstanceStopped {
				inst.Status = InstanceHealthy
			}
		}
		m.emit("deployment:rollback_completed", map[string]any{"deployment_id": d.ID})
	}
	return d
}

func (m *Manager) emit(eventType string, fields map[string]any) {
	if m.events == nil {
		return
	}
	m.events.Publish(eventType, fields)
}
