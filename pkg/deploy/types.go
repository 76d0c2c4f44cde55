// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

// Package deploy implements the zero-downtime deployment controller:
// blue-green, rolling and canary strategies over a set of service
// instances, with health gates, request tracking and rollback.
package deploy

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Strategy selects the in_progress sub-flow of a deployment.
type Strategy string

const (
	BlueGreen Strategy = "blue-green"
	Rolling   Strategy = "rolling"
	Canary    Strategy = "canary"
)

// DeploymentStatus is the deployment lifecycle state.
type DeploymentStatus string

const (
	StatusPending      DeploymentStatus = "pending"
	StatusInProgress   DeploymentStatus = "in_progress"
	StatusHealthCheck  DeploymentStatus = "health_check"
	StatusTrafficShift DeploymentStatus = "traffic_shift"
	StatusCompleted    DeploymentStatus = "completed"
	StatusFailed       DeploymentStatus = "failed"
	StatusRolledBack   DeploymentStatus = "rolled_back"
)

// InstanceStatus is the service instance lifecycle state.
type InstanceStatus string

const (
	InstanceStarting  InstanceStatus = "starting"
	InstanceHealthy   InstanceStatus = "healthy"
	InstanceUnhealthy InstanceStatus = "unhealthy"
	InstanceStopping  InstanceStatus = "stopping"
	InstanceStopped   InstanceStatus = "stopped"
)

// ServiceInstance is one running copy of the service.
type ServiceInstance struct {
	ID        string         `json:"id"`
	Version   string         `json:"version"`
	Status    InstanceStatus `json:"status"`
	Port      int            `json:"port"`
	StartedAt int64          `json:"started_at"`
}

func newInstance(version string, port int) *ServiceInstance {
	return &ServiceInstance{
		ID:        fmt.Sprintf("inst-%s", uuid.New().String()[:8]),
		Version:   version,
		Status:    InstanceStarting,
		Port:      port,
		StartedAt: time.Now().UnixMilli(),
	}
}

// Deployment is the record of one deploy call.
type Deployment struct {
	ID             string           `json:"id"`
	Version        string           `json:"version"`
	Strategy       Strategy         `json:"strategy"`
	Status         DeploymentStatus `json:"status"`
	Error          string           `json:"error,omitempty"`
	FailedRequests int64            `json:"failed_requests"`
	TotalRequests  int64            `json:"total_requests"`
	StartedAt      int64            `json:"started_at"`
	CompletedAt    int64            `json:"completed_at,omitempty"`
}

// Config tunes the deployment controller.
type Config struct {
	Strategy           Strategy
	InstanceCount      int
	HealthCheckRetries int
	HealthCheckDelay   time.Duration
	TrafficShiftDelay  time.Duration
	CanaryMonitor      time.Duration
	RollbackOnFailure  bool
	BasePort           int
}

// DefaultConfig returns the controller defaults: blue-green with two
// instances, three health attempts spaced ~2s, rollback enabled.
func DefaultConfig() Config {
	return Config{
		Strategy:           BlueGreen,
		InstanceCount:      2,
		HealthCheckRetries: 3,
		HealthCheckDelay:   2 * time.Second,
		TrafficShiftDelay:  time.Second,
		CanaryMonitor:      30 * time.Second,
		RollbackOnFailure:  true,
		BasePort:           8080,
	}
}

// Stats summarises the controller's deployment history. SuccessRate is
// a percentage and defaults to 100 when no deployments have run.
type Stats struct {
	Total       int     `json:"total"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// Rolling traffic steps, in percent.
var rollingSteps = []int{25, 50, 75, 100}

// Canary traffic share, in percent.
const canaryTrafficPct = 10
