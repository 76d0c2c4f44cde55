package deploy

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/agentic-reserve/ordo/pkg/bus"
)

func testConfig(strategy Strategy) Config {
	cfg := DefaultConfig()
	cfg.Strategy = strategy
	cfg.HealthCheckDelay = time.Millisecond
	cfg.TrafficShiftDelay = time.Millisecond
	cfg.CanaryMonitor = time.Millisecond
	return cfg
}

func healthyChecker(context.Context, *ServiceInstance) error { return nil }

func newTestManager(t *testing.T, strategy Strategy, health HealthChecker) (*Manager, *[]bus.Event) {
	t.Helper()
	events := bus.NewEventBus()
	t.Cleanup(events.Close)

	var captured []bus.Event
	sub := events.Subscribe(func(e bus.Event) { captured = append(captured, e) })
	t.Cleanup(sub.Unsubscribe)

	m := NewManager(testConfig(strategy), events, health)
	m.sleep = func(time.Duration) {}
	return m, &captured
}

func eventTypes(events []bus.Event) map[string]int {
	out := make(map[string]int)
	for _, e := range events {
		out[e.Type]++
	}
	return out
}

func TestDeploy_BlueGreenZeroDrops(t *testing.T) {
	m, captured := newTestManager(t, BlueGreen, healthyChecker)

	// Simulated live traffic during the rollout.
	for i := 0; i < 100; i++ {
		m.TrackRequest(true)
	}

	d, err := m.Deploy(context.Background(), "v1.0.0")
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	for i := 0; i < 100; i++ {
		m.TrackRequest(true)
	}

	if d.Status != StatusCompleted {
		t.Fatalf("status = %s (%s), want completed", d.Status, d.Error)
	}
	if d.FailedRequests != 0 {
		t.Errorf("failed requests = %d, want 0", d.FailedRequests)
	}

	types := eventTypes(*captured)
	for _, want := range []string{"deployment:started", "deployment:strategy", "instance:started", "traffic:switched", "deployment:completed"} {
		if types[want] == 0 {
			t.Errorf("event %s not emitted", want)
		}
	}

	instances := m.CurrentInstances()
	if len(instances) != 2 {
		t.Fatalf("current instances = %d, want 2", len(instances))
	}
	for _, inst := range instances {
		if inst.Version != "v1.0.0" || inst.Status != InstanceHealthy {
			t.Errorf("instance %s = %s/%s, want healthy v1.0.0", inst.ID, inst.Version, inst.Status)
		}
	}
}

func TestDeploy_FailedRequestsDuringRolloutFailDeployment(t *testing.T) {
	m, captured := newTestManager(t, BlueGreen, healthyChecker)
	if _, err := m.Deploy(context.Background(), "v1.0.0"); err != nil {
		t.Fatalf("Deploy v1: %v", err)
	}

	// Instances come up healthy, but live traffic drops requests while
	// the new set rolls out.
	m.health = func(context.Context, *ServiceInstance) error {
		m.TrackRequest(false)
		m.TrackRequest(false)
		return nil
	}

	d, err := m.Deploy(context.Background(), "v2.0.0")
	if err != nil {
		t.Fatalf("Deploy v2: %v", err)
	}
	if d.Status != StatusFailed {
		t.Fatalf("status = %s, want failed with dropped requests", d.Status)
	}
	if d.FailedRequests != 4 {
		t.Errorf("failed requests = %d, want 4", d.FailedRequests)
	}
	if !strings.Contains(d.Error, "failed during rollout") {
		t.Errorf("error = %q, want the dropped requests surfaced", d.Error)
	}

	// The healthy old set keeps serving.
	for _, inst := range m.CurrentInstances() {
		if inst.Version != "v1.0.0" || inst.Status != InstanceHealthy {
			t.Errorf("instance = %s/%s, want healthy v1.0.0", inst.Version, inst.Status)
		}
	}

	types := eventTypes(*captured)
	if types["deployment:failed"] == 0 {
		t.Error("deployment:failed not emitted")
	}
	if types["deployment:rollback_completed"] == 0 {
		t.Error("rollback events not emitted")
	}
	if types["deployment:completed"] != 1 {
		t.Errorf("deployment:completed emitted %d times, want only the v1 rollout", types["deployment:completed"])
	}

	stats := m.GetStats()
	if stats.Failed != 1 {
		t.Errorf("failed deployments = %d, want 1", stats.Failed)
	}
}

func TestDeploy_SequentialDeployments(t *testing.T) {
	m, _ := newTestManager(t, BlueGreen, healthyChecker)

	if _, err := m.Deploy(context.Background(), "v1.0.0"); err != nil {
		t.Fatalf("Deploy v1: %v", err)
	}
	oldInstances := m.CurrentInstances()

	d, err := m.Deploy(context.Background(), "v1.1.0")
	if err != nil {
		t.Fatalf("Deploy v2: %v", err)
	}
	if d.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", d.Status)
	}

	for _, inst := range m.CurrentInstances() {
		if inst.Version != "v1.1.0" {
			t.Errorf("instance version = %s, want v1.1.0", inst.Version)
		}
	}
	for _, inst := range oldInstances {
		if inst.Status != InstanceStopped {
			t.Errorf("old instance %s = %s, want stopped", inst.ID, inst.Status)
		}
	}

	stats := m.GetStats()
	if stats.Total != 2 || stats.Failed != 0 || stats.SuccessRate != 100 {
		t.Errorf("stats = %+v, want 2 deployments all successful", stats)
	}
}

func TestDeploy_HealthFailureRollsBack(t *testing.T) {
	m, captured := newTestManager(t, BlueGreen, healthyChecker)
	if _, err := m.Deploy(context.Background(), "v1.0.0"); err != nil {
		t.Fatalf("Deploy v1: %v", err)
	}

	attempts := 0
	m.health = func(context.Context, *ServiceInstance) error {
		attempts++
		return errors.New("connection refused")
	}

	d, err := m.Deploy(context.Background(), "v2.0.0")
	if err != nil {
		t.Fatalf("Deploy v2: %v", err)
	}
	if d.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", d.Status)
	}
	if !strings.Contains(d.Error, "connection refused") {
		t.Errorf("error = %q, want the health failure surfaced", d.Error)
	}
	if attempts != m.config.HealthCheckRetries {
		t.Errorf("health attempts = %d, want %d", attempts, m.config.HealthCheckRetries)
	}

	// Old instances keep serving; the aborted set is stopped.
	for _, inst := range m.CurrentInstances() {
		if inst.Version != "v1.0.0" || inst.Status != InstanceHealthy {
			t.Errorf("instance = %s/%s, want healthy v1.0.0", inst.Version, inst.Status)
		}
	}

	types := eventTypes(*captured)
	if types["deployment:rollback_started"] == 0 || types["deployment:rollback_completed"] == 0 {
		t.Error("rollback events not emitted")
	}
	if types["health_check:failed"] == 0 {
		t.Error("health_check:failed not emitted")
	}

	stats := m.GetStats()
	if stats.Failed != 1 {
		t.Errorf("failed deployments = %d, want 1", stats.Failed)
	}
}

func TestDeploy_RollingTrafficSteps(t *testing.T) {
	m, captured := newTestManager(t, Rolling, healthyChecker)
	if _, err := m.Deploy(context.Background(), "v1.0.0"); err != nil {
		t.Fatalf("Deploy v1: %v", err)
	}

	// First deploy had no old instances: a single cycle.
	var pcts []int
	for _, e := range *captured {
		if e.Type == "traffic:percentage" {
			pcts = append(pcts, e.Fields["percentage"].(int))
		}
	}
	want := []int{25, 50, 75, 100}
	if len(pcts) != len(want) {
		t.Fatalf("traffic steps = %v, want %v", pcts, want)
	}
	for i := range want {
		if pcts[i] != want[i] {
			t.Fatalf("traffic steps = %v, want %v", pcts, want)
		}
	}
}

func TestDeploy_CanaryUnhealthyAfterMonitor(t *testing.T) {
	checks := 0
	health := func(context.Context, *ServiceInstance) error {
		checks++
		if checks > 1 {
			// Healthy at the gate, degraded during the monitor window.
			return errors.New("latency spike")
		}
		return nil
	}

	m, _ := newTestManager(t, Canary, health)
	d, err := m.Deploy(context.Background(), "v1.0.0")
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if d.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", d.Status)
	}
	if !strings.Contains(d.Error, "canary unhealthy") {
		t.Errorf("error = %q, want canary failure", d.Error)
	}
}

func TestDeploy_CanaryHappyPath(t *testing.T) {
	m, captured := newTestManager(t, Canary, healthyChecker)
	d, err := m.Deploy(context.Background(), "v1.0.0")
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if d.Status != StatusCompleted {
		t.Fatalf("status = %s (%s), want completed", d.Status, d.Error)
	}

	sawTen := false
	for _, e := range *captured {
		if e.Type == "traffic:percentage" && e.Fields["percentage"] == canaryTrafficPct {
			sawTen = true
		}
	}
	if !sawTen {
		t.Error("canary must route 10% traffic before the monitor window")
	}
}

func TestRollback_PostCompletion(t *testing.T) {
	m, _ := newTestManager(t, BlueGreen, healthyChecker)
	if _, err := m.Deploy(context.Background(), "v1.0.0"); err != nil {
		t.Fatalf("Deploy v1: %v", err)
	}
	v1 := m.CurrentInstances()
	if _, err := m.Deploy(context.Background(), "v2.0.0"); err != nil {
		t.Fatalf("Deploy v2: %v", err)
	}

	d, err := m.Rollback(context.Background())
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if d.Status != StatusRolledBack {
		t.Errorf("status = %s, want rolled_back", d.Status)
	}

	current := m.CurrentInstances()
	if len(current) != len(v1) {
		t.Fatalf("current = %d instances, want the v1 set restored", len(current))
	}
	for _, inst := range current {
		if inst.Version != "v1.0.0" || inst.Status != InstanceHealthy {
			t.Errorf("instance = %s/%s, want healthy v1.0.0", inst.Version, inst.Status)
		}
	}

	if _, err := m.Rollback(context.Background()); err == nil {
		t.Error("second rollback must fail without a completed deployment")
	}
}

func TestGetStats_EmptyDefaultsTo100(t *testing.T) {
	m := NewManager(DefaultConfig(), nil, nil)
	stats := m.GetStats()
	if stats.Total != 0 || stats.SuccessRate != 100 {
		t.Errorf("stats = %+v, want success rate 100 with no deployments", stats)
	}
}

func TestDeploy_RejectsEmptyVersion(t *testing.T) {
	m := NewManager(DefaultConfig(), nil, nil)
	if _, err := m.Deploy(context.Background(), ""); err == nil {
		t.Error("empty version must be rejected")
	}
}
