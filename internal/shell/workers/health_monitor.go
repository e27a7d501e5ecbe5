// Package workers contains background workers for honeymesh.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/artpar/honeymesh/internal/core/compose"
	"github.com/artpar/honeymesh/internal/core/domain"
	"github.com/artpar/honeymesh/internal/core/monitoring"
	"github.com/artpar/honeymesh/internal/shell/docker"
	"github.com/artpar/honeymesh/internal/shell/store"
)

// LockTrier hands out non-blocking per-deployment locks. The orchestrator
// manager satisfies this; the monitor skips any deployment whose lock is
// held so it never probes mid-operation.
type LockTrier interface {
	TryLock(name string) (release func(), ok bool)
}

// HealthMonitorConfig configures the health monitor worker.
type HealthMonitorConfig struct {
	// Interval is the time between poll cycles.
	// Default: 30 seconds.
	Interval time.Duration

	// ProbeTimeout is the timeout for a single service probe.
	// Default: 5 seconds.
	ProbeTimeout time.Duration

	// MissThreshold is the number of consecutive failed probes before a
	// service is reported down. Default: 3.
	MissThreshold int

	// MaxConcurrent is the maximum number of deployments polled at once.
	// Default: 4.
	MaxConcurrent int

	// EscalationThreshold is how long a deployment may stay unhealthy
	// before an escalation event is recorded for manual intervention.
	// Default: 10 minutes.
	EscalationThreshold time.Duration
}

// DefaultHealthMonitorConfig returns the default configuration.
func DefaultHealthMonitorConfig() HealthMonitorConfig {
	return HealthMonitorConfig{
		Interval:            30 * time.Second,
		ProbeTimeout:        5 * time.Second,
		MissThreshold:       3,
		MaxConcurrent:       4,
		EscalationThreshold: 10 * time.Minute,
	}
}

// HealthMonitor periodically polls every active deployment, probes each of
// its services, and persists the resulting health snapshot. Deployments
// flip between running and degraded based on the aggregated result.
type HealthMonitor struct {
	store  store.Store
	docker docker.Client
	locks  LockTrier
	config HealthMonitorConfig
	logger *slog.Logger

	httpClient *http.Client
	// dialTimeout is net.DialTimeout, injectable for tests.
	dialTimeout func(network, addr string, timeout time.Duration) (net.Conn, error)

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHealthMonitor creates a new health monitor worker.
func NewHealthMonitor(
	s store.Store,
	cli docker.Client,
	locks LockTrier,
	config HealthMonitorConfig,
	logger *slog.Logger,
) *HealthMonitor {
	if config.Interval == 0 {
		config.Interval = 30 * time.Second
	}
	if config.ProbeTimeout == 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	if config.MissThreshold == 0 {
		config.MissThreshold = 3
	}
	if config.MaxConcurrent == 0 {
		config.MaxConcurrent = 4
	}
	if config.EscalationThreshold == 0 {
		config.EscalationThreshold = 10 * time.Minute
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &HealthMonitor{
		store:       s,
		docker:      cli,
		locks:       locks,
		config:      config,
		logger:      logger.With("component", "health_monitor"),
		httpClient:  &http.Client{Timeout: config.ProbeTimeout},
		dialTimeout: net.DialTimeout,
	}
}

// Start begins the monitor's background goroutine. It polls immediately,
// then on every interval tick.
func (h *HealthMonitor) Start() {
	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go h.run()

	h.logger.Info("health monitor started",
		"interval", h.config.Interval,
		"miss_threshold", h.config.MissThreshold,
	)
}

// Stop gracefully stops the monitor, waiting for an in-progress cycle.
func (h *HealthMonitor) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
	h.logger.Info("health monitor stopped")
}

func (h *HealthMonitor) run() {
	defer h.wg.Done()

	h.runCycle(h.ctx)

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.runCycle(h.ctx)
		}
	}
}

// CheckNow runs one poll cycle immediately. Useful after an operation that
// changes what should be running.
func (h *HealthMonitor) CheckNow(ctx context.Context) {
	h.runCycle(ctx)
}

// runCycle polls every active deployment once.
func (h *HealthMonitor) runCycle(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, h.config.Interval)
	defer cancel()

	deployments, err := h.store.ListActiveDeployments(cycleCtx)
	if err != nil {
		h.logger.Error("failed to list active deployments", "error", err)
		return
	}
	if len(deployments) == 0 {
		return
	}

	sem := make(chan struct{}, h.config.MaxConcurrent)
	var wg sync.WaitGroup

	for i := range deployments {
		d := &deployments[i]

		wg.Add(1)
		go func(d *domain.Deployment) {
			defer wg.Done()

			select {
			case <-cycleCtx.Done():
				return
			case sem <- struct{}{}:
				defer func() { <-sem }()
			}

			h.checkDeployment(cycleCtx, d)
		}(d)
	}

	wg.Wait()
	h.logger.Debug("completed poll cycle", "deployment_count", len(deployments))
}

// checkDeployment probes one deployment and persists the snapshot. If an
// operation holds the deployment's lock the check is skipped; the next
// cycle will see the settled state.
func (h *HealthMonitor) checkDeployment(ctx context.Context, d *domain.Deployment) {
	release, ok := h.locks.TryLock(d.Name)
	if !ok {
		h.logger.Debug("deployment busy, skipping check", "deployment", d.Name)
		return
	}
	defer release()

	logger := h.logger.With("deployment", d.Name)

	snapshot := h.probeAll(ctx, d)
	d.Health = &snapshot

	if target, change := monitoring.DeploymentStatusFor(d.Status, snapshot.Status); change {
		if err := d.Transition(target); err != nil {
			logger.Error("health transition rejected", "target", target, "error", err)
		} else {
			h.recordTransition(ctx, d, target, snapshot)
		}
	}

	h.escalateIfProlonged(ctx, d)

	if err := h.store.UpdateDeployment(ctx, d); err != nil {
		logger.Error("failed to persist health snapshot", "error", err)
	}
}

// escalateIfProlonged records a single escalation event once a deployment
// has been unhealthy past the escalation threshold. The deployment stays
// Degraded; escalation is a report for manual intervention, not a teardown.
func (h *HealthMonitor) escalateIfProlonged(ctx context.Context, d *domain.Deployment) {
	if d.Status != domain.StatusDegraded || d.Health == nil {
		return
	}
	if !monitoring.ShouldEscalate(d.Health.DegradedSince, d.Health.Escalated, time.Now().UTC(), h.config.EscalationThreshold) {
		return
	}

	d.Health.Escalated = true
	event := domain.NewEvent(d.Name, domain.EventEscalated,
		fmt.Sprintf("unhealthy for over %s, manual intervention required: %s",
			h.config.EscalationThreshold, strings.Join(unhealthyServices(d.Health.Services), ", ")))
	if err := h.store.CreateEvent(ctx, &event); err != nil {
		h.logger.Error("failed to record escalation event", "deployment", d.Name, "error", err)
	}
	h.logger.Warn("deployment escalated for manual intervention",
		"deployment", d.Name, "degraded_since", d.Health.DegradedSince)
}

// probeAll runs every service probe for a deployment and folds the results
// into a snapshot, carrying consecutive-miss counters forward from the
// previous one.
func (h *HealthMonitor) probeAll(ctx context.Context, d *domain.Deployment) domain.HealthSnapshot {
	byService := h.containersByService(d)
	now := time.Now().UTC()

	var services []domain.ServiceHealth
	for _, spec := range monitoring.ProbePlan(d) {
		container, containerUp := byService[spec.Service]

		probeOK := containerUp
		detail := ""
		if !containerUp {
			detail = "container not running"
		} else if spec.Kind != monitoring.ProbeContainer {
			if err := h.probe(ctx, spec); err != nil {
				probeOK = false
				detail = err.Error()
			}
		}

		previous := 0
		if prev := d.Health.ServiceFor(spec.Service); prev != nil {
			previous = prev.Misses
		}
		misses := monitoring.NextMisses(previous, probeOK)

		services = append(services, domain.ServiceHealth{
			Service:       spec.Service,
			Status:        monitoring.StatusForMisses(misses, h.config.MissThreshold),
			Misses:        misses,
			ContainerID:   container.ID,
			ContainerUp:   containerUp,
			ProbeDetail:   detail,
			LastCheckedAt: now,
		})
	}

	aggregate := monitoring.Aggregate(services)
	snapshot := domain.HealthSnapshot{
		Status:        aggregate,
		Services:      services,
		CheckedAt:     now,
		DegradedSince: monitoring.UnhealthySince(d.Health, aggregate, now),
	}
	if snapshot.DegradedSince != nil && d.Health != nil {
		snapshot.Escalated = d.Health.Escalated
	}
	return snapshot
}

// probe executes one readiness check.
func (h *HealthMonitor) probe(ctx context.Context, spec monitoring.ProbeSpec) error {
	switch spec.Kind {
	case monitoring.ProbeHTTP:
		return h.probeHTTP(ctx, spec.URL)
	case monitoring.ProbeTCP:
		return h.probeTCP(spec.Port)
	default:
		return nil
	}
}

func (h *HealthMonitor) probeHTTP(ctx context.Context, url string) error {
	reqCtx, cancel := context.WithTimeout(ctx, h.config.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return nil
}

func (h *HealthMonitor) probeTCP(port int) error {
	conn, err := h.dialTimeout("tcp", fmt.Sprintf("localhost:%d", port), h.config.ProbeTimeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

// containersByService maps service name to the running container backing it.
// Containers that exist but are not running are treated as absent.
func (h *HealthMonitor) containersByService(d *domain.Deployment) map[string]docker.ContainerInfo {
	containers, err := h.docker.ListContainers(docker.ListOptions{
		Filters: map[string]string{
			"label": fmt.Sprintf("%s=%s", compose.LabelDeployment, d.Name),
		},
	})
	if err != nil {
		h.logger.Error("failed to list containers", "deployment", d.Name, "error", err)
		return nil
	}

	byService := make(map[string]docker.ContainerInfo, len(containers))
	for _, c := range containers {
		if c.Status != docker.ContainerStatusRunning {
			continue
		}
		if svc, ok := c.Labels[compose.LabelService]; ok {
			byService[svc] = c
		}
	}
	return byService
}

// recordTransition writes the degraded/recovered event for a health-driven
// status change.
func (h *HealthMonitor) recordTransition(ctx context.Context, d *domain.Deployment, target domain.DeploymentStatus, snapshot domain.HealthSnapshot) {
	var event domain.Event
	switch target {
	case domain.StatusDegraded:
		event = domain.NewEvent(d.Name, domain.EventDegraded,
			"services unhealthy: "+strings.Join(unhealthyServices(snapshot.Services), ", "))
		h.logger.Warn("deployment degraded", "deployment", d.Name,
			"services", unhealthyServices(snapshot.Services))
	case domain.StatusRunning:
		event = domain.NewEvent(d.Name, domain.EventRecovered, "all services healthy")
		h.logger.Info("deployment recovered", "deployment", d.Name)
	default:
		return
	}

	if err := h.store.CreateEvent(ctx, &event); err != nil {
		h.logger.Error("failed to record health event", "deployment", d.Name, "error", err)
	}
}

// unhealthyServices lists the names of services that are not up.
func unhealthyServices(services []domain.ServiceHealth) []string {
	var names []string
	for _, s := range services {
		if s.Status != domain.ServiceUp {
			names = append(names, s.Service)
		}
	}
	return names
}
