// Package monitoring provides pure functions for deployment health logic.
// This is part of the Functional Core - no I/O happens here; the workers
// package feeds probe outcomes in and applies the resulting statuses.
package monitoring

import (
	"fmt"
	"time"

	"github.com/artpar/honeymesh/internal/core/domain"
)

// =============================================================================
// Consecutive-Miss Classification (Pure Functions)
// =============================================================================

// StatusForMisses maps a consecutive-miss count to a service status.
// Zero misses is up, 1..threshold-1 is degraded, threshold or more is down.
// There is no flapping suppression beyond this counter: a single success
// resets the count to zero regardless of history.
//
// Example:
//
//	StatusForMisses(0, 3) // up
//	StatusForMisses(2, 3) // degraded
//	StatusForMisses(3, 3) // down
func StatusForMisses(misses, threshold int) domain.ServiceStatus {
	if threshold < 1 {
		threshold = 1
	}
	switch {
	case misses <= 0:
		return domain.ServiceUp
	case misses < threshold:
		return domain.ServiceDegraded
	default:
		return domain.ServiceDown
	}
}

// NextMisses advances the consecutive-miss counter for one probe outcome.
func NextMisses(previous int, probeOK bool) int {
	if probeOK {
		return 0
	}
	return previous + 1
}

// =============================================================================
// Aggregation (Pure Functions)
// =============================================================================

// Aggregate determines overall deployment health from per-service statuses:
// down if any service is down, degraded if any is degraded and none down,
// otherwise up. An empty snapshot is unknown.
func Aggregate(services []domain.ServiceHealth) domain.ServiceStatus {
	if len(services) == 0 {
		return domain.ServiceUnknown
	}

	anyDegraded := false
	for _, s := range services {
		switch s.Status {
		case domain.ServiceDown:
			return domain.ServiceDown
		case domain.ServiceDegraded, domain.ServiceUnknown:
			anyDegraded = true
		}
	}

	if anyDegraded {
		return domain.ServiceDegraded
	}
	return domain.ServiceUp
}

// DeploymentStatusFor maps an aggregated health status onto the deployment
// state machine. Misses below the threshold only mark the service degraded
// inside the snapshot; the deployment itself stays Running until a service
// exhausts its grace period and the aggregate turns down. A clean snapshot
// recovers a Degraded deployment. Returns the target status and whether a
// transition is needed.
//
// Example (threshold 3):
//
//	DeploymentStatusFor(StatusRunning, ServiceDegraded)  // Running, no change
//	DeploymentStatusFor(StatusRunning, ServiceDown)      // Degraded
//	DeploymentStatusFor(StatusDegraded, ServiceUp)       // Running
func DeploymentStatusFor(current domain.DeploymentStatus, health domain.ServiceStatus) (domain.DeploymentStatus, bool) {
	switch current {
	case domain.StatusRunning:
		if health == domain.ServiceDown {
			return domain.StatusDegraded, true
		}
	case domain.StatusDegraded:
		if health == domain.ServiceUp {
			return domain.StatusRunning, true
		}
	}
	return current, false
}

// =============================================================================
// Escalation (Pure Functions)
// =============================================================================

// UnhealthySince carries forward the moment a deployment's aggregate first
// left up. A fully healthy snapshot clears it; an unhealthy one keeps the
// previous mark, or stamps now when this is the first bad cycle.
func UnhealthySince(previous *domain.HealthSnapshot, aggregate domain.ServiceStatus, now time.Time) *time.Time {
	if aggregate == domain.ServiceUp {
		return nil
	}
	if previous != nil && previous.DegradedSince != nil {
		return previous.DegradedSince
	}
	t := now
	return &t
}

// ShouldEscalate reports whether a deployment unhealthy since the given
// moment has crossed the escalation threshold and has not been reported yet.
// Escalation is report-only: the deployment stays Degraded for manual
// intervention, it is never torn down automatically.
func ShouldEscalate(since *time.Time, alreadyEscalated bool, now time.Time, threshold time.Duration) bool {
	if since == nil || alreadyEscalated || threshold <= 0 {
		return false
	}
	return now.Sub(*since) >= threshold
}

// =============================================================================
// Probe Plans (Pure Functions)
// =============================================================================

// ProbeKind selects the readiness check transport for a service.
type ProbeKind string

const (
	// ProbeHTTP requires a 2xx from the given URL.
	ProbeHTTP ProbeKind = "http"
	// ProbeTCP requires a successful connect to the given port.
	ProbeTCP ProbeKind = "tcp"
	// ProbeContainer requires only that the container is running.
	ProbeContainer ProbeKind = "container"
)

// ProbeSpec describes the readiness check for one service.
type ProbeSpec struct {
	Service string
	Kind    ProbeKind
	Port    int    // for tcp probes
	URL     string // for http probes
}

// ProbePlan returns the readiness checks for a deployment, one per service.
// Every probe also implies a container-running liveness check; the specs
// here are the lightweight readiness layer on top.
func ProbePlan(d *domain.Deployment) []ProbeSpec {
	return []ProbeSpec{
		{
			Service: domain.ServiceElasticsearch,
			Kind:    ProbeHTTP,
			URL:     fmt.Sprintf("http://localhost:%d/_cluster/health", d.Ports.Elasticsearch),
		},
		{
			Service: domain.ServiceLogstash,
			Kind:    ProbeHTTP,
			URL:     fmt.Sprintf("http://localhost:%d/_node/stats", d.Ports.LogstashMon),
		},
		{
			Service: domain.ServiceKibana,
			Kind:    ProbeHTTP,
			URL:     fmt.Sprintf("http://localhost:%d/api/status", d.Ports.Kibana),
		},
		{
			Service: domain.ServiceFilebeat,
			Kind:    ProbeContainer,
		},
		{
			Service: domain.ServiceCowrie,
			Kind:    ProbeTCP,
			Port:    d.Ports.SSH,
		},
	}
}
