// Package orchestrator coordinates deployment lifecycle operations: it owns
// the per-deployment locks and drives the registry, the template engine, and
// the container runtime through each state transition.
package orchestrator

import (
	"context"
	"fmt"
	"net"
	"strconv"

	coredeployment "github.com/artpar/honeymesh/internal/core/deployment"
	"github.com/artpar/honeymesh/internal/core/domain"
	"github.com/artpar/honeymesh/internal/shell/store"
)

// suggestSpan bounds the upward scan for a free replacement port.
const suggestSpan = 100

// probeHostPort reports whether a host TCP port can be bound right now.
// Binding and immediately releasing is the only portable availability check.
func probeHostPort(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

// suggestPort scans upward from a conflicting port for one that is free on
// the host and unclaimed in the registry. Returns 0 when nothing nearby is
// available.
func (m *Manager) suggestPort(from int, registryOwned map[int]bool) int {
	for p := from + 1; p <= from+suggestSpan && p <= 65535; p++ {
		if registryOwned[p] {
			continue
		}
		if m.portFree(p) {
			return p
		}
	}
	return 0
}

// checkConflicts runs the full conflict check for a candidate deployment:
// registry name/port/path collisions first, then live host port probes.
// checkName is false when restarting an existing deployment, which already
// holds its name.
func (m *Manager) checkConflicts(ctx context.Context, candidate *domain.Deployment, checkName bool) error {
	existing, err := m.store.ListDeployments(ctx, store.ListOptions{Limit: 1000})
	if err != nil {
		return fmt.Errorf("failed to list deployments for conflict check: %w", err)
	}

	if checkName {
		if conflict := coredeployment.FindNameConflict(candidate.Name, existing); conflict != nil {
			return conflict
		}
	}
	if conflict := coredeployment.FindPortConflict(candidate.Name, candidate.Ports, existing); conflict != nil {
		return conflict
	}
	if conflict := coredeployment.FindPathCollision(candidate.Name, candidate.Paths.Root, existing); conflict != nil {
		return conflict
	}

	// Registry is clean; now ask the host. Ports bound by this deployment's
	// own stopped containers are free by definition, anything else bound is
	// a host conflict.
	registryOwned := make(map[int]bool)
	for _, d := range existing {
		if d.Status == domain.StatusRemoved {
			continue
		}
		for _, p := range d.Ports.HostPorts() {
			registryOwned[p] = true
		}
	}

	for _, p := range candidate.Ports.HostPorts() {
		if m.portFree(p) {
			continue
		}
		conflict := domain.NewConflictError(domain.ConflictPortInUseByHost, strconv.Itoa(p), "")
		conflict.SuggestedPort = m.suggestPort(p, registryOwned)
		return conflict
	}

	return nil
}
