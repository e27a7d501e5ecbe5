package deployment

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/artpar/honeymesh/internal/core/domain"
)

// =============================================================================
// Conflict Checks (Pure Functions)
// =============================================================================

// These are the registry-side half of the conflict checker. Host port
// availability is I/O and lives in the shell; everything that can be
// answered from registry records alone is answered here.

// FindNameConflict reports whether the candidate name is already registered.
// Removed deployments do not hold their name.
func FindNameConflict(name string, existing []domain.Deployment) *domain.ConflictError {
	for _, d := range existing {
		if d.Status == domain.StatusRemoved {
			continue
		}
		if d.Name == name {
			return domain.NewConflictError(domain.ConflictNameRegistered, name, d.Name)
		}
	}
	return nil
}

// FindPortConflict reports the first candidate port held by another
// deployment. The candidate's own record (matched by name) is skipped so
// a stopped deployment can restart on its own ports.
func FindPortConflict(candidateName string, ports domain.PortConfig, existing []domain.Deployment) *domain.ConflictError {
	owned := make(map[int]string)
	for _, d := range existing {
		if d.Name == candidateName || d.Status == domain.StatusRemoved {
			continue
		}
		for _, p := range d.Ports.HostPorts() {
			owned[p] = d.Name
		}
	}

	for _, p := range ports.HostPorts() {
		if owner, taken := owned[p]; taken {
			return domain.NewConflictError(domain.ConflictPortInUseByDeployment, strconv.Itoa(p), owner)
		}
	}
	return nil
}

// FindPathCollision reports whether the candidate filesystem root equals,
// contains, or is contained by another deployment's root.
func FindPathCollision(candidateName, candidateRoot string, existing []domain.Deployment) *domain.ConflictError {
	for _, d := range existing {
		if d.Name == candidateName || d.Status == domain.StatusRemoved {
			continue
		}
		if pathsOverlap(candidateRoot, d.Paths.Root) {
			return domain.NewConflictError(domain.ConflictPathCollision, candidateRoot, d.Name)
		}
	}
	return nil
}

// pathsOverlap reports whether one cleaned path is a prefix of the other
// at a path-component boundary.
func pathsOverlap(a, b string) bool {
	a = filepath.Clean(a)
	b = filepath.Clean(b)
	if a == b {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(a, b+sep) || strings.HasPrefix(b, a+sep)
}
