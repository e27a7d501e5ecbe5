package deployment

import "github.com/artpar/honeymesh/internal/core/domain"

// =============================================================================
// Deployment State Transition Planning
// =============================================================================

// StartPath represents the result of planning a deployment start operation.
// It contains the sequence of state transitions needed to start a deployment.
type StartPath struct {
	// Valid indicates whether the start operation can proceed.
	Valid bool

	// AlreadyStarted is set when the deployment is in the target state;
	// the operation is a no-op rather than an error.
	AlreadyStarted bool

	// Transitions is the sequence of states to transition through.
	// Empty if Valid is false.
	Transitions []domain.DeploymentStatus

	// ErrorReason contains the reason why the start is not allowed.
	// Empty if Valid is true.
	ErrorReason string
}

// DetermineStartPath determines the sequence of state transitions needed
// to start a deployment from its current status.
//
// Every start path goes back through validation: host ports and registry
// state can change while a deployment sits stopped or failed.
//
// Example:
//
//	path := DetermineStartPath(deployment.Status)
//	if !path.Valid {
//	    return errors.New(path.ErrorReason)
//	}
//	for _, status := range path.Transitions {
//	    deployment.Transition(status)
//	}
func DetermineStartPath(currentStatus domain.DeploymentStatus) StartPath {
	switch currentStatus {
	case domain.StatusDraft, domain.StatusStopped, domain.StatusFailed:
		return StartPath{
			Valid:       true,
			Transitions: []domain.DeploymentStatus{domain.StatusValidating, domain.StatusProvisioning},
		}

	case domain.StatusRunning, domain.StatusDegraded:
		return StartPath{
			Valid:          true,
			AlreadyStarted: true,
		}

	case domain.StatusValidating, domain.StatusProvisioning:
		return StartPath{
			Valid:       false,
			ErrorReason: "deployment start is already in progress",
		}

	case domain.StatusStopping:
		return StartPath{
			Valid:       false,
			ErrorReason: "deployment is currently stopping",
		}

	case domain.StatusRemoved:
		return StartPath{
			Valid:       false,
			ErrorReason: "cannot start removed deployment",
		}

	default:
		return StartPath{
			Valid:       false,
			ErrorReason: "cannot start deployment in current state",
		}
	}
}

// StopPath represents the result of planning a stop operation.
type StopPath struct {
	Valid          bool
	AlreadyStopped bool
	ErrorReason    string
}

// DetermineStopPath checks if a deployment can be stopped from its current
// status. Stopping an already-stopped deployment is a no-op, not an error.
func DetermineStopPath(currentStatus domain.DeploymentStatus) StopPath {
	switch currentStatus {
	case domain.StatusRunning, domain.StatusDegraded:
		return StopPath{Valid: true}
	case domain.StatusStopped:
		return StopPath{Valid: true, AlreadyStopped: true}
	case domain.StatusStopping:
		return StopPath{Valid: false, ErrorReason: "deployment is already stopping"}
	case domain.StatusRemoved:
		return StopPath{Valid: false, ErrorReason: "cannot stop removed deployment"}
	default:
		return StopPath{Valid: false, ErrorReason: "deployment is not running"}
	}
}
