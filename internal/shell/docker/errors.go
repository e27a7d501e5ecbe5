package docker

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Container errors
	ErrContainerNotFound       = errors.New("container not found")
	ErrContainerAlreadyExists  = errors.New("container already exists")
	ErrContainerNotRunning     = errors.New("container is not running")
	ErrContainerAlreadyRunning = errors.New("container is already running")

	// Network errors
	ErrNetworkNotFound      = errors.New("network not found")
	ErrNetworkAlreadyExists = errors.New("network already exists")
	ErrNetworkInUse         = errors.New("network has active endpoints")

	// Image errors
	ErrImageNotFound   = errors.New("image not found")
	ErrImagePullFailed = errors.New("image pull failed")

	// Connection errors
	ErrPortAlreadyAllocated = errors.New("port is already allocated")
	ErrConnectionFailed     = errors.New("docker connection failed")
	ErrTimeout              = errors.New("operation timed out")
)

// DockerError wraps errors with additional context.
type DockerError struct {
	Op      string // Operation that failed
	Entity  string // Entity type (container, network, image)
	ID      string // Entity ID if applicable
	Message string
	Err     error
}

func (e *DockerError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DockerError) Unwrap() error {
	return e.Err
}

// NewDockerError creates a new DockerError.
func NewDockerError(op, entity, id, message string, err error) *DockerError {
	return &DockerError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}

// IsTransient reports whether an error is worth retrying: daemon
// connectivity problems, timeouts, and registry pull hiccups. Definitive
// failures (image does not exist, port already bound, name conflicts) are
// not transient — retrying them cannot succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionFailed) || errors.Is(err, ErrTimeout) {
		return true
	}
	if errors.Is(err, ErrImageNotFound) || errors.Is(err, ErrPortAlreadyAllocated) ||
		errors.Is(err, ErrContainerAlreadyExists) || errors.Is(err, ErrNetworkAlreadyExists) {
		return false
	}
	if errors.Is(err, ErrImagePullFailed) {
		return true
	}

	msg := err.Error()
	for _, marker := range []string{
		"timeout", "deadline exceeded", "connection refused", "connection reset",
		"temporary failure", "EOF", "i/o timeout", "service unavailable",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
