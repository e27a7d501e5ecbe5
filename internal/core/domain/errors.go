package domain

import "fmt"

// =============================================================================
// Error Taxonomy
// =============================================================================
//
// ValidationError: bad template or config. User-correctable, never retried.
// ConflictError:   port/name/path collision, surfaced before any side effect.
// RuntimeError:    container engine call failed; transient ones are retried
//                  with backoff, permanent ones surface immediately.
// Health degradation is a status, not an error, and never uses these types.

// ValidationError reports a user-correctable problem with a template or a
// deployment configuration, naming the offending field so the caller can
// fix it without guessing.
type ValidationError struct {
	Entity  string // "template", "deployment"
	Field   string // e.g. "accounts[alice].home", "ports.ssh"
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s %s: %s", e.Entity, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Entity, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(entity, field, message string, err error) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Message: message, Err: err}
}

// =============================================================================
// Conflict Errors
// =============================================================================

// ConflictKind classifies a resource collision.
type ConflictKind string

const (
	ConflictPortInUseByHost       ConflictKind = "port-in-use-by-host"
	ConflictPortInUseByDeployment ConflictKind = "port-in-use-by-other-deployment"
	ConflictNameRegistered        ConflictKind = "name-already-registered"
	ConflictPathCollision         ConflictKind = "filesystem-path-collision"
)

// ConflictError reports that a candidate configuration collides with host
// state or another deployment. SuggestedPort is set for port conflicts when
// a nearby free port was found.
type ConflictError struct {
	Kind          ConflictKind
	Value         string // the colliding port, name, or path
	Owner         string // deployment owning the resource, if any
	SuggestedPort int
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Value)
	if e.Owner != "" {
		msg += fmt.Sprintf(" (held by deployment %q)", e.Owner)
	}
	if e.SuggestedPort != 0 {
		msg += fmt.Sprintf(", try port %d", e.SuggestedPort)
	}
	return msg
}

// NewConflictError creates a new ConflictError.
func NewConflictError(kind ConflictKind, value, owner string) *ConflictError {
	return &ConflictError{Kind: kind, Value: value, Owner: owner}
}

// =============================================================================
// Runtime Errors
// =============================================================================

// RuntimeError wraps a container engine failure.
type RuntimeError struct {
	Op        string
	Service   string
	Message   string
	Transient bool
	Err       error
}

func (e *RuntimeError) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Service, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError.
func NewRuntimeError(op, service, message string, transient bool, err error) *RuntimeError {
	return &RuntimeError{Op: op, Service: service, Message: message, Transient: transient, Err: err}
}
