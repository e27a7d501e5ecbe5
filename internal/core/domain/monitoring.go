// Package domain contains the core domain types for honeymesh.
package domain

import "time"

// =============================================================================
// Health Types
// =============================================================================

// ServiceStatus represents the health of a single service or a deployment.
type ServiceStatus string

const (
	ServiceUp       ServiceStatus = "up"
	ServiceDegraded ServiceStatus = "degraded"
	ServiceDown     ServiceStatus = "down"
	ServiceUnknown  ServiceStatus = "unknown"
)

// ServiceHealth is the probe result for one service, including the
// consecutive-miss counter that drives degraded/down classification.
type ServiceHealth struct {
	Service       string        `json:"service"`
	Status        ServiceStatus `json:"status"`
	Misses        int           `json:"misses"`
	ContainerID   string        `json:"container_id,omitempty"`
	ContainerUp   bool          `json:"container_up"`
	ProbeDetail   string        `json:"probe_detail,omitempty"`
	LastCheckedAt time.Time     `json:"last_checked_at"`
}

// HealthSnapshot is the aggregated health of a deployment.
// Ephemeral: recomputed each poll cycle, only the most recent value kept.
// DegradedSince and Escalated survive across cycles while the deployment
// stays unhealthy, so prolonged degradation can be reported exactly once.
type HealthSnapshot struct {
	Status        ServiceStatus   `json:"status"`
	Services      []ServiceHealth `json:"services"`
	CheckedAt     time.Time       `json:"checked_at"`
	DegradedSince *time.Time      `json:"degraded_since,omitempty"`
	Escalated     bool            `json:"escalated,omitempty"`
}

// ServiceFor returns the entry for a named service, or nil.
func (s *HealthSnapshot) ServiceFor(name string) *ServiceHealth {
	if s == nil {
		return nil
	}
	for i := range s.Services {
		if s.Services[i].Service == name {
			return &s.Services[i]
		}
	}
	return nil
}

// =============================================================================
// Event Types (Deployment Lifecycle)
// =============================================================================

// EventType represents the type of deployment lifecycle event.
type EventType string

const (
	EventCreated       EventType = "created"
	EventStarted       EventType = "started"
	EventStopped       EventType = "stopped"
	EventRestarted     EventType = "restarted"
	EventRemoved       EventType = "removed"
	EventBackedUp      EventType = "backed_up"
	EventDegraded      EventType = "degraded"
	EventRecovered     EventType = "recovered"
	EventEscalated     EventType = "escalated"
	EventProvisionFail EventType = "provision_failed"
)

// Event records one lifecycle transition for audit display.
type Event struct {
	ID         int       `json:"-"`
	Deployment string    `json:"deployment"`
	Type       EventType `json:"type"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewEvent creates a lifecycle event stamped with the current time.
func NewEvent(deployment string, eventType EventType, message string) Event {
	return Event{
		Deployment: deployment,
		Type:       eventType,
		Message:    message,
		CreatedAt:  time.Now().UTC(),
	}
}
