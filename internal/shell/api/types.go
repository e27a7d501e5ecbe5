package api

import (
	"time"

	"github.com/artpar/honeymesh/internal/core/domain"
	"github.com/artpar/honeymesh/internal/shell/orchestrator"
)

// =============================================================================
// Request Types
// =============================================================================

// PortsRequest carries the optional host port overrides for a deployment.
// A zero value selects the stock assignments.
type PortsRequest struct {
	SSH           int `json:"ssh,omitempty"`
	Telnet        int `json:"telnet,omitempty"`
	Kibana        int `json:"kibana,omitempty"`
	Elasticsearch int `json:"elasticsearch,omitempty"`
	LogstashBeats int `json:"logstash_beats,omitempty"`
	LogstashMon   int `json:"logstash_monitoring,omitempty"`
}

// CreateDeploymentRequest is the request body for creating a deployment.
type CreateDeploymentRequest struct {
	Name            string       `json:"name"`
	Mode            string       `json:"mode"`
	Template        string       `json:"template,omitempty"`
	TemplateVersion string       `json:"template_version,omitempty"`
	Hostname        string       `json:"hostname,omitempty"`
	Ports           PortsRequest `json:"ports,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// ErrorResponse is the error body for all non-2xx responses.
type ErrorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code"`
	Field         string `json:"field,omitempty"`
	Owner         string `json:"owner,omitempty"`
	SuggestedPort int    `json:"suggested_port,omitempty"`
}

// HealthResponse is the response for the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for the readiness endpoint.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// DeploymentResponse is the API view of a deployment record.
type DeploymentResponse struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	Mode            string                 `json:"mode"`
	Template        string                 `json:"template,omitempty"`
	TemplateVersion string                 `json:"template_version,omitempty"`
	Hostname        string                 `json:"hostname"`
	Status          string                 `json:"status"`
	Ports           domain.PortConfig      `json:"ports"`
	Health          *domain.HealthSnapshot `json:"health,omitempty"`
	ErrorMessage    string                 `json:"error_message,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	StartedAt       *time.Time             `json:"started_at,omitempty"`
	StoppedAt       *time.Time             `json:"stopped_at,omitempty"`
}

// ListDeploymentsResponse is the response for listing deployments.
type ListDeploymentsResponse struct {
	Deployments []DeploymentResponse `json:"deployments"`
	Total       int                  `json:"total"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// StatusResponse combines the registry record with live container states.
type StatusResponse struct {
	Deployment DeploymentResponse            `json:"deployment"`
	Containers []orchestrator.ContainerState `json:"containers"`
}

// EventResponse is one lifecycle event.
type EventResponse struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ListEventsResponse is the response for listing deployment events.
type ListEventsResponse struct {
	Events []EventResponse `json:"events"`
}

// BackupResponse reports where a backup was written.
type BackupResponse struct {
	Path string `json:"path"`
}

// TemplateResponse is the API view of a stored template.
type TemplateResponse struct {
	Name        string                   `json:"name"`
	Slug        string                   `json:"slug"`
	Industry    string                   `json:"industry,omitempty"`
	Description string                   `json:"description,omitempty"`
	Version     string                   `json:"version"`
	Settings    domain.TemplateSettings  `json:"settings"`
	Filesystem  []domain.FSNode          `json:"filesystem,omitempty"`
	Accounts    []domain.Account         `json:"accounts,omitempty"`
	Commands    []domain.CommandOverride `json:"commands,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// ListTemplatesResponse is the response for listing templates.
type ListTemplatesResponse struct {
	Templates []TemplateResponse `json:"templates"`
	Total     int                `json:"total"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}
