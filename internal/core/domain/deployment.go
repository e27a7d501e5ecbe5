package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Deployment Errors
// =============================================================================

var (
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrDeploymentNameEmpty  = errors.New("deployment name is required")
	ErrDeploymentNameFormat = errors.New("deployment name can only contain lowercase letters, digits, and hyphens")
	ErrDeploymentNameLength = errors.New("deployment name must be between 2 and 40 characters")
	ErrTemplateRequired     = errors.New("medium-interaction mode requires a template")
	ErrPortOutOfRange       = errors.New("port must be between 1 and 65535")
	ErrPortDuplicated       = errors.New("the same port is requested more than once")
)

// =============================================================================
// Deployment Mode
// =============================================================================

// DeploymentMode selects the honeypot flavor.
type DeploymentMode string

const (
	// ModeDefault runs the stock emulator with its built-in filesystem.
	ModeDefault DeploymentMode = "default"
	// ModeMedium runs the emulator against a synthesized environment
	// expanded from a template.
	ModeMedium DeploymentMode = "medium"
)

// IsValid checks if the deployment mode is valid.
func (m DeploymentMode) IsValid() bool {
	return m == ModeDefault || m == ModeMedium
}

// =============================================================================
// Deployment Status
// =============================================================================

type DeploymentStatus string

const (
	StatusDraft        DeploymentStatus = "draft"
	StatusValidating   DeploymentStatus = "validating"
	StatusProvisioning DeploymentStatus = "provisioning"
	StatusRunning      DeploymentStatus = "running"
	StatusDegraded     DeploymentStatus = "degraded"
	StatusStopping     DeploymentStatus = "stopping"
	StatusStopped      DeploymentStatus = "stopped"
	StatusRemoved      DeploymentStatus = "removed"
	StatusFailed       DeploymentStatus = "failed"
)

// =============================================================================
// Ports
// =============================================================================

// PortConfig holds the host ports a deployment binds.
// Telnet is optional; zero means the telnet listener is disabled.
type PortConfig struct {
	SSH           int `json:"ssh"`
	Telnet        int `json:"telnet,omitempty"`
	Kibana        int `json:"kibana"`
	Elasticsearch int `json:"elasticsearch"`
	LogstashBeats int `json:"logstash_beats"`
	LogstashMon   int `json:"logstash_monitoring"`
}

// DefaultPorts returns the stock port assignments.
func DefaultPorts() PortConfig {
	return PortConfig{
		SSH:           2222,
		Telnet:        0,
		Kibana:        5601,
		Elasticsearch: 9200,
		LogstashBeats: 5044,
		LogstashMon:   9600,
	}
}

// HostPorts returns every non-zero host port the configuration binds.
func (p PortConfig) HostPorts() []int {
	ports := make([]int, 0, 6)
	for _, port := range []int{p.SSH, p.Telnet, p.Kibana, p.Elasticsearch, p.LogstashBeats, p.LogstashMon} {
		if port != 0 {
			ports = append(ports, port)
		}
	}
	return ports
}

// Validate checks port ranges and intra-config duplicates.
func (p PortConfig) Validate() error {
	seen := make(map[int]bool)
	for _, port := range p.HostPorts() {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%w: %d", ErrPortOutOfRange, port)
		}
		if seen[port] {
			return fmt.Errorf("%w: %d", ErrPortDuplicated, port)
		}
		seen[port] = true
	}
	return nil
}

// =============================================================================
// Paths
// =============================================================================

// PathConfig is the on-disk layout a deployment exclusively owns.
// All paths are absolute and live under the deployment root.
type PathConfig struct {
	Root      string `json:"root"`
	Config    string `json:"config"`
	Honeyfs   string `json:"honeyfs"`
	Log       string `json:"log"`
	TTYLog    string `json:"tty_log"`
	Keys      string `json:"keys"`
	ELK       string `json:"elk"`
	Downloads string `json:"downloads"`
	Backups   string `json:"backups"`
}

// NewPathConfig derives the standard layout for a deployment under dataDir.
func NewPathConfig(dataDir, name string) PathConfig {
	root := filepath.Join(dataDir, name)
	return PathConfig{
		Root:      root,
		Config:    filepath.Join(root, "config"),
		Honeyfs:   filepath.Join(root, "honeyfs"),
		Log:       filepath.Join(root, "log"),
		TTYLog:    filepath.Join(root, "log", "tty"),
		Keys:      filepath.Join(root, "keys"),
		ELK:       filepath.Join(root, "elk"),
		Downloads: filepath.Join(root, "downloads"),
		Backups:   filepath.Join(root, "backups"),
	}
}

// All returns every directory in the layout, parents before children.
func (p PathConfig) All() []string {
	return []string{
		p.Root, p.Config, p.Honeyfs, p.Log, p.TTYLog,
		p.Keys, p.ELK,
		filepath.Join(p.ELK, "logstash"), filepath.Join(p.ELK, "filebeat"),
		p.Downloads, p.Backups,
	}
}

// =============================================================================
// Deployment
// =============================================================================

// Deployment represents one managed honeypot instance and its supporting
// log-analysis services.
type Deployment struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Mode            DeploymentMode   `json:"mode"`
	TemplateName    string           `json:"template_name,omitempty"`
	TemplateVersion string           `json:"template_version,omitempty"`
	Hostname        string           `json:"hostname"`
	Ports           PortConfig       `json:"ports"`
	Paths           PathConfig       `json:"paths"`
	Status          DeploymentStatus `json:"status"`
	Health          *HealthSnapshot  `json:"health,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	StoppedAt       *time.Time       `json:"stopped_at,omitempty"`
}

// NewDeployment builds a Draft deployment from validated inputs.
func NewDeployment(name string, mode DeploymentMode, hostname string, ports PortConfig, dataDir string) (*Deployment, error) {
	if err := ValidateDeploymentName(name); err != nil {
		return nil, err
	}
	if err := ports.Validate(); err != nil {
		return nil, err
	}
	if hostname == "" {
		hostname = "svr04"
	}

	now := time.Now().UTC()
	return &Deployment{
		ID:        uuid.New().String(),
		Name:      name,
		Mode:      mode,
		Hostname:  hostname,
		Ports:     ports,
		Paths:     NewPathConfig(dataDir, name),
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Transition attempts to move the deployment to a new status.
func (d *Deployment) Transition(to DeploymentStatus) error {
	if err := ValidateTransition(d.Status, to); err != nil {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
	}

	d.Status = to
	d.UpdatedAt = time.Now().UTC()

	// Clear stale error when a fresh attempt begins
	if to == StatusValidating || to == StatusProvisioning {
		d.ErrorMessage = ""
	}

	if to == StatusRunning {
		now := time.Now().UTC()
		d.StartedAt = &now
	}
	if to == StatusStopped {
		now := time.Now().UTC()
		d.StoppedAt = &now
	}

	return nil
}

// TransitionToFailed marks the deployment failed with an error message.
// Only validation and provisioning can fail; steady states degrade instead.
func (d *Deployment) TransitionToFailed(errorMessage string) error {
	switch d.Status {
	case StatusValidating, StatusProvisioning:
		d.Status = StatusFailed
		d.ErrorMessage = errorMessage
		d.UpdatedAt = time.Now().UTC()
		return nil
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, StatusFailed)
	}
}

// IsActive reports whether the deployment has running containers.
func (d *Deployment) IsActive() bool {
	return d.Status == StatusRunning || d.Status == StatusDegraded
}

// =============================================================================
// State Machine
// =============================================================================

// validTransitions defines the allowed state transitions.
var validTransitions = map[DeploymentStatus][]DeploymentStatus{
	StatusDraft:        {StatusValidating},
	StatusValidating:   {StatusProvisioning, StatusFailed},
	StatusProvisioning: {StatusRunning, StatusFailed},
	StatusRunning:      {StatusDegraded, StatusStopping, StatusRemoved},
	StatusDegraded:     {StatusRunning, StatusStopping, StatusRemoved},
	StatusStopping:     {StatusStopped},
	StatusStopped:      {StatusValidating, StatusRemoved},
	StatusFailed:       {StatusValidating, StatusRemoved},
	StatusRemoved:      {}, // Terminal state
}

// ValidateTransition checks if a status transition is valid.
func ValidateTransition(from, to DeploymentStatus) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return ErrInvalidTransition
	}

	for _, s := range allowed {
		if s == to {
			return nil
		}
	}

	return ErrInvalidTransition
}

// =============================================================================
// Name Validation
// =============================================================================

var deploymentNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]*$`)

// ValidateDeploymentName validates a user-chosen deployment name.
// The name becomes a container-name prefix and a directory name, so the
// character set is deliberately narrow.
func ValidateDeploymentName(name string) error {
	if name == "" {
		return ErrDeploymentNameEmpty
	}
	if len(name) < 2 || len(name) > 40 {
		return ErrDeploymentNameLength
	}
	if !deploymentNameRegex.MatchString(name) {
		return ErrDeploymentNameFormat
	}
	return nil
}
