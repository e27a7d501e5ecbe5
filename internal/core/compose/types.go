package compose

// =============================================================================
// ParsedSpec - Main Output Type
// =============================================================================

// ParsedSpec represents a fully parsed Compose manifest.
// This is the HoneyMesh-specific representation, decoupled from compose-go types.
type ParsedSpec struct {
	Services []Service `json:"services"`
	Networks []Network `json:"networks,omitempty"`
}

// =============================================================================
// Service Types
// =============================================================================

// Service represents a single service definition.
type Service struct {
	Name          string            `json:"name"`
	Image         string            `json:"image"`
	ContainerName string            `json:"container_name,omitempty"`
	Hostname      string            `json:"hostname,omitempty"`
	Command       []string          `json:"command,omitempty"`
	Ports         []Port            `json:"ports,omitempty"`
	Environment   map[string]string `json:"environment,omitempty"`
	Volumes       []VolumeMount     `json:"volumes,omitempty"`
	Networks      []string          `json:"networks,omitempty"`
	DependsOn     []string          `json:"depends_on,omitempty"`
	Restart       RestartPolicy     `json:"restart,omitempty"`
	Labels        map[string]string `json:"labels,omitempty"`
}

// Port represents a port mapping.
type Port struct {
	Target    uint32 `json:"target"`              // Container port
	Published uint32 `json:"published,omitempty"` // Host port (0 = dynamic)
	Protocol  string `json:"protocol,omitempty"`  // tcp, udp
	HostIP    string `json:"host_ip,omitempty"`   // Bind IP
}

// VolumeMount represents a bind mount in a service.
// Every mount in a generated manifest is a bind into the deployment's
// directory tree; named volumes never appear.
type VolumeMount struct {
	Source   string `json:"source"` // Host path
	Target   string `json:"target"` // Container path
	ReadOnly bool   `json:"readonly"`
}

// RestartPolicy represents the restart policy.
type RestartPolicy string

const (
	RestartNo            RestartPolicy = "no"
	RestartAlways        RestartPolicy = "always"
	RestartOnFailure     RestartPolicy = "on-failure"
	RestartUnlessStopped RestartPolicy = "unless-stopped"
)

// =============================================================================
// Network Types
// =============================================================================

// Network represents a network definition.
type Network struct {
	Name     string            `json:"name"`
	Driver   string            `json:"driver,omitempty"`
	External bool              `json:"external"`
	Internal bool              `json:"internal"`
	Labels   map[string]string `json:"labels,omitempty"`
}
