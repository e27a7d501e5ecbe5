package compose

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Parser Functions
// =============================================================================

// ParseManifest parses Compose YAML into a ParsedSpec.
// This is a pure function - no I/O, no side effects.
// Input: raw YAML string
// Output: ParsedSpec struct or error
//
// The orchestrator always parses the manifest it generated before acting on
// it, so a bug in the generator surfaces as a ParseError instead of a
// half-provisioned stack.
func ParseManifest(yamlContent string) (*ParsedSpec, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	project, err := loadProject(yamlContent)
	if err != nil {
		return nil, err
	}

	if err := checkUnsupportedFeatures(project); err != nil {
		return nil, err
	}

	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	spec := &ParsedSpec{
		Services: make([]Service, 0, len(project.Services)),
		Networks: make([]Network, 0, len(project.Networks)),
	}

	for _, svc := range project.Services {
		converted, err := convertService(svc)
		if err != nil {
			return nil, err
		}
		spec.Services = append(spec.Services, converted)
	}

	if err := detectCircularDependencies(spec.Services); err != nil {
		return nil, err
	}

	if err := validatePorts(spec.Services); err != nil {
		return nil, err
	}

	for name, net := range project.Networks {
		spec.Networks = append(spec.Networks, convertNetwork(name, net))
	}

	return spec, nil
}

// loadProject loads a compose project using compose-go
func loadProject(yamlContent string) (*types.Project, error) {
	// Parse YAML into a map first
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(yamlContent),
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("honeymesh", false)
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		// Don't resolve paths since we're in-memory
		opts.SkipNormalization = true
		opts.SkipExtends = true // Don't try to load external files
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "dependency cycle detected") {
			return nil, NewParseError("", "circular dependency detected", ErrCircularDependency)
		}
		if strings.Contains(errStr, "image") && strings.Contains(errStr, "build") {
			return nil, NewParseError("", "service must have an image", ErrServiceNoImage)
		}
		return nil, NewParseError("", errStr, ErrInvalidYAML)
	}

	return project, nil
}

// checkUnsupportedFeatures checks for features we don't support.
// Generated manifests never contain these; rejecting them here keeps the
// runtime path free of partially-handled constructs.
func checkUnsupportedFeatures(project *types.Project) error {
	if len(project.Secrets) > 0 {
		return NewParseError("secrets", "secrets are not supported", ErrUnsupportedFeature)
	}
	if len(project.Configs) > 0 {
		return NewParseError("configs", "configs are not supported", ErrUnsupportedFeature)
	}
	if len(project.Volumes) > 0 {
		return NewParseError("volumes", "named volumes are not supported; use bind mounts", ErrUnsupportedFeature)
	}
	for _, svc := range project.Services {
		if svc.Build != nil {
			return NewParseError("services."+svc.Name+".build", "image builds are not supported", ErrUnsupportedFeature)
		}
		if svc.Extends != nil && svc.Extends.File != "" {
			return NewParseError("services."+svc.Name+".extends", "extends is not supported", ErrUnsupportedFeature)
		}
	}

	return nil
}

// convertService converts a compose-go service to our Service type
func convertService(svc types.ServiceConfig) (Service, error) {
	service := Service{
		Name:          svc.Name,
		Image:         svc.Image,
		ContainerName: svc.ContainerName,
		Hostname:      svc.Hostname,
		Command:       svc.Command,
		Environment:   make(map[string]string),
		Labels:        make(map[string]string),
		Networks:      make([]string, 0),
		DependsOn:     make([]string, 0),
	}

	if service.Image == "" {
		return Service{}, NewParseError("services."+svc.Name, "service must have an image", ErrServiceNoImage)
	}

	// Ports
	for _, p := range svc.Ports {
		var published uint32
		if p.Published != "" {
			pub, err := strconv.ParseUint(p.Published, 10, 32)
			if err == nil {
				published = uint32(pub)
			}
		}
		service.Ports = append(service.Ports, Port{
			Target:    p.Target,
			Published: published,
			Protocol:  p.Protocol,
			HostIP:    p.HostIP,
		})
	}

	// Environment
	for k, v := range svc.Environment {
		if v != nil {
			service.Environment[k] = *v
		}
	}

	// Volumes - bind mounts only
	for _, v := range svc.Volumes {
		if v.Type != "" && v.Type != "bind" {
			return Service{}, NewParseError(
				"services."+svc.Name+".volumes",
				fmt.Sprintf("mount type %q is not supported; use bind mounts", v.Type),
				ErrUnsupportedFeature,
			)
		}
		service.Volumes = append(service.Volumes, VolumeMount{
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}

	// Networks
	for net := range svc.Networks {
		service.Networks = append(service.Networks, net)
	}

	// DependsOn
	for dep := range svc.DependsOn {
		service.DependsOn = append(service.DependsOn, dep)
	}

	service.Restart = RestartPolicy(svc.Restart)

	for k, v := range svc.Labels {
		service.Labels[k] = v
	}

	return service, nil
}

// convertNetwork converts a compose-go network to our Network type
func convertNetwork(key string, net types.NetworkConfig) Network {
	name := net.Name
	if name == "" {
		name = key
	}
	return Network{
		Name:     name,
		Driver:   net.Driver,
		External: bool(net.External),
		Internal: net.Internal,
		Labels:   net.Labels,
	}
}

// detectCircularDependencies detects circular dependencies in service dependencies
func detectCircularDependencies(services []Service) error {
	// Build adjacency list
	deps := make(map[string][]string)
	for _, svc := range services {
		deps[svc.Name] = svc.DependsOn
	}

	// Track visited and recursion stack for DFS
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var hasCycle func(node string) bool
	hasCycle = func(node string) bool {
		visited[node] = true
		recStack[node] = true

		for _, dep := range deps[node] {
			// Self-reference
			if dep == node {
				return true
			}
			if !visited[dep] {
				if hasCycle(dep) {
					return true
				}
			} else if recStack[dep] {
				return true
			}
		}

		recStack[node] = false
		return false
	}

	for _, svc := range services {
		if !visited[svc.Name] {
			if hasCycle(svc.Name) {
				return ErrCircularDependency
			}
		}
	}

	return nil
}

// validatePorts validates all port configurations
func validatePorts(services []Service) error {
	for _, svc := range services {
		for i, port := range svc.Ports {
			field := fmt.Sprintf("services.%s.ports[%d]", svc.Name, i)
			if port.Target == 0 {
				return NewParseError(field, "target port cannot be 0", ErrServiceInvalidPort)
			}
			if port.Target > 65535 {
				return NewParseError(field, "target port must be <= 65535", ErrServiceInvalidPort)
			}
			if port.Published > 65535 {
				return NewParseError(field, "published port must be <= 65535", ErrServiceInvalidPort)
			}
		}
	}
	return nil
}
