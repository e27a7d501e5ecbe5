package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/artpar/honeymesh/internal/core/compose"
	coredeployment "github.com/artpar/honeymesh/internal/core/deployment"
	"github.com/artpar/honeymesh/internal/core/domain"
	"github.com/artpar/honeymesh/internal/shell/docker"
)

// stopTimeout is how long a container gets to shut down cleanly.
const stopTimeout = 10 * time.Second

// =============================================================================
// Provisioning
// =============================================================================

// provision materializes everything a deployment needs and starts its
// containers in dependency order. It is safe to call for a stopped
// deployment: the directory tree and containers from the previous run are
// reused. Any failure rolls back the containers created in this call and,
// for first-time provisioning, the directory tree.
func (m *Manager) provision(ctx context.Context, d *domain.Deployment, tpl *domain.Template) error {
	firstRun := false
	if _, err := os.Stat(d.Paths.Root); os.IsNotExist(err) {
		if err := m.engine.Expand(d, tpl); err != nil {
			return domain.NewRuntimeError("expand", "", err.Error(), false, err)
		}
		firstRun = true
	}

	cleanupTree := func() {
		if firstRun {
			if err := m.engine.Remove(d, false); err != nil {
				m.logger.Error("rollback: failed to remove directory tree", "deployment", d.Name, "error", err)
			}
		}
	}

	// Generate the manifest and parse it back: the parser is the cheapest
	// end-to-end check that the generated document is a valid stack.
	manifest, err := compose.GenerateManifest(d)
	if err != nil {
		cleanupTree()
		return err
	}
	parsed, err := compose.ParseManifest(manifest)
	if err != nil {
		cleanupTree()
		return fmt.Errorf("generated manifest failed validation: %w", err)
	}
	manifestPath := filepath.Join(d.Paths.Root, compose.ManifestFileName)
	if err := os.WriteFile(manifestPath, []byte(manifest), 0o644); err != nil {
		cleanupTree()
		return domain.NewRuntimeError("write manifest", "", err.Error(), false, err)
	}

	networkName := domain.NetworkName(d.Name)
	if err := m.ensureNetwork(ctx, d, networkName); err != nil {
		cleanupTree()
		return err
	}

	if err := m.pullImages(ctx, parsed.Services); err != nil {
		cleanupTree()
		return err
	}

	// Containers left over from a previous run are reused, not recreated.
	existingByService := make(map[string]docker.ContainerInfo)
	for _, c := range m.listContainers(d) {
		if svc, ok := c.Labels[compose.LabelService]; ok {
			existingByService[svc] = c
		}
	}

	created := make(map[string]string) // service -> container ID, this call only
	rollback := func() {
		for svc, id := range created {
			timeout := stopTimeout
			_ = m.docker.StopContainer(id, &timeout)
			if err := m.docker.RemoveContainer(id, docker.RemoveOptions{Force: true}); err != nil {
				m.logger.Error("rollback: failed to remove container", "service", svc, "error", err)
			}
		}
		if len(existingByService) == 0 {
			if err := m.docker.RemoveNetwork(networkName); err != nil && !errors.Is(err, docker.ErrNetworkNotFound) {
				m.logger.Error("rollback: failed to remove network", "network", networkName, "error", err)
			}
		}
		cleanupTree()
	}

	for _, svc := range coredeployment.StartOrder(parsed.Services) {
		var containerID string

		if existing, found := existingByService[svc.Name]; found {
			containerID = existing.ID
		} else {
			spec := buildContainerSpec(d, svc, networkName)
			err := docker.WithRetry(ctx, "create container "+svc.Name, func() error {
				id, cerr := m.docker.CreateContainer(spec)
				if cerr == nil {
					containerID = id
				}
				return cerr
			})
			if err != nil {
				rollback()
				return domain.NewRuntimeError("create container", svc.Name, err.Error(), docker.IsTransient(err), err)
			}
			created[svc.Name] = containerID
		}

		err := docker.WithRetry(ctx, "start container "+svc.Name, func() error {
			serr := m.docker.StartContainer(containerID)
			if errors.Is(serr, docker.ErrContainerAlreadyRunning) {
				return nil
			}
			return serr
		})
		if err != nil {
			rollback()
			return domain.NewRuntimeError("start container", svc.Name, err.Error(), docker.IsTransient(err), err)
		}

		m.logger.Debug("service started", "deployment", d.Name, "service", svc.Name)
	}

	return nil
}

// ensureNetwork creates the deployment network, tolerating one that already
// exists from a previous run.
func (m *Manager) ensureNetwork(ctx context.Context, d *domain.Deployment, networkName string) error {
	err := docker.WithRetry(ctx, "create network", func() error {
		_, cerr := m.docker.CreateNetwork(docker.NetworkSpec{
			Name:   networkName,
			Driver: "bridge",
			Labels: map[string]string{
				compose.LabelManaged:    "true",
				compose.LabelDeployment: d.Name,
			},
		})
		if errors.Is(cerr, docker.ErrNetworkAlreadyExists) {
			return nil
		}
		return cerr
	})
	if err != nil {
		return domain.NewRuntimeError("create network", "", err.Error(), docker.IsTransient(err), err)
	}
	return nil
}

// pullImages fetches any stack image not present locally.
func (m *Manager) pullImages(ctx context.Context, services []compose.Service) error {
	for _, svc := range services {
		exists, err := m.docker.ImageExists(svc.Image)
		if err != nil {
			return domain.NewRuntimeError("inspect image", svc.Name, err.Error(), docker.IsTransient(err), err)
		}
		if exists {
			continue
		}

		m.logger.Info("pulling image", "image", svc.Image)
		err = docker.WithRetry(ctx, "pull "+svc.Image, func() error {
			return m.docker.PullImage(svc.Image, docker.PullOptions{})
		})
		if err != nil {
			return domain.NewRuntimeError("pull image", svc.Name, err.Error(), docker.IsTransient(err), err)
		}
	}
	return nil
}

// buildContainerSpec converts a parsed manifest service into a runtime spec.
// The manifest already carries the deployment labels and container names;
// the service-name network alias is added so containers resolve each other
// the way they would under compose.
func buildContainerSpec(d *domain.Deployment, svc compose.Service, networkName string) docker.ContainerSpec {
	spec := docker.ContainerSpec{
		Name:     svc.ContainerName,
		Image:    svc.Image,
		Hostname: svc.Hostname,
		Command:  svc.Command,
		Env:      svc.Environment,
		Labels:   svc.Labels,
		Networks: []string{networkName},
		NetworkAliases: map[string][]string{
			networkName: {svc.Name},
		},
		RestartPolicy: docker.RestartPolicy{Name: string(svc.Restart)},
	}
	if spec.Name == "" {
		spec.Name = domain.ContainerName(d.Name, svc.Name)
	}

	for _, p := range svc.Ports {
		spec.Ports = append(spec.Ports, docker.PortBinding{
			ContainerPort: int(p.Target),
			HostPort:      int(p.Published),
			Protocol:      p.Protocol,
			HostIP:        p.HostIP,
		})
	}

	for _, v := range svc.Volumes {
		spec.Volumes = append(spec.Volumes, docker.VolumeMount{
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}

	return spec
}

// =============================================================================
// Container Helpers
// =============================================================================

// listContainers returns every container labeled with the deployment name,
// running or not.
func (m *Manager) listContainers(d *domain.Deployment) []docker.ContainerInfo {
	containers, err := m.docker.ListContainers(docker.ListOptions{
		All: true,
		Filters: map[string]string{
			"label": fmt.Sprintf("%s=%s", compose.LabelDeployment, d.Name),
		},
	})
	if err != nil {
		m.logger.Error("failed to list containers", "deployment", d.Name, "error", err)
		return nil
	}
	return containers
}

// stopContainers stops every running container of a deployment. Failures
// are logged, not returned: a stop should get as far as it can.
func (m *Manager) stopContainers(d *domain.Deployment) {
	for _, c := range m.listContainers(d) {
		if c.Status != docker.ContainerStatusRunning {
			continue
		}
		timeout := stopTimeout
		if err := m.docker.StopContainer(c.ID, &timeout); err != nil {
			m.logger.Warn("failed to stop container", "deployment", d.Name, "container", c.Name, "error", err)
		}
	}
}

// removeContainers force-removes every container of a deployment.
func (m *Manager) removeContainers(d *domain.Deployment) {
	for _, c := range m.listContainers(d) {
		if err := m.docker.RemoveContainer(c.ID, docker.RemoveOptions{Force: true}); err != nil {
			m.logger.Warn("failed to remove container", "deployment", d.Name, "container", c.Name, "error", err)
		}
	}
}

// removeNetwork removes the deployment network, tolerating absence.
func (m *Manager) removeNetwork(d *domain.Deployment) {
	networkName := domain.NetworkName(d.Name)
	if err := m.docker.RemoveNetwork(networkName); err != nil && !errors.Is(err, docker.ErrNetworkNotFound) {
		m.logger.Warn("failed to remove network", "deployment", d.Name, "network", networkName, "error", err)
	}
}
