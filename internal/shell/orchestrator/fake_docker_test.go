package orchestrator

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/artpar/honeymesh/internal/core/compose"
	"github.com/artpar/honeymesh/internal/shell/docker"
)

// fakeDocker is an in-memory docker.Client for exercising the manager
// without a daemon.
type fakeDocker struct {
	mu         sync.Mutex
	containers map[string]*fakeContainer
	networks   map[string]bool
	images     map[string]bool

	// failCreateFor injects a create failure for one service.
	failCreateFor map[string]error
	// failStartFor injects a start failure for one service.
	failStartFor map[string]error

	createCalls int
	pullCalls   int
}

type fakeContainer struct {
	id     string
	name   string
	image  string
	state  string
	labels map[string]string
}

func newFakeDocker() *fakeDocker {
	return &fakeDocker{
		containers:    make(map[string]*fakeContainer),
		networks:      make(map[string]bool),
		images:        make(map[string]bool),
		failCreateFor: make(map[string]error),
		failStartFor:  make(map[string]error),
	}
}

func (f *fakeDocker) CreateContainer(spec docker.ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	service := spec.Labels[compose.LabelService]
	if err, ok := f.failCreateFor[service]; ok {
		delete(f.failCreateFor, service)
		return "", err
	}

	for _, c := range f.containers {
		if c.name == spec.Name {
			return "", docker.ErrContainerAlreadyExists
		}
	}

	f.createCalls++
	id := fmt.Sprintf("fake-%s", spec.Name)
	labels := make(map[string]string, len(spec.Labels))
	for k, v := range spec.Labels {
		labels[k] = v
	}
	f.containers[id] = &fakeContainer{
		id:     id,
		name:   spec.Name,
		image:  spec.Image,
		state:  "created",
		labels: labels,
	}
	return id, nil
}

func (f *fakeDocker) StartContainer(containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.containers[containerID]
	if !ok {
		return docker.ErrContainerNotFound
	}
	if err, fail := f.failStartFor[c.labels[compose.LabelService]]; fail {
		return err
	}
	c.state = "running"
	return nil
}

func (f *fakeDocker) StopContainer(containerID string, timeout *time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.containers[containerID]
	if !ok {
		return docker.ErrContainerNotFound
	}
	c.state = "exited"
	return nil
}

func (f *fakeDocker) RemoveContainer(containerID string, opts docker.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.containers[containerID]; !ok {
		return docker.ErrContainerNotFound
	}
	delete(f.containers, containerID)
	return nil
}

func (f *fakeDocker) InspectContainer(containerID string) (*docker.ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.containers[containerID]
	if !ok {
		return nil, docker.ErrContainerNotFound
	}
	return f.info(c), nil
}

func (f *fakeDocker) ListContainers(opts docker.ListOptions) ([]docker.ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []docker.ContainerInfo
	for _, c := range f.containers {
		if !opts.All && c.state != "running" {
			continue
		}
		if label, ok := opts.Filters["label"]; ok {
			k, v, _ := strings.Cut(label, "=")
			if c.labels[k] != v {
				continue
			}
		}
		result = append(result, *f.info(c))
	}
	return result, nil
}

func (f *fakeDocker) info(c *fakeContainer) *docker.ContainerInfo {
	labels := make(map[string]string, len(c.labels))
	for k, v := range c.labels {
		labels[k] = v
	}
	return &docker.ContainerInfo{
		ID:     c.id,
		Name:   c.name,
		Image:  c.image,
		Status: docker.ContainerStatus(c.state),
		State:  c.state,
		Labels: labels,
	}
}

func (f *fakeDocker) ContainerLogs(containerID string, opts docker.LogOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeDocker) CreateNetwork(spec docker.NetworkSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.networks[spec.Name] {
		return "", docker.ErrNetworkAlreadyExists
	}
	f.networks[spec.Name] = true
	return spec.Name, nil
}

func (f *fakeDocker) RemoveNetwork(networkID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.networks[networkID] {
		return docker.ErrNetworkNotFound
	}
	delete(f.networks, networkID)
	return nil
}

func (f *fakeDocker) PullImage(image string, opts docker.PullOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pullCalls++
	f.images[image] = true
	return nil
}

func (f *fakeDocker) ImageExists(image string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[image], nil
}

func (f *fakeDocker) Ping() error { return nil }

func (f *fakeDocker) Close() error { return nil }

// runningContainers counts containers in the running state.
func (f *fakeDocker) runningContainers() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.containers {
		if c.state == "running" {
			n++
		}
	}
	return n
}

// containerCount counts all containers regardless of state.
func (f *fakeDocker) containerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.containers)
}
