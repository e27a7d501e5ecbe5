package workers

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/honeymesh/internal/core/compose"
	"github.com/artpar/honeymesh/internal/core/domain"
	"github.com/artpar/honeymesh/internal/shell/docker"
	"github.com/artpar/honeymesh/internal/shell/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Fixtures
// =============================================================================

// fakeRuntime is a docker.Client that only answers container listings.
type fakeRuntime struct {
	docker.Client

	containers []docker.ContainerInfo
}

func (f *fakeRuntime) ListContainers(opts docker.ListOptions) ([]docker.ContainerInfo, error) {
	return f.containers, nil
}

// openLocks always grants the lock.
type openLocks struct{}

func (openLocks) TryLock(string) (func(), bool) { return func() {}, true }

// heldLocks never grants the lock, as if an operation is in progress.
type heldLocks struct{}

func (heldLocks) TryLock(string) (func(), bool) { return nil, false }

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func newTestMonitor(t *testing.T, s store.Store, runtime docker.Client, locks LockTrier) *HealthMonitor {
	t.Helper()

	return NewHealthMonitor(s, runtime, locks, HealthMonitorConfig{
		Interval:      time.Second,
		ProbeTimeout:  500 * time.Millisecond,
		MissThreshold: 3,
	}, slog.Default())
}

// okServer starts an HTTP server answering 200 to everything and returns
// its port.
func okServer(t *testing.T) int {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)

	return ts.Listener.Addr().(*net.TCPAddr).Port
}

// tcpListener opens a TCP listener and returns its port.
func tcpListener(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	return l.Addr().(*net.TCPAddr).Port
}

// closedPort returns a port that nothing is listening on.
func closedPort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	return port
}

// healthyPorts wires every probed port to a live local endpoint.
func healthyPorts(t *testing.T) domain.PortConfig {
	t.Helper()

	return domain.PortConfig{
		SSH:           tcpListener(t),
		Kibana:        okServer(t),
		Elasticsearch: okServer(t),
		LogstashBeats: 5044, // not probed
		LogstashMon:   okServer(t),
	}
}

// insertDeployment persists a deployment in the given status.
func insertDeployment(t *testing.T, s store.Store, name string, status domain.DeploymentStatus, ports domain.PortConfig) *domain.Deployment {
	t.Helper()

	d, err := domain.NewDeployment(name, domain.ModeDefault, "", ports, t.TempDir())
	require.NoError(t, err)
	d.Status = status

	require.NoError(t, s.CreateDeployment(context.Background(), d))
	return d
}

// stackContainers returns one running container per service, labeled the way
// provisioning labels them.
func stackContainers(deployment string) []docker.ContainerInfo {
	var containers []docker.ContainerInfo
	for _, svc := range domain.ServiceNames() {
		containers = append(containers, docker.ContainerInfo{
			ID:     fmt.Sprintf("fake-%s-%s", svc, deployment),
			Name:   domain.ContainerName(deployment, svc),
			Status: docker.ContainerStatusRunning,
			State:  "running",
			Labels: map[string]string{
				compose.LabelManaged:    "true",
				compose.LabelDeployment: deployment,
				compose.LabelService:    svc,
			},
		})
	}
	return containers
}

// =============================================================================
// Configuration
// =============================================================================

func TestDefaultHealthMonitorConfig(t *testing.T) {
	config := DefaultHealthMonitorConfig()

	assert.Equal(t, 30*time.Second, config.Interval)
	assert.Equal(t, 5*time.Second, config.ProbeTimeout)
	assert.Equal(t, 3, config.MissThreshold)
	assert.Equal(t, 4, config.MaxConcurrent)
	assert.Equal(t, 10*time.Minute, config.EscalationThreshold)
}

func TestNewHealthMonitor_FillsDefaults(t *testing.T) {
	h := NewHealthMonitor(newTestStore(t), &fakeRuntime{}, openLocks{}, HealthMonitorConfig{}, nil)

	assert.Equal(t, 30*time.Second, h.config.Interval)
	assert.Equal(t, 5*time.Second, h.config.ProbeTimeout)
	assert.Equal(t, 3, h.config.MissThreshold)
	assert.Equal(t, 4, h.config.MaxConcurrent)
	assert.Equal(t, 10*time.Minute, h.config.EscalationThreshold)
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestHealthMonitor_StartStop(t *testing.T) {
	h := newTestMonitor(t, newTestStore(t), &fakeRuntime{}, openLocks{})

	h.Start()
	time.Sleep(50 * time.Millisecond)
	h.Stop()

	// Restartable after a stop.
	h.Start()
	h.Stop()
}

func TestHealthMonitor_StopWithoutStart(t *testing.T) {
	h := newTestMonitor(t, newTestStore(t), &fakeRuntime{}, openLocks{})

	h.Stop()
}

// =============================================================================
// Poll Cycles
// =============================================================================

func TestHealthMonitor_HealthyDeployment(t *testing.T) {
	s := newTestStore(t)
	insertDeployment(t, s, "hm1", domain.StatusRunning, healthyPorts(t))
	runtime := &fakeRuntime{containers: stackContainers("hm1")}

	h := newTestMonitor(t, s, runtime, openLocks{})
	h.CheckNow(context.Background())

	got, err := s.GetDeployment(context.Background(), "hm1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusRunning, got.Status)
	require.NotNil(t, got.Health)
	assert.Equal(t, domain.ServiceUp, got.Health.Status)
	require.Len(t, got.Health.Services, len(domain.ServiceNames()))
	for _, svc := range got.Health.Services {
		assert.Equal(t, domain.ServiceUp, svc.Status, svc.Service)
		assert.Zero(t, svc.Misses, svc.Service)
		assert.True(t, svc.ContainerUp, svc.Service)
	}

	events, err := s.ListEvents(context.Background(), "hm1", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestHealthMonitor_SingleMissKeepsRunning(t *testing.T) {
	s := newTestStore(t)
	ports := healthyPorts(t)
	ports.SSH = closedPort(t) // emulator unreachable
	insertDeployment(t, s, "hm1", domain.StatusRunning, ports)
	runtime := &fakeRuntime{containers: stackContainers("hm1")}

	h := newTestMonitor(t, s, runtime, openLocks{})
	h.CheckNow(context.Background())

	got, err := s.GetDeployment(context.Background(), "hm1")
	require.NoError(t, err)

	// One miss is within the grace period: the service reports degraded
	// but the deployment keeps running.
	assert.Equal(t, domain.StatusRunning, got.Status)
	require.NotNil(t, got.Health)
	assert.Equal(t, domain.ServiceDegraded, got.Health.Status)
	require.NotNil(t, got.Health.DegradedSince)

	cowrie := got.Health.ServiceFor(domain.ServiceCowrie)
	require.NotNil(t, cowrie)
	assert.Equal(t, domain.ServiceDegraded, cowrie.Status)
	assert.Equal(t, 1, cowrie.Misses)
	assert.True(t, cowrie.ContainerUp)
	assert.NotEmpty(t, cowrie.ProbeDetail)

	es := got.Health.ServiceFor(domain.ServiceElasticsearch)
	require.NotNil(t, es)
	assert.Equal(t, domain.ServiceUp, es.Status)

	events, err := s.ListEvents(context.Background(), "hm1", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestHealthMonitor_MissesAccumulateToDown(t *testing.T) {
	s := newTestStore(t)
	ports := healthyPorts(t)
	ports.SSH = closedPort(t)
	insertDeployment(t, s, "hm1", domain.StatusRunning, ports)
	runtime := &fakeRuntime{containers: stackContainers("hm1")}

	h := newTestMonitor(t, s, runtime, openLocks{})

	// Two misses stay inside the grace period.
	for range 2 {
		h.CheckNow(context.Background())
	}
	got, err := s.GetDeployment(context.Background(), "hm1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, got.Status)

	// The third consecutive miss takes the service down and flips the
	// deployment.
	h.CheckNow(context.Background())
	got, err = s.GetDeployment(context.Background(), "hm1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDegraded, got.Status)
	cowrie := got.Health.ServiceFor(domain.ServiceCowrie)
	require.NotNil(t, cowrie)
	assert.Equal(t, 3, cowrie.Misses)
	assert.Equal(t, domain.ServiceDown, cowrie.Status)
	assert.Equal(t, domain.ServiceDown, got.Health.Status)

	events, err := s.ListEvents(context.Background(), "hm1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventDegraded, events[0].Type)
	assert.Contains(t, events[0].Message, domain.ServiceCowrie)

	// Staying degraded does not repeat the event.
	h.CheckNow(context.Background())
	events, err = s.ListEvents(context.Background(), "hm1", 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestHealthMonitor_Recovery(t *testing.T) {
	s := newTestStore(t)
	d := insertDeployment(t, s, "hm1", domain.StatusDegraded, healthyPorts(t))
	since := time.Now().UTC().Add(-2 * time.Minute)
	d.Health = &domain.HealthSnapshot{
		Status: domain.ServiceDown,
		Services: []domain.ServiceHealth{
			{Service: domain.ServiceCowrie, Status: domain.ServiceDown, Misses: 3},
		},
		CheckedAt:     time.Now().UTC(),
		DegradedSince: &since,
	}
	require.NoError(t, s.UpdateDeployment(context.Background(), d))
	runtime := &fakeRuntime{containers: stackContainers("hm1")}

	h := newTestMonitor(t, s, runtime, openLocks{})
	h.CheckNow(context.Background())

	got, err := s.GetDeployment(context.Background(), "hm1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusRunning, got.Status)
	assert.Equal(t, domain.ServiceUp, got.Health.Status)
	assert.Nil(t, got.Health.DegradedSince)
	assert.False(t, got.Health.Escalated)
	cowrie := got.Health.ServiceFor(domain.ServiceCowrie)
	require.NotNil(t, cowrie)
	assert.Zero(t, cowrie.Misses)

	events, err := s.ListEvents(context.Background(), "hm1", 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventRecovered, events[0].Type)
}

func TestHealthMonitor_EscalatesProlongedDegradation(t *testing.T) {
	s := newTestStore(t)
	ports := healthyPorts(t)
	ports.SSH = closedPort(t)
	d := insertDeployment(t, s, "hm1", domain.StatusDegraded, ports)
	since := time.Now().UTC().Add(-30 * time.Minute)
	d.Health = &domain.HealthSnapshot{
		Status: domain.ServiceDown,
		Services: []domain.ServiceHealth{
			{Service: domain.ServiceCowrie, Status: domain.ServiceDown, Misses: 5},
		},
		CheckedAt:     time.Now().UTC(),
		DegradedSince: &since,
	}
	require.NoError(t, s.UpdateDeployment(context.Background(), d))
	runtime := &fakeRuntime{containers: stackContainers("hm1")}

	h := NewHealthMonitor(s, runtime, openLocks{}, HealthMonitorConfig{
		Interval:            time.Second,
		ProbeTimeout:        500 * time.Millisecond,
		MissThreshold:       3,
		EscalationThreshold: 10 * time.Minute,
	}, slog.Default())
	h.CheckNow(context.Background())

	got, err := s.GetDeployment(context.Background(), "hm1")
	require.NoError(t, err)

	// Still degraded, not torn down; the prolonged outage is reported.
	assert.Equal(t, domain.StatusDegraded, got.Status)
	require.NotNil(t, got.Health)
	assert.True(t, got.Health.Escalated)
	require.NotNil(t, got.Health.DegradedSince)
	assert.Equal(t, since, *got.Health.DegradedSince)

	events, err := s.ListEvents(context.Background(), "hm1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventEscalated, events[0].Type)
	assert.Contains(t, events[0].Message, "manual intervention")
	assert.Contains(t, events[0].Message, domain.ServiceCowrie)

	// The escalation fires exactly once per degraded period.
	h.CheckNow(context.Background())
	events, err = s.ListEvents(context.Background(), "hm1", 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestHealthMonitor_NoEscalationWithinThreshold(t *testing.T) {
	s := newTestStore(t)
	ports := healthyPorts(t)
	ports.SSH = closedPort(t)
	d := insertDeployment(t, s, "hm1", domain.StatusDegraded, ports)
	since := time.Now().UTC().Add(-time.Minute)
	d.Health = &domain.HealthSnapshot{
		Status: domain.ServiceDown,
		Services: []domain.ServiceHealth{
			{Service: domain.ServiceCowrie, Status: domain.ServiceDown, Misses: 5},
		},
		CheckedAt:     time.Now().UTC(),
		DegradedSince: &since,
	}
	require.NoError(t, s.UpdateDeployment(context.Background(), d))
	runtime := &fakeRuntime{containers: stackContainers("hm1")}

	h := newTestMonitor(t, s, runtime, openLocks{})
	h.CheckNow(context.Background())

	got, err := s.GetDeployment(context.Background(), "hm1")
	require.NoError(t, err)
	assert.False(t, got.Health.Escalated)

	events, err := s.ListEvents(context.Background(), "hm1", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestHealthMonitor_ContainerDownFailsService(t *testing.T) {
	s := newTestStore(t)
	insertDeployment(t, s, "hm1", domain.StatusRunning, healthyPorts(t))

	containers := stackContainers("hm1")
	for i := range containers {
		if containers[i].Labels[compose.LabelService] == domain.ServiceFilebeat {
			containers[i].Status = docker.ContainerStatusExited
			containers[i].State = "exited"
		}
	}
	runtime := &fakeRuntime{containers: containers}

	h := newTestMonitor(t, s, runtime, openLocks{})
	h.CheckNow(context.Background())

	got, err := s.GetDeployment(context.Background(), "hm1")
	require.NoError(t, err)

	// The first miss marks the service, not the deployment.
	assert.Equal(t, domain.StatusRunning, got.Status)
	assert.Equal(t, domain.ServiceDegraded, got.Health.Status)
	filebeat := got.Health.ServiceFor(domain.ServiceFilebeat)
	require.NotNil(t, filebeat)
	assert.False(t, filebeat.ContainerUp)
	assert.Equal(t, "container not running", filebeat.ProbeDetail)
	assert.Equal(t, 1, filebeat.Misses)
}

func TestHealthMonitor_SkipsLockedDeployment(t *testing.T) {
	s := newTestStore(t)
	insertDeployment(t, s, "hm1", domain.StatusRunning, healthyPorts(t))
	runtime := &fakeRuntime{containers: stackContainers("hm1")}

	h := newTestMonitor(t, s, runtime, heldLocks{})
	h.CheckNow(context.Background())

	got, err := s.GetDeployment(context.Background(), "hm1")
	require.NoError(t, err)
	assert.Nil(t, got.Health)
	assert.Equal(t, domain.StatusRunning, got.Status)
}

func TestHealthMonitor_IgnoresInactiveDeployments(t *testing.T) {
	s := newTestStore(t)
	insertDeployment(t, s, "hm1", domain.StatusStopped, healthyPorts(t))

	h := newTestMonitor(t, s, &fakeRuntime{}, openLocks{})
	h.CheckNow(context.Background())

	got, err := s.GetDeployment(context.Background(), "hm1")
	require.NoError(t, err)
	assert.Nil(t, got.Health)
	assert.Equal(t, domain.StatusStopped, got.Status)
}
