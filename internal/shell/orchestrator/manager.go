package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/artpar/honeymesh/internal/core/compose"
	coredeployment "github.com/artpar/honeymesh/internal/core/deployment"
	"github.com/artpar/honeymesh/internal/core/domain"
	coretemplate "github.com/artpar/honeymesh/internal/core/template"
	"github.com/artpar/honeymesh/internal/core/validation"
	"github.com/artpar/honeymesh/internal/shell/docker"
	"github.com/artpar/honeymesh/internal/shell/store"
	"github.com/artpar/honeymesh/internal/shell/template"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrDeploymentNotFound is returned for operations on unknown names.
	ErrDeploymentNotFound = errors.New("deployment not found")

	// ErrDeploymentBusy is returned when another operation holds the
	// deployment's lock.
	ErrDeploymentBusy = errors.New("another operation is in progress for this deployment")
)

// =============================================================================
// Manager
// =============================================================================

// defaultMaxConcurrent bounds how many lifecycle operations run at once
// across all deployments. Image pulls and container starts are expensive;
// unbounded parallelism stalls the daemon.
const defaultMaxConcurrent = 4

// Manager coordinates deployment lifecycle operations. Each deployment is
// serialized by a per-name lock; a semaphore caps concurrent operations
// across deployments.
type Manager struct {
	store  store.Store
	docker docker.Client
	engine *template.Engine
	logger *slog.Logger

	sem      chan struct{}
	portFree func(port int) bool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a deployment manager. maxConcurrent <= 0 selects the
// default operation cap.
func NewManager(st store.Store, cli docker.Client, engine *template.Engine, logger *slog.Logger, maxConcurrent int) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Manager{
		store:    st,
		docker:   cli,
		engine:   engine,
		logger:   logger,
		sem:      make(chan struct{}, maxConcurrent),
		portFree: probeHostPort,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing operations on one deployment name.
func (m *Manager) lockFor(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[name]
	if !ok {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	return l
}

// TryLock attempts to take a deployment's lock without blocking. The health
// monitor uses this to skip deployments that are mid-operation. The returned
// release function must be called when ok is true.
func (m *Manager) TryLock(name string) (release func(), ok bool) {
	l := m.lockFor(name)
	if !l.TryLock() {
		return nil, false
	}
	return l.Unlock, true
}

// acquire takes the per-deployment lock and an operation slot. The lock is
// taken without blocking: a second operation on the same name fails fast
// with ErrDeploymentBusy instead of queueing behind the first.
func (m *Manager) acquire(ctx context.Context, name string) (release func(), err error) {
	l := m.lockFor(name)
	if !l.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrDeploymentBusy, name)
	}

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		l.Unlock()
		return nil, ctx.Err()
	}

	return func() {
		<-m.sem
		l.Unlock()
	}, nil
}

// =============================================================================
// Create
// =============================================================================

// CreateRequest carries the user-supplied fields for a new deployment.
type CreateRequest struct {
	Name            string
	Mode            string
	TemplateSlug    string
	TemplateVersion string // empty selects the latest version
	Hostname        string
	Ports           domain.PortConfig // zero value selects the defaults
}

// Create registers a new deployment and provisions it end to end. On
// provisioning failure every side effect is rolled back and the registry
// row is deleted, so the name is immediately reusable.
func (m *Manager) Create(ctx context.Context, req CreateRequest, dataDir string) (*domain.Deployment, error) {
	if field, msg := validation.ValidateCreateDeploymentFields(req.Name, req.Mode, req.TemplateSlug); field != "" {
		return nil, domain.NewValidationError("deployment", field, msg, nil)
	}

	ports := req.Ports
	if ports == (domain.PortConfig{}) {
		ports = domain.DefaultPorts()
	}

	release, err := m.acquire(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	defer release()

	tpl, err := m.resolveTemplate(ctx, domain.DeploymentMode(req.Mode), req.TemplateSlug, req.TemplateVersion)
	if err != nil {
		return nil, err
	}

	hostname := req.Hostname
	if hostname == "" && tpl != nil {
		hostname = tpl.Settings.Hostname
	}

	d, err := domain.NewDeployment(req.Name, domain.DeploymentMode(req.Mode), hostname, ports, dataDir)
	if err != nil {
		return nil, domain.NewValidationError("deployment", "name", err.Error(), err)
	}
	if tpl != nil {
		d.TemplateName = tpl.Slug
		d.TemplateVersion = tpl.Version
	}

	if err := m.checkConflicts(ctx, d, true); err != nil {
		return nil, err
	}

	if err := m.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateDeployment(ctx, d); err != nil {
			return err
		}
		event := domain.NewEvent(d.Name, domain.EventCreated, "deployment registered")
		return tx.CreateEvent(ctx, &event)
	}); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			return nil, domain.NewConflictError(domain.ConflictNameRegistered, d.Name, d.Name)
		}
		return nil, err
	}

	if err := m.bringUp(ctx, d, tpl); err != nil {
		// Failed creation leaves nothing behind: the row goes too.
		if delErr := m.store.DeleteDeployment(ctx, d.Name); delErr != nil {
			m.logger.Error("failed to delete registry row after rollback",
				"deployment", d.Name, "error", delErr)
		}
		event := domain.NewEvent(d.Name, domain.EventProvisionFail, err.Error())
		_ = m.store.CreateEvent(ctx, &event)
		return nil, err
	}

	m.logger.Info("deployment created", "deployment", d.Name, "mode", d.Mode)
	return d, nil
}

// resolveTemplate loads the template a medium-interaction deployment pins.
func (m *Manager) resolveTemplate(ctx context.Context, mode domain.DeploymentMode, slug, version string) (*domain.Template, error) {
	if mode != domain.ModeMedium {
		return nil, nil
	}
	if slug == "" {
		return nil, domain.NewValidationError("deployment", "template",
			domain.ErrTemplateRequired.Error(), domain.ErrTemplateRequired)
	}

	var tpl *domain.Template
	var err error
	if version == "" {
		tpl, err = m.store.GetLatestTemplate(ctx, slug)
	} else {
		tpl, err = m.store.GetTemplate(ctx, slug, version)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if allowed, reason := validation.CanUseTemplate(false); !allowed {
				return nil, domain.NewValidationError("deployment", "template", reason, err)
			}
		}
		return nil, err
	}

	if verr := coretemplate.ValidateTemplate(tpl); verr != nil {
		return nil, verr
	}
	return tpl, nil
}

// bringUp walks a deployment from its current state through validation and
// provisioning to running, persisting each transition.
func (m *Manager) bringUp(ctx context.Context, d *domain.Deployment, tpl *domain.Template) error {
	for _, status := range []domain.DeploymentStatus{domain.StatusValidating, domain.StatusProvisioning} {
		if err := d.Transition(status); err != nil {
			return err
		}
		if err := m.store.UpdateDeployment(ctx, d); err != nil {
			return err
		}
	}

	if err := m.provision(ctx, d, tpl); err != nil {
		if ferr := d.TransitionToFailed(err.Error()); ferr == nil {
			_ = m.store.UpdateDeployment(ctx, d)
		}
		return err
	}

	if err := d.Transition(domain.StatusRunning); err != nil {
		return err
	}
	return m.store.UpdateDeployment(ctx, d)
}

// =============================================================================
// Start / Stop / Restart
// =============================================================================

// Start brings a stopped, failed, or draft deployment to running. Starting a
// running deployment is a no-op. Conflicts are re-checked because host ports
// and the registry can change while a deployment sits stopped.
func (m *Manager) Start(ctx context.Context, name string) (*domain.Deployment, error) {
	release, err := m.acquire(ctx, name)
	if err != nil {
		return nil, err
	}
	defer release()

	return m.startLocked(ctx, name, domain.EventStarted)
}

func (m *Manager) startLocked(ctx context.Context, name string, eventType domain.EventType) (*domain.Deployment, error) {
	d, err := m.getDeployment(ctx, name)
	if err != nil {
		return nil, err
	}

	path := coredeployment.DetermineStartPath(d.Status)
	if !path.Valid {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTransition, path.ErrorReason)
	}
	if path.AlreadyStarted {
		return d, nil
	}

	if err := m.checkConflicts(ctx, d, false); err != nil {
		return nil, err
	}

	tpl, err := m.resolveTemplate(ctx, d.Mode, d.TemplateName, d.TemplateVersion)
	if err != nil {
		return nil, err
	}

	if err := m.bringUp(ctx, d, tpl); err != nil {
		event := domain.NewEvent(d.Name, domain.EventProvisionFail, err.Error())
		_ = m.store.CreateEvent(ctx, &event)
		return nil, err
	}

	event := domain.NewEvent(d.Name, eventType, "deployment started")
	_ = m.store.CreateEvent(ctx, &event)

	m.logger.Info("deployment started", "deployment", d.Name)
	return d, nil
}

// Stop halts a deployment's containers without removing anything. Stopping
// an already-stopped deployment is a no-op.
func (m *Manager) Stop(ctx context.Context, name string) (*domain.Deployment, error) {
	release, err := m.acquire(ctx, name)
	if err != nil {
		return nil, err
	}
	defer release()

	return m.stopLocked(ctx, name)
}

func (m *Manager) stopLocked(ctx context.Context, name string) (*domain.Deployment, error) {
	d, err := m.getDeployment(ctx, name)
	if err != nil {
		return nil, err
	}

	path := coredeployment.DetermineStopPath(d.Status)
	if !path.Valid {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTransition, path.ErrorReason)
	}
	if path.AlreadyStopped {
		return d, nil
	}

	if err := d.Transition(domain.StatusStopping); err != nil {
		return nil, err
	}
	if err := m.store.UpdateDeployment(ctx, d); err != nil {
		return nil, err
	}

	m.stopContainers(d)

	d.Health = nil
	if err := d.Transition(domain.StatusStopped); err != nil {
		return nil, err
	}
	if err := m.store.UpdateDeployment(ctx, d); err != nil {
		return nil, err
	}

	event := domain.NewEvent(d.Name, domain.EventStopped, "deployment stopped")
	_ = m.store.CreateEvent(ctx, &event)

	m.logger.Info("deployment stopped", "deployment", d.Name)
	return d, nil
}

// Restart stops and starts a deployment under one lock acquisition.
func (m *Manager) Restart(ctx context.Context, name string) (*domain.Deployment, error) {
	release, err := m.acquire(ctx, name)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := m.stopLocked(ctx, name); err != nil {
		return nil, err
	}
	return m.startLocked(ctx, name, domain.EventRestarted)
}

// =============================================================================
// Remove
// =============================================================================

// Remove tears a deployment down regardless of its current state:
// containers, network, directory tree, and the registry row. The event
// journal keeps the history; deleting the row releases the name and ports
// for immediate reuse. With preserveData set, captured logs and backups
// stay on disk.
func (m *Manager) Remove(ctx context.Context, name string, preserveData bool) error {
	release, err := m.acquire(ctx, name)
	if err != nil {
		return err
	}
	defer release()

	d, err := m.getDeployment(ctx, name)
	if err != nil {
		return err
	}

	m.stopContainers(d)
	m.removeContainers(d)
	m.removeNetwork(d)

	if err := m.engine.Remove(d, preserveData); err != nil {
		return err
	}

	if err := m.store.DeleteDeployment(ctx, name); err != nil {
		return err
	}

	msg := "deployment removed"
	if preserveData {
		msg = "deployment removed, data preserved"
	}
	event := domain.NewEvent(d.Name, domain.EventRemoved, msg)
	_ = m.store.CreateEvent(ctx, &event)

	m.logger.Info("deployment removed", "deployment", d.Name, "preserve_data", preserveData)
	return nil
}

// =============================================================================
// Startup Reconciliation
// =============================================================================

// Reconcile settles deployments left in a transient state by a daemon
// crash. The registry is the source of truth across restarts, but
// validating, provisioning, and stopping only ever exist while an operation
// holds the lock; finding one at startup means the operation died with it.
// In-flight starts demote to failed (a fresh start re-provisions from
// scratch); an interrupted stop completes to stopped.
func (m *Manager) Reconcile(ctx context.Context) error {
	opts := store.ListOptions{Limit: 500}
	for {
		deployments, err := m.store.ListDeployments(ctx, opts)
		if err != nil {
			return err
		}

		for i := range deployments {
			d := &deployments[i]
			switch d.Status {
			case domain.StatusValidating, domain.StatusProvisioning:
				if err := d.TransitionToFailed("interrupted by daemon restart"); err != nil {
					return err
				}
			case domain.StatusStopping:
				m.stopContainers(d)
				d.Health = nil
				if err := d.Transition(domain.StatusStopped); err != nil {
					return err
				}
			default:
				continue
			}

			if err := m.store.UpdateDeployment(ctx, d); err != nil {
				return err
			}
			m.logger.Warn("reconciled interrupted deployment",
				"deployment", d.Name, "status", d.Status)
		}

		if len(deployments) < opts.Limit {
			return nil
		}
		opts.Offset += opts.Limit
	}
}

// =============================================================================
// Status / List / Events
// =============================================================================

// ContainerState is the live runtime view of one service container.
type ContainerState struct {
	Service     string `json:"service"`
	ContainerID string `json:"container_id"`
	State       string `json:"state"`
}

// StatusReport combines the registry record with the live container states.
type StatusReport struct {
	Deployment *domain.Deployment `json:"deployment"`
	Containers []ContainerState   `json:"containers"`
}

// Status returns the registry record plus a fresh look at the containers.
func (m *Manager) Status(ctx context.Context, name string) (*StatusReport, error) {
	d, err := m.getDeployment(ctx, name)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{Deployment: d}
	for _, c := range m.listContainers(d) {
		report.Containers = append(report.Containers, ContainerState{
			Service:     c.Labels[compose.LabelService],
			ContainerID: c.ID,
			State:       c.State,
		})
	}
	return report, nil
}

// List returns registry records, name-ordered.
func (m *Manager) List(ctx context.Context, opts store.ListOptions) ([]domain.Deployment, error) {
	return m.store.ListDeployments(ctx, opts)
}

// Events returns the most recent lifecycle events for a deployment.
func (m *Manager) Events(ctx context.Context, name string, limit int) ([]domain.Event, error) {
	if _, err := m.getDeployment(ctx, name); err != nil {
		return nil, err
	}
	return m.store.ListEvents(ctx, name, limit)
}

func (m *Manager) getDeployment(ctx context.Context, name string) (*domain.Deployment, error) {
	d, err := m.store.GetDeployment(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDeploymentNotFound, name)
		}
		return nil, err
	}
	return d, nil
}

// Store exposes the registry for read-side consumers (the health monitor).
func (m *Manager) Store() store.Store {
	return m.store
}

// Docker exposes the runtime client for read-side consumers.
func (m *Manager) Docker() docker.Client {
	return m.docker
}
