package store

import (
	"context"

	"github.com/artpar/honeymesh/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for the deployment registry.
// The registry is the single source of truth: every deployment mutation is
// persisted here before the runtime acts on it, and the full state is
// reloadable after a restart.
type Store interface {
	// Template operations. Templates are keyed by (slug, version).
	CreateTemplate(ctx context.Context, template *domain.Template) error
	GetTemplate(ctx context.Context, slug, version string) (*domain.Template, error)
	GetLatestTemplate(ctx context.Context, slug string) (*domain.Template, error)
	DeleteTemplate(ctx context.Context, slug, version string) error
	ListTemplates(ctx context.Context, opts ListOptions) ([]domain.Template, error)
	CountLiveDeploymentsByTemplate(ctx context.Context, slug string) (int, error)

	// Deployment operations. Deployments are keyed by name.
	CreateDeployment(ctx context.Context, deployment *domain.Deployment) error
	GetDeployment(ctx context.Context, name string) (*domain.Deployment, error)
	UpdateDeployment(ctx context.Context, deployment *domain.Deployment) error
	DeleteDeployment(ctx context.Context, name string) error
	ListDeployments(ctx context.Context, opts ListOptions) ([]domain.Deployment, error)
	ListActiveDeployments(ctx context.Context) ([]domain.Deployment, error)

	// Event journal
	CreateEvent(ctx context.Context, event *domain.Event) error
	ListEvents(ctx context.Context, deploymentName string, limit int) ([]domain.Event, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
