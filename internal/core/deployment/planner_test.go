package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/artpar/honeymesh/internal/core/domain"
)

// =============================================================================
// DetermineStartPath Tests
// =============================================================================

func TestDetermineStartPath_FromDraft(t *testing.T) {
	path := DetermineStartPath(domain.StatusDraft)

	assert.True(t, path.Valid)
	assert.False(t, path.AlreadyStarted)
	assert.Equal(t, []domain.DeploymentStatus{domain.StatusValidating, domain.StatusProvisioning}, path.Transitions)
}

func TestDetermineStartPath_FromStopped(t *testing.T) {
	// Restart goes back through validation: another deployment may have
	// claimed the ports while this one was stopped.
	path := DetermineStartPath(domain.StatusStopped)

	assert.True(t, path.Valid)
	assert.Equal(t, []domain.DeploymentStatus{domain.StatusValidating, domain.StatusProvisioning}, path.Transitions)
}

func TestDetermineStartPath_FromFailed(t *testing.T) {
	path := DetermineStartPath(domain.StatusFailed)

	assert.True(t, path.Valid)
	assert.NotEmpty(t, path.Transitions)
}

func TestDetermineStartPath_AlreadyRunning(t *testing.T) {
	for _, status := range []domain.DeploymentStatus{domain.StatusRunning, domain.StatusDegraded} {
		t.Run(string(status), func(t *testing.T) {
			path := DetermineStartPath(status)

			assert.True(t, path.Valid)
			assert.True(t, path.AlreadyStarted)
			assert.Empty(t, path.Transitions)
		})
	}
}

func TestDetermineStartPath_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		status domain.DeploymentStatus
	}{
		{"validating", domain.StatusValidating},
		{"provisioning", domain.StatusProvisioning},
		{"stopping", domain.StatusStopping},
		{"removed", domain.StatusRemoved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := DetermineStartPath(tt.status)

			assert.False(t, path.Valid)
			assert.NotEmpty(t, path.ErrorReason)
			assert.Empty(t, path.Transitions)
		})
	}
}

// =============================================================================
// DetermineStopPath Tests
// =============================================================================

func TestDetermineStopPath_FromRunning(t *testing.T) {
	path := DetermineStopPath(domain.StatusRunning)
	assert.True(t, path.Valid)
	assert.False(t, path.AlreadyStopped)
}

func TestDetermineStopPath_FromDegraded(t *testing.T) {
	path := DetermineStopPath(domain.StatusDegraded)
	assert.True(t, path.Valid)
}

func TestDetermineStopPath_AlreadyStopped(t *testing.T) {
	path := DetermineStopPath(domain.StatusStopped)
	assert.True(t, path.Valid)
	assert.True(t, path.AlreadyStopped)
}

func TestDetermineStopPath_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		status domain.DeploymentStatus
	}{
		{"draft", domain.StatusDraft},
		{"stopping", domain.StatusStopping},
		{"removed", domain.StatusRemoved},
		{"failed", domain.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := DetermineStopPath(tt.status)
			assert.False(t, path.Valid)
			assert.NotEmpty(t, path.ErrorReason)
		})
	}
}
