package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// NetworkName Tests
// =============================================================================

func TestNetworkName_Simple(t *testing.T) {
	got := NetworkName("hc1")
	assert.Equal(t, "honeymesh-hc1", got)
}

func TestNetworkName_WithHyphen(t *testing.T) {
	got := NetworkName("branch-office")
	assert.Equal(t, "honeymesh-branch-office", got)
}

// =============================================================================
// ContainerName Tests
// =============================================================================

func TestContainerName_Cowrie(t *testing.T) {
	got := ContainerName("hc1", "cowrie")
	assert.Equal(t, "honeymesh-cowrie-hc1", got)
}

func TestContainerName_TableDriven(t *testing.T) {
	tests := []struct {
		name       string
		deployment string
		service    string
		want       string
	}{
		{"elasticsearch", "hc1", "elasticsearch", "honeymesh-elasticsearch-hc1"},
		{"kibana", "hc1", "kibana", "honeymesh-kibana-hc1"},
		{"hyphenated_deployment", "branch-office", "logstash", "honeymesh-logstash-branch-office"},
		{"filebeat", "prod2", "filebeat", "honeymesh-filebeat-prod2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContainerName(tt.deployment, tt.service)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// LogIndex Tests
// =============================================================================

func TestLogIndex(t *testing.T) {
	assert.Equal(t, "cowrie-hc1", LogIndex("hc1"))
}

// =============================================================================
// BackupDirName Tests
// =============================================================================

func TestBackupDirName_UTC(t *testing.T) {
	ts := time.Date(2026, 8, 23, 14, 15, 30, 0, time.UTC)
	got := BackupDirName("hc1", ts)
	assert.Equal(t, "hc1-20260823T141530Z", got)
}

func TestBackupDirName_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	ts := time.Date(2026, 8, 23, 16, 15, 30, 0, loc)
	got := BackupDirName("hc1", ts)
	assert.Equal(t, "hc1-20260823T141530Z", got)
}
