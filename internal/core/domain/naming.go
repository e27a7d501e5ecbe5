package domain

import (
	"fmt"
	"time"
)

// =============================================================================
// Resource Naming Functions
// =============================================================================

// The deployment name is the uniqueness prefix for every runtime resource,
// so two deployments can never collide as long as names are unique.

// NetworkName returns the bridge network name for a deployment.
//
// Example:
//
//	NetworkName("hc1") // "honeymesh-hc1"
func NetworkName(deploymentName string) string {
	return fmt.Sprintf("honeymesh-%s", deploymentName)
}

// ContainerName returns the container name for a service of a deployment.
//
// Example:
//
//	ContainerName("hc1", "kibana") // "honeymesh-kibana-hc1"
func ContainerName(deploymentName, serviceName string) string {
	return fmt.Sprintf("honeymesh-%s-%s", serviceName, deploymentName)
}

// LogIndex returns the index name pattern the log pipeline writes for a
// deployment.
func LogIndex(deploymentName string) string {
	return fmt.Sprintf("cowrie-%s", deploymentName)
}

// BackupDirName returns the timestamped directory name for a backup.
//
// Example:
//
//	BackupDirName("hc1", t) // "hc1-20260823T141530Z"
func BackupDirName(deploymentName string, t time.Time) string {
	return fmt.Sprintf("%s-%s", deploymentName, t.UTC().Format("20060102T150405Z"))
}
