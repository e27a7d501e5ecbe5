package template

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/honeymesh/internal/core/domain"
)

// =============================================================================
// Test Helpers
// =============================================================================

func engineDeployment(t *testing.T, dataDir string) *domain.Deployment {
	t.Helper()

	d, err := domain.NewDeployment("hc1", domain.ModeDefault, "svr04", domain.DefaultPorts(), dataDir)
	require.NoError(t, err)
	return d
}

func engineTemplate() *domain.Template {
	return &domain.Template{
		Name:    "Branch Office",
		Slug:    "branch-office",
		Version: "1.0.0",
		Settings: domain.TemplateSettings{
			Hostname: "br-util01",
		},
		Filesystem: []domain.FSNode{
			{Path: "/etc/motd", Kind: domain.NodeFile, Content: "Branch Office Utility Server\n"},
			{Path: "/home/anna", Kind: domain.NodeDirectory},
		},
		Accounts: []domain.Account{
			{Username: "anna", Password: "s3cret", UID: 1001, GID: 1001, Home: "/home/anna", Shell: "/bin/bash"},
		},
		Commands: []domain.CommandOverride{
			{Name: "hostname", Outputs: map[string]string{"": "br-util01"}},
		},
	}
}

// =============================================================================
// Expand Tests
// =============================================================================

func TestExpand_DefaultMode(t *testing.T) {
	dataDir := t.TempDir()
	d := engineDeployment(t, dataDir)

	engine := NewEngine(nil)
	require.NoError(t, engine.Expand(d, nil))

	// Rendered artifacts
	for _, rel := range []string{
		"config/cowrie.cfg",
		"config/userdb.txt",
		"honeyfs/etc/passwd",
		"honeyfs/etc/hostname",
		"elk/logstash/cowrie.conf",
		"elk/filebeat/filebeat.yml",
	} {
		_, err := os.Stat(filepath.Join(d.Paths.Root, rel))
		assert.NoError(t, err, rel)
	}

	// Runtime directories
	for _, rel := range []string{"log", "log/tty", "downloads", "backups"} {
		info, err := os.Stat(filepath.Join(d.Paths.Root, rel))
		require.NoError(t, err, rel)
		assert.True(t, info.IsDir(), rel)
	}

	// Stock accounts in default mode
	userdb, err := os.ReadFile(filepath.Join(d.Paths.Config, "userdb.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(userdb), "root:x:123456")

	// No command overrides in default mode
	_, err = os.Stat(filepath.Join(d.Paths.Config, "cmdoutput.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestExpand_MediumMode(t *testing.T) {
	dataDir := t.TempDir()
	d := engineDeployment(t, dataDir)
	d.Mode = domain.ModeMedium
	d.Hostname = "br-util01"

	engine := NewEngine(nil)
	require.NoError(t, engine.Expand(d, engineTemplate()))

	motd, err := os.ReadFile(filepath.Join(d.Paths.Honeyfs, "etc", "motd"))
	require.NoError(t, err)
	assert.Equal(t, "Branch Office Utility Server\n", string(motd))

	info, err := os.Stat(filepath.Join(d.Paths.Honeyfs, "home", "anna"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	userdb, err := os.ReadFile(filepath.Join(d.Paths.Config, "userdb.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(userdb), "anna:x:s3cret")

	cmdout, err := os.ReadFile(filepath.Join(d.Paths.Config, "cmdoutput.json"))
	require.NoError(t, err)
	assert.Contains(t, string(cmdout), "br-util01")
}

func TestExpand_GeneratesHostKeys(t *testing.T) {
	dataDir := t.TempDir()
	d := engineDeployment(t, dataDir)

	engine := NewEngine(nil)
	require.NoError(t, engine.Expand(d, nil))

	keyPath := filepath.Join(d.Paths.Keys, "ssh_host_ed25519_key")

	key, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	assert.Contains(t, string(key), "OPENSSH PRIVATE KEY")

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	pub, err := os.ReadFile(keyPath + ".pub")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pub), "ssh-ed25519 "))
}

func TestExpand_UniqueHostKeysPerDeployment(t *testing.T) {
	dataDir := t.TempDir()
	engine := NewEngine(nil)

	d1 := engineDeployment(t, dataDir)
	require.NoError(t, engine.Expand(d1, nil))

	d2, err := domain.NewDeployment("hc2", domain.ModeDefault, "svr04", domain.DefaultPorts(), dataDir)
	require.NoError(t, err)
	require.NoError(t, engine.Expand(d2, nil))

	k1, err := os.ReadFile(filepath.Join(d1.Paths.Keys, "ssh_host_ed25519_key"))
	require.NoError(t, err)
	k2, err := os.ReadFile(filepath.Join(d2.Paths.Keys, "ssh_host_ed25519_key"))
	require.NoError(t, err)
	assert.NotEqual(t, string(k1), string(k2))
}

func TestExpand_RootAlreadyExists(t *testing.T) {
	dataDir := t.TempDir()
	d := engineDeployment(t, dataDir)
	require.NoError(t, os.MkdirAll(d.Paths.Root, 0o755))

	engine := NewEngine(nil)
	err := engine.Expand(d, nil)
	assert.ErrorIs(t, err, ErrRootExists)
}

func TestExpand_NoPartialTreeOnFailure(t *testing.T) {
	dataDir := t.TempDir()
	d := engineDeployment(t, dataDir)

	// The same path as both a directory and a file makes the staged file
	// write fail partway through the plan.
	tpl := engineTemplate()
	d.Mode = domain.ModeMedium
	tpl.Filesystem = append(tpl.Filesystem,
		domain.FSNode{Path: "/opt/app", Kind: domain.NodeDirectory},
		domain.FSNode{Path: "/opt/app", Kind: domain.NodeFile, Content: "clash"},
	)

	engine := NewEngine(nil)
	require.Error(t, engine.Expand(d, tpl))

	_, err := os.Stat(d.Paths.Root)
	assert.True(t, os.IsNotExist(err))

	// No staging leftovers either
	entries, err := os.ReadDir(dataDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// =============================================================================
// Remove Tests
// =============================================================================

func TestRemove_Full(t *testing.T) {
	dataDir := t.TempDir()
	d := engineDeployment(t, dataDir)

	engine := NewEngine(nil)
	require.NoError(t, engine.Expand(d, nil))
	require.NoError(t, engine.Remove(d, false))

	_, err := os.Stat(d.Paths.Root)
	assert.True(t, os.IsNotExist(err))
}

func TestRemove_PreserveData(t *testing.T) {
	dataDir := t.TempDir()
	d := engineDeployment(t, dataDir)

	engine := NewEngine(nil)
	require.NoError(t, engine.Expand(d, nil))

	logFile := filepath.Join(d.Paths.Log, "cowrie.json")
	require.NoError(t, os.WriteFile(logFile, []byte(`{"eventid":"cowrie.session.connect"}`+"\n"), 0o644))

	require.NoError(t, engine.Remove(d, true))

	// Config and keys gone
	_, err := os.Stat(d.Paths.Config)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(d.Paths.Keys)
	assert.True(t, os.IsNotExist(err))

	// Captured logs and backups retained
	_, err = os.Stat(logFile)
	assert.NoError(t, err)
	_, err = os.Stat(d.Paths.Backups)
	assert.NoError(t, err)
}
