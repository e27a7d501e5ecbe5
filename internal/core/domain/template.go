// Package domain contains the core domain types and validation logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// Name validation errors
	ErrNameRequired     = errors.New("name is required")
	ErrNameTooShort     = errors.New("name must be at least 3 characters")
	ErrNameTooLong      = errors.New("name must be at most 100 characters")
	ErrNameInvalidChars = errors.New("name can only contain alphanumeric characters, spaces, and hyphens")

	// Version validation errors
	ErrVersionRequired      = errors.New("version is required")
	ErrVersionInvalidFormat = errors.New("version must be in semver format (X.Y.Z)")

	// Account validation errors
	ErrAccountNameRequired  = errors.New("account username is required")
	ErrAccountDuplicate     = errors.New("duplicate account username")
	ErrAccountHomeMissing   = errors.New("account home directory has no filesystem node")
	ErrAccountPasswordEmpty = errors.New("account password is required")

	// Filesystem node validation errors
	ErrNodePathRequired  = errors.New("filesystem node path is required")
	ErrNodePathRelative  = errors.New("filesystem node path must be absolute")
	ErrNodePathEscapes   = errors.New("filesystem node path escapes the sandbox root")
	ErrNodePathDuplicate = errors.New("duplicate filesystem node path")
	ErrNodeInvalidKind   = errors.New("filesystem node must be a file or a directory")

	// Command override validation errors
	ErrCommandNameRequired = errors.New("command name is required")

	// Referential integrity
	ErrTemplateInUse = errors.New("template is referenced by a live deployment")
)

// =============================================================================
// Filesystem Nodes
// =============================================================================

// NodeKind distinguishes the two filesystem node variants.
type NodeKind string

const (
	NodeFile      NodeKind = "file"
	NodeDirectory NodeKind = "dir"
)

// IsValid checks if the node kind is valid.
func (k NodeKind) IsValid() bool {
	return k == NodeFile || k == NodeDirectory
}

// FSNode is one entry in a template's synthetic filesystem tree.
// Paths are absolute within the emulated root ("/etc/motd", "/home/alice").
// Content is only meaningful for files; Mode defaults per kind when empty.
type FSNode struct {
	Path    string   `json:"path"`
	Kind    NodeKind `json:"kind"`
	Content string   `json:"content,omitempty"`
	Mode    string   `json:"mode,omitempty"`
	Owner   string   `json:"owner,omitempty"`
}

// =============================================================================
// Accounts
// =============================================================================

// Account is a login the emulator will accept.
type Account struct {
	Username string `json:"username"`
	Password string `json:"password"`
	UID      int    `json:"uid"`
	GID      int    `json:"gid"`
	Home     string `json:"home"`
	Shell    string `json:"shell"`
	Gecos    string `json:"gecos,omitempty"`
}

// =============================================================================
// Command Overrides
// =============================================================================

// CommandOverride maps a command to canned output, keyed by argument
// string. The empty key is the output for the bare command.
type CommandOverride struct {
	Name    string            `json:"name"`
	Outputs map[string]string `json:"outputs"`
}

// =============================================================================
// Template
// =============================================================================

// TemplateSettings carries the emulator-facing knobs a template sets.
type TemplateSettings struct {
	Hostname  string `json:"hostname"`
	SSHBanner string `json:"ssh_banner,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
}

// Template is a named, versioned description of a synthetic environment
// for medium-interaction deployments. Templates are immutable once a live
// deployment references them; edits create a new version.
type Template struct {
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Industry    string            `json:"industry,omitempty"`
	Description string            `json:"description,omitempty"`
	Version     string            `json:"version"`
	Settings    TemplateSettings  `json:"settings"`
	Filesystem  []FSNode          `json:"filesystem,omitempty"`
	Accounts    []Account         `json:"accounts,omitempty"`
	Commands    []CommandOverride `json:"commands,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// =============================================================================
// Validation Functions (Pure)
// =============================================================================

var (
	nameRegex    = regexp.MustCompile(`^[a-zA-Z0-9\s\-]+$`)
	versionRegex = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// ValidateName validates a template name.
func ValidateName(name string) error {
	if name == "" {
		return ErrNameRequired
	}
	if len(name) < 3 {
		return ErrNameTooShort
	}
	if len(name) > 100 {
		return ErrNameTooLong
	}
	if !nameRegex.MatchString(name) {
		return ErrNameInvalidChars
	}
	return nil
}

// GenerateSlug generates a URL-safe slug from a name.
func GenerateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	return slug
}

// ValidateVersion validates a version string (must be semver X.Y.Z).
func ValidateVersion(version string) error {
	if version == "" {
		return ErrVersionRequired
	}
	if !versionRegex.MatchString(version) {
		return ErrVersionInvalidFormat
	}
	return nil
}

// CompareVersions compares two version strings.
// Returns -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2.
func CompareVersions(v1, v2 string) int {
	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")

	for i := 0; i < 3; i++ {
		n1, _ := strconv.Atoi(parts1[i])
		n2, _ := strconv.Atoi(parts2[i])
		if n1 < n2 {
			return -1
		}
		if n1 > n2 {
			return 1
		}
	}
	return 0
}
