package template

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/artpar/honeymesh/internal/core/domain"
)

// =============================================================================
// Template Validation
// =============================================================================

// ValidateTemplate checks a template against every structural rule before it
// may be persisted or expanded. The first violation is returned as a
// ValidationError naming the offending field; a nil result means the template
// is safe to expand.
func ValidateTemplate(tpl *domain.Template) *domain.ValidationError {
	if err := domain.ValidateName(tpl.Name); err != nil {
		return domain.NewValidationError("template", "name", err.Error(), err)
	}
	if err := domain.ValidateVersion(tpl.Version); err != nil {
		return domain.NewValidationError("template", "version", err.Error(), err)
	}
	if tpl.Settings.Hostname == "" {
		return domain.NewValidationError("template", "settings.hostname", "hostname is required", nil)
	}

	if verr := validateFilesystem(tpl.Filesystem); verr != nil {
		return verr
	}
	if verr := validateAccounts(tpl.Accounts, tpl.Filesystem); verr != nil {
		return verr
	}
	return validateCommands(tpl.Commands)
}

func validateFilesystem(nodes []domain.FSNode) *domain.ValidationError {
	seen := make(map[string]bool, len(nodes))
	for i, node := range nodes {
		field := fmt.Sprintf("filesystem[%d].path", i)

		if node.Path == "" {
			return domain.NewValidationError("template", field, "path is required", domain.ErrNodePathRequired)
		}
		if !strings.HasPrefix(node.Path, "/") {
			return domain.NewValidationError("template", field,
				fmt.Sprintf("%q is not absolute", node.Path), domain.ErrNodePathRelative)
		}

		// A cleaned path that still climbs out of "/" carried a ".." escape.
		cleaned := path.Clean(node.Path)
		if cleaned == "/" || strings.HasPrefix(cleaned, "/..") || cleaned != node.Path {
			return domain.NewValidationError("template", field,
				fmt.Sprintf("%q is not a clean absolute path", node.Path), domain.ErrNodePathEscapes)
		}

		if seen[cleaned] {
			return domain.NewValidationError("template", field,
				fmt.Sprintf("%q appears more than once", node.Path), domain.ErrNodePathDuplicate)
		}
		seen[cleaned] = true

		if !node.Kind.IsValid() {
			return domain.NewValidationError("template", fmt.Sprintf("filesystem[%d].kind", i),
				fmt.Sprintf("%q is not a valid node kind", node.Kind), domain.ErrNodeInvalidKind)
		}

		if node.Mode != "" {
			if _, err := strconv.ParseUint(node.Mode, 8, 32); err != nil {
				return domain.NewValidationError("template", fmt.Sprintf("filesystem[%d].mode", i),
					fmt.Sprintf("%q is not an octal file mode", node.Mode), err)
			}
		}
	}
	return nil
}

func validateAccounts(accounts []domain.Account, nodes []domain.FSNode) *domain.ValidationError {
	dirs := make(map[string]bool)
	for _, node := range nodes {
		if node.Kind == domain.NodeDirectory {
			dirs[path.Clean(node.Path)] = true
		}
	}

	seen := make(map[string]bool, len(accounts))
	for i, acct := range accounts {
		if acct.Username == "" {
			return domain.NewValidationError("template", fmt.Sprintf("accounts[%d].username", i),
				"username is required", domain.ErrAccountNameRequired)
		}
		if seen[acct.Username] {
			return domain.NewValidationError("template", fmt.Sprintf("accounts[%d].username", i),
				fmt.Sprintf("%q appears more than once", acct.Username), domain.ErrAccountDuplicate)
		}
		seen[acct.Username] = true

		if acct.Password == "" {
			return domain.NewValidationError("template", fmt.Sprintf("accounts[%d].password", i),
				fmt.Sprintf("account %q has no password", acct.Username), domain.ErrAccountPasswordEmpty)
		}

		// Every account needs a home that resolves to a directory node;
		// a row without one renders a malformed passwd entry.
		if acct.Home == "" {
			return domain.NewValidationError("template", fmt.Sprintf("accounts[%d].home", i),
				fmt.Sprintf("account %q has no home directory", acct.Username),
				domain.ErrAccountHomeMissing)
		}
		if !dirs[path.Clean(acct.Home)] {
			return domain.NewValidationError("template", fmt.Sprintf("accounts[%d].home", i),
				fmt.Sprintf("home %q has no directory node in the filesystem", acct.Home),
				domain.ErrAccountHomeMissing)
		}
	}
	return nil
}

func validateCommands(commands []domain.CommandOverride) *domain.ValidationError {
	for i, cmd := range commands {
		if cmd.Name == "" {
			return domain.NewValidationError("template", fmt.Sprintf("commands[%d].name", i),
				"command name is required", domain.ErrCommandNameRequired)
		}
	}
	return nil
}
