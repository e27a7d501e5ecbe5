package template

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/honeymesh/internal/core/domain"
)

// =============================================================================
// Template Document Types
// =============================================================================

// The YAML document mirrors the domain types field for field. Decoding is
// strict: unknown keys are rejected so a typo in a template surfaces as a
// ParseError naming the key instead of a silently ignored field.

type templateDoc struct {
	Name        string       `yaml:"name"`
	Industry    string       `yaml:"industry"`
	Description string       `yaml:"description"`
	Version     string       `yaml:"version"`
	Settings    settingsDoc  `yaml:"settings"`
	Filesystem  []nodeDoc    `yaml:"filesystem"`
	Accounts    []accountDoc `yaml:"accounts"`
	Commands    []commandDoc `yaml:"commands"`
}

type settingsDoc struct {
	Hostname  string `yaml:"hostname"`
	SSHBanner string `yaml:"ssh_banner"`
	Timezone  string `yaml:"timezone"`
}

type nodeDoc struct {
	Path    string `yaml:"path"`
	Kind    string `yaml:"kind"`
	Content string `yaml:"content"`
	Mode    string `yaml:"mode"`
	Owner   string `yaml:"owner"`
}

type accountDoc struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UID      int    `yaml:"uid"`
	GID      int    `yaml:"gid"`
	Home     string `yaml:"home"`
	Shell    string `yaml:"shell"`
	Gecos    string `yaml:"gecos"`
}

type commandDoc struct {
	Name    string            `yaml:"name"`
	Outputs map[string]string `yaml:"outputs"`
}

// =============================================================================
// Loader
// =============================================================================

// ParseTemplate decodes a YAML template document into a domain Template.
// The result is parsed but not yet validated; callers run ValidateTemplate
// before persisting or expanding it.
func ParseTemplate(yamlContent string) (*domain.Template, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	dec := yaml.NewDecoder(bytes.NewReader([]byte(yamlContent)))
	dec.KnownFields(true)

	var doc templateDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, NewParseError("", err.Error(), ErrInvalidYAML)
	}

	tpl := &domain.Template{
		Name:        doc.Name,
		Slug:        domain.GenerateSlug(doc.Name),
		Industry:    doc.Industry,
		Description: doc.Description,
		Version:     doc.Version,
		Settings: domain.TemplateSettings{
			Hostname:  doc.Settings.Hostname,
			SSHBanner: doc.Settings.SSHBanner,
			Timezone:  doc.Settings.Timezone,
		},
	}

	for _, n := range doc.Filesystem {
		tpl.Filesystem = append(tpl.Filesystem, domain.FSNode{
			Path:    n.Path,
			Kind:    domain.NodeKind(n.Kind),
			Content: n.Content,
			Mode:    n.Mode,
			Owner:   n.Owner,
		})
	}

	for _, a := range doc.Accounts {
		tpl.Accounts = append(tpl.Accounts, domain.Account{
			Username: a.Username,
			Password: a.Password,
			UID:      a.UID,
			GID:      a.GID,
			Home:     a.Home,
			Shell:    a.Shell,
			Gecos:    a.Gecos,
		})
	}

	for _, c := range doc.Commands {
		tpl.Commands = append(tpl.Commands, domain.CommandOverride{
			Name:    c.Name,
			Outputs: c.Outputs,
		})
	}

	return tpl, nil
}
