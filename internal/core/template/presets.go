package template

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/honeymesh/internal/core/domain"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// =============================================================================
// Built-in Presets
// =============================================================================

// PresetSlugs lists the built-in template slugs in sorted order.
func PresetSlugs() ([]string, error) {
	entries, err := presetFS.ReadDir("presets")
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}

	slugs := make([]string, 0, len(entries))
	for _, entry := range entries {
		slugs = append(slugs, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(slugs)
	return slugs, nil
}

// LoadPreset parses and validates one built-in template by slug.
func LoadPreset(slug string) (*domain.Template, error) {
	raw, err := presetFS.ReadFile("presets/" + slug + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPreset, slug)
	}

	tpl, err := ParseTemplate(string(raw))
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", slug, err)
	}
	if verr := ValidateTemplate(tpl); verr != nil {
		return nil, fmt.Errorf("preset %s: %w", slug, verr)
	}
	return tpl, nil
}

// LoadPresets parses and validates every built-in template.
func LoadPresets() ([]*domain.Template, error) {
	slugs, err := PresetSlugs()
	if err != nil {
		return nil, err
	}

	templates := make([]*domain.Template, 0, len(slugs))
	for _, slug := range slugs {
		tpl, err := LoadPreset(slug)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, nil
}
