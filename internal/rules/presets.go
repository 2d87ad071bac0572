package rules

import (
	"embed"

	"github.com/entreaty/entreaty/internal/models"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// presetCache holds parsed presets to avoid re-parsing
var presetCache = map[string]*models.RuleSet{}

// presetFiles maps preset names to embedded file paths
var presetFiles = map[string]string{
	"ugc-baseline": "presets/ugc-baseline.yaml",
}

// GetPreset returns a built-in ruleset by name, or nil if not found.
func GetPreset(name string) *models.RuleSet {
	if cached, ok := presetCache[name]; ok {
		return cached
	}

	path, ok := presetFiles[name]
	if !ok {
		return nil
	}

	data, err := presetFS.ReadFile(path)
	if err != nil {
		return nil
	}

	rs, err := Parse(data)
	if err != nil {
		return nil
	}

	presetCache[name] = rs
	return rs
}

// ListPresetNames returns the names of all built-in rulesets.
func ListPresetNames() []string {
	names := make([]string, 0, len(presetFiles))
	for name := range presetFiles {
		names = append(names, name)
	}
	return names
}
