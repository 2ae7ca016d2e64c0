package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/piwi3910/CoilCut/internal/model"
	"gopkg.in/yaml.v3"
)

// Preset is a named set of engine parameters.
type Preset struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	BuiltIn     bool         `yaml:"-"`
	Params      model.Params `yaml:"params"`
}

// UnmarshalYAML starts from the default parameters so a preset only needs
// to list the values it changes.
func (p *Preset) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Name        string    `yaml:"name"`
		Description string    `yaml:"description"`
		Params      yaml.Node `yaml:"params"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	params := model.DefaultParams()
	if !raw.Params.IsZero() {
		if err := raw.Params.Decode(&params); err != nil {
			return fmt.Errorf("preset %q: %w", raw.Name, err)
		}
	}
	*p = Preset{Name: raw.Name, Description: raw.Description, Params: params}
	return nil
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// DefaultPresetsPath returns ~/.coilcut/presets.yaml.
func DefaultPresetsPath() string {
	return filepath.Join(DefaultDir(), "presets.yaml")
}

// BuiltInPresets returns the presets shipped with the application.
func BuiltInPresets() []Preset {
	def := model.DefaultParams()

	tight := def
	tight.ExcessMarginFactor = 1.50
	tight.MinRemainderM = 300
	tight.CoverageMargin = 0.90

	clean := def
	clean.EdgeWasteMinMM = 5
	clean.EdgeWasteMaxMM = 30
	clean.WastePenaltyFactor = 0.05

	setups := def
	setups.Objective = model.ObjectiveLexicographic

	return []Preset{
		{Name: "default", Description: "Production defaults", BuiltIn: true, Params: def},
		{Name: "tight-stock", Description: "Scarce material: wider excess, keep 300 m remainders", BuiltIn: true, Params: tight},
		{Name: "clean-edges", Description: "Narrow edge trim window, stronger waste penalty", BuiltIn: true, Params: clean},
		{Name: "fewest-setups", Description: "Minimise knife setups before anything else", BuiltIn: true, Params: setups},
	}
}

// SavePresets writes custom presets to a YAML file. Built-in presets are
// never written.
func SavePresets(path string, presets []Preset) error {
	var custom []Preset
	for _, p := range presets {
		if !p.BuiltIn {
			custom = append(custom, p)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(presetFile{Presets: custom})
	if err != nil {
		return fmt.Errorf("failed to marshal presets: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadPresets loads custom presets from a YAML file.
// Returns an empty slice if the file does not exist.
func LoadPresets(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Preset{}, nil
		}
		return nil, err
	}

	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}
	for i, p := range file.Presets {
		if p.Name == "" {
			return nil, fmt.Errorf("preset %d has no name", i+1)
		}
	}
	if file.Presets == nil {
		return []Preset{}, nil
	}
	return file.Presets, nil
}

// AllPresets returns the built-in presets followed by the custom presets at
// path, sorted by name within each group. Custom presets shadow built-ins
// of the same name.
func AllPresets(path string) ([]Preset, error) {
	custom, err := LoadPresets(path)
	if err != nil {
		return nil, err
	}
	shadowed := make(map[string]bool, len(custom))
	for _, p := range custom {
		shadowed[p.Name] = true
	}
	var all []Preset
	for _, p := range BuiltInPresets() {
		if !shadowed[p.Name] {
			all = append(all, p)
		}
	}
	sort.SliceStable(custom, func(i, j int) bool { return custom[i].Name < custom[j].Name })
	return append(all, custom...), nil
}

// FindPreset looks up a preset by name.
func FindPreset(presets []Preset, name string) (Preset, bool) {
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
