package data

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Built-in phase group names a manifest entry can be placed in.
const (
	PhaseFixedUpdate = "fixed_update"
	PhaseEarlyUpdate = "early_update"
	PhaseUpdate      = "update"
	PhaseLateUpdate  = "late_update"
)

var phases = map[string]bool{
	PhaseFixedUpdate: true,
	PhaseEarlyUpdate: true,
	PhaseUpdate:      true,
	PhaseLateUpdate:  true,
}

// IsPhase reports whether name is one of the built-in phase groups.
func IsPhase(name string) bool { return phases[name] }

// GroupEntry declares a data-defined system group.
type GroupEntry struct {
	Name     string `yaml:"name"`
	In       string `yaml:"in"`    // phase or another group; default update
	Order    string `yaml:"order"` // "", "first" or "last"
	AutoSort *bool  `yaml:"auto_sort"`
}

// Sorted reports whether the group orders its members automatically.
func (g GroupEntry) Sorted() bool { return g.AutoSort == nil || *g.AutoSort }

// SystemEntry declares a Lua-scripted system.
type SystemEntry struct {
	Name     string   `yaml:"name"`
	Script   string   `yaml:"script"` // Lua global table, defaults to Name
	In       string   `yaml:"in"`
	Order    string   `yaml:"order"`
	Before   []string `yaml:"before"`
	After    []string `yaml:"after"`
	Reads    []string `yaml:"reads"`
	Writes   []string `yaml:"writes"`
	Disabled bool     `yaml:"disabled"`
}

// ScriptTable returns the Lua table that holds the system's hooks.
func (s SystemEntry) ScriptTable() string {
	if s.Script != "" {
		return s.Script
	}
	return s.Name
}

// Manifest is the schedule description loaded from YAML.
type Manifest struct {
	Groups  []GroupEntry  `yaml:"groups"`
	Systems []SystemEntry `yaml:"systems"`
}

// LoadManifest loads and validates a schedule manifest.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(raw)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// ParseManifest decodes and validates manifest YAML. Unknown keys are errors.
func ParseManifest(raw []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	for i := range m.Groups {
		if m.Groups[i].In == "" {
			m.Groups[i].In = PhaseUpdate
		}
	}
	for i := range m.Systems {
		if m.Systems[i].In == "" {
			m.Systems[i].In = PhaseUpdate
		}
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	groups := make(map[string]bool, len(m.Groups))
	seen := make(map[string]string)
	claim := func(kind, name string) error {
		if name == "" {
			return fmt.Errorf("%s with empty name", kind)
		}
		if IsPhase(name) {
			return fmt.Errorf("%s %q shadows a built-in phase", kind, name)
		}
		if prev, dup := seen[name]; dup {
			return fmt.Errorf("%s %q already declared as a %s", kind, name, prev)
		}
		seen[name] = kind
		return nil
	}
	for _, g := range m.Groups {
		if err := claim("group", g.Name); err != nil {
			return err
		}
		groups[g.Name] = true
	}
	for _, s := range m.Systems {
		if err := claim("system", s.Name); err != nil {
			return err
		}
	}

	checkPlacement := func(kind, name, in, order string) error {
		if !IsPhase(in) && !groups[in] {
			return fmt.Errorf("%s %q placed in unknown group %q", kind, name, in)
		}
		if in == name {
			return fmt.Errorf("%s %q placed in itself", kind, name)
		}
		switch order {
		case "", "first", "last":
		default:
			return fmt.Errorf("%s %q: order must be first or last, got %q", kind, name, order)
		}
		return nil
	}
	for _, g := range m.Groups {
		if err := checkPlacement("group", g.Name, g.In, g.Order); err != nil {
			return err
		}
	}
	for _, s := range m.Systems {
		if err := checkPlacement("system", s.Name, s.In, s.Order); err != nil {
			return err
		}
	}
	return nil
}

// GroupOrder returns manifest groups so that every group comes after the
// group it is placed in. Groups nested in a loop are reported as an error.
func (m *Manifest) GroupOrder() ([]GroupEntry, error) {
	byName := make(map[string]GroupEntry, len(m.Groups))
	for _, g := range m.Groups {
		byName[g.Name] = g
	}
	out := make([]GroupEntry, 0, len(m.Groups))
	state := make(map[string]int, len(m.Groups)) // 1 = visiting, 2 = done
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case 1:
			return fmt.Errorf("group %q is nested in itself via %v", name, append(path, name))
		case 2:
			return nil
		}
		state[name] = 1
		g := byName[name]
		if !IsPhase(g.In) {
			if err := visit(g.In, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = 2
		out = append(out, g)
		return nil
	}
	for _, g := range m.Groups {
		if err := visit(g.Name, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}
