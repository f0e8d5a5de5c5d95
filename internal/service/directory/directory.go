// Package directory holds the static instrument and theme tables.
package directory

import (
	_ "embed"
	"fmt"
	"os"

	"ThemePulse/internal/domain/models"

	"gopkg.in/yaml.v3"
)

//go:embed themes.yaml
var defaultThemes []byte

type document struct {
	Instruments map[string]string `yaml:"instruments"`
	Themes      []models.Theme    `yaml:"themes"`
	Priority    []string          `yaml:"priority"`
}

// Directory maps instrument names to exchange codes and groups them into themes.
// It is immutable after construction and safe for concurrent readers.
type Directory struct {
	codeByName map[string]string
	nameByCode map[string]string
	themes     map[string]models.Theme
	order      []string
	priority   []string
}

// Default loads the embedded theme table.
func Default() (*Directory, error) {
	return Parse(defaultThemes)
}

// Load reads a theme table from path, or the embedded table when path is empty.
func Load(path string) (*Directory, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read themes: %w", err)
	}
	return Parse(b)
}

// Parse builds a Directory from a YAML document.
func Parse(b []byte) (*Directory, error) {
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse themes: %w", err)
	}

	d := &Directory{
		codeByName: make(map[string]string, len(doc.Instruments)),
		nameByCode: make(map[string]string, len(doc.Instruments)),
		themes:     make(map[string]models.Theme, len(doc.Themes)),
	}
	for name, code := range doc.Instruments {
		if prev, dup := d.nameByCode[code]; dup {
			return nil, fmt.Errorf("code %s assigned to both %s and %s", code, prev, name)
		}
		d.codeByName[name] = code
		d.nameByCode[code] = name
	}
	for _, th := range doc.Themes {
		if _, dup := d.themes[th.Name]; dup {
			return nil, fmt.Errorf("duplicate theme %q", th.Name)
		}
		for _, m := range th.Members {
			if _, ok := d.codeByName[m]; !ok {
				return nil, fmt.Errorf("theme %q: member %q has no code", th.Name, m)
			}
		}
		d.themes[th.Name] = th
		d.order = append(d.order, th.Name)
	}
	for _, p := range doc.Priority {
		if _, ok := d.themes[p]; !ok {
			return nil, fmt.Errorf("priority theme %q is not defined", p)
		}
		d.priority = append(d.priority, p)
	}
	return d, nil
}

func (d *Directory) CodeByName(name string) (string, bool) {
	c, ok := d.codeByName[name]
	return c, ok
}

func (d *Directory) NameByCode(code string) (string, bool) {
	n, ok := d.nameByCode[code]
	return n, ok
}

// Theme returns a copy of the named theme.
func (d *Directory) Theme(name string) (models.Theme, bool) {
	th, ok := d.themes[name]
	if !ok {
		return models.Theme{}, false
	}
	th.Members = append([]string(nil), th.Members...)
	th.Keywords = append([]string(nil), th.Keywords...)
	return th, true
}

// ThemeNames lists every theme in file order.
func (d *Directory) ThemeNames() []string {
	return append([]string(nil), d.order...)
}

// PriorityThemes lists the themes that receive live data, in display order.
func (d *Directory) PriorityThemes() []string {
	return append([]string(nil), d.priority...)
}

// IsPriority reports whether name is a live theme.
func (d *Directory) IsPriority(name string) bool {
	for _, p := range d.priority {
		if p == name {
			return true
		}
	}
	return false
}

// ListThemeMembers returns the first limit member names of a theme; limit<=0 returns all.
func (d *Directory) ListThemeMembers(theme string, limit int) ([]string, bool) {
	th, ok := d.themes[theme]
	if !ok {
		return nil, false
	}
	n := len(th.Members)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]string(nil), th.Members[:n]...), true
}

// SubscriptionCodes returns the deduplicated codes of the first perTheme members of every
// priority theme, in priority order, capped at max.
func (d *Directory) SubscriptionCodes(perTheme, max int) []string {
	seen := make(map[string]struct{})
	var codes []string
	for _, p := range d.priority {
		members, _ := d.ListThemeMembers(p, perTheme)
		for _, m := range members {
			code := d.codeByName[m]
			if _, dup := seen[code]; dup {
				continue
			}
			if max > 0 && len(codes) >= max {
				return codes
			}
			seen[code] = struct{}{}
			codes = append(codes, code)
		}
	}
	return codes
}
