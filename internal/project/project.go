package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"texbake/internal/services"
	"texbake/internal/texture"
)

// Settings holds run-level defaults a project may carry.
type Settings struct {
	Name   string `toml:"name"`
	Target string `toml:"target"`
	Mode   *int   `toml:"packaging_mode"`
}

// Entry is one [[descriptor]] table.
type Entry struct {
	ID     string `toml:"id"`
	Parent string `toml:"parent"`
	Group  string `toml:"group"`
	Name   string `toml:"name"`

	Base   texture.Layers `toml:"base"`
	Normal texture.Layers `toml:"normal"`
	Mask   texture.Layers `toml:"mask"`

	Glow             string `toml:"glow"`
	Material         string `toml:"material"`
	NormalMask       string `toml:"normal_mask"`
	NormalCorrection string `toml:"normal_correction"`

	Destinations texture.Destinations `toml:"destinations"`
	Backup       *texture.Backup      `toml:"backup"`

	SkipNormalGeneration   bool `toml:"skip_normal_generation"`
	SkipMaskGeneration     bool `toml:"skip_mask_generation"`
	InvertNormalAlpha      bool `toml:"invert_normal_alpha"`
	InvertNormalGeneration bool `toml:"invert_normal_generation"`
}

type manifest struct {
	Project     Settings       `toml:"project"`
	Overrides   map[string]int `toml:"overrides"`
	Descriptors []Entry        `toml:"descriptor"`
}

// Project is a loaded manifest.
type Project struct {
	Path     string
	Settings Settings
	// Overrides maps group names to per-group packaging overrides, where 0
	// means the global mode and n selects mode n-1.
	Overrides map[string]int
	// Descriptors holds the top-level descriptors in manifest order. Children
	// are reachable through their parent.
	Descriptors []*texture.Descriptor
}

// Load reads and resolves the manifest at path.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}
	p, err := Parse(data, filepath.Dir(abs))
	if err != nil {
		return nil, err
	}
	p.Path = abs
	return p, nil
}

// Parse decodes manifest data, resolving relative inputs against dir.
func Parse(data []byte, dir string) (*Project, error) {
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, services.Wrap(services.ErrValidation, "project", "parse", "invalid manifest", err)
	}

	byID := make(map[string]*texture.Descriptor, len(m.Descriptors))
	built := make([]*texture.Descriptor, len(m.Descriptors))
	for i := range m.Descriptors {
		entry := &m.Descriptors[i]
		if strings.TrimSpace(entry.Name) == "" {
			return nil, services.Wrap(services.ErrValidation, "project", "parse",
				fmt.Sprintf("descriptor %d has no name", i+1), nil)
		}
		d := entry.descriptor(dir)
		built[i] = d
		if entry.ID == "" {
			continue
		}
		if _, dup := byID[entry.ID]; dup {
			return nil, services.Wrap(services.ErrValidation, "project", "parse",
				fmt.Sprintf("duplicate descriptor id %q", entry.ID), nil)
		}
		byID[entry.ID] = d
	}

	p := &Project{Settings: m.Project, Overrides: m.Overrides}
	if p.Overrides == nil {
		p.Overrides = map[string]int{}
	}
	if p.Settings.Target != "" && !filepath.IsAbs(p.Settings.Target) {
		p.Settings.Target = filepath.Join(dir, p.Settings.Target)
	}

	for i, entry := range m.Descriptors {
		d := built[i]
		if entry.Parent == "" {
			p.Descriptors = append(p.Descriptors, d)
			continue
		}
		parent, ok := byID[entry.Parent]
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "project", "parse",
				fmt.Sprintf("descriptor %q references unknown parent %q", entry.Name, entry.Parent), nil)
		}
		if parent == d {
			return nil, services.Wrap(services.ErrValidation, "project", "parse",
				fmt.Sprintf("descriptor %q is its own parent", entry.Name), nil)
		}
		if parent.IsChild {
			return nil, services.Wrap(services.ErrValidation, "project", "parse",
				fmt.Sprintf("descriptor %q has a child parent %q", entry.Name, entry.Parent), nil)
		}
		d.IsChild = true
		parent.Children = append(parent.Children, d)
	}

	for _, d := range p.Descriptors {
		for _, child := range d.Children {
			if len(child.Children) > 0 {
				return nil, services.Wrap(services.ErrValidation, "project", "parse",
					fmt.Sprintf("child %q cannot have children", child.Name), nil)
			}
		}
	}
	return p, nil
}

func (e *Entry) descriptor(dir string) *texture.Descriptor {
	group := e.Group
	if group == "" {
		group = e.Name
	}
	return &texture.Descriptor{
		Group:                  group,
		Name:                   e.Name,
		Base:                   resolveLayers(dir, e.Base),
		Normal:                 resolveLayers(dir, e.Normal),
		Mask:                   resolveLayers(dir, e.Mask),
		Glow:                   resolve(dir, e.Glow),
		Material:               resolve(dir, e.Material),
		NormalMask:             resolve(dir, e.NormalMask),
		NormalCorrection:       resolve(dir, e.NormalCorrection),
		Destinations:           e.Destinations,
		Backup:                 e.Backup,
		SkipNormalGeneration:   e.SkipNormalGeneration,
		SkipMaskGeneration:     e.SkipMaskGeneration,
		InvertNormalAlpha:      e.InvertNormalAlpha,
		InvertNormalGeneration: e.InvertNormalGeneration,
	}
}

func resolveLayers(dir string, l texture.Layers) texture.Layers {
	out := texture.Layers{Source: resolve(dir, l.Source)}
	for _, overlay := range l.Overlays {
		out.Overlays = append(out.Overlays, resolve(dir, overlay))
	}
	return out
}

func resolve(dir, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
