package packager

import (
	"fmt"
	"strings"

	"texbake/internal/texture"
)

// Mode controls how a group's descriptors become options.
type Mode int

const (
	// PerChannel creates one option per exported channel.
	PerChannel Mode = iota
	// PerDescriptor creates one option per descriptor.
	PerDescriptor
	// PerDescriptorUniversal is PerDescriptor with single-choice groups.
	PerDescriptorUniversal
	// SingleToggle folds the whole group into one "Enable" option.
	SingleToggle
)

func (m Mode) String() string {
	switch m {
	case PerChannel:
		return "per-channel"
	case PerDescriptor:
		return "per-descriptor"
	case PerDescriptorUniversal:
		return "per-descriptor-universal"
	case SingleToggle:
		return "single-toggle"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m >= PerChannel && m <= SingleToggle }

// ResolveMode picks the mode for group. An override of 0 defers to global;
// any other value is the mode plus one.
func ResolveMode(global Mode, overrides map[string]int, group string) Mode {
	if v, ok := overrides[group]; ok && v != 0 {
		return Mode(v - 1)
	}
	return global
}

const (
	TypeSingle = "Single"
	TypeMulti  = "Multi"
)

// Option is one selectable entry in a group.
type Option struct {
	Name     string            `json:"Name"`
	Priority int               `json:"Priority"`
	Files    map[string]string `json:"Files"`
}

func newOption(name string) *Option {
	return &Option{Name: name, Files: make(map[string]string)}
}

// Group is a named set of options written as one JSON file.
type Group struct {
	Name            string    `json:"Name"`
	Description     string    `json:"Description"`
	Priority        int       `json:"Priority"`
	Type            string    `json:"Type"`
	DefaultSettings int       `json:"DefaultSettings"`
	Options         []*Option `json:"Options"`
}

// NewGroup creates an empty group for size descriptors packaged with mode.
func NewGroup(name string, mode Mode, size int) *Group {
	typ := TypeMulti
	if mode == PerDescriptorUniversal && size > 1 {
		typ = TypeSingle
	}
	return &Group{
		Name: strings.NewReplacer("/", "-", `\`, "-").Replace(name),
		Type: typ,
	}
}

// Builder accumulates options for one group.
type Builder struct {
	group *Group
	mode  Mode
	size  int

	current    *Option
	alreadySet bool
	byChannel  map[texture.Channel]*Option
}

// NewBuilder packages into group. size is the number of descriptors in the
// group, children included.
func NewBuilder(group *Group, mode Mode, size int) *Builder {
	return &Builder{
		group:     group,
		mode:      mode,
		size:      size,
		byChannel: make(map[texture.Channel]*Option),
	}
}

// Group returns the group being built.
func (b *Builder) Group() *Group { return b.group }

// Begin starts a descriptor. In per-descriptor modes it opens the option the
// descriptor's channels are added to.
func (b *Builder) Begin(d *texture.Descriptor) {
	if b.mode == PerChannel {
		return
	}
	open := (!d.IsChild && b.mode != SingleToggle) || (b.mode == SingleToggle && !b.alreadySet)
	if open && d.HasContent() {
		b.current = b.add(b.descriptorOptionName(d))
		b.alreadySet = true
	}
}

// Add records that channel ch of d was exported to diskPath, which replaces
// dest in the target asset tree.
func (b *Builder) Add(d *texture.Descriptor, ch texture.Channel, dest, diskPath string) {
	var opt *Option
	if b.mode == PerChannel {
		opt = b.byChannel[ch]
		if !d.IsChild || opt == nil {
			opt = b.add(b.channelOptionName(d, ch))
			b.byChannel[ch] = opt
		}
	} else {
		if b.current == nil {
			b.current = b.add(b.descriptorOptionName(d))
			b.alreadySet = true
		}
		opt = b.current
	}
	opt.Files[dest] = diskPath
}

func (b *Builder) add(name string) *Option {
	opt := newOption(name)
	b.group.Options = append(b.group.Options, opt)
	return opt
}

func (b *Builder) channelOptionName(d *texture.Descriptor, ch texture.Channel) string {
	var name strings.Builder
	if b.size > 1 {
		name.WriteString(d.Name + " ")
	}
	name.WriteString(ch.String())
	if len(d.Children) > 0 {
		name.WriteString(" (Universal)")
	}
	return name.String()
}

func (b *Builder) descriptorOptionName(d *texture.Descriptor) string {
	if d.Name == d.Group || b.mode == SingleToggle {
		return "Enable"
	}
	if len(d.Children) > 0 {
		return d.Name + " (Universal)"
	}
	return d.Name
}
