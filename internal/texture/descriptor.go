package texture

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Layers is a channel input: a source image with optional overlays drawn on
// top of it in order.
type Layers struct {
	Source   string   `toml:"source" json:"source,omitempty"`
	Overlays []string `toml:"overlays" json:"overlays,omitempty"`
}

// Stack returns the non-empty layers bottom-up.
func (l Layers) Stack() []string {
	stack := make([]string, 0, 1+len(l.Overlays))
	if l.Source != "" {
		stack = append(stack, l.Source)
	}
	for _, overlay := range l.Overlays {
		if overlay != "" {
			stack = append(stack, overlay)
		}
	}
	return stack
}

// Empty reports whether the input has no layers at all.
func (l Layers) Empty() bool { return len(l.Stack()) == 0 }

// NeedsMerge reports whether the stack has to be flattened before export.
func (l Layers) NeedsMerge() bool { return len(l.Overlays) > 0 && !l.Empty() }

// Destinations names where each channel's output belongs in the target asset
// tree. An empty destination means the channel is not exported.
type Destinations struct {
	Base     string `toml:"base" json:"base,omitempty"`
	Normal   string `toml:"normal" json:"normal,omitempty"`
	Mask     string `toml:"mask" json:"mask,omitempty"`
	Material string `toml:"material" json:"material,omitempty"`
}

// For returns the destination of ch. Glow has no destination of its own.
func (d Destinations) For(ch Channel) string {
	switch ch {
	case Base:
		return d.Base
	case Normal:
		return d.Normal
	case Mask:
		return d.Mask
	case Material:
		return d.Material
	default:
		return ""
	}
}

// Backup holds fallback textures, relative to the resource root.
type Backup struct {
	Base            string `toml:"base" json:"base,omitempty"`
	BaseSecondary   string `toml:"base_secondary" json:"base_secondary,omitempty"`
	Normal          string `toml:"normal" json:"normal,omitempty"`
	IsFace          bool   `toml:"is_face" json:"is_face,omitempty"`
	PreferSecondary bool   `toml:"prefer_secondary" json:"prefer_secondary,omitempty"`
}

// Underlay returns the backup base drawn under the base channel.
func (b *Backup) Underlay() string {
	if b == nil {
		return ""
	}
	if b.PreferSecondary && !b.IsFace {
		return b.BaseSecondary
	}
	return b.Base
}

// Key is the backup reference folded into the descriptor fingerprint.
func (b *Backup) Key() string {
	if b == nil {
		return ""
	}
	if b.IsFace {
		return b.Base + b.BaseSecondary
	}
	return b.Underlay()
}

// Descriptor is one exportable texture set.
type Descriptor struct {
	Group string
	Name  string

	Base   Layers
	Normal Layers
	Mask   Layers

	Glow             string
	Material         string
	NormalMask       string
	NormalCorrection string

	Destinations Destinations
	Backup       *Backup

	SkipNormalGeneration   bool
	SkipMaskGeneration     bool
	InvertNormalAlpha      bool
	InvertNormalGeneration bool
	IsChild                bool

	Children []*Descriptor

	workDir string

	hashMu sync.Mutex
	hashes map[string]uint64
}

// Bind sets the directory that merged layer stacks are written under. It
// applies to the descriptor and all of its children.
func (d *Descriptor) Bind(workDir string) {
	d.workDir = workDir
	for _, child := range d.Children {
		if child != nil && child != d {
			child.Bind(workDir)
		}
	}
}

func (d *Descriptor) layers(ch Channel) Layers {
	switch ch {
	case Base:
		return d.Base
	case Normal:
		return d.Normal
	case Mask:
		return d.Mask
	default:
		return Layers{}
	}
}

// Final returns the path recipes read for ch: the merged stack when the
// channel has overlays, otherwise its source. Glow and Material have no
// stacks and return their inputs directly.
func (d *Descriptor) Final(ch Channel) string {
	switch ch {
	case Glow:
		return d.Glow
	case Material:
		return d.Material
	}
	l := d.layers(ch)
	if !l.NeedsMerge() {
		return l.Source
	}
	return filepath.Join(d.layerDir(), stackKey(l.Stack())+"_"+strings.ToLower(ch.String())+".png")
}

// LayerStack returns the images merged into Final(ch), bottom-up.
func (d *Descriptor) LayerStack(ch Channel) []string {
	return d.layers(ch).Stack()
}

// NeedsMerge reports whether ch must be flattened before export.
func (d *Descriptor) NeedsMerge(ch Channel) bool {
	return d.layers(ch).NeedsMerge()
}

// TempFiles lists the merged layer files owned by the descriptor.
func (d *Descriptor) TempFiles() []string {
	var files []string
	for _, ch := range []Channel{Base, Normal, Mask} {
		if d.NeedsMerge(ch) {
			files = append(files, d.Final(ch))
		}
	}
	return files
}

// CleanTempFiles removes the merged layer files owned by the descriptor.
// Files that are already gone are ignored.
func (d *Descriptor) CleanTempFiles() error {
	var errs []error
	for _, file := range d.TempFiles() {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", file, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Descriptor) layerDir() string {
	dir := d.workDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "texbake")
	}
	return filepath.Join(dir, "layers")
}

func stackKey(stack []string) string {
	sum := sha256.Sum256([]byte(strings.Join(stack, "|")))
	return hex.EncodeToString(sum[:8])
}

// HasContent reports whether any channel input is present.
func (d *Descriptor) HasContent() bool {
	return d.Final(Base) != "" || d.Final(Normal) != "" || d.Final(Mask) != "" ||
		d.Glow != "" || d.Material != ""
}

// LastHash returns the perceptual hash last recorded for a child's output.
func (d *Descriptor) LastHash(childPath string) (uint64, bool) {
	d.hashMu.Lock()
	defer d.hashMu.Unlock()
	h, ok := d.hashes[childPath]
	return h, ok
}

// RecordHash stores the perceptual hash for a child's output.
func (d *Descriptor) RecordHash(childPath string, hash uint64) {
	d.hashMu.Lock()
	defer d.hashMu.Unlock()
	if d.hashes == nil {
		d.hashes = make(map[string]uint64)
	}
	d.hashes[childPath] = hash
}

// Hashes returns a copy of the recorded child hashes.
func (d *Descriptor) Hashes() map[string]uint64 {
	d.hashMu.Lock()
	defer d.hashMu.Unlock()
	out := make(map[string]uint64, len(d.hashes))
	for k, v := range d.hashes {
		out[k] = v
	}
	return out
}

// LoadHashes merges previously persisted hashes into the descriptor.
func (d *Descriptor) LoadHashes(hashes map[string]uint64) {
	if len(hashes) == 0 {
		return
	}
	d.hashMu.Lock()
	defer d.hashMu.Unlock()
	if d.hashes == nil {
		d.hashes = make(map[string]uint64, len(hashes))
	}
	for k, v := range hashes {
		d.hashes[k] = v
	}
}

// Walk calls fn for d and every descendant, parents first.
func (d *Descriptor) Walk(fn func(*Descriptor)) {
	d.walk(fn, map[*Descriptor]bool{})
}

func (d *Descriptor) walk(fn func(*Descriptor), seen map[*Descriptor]bool) {
	if d == nil || seen[d] {
		return
	}
	seen[d] = true
	fn(d)
	for _, child := range d.Children {
		child.walk(fn, seen)
	}
}
