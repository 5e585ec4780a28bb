// Package material reads and patches donor material files: the ordered
// texture slots a shader samples and the numeric shader constants it reads.
package material

import (
	"errors"
	"fmt"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// EmissiveColorID is the shader constant holding the emissive RGB.
const EmissiveColorID uint32 = 0x38A64362

var (
	ErrInvalidMagic       = errors.New("material: invalid magic")
	ErrUnsupportedVersion = errors.New("material: unsupported version")
	ErrTruncated          = errors.New("material: truncated data")
	ErrSlotOutOfRange     = errors.New("material: texture slot out of range")
)

// Texture is one sampler slot.
type Texture struct {
	Path  string
	Flags uint16
}

// Constant is a shader constant addressed by a stable id.
type Constant struct {
	ID     uint32
	Values []float32
}

// File is a decoded material.
type File struct {
	Shader    string
	Textures  []Texture
	Constants []Constant
}

// Constant returns the constant with id, or nil.
func (f *File) Constant(id uint32) *Constant {
	for i := range f.Constants {
		if f.Constants[i].ID == id {
			return &f.Constants[i]
		}
	}
	return nil
}

// Codec converts material files to and from bytes.
type Codec interface {
	Decode(data []byte) (*File, error)
	Encode(f *File) ([]byte, error)
}

// Patch points the material at the exported textures and, when glow is set,
// tints the emissive constant with it.
//
// The base path fills slot 0 only when non-empty; normal and mask always
// take the next two slots. A material without the emissive constant is left
// untinted.
func Patch(f *File, base, normal, mask string, glow *color.NRGBA) error {
	paths := make([]string, 0, 3)
	if base != "" {
		paths = append(paths, base)
	}
	paths = append(paths, normal, mask)
	if len(f.Textures) < len(paths) {
		return fmt.Errorf("%w: need %d slots, material has %d", ErrSlotOutOfRange, len(paths), len(f.Textures))
	}
	for i, p := range paths {
		f.Textures[i].Path = p
	}

	if glow == nil {
		return nil
	}
	constant := f.Constant(EmissiveColorID)
	if constant == nil {
		return nil
	}
	opaque := *glow
	opaque.A = 255
	c, _ := colorful.MakeColor(opaque)
	rgb := []float32{float32(c.R), float32(c.G), float32(c.B)}
	for i, v := range rgb {
		if i < len(constant.Values) {
			constant.Values[i] = v
		} else {
			constant.Values = append(constant.Values, v)
		}
	}
	return nil
}
