package material

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	magic   = "MTRL"
	version = 1
)

// Binary is the default material layout: "MTRL", a little-endian uint16
// version, the shader name, then counted texture and constant tables.
// Strings are uint16 length-prefixed.
type Binary struct{}

var _ Codec = Binary{}

// Decode implements Codec.
func (Binary) Decode(data []byte) (*File, error) {
	r := &reader{buf: bytes.NewReader(data)}
	head := r.bytes(4)
	if r.err == nil && string(head) != magic {
		return nil, ErrInvalidMagic
	}
	if v := r.u16(); r.err == nil && v != version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	f := &File{Shader: r.str()}

	n := int(r.u16())
	for i := 0; i < n && r.err == nil; i++ {
		f.Textures = append(f.Textures, Texture{Path: r.str(), Flags: r.u16()})
	}
	n = int(r.u16())
	for i := 0; i < n && r.err == nil; i++ {
		c := Constant{ID: r.u32()}
		count := int(r.u16())
		for j := 0; j < count && r.err == nil; j++ {
			c.Values = append(c.Values, math.Float32frombits(r.u32()))
		}
		f.Constants = append(f.Constants, c)
	}
	if r.err != nil {
		return nil, r.err
	}
	return f, nil
}

// Encode implements Codec.
func (Binary) Encode(f *File) ([]byte, error) {
	if len(f.Textures) > math.MaxUint16 || len(f.Constants) > math.MaxUint16 {
		return nil, fmt.Errorf("material: too many entries")
	}
	var buf bytes.Buffer
	buf.WriteString(magic)
	le16(&buf, version)
	if err := writeString(&buf, f.Shader); err != nil {
		return nil, err
	}
	le16(&buf, uint16(len(f.Textures)))
	for _, t := range f.Textures {
		if err := writeString(&buf, t.Path); err != nil {
			return nil, err
		}
		le16(&buf, t.Flags)
	}
	le16(&buf, uint16(len(f.Constants)))
	for _, c := range f.Constants {
		if len(c.Values) > math.MaxUint16 {
			return nil, fmt.Errorf("material: constant %#x has too many values", c.ID)
		}
		le32(&buf, c.ID)
		le16(&buf, uint16(len(c.Values)))
		for _, v := range c.Values {
			le32(&buf, math.Float32bits(v))
		}
	}
	return buf.Bytes(), nil
}

func le16(w *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func le32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeString(w *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("material: string too long (%d bytes)", len(s))
	}
	le16(w, uint16(len(s)))
	w.WriteString(s)
	return nil
}

// reader latches the first error so decoding reads straight through.
type reader struct {
	buf *bytes.Reader
	err error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.buf, b); err != nil {
		r.err = ErrTruncated
		return nil
	}
	return b
}

func (r *reader) u16() uint16 {
	b := r.bytes(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) str() string {
	n := int(r.u16())
	return string(r.bytes(n))
}
