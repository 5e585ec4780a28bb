package material_test

import (
	"errors"
	"image/color"
	"testing"

	"texbake/internal/material"
)

func donor() *material.File {
	return &material.File{
		Shader:   "skin.shpk",
		Textures: []material.Texture{{Path: "old_d"}, {Path: "old_n"}, {Path: "old_m"}},
		Constants: []material.Constant{
			{ID: 0x1234, Values: []float32{9}},
			{ID: material.EmissiveColorID, Values: []float32{0, 0, 0, 0}},
		},
	}
}

func TestPatchSetsSlotsAndEmissive(t *testing.T) {
	f := donor()
	red := color.NRGBA{R: 255, A: 255}
	if err := material.Patch(f, "a", "b", "c", &red); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	for i, want := range []string{"a", "b", "c"} {
		if f.Textures[i].Path != want {
			t.Errorf("slot %d = %q, want %q", i, f.Textures[i].Path, want)
		}
	}
	got := f.Constant(material.EmissiveColorID).Values
	if got[0] != 1.0 || got[1] != 0 || got[2] != 0 || got[3] != 0 {
		t.Fatalf("emissive = %v, want [1 0 0 0]", got)
	}
	if f.Constant(0x1234).Values[0] != 9 {
		t.Fatal("unrelated constant changed")
	}
}

func TestPatchWithoutBaseShiftsSlots(t *testing.T) {
	f := donor()
	if err := material.Patch(f, "", "n", "m", nil); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if f.Textures[0].Path != "n" || f.Textures[1].Path != "m" || f.Textures[2].Path != "old_m" {
		t.Fatalf("unexpected slots %+v", f.Textures)
	}
	if f.Constant(material.EmissiveColorID).Values[0] != 0 {
		t.Fatal("emissive should be untouched without glow")
	}
}

func TestPatchNormalizesPartialAlpha(t *testing.T) {
	f := donor()
	c := color.NRGBA{R: 51, G: 102, B: 255, A: 40}
	if err := material.Patch(f, "a", "b", "c", &c); err != nil {
		t.Fatal(err)
	}
	got := f.Constant(material.EmissiveColorID).Values
	want := []float32{51.0 / 255, 102.0 / 255, 1}
	for i := range want {
		if diff := got[i] - want[i]; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("component %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPatchTooFewSlots(t *testing.T) {
	f := &material.File{Textures: []material.Texture{{}}}
	if err := material.Patch(f, "a", "b", "c", nil); !errors.Is(err, material.ErrSlotOutOfRange) {
		t.Fatalf("expected ErrSlotOutOfRange, got %v", err)
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	in := donor()
	in.Textures[1].Flags = 0x8000
	data, err := material.Binary{}.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := material.Binary{}.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Shader != in.Shader || len(out.Textures) != 3 || out.Textures[1].Flags != 0x8000 {
		t.Fatalf("decoded %+v", out)
	}
	if c := out.Constant(material.EmissiveColorID); c == nil || len(c.Values) != 4 {
		t.Fatalf("emissive constant lost: %+v", out.Constants)
	}
}

func TestBinaryDecodeErrors(t *testing.T) {
	if _, err := (material.Binary{}).Decode([]byte("NOPE\x01\x00")); !errors.Is(err, material.ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
	if _, err := (material.Binary{}).Decode([]byte("MTRL\x02\x00")); !errors.Is(err, material.ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
	data, _ := material.Binary{}.Encode(donor())
	if _, err := (material.Binary{}).Decode(data[:len(data)-3]); !errors.Is(err, material.ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, err := (material.Binary{}).Decode([]byte("MT")); !errors.Is(err, material.ErrTruncated) {
		t.Fatalf("expected ErrTruncated on short header, got %v", err)
	}
}
