package texture_test

import (
	"path/filepath"
	"testing"

	"texbake/internal/texture"
)

func TestAddSuffix(t *testing.T) {
	tests := []struct {
		in, suffix, want string
	}{
		{"", "_x", ""},
		{"a.png", "_alpha", "a_alpha.png"},
		{filepath.Join("dir", "tex_d.tex"), "_generated", filepath.Join("dir", "tex_d_generated.tex")},
		{filepath.Join("dir", "noext"), "_x", filepath.Join("dir", "noext_x")},
	}
	for _, tt := range tests {
		if got := texture.AddSuffix(tt.in, tt.suffix); got != tt.want {
			t.Errorf("AddSuffix(%q, %q) = %q, want %q", tt.in, tt.suffix, got, tt.want)
		}
	}
}

func TestReplaceExtension(t *testing.T) {
	if got := texture.ReplaceExtension("x/y.tex", ".png"); got != "x/y.png" {
		t.Fatalf("got %q", got)
	}
	if got := texture.ReplaceExtension("", ".png"); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestRedirectToDisk(t *testing.T) {
	for _, in := range []string{"chara/human/c1401/skin_d.tex", `chara\human\c1401\skin_d.tex`, "skin_d.tex"} {
		if got := texture.RedirectToDisk(in); got != "do_not_edit/textures/skin_d.tex" {
			t.Errorf("RedirectToDisk(%q) = %q", in, got)
		}
	}
}

func TestDiskPath(t *testing.T) {
	target := filepath.Join("mods", "mine")
	got := texture.DiskPath("chara/body/b_d.tex", target, "abc")
	want := filepath.Join(target, "do_not_edit", "textures", "b_d_abc_generated.tex")
	if got != want {
		t.Fatalf("DiskPath = %q, want %q", got, want)
	}
	if texture.DiskPath("", target, "abc") != "" {
		t.Fatal("empty destination should give empty path")
	}
}

func TestBakedNames(t *testing.T) {
	p := filepath.Join("w", "child_d_baseTexBaked.png")
	if got := texture.BakedSibling(p, "alpha"); got != filepath.Join("w", "child_d_alpha_baseTexBaked.png") {
		t.Errorf("BakedSibling = %q", got)
	}
	if got := texture.BakedPart(p, "rgb"); got != filepath.Join("w", "child_d_rgb.png") {
		t.Errorf("BakedPart = %q", got)
	}
	if !texture.IsBaked(p) || texture.IsBaked("plain.png") {
		t.Error("IsBaked misclassified paths")
	}
}

func TestDonorMaterial(t *testing.T) {
	if got := texture.DonorMaterial("/res", "chara/eye/e_d.tex"); got != filepath.Join("/res", "res", "materials", "eye_glow.mtrl") {
		t.Errorf("eye donor = %q", got)
	}
	if got := texture.DonorMaterial("/res", "chara/body/b_d.tex"); got != filepath.Join("/res", "res", "materials", "skin_glow.mtrl") {
		t.Errorf("skin donor = %q", got)
	}
}
