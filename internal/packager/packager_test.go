package packager_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"texbake/internal/packager"
	"texbake/internal/texture"
)

func TestResolveMode(t *testing.T) {
	overrides := map[string]int{"Body": 0, "Face": 4, "Hair": 1}
	tests := []struct {
		group string
		want  packager.Mode
	}{
		{"Body", packager.PerDescriptor},
		{"Face", packager.SingleToggle},
		{"Hair", packager.PerChannel},
		{"Tail", packager.PerDescriptor},
	}
	for _, tt := range tests {
		t.Run(tt.group, func(t *testing.T) {
			if got := packager.ResolveMode(packager.PerDescriptor, overrides, tt.group); got != tt.want {
				t.Fatalf("ResolveMode = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewGroupTypeAndName(t *testing.T) {
	if g := packager.NewGroup(`Body/Alt\Two`, packager.PerDescriptorUniversal, 2); g.Name != "Body-Alt-Two" || g.Type != packager.TypeSingle {
		t.Fatalf("unexpected group %+v", g)
	}
	if g := packager.NewGroup("Body", packager.PerDescriptorUniversal, 1); g.Type != packager.TypeMulti {
		t.Fatalf("single-descriptor group should be Multi, got %s", g.Type)
	}
	if g := packager.NewGroup("Body", packager.PerChannel, 5); g.Type != packager.TypeMulti {
		t.Fatalf("per-channel group should be Multi, got %s", g.Type)
	}
}

func descriptor(name, group string, child bool) *texture.Descriptor {
	return &texture.Descriptor{Name: name, Group: group, IsChild: child, Base: texture.Layers{Source: name + ".png"}}
}

func TestPerChannelOptions(t *testing.T) {
	parent := descriptor("Tattoo", "Body", false)
	child := descriptor("Tattoo Alt", "Body", true)
	parent.Children = []*texture.Descriptor{child}

	group := packager.NewGroup("Body", packager.PerChannel, 2)
	b := packager.NewBuilder(group, packager.PerChannel, 2)
	b.Add(parent, texture.Base, "chara/a_d.tex", "do_not_edit/textures/a.tex")
	b.Add(parent, texture.Normal, "chara/a_n.tex", "do_not_edit/textures/a_n.tex")
	b.Add(child, texture.Base, "chara/b_d.tex", "do_not_edit/textures/b.tex")

	if len(group.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(group.Options))
	}
	if group.Options[0].Name != "Tattoo Base (Universal)" || group.Options[1].Name != "Tattoo Normal (Universal)" {
		t.Fatalf("unexpected names %q, %q", group.Options[0].Name, group.Options[1].Name)
	}
	if len(group.Options[0].Files) != 2 || group.Options[0].Files["chara/b_d.tex"] == "" {
		t.Fatalf("child file not merged into base option: %+v", group.Options[0].Files)
	}
}

func TestPerChannelSingleDescriptorOmitsName(t *testing.T) {
	d := descriptor("Tattoo", "Body", false)
	group := packager.NewGroup("Body", packager.PerChannel, 1)
	packager.NewBuilder(group, packager.PerChannel, 1).Add(d, texture.Mask, "m", "m_gen")
	if group.Options[0].Name != "Mask" {
		t.Fatalf("option name = %q", group.Options[0].Name)
	}
}

func TestPerDescriptorOptions(t *testing.T) {
	enable := descriptor("Body", "Body", false)
	named := descriptor("Scars", "Body", false)
	child := descriptor("Scars Alt", "Body", true)
	named.Children = []*texture.Descriptor{child}

	group := packager.NewGroup("Body", packager.PerDescriptor, 3)
	b := packager.NewBuilder(group, packager.PerDescriptor, 3)
	for _, d := range []*texture.Descriptor{enable, named, child} {
		b.Begin(d)
		b.Add(d, texture.Base, d.Name+"_dest", d.Name+"_disk")
	}

	if len(group.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(group.Options))
	}
	if group.Options[0].Name != "Enable" || group.Options[1].Name != "Scars (Universal)" {
		t.Fatalf("unexpected names %q, %q", group.Options[0].Name, group.Options[1].Name)
	}
	if len(group.Options[1].Files) != 2 {
		t.Fatalf("child should join the parent option: %+v", group.Options[1].Files)
	}
}

func TestSingleToggleCreatesOneOption(t *testing.T) {
	group := packager.NewGroup("Body", packager.SingleToggle, 3)
	b := packager.NewBuilder(group, packager.SingleToggle, 3)
	for i := 0; i < 3; i++ {
		d := descriptor(fmt.Sprintf("D%d", i), "Body", false)
		b.Begin(d)
		b.Add(d, texture.Base, d.Name, d.Name)
	}
	if len(group.Options) != 1 || group.Options[0].Name != "Enable" || len(group.Options[0].Files) != 3 {
		t.Fatalf("unexpected options %+v", group.Options)
	}
}

func TestOrphanChildGetsOption(t *testing.T) {
	group := packager.NewGroup("Body", packager.PerDescriptor, 1)
	b := packager.NewBuilder(group, packager.PerDescriptor, 1)
	child := descriptor("Alt", "Body", true)
	b.Begin(child)
	b.Add(child, texture.Base, "d", "p")
	if len(group.Options) != 1 {
		t.Fatalf("expected an option for an orphan child, got %d", len(group.Options))
	}
}

func groupWith(n int) *packager.Group {
	g := packager.NewGroup("Tattoos", packager.PerDescriptor, n)
	for i := 0; i < n; i++ {
		g.Options = append(g.Options, &packager.Option{Name: fmt.Sprint(i), Files: map[string]string{}})
	}
	return g
}

func TestSplit65(t *testing.T) {
	parts := packager.Split(groupWith(65), packager.MaxOptions)
	if len(parts) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(parts))
	}
	for i, want := range []int{32, 32, 1} {
		if got := len(parts[i].Options); got != want {
			t.Errorf("part %d has %d options, want %d", i, got, want)
		}
		if parts[i].Name != fmt.Sprintf("Tattoos (%d)", i+1) {
			t.Errorf("part %d name %q", i, parts[i].Name)
		}
		if parts[i].Description != " -generated" {
			t.Errorf("part %d description %q", i, parts[i].Description)
		}
	}
}

func TestSplitTagsOnce(t *testing.T) {
	g := groupWith(40)
	g.Description = "Body paint"
	packager.Split(g, packager.MaxOptions)
	parts := packager.Split(g, packager.MaxOptions)
	for i, part := range parts {
		if part.Description != "Body paint -generated" {
			t.Fatalf("part %d description %q", i, part.Description)
		}
	}
}

func TestSplitKeepsSmallAndSingleGroups(t *testing.T) {
	small := packager.Split(groupWith(32), packager.MaxOptions)
	if len(small) != 1 || small[0].Description != " -generated" {
		t.Fatalf("32 options should stay one group: %+v", small)
	}
	single := groupWith(40)
	single.Type = packager.TypeSingle
	if parts := packager.Split(single, packager.MaxOptions); len(parts) != 1 {
		t.Fatalf("single groups are never split, got %d", len(parts))
	}
}

func TestWriteAndClean(t *testing.T) {
	dir := t.TempDir()
	paths, err := packager.Write(dir, 1, groupWith(2))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(paths) != 1 || filepath.Base(paths[0]) != "group_001_tattoos.json" {
		t.Fatalf("unexpected paths %v", paths)
	}
	split, err := packager.Write(dir, 2, groupWith(33))
	if err != nil {
		t.Fatalf("Write split: %v", err)
	}
	if len(split) != 2 || filepath.Base(split[1]) != "group_002_tattoos (1).json" {
		t.Fatalf("unexpected split paths %v", split)
	}
	if paths, _ := packager.Write(dir, 3, groupWith(0)); len(paths) != 0 {
		t.Fatal("empty group should not be written")
	}

	got, err := packager.ReadGroup(paths[0])
	if err != nil {
		t.Fatalf("ReadGroup: %v", err)
	}
	if !strings.Contains(got.Description, packager.GeneratedTag) || len(got.Options) != 2 {
		t.Fatalf("decoded group %+v", got)
	}

	sub := filepath.Join(dir, "do_not_edit", "textures")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	generated := filepath.Join(sub, "body_abc_generated.tex")
	manual := filepath.Join(dir, "default_mod.json")
	keep := filepath.Join(sub, "hand_made.tex")
	for path, body := range map[string]string{
		generated: "x",
		manual:    `{"Name":"Manual","Description":"hand written"}`,
		keep:      "y",
	} {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := packager.Clean(dir)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(removed) != 4 {
		t.Fatalf("expected 4 removals, got %v", removed)
	}
	for _, path := range []string{manual, keep} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("%s should survive Clean: %v", path, err)
		}
	}
	if _, err := os.Stat(generated); !os.IsNotExist(err) {
		t.Fatalf("generated file survived Clean: %v", err)
	}
}
