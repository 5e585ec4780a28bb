package export_test

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"

	"texbake/internal/config"
	"texbake/internal/export"
	"texbake/internal/hashstore"
	"texbake/internal/material"
	"texbake/internal/packager"
	"texbake/internal/services"
	"texbake/internal/testsupport"
	"texbake/internal/texture"
)

type recordingObserver struct {
	mu     sync.Mutex
	ticks  int
	total  int
	kinds  []export.EventKind
	errors []string
}

func (o *recordingObserver) Tick(_, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ticks++
	if total > o.total {
		o.total = total
	}
}

func (o *recordingObserver) Progress(string) {}

func (o *recordingObserver) StartedProcessing() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.kinds = append(o.kinds, export.EventStarted)
}

func (o *recordingObserver) BakeLaunched() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.kinds = append(o.kinds, export.EventBakeLaunched)
}

func (o *recordingObserver) Error(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, msg)
}

type stubTransfer struct {
	mu       sync.Mutex
	jobs     int
	override string
	runs     int
	err      error
}

func (s *stubTransfer) AddToBatch(string, string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs++
}

func (s *stubTransfer) ProcessBatchWith(_ context.Context, override string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	s.override = override
	return s.err
}

func (s *stubTransfer) Reset() {}

func newProcessor(t *testing.T, cfg *config.Config, opts ...export.Option) *export.Processor {
	t.Helper()
	p, err := export.New(export.Config{
		BaseDir: cfg.Paths.BaseDir,
		WorkDir: cfg.Paths.WorkDir,
		Workers: cfg.Export.Workers,
	}, opts...)
	if err != nil {
		t.Fatalf("export.New: %v", err)
	}
	return p
}

func srcPath(cfg *config.Config, name string) string {
	return filepath.Join(testsupport.BaseDir(cfg), "src", name)
}

func generatedFiles(t *testing.T, target string) map[string][]byte {
	t.Helper()
	files := make(map[string][]byte)
	err := filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".lock") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(target, path)
		files[rel] = data
		return nil
	})
	if err != nil {
		t.Fatalf("walk target: %v", err)
	}
	return files
}

func bodyFixture(t *testing.T, cfg *config.Config) (*texture.Descriptor, *texture.Descriptor) {
	t.Helper()
	base := testsupport.WriteSolidPNG(t, srcPath(cfg, "body_d.png"), 8, 8, color.NRGBA{R: 200, G: 150, B: 120, A: 255})
	childBase := filepath.Join(filepath.Dir(base), "child_d_baseTexBaked.png")
	child := &texture.Descriptor{
		Name:         "Child",
		Base:         texture.Layers{Source: childBase},
		Destinations: texture.Destinations{Base: "chara/child_d.tex"},
		IsChild:      true,
	}
	parent := &texture.Descriptor{
		Group: "Body",
		Name:  "Body",
		Base:  texture.Layers{Source: base},
		Destinations: texture.Destinations{
			Base:   "chara/body_d.tex",
			Normal: "chara/body_n.tex",
			Mask:   "chara/body_m.tex",
		},
		Children: []*texture.Descriptor{child},
	}
	return parent, child
}

func TestExportProgressCountsEveryChannel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	parent, _ := bodyFixture(t, cfg)
	other := &texture.Descriptor{
		Group:        "Other",
		Name:         "Other",
		Destinations: texture.Destinations{Base: "chara/other_d.tex"},
	}
	observer := &recordingObserver{}
	p := newProcessor(t, cfg, export.WithObserver(observer))

	report, err := p.Export(context.Background(), []*texture.Descriptor{parent, other}, nil, export.Options{
		TargetPath:      cfg.Paths.OutputDir,
		Mode:            packager.PerDescriptor,
		GenerateNormals: true,
		GenerateMultis:  true,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	// Two descriptors contribute 4 channel ticks and 1 merge tick each; the
	// child adds 4 channel ticks.
	want := 2*5 + 4
	if observer.ticks != want || observer.total != want {
		t.Fatalf("expected %d ticks of %d, got %d of %d", want, want, observer.ticks, observer.total)
	}
	if report.Groups != 1 {
		t.Fatalf("expected only the body group to be written, got %d", report.Groups)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("unexpected job errors: %v", report.Errors)
	}
}

func TestExportWritesOutputsAndGroup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	parent, child := bodyFixture(t, cfg)
	p := newProcessor(t, cfg)
	target := cfg.Paths.OutputDir

	report, err := p.Export(context.Background(), []*texture.Descriptor{parent}, nil, export.Options{
		TargetPath:      target,
		Mode:            packager.PerDescriptor,
		GenerateNormals: true,
		GenerateMultis:  true,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(report.GroupFiles) != 1 {
		t.Fatalf("expected 1 group file, got %v", report.GroupFiles)
	}
	if filepath.Base(report.GroupFiles[0]) != "group_001_body.json" {
		t.Fatalf("unexpected group file %s", report.GroupFiles[0])
	}

	g, err := packager.ReadGroup(report.GroupFiles[0])
	if err != nil {
		t.Fatalf("ReadGroup: %v", err)
	}
	if len(g.Options) != 1 || g.Options[0].Name != "Enable" {
		t.Fatalf("expected a single Enable option, got %+v", g.Options)
	}
	files := g.Options[0].Files
	for _, dest := range []string{"chara/body_d.tex", "chara/body_n.tex", "chara/body_m.tex", "chara/child_d.tex"} {
		rel, ok := files[dest]
		if !ok {
			t.Fatalf("option missing %s: %v", dest, files)
		}
		if !strings.HasPrefix(rel, texture.StagingSubtree+"/") || !strings.Contains(rel, texture.GeneratedSuffix) {
			t.Fatalf("unexpected relative path %q", rel)
		}
		if _, err := os.Stat(filepath.Join(target, filepath.FromSlash(rel))); err != nil {
			t.Fatalf("expected output for %s: %v", dest, err)
		}
	}

	for _, part := range []string{"alpha", "rgb"} {
		sibling := texture.BakedSibling(child.Base.Source, part)
		if _, err := os.Stat(sibling); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected placeholder %s to be consumed by reassembly, got %v", sibling, err)
		}
	}
}

func TestExportIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	parent, _ := bodyFixture(t, cfg)
	p := newProcessor(t, cfg)
	opts := export.Options{
		TargetPath:      cfg.Paths.OutputDir,
		Mode:            packager.PerChannel,
		GenerateNormals: true,
		GenerateMultis:  true,
	}

	if _, err := p.Export(context.Background(), []*texture.Descriptor{parent}, nil, opts); err != nil {
		t.Fatalf("first Export: %v", err)
	}
	first := generatedFiles(t, opts.TargetPath)
	if _, err := p.Export(context.Background(), []*texture.Descriptor{parent}, nil, opts); err != nil {
		t.Fatalf("second Export: %v", err)
	}
	second := generatedFiles(t, opts.TargetPath)

	if len(first) == 0 || len(first) != len(second) {
		t.Fatalf("expected the same non-empty file set, got %d then %d", len(first), len(second))
	}
	for name, data := range first {
		if string(second[name]) != string(data) {
			t.Fatalf("%s changed between runs", name)
		}
	}
}

func TestExportRedirectsIdenticalDescriptors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := testsupport.WriteSolidPNG(t, srcPath(cfg, "first.png"), 4, 4, color.NRGBA{R: 10, G: 200, B: 90, A: 255})
	second := testsupport.WriteSolidPNG(t, srcPath(cfg, "second.png"), 4, 4, color.NRGBA{R: 240, G: 20, B: 20, A: 255})
	dests := texture.Destinations{Base: "chara/shared_d.tex"}
	backup := &texture.Backup{Base: "res/fallback_d.png"}
	a := &texture.Descriptor{Group: "Skin", Name: "A", Base: texture.Layers{Source: first},
		Destinations: dests, Backup: backup}
	b := &texture.Descriptor{Group: "Skin", Name: "B", Base: texture.Layers{Source: second},
		Destinations: dests, Backup: &texture.Backup{Base: "res/fallback_d.png"}}
	p := newProcessor(t, cfg)
	target := cfg.Paths.OutputDir

	report, err := p.Export(context.Background(), []*texture.Descriptor{a, b}, nil, export.Options{
		TargetPath: target,
		Mode:       packager.PerDescriptor,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if report.Redirected != 1 || report.Jobs != 1 {
		t.Fatalf("expected 1 redirect and 1 job, got %d and %d", report.Redirected, report.Jobs)
	}

	g, err := packager.ReadGroup(report.GroupFiles[0])
	if err != nil {
		t.Fatalf("ReadGroup: %v", err)
	}
	if len(g.Options) != 2 {
		t.Fatalf("expected an option per descriptor, got %d", len(g.Options))
	}
	if g.Options[0].Files[dests.Base] != g.Options[1].Files[dests.Base] {
		t.Fatalf("expected both options to share one output: %v / %v", g.Options[0].Files, g.Options[1].Files)
	}

	var textures []string
	for name := range generatedFiles(t, target) {
		if strings.HasSuffix(name, ".tex") {
			textures = append(textures, name)
		}
	}
	sort.Strings(textures)
	if len(textures) != 1 {
		t.Fatalf("expected one rendered texture, got %v", textures)
	}

	data, err := os.ReadFile(filepath.Join(target, filepath.FromSlash(g.Options[1].Files[dests.Base])))
	if err != nil {
		t.Fatalf("read shared output: %v", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("load shared output: %v", err)
	}
	if got := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA); got.R != 10 || got.G != 200 {
		t.Fatalf("expected the first descriptor's pixels, got %+v", got)
	}
}

func TestExportRendersDistinctDestinationsSeparately(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.WriteSolidPNG(t, srcPath(cfg, "shared.png"), 4, 4, color.NRGBA{R: 10, G: 200, B: 90, A: 255})
	a := &texture.Descriptor{Group: "Skin", Name: "A", Base: texture.Layers{Source: base},
		Destinations: texture.Destinations{Base: "chara/a_d.tex"}}
	b := &texture.Descriptor{Group: "Skin", Name: "B", Base: texture.Layers{Source: base},
		Destinations: texture.Destinations{Base: "chara/b_d.tex"}}
	p := newProcessor(t, cfg)

	report, err := p.Export(context.Background(), []*texture.Descriptor{a, b}, nil, export.Options{
		TargetPath: cfg.Paths.OutputDir,
		Mode:       packager.PerDescriptor,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if report.Redirected != 0 || report.Jobs != 2 {
		t.Fatalf("expected 0 redirects and 2 jobs, got %d and %d", report.Redirected, report.Jobs)
	}
}

func TestExportPatchesGlowMaterial(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	donor := &material.File{
		Shader:    "skin.shpk",
		Textures:  make([]material.Texture, 3),
		Constants: []material.Constant{{ID: material.EmissiveColorID, Values: []float32{0, 0, 0, 1}}},
	}
	data, err := material.Binary{}.Encode(donor)
	if err != nil {
		t.Fatalf("encode donor: %v", err)
	}
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.BaseDir, "res", "materials", "skin_glow.mtrl"), data)

	base := testsupport.WriteSolidPNG(t, srcPath(cfg, "base.png"), 4, 4, color.NRGBA{R: 90, G: 90, B: 90, A: 255})
	glow := testsupport.WriteSolidPNG(t, srcPath(cfg, "glow.png"), 4, 4, color.NRGBA{R: 255, A: 255})
	d := &texture.Descriptor{
		Group: "Glow",
		Name:  "Glow",
		Base:  texture.Layers{Source: base},
		Glow:  glow,
		Destinations: texture.Destinations{
			Base:     "chara/skin_d.tex",
			Normal:   "chara/skin_n.tex",
			Mask:     "chara/skin_m.tex",
			Material: "chara/mt_skin.mtrl",
		},
	}
	p := newProcessor(t, cfg)
	target := cfg.Paths.OutputDir

	report, err := p.Export(context.Background(), []*texture.Descriptor{d}, nil, export.Options{
		TargetPath: target,
		Mode:       packager.PerChannel,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("unexpected job errors: %v", report.Errors)
	}

	fingerprint := d.Fingerprint()
	path := texture.DiskPath(d.Destinations.Material, target,
		texture.MaterialID(d.Destinations.Material, fingerprint, d.Destinations))
	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read material: %v", err)
	}
	file, err := material.Binary{}.Decode(written)
	if err != nil {
		t.Fatalf("decode material: %v", err)
	}
	wantSlots := []string{"chara/skin_d.tex", "chara/skin_n.tex", "chara/skin_m.tex"}
	for i, want := range wantSlots {
		if file.Textures[i].Path != want {
			t.Fatalf("slot %d: expected %q, got %q", i, want, file.Textures[i].Path)
		}
	}
	emissive := file.Constant(material.EmissiveColorID)
	if emissive == nil || emissive.Values[0] != 1 || emissive.Values[1] != 0 || emissive.Values[2] != 0 {
		t.Fatalf("expected red emissive, got %+v", emissive)
	}
}

func TestExportExternalBakingRecordsHashes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	parent, child := bodyFixture(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)
	transfer := &stubTransfer{}
	observer := &recordingObserver{}
	p := newProcessor(t, cfg,
		export.WithTransfer(transfer),
		export.WithObserver(observer),
		export.WithHashStore(store),
	)

	report, err := p.Export(context.Background(), []*texture.Descriptor{parent}, nil, export.Options{
		TargetPath:        cfg.Paths.OutputDir,
		Mode:              packager.PerDescriptor,
		UseExternalBaking: true,
		BakeToolOverride:  "/opt/transfer",
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if transfer.runs != 1 || transfer.override != "/opt/transfer" {
		t.Fatalf("expected one batch run with override, got %d (%q)", transfer.runs, transfer.override)
	}
	if transfer.jobs != 2 {
		t.Fatalf("expected alpha and rgb jobs for the child base, got %d", transfer.jobs)
	}
	if len(observer.kinds) != 2 || observer.kinds[0] != export.EventBakeLaunched || observer.kinds[1] != export.EventStarted {
		t.Fatalf("unexpected notification order %v", observer.kinds)
	}

	hashes, err := store.LoadHashes(context.Background(), hashstore.ParentKey(parent))
	if err != nil {
		t.Fatalf("LoadHashes: %v", err)
	}
	if _, ok := hashes[child.Base.Source]; !ok {
		t.Fatalf("expected child hash to be persisted, got %v", hashes)
	}

	runs, err := store.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != report.RunID || runs[0].Status != hashstore.RunCompleted {
		t.Fatalf("expected completed run %s, got %+v", report.RunID, runs)
	}
}

func TestExportBakeFailureIsNotFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	parent, _ := bodyFixture(t, cfg)
	transfer := &stubTransfer{err: services.Wrap(services.ErrExternalTool, "bake", "run", "exit 1", nil)}
	observer := &recordingObserver{}
	p := newProcessor(t, cfg, export.WithTransfer(transfer), export.WithObserver(observer))

	report, err := p.Export(context.Background(), []*texture.Descriptor{parent}, nil, export.Options{
		TargetPath:        cfg.Paths.OutputDir,
		Mode:              packager.PerDescriptor,
		UseExternalBaking: true,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if report.BakeError == "" {
		t.Fatal("expected bake error in report")
	}
	if len(observer.errors) == 0 {
		t.Fatal("expected bake error to reach the observer")
	}
	if report.Groups != 1 {
		t.Fatalf("expected packaging to continue, got %d groups", report.Groups)
	}
}

func TestExportValidatesOptions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	observer := &recordingObserver{}
	p := newProcessor(t, cfg, export.WithHashStore(store), export.WithObserver(observer))

	tests := []struct {
		name string
		opts export.Options
	}{
		{"missing target", export.Options{Mode: packager.PerDescriptor}},
		{"bad mode", export.Options{TargetPath: cfg.Paths.OutputDir, Mode: packager.Mode(9)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Export(context.Background(), nil, nil, tt.opts)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	runs, err := store.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].Status != hashstore.RunFailed {
		t.Fatalf("expected two failed runs, got %+v", runs)
	}
	if len(observer.errors) != 2 {
		t.Fatalf("expected each failure reported once, got %v", observer.errors)
	}
}

func TestNewRequiresBaseDir(t *testing.T) {
	if _, err := export.New(export.Config{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
