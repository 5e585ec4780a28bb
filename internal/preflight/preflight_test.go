package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"texbake/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		pass bool
	}{
		{"existing dir", dir, true},
		{"missing", filepath.Join(dir, "nope"), false},
		{"file", file, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckDirectoryAccess("test", tt.path, true)
			if result.Passed != tt.pass {
				t.Fatalf("expected pass=%v, got %+v", tt.pass, result)
			}
			if result.Detail == "" {
				t.Fatal("expected non-empty detail")
			}
		})
	}
}

func TestCheckWritableDirAllowsCreation(t *testing.T) {
	result := CheckWritableDir("work", filepath.Join(t.TempDir(), "a", "b"))
	if !result.Passed {
		t.Fatalf("expected creatable dir to pass, got %s", result.Detail)
	}
	if got := CheckWritableDir("work", ""); got.Passed {
		t.Fatal("expected empty path to fail")
	}
}

func TestCheckDonorMaterials(t *testing.T) {
	base := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(base, DonorMaterials[0]), []byte("MTRL"))

	results := CheckDonorMaterials(base)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Passed {
		t.Fatalf("expected skin donor to pass, got %s", results[0].Detail)
	}
	if results[1].Passed {
		t.Fatal("expected missing eye donor to fail")
	}
}

func TestRunAllChecksBakeToolOnlyWhenEnabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.BaseDir, 0o755); err != nil {
		t.Fatal(err)
	}
	without := RunAll(cfg)

	cfg.Export.UseExternalBaking = true
	cfg.Bake.ToolPath = "clearly-not-present-binary"
	with := RunAll(cfg)

	if len(with) != len(without)+1 {
		t.Fatalf("expected one extra check, got %d vs %d", len(with), len(without))
	}
	last := with[len(with)-1]
	if last.Passed {
		t.Fatal("expected missing bake tool to fail")
	}
	if len(Failed(with)) == 0 {
		t.Fatal("expected failures to be reported")
	}
	if !without[0].Passed {
		t.Fatalf("expected base directory to pass, got %s", without[0].Detail)
	}
}
