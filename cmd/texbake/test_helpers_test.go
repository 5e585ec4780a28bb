package main

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"texbake/internal/config"
	"texbake/internal/preflight"
	"texbake/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	projectDir string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	homeDir := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("TEXBAKE_BASE_DIR", "")
	t.Setenv("TEXBAKE_BAKE_TOOL", "")

	cfg := testsupport.NewConfig(t, opts...)
	for _, rel := range preflight.DonorMaterials {
		testsupport.WriteFile(t, filepath.Join(cfg.Paths.BaseDir, rel), []byte("MTRL"))
	}

	configPath := filepath.Join(homeDir, ".config", "texbake", "config.toml")
	writeTestConfig(t, configPath, cfg)

	projectDir := filepath.Join(testsupport.BaseDir(cfg), "project")
	return &cliTestEnv{cfg: cfg, configPath: configPath, projectDir: projectDir}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
base_dir = %q
output_dir = %q
work_dir = %q
log_dir = %q

[export]
packaging_mode = %d
workers = 2
use_external_baking = %t

[bake]
tool_path = %q

[hash_store]
enabled = true
path = %q

[logging]
level = "error"
`,
		cfg.Paths.BaseDir,
		cfg.Paths.OutputDir,
		cfg.Paths.WorkDir,
		cfg.Paths.LogDir,
		cfg.Export.PackagingMode,
		cfg.Export.UseExternalBaking,
		cfg.Bake.ToolPath,
		cfg.HashStore.Path,
	)
	testsupport.WriteFile(t, path, []byte(content))
}

// writeProject writes a one-descriptor project and its base texture.
func (e *cliTestEnv) writeProject(t *testing.T) string {
	t.Helper()
	testsupport.WriteSolidPNG(t, filepath.Join(e.projectDir, "face_d.png"), 8, 8, color.NRGBA{R: 180, G: 120, B: 90, A: 255})
	manifest := `[project]
name = "Face"

[[descriptor]]
name = "Face"
destinations = { base = "chara/face_d.tex" }

[descriptor.base]
source = "face_d.png"
`
	path := filepath.Join(e.projectDir, "project.toml")
	testsupport.WriteFile(t, path, []byte(manifest))
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
