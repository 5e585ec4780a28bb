package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"texbake/internal/config"
)

// DefaultBakeTool is the stub name WithStubbedBinaries installs when called
// without names.
const DefaultBakeTool = "texbake-transfer"

// ConfigOption customizes the config returned by NewConfig.
type ConfigOption func(t testing.TB, root string, cfg *config.Config)

// NewConfig returns a config whose directories live under a fresh temp root:
// resources, output, work and logs, with the hash store inside work.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.Paths{
		BaseDir:   filepath.Join(root, "resources"),
		OutputDir: filepath.Join(root, "output"),
		WorkDir:   filepath.Join(root, "work"),
		LogDir:    filepath.Join(root, "logs"),
	}
	cfg.HashStore.Path = filepath.Join(cfg.Paths.WorkDir, "texbake.db")
	cfg.Export.Workers = 2

	for _, opt := range opts {
		opt(t, root, &cfg)
	}
	return &cfg
}

// WithPackagingMode sets export.packaging_mode.
func WithPackagingMode(mode int) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Export.PackagingMode = mode
	}
}

// WithExternalBaking enables the detail-transfer tool.
func WithExternalBaking(tool string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Export.UseExternalBaking = true
		cfg.Bake.ToolPath = tool
	}
}

// WithStubbedBinaries installs executables that exit 0 under root/bin and
// prepends that directory to PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, root string, _ *config.Config) {
		if len(names) == 0 {
			names = []string{DefaultBakeTool}
		}
		binDir := filepath.Join(root, "bin")
		for _, name := range names {
			WriteFile(t, filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"))
			if err := os.Chmod(filepath.Join(binDir, name), 0o755); err != nil {
				t.Fatalf("chmod stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the temp root backing cfg.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
