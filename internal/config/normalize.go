package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeExport()
	if err := c.normalizeBake(); err != nil {
		return err
	}
	if err := c.normalizeHashStore(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	c.Paths.BaseDir = strings.TrimSpace(c.Paths.BaseDir)
	if c.Paths.BaseDir == "" {
		if value, ok := os.LookupEnv("TEXBAKE_BASE_DIR"); ok {
			c.Paths.BaseDir = strings.TrimSpace(value)
		}
	}
	if c.Paths.BaseDir, err = expandPath(c.Paths.BaseDir); err != nil {
		return fmt.Errorf("paths.base_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeExport() {
	if c.Export.Workers < 0 {
		c.Export.Workers = 0
	}
	if c.Export.MaterialLockWaitSeconds <= 0 {
		c.Export.MaterialLockWaitSeconds = defaultMaterialLockWaitSeconds
	}
}

func (c *Config) normalizeBake() error {
	c.Bake.ToolPath = strings.TrimSpace(c.Bake.ToolPath)
	if c.Bake.ToolPath == "" {
		if value, ok := os.LookupEnv("TEXBAKE_BAKE_TOOL"); ok {
			c.Bake.ToolPath = strings.TrimSpace(value)
		}
	}
	// Bare executable names are resolved on PATH at run time.
	if strings.ContainsAny(c.Bake.ToolPath, `/\~`) {
		var err error
		if c.Bake.ToolPath, err = expandPath(c.Bake.ToolPath); err != nil {
			return fmt.Errorf("bake.tool_path: %w", err)
		}
	}
	if c.Bake.TimeoutSeconds < 0 {
		c.Bake.TimeoutSeconds = 0
	}
	return nil
}

func (c *Config) normalizeHashStore() error {
	if strings.TrimSpace(c.HashStore.Path) == "" {
		c.HashStore.Path = filepath.Join(c.Paths.LogDir, defaultHashStoreFile)
	}
	var err error
	if c.HashStore.Path, err = expandPath(c.HashStore.Path); err != nil {
		return fmt.Errorf("hash_store.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
