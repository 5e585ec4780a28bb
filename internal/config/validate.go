package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateBake(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.BaseDir) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("paths.base_dir is required. Set TEXBAKE_BASE_DIR env var or edit %s (create with 'texbake config init')", defaultPath)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	return nil
}

func (c *Config) validateExport() error {
	if c.Export.PackagingMode < 0 || c.Export.PackagingMode > 3 {
		return fmt.Errorf("export.packaging_mode must be between 0 and 3, got %d", c.Export.PackagingMode)
	}
	if c.Export.Workers < 0 {
		return errors.New("export.workers must be zero or positive")
	}
	if c.Export.MaterialLockWaitSeconds <= 0 {
		return errors.New("export.material_lock_wait_seconds must be positive")
	}
	return nil
}

func (c *Config) validateBake() error {
	if c.Export.UseExternalBaking && strings.TrimSpace(c.Bake.ToolPath) == "" {
		return errors.New("bake.tool_path must be set when export.use_external_baking is true")
	}
	if c.Bake.TimeoutSeconds < 0 {
		return errors.New("bake.timeout_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
