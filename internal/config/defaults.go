package config

const (
	defaultConfigPath              = "~/.config/texbake/config.toml"
	defaultOutputDir               = "~/.local/share/texbake/output"
	defaultWorkDir                 = "~/.cache/texbake/work"
	defaultLogDir                  = "~/.local/share/texbake/logs"
	defaultHashStoreFile           = "texbake.db"
	defaultPackagingMode           = 1
	defaultMaterialLockWaitSeconds = 30
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
		},
		Export: Export{
			PackagingMode:           defaultPackagingMode,
			GenerateNormals:         true,
			GenerateMultis:          true,
			MaterialLockWaitSeconds: defaultMaterialLockWaitSeconds,
		},
		HashStore: HashStore{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
