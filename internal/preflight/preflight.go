package preflight

import (
	"texbake/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The bake tool is only checked when external baking is enabled.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Base directory", cfg.Paths.BaseDir, false),
		CheckWritableDir("Work directory", cfg.Paths.WorkDir),
		CheckWritableDir("Output directory", cfg.Paths.OutputDir),
	}
	results = append(results, CheckDonorMaterials(cfg.Paths.BaseDir)...)

	if cfg.Export.UseExternalBaking {
		results = append(results, CheckBakeTool(cfg.Bake.ToolPath))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
