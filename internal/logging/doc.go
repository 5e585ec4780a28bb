// Package logging assembles structured slog loggers and formatting helpers used
// across texbake.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with run IDs, stages, and descriptor names. The package also provides
// a no-op logger for tests and a sampler that keeps per-tick progress from
// flooding the console.
package logging
