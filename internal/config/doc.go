// Package config loads, normalizes, and validates texbake configuration.
//
// It merges built-in defaults with user TOML files, expands paths such as
// ~/.config/texbake/config.toml, and applies environment fallbacks for the
// resource root and the detail-transfer tool. Validation enforces the values
// the export pipeline cannot run without (a resource root, a packaging mode in
// range, a tool path when external baking is on) so misconfiguration fails
// before any file is touched.
//
// CreateSample writes the embedded sample_config.toml for `texbake config init`.
package config
