// Package packager turns exported channels into option groups and writes
// them as JSON group files next to the outputs.
package packager
