// Package preflight checks that an export can run before any work starts:
// the configured directories are usable, the donor materials glow export
// falls back to are present and, when external baking is on, the
// detail-transfer tool is installed.
//
// The CLI "texbake doctor" command prints every result; "texbake export"
// runs the same checks and stops on the first failure.
package preflight
