// Package services defines shared utilities consumed by the export pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and descriptor names
//     for logging.
//   - Structured error markers plus the Wrap helper so failures carry a
//     consistent classification from the recipe engine up to the CLI.
//
// Subpackages hold thin clients for external tools (see services/transfer)
// that keep command execution and output streaming testable.
package services
