// Package project loads texture descriptors from a TOML project manifest.
//
// A manifest lists descriptors as [[descriptor]] tables. Children name their
// parent by id and are attached to it rather than exported on their own.
// Relative input paths resolve against the manifest's directory; backup
// paths stay relative to the resource root.
package project
