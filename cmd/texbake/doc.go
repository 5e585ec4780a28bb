// Command texbake exports texture projects into mod option groups.
//
// Subcommands:
//
//	export   merge, bake and package a project manifest into the target
//	doctor   run preflight checks against the active configuration
//	runs     list recorded export runs
//	hashes   inspect or clear the persisted child hashes
//	clean    remove generated textures and group files from a target
//	hash     print perceptual hashes of images
//	config   create, validate or print configuration
package main
