// Package texture models the unit of export: a descriptor naming up to four
// layered channel inputs, their destinations in the target asset tree, the
// fallback textures used when a channel cannot be derived from the
// descriptor itself, and the parent/child relationships used for detail
// transfer.
//
// Descriptors resolve their layer stacks to "final" paths, derive a content
// fingerprint for de-duplication, and carry the per-child perceptual hashes
// that let unchanged children skip re-baking.
package texture
