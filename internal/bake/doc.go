// Package bake decides which child textures need their parent's detail
// transferred onto them and prepares the inputs for the transfer tool.
//
// A child channel is re-baked only when the perceptual hash of the parent's
// output differs from the one recorded the last time it was finalized. When
// external baking is off the scheduler writes blank placeholders instead so
// later stages always find a file to read.
package bake
