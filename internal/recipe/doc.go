// Package recipe renders one texture channel from its inputs.
//
// A Request names a Kind and the paths it reads. Engine resolves the inputs,
// runs the recipe against the per-run caches, and either returns the image or
// encodes and writes it. Inputs that do not exist yield ErrNoOutput so
// callers can skip the channel without treating it as a failure.
package recipe
