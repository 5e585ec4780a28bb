// Package hashstore persists the perceptual hashes recorded for baked
// children, so unchanged parents are not re-baked across runs, along with a
// short history of export runs.
//
// The store is a single SQLite file guarded by an advisory lock: one texbake
// process owns it at a time.
package hashstore
