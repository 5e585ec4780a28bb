// Package export drives a texture export run end to end.
//
// A Processor merges every descriptor's layer stacks, queues detail transfers
// for child descriptors, dispatches one job per channel onto a bounded worker
// pool and packages the produced outputs into option group files. Identical
// descriptors are detected by fingerprint and redirected to the outputs of
// the first one seen, so nothing is rendered twice in a run.
//
// Progress is counted in ticks: one per descriptor for layer merging and
// four per packaged descriptor, one for each channel whether or not it
// produced anything. Export returns only after every tick has fired.
package export
