package logging

import "strings"

// ProgressSampler decides which progress ticks are worth a log line. It
// emits when the phase changes, when completion crosses into a new bucket,
// and on the final tick.
type ProgressSampler struct {
	bucketSize float64
	lastPhase  string
	lastBucket int
	done       bool
}

// NewProgressSampler returns a sampler with buckets of bucketSize percent,
// 5 when bucketSize is not positive.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLogTicks reports whether completed of total in phase should be
// logged. A non-positive total means the run size is not known yet and only
// phase changes are reported. A nil sampler logs everything.
func (s *ProgressSampler) ShouldLogTicks(completed, total int, phase string) bool {
	if s == nil {
		return true
	}
	emit := false
	if phase = strings.TrimSpace(phase); phase != "" && phase != s.lastPhase {
		s.lastPhase = phase
		s.lastBucket = -1
		s.done = false
		emit = true
	}
	if total <= 0 {
		return emit
	}
	if completed >= total {
		if s.done {
			return emit
		}
		s.done = true
		return true
	}
	bucket := int(float64(completed) * 100 / float64(total) / s.bucketSize)
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}

// Reset forgets the previous phase and bucket.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	*s = ProgressSampler{bucketSize: s.bucketSize, lastBucket: -1}
}
