package export

import (
	"context"
	"sync"
)

// Tracker is a counting barrier with a total that can grow while work is
// being scheduled.
type Tracker struct {
	mu        sync.Mutex
	cond      *sync.Cond
	completed int
	total     int
	onTick    func(completed, total int)
}

// NewTracker starts a barrier expecting total ticks. onTick may be nil.
func NewTracker(total int, onTick func(completed, total int)) *Tracker {
	if onTick == nil {
		onTick = func(int, int) {}
	}
	t := &Tracker{total: total, onTick: onTick}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Grow raises the expected total by n.
func (t *Tracker) Grow(n int) {
	t.mu.Lock()
	t.total += n
	t.mu.Unlock()
}

// Tick records one completed unit of work.
func (t *Tracker) Tick() {
	t.mu.Lock()
	t.completed++
	completed, total := t.completed, t.total
	t.cond.Broadcast()
	t.mu.Unlock()
	t.onTick(completed, total)
}

// Counts returns the completed and expected ticks.
func (t *Tracker) Counts() (completed, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed, t.total
}

// Wait blocks until completed reaches total or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	})
	defer stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	for t.completed < t.total {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.cond.Wait()
	}
	return nil
}
