package export

import (
	"log/slog"
	"sync"

	"texbake/internal/logging"
)

// Observer receives run notifications. Calls may arrive from worker
// goroutines and must not block.
type Observer interface {
	Tick(completed, total int)
	Progress(message string)
	StartedProcessing()
	BakeLaunched()
	Error(message string)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) Tick(int, int)      {}
func (NopObserver) Progress(string)    {}
func (NopObserver) StartedProcessing() {}
func (NopObserver) BakeLaunched()      {}
func (NopObserver) Error(string)       {}

// EventKind identifies an Observer notification.
type EventKind string

const (
	EventTick         EventKind = "tick"
	EventProgress     EventKind = "progress"
	EventStarted      EventKind = "started_processing"
	EventBakeLaunched EventKind = "bake_launched"
	EventError        EventKind = "error"
)

// Event is one notification delivered by ChannelObserver.
type Event struct {
	Kind      EventKind
	Message   string
	Completed int
	Total     int
}

// ChannelObserver forwards notifications as events. Events are dropped when
// the channel is full.
type ChannelObserver struct {
	C chan Event
}

// NewChannelObserver returns an observer with a buffer of size events.
func NewChannelObserver(size int) *ChannelObserver {
	if size < 0 {
		size = 0
	}
	return &ChannelObserver{C: make(chan Event, size)}
}

func (o *ChannelObserver) send(ev Event) {
	select {
	case o.C <- ev:
	default:
	}
}

func (o *ChannelObserver) Tick(completed, total int) {
	o.send(Event{Kind: EventTick, Completed: completed, Total: total})
}

func (o *ChannelObserver) Progress(message string) {
	o.send(Event{Kind: EventProgress, Message: message})
}

func (o *ChannelObserver) StartedProcessing() { o.send(Event{Kind: EventStarted}) }

func (o *ChannelObserver) BakeLaunched() { o.send(Event{Kind: EventBakeLaunched}) }

func (o *ChannelObserver) Error(message string) {
	o.send(Event{Kind: EventError, Message: message})
}

// LogObserver writes notifications to a logger, sampling ticks so a large
// run logs a handful of progress lines.
type LogObserver struct {
	logger  *slog.Logger
	mu      sync.Mutex
	sampler *logging.ProgressSampler
}

// NewLogObserver logs through logger at 10% progress steps.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogObserver{logger: logger, sampler: logging.NewProgressSampler(10)}
}

func (o *LogObserver) Tick(completed, total int) {
	o.mu.Lock()
	emit := o.sampler.ShouldLogTicks(completed, total, "export")
	o.mu.Unlock()
	if !emit {
		return
	}
	o.logger.Info("export progress",
		logging.Int("completed", completed),
		logging.Int("total", total),
	)
}

func (o *LogObserver) Progress(message string) {
	o.logger.Info(message)
}

func (o *LogObserver) StartedProcessing() {
	o.logger.Info("channel processing started")
}

func (o *LogObserver) BakeLaunched() {
	o.logger.Info("detail transfer launched")
}

func (o *LogObserver) Error(message string) {
	o.logger.Error("export error", logging.String("message", message))
}

// MultiObserver fans notifications out to several observers.
type MultiObserver []Observer

func (m MultiObserver) Tick(completed, total int) {
	for _, o := range m {
		o.Tick(completed, total)
	}
}

func (m MultiObserver) Progress(message string) {
	for _, o := range m {
		o.Progress(message)
	}
}

func (m MultiObserver) StartedProcessing() {
	for _, o := range m {
		o.StartedProcessing()
	}
}

func (m MultiObserver) BakeLaunched() {
	for _, o := range m {
		o.BakeLaunched()
	}
}

func (m MultiObserver) Error(message string) {
	for _, o := range m {
		o.Error(message)
	}
}
