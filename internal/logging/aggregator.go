package logging

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// DefaultAggregateInterval is used when NewAggregator gets a non-positive
// interval.
const DefaultAggregateInterval = 30 * time.Second

// tally counts one event name. last holds the attrs of the newest Record.
type tally struct {
	count int64
	last  []slog.Attr
}

// Aggregator collapses repeated events, such as one skipped descriptor per
// file during a scan, into a single "event_summary" record per component and
// event every interval.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	counts map[string]map[string]*tally // component -> event
	stop   chan struct{}
	exited chan struct{} // nil until Start
}

// NewAggregator returns a stopped aggregator. A nil logger discards summaries.
func NewAggregator(logger *slog.Logger, interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = DefaultAggregateInterval
	}
	return &Aggregator{
		logger:   logger,
		interval: interval,
		counts:   make(map[string]map[string]*tally),
		stop:     make(chan struct{}),
	}
}

// Start runs the periodic summary loop. Calling it twice is a no-op.
func (a *Aggregator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.exited != nil {
		return
	}
	a.exited = make(chan struct{})
	go a.run(a.exited)
}

func (a *Aggregator) run(exited chan struct{}) {
	defer close(exited)
	t := time.NewTicker(a.interval)
	defer t.Stop()
	for {
		select {
		case <-a.stop:
			return
		case <-t.C:
			a.emit()
		}
	}
}

// Stop ends the loop and writes whatever is still counted. Repeated calls
// only repeat the final write.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	select {
	case <-a.stop:
	default:
		close(a.stop)
	}
	exited := a.exited
	a.mu.Unlock()

	if exited != nil {
		<-exited
	}
	a.emit()
}

// Record counts one occurrence of event.
func (a *Aggregator) Record(component, event string, fields ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	events := a.counts[component]
	if events == nil {
		events = make(map[string]*tally)
		a.counts[component] = events
	}
	t := events[event]
	if t == nil {
		t = &tally{}
		events[event] = t
	}
	t.count++
	if len(fields) > 0 {
		t.last = fields
	}
}

// Pending returns how many occurrences of event wait for the next summary.
func (a *Aggregator) Pending(component, event string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t := a.counts[component][event]; t != nil {
		return t.count
	}
	return 0
}

// emit logs one record per counted event, ordered by component then event.
func (a *Aggregator) emit() {
	a.mu.Lock()
	counts := a.counts
	a.counts = make(map[string]map[string]*tally)
	a.mu.Unlock()

	if a.logger == nil {
		return
	}
	window := int(a.interval / time.Second)
	for _, comp := range slices.Sorted(maps.Keys(counts)) {
		events := counts[comp]
		for _, ev := range slices.Sorted(maps.Keys(events)) {
			t := events[ev]
			args := make([]any, 0, 4+len(t.last))
			args = append(args,
				slog.String("component", comp),
				slog.String("event", ev),
				slog.Int64("count", t.count),
				slog.Int("window_seconds", window))
			for _, f := range t.last {
				args = append(args, f)
			}
			a.logger.Info("event_summary", args...)
		}
	}
}
