package heatmap

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultFlushInterval is how often a Flusher writes pending launches.
const DefaultFlushInterval = 30 * time.Second

// Flusher periodically flushes a Store and flushes once more on Stop.
type Flusher struct {
	store    *Store
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewFlusher creates a flusher for store. A non-positive interval means
// DefaultFlushInterval.
func NewFlusher(store *Store, interval time.Duration) *Flusher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Flusher{
		store:    store,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background loop.
func (f *Flusher) Start() {
	f.wg.Add(1)
	go f.loop()
}

func (f *Flusher) loop() {
	defer f.wg.Done()
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
			if f.store.Pending() == 0 {
				continue
			}
			if err := f.store.Flush(); err != nil {
				heatmapLog.Warn("periodic_flush_failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Stop ends the loop and performs a final flush. Later calls return nil.
func (f *Flusher) Stop() error {
	var err error
	f.stopOnce.Do(func() {
		close(f.stopCh)
		f.wg.Wait()
		err = f.store.Flush()
	})
	return err
}
