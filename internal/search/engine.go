// Package search answers ranked queries against the latest index snapshot
// and keeps that snapshot fresh in the background.
package search

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/hyprutils/hyprlauncher/internal/desktop"
	"github.com/hyprutils/hyprlauncher/internal/heatmap"
	"github.com/hyprutils/hyprlauncher/internal/index"
	"github.com/hyprutils/hyprlauncher/internal/logging"
	"github.com/hyprutils/hyprlauncher/internal/platform"
	"github.com/hyprutils/hyprlauncher/internal/rank"
)

var searchLog = logging.ForComponent(logging.CompSearch)

// ErrNoHeatmap is returned by New when neither a store nor a path is given.
var ErrNoHeatmap = errors.New("search: heatmap store or path required")

// State is the engine's indexing state.
type State int32

const (
	// StateIdle means no snapshot has been published yet.
	StateIdle State = iota
	// StateScanning means a build is in flight. Queries use the previous snapshot.
	StateScanning
	// StateReady means a snapshot is published and no build is running.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// WindowState reports which identities already have an open window.
type WindowState interface {
	IsWindowOpen(identity string) bool
}

// Settings are the read-only options a running engine can swap at runtime.
type Settings struct {
	Dirs              []index.Dir
	MaxEntries        int
	CaseSensitive     bool
	Parse             desktop.ParseOptions
	PathDirs          []string // scanned for executables when non-empty
	Workers           int
	Watch             bool
	Debounce          time.Duration
	MinRescanInterval time.Duration
}

// Options configures New.
type Options struct {
	Settings

	// Heatmap is used when set; otherwise the store is loaded from HeatmapPath.
	Heatmap       *heatmap.Store
	HeatmapPath   string
	FlushInterval time.Duration

	Windows   WindowState
	Now       func() time.Time
	CacheSize int
}

const defaultCacheSize = 256

// Kind tells a frontend how to act on a Result.
type Kind string

const (
	KindEntry  Kind = "entry"  // indexed descriptor or action
	KindBinary Kind = "binary" // executable found on PATH
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
	KindCalc   Kind = "calc" // DisplayName holds the value
)

// Result is one ranked search hit.
type Result struct {
	Kind           Kind
	Identity       string
	ParentID       string
	DisplayName    string
	Description    string
	IconName       string
	Path           string
	Exec           string
	Terminal       bool
	Score          float64
	MatchedIndexes []int
}

type cacheKey struct {
	generation    uint64
	query         string
	caseSensitive bool
}

// Engine owns the published snapshot, the heatmap and the rescan scheduler.
type Engine struct {
	settings atomic.Pointer[Settings]
	builder  atomic.Pointer[index.Builder]
	scorer   atomic.Pointer[rank.Scorer]
	snap     atomic.Pointer[index.Snapshot]
	scanning atomic.Int32

	now     func() time.Time
	store   *heatmap.Store
	flusher *heatmap.Flusher
	windows WindowState
	cache   *lru.Cache[cacheKey, []candidate]
	limiter *rate.Limiter

	trigger chan struct{}
	watcher *index.DirWatcher

	ctx       context.Context
	cancel    context.CancelFunc
	detach    func() bool
	wg        sync.WaitGroup
	startOnce   sync.Once
	closeOnce   sync.Once
	migrateOnce sync.Once
}

// New creates an engine. It does not scan; call Start or RebuildNow.
func New(opts Options) (*Engine, error) {
	store := opts.Heatmap
	if store == nil {
		if opts.HeatmapPath == "" {
			return nil, ErrNoHeatmap
		}
		var err error
		store, err = heatmap.Load(opts.HeatmapPath)
		if err != nil {
			// Usage ranking degrades to neutral; the store is still usable.
			searchLog.Warn("heatmap_degraded", slog.String("error", err.Error()))
		}
	}

	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[cacheKey, []candidate](size)
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		now:     now,
		store:   store,
		flusher: heatmap.NewFlusher(store, opts.FlushInterval),
		windows: opts.Windows,
		cache:   cache,
		limiter: rate.NewLimiter(limitFor(opts.MinRescanInterval), 1),
		trigger: make(chan struct{}, 1),
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	s := opts.Settings
	e.settings.Store(&s)
	e.builder.Store(index.NewBuilder(builderOptions(s)))
	e.scorer.Store(rank.NewScorer(rank.Options{CaseSensitive: s.CaseSensitive, Now: now}))
	return e, nil
}

func limitFor(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}

func builderOptions(s Settings) index.BuilderOptions {
	return index.BuilderOptions{Workers: s.Workers, Parse: s.Parse, PathDirs: s.PathDirs}
}

// Start performs the initial build synchronously, then starts the watcher,
// the rescan scheduler and the heatmap flusher. The engine runs until Close
// or until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	var err error
	e.startOnce.Do(func() {
		e.detach = context.AfterFunc(ctx, e.cancel)

		if err = e.RebuildNow(ctx); err != nil {
			return
		}

		s := e.settings.Load()
		if s.Watch {
			w, werr := index.NewDirWatcher(s.Dirs, s.Debounce)
			if werr != nil {
				searchLog.Warn("watch_unavailable", slog.String("error", werr.Error()))
			} else {
				e.watcher = w
				w.Start()
			}
			for _, d := range s.Dirs {
				if msg := platform.WatchWarning(d.Path); msg != "" {
					searchLog.Warn("watch_unreliable", slog.String("dir", d.Path), slog.String("reason", msg))
				}
			}
		}

		e.flusher.Start()
		e.wg.Add(1)
		go e.schedulerLoop()
	})
	return err
}

// Close stops background work and flushes the heatmap.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.cancel()
		if e.detach != nil {
			e.detach()
		}
		if e.watcher != nil {
			_ = e.watcher.Close()
		}
		e.wg.Wait()
		err = e.flusher.Stop()
	})
	return err
}

func (e *Engine) schedulerLoop() {
	defer e.wg.Done()

	var changes <-chan struct{}
	if e.watcher != nil {
		changes = e.watcher.Changes()
	}

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.trigger:
		case <-changes:
		}

		if err := e.limiter.Wait(e.ctx); err != nil {
			return
		}
		// Requests that arrived while waiting are served by this scan.
		select {
		case <-e.trigger:
		default:
		}

		if err := e.RebuildNow(e.ctx); err != nil && e.ctx.Err() == nil {
			searchLog.Warn("rescan_failed", slog.String("error", err.Error()))
		}
	}
}

// RebuildIndex requests a background rescan without blocking.
func (e *Engine) RebuildIndex() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// RebuildNow scans synchronously and publishes the result unless a newer
// snapshot was published meanwhile. On error the previous snapshot stays.
func (e *Engine) RebuildNow(ctx context.Context) error {
	e.scanning.Add(1)
	defer e.scanning.Add(-1)

	b := e.builder.Load()
	s := e.settings.Load()
	snap, err := b.Build(ctx, s.Dirs)
	if err != nil {
		return err
	}
	if e.publish(snap) {
		e.migrateOnce.Do(func() { e.migrateHeatmap(snap) })
	}
	return nil
}

// migrateHeatmap re-keys a name-keyed heatmap from earlier releases onto the
// identities of the first published snapshot. Names match top-level entries
// case-insensitively; the highest-priority entry wins.
func (e *Engine) migrateHeatmap(snap *index.Snapshot) {
	if !e.store.Legacy() {
		return
	}
	ids := make(map[string]string)
	for _, ent := range snap.Entries() {
		if ent.IsAction() {
			continue
		}
		key := strings.ToLower(ent.Name)
		if _, seen := ids[key]; !seen {
			ids[key] = ent.ID
		}
	}
	moved := e.store.Migrate(func(name string) (string, bool) {
		id, ok := ids[strings.ToLower(name)]
		return id, ok
	})
	searchLog.Info("heatmap_legacy_import", slog.Int("moved", moved), slog.Int("entries", snap.Len()))
}

// publish installs snap if it is newer than the current snapshot.
func (e *Engine) publish(snap *index.Snapshot) bool {
	for {
		cur := e.snap.Load()
		if cur != nil && cur.Generation() >= snap.Generation() {
			searchLog.Debug("snapshot_discarded",
				slog.Uint64("generation", snap.Generation()),
				slog.Uint64("current", cur.Generation()))
			return false
		}
		if e.snap.CompareAndSwap(cur, snap) {
			searchLog.Debug("snapshot_published",
				slog.Uint64("generation", snap.Generation()),
				slog.Int("entries", snap.Len()))
			return true
		}
	}
}

// Snapshot returns the published snapshot, or nil before the first build.
func (e *Engine) Snapshot() *index.Snapshot {
	return e.snap.Load()
}

// State reports the indexing state.
func (e *Engine) State() State {
	if e.scanning.Load() > 0 {
		return StateScanning
	}
	if e.snap.Load() == nil {
		return StateIdle
	}
	return StateReady
}

// Settings returns the active settings.
func (e *Engine) Settings() Settings {
	return *e.settings.Load()
}

// Heatmap returns the usage store.
func (e *Engine) Heatmap() *heatmap.Store {
	return e.store
}

// NotifyLaunch records a launch of identity.
func (e *Engine) NotifyLaunch(identity string) {
	st := e.store.RecordLaunch(identity)
	searchLog.Debug("launch_recorded",
		slog.String("identity", identity),
		slog.Uint64("launch_count", st.LaunchCount))
}

// ApplyConfig swaps the settings. A change of directories, parse options or
// PATH scanning schedules a rescan.
func (e *Engine) ApplyConfig(s Settings) {
	old := e.settings.Swap(&s)

	if old.CaseSensitive != s.CaseSensitive {
		e.scorer.Store(rank.NewScorer(rank.Options{CaseSensitive: s.CaseSensitive, Now: e.now}))
		e.cache.Purge()
	}
	if old.MinRescanInterval != s.MinRescanInterval {
		e.limiter.SetLimit(limitFor(s.MinRescanInterval))
	}

	rescan := !slices.Equal(old.Dirs, s.Dirs) ||
		!slices.Equal(old.PathDirs, s.PathDirs) ||
		old.Parse.Locale != s.Parse.Locale ||
		!slices.Equal(old.Parse.CurrentDesktops, s.Parse.CurrentDesktops) ||
		old.Workers != s.Workers
	if !rescan {
		return
	}

	e.builder.Store(e.builder.Load().WithOptions(builderOptions(s)))
	if e.watcher != nil && !slices.Equal(old.Dirs, s.Dirs) {
		e.watcher.Reset(s.Dirs)
	}
	searchLog.Info("config_applied", slog.Int("dirs", len(s.Dirs)))
	e.RebuildIndex()
}
