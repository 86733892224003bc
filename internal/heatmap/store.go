// Package heatmap persists per-entry launch statistics.
package heatmap

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	"github.com/hyprutils/hyprlauncher/internal/logging"
)

var heatmapLog = logging.ForComponent(logging.CompHeatmap)

// Stat is the usage record of one identity.
type Stat struct {
	LaunchCount uint64
	LastUsed    time.Time
}

// LoadError means the heatmap file existed but could not be used. The store
// returned alongside it is empty but fully functional.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load heatmap %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// WriteError means a flush did not reach disk. Pending launches are kept for
// the next attempt.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write heatmap %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Store holds launch statistics in memory and merges them into a JSON file
// on Flush. Safe for concurrent use, including by several processes sharing
// one file.
type Store struct {
	path string
	lock *flock.Flock
	now  func() time.Time

	mu      sync.Mutex
	stats   map[string]Stat
	pending map[string]Stat   // launches not yet on disk
	legacy  bool              // stats were loaded from the name-keyed layout
	renames map[string]string // legacy name -> identity, not yet on disk

	version atomic.Uint64
	flights singleflight.Group
}

// Load reads the heatmap at path. A missing file yields an empty store and a
// nil error. An unreadable or corrupt file yields an empty store and a
// *LoadError; the store is usable either way.
func Load(path string) (*Store, error) {
	s := &Store{
		path:    path,
		lock:    flock.New(path + ".lock"),
		now:     time.Now,
		stats:   make(map[string]Stat),
		pending: make(map[string]Stat),
	}

	stats, legacy, err := readFile(path)
	switch {
	case err == nil:
		s.stats = stats
		s.legacy = legacy
		heatmapLog.Debug("heatmap_loaded",
			slog.String("path", path),
			slog.Int("entries", len(stats)),
			slog.Bool("legacy", legacy))
		return s, nil
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	default:
		le := &LoadError{Path: path, Err: err}
		heatmapLog.Warn("heatmap_load_failed", slog.String("error", le.Error()))
		return s, le
	}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// SetClock replaces the time source used by RecordLaunch.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// RecordLaunch counts one launch of id at the current time.
func (s *Store) RecordLaunch(id string) Stat {
	s.mu.Lock()
	now := s.now()

	st := s.stats[id]
	st.LaunchCount++
	st.LastUsed = now
	s.stats[id] = st

	p := s.pending[id]
	p.LaunchCount++
	p.LastUsed = now
	s.pending[id] = p
	s.mu.Unlock()

	s.version.Add(1)
	return st
}

// Legacy reports whether the store still holds name-keyed records from the
// flat layout of earlier releases.
func (s *Store) Legacy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.legacy
}

// Migrate re-keys records loaded from the flat legacy layout. resolve maps a
// display name to an identity; names it does not resolve are kept as they
// are. Migrate runs at most once per store and returns the number of records
// moved. Moved records are written on the next Flush.
func (s *Store) Migrate(resolve func(name string) (string, bool)) int {
	s.mu.Lock()
	if !s.legacy {
		s.mu.Unlock()
		return 0
	}
	s.legacy = false

	names := make([]string, 0, len(s.stats))
	for name := range s.stats {
		names = append(names, name)
	}
	sort.Strings(names)

	moved := 0
	for _, name := range names {
		id, ok := resolve(name)
		if !ok || id == name || id == "" {
			continue
		}
		st := s.stats[name]
		delete(s.stats, name)
		s.stats[id] = addStat(s.stats[id], st)
		if s.renames == nil {
			s.renames = make(map[string]string)
		}
		s.renames[name] = id
		moved++
	}
	s.mu.Unlock()

	if moved > 0 {
		s.version.Add(1)
		heatmapLog.Info("heatmap_migrated", slog.String("path", s.path), slog.Int("moved", moved))
	}
	return moved
}

// Get returns the stat for id, or the zero Stat if it was never launched.
func (s *Store) Get(id string) Stat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats[id]
}

// Snapshot copies every stat.
func (s *Store) Snapshot() map[string]Stat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Stat, len(s.stats))
	for k, v := range s.stats {
		out[k] = v
	}
	return out
}

// Len returns the number of identities with a record.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stats)
}

// Pending returns the number of identities with unflushed launches or
// migrations.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) + len(s.renames)
}

// Version changes whenever the in-memory statistics change.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Ranked pairs an identity with its stat.
type Ranked struct {
	ID string
	Stat
}

// Top returns up to n identities ordered by launch count, then recency, then
// identity. n <= 0 returns all of them.
func (s *Store) Top(n int) []Ranked {
	s.mu.Lock()
	out := make([]Ranked, 0, len(s.stats))
	for id, st := range s.stats {
		out = append(out, Ranked{ID: id, Stat: st})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.LaunchCount != b.LaunchCount {
			return a.LaunchCount > b.LaunchCount
		}
		if !a.LastUsed.Equal(b.LastUsed) {
			return a.LastUsed.After(b.LastUsed)
		}
		return a.ID < b.ID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Flush merges pending launches into the file on disk. Concurrent callers
// share one write.
func (s *Store) Flush() error {
	_, err, _ := s.flights.Do("flush", func() (any, error) {
		return nil, s.flush()
	})
	return err
}

func (s *Store) flush() error {
	s.mu.Lock()
	if len(s.pending) == 0 && len(s.renames) == 0 {
		s.mu.Unlock()
		return nil
	}
	deltas, renames := s.pending, s.renames
	s.pending, s.renames = make(map[string]Stat), nil
	memory := make(map[string]Stat, len(s.stats))
	for k, v := range s.stats {
		memory[k] = v
	}
	s.mu.Unlock()

	merged, err := s.writeMerged(deltas, renames, memory)
	if err != nil {
		s.restore(deltas, renames)
		we := &WriteError{Path: s.path, Err: err}
		heatmapLog.Warn("heatmap_flush_failed", slog.String("error", we.Error()))
		return we
	}

	// Adopt what other processes wrote, keeping launches recorded meanwhile.
	s.mu.Lock()
	for id, p := range s.pending {
		merged[id] = addStat(merged[id], p)
	}
	s.stats = merged
	s.mu.Unlock()
	s.version.Add(1)

	heatmapLog.Debug("heatmap_flushed",
		slog.String("path", s.path),
		slog.Int("deltas", len(deltas)),
		slog.Int("entries", len(merged)))
	return nil
}

// writeMerged applies renames and then deltas to the current file contents
// under the cross-process lock. When the file is missing or unreadable the
// in-memory view, which already includes both, is written instead.
func (s *Store) writeMerged(deltas map[string]Stat, renames map[string]string, memory map[string]Stat) (map[string]Stat, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	merged, _, err := readFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			heatmapLog.Warn("heatmap_replacing_unreadable", slog.String("path", s.path), slog.String("error", err.Error()))
		}
		merged = memory
	} else {
		// A file already migrated by another process has no name keys left.
		for name, id := range renames {
			if st, ok := merged[name]; ok {
				delete(merged, name)
				merged[id] = addStat(merged[id], st)
			}
		}
		for id, d := range deltas {
			merged[id] = addStat(merged[id], d)
		}
	}

	data, err := encode(merged)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *Store) restore(deltas map[string]Stat, renames map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, d := range deltas {
		s.pending[id] = addStat(s.pending[id], d)
	}
	if len(renames) > 0 && s.renames == nil {
		s.renames = make(map[string]string, len(renames))
	}
	for name, id := range renames {
		s.renames[name] = id
	}
}

func addStat(base, delta Stat) Stat {
	base.LaunchCount += delta.LaunchCount
	if delta.LastUsed.After(base.LastUsed) {
		base.LastUsed = delta.LastUsed
	}
	return base
}

// writeFileAtomic writes to a temp file, fsyncs it and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
