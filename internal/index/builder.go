// Package index discovers application descriptors across directory roots and
// assembles them into immutable snapshots.
package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyprutils/hyprlauncher/internal/desktop"
	"github.com/hyprutils/hyprlauncher/internal/logging"
)

var indexLog = logging.ForComponent(logging.CompIndex)

// ScanError records a directory or file that could not be read.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// maxDepth bounds recursion below a root; descriptor trees are shallow.
const maxDepth = 8

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// Workers bounds concurrent root scans. Zero means GOMAXPROCS.
	Workers int
	// Parse is passed to desktop.Parse for every descriptor.
	Parse desktop.ParseOptions
	// PathDirs are scanned for executables when non-empty.
	PathDirs []string
}

// Builder performs full index builds. It is safe for concurrent use; each
// Build call gets a fresh, strictly increasing generation number.
type Builder struct {
	opts BuilderOptions
	gen  *atomic.Uint64
}

// NewBuilder returns a Builder for opts.
func NewBuilder(opts BuilderOptions) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Builder{opts: opts, gen: new(atomic.Uint64)}
}

// WithOptions returns a Builder for opts that continues this builder's
// generation sequence.
func (b *Builder) WithOptions(opts BuilderOptions) *Builder {
	nb := NewBuilder(opts)
	nb.gen = b.gen
	return nb
}

// Options returns the builder's options.
func (b *Builder) Options() BuilderOptions { return b.opts }

// NextGeneration reserves a generation number without building.
func (b *Builder) NextGeneration() uint64 {
	return b.gen.Add(1)
}

// rootResult is what one root worker produced.
type rootResult struct {
	entries     []rootEntry
	readable    bool
	descriptors int
	skipped     int
	errors      int
}

type rootEntry struct {
	id   string
	path string
	desc *desktop.Entry
}

// Build scans dirs in priority order and returns a snapshot. Unreadable
// roots, directories and files are logged and skipped; only context
// cancellation aborts a build.
func (b *Builder) Build(ctx context.Context, dirs []Dir) (*Snapshot, error) {
	gen := b.NextGeneration()
	start := time.Now()

	results := make([]rootResult, len(dirs))
	var binaries map[string]string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, d := range dirs {
		g.Go(func() error {
			r, err := b.scanRoot(gctx, d)
			results[i] = r
			return err
		})
	}
	if len(b.opts.PathDirs) > 0 {
		g.Go(func() error {
			binaries = ScanBinaries(gctx, b.opts.PathDirs)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := ScanStats{Binaries: len(binaries)}
	seen := make(map[string]bool)
	var tops []Entry
	var expanded [][]Entry
	for i, r := range results {
		if r.readable {
			stats.Dirs++
		}
		stats.Descriptors += r.descriptors
		stats.Skipped += r.skipped
		stats.Errors += r.errors
		for _, re := range r.entries {
			if seen[re.id] {
				stats.Duplicates++
				indexLog.Debug("descriptor_shadowed",
					slog.String("id", re.id),
					slog.String("path", re.path))
				continue
			}
			seen[re.id] = true
			group := entriesFromDescriptor(re.id, re.path, dirs[i].Path, re.desc)
			tops = append(tops, group[0])
			expanded = append(expanded, group)
		}
	}

	// Order by identity so scan scheduling never shows through, then place
	// each application's actions directly after it.
	order := make([]int, len(tops))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, c int) bool { return tops[order[a]].ID < tops[order[c]].ID })

	entries := make([]Entry, 0, len(tops))
	for _, i := range order {
		entries = append(entries, expanded[i]...)
	}

	snap := NewSnapshot(gen, entries, binaries)
	stats.Duration = time.Since(start)
	snap.stats = stats

	indexLog.Info("index_built",
		slog.Uint64("generation", gen),
		slog.Int("entries", snap.Len()),
		slog.Int("dirs", stats.Dirs),
		slog.Int("descriptors", stats.Descriptors),
		slog.Int("skipped", stats.Skipped),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("errors", stats.Errors),
		slog.Int("binaries", stats.Binaries),
		slog.Duration("took", stats.Duration))
	return snap, nil
}

// scanRoot walks one root. Symlinked directories are followed; the visited
// set of resolved paths stops cycles and repeated subtrees.
func (b *Builder) scanRoot(ctx context.Context, d Dir) (rootResult, error) {
	var r rootResult
	visited := make(map[string]bool)

	var walk func(dir, prefix string, depth int) error
	walk = func(dir, prefix string, depth int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if depth > maxDepth {
			return nil
		}
		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			b.noteDirError(&r, dir, depth, err)
			return nil
		}
		if visited[real] {
			return nil
		}
		visited[real] = true

		list, err := os.ReadDir(dir)
		if err != nil {
			b.noteDirError(&r, dir, depth, err)
			return nil
		}
		if depth == 0 {
			r.readable = true
		}

		// Linked directories are walked after real ones so a subtree is
		// named by its real location when both are reachable.
		var linked []string
		for _, de := range list {
			name := de.Name()
			full := filepath.Join(dir, name)

			if de.Type()&fs.ModeSymlink != 0 {
				info, err := os.Stat(full)
				if err != nil {
					// Dangling link.
					continue
				}
				if info.IsDir() {
					linked = append(linked, name)
					continue
				}
			} else if de.IsDir() {
				if err := walk(full, prefix+name+"-", depth+1); err != nil {
					return err
				}
				continue
			}

			if desktop.IsDescriptor(name) {
				b.readDescriptor(&r, full, prefix+name)
			}
		}
		for _, name := range linked {
			if err := walk(filepath.Join(dir, name), prefix+name+"-", depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	err := walk(d.Path, "", 0)
	return r, err
}

func (b *Builder) noteDirError(r *rootResult, dir string, depth int, err error) {
	if depth == 0 && errors.Is(err, fs.ErrNotExist) {
		indexLog.Debug("root_missing", slog.String("dir", dir))
		return
	}
	r.errors++
	se := &ScanError{Path: dir, Err: err}
	indexLog.Warn("scan_dir_failed", slog.String("error", se.Error()))
}

func (b *Builder) readDescriptor(r *rootResult, path, id string) {
	data, err := os.ReadFile(path)
	if err != nil {
		r.errors++
		logging.Aggregate(logging.CompIndex, "descriptor_unreadable",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	r.descriptors++

	desc, err := desktop.Parse(path, data, b.opts.Parse)
	if err != nil {
		r.skipped++
		logging.Aggregate(logging.CompIndex, "descriptor_skipped",
			slog.String("path", path),
			slog.String("reason", skipReason(err)))
		return
	}
	r.entries = append(r.entries, rootEntry{id: id, path: path, desc: desc})
}

func skipReason(err error) string {
	var pe *desktop.ParseError
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	return strings.TrimSpace(err.Error())
}
