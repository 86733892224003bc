package search

import (
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hyprutils/hyprlauncher/internal/desktop"
	"github.com/hyprutils/hyprlauncher/internal/index"
	"github.com/hyprutils/hyprlauncher/internal/rank"
)

// Snapshots at least this large are matched in parallel chunks.
const (
	parallelThreshold = 1024
	chunkSize         = 256
)

// BinaryScore is the score of a synthetic PATH executable result.
const BinaryScore = 3000.0

// candidate is a cached fuzzy match at a snapshot position.
type candidate struct {
	pos   int
	match rank.Match
}

type scored struct {
	pos    int
	score  float64
	result Result
}

// Search ranks the published snapshot against query and returns at most
// maxEntries results. maxEntries <= 0 uses the configured MaxEntries, and
// when that is also unset every match is returned. Search never blocks on a
// running build.
//
// Queries starting with ~, $ or / browse the filesystem and queries starting
// with = are evaluated as arithmetic. Both work before the first build.
func (e *Engine) Search(query string, maxEntries int) []Result {
	s := e.settings.Load()
	if maxEntries <= 0 {
		maxEntries = s.MaxEntries
	}
	q := rank.Normalize(query)

	var hits []scored
	switch {
	case q != "" && isPathQuery(q):
		hits = browse(q)
	case strings.HasPrefix(q, "="):
		hits = calculate(q)
	default:
		snap := e.snap.Load()
		if snap == nil {
			return nil
		}
		hits = e.rank(snap, q)
	}
	return collect(hits, maxEntries)
}

// rank scores the snapshot against a plain query.
func (e *Engine) rank(snap *index.Snapshot, q string) []scored {
	scorer := e.scorer.Load()
	if q == "" {
		return e.scoreEmpty(snap, scorer)
	}

	var hits []scored
	for _, c := range e.matches(snap, scorer, q) {
		ent := snap.At(c.pos)
		score := scorer.Combine(c.match, e.store.Get(ent.ID), e.isOpen(ent.ID))
		r := resultFor(ent, score)
		if c.match.Field == rank.FieldName {
			r.MatchedIndexes = c.match.Indexes
		}
		hits = append(hits, scored{pos: c.pos, score: score, result: r})
	}
	if bin, ok := binaryFallback(snap, q); ok {
		hits = append(hits, scored{pos: snap.Len(), score: bin.Score, result: bin})
	}
	return hits
}

// collect orders hits by score, then position, and keeps at most maxEntries.
func collect(hits []scored, maxEntries int) []Result {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].pos < hits[j].pos
	})
	if maxEntries > 0 && len(hits) > maxEntries {
		hits = hits[:maxEntries]
	}

	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = h.result
	}
	return out
}

func (e *Engine) scoreEmpty(snap *index.Snapshot, scorer *rank.Scorer) []scored {
	var hits []scored
	for i := 0; i < snap.Len(); i++ {
		ent := snap.At(i)
		score, ok := scorer.Empty(ent, e.store.Get(ent.ID), e.isOpen(ent.ID))
		if !ok {
			continue
		}
		hits = append(hits, scored{pos: i, score: score, result: resultFor(ent, score)})
	}
	return hits
}

// matches returns the fuzzy matches for q in snapshot order, from the cache
// when the same snapshot has seen the same query. The key takes its case
// flag from scorer so a concurrent ApplyConfig cannot mix the two.
func (e *Engine) matches(snap *index.Snapshot, scorer *rank.Scorer, q string) []candidate {
	key := cacheKey{generation: snap.Generation(), query: q, caseSensitive: scorer.CaseSensitive()}
	if cached, ok := e.cache.Get(key); ok {
		return cached
	}

	var found []candidate
	if snap.Len() < parallelThreshold {
		found = matchRange(snap, scorer, q, 0, snap.Len())
	} else {
		chunks := make([][]candidate, (snap.Len()+chunkSize-1)/chunkSize)
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := range chunks {
			g.Go(func() error {
				lo := i * chunkSize
				chunks[i] = matchRange(snap, scorer, q, lo, min(lo+chunkSize, snap.Len()))
				return nil
			})
		}
		_ = g.Wait()
		for _, c := range chunks {
			found = append(found, c...)
		}
	}

	e.cache.Add(key, found)
	return found
}

func matchRange(snap *index.Snapshot, scorer *rank.Scorer, q string, lo, hi int) []candidate {
	var out []candidate
	for i := lo; i < hi; i++ {
		if m, ok := scorer.Match(q, snap.At(i)); ok {
			out = append(out, candidate{pos: i, match: m})
		}
	}
	return out
}

// binaryFallback offers the executable named by the query's first word when
// no entry is named exactly like the query.
func binaryFallback(snap *index.Snapshot, q string) (Result, bool) {
	args := strings.Fields(q)
	if len(args) == 0 {
		return Result{}, false
	}
	path, ok := snap.Binary(args[0])
	if !ok {
		return Result{}, false
	}
	for _, ent := range snap.Entries() {
		if strings.EqualFold(ent.Name, q) {
			return Result{}, false
		}
	}
	args[0] = path
	return Result{
		Kind:        KindBinary,
		Identity:    path,
		DisplayName: q,
		Description: path,
		IconName:    desktop.DefaultIcon,
		Path:        path,
		Exec:        desktop.JoinExec(args),
		Score:       BinaryScore,
	}, true
}

func (e *Engine) isOpen(id string) bool {
	return e.windows != nil && e.windows.IsWindowOpen(id)
}

func resultFor(ent *index.Entry, score float64) Result {
	return Result{
		Kind:        KindEntry,
		Identity:    ent.ID,
		ParentID:    ent.ParentID,
		DisplayName: ent.Name,
		Description: ent.Description,
		IconName:    ent.Icon,
		Path:        ent.Path,
		Exec:        ent.Exec,
		Terminal:    ent.Terminal,
		Score:       score,
	}
}
