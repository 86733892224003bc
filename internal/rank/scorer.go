// Package rank scores index entries against a query.
package rank

import (
	"math"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/hyprutils/hyprlauncher/internal/heatmap"
	"github.com/hyprutils/hyprlauncher/internal/index"
)

// Score components.
const (
	FuzzyWeight       = 10.0
	ExactNameBonus    = 10000.0
	BinaryBonus       = 3000.0
	KeywordBonus      = 2500.0
	CategoryBonus     = 2000.0
	IconBonus         = 1000.0
	FrequencyWeight   = 1000.0
	RecencyWeight     = 500.0
	RecencyHalfLife   = 72 * time.Hour
	OpenWindowPenalty = 500.0
)

// Field is the entry field a fuzzy match was found in.
type Field int

const (
	FieldName Field = iota
	FieldKeyword
	FieldBinary
)

func (f Field) String() string {
	switch f {
	case FieldName:
		return "name"
	case FieldKeyword:
		return "keyword"
	case FieldBinary:
		return "binary"
	}
	return "unknown"
}

// Match is the query-dependent, usage-independent part of a score. It only
// depends on the query and the entry, so it can be cached per snapshot.
type Match struct {
	Field   Field
	Fuzzy   int     // raw fuzzy score of the matched field
	Base    float64 // weighted fuzzy score plus fixed bonuses
	Indexes []int   // matched positions in the display name, when Field is FieldName
}

// Options configures a Scorer.
type Options struct {
	// CaseSensitive requires query characters to match case exactly.
	CaseSensitive bool
	// Now is the clock used for recency. Defaults to time.Now.
	Now func() time.Time
}

// Scorer ranks entries. It performs no I/O and is safe for concurrent use.
type Scorer struct {
	caseSensitive bool
	now           func() time.Time
}

// NewScorer returns a Scorer for opts.
func NewScorer(opts Options) *Scorer {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scorer{caseSensitive: opts.CaseSensitive, now: now}
}

// CaseSensitive reports whether the scorer matches case exactly.
func (s *Scorer) CaseSensitive() bool { return s.caseSensitive }

// Normalize trims a raw query. A blank query normalizes to "".
func Normalize(query string) string {
	return strings.TrimSpace(query)
}

// Match computes the fuzzy and fixed-bonus part of the score for a
// normalized, non-empty query. It reports false when no field matches.
func (s *Scorer) Match(query string, e *index.Entry) (Match, bool) {
	if query == "" {
		return Match{}, false
	}

	var (
		m     Match
		found bool
	)
	if fm, ok := s.fuzzyOne(query, e.Name); ok {
		m = Match{Field: FieldName, Fuzzy: fm.Score, Base: float64(fm.Score) * FuzzyWeight, Indexes: fm.MatchedIndexes}
		found = true
	} else if best, ok := s.fuzzyBest(query, e.Keywords); ok {
		m = Match{Field: FieldKeyword, Fuzzy: best, Base: float64(best) * FuzzyWeight / 2}
		found = true
	} else if fm, ok := s.fuzzyOne(query, e.BinaryName); ok {
		m = Match{Field: FieldBinary, Fuzzy: fm.Score, Base: float64(fm.Score) * FuzzyWeight / 2}
		found = true
	}
	if !found {
		return Match{}, false
	}

	m.Base += s.bonuses(query, e)
	return m, true
}

func (s *Scorer) bonuses(query string, e *index.Entry) float64 {
	ql := strings.ToLower(query)
	var b float64

	if strings.EqualFold(e.Name, query) && (!s.caseSensitive || e.Name == query) {
		b += ExactNameBonus
	}
	if e.BinaryName != "" && strings.HasPrefix(strings.ToLower(e.BinaryName), ql) {
		b += BinaryBonus
	}
	if anyPrefix(e.KeywordsLower, ql) {
		b += KeywordBonus
	}
	if anyPrefix(e.CategoriesLower, ql) {
		b += CategoryBonus
	}
	if e.HasIcon && strings.Contains(strings.ToLower(e.Icon), ql) {
		b += IconBonus
	}
	return b
}

// Usage returns the frequency and recency boost for st. Never-launched
// entries get zero.
func (s *Scorer) Usage(st heatmap.Stat) float64 {
	var boost float64
	if st.LaunchCount > 0 {
		boost += FrequencyWeight * math.Log2(1+float64(st.LaunchCount))
	}
	if !st.LastUsed.IsZero() {
		age := s.now().Sub(st.LastUsed)
		if age < 0 {
			age = 0
		}
		boost += RecencyWeight * math.Exp2(-float64(age)/float64(RecencyHalfLife))
	}
	return boost
}

// Combine adds usage and window terms to a precomputed match.
func (s *Scorer) Combine(m Match, st heatmap.Stat, windowOpen bool) float64 {
	score := m.Base + s.Usage(st)
	if windowOpen {
		score -= OpenWindowPenalty
	}
	return score
}

// Empty scores an entry for the blank query. Only top-level entries take
// part in that view.
func (s *Scorer) Empty(e *index.Entry, st heatmap.Stat, windowOpen bool) (float64, bool) {
	if e.IsAction() {
		return 0, false
	}
	return s.Combine(Match{}, st, windowOpen), true
}

// Score ranks one entry for query. It reports false when the entry must be
// excluded from the results.
func (s *Scorer) Score(query string, e *index.Entry, st heatmap.Stat, windowOpen bool) (float64, bool) {
	q := Normalize(query)
	if q == "" {
		return s.Empty(e, st, windowOpen)
	}
	m, ok := s.Match(q, e)
	if !ok {
		return 0, false
	}
	return s.Combine(m, st, windowOpen), true
}

func (s *Scorer) fuzzyOne(query, target string) (fuzzy.Match, bool) {
	if target == "" {
		return fuzzy.Match{}, false
	}
	if s.caseSensitive && !isSubsequence(query, target) {
		return fuzzy.Match{}, false
	}
	matches := fuzzy.Find(query, []string{target})
	if len(matches) == 0 {
		return fuzzy.Match{}, false
	}
	return matches[0], true
}

func (s *Scorer) fuzzyBest(query string, targets []string) (int, bool) {
	best, found := 0, false
	for _, t := range targets {
		fm, ok := s.fuzzyOne(query, t)
		if !ok {
			continue
		}
		if !found || fm.Score > best {
			best, found = fm.Score, true
		}
	}
	return best, found
}

// isSubsequence reports whether every rune of q appears in t in order,
// comparing case exactly.
func isSubsequence(q, t string) bool {
	qr := []rune(q)
	i := 0
	for _, r := range t {
		if i < len(qr) && qr[i] == r {
			i++
		}
	}
	return i == len(qr)
}

func anyPrefix(list []string, prefix string) bool {
	for _, v := range list {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return false
}
