package index

import (
	"strings"
	"time"

	"github.com/hyprutils/hyprlauncher/internal/desktop"
)

// Entry is one searchable record in a snapshot: either an application or one
// of its desktop actions. Entries are values owned by their snapshot and must
// not be modified once published.
type Entry struct {
	ID       string // desktop file id, or "<parent>:<action>" for actions
	ParentID string // empty for top-level applications
	ActionID string

	Name        string
	NameLower   string
	Description string
	Icon        string
	HasIcon     bool
	Exec        string
	BinaryName  string
	Terminal    bool

	Categories      []string
	CategoriesLower []string
	Keywords        []string
	KeywordsLower   []string

	Path   string // descriptor file the entry came from
	Source string // directory root the descriptor was found under
}

// IsAction reports whether the entry is a desktop action of another entry.
func (e *Entry) IsAction() bool {
	return e.ParentID != ""
}

// ActionSeparator joins a parent identity and an action id.
const ActionSeparator = ":"

// ScanStats summarizes one index build.
type ScanStats struct {
	Dirs        int           // roots that were readable
	Descriptors int           // descriptor files read
	Skipped     int           // descriptors rejected by the parser
	Duplicates  int           // lower-priority descriptors shadowed by identity
	Errors      int           // unreadable files or directories
	Binaries    int           // executables found on PATH
	Duration    time.Duration // wall time of the build
}

// Snapshot is an immutable, ordered view of every indexed entry.
// A new build produces a new Snapshot; nothing mutates one after construction.
type Snapshot struct {
	generation uint64
	builtAt    time.Time
	entries    []Entry
	byID       map[string]int
	binaries   map[string]string
	stats      ScanStats
}

// NewSnapshot copies entries (in the given order) and binaries into a new
// snapshot. Entries with a duplicate ID after the first are dropped.
func NewSnapshot(generation uint64, entries []Entry, binaries map[string]string) *Snapshot {
	s := &Snapshot{
		generation: generation,
		builtAt:    time.Now(),
		entries:    make([]Entry, 0, len(entries)),
		byID:       make(map[string]int, len(entries)),
		binaries:   make(map[string]string, len(binaries)),
	}
	for _, e := range entries {
		if _, dup := s.byID[e.ID]; dup {
			continue
		}
		if e.NameLower == "" {
			e.NameLower = strings.ToLower(e.Name)
		}
		s.byID[e.ID] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	for name, path := range binaries {
		s.binaries[name] = path
	}
	return s
}

// Empty returns a snapshot with no entries.
func Empty() *Snapshot {
	return NewSnapshot(0, nil, nil)
}

// Generation is the build sequence number; later builds have larger values.
func (s *Snapshot) Generation() uint64 { return s.generation }

// BuiltAt is when the snapshot was assembled.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Len returns the number of entries, actions included.
func (s *Snapshot) Len() int { return len(s.entries) }

// At returns the entry at position i in scan order.
func (s *Snapshot) At(i int) *Entry { return &s.entries[i] }

// Entries returns the entries in scan order. The slice is shared; callers
// must treat it as read-only.
func (s *Snapshot) Entries() []Entry { return s.entries }

// Get looks up an entry by identity.
func (s *Snapshot) Get(id string) (*Entry, bool) {
	i, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return &s.entries[i], true
}

// Position returns the scan-order index of id, used as the ranking tie-break.
func (s *Snapshot) Position(id string) (int, bool) {
	i, ok := s.byID[id]
	return i, ok
}

// Binary resolves an executable name found on PATH at build time.
func (s *Snapshot) Binary(name string) (string, bool) {
	p, ok := s.binaries[name]
	return p, ok
}

// BinaryCount returns how many PATH executables were indexed.
func (s *Snapshot) BinaryCount() int { return len(s.binaries) }

// Stats returns the build statistics.
func (s *Snapshot) Stats() ScanStats { return s.stats }

// entriesFromDescriptor expands a parsed descriptor into its application
// entry followed by one entry per action, in declared order.
func entriesFromDescriptor(id, path, source string, d *desktop.Entry) []Entry {
	parent := Entry{
		ID:              id,
		Name:            d.Name,
		NameLower:       strings.ToLower(d.Name),
		Description:     d.Description,
		Icon:            d.Icon,
		HasIcon:         d.HasIcon,
		Exec:            d.Exec,
		BinaryName:      d.BinaryName,
		Terminal:        d.Terminal,
		Categories:      d.Categories,
		CategoriesLower: d.CategoriesLower,
		Keywords:        d.Keywords,
		KeywordsLower:   d.KeywordsLower,
		Path:            path,
		Source:          source,
	}

	out := make([]Entry, 0, 1+len(d.Actions))
	out = append(out, parent)
	for _, a := range d.Actions {
		icon := a.Icon
		hasIcon := icon != ""
		if !hasIcon {
			icon, hasIcon = parent.Icon, parent.HasIcon
		}
		out = append(out, Entry{
			ID:          id + ActionSeparator + a.ID,
			ParentID:    id,
			ActionID:    a.ID,
			Name:        a.Name,
			NameLower:   strings.ToLower(a.Name),
			Description: parent.Name,
			Icon:        icon,
			HasIcon:     hasIcon,
			Exec:        a.Exec,
			BinaryName:  desktop.BinaryName(a.Exec),
			Terminal:    parent.Terminal,
			Path:        path,
			Source:      source,
		})
	}
	return out
}
