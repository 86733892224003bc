// Package desktop parses freedesktop.org application descriptors
// (.desktop files) into fully typed entries.
package desktop

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultIcon is shown for entries that do not declare an Icon key.
const DefaultIcon = "application-x-executable"

// Sentinel reasons a descriptor is skipped. They are wrapped in *ParseError.
var (
	ErrMissingGroup   = errors.New("no [Desktop Entry] group")
	ErrMissingName    = errors.New("missing Name")
	ErrMissingExec    = errors.New("missing Exec")
	ErrHidden         = errors.New("hidden or NoDisplay")
	ErrNotApplication = errors.New("type is not Application")
	ErrNotShown       = errors.New("not shown in current desktop")
)

// ParseError reports why a single descriptor was rejected. It never aborts an
// index build; callers log it and move on to the next file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Action is a sub-command declared through Actions= and a
// [Desktop Action <id>] group.
type Action struct {
	ID   string
	Name string
	Icon string // empty means inherit from the parent entry
	Exec string
}

// Entry is a normalized application descriptor.
type Entry struct {
	Name        string
	Description string
	Icon        string
	HasIcon     bool
	Exec        string
	BinaryName  string
	Terminal    bool
	Categories  []string
	Keywords    []string
	Actions     []Action

	// Lower-cased copies used for matching. Display keeps original casing.
	CategoriesLower []string
	KeywordsLower   []string
}

// ParseOptions carries the environment-dependent inputs to Parse.
type ParseOptions struct {
	// Locale in POSIX form (de_DE.UTF-8@euro). Empty means unlocalized keys only.
	Locale string

	// CurrentDesktops from XDG_CURRENT_DESKTOP, used for OnlyShowIn/NotShowIn.
	CurrentDesktops []string
}

// Parse converts raw descriptor bytes into an Entry. path is only used for
// error reporting.
func Parse(path string, data []byte, opts ParseOptions) (*Entry, error) {
	groups, err := parseGroups(data)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	sec, ok := groups["Desktop Entry"]
	if !ok {
		return nil, &ParseError{Path: path, Err: ErrMissingGroup}
	}

	if t, ok := sec.get("Type"); ok && t != "Application" {
		return nil, &ParseError{Path: path, Err: ErrNotApplication}
	}
	if sec.bool("Hidden") || sec.bool("NoDisplay") {
		return nil, &ParseError{Path: path, Err: ErrHidden}
	}
	if !shownIn(sec, opts.CurrentDesktops) {
		return nil, &ParseError{Path: path, Err: ErrNotShown}
	}

	locales := localeChain(opts.Locale)

	name := strings.TrimSpace(sec.localized("Name", locales))
	if name == "" {
		return nil, &ParseError{Path: path, Err: ErrMissingName}
	}

	rawExec, _ := sec.get("Exec")
	exec := StripFieldCodes(rawExec)
	if exec == "" {
		return nil, &ParseError{Path: path, Err: ErrMissingExec}
	}

	entry := &Entry{
		Name:       name,
		Exec:       exec,
		BinaryName: BinaryName(exec),
		Terminal:   sec.bool("Terminal"),
		Categories: sec.list("Categories"),
		Keywords:   splitList(sec.localizedRaw("Keywords", locales)),
		Icon:       DefaultIcon,
	}

	entry.Description = sec.localized("Comment", locales)
	if entry.Description == "" {
		entry.Description = sec.localized("GenericName", locales)
	}

	if icon, ok := sec.get("Icon"); ok && icon != "" {
		entry.Icon = icon
		entry.HasIcon = true
	}

	entry.CategoriesLower = lowerAll(entry.Categories)
	entry.KeywordsLower = lowerAll(entry.Keywords)

	for _, id := range sec.list("Actions") {
		g, ok := groups["Desktop Action "+id]
		if !ok {
			continue
		}
		actionExec := StripFieldCodes(g.value("Exec"))
		if actionExec == "" {
			continue
		}
		actionName := strings.TrimSpace(g.localized("Name", locales))
		if actionName == "" {
			actionName = id
		}
		entry.Actions = append(entry.Actions, Action{
			ID:   id,
			Name: actionName,
			Icon: g.value("Icon"),
			Exec: actionExec,
		})
	}

	return entry, nil
}

// IsDescriptor reports whether a file name looks like an application descriptor.
func IsDescriptor(name string) bool {
	return filepath.Ext(name) == ".desktop"
}

func shownIn(g group, desktops []string) bool {
	if len(desktops) == 0 {
		// Without XDG_CURRENT_DESKTOP only OnlyShowIn can exclude.
		_, restricted := g.get("OnlyShowIn")
		return !restricted
	}
	if _, ok := g.get("OnlyShowIn"); ok {
		if !intersects(g.list("OnlyShowIn"), desktops) {
			return false
		}
	}
	if _, ok := g.get("NotShowIn"); ok {
		if intersects(g.list("NotShowIn"), desktops) {
			return false
		}
	}
	return true
}

func intersects(list, desktops []string) bool {
	for _, a := range list {
		for _, d := range desktops {
			if strings.EqualFold(a, d) {
				return true
			}
		}
	}
	return false
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
