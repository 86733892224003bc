package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hyprutils/hyprlauncher/internal/heatmap"
	"github.com/hyprutils/hyprlauncher/internal/index"
	"github.com/hyprutils/hyprlauncher/internal/platform"
)

// handleSearch prints the ranked results for a query.
func (c *cli) handleSearch(args []string) int {
	fs := c.newFlagSet("search", "search [options] <query>",
		"hyprlauncher search fire",
		"hyprlauncher search --json --max 5 term",
		"hyprlauncher search            # most used applications")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	maxEntries := fs.Int("max", 0, "Maximum results (default: window.max_entries)")
	showScore := fs.Bool("score", false, "Show scores")
	caseSensitive := fs.Bool("case-sensitive", false, "Match case (overrides dmenu.case_sensitive)")
	verbose := fs.Bool("verbose", false, "Log to stderr")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	cfg := c.loadConfig()
	if *caseSensitive {
		cfg.Dmenu.CaseSensitive = true
	}
	setupLogging(cfg, *verbose)

	e, err := openEngine(context.Background(), cfg, false)
	if err != nil {
		return c.errorf("failed to start engine: %v", err)
	}
	defer e.Close()

	results := e.Search(joinQuery(fs.Args()), *maxEntries)
	if *jsonOutput {
		if err := writeJSON(c.stdout, toJSON(results)); err != nil {
			return c.errorf("%v", err)
		}
		return 0
	}
	if len(results) == 0 {
		fmt.Fprintln(c.stdout, "No matches.")
		return 0
	}
	writeResults(c.stdout, results, *showScore)
	return 0
}

// entryJSON is the scripting form of an indexed entry.
type entryJSON struct {
	ID         string   `json:"id"`
	ParentID   string   `json:"parent_id,omitempty"`
	Name       string   `json:"name"`
	Exec       string   `json:"exec"`
	Icon       string   `json:"icon"`
	Terminal   bool     `json:"terminal,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	Path       string   `json:"path"`
	Source     string   `json:"source"`
}

// handleList prints every indexed entry in index order.
func (c *cli) handleList(args []string) int {
	fs := c.newFlagSet("list", "list [options]",
		"hyprlauncher list",
		"hyprlauncher list --actions --json")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	withActions := fs.Bool("actions", false, "Include desktop actions")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	cfg := c.loadConfig()
	setupLogging(cfg, false)

	e, err := openEngine(context.Background(), cfg, false)
	if err != nil {
		return c.errorf("failed to start engine: %v", err)
	}
	defer e.Close()

	entries := listEntries(e.Snapshot(), *withActions)
	if *jsonOutput {
		out := make([]entryJSON, len(entries))
		for i, ent := range entries {
			out[i] = entryJSON{
				ID:         ent.ID,
				ParentID:   ent.ParentID,
				Name:       ent.Name,
				Exec:       ent.Exec,
				Icon:       ent.Icon,
				Terminal:   ent.Terminal,
				Categories: ent.Categories,
				Keywords:   ent.Keywords,
				Path:       ent.Path,
				Source:     ent.Source,
			}
		}
		if err := writeJSON(c.stdout, out); err != nil {
			return c.errorf("%v", err)
		}
		return 0
	}

	if len(entries) == 0 {
		fmt.Fprintln(c.stdout, "No applications found.")
		return 0
	}
	width := terminalWidth(c.stdout)
	idWidth := min(40, width/2)
	fmt.Fprintf(c.stdout, "%s  %s\n", headerStyle.Render(pad("ID", idWidth)), headerStyle.Render("NAME"))
	for _, ent := range entries {
		fmt.Fprintf(c.stdout, "%s  %s\n",
			dimStyle.Render(pad(truncate(ent.ID, idWidth), idWidth)),
			nameStyle.Render(truncate(ent.Name, width-idWidth-2)))
	}
	fmt.Fprintf(c.stdout, "\n%d entries\n", len(entries))
	return 0
}

func listEntries(snap *index.Snapshot, withActions bool) []index.Entry {
	if snap == nil {
		return nil
	}
	var out []index.Entry
	for _, ent := range snap.Entries() {
		if ent.IsAction() && !withActions {
			continue
		}
		out = append(out, ent)
	}
	return out
}

// handleStats prints the most launched identities.
func (c *cli) handleStats(args []string) int {
	fs := c.newFlagSet("stats", "stats [options]",
		"hyprlauncher stats",
		"hyprlauncher stats --top 20 --json")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	top := fs.Int("top", 10, "Number of entries to show (0 = all)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	cfg := c.loadConfig()
	setupLogging(cfg, false)

	hmPath, err := cfg.Heatmap.ResolvePath()
	if err != nil {
		return c.errorf("%v", err)
	}
	store, err := heatmap.Load(hmPath)
	if err != nil {
		c.warnf("%v", err)
	}

	ranked := store.Top(*top)
	if *jsonOutput {
		type statJSON struct {
			ID          string `json:"id"`
			LaunchCount uint64 `json:"launch_count"`
			LastUsed    string `json:"last_used,omitempty"`
		}
		out := make([]statJSON, len(ranked))
		for i, r := range ranked {
			out[i] = statJSON{ID: r.ID, LaunchCount: r.LaunchCount}
			if !r.LastUsed.IsZero() {
				out[i].LastUsed = r.LastUsed.UTC().Format("2006-01-02T15:04:05Z07:00")
			}
		}
		if err := writeJSON(c.stdout, out); err != nil {
			return c.errorf("%v", err)
		}
		return 0
	}

	if len(ranked) == 0 {
		fmt.Fprintln(c.stdout, "No launches recorded.")
		return 0
	}
	for i, r := range ranked {
		last := "never"
		if !r.LastUsed.IsZero() {
			last = r.LastUsed.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(c.stdout, "%3d  %s  %s  %s\n", i+1,
			scoreStyle.Render(fmt.Sprintf("%6d", r.LaunchCount)),
			dimStyle.Render(last),
			nameStyle.Render(r.ID))
	}
	return 0
}

// handleReindex builds the index once and reports what it found.
func (c *cli) handleReindex(args []string) int {
	fs := c.newFlagSet("reindex", "reindex [options]", "hyprlauncher reindex --json")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	verbose := fs.Bool("verbose", false, "Log to stderr")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	cfg := c.loadConfig()
	setupLogging(cfg, *verbose)

	e, err := openEngine(context.Background(), cfg, false)
	if err != nil {
		return c.errorf("failed to start engine: %v", err)
	}
	defer e.Close()

	snap := e.Snapshot()
	stats := snap.Stats()
	dirs := e.Settings().Dirs

	if *jsonOutput {
		type dirJSON struct {
			Path    string `json:"path"`
			Tier    string `json:"tier"`
			Warning string `json:"watch_warning,omitempty"`
		}
		out := struct {
			Generation  uint64    `json:"generation"`
			Entries     int       `json:"entries"`
			Descriptors int       `json:"descriptors"`
			Skipped     int       `json:"skipped"`
			Duplicates  int       `json:"duplicates"`
			Errors      int       `json:"errors"`
			Binaries    int       `json:"binaries"`
			DurationMs  int64     `json:"duration_ms"`
			Platform    string    `json:"platform"`
			Dirs        []dirJSON `json:"dirs"`
		}{
			Platform:    string(platform.Detect()),
			Generation:  snap.Generation(),
			Entries:     snap.Len(),
			Descriptors: stats.Descriptors,
			Skipped:     stats.Skipped,
			Duplicates:  stats.Duplicates,
			Errors:      stats.Errors,
			Binaries:    stats.Binaries,
			DurationMs:  stats.Duration.Milliseconds(),
		}
		for _, d := range dirs {
			out.Dirs = append(out.Dirs, dirJSON{Path: d.Path, Tier: d.Tier, Warning: platform.WatchWarning(d.Path)})
		}
		if err := writeJSON(c.stdout, out); err != nil {
			return c.errorf("%v", err)
		}
		return 0
	}

	fmt.Fprintf(c.stdout, "Indexed %d entries from %d descriptors in %s\n",
		snap.Len(), stats.Descriptors, stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(c.stdout, "  skipped: %d  shadowed: %d  errors: %d  binaries: %d\n",
		stats.Skipped, stats.Duplicates, stats.Errors, stats.Binaries)
	fmt.Fprintln(c.stdout)
	fmt.Fprintln(c.stdout, headerStyle.Render("Directories"))
	for _, d := range dirs {
		fmt.Fprintf(c.stdout, "  %-7s %s\n", d.Tier, d.Path)
		if msg := platform.WatchWarning(d.Path); msg != "" {
			fmt.Fprintf(c.stdout, "          %s\n", dimStyle.Render(msg))
		}
	}
	return 0
}
