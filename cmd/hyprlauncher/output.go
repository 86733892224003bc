package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/hyprutils/hyprlauncher/internal/search"
)

var (
	nameStyle   = lipgloss.NewStyle().Bold(true)
	matchStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7aa2f7")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

const defaultWidth = 100

// terminalWidth returns the width of w when it is a terminal.
func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultWidth
}

// resultJSON is the scripting form of a search result.
type resultJSON struct {
	Kind        string  `json:"kind"`
	ID          string  `json:"id"`
	ParentID    string  `json:"parent_id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Icon        string  `json:"icon"`
	Path        string  `json:"path,omitempty"`
	Exec        string  `json:"exec"`
	Terminal    bool    `json:"terminal,omitempty"`
	Score       float64 `json:"score"`
	Matched     []int   `json:"matched,omitempty"`
}

func toJSON(results []search.Result) []resultJSON {
	out := make([]resultJSON, len(results))
	for i, r := range results {
		out[i] = resultJSON{
			Kind:        string(r.Kind),
			ID:          r.Identity,
			ParentID:    r.ParentID,
			Name:        r.DisplayName,
			Description: r.Description,
			Icon:        r.IconName,
			Path:        r.Path,
			Exec:        r.Exec,
			Terminal:    r.Terminal,
			Score:       r.Score,
			Matched:     r.MatchedIndexes,
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format JSON output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// writeResults prints results as an aligned table.
func writeResults(w io.Writer, results []search.Result, showScore bool) {
	width := terminalWidth(w)
	nameWidth := 0
	for _, r := range results {
		nameWidth = max(nameWidth, runewidth.StringWidth(r.DisplayName))
	}
	nameWidth = min(nameWidth, max(width/3, 12))

	for i, r := range results {
		name := truncate(r.DisplayName, nameWidth)
		line := fmt.Sprintf("%3d  %s", i+1, highlight(name, r.MatchedIndexes))
		line += strings.Repeat(" ", nameWidth-runewidth.StringWidth(name))

		if showScore {
			line += "  " + scoreStyle.Render(fmt.Sprintf("%8.1f", r.Score))
		}
		used := 5 + nameWidth + 2
		if showScore {
			used += 10
		}
		if rest := width - used; rest > 8 {
			line += "  " + dimStyle.Render(truncate(r.Identity, rest))
		}
		fmt.Fprintln(w, line)
	}
}

// highlight renders the runes starting at the matched byte offsets of s
// in the match style.
func highlight(s string, indexes []int) string {
	if len(indexes) == 0 {
		return nameStyle.Render(s)
	}
	marked := make(map[int]bool, len(indexes))
	for _, i := range indexes {
		marked[i] = true
	}

	var b strings.Builder
	for i, r := range s {
		if marked[i] {
			b.WriteString(matchStyle.Render(string(r)))
		} else {
			b.WriteString(nameStyle.Render(string(r)))
		}
	}
	return b.String()
}

// truncate shortens s to at most width display cells.
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

// pad right-fills s with spaces to width display cells.
func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}
