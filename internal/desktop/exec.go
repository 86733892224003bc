package desktop

import (
	"path/filepath"
	"strings"
)

// fieldCodes are the Exec placeholders the launcher never expands.
// %i %c %k carry icon, name and location; they are dropped like the rest.
const fieldCodes = "fFuUdDnNickvm"

// SplitExec tokenizes an Exec value. Arguments may be double-quoted; inside
// quotes a backslash escapes ", `, $ and \.
func SplitExec(s string) []string {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote && c == '\\' && i+1 < len(s) && strings.IndexByte("\"`$\\", s[i+1]) >= 0:
			i++
			cur.WriteByte(s[i])
		case c == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (c == ' ' || c == '\t' || c == '\n'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteByte(c)
			started = true
		}
	}
	if started {
		args = append(args, cur.String())
	}
	return args
}

// JoinExec is the inverse of SplitExec.
func JoinExec(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a != "" && !strings.ContainsAny(a, " \t\n\"'\\`$<>~|&;*?#()") {
			quoted[i] = a
			continue
		}
		var b strings.Builder
		b.WriteByte('"')
		for j := 0; j < len(a); j++ {
			if strings.IndexByte("\"`$\\", a[j]) >= 0 {
				b.WriteByte('\\')
			}
			b.WriteByte(a[j])
		}
		b.WriteByte('"')
		quoted[i] = b.String()
	}
	return strings.Join(quoted, " ")
}

// StripFieldCodes removes %f-style placeholders from an Exec value and
// collapses %% to a literal percent sign. Arguments that consisted only of a
// placeholder are removed entirely.
func StripFieldCodes(exec string) string {
	args := SplitExec(exec)
	out := args[:0]
	for _, a := range args {
		if len(a) == 2 && a[0] == '%' && strings.IndexByte(fieldCodes, a[1]) >= 0 {
			continue
		}
		if strings.IndexByte(a, '%') >= 0 {
			a = expandPercent(a)
			if a == "" {
				continue
			}
		}
		out = append(out, a)
	}
	return JoinExec(out)
}

func expandPercent(a string) string {
	var b strings.Builder
	for i := 0; i < len(a); i++ {
		if a[i] != '%' || i+1 == len(a) {
			b.WriteByte(a[i])
			continue
		}
		next := a[i+1]
		switch {
		case next == '%':
			b.WriteByte('%')
			i++
		case strings.IndexByte(fieldCodes, next) >= 0:
			i++
		default:
			b.WriteByte('%')
		}
	}
	return b.String()
}

// BinaryName returns the program name an Exec value runs, skipping an env(1)
// wrapper and its VAR=value assignments.
func BinaryName(exec string) string {
	args := SplitExec(exec)
	i := 0
	if i < len(args) && filepath.Base(args[i]) == "env" {
		i++
		for i < len(args) && (strings.HasPrefix(args[i], "-") || strings.Contains(args[i], "=")) {
			i++
		}
	}
	if i >= len(args) {
		return ""
	}
	return filepath.Base(args[i])
}
