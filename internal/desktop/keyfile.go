package desktop

import (
	"bufio"
	"bytes"
	"strings"
)

// maxLineSize bounds a single descriptor line.
const maxLineSize = 1024 * 1024

// group holds the keys of one [Group Name] section. Localized keys are stored
// verbatim, e.g. "Name[de]". Values keep their escapes until read so list
// splitting can tell \; from a separator.
type group map[string]string

// parseGroups reads the key-file format used by desktop entries. Malformed
// lines are ignored; the first occurrence of a group or key wins. The only
// error is a scanner failure such as a line longer than maxLineSize.
func parseGroups(data []byte) (map[string]group, error) {
	groups := make(map[string]group)
	var current group

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if line[0] == '[' && line[len(line)-1] == ']' {
			name := line[1 : len(line)-1]
			if _, seen := groups[name]; seen {
				// Duplicate group: ignore its keys.
				current = nil
				continue
			}
			current = make(group)
			groups[name] = current
			continue
		}
		if current == nil {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, seen := current[key]; seen {
			continue
		}
		current[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return groups, nil
}

func (g group) get(key string) (string, bool) {
	v, ok := g[key]
	return unescape(v), ok
}

func (g group) value(key string) string {
	return unescape(g[key])
}

// list splits a ;-separated value.
func (g group) list(key string) []string {
	return splitList(g[key])
}

func (g group) bool(key string) bool {
	return strings.EqualFold(g[key], "true")
}

// localized returns the best value for key given a locale fallback chain.
func (g group) localized(key string, locales []string) string {
	return unescape(g.localizedRaw(key, locales))
}

func (g group) localizedRaw(key string, locales []string) string {
	for _, loc := range locales {
		if v, ok := g[key+"["+loc+"]"]; ok && v != "" {
			return v
		}
	}
	return g[key]
}

// localeChain expands a POSIX locale into the freedesktop lookup order:
// lang_COUNTRY@MODIFIER, lang_COUNTRY, lang@MODIFIER, lang.
func localeChain(locale string) []string {
	if locale == "" || locale == "C" || locale == "POSIX" {
		return nil
	}
	if i := strings.IndexByte(locale, '.'); i >= 0 {
		// Drop the encoding but keep a trailing modifier.
		rest := locale[i:]
		mod := ""
		if j := strings.IndexByte(rest, '@'); j >= 0 {
			mod = rest[j:]
		}
		locale = locale[:i] + mod
	}

	lang, modifier, _ := strings.Cut(locale, "@")
	lang, country, _ := strings.Cut(lang, "_")

	var chain []string
	if country != "" && modifier != "" {
		chain = append(chain, lang+"_"+country+"@"+modifier)
	}
	if country != "" {
		chain = append(chain, lang+"_"+country)
	}
	if modifier != "" {
		chain = append(chain, lang+"@"+modifier)
	}
	return append(chain, lang)
}

// splitList splits v on unescaped semicolons and unescapes each item.
// Empty items are dropped.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	add := func(item string) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, unescape(item))
		}
	}
	start := 0
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case '\\':
			i++
		case ';':
			add(v[start:i])
			start = i + 1
		}
	}
	if start < len(v) {
		add(v[start:])
	}
	return out
}

// unescape resolves the \s \n \t \r \\ and \; escapes. Unknown escapes
// are kept as written.
func unescape(v string) string {
	if !strings.ContainsRune(v, '\\') {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '\\' || i+1 == len(v) {
			b.WriteByte(c)
			continue
		}
		i++
		switch v[i] {
		case 's':
			b.WriteByte(' ')
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case ';':
			b.WriteByte(';')
		default:
			b.WriteByte('\\')
			b.WriteByte(v[i])
		}
	}
	return b.String()
}
