package search

import (
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyprutils/hyprlauncher/internal/desktop"
)

// Scores of path-mode results: the parent directory, then folders, then files.
const (
	ParentScore = 3000.0
	FolderScore = 2000.0
	FileScore   = 1000.0
)

// maxPathResults bounds one directory listing.
const maxPathResults = 512

// isPathQuery reports whether q browses the filesystem.
func isPathQuery(q string) bool {
	switch q[0] {
	case '~', '$', '/':
		return true
	}
	return false
}

// expandPath resolves a leading ~ and any $VAR or ${VAR} references.
func expandPath(q string) string {
	if q == "~" || strings.HasPrefix(q, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			q = home + q[1:]
		}
	}
	return os.ExpandEnv(q)
}

// browse lists the directory a path query names. A query naming a directory
// lists all of it behind a ".." entry. Otherwise its parent is listed, keeping
// names that start with the last element, ignoring case. Dot files are listed
// only when that prefix starts with a dot.
func browse(q string) []scored {
	p := expandPath(q)
	if !filepath.IsAbs(p) {
		return nil
	}

	dir, prefix := p, ""
	if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
		if strings.HasSuffix(p, "/") {
			return nil
		}
		dir, prefix = filepath.Dir(p), filepath.Base(p)
	}
	dir = filepath.Clean(dir)

	dirents, err := os.ReadDir(dir)
	if err != nil && len(dirents) == 0 {
		return nil
	}

	lowerPrefix := strings.ToLower(prefix)
	showHidden := strings.HasPrefix(prefix, ".")

	var folders, files []Result
	for _, d := range dirents {
		name := d.Name()
		if strings.HasPrefix(name, ".") && !showHidden {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(name), lowerPrefix) {
			continue
		}
		full := filepath.Join(dir, name)
		fi, err := os.Stat(full) // follows symlinks
		if err != nil {
			continue
		}
		switch {
		case fi.IsDir():
			folders = append(folders, folderResult(name, full, FolderScore))
		case fi.Mode().IsRegular():
			files = append(files, fileResult(name, full, fi.Mode()))
		}
	}

	byName := func(rs []Result) {
		sort.SliceStable(rs, func(i, j int) bool {
			return strings.ToLower(rs[i].DisplayName) < strings.ToLower(rs[j].DisplayName)
		})
	}
	byName(folders)
	byName(files)

	var out []scored
	add := func(r Result) {
		if len(out) < maxPathResults {
			out = append(out, scored{pos: len(out), score: r.Score, result: r})
		}
	}
	if parent := filepath.Dir(dir); parent != dir && prefix == "" {
		add(folderResult("..", parent, ParentScore))
	}
	for _, r := range folders {
		add(r)
	}
	for _, r := range files {
		add(r)
	}
	return out
}

func folderResult(name, path string, score float64) Result {
	return Result{
		Kind:        KindFolder,
		Identity:    path,
		DisplayName: name,
		Description: path,
		IconName:    "folder",
		Path:        path,
		Exec:        desktop.JoinExec([]string{"xdg-open", path}),
		Score:       score,
	}
}

// fileResult runs executables directly and opens everything else with the
// default handler.
func fileResult(name, path string, mode fs.FileMode) Result {
	r := Result{
		Kind:        KindFile,
		Identity:    path,
		DisplayName: name,
		Description: path,
		Path:        path,
		Score:       FileScore,
	}
	if mode&0o111 != 0 {
		r.IconName = desktop.DefaultIcon
		r.Exec = desktop.JoinExec([]string{path})
		return r
	}
	r.IconName = fileIcon(path)
	r.Exec = desktop.JoinExec([]string{"xdg-open", path})
	return r
}

func fileIcon(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return "application-pdf"
	case ".txt", ".md", ".log", ".csv", ".conf", ".ini", ".toml", ".yaml", ".yml":
		return "text-x-generic"
	}
	if strings.HasPrefix(mime.TypeByExtension(ext), "text/") {
		return "text-x-generic"
	}
	return "application-x-generic"
}
