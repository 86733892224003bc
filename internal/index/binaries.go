package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// ScanBinaries lists executable regular files in dirs. Earlier directories
// win on name collisions, matching PATH lookup.
func ScanBinaries(ctx context.Context, dirs []string) map[string]string {
	out := make(map[string]string)
	for _, dir := range dirs {
		if ctx.Err() != nil {
			return out
		}
		list, err := os.ReadDir(dir)
		if err != nil {
			indexLog.Debug("path_dir_unreadable", slog.String("dir", dir), slog.String("error", err.Error()))
			continue
		}
		for _, de := range list {
			name := de.Name()
			if _, ok := out[name]; ok {
				continue
			}
			full := filepath.Join(dir, name)
			if isExecutable(full, de) {
				out[name] = full
			}
		}
	}
	return out
}

func isExecutable(path string, de fs.DirEntry) bool {
	var info fs.FileInfo
	var err error
	if de.Type()&fs.ModeSymlink != 0 {
		info, err = os.Stat(path)
	} else {
		info, err = de.Info()
	}
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
