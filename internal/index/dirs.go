package index

import (
	"os"
	"path/filepath"
	"strings"
)

// Dir tiers, in scan priority order.
const (
	TierUser   = "user"
	TierSystem = "system"
	TierEnv    = "env"
)

// Dir is one directory root to scan for descriptors.
type Dir struct {
	Path string
	Tier string
}

// Env holds the environment inputs of directory discovery. Tests construct
// it directly instead of touching the process environment.
type Env struct {
	Home           string
	DataHome       string // XDG_DATA_HOME
	DataDirs       string // XDG_DATA_DIRS, colon separated
	Path           string // PATH
	Locale         string // LC_ALL, LC_MESSAGES or LANG
	CurrentDesktop string // XDG_CURRENT_DESKTOP
}

// EnvFromOS reads Env from the process environment.
func EnvFromOS() Env {
	home, _ := os.UserHomeDir()
	locale := os.Getenv("LC_ALL")
	if locale == "" {
		locale = os.Getenv("LC_MESSAGES")
	}
	if locale == "" {
		locale = os.Getenv("LANG")
	}
	return Env{
		Home:           home,
		DataHome:       os.Getenv("XDG_DATA_HOME"),
		DataDirs:       os.Getenv("XDG_DATA_DIRS"),
		Path:           os.Getenv("PATH"),
		Locale:         locale,
		CurrentDesktop: os.Getenv("XDG_CURRENT_DESKTOP"),
	}
}

// CurrentDesktops splits XDG_CURRENT_DESKTOP.
func (e Env) CurrentDesktops() []string {
	var out []string
	for _, d := range strings.Split(e.CurrentDesktop, ":") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// PathDirs splits PATH in order.
func (e Env) PathDirs() []string {
	var out []string
	for _, d := range filepath.SplitList(e.Path) {
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

var systemDirs = []string{
	"/usr/local/share/applications",
	"/usr/share/applications",
	"/var/lib/flatpak/exports/share/applications",
}

// DefaultDirs returns the built-in scan order: user-local directories first,
// then system-wide ones, then every XDG_DATA_DIRS entry.
func DefaultDirs(env Env) []Dir {
	var dirs []Dir

	dataHome := env.DataHome
	if dataHome == "" && env.Home != "" {
		dataHome = filepath.Join(env.Home, ".local", "share")
	}
	if dataHome != "" {
		dirs = append(dirs,
			Dir{Path: filepath.Join(dataHome, "applications"), Tier: TierUser},
			Dir{Path: filepath.Join(dataHome, "flatpak", "exports", "share", "applications"), Tier: TierUser},
		)
	}
	for _, p := range systemDirs {
		dirs = append(dirs, Dir{Path: p, Tier: TierSystem})
	}
	return Dedupe(append(dirs, EnvDirs(env)...))
}

// EnvDirs returns <dir>/applications for each XDG_DATA_DIRS element.
func EnvDirs(env Env) []Dir {
	var dirs []Dir
	for _, d := range filepath.SplitList(env.DataDirs) {
		if d == "" {
			continue
		}
		dirs = append(dirs, Dir{Path: filepath.Join(d, "applications"), Tier: TierEnv})
	}
	return dirs
}

// ResolveDirs builds the scan order from configured overrides. When
// configured is empty the built-in user and system lists are used. extra
// directories follow, and environment-provided directories always come last.
func ResolveDirs(env Env, configured, extra []string) []Dir {
	var dirs []Dir
	if len(configured) == 0 {
		for _, d := range DefaultDirs(env) {
			if d.Tier != TierEnv {
				dirs = append(dirs, d)
			}
		}
	} else {
		for _, p := range configured {
			dirs = append(dirs, Dir{Path: expandHome(p, env.Home), Tier: TierUser})
		}
	}
	for _, p := range extra {
		dirs = append(dirs, Dir{Path: expandHome(p, env.Home), Tier: TierSystem})
	}
	return Dedupe(append(dirs, EnvDirs(env)...))
}

// Dedupe removes repeated paths, keeping the first (highest priority) one.
func Dedupe(dirs []Dir) []Dir {
	seen := make(map[string]bool, len(dirs))
	out := dirs[:0:0]
	for _, d := range dirs {
		clean := filepath.Clean(d.Path)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		d.Path = clean
		out = append(out, d)
	}
	return out
}

func expandHome(p, home string) string {
	if home == "" {
		return p
	}
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}
