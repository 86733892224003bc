// Package config loads and saves the launcher's user configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// AppName names the configuration and data directories.
const AppName = "hyprlauncher"

// ConfigFileName is the configuration file inside ConfigDir.
const ConfigFileName = "config.toml"

// EnvConfigPath overrides the configuration file location.
const EnvConfigPath = "HYPRLAUNCHER_CONFIG"

// UserConfig is the contents of config.toml.
type UserConfig struct {
	Window    WindowSettings    `toml:"window"`
	Dmenu     DmenuSettings     `toml:"dmenu"`
	WebSearch WebSearchSettings `toml:"web_search"`
	Debug     DebugSettings     `toml:"debug"`
	Index     IndexSettings     `toml:"index"`
	Heatmap   HeatmapSettings   `toml:"heatmap"`
	Launch    LaunchSettings    `toml:"launch"`
}

// WindowSettings holds result-list options.
type WindowSettings struct {
	// MaxEntries caps the number of results. Default: 50
	MaxEntries int `toml:"max_entries"`
}

// DmenuSettings holds dmenu-mode options.
type DmenuSettings struct {
	// AllowInvalid lets dmenu mode return input that matched nothing.
	AllowInvalid bool `toml:"allow_invalid"`
	// CaseSensitive makes query matching respect case.
	CaseSensitive bool `toml:"case_sensitive"`
}

// SearchPrefix maps a query prefix to a search URL.
type SearchPrefix struct {
	Prefix string `toml:"prefix"`
	URL    string `toml:"url"`
}

// WebSearchSettings holds web search options. They are parsed and shown by
// "config show" but resolved by the web-search frontend, not the engine.
type WebSearchSettings struct {
	Enabled bool `toml:"enabled"`
	// Engine is a preset name (duckduckgo, google, bing, brave, ecosia,
	// startpage) or a custom URL the query is appended to.
	Engine   string         `toml:"engine"`
	Prefixes []SearchPrefix `toml:"prefixes"`
}

// DebugSettings controls diagnostics.
type DebugSettings struct {
	EnableLogging bool `toml:"enable_logging"`
	// LogLevel: "debug", "info", "warn", "error". Default: "info"
	LogLevel string `toml:"log_level"`
	// LogFormat: "json" or "text". Default: "json"
	LogFormat string `toml:"log_format"`
}

// IndexSettings controls directory scanning.
type IndexSettings struct {
	// Dirs replaces the built-in user and system directory list.
	Dirs []string `toml:"dirs"`
	// ExtraDirs are scanned after Dirs.
	ExtraDirs []string `toml:"extra_dirs"`
	// Workers bounds parallel directory scans. 0 = number of CPUs.
	Workers int `toml:"workers"`
	// DebounceMs is how long directory changes settle before a rescan. Default: 500
	DebounceMs int `toml:"debounce_ms"`
	// PathBinaries indexes executables on PATH for the binary fallback. Default: true
	PathBinaries *bool `toml:"path_binaries"`
	// MinRescanIntervalMs throttles background rescans. Default: 1000
	MinRescanIntervalMs int `toml:"min_rescan_interval_ms"`
}

// HeatmapSettings controls usage persistence.
type HeatmapSettings struct {
	// Path of the usage file. Default: $XDG_DATA_HOME/hyprlauncher/heatmap.json
	Path string `toml:"path"`
	// FlushIntervalSecs between background writes. Default: 30
	FlushIntervalSecs int `toml:"flush_interval_secs"`
}

// LaunchSettings controls how entries are started.
type LaunchSettings struct {
	// Terminal runs entries with Terminal=true. Default: $TERMINAL, then "xterm"
	Terminal string `toml:"terminal"`
}

// Default values.
const (
	DefaultMaxEntries          = 50
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
	DefaultDebounceMs          = 500
	DefaultMinRescanIntervalMs = 1000
	DefaultFlushIntervalSecs   = 30
	DefaultTerminal            = "xterm"
)

// Default returns a config with every default applied.
func Default() *UserConfig {
	c := &UserConfig{}
	c.applyDefaults()
	return c
}

func (c *UserConfig) applyDefaults() {
	if c.Window.MaxEntries <= 0 {
		c.Window.MaxEntries = DefaultMaxEntries
	}
	if c.Debug.LogLevel == "" {
		c.Debug.LogLevel = DefaultLogLevel
	}
	if c.Debug.LogFormat == "" {
		c.Debug.LogFormat = DefaultLogFormat
	}
	if c.Index.Workers < 0 {
		c.Index.Workers = 0
	}
	if c.Index.DebounceMs <= 0 {
		c.Index.DebounceMs = DefaultDebounceMs
	}
	if c.Index.PathBinaries == nil {
		on := true
		c.Index.PathBinaries = &on
	}
	if c.Index.MinRescanIntervalMs <= 0 {
		c.Index.MinRescanIntervalMs = DefaultMinRescanIntervalMs
	}
	if c.Heatmap.FlushIntervalSecs <= 0 {
		c.Heatmap.FlushIntervalSecs = DefaultFlushIntervalSecs
	}
	if c.WebSearch.Engine == "" {
		c.WebSearch.Engine = "duckduckgo"
	}
}

// Debounce returns the directory debounce as a duration.
func (s IndexSettings) Debounce() time.Duration {
	return time.Duration(s.DebounceMs) * time.Millisecond
}

// MinRescanInterval returns the rescan throttle as a duration.
func (s IndexSettings) MinRescanInterval() time.Duration {
	return time.Duration(s.MinRescanIntervalMs) * time.Millisecond
}

// ScanPath reports whether PATH executables are indexed.
func (s IndexSettings) ScanPath() bool {
	return s.PathBinaries == nil || *s.PathBinaries
}

// FlushInterval returns the heatmap flush period.
func (s HeatmapSettings) FlushInterval() time.Duration {
	return time.Duration(s.FlushIntervalSecs) * time.Second
}

// ResolvePath returns Path, or the default heatmap location.
func (s HeatmapSettings) ResolvePath() (string, error) {
	if s.Path != "" {
		return expandHome(s.Path)
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "heatmap.json"), nil
}

// ResolveTerminal returns the terminal command for Terminal=true entries.
func (s LaunchSettings) ResolveTerminal() string {
	if s.Terminal != "" {
		return s.Terminal
	}
	if t := os.Getenv("TERMINAL"); t != "" {
		return t
	}
	return DefaultTerminal
}

// ConfigDir returns $XDG_CONFIG_HOME/hyprlauncher.
func ConfigDir() (string, error) {
	if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
		return filepath.Join(x, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppName), nil
}

// DataDir returns $XDG_DATA_HOME/hyprlauncher.
func DataDir() (string, error) {
	if x := os.Getenv("XDG_DATA_HOME"); x != "" {
		return filepath.Join(x, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", AppName), nil
}

// LogDir is where debug.log is written.
func LogDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// Path returns the configuration file location.
func Path() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

var (
	cache   *UserConfig
	cacheMu sync.RWMutex
)

// Load returns the cached configuration, reading it on first use. A missing
// file yields defaults. A parse error yields defaults and the error; the
// defaults are cached so the file is not reparsed on every call.
func Load() (*UserConfig, error) {
	cacheMu.RLock()
	if cache != nil {
		defer cacheMu.RUnlock()
		return cache, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cache != nil {
		return cache, nil
	}

	path, err := Path()
	if err != nil {
		cache = Default()
		return cache, nil
	}
	cfg, err := LoadFile(path)
	cache = cfg
	return cfg, err
}

// Reload drops the cache and reads the file again.
func Reload() (*UserConfig, error) {
	ClearCache()
	return Load()
}

// ClearCache forgets the cached configuration.
func ClearCache() {
	cacheMu.Lock()
	cache = nil
	cacheMu.Unlock()
}

// LoadFile reads path without caching. Missing files yield defaults.
func LoadFile(path string) (*UserConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	var cfg UserConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Default(), fmt.Errorf("config.toml parse error: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes cfg to the configuration path atomically and refreshes the
// cache.
func Save(cfg *UserConfig) error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if err := SaveFile(path, cfg); err != nil {
		return err
	}
	cacheMu.Lock()
	cache = cfg
	cacheMu.Unlock()
	return nil
}

// SaveFile encodes cfg to path via a temp file, fsync and rename.
func SaveFile(path string, cfg *UserConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# Hyprlauncher configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := syncFile(tmpPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// CreateExample writes a commented example configuration unless one exists.
// It reports whether a file was written.
func CreateExample() (string, bool, error) {
	path, err := Path()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write example config: %w", err)
	}
	return path, true, nil
}

const exampleConfig = `# Hyprlauncher configuration
# Changes are picked up while the launcher is running.

[window]
# Maximum number of results shown
max_entries = 50

[dmenu]
# allow_invalid = false
# case_sensitive = false

[web_search]
# enabled = false
# Preset (duckduckgo, google, bing, brave, ecosia, startpage) or a URL
# engine = "duckduckgo"
# [[web_search.prefixes]]
# prefix = "gh"
# url = "https://github.com/search?q="

[debug]
# enable_logging = false
# log_level = "info"    # debug, info, warn, error
# log_format = "json"   # json, text

[index]
# Replace the built-in directory list (user-local, then system-wide)
# dirs = ["~/.local/share/applications", "/usr/share/applications"]
# Scanned after dirs; XDG_DATA_DIRS entries always come last
# extra_dirs = ["~/nix-apps"]
# workers = 0
# debounce_ms = 500
# path_binaries = true
# min_rescan_interval_ms = 1000

[heatmap]
# path = "~/.local/share/hyprlauncher/heatmap.json"
# flush_interval_secs = 30

[launch]
# Terminal used for Terminal=true entries (default: $TERMINAL, then xterm)
# terminal = "foot"
`
