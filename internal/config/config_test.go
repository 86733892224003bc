package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv(EnvConfigPath, "")
	ClearCache()
	t.Cleanup(ClearCache)
	return dir
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxEntries, cfg.Window.MaxEntries)
	assert.Equal(t, "info", cfg.Debug.LogLevel)
	assert.True(t, cfg.Index.ScanPath())
	assert.Equal(t, 500*time.Millisecond, cfg.Index.Debounce())
	assert.Equal(t, 30*time.Second, cfg.Heatmap.FlushInterval())
}

func TestLoadParsesFile(t *testing.T) {
	isolate(t)
	path, err := Path()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`
[window]
max_entries = 7

[dmenu]
case_sensitive = true

[index]
dirs = ["/opt/apps"]
path_binaries = false
debounce_ms = 50

[web_search]
enabled = true
engine = "brave"
[[web_search.prefixes]]
prefix = "gh"
url = "https://github.com/search?q="
`), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Window.MaxEntries)
	assert.True(t, cfg.Dmenu.CaseSensitive)
	assert.Equal(t, []string{"/opt/apps"}, cfg.Index.Dirs)
	assert.False(t, cfg.Index.ScanPath())
	assert.Equal(t, 50*time.Millisecond, cfg.Index.Debounce())
	assert.True(t, cfg.WebSearch.Enabled)
	assert.Equal(t, "brave", cfg.WebSearch.Engine)
	require.Len(t, cfg.WebSearch.Prefixes, 1)
	assert.Equal(t, "gh", cfg.WebSearch.Prefixes[0].Prefix)
	assert.Equal(t, "info", cfg.Debug.LogLevel, "unset keys keep defaults")
}

func TestLoadParseErrorReturnsDefaults(t *testing.T) {
	isolate(t)
	path, _ := Path()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("[window\nmax_entries = "), 0o644))

	cfg, err := Load()
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultMaxEntries, cfg.Window.MaxEntries)

	again, err := Load()
	assert.NoError(t, err, "defaults are cached after a parse error")
	assert.Same(t, cfg, again)
}

func TestSaveAndReload(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.Window.MaxEntries = 12
	cfg.Launch.Terminal = "foot"
	require.NoError(t, Save(cfg))

	path, _ := Path()
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	got, err := Reload()
	require.NoError(t, err)
	assert.Equal(t, 12, got.Window.MaxEntries)
	assert.Equal(t, "foot", got.Launch.ResolveTerminal())
}

func TestCreateExampleParsesAndIsNotOverwritten(t *testing.T) {
	isolate(t)
	path, created, err := CreateExample()
	require.NoError(t, err)
	assert.True(t, created)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Window.MaxEntries)

	_, created, err = CreateExample()
	require.NoError(t, err)
	assert.False(t, created)
}

func TestEnvOverridesPath(t *testing.T) {
	dir := isolate(t)
	custom := filepath.Join(dir, "elsewhere.toml")
	t.Setenv(EnvConfigPath, custom)
	p, err := Path()
	require.NoError(t, err)
	assert.Equal(t, custom, p)
}

func TestResolveHeatmapPath(t *testing.T) {
	dir := isolate(t)
	p, err := HeatmapSettings{}.ResolvePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", AppName, "heatmap.json"), p)

	p, err = HeatmapSettings{Path: "/tmp/hm.json"}.ResolvePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/hm.json", p)
}

func TestResolveTerminal(t *testing.T) {
	t.Setenv("TERMINAL", "")
	assert.Equal(t, DefaultTerminal, LaunchSettings{}.ResolveTerminal())
	t.Setenv("TERMINAL", "kitty")
	assert.Equal(t, "kitty", LaunchSettings{}.ResolveTerminal())
	assert.Equal(t, "foot", LaunchSettings{Terminal: "foot"}.ResolveTerminal())
}
