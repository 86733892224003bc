package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyprutils/hyprlauncher/internal/config"
	"github.com/hyprutils/hyprlauncher/internal/heatmap"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

type cliEnv struct {
	root    string
	apps    string
	heatmap string
}

// newCLIEnv points config, data and the application directory at a
// temporary tree.
func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	root := t.TempDir()
	env := &cliEnv{
		root:    root,
		apps:    filepath.Join(root, "apps"),
		heatmap: filepath.Join(root, "heatmap.json"),
	}
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(root, "data"))
	t.Setenv("XDG_DATA_DIRS", filepath.Join(root, "none"))
	t.Setenv(config.EnvConfigPath, filepath.Join(root, "config.toml"))

	require.NoError(t, os.MkdirAll(env.apps, 0o755))
	cfg := "[index]\n" +
		"dirs = [\"" + env.apps + "\"]\n" +
		"path_binaries = false\n" +
		"[heatmap]\n" +
		"path = \"" + env.heatmap + "\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.toml"), []byte(cfg), 0o644))

	config.ClearCache()
	t.Cleanup(config.ClearCache)
	return env
}

func (env *cliEnv) addApp(t *testing.T, file, body string) {
	t.Helper()
	content := "[Desktop Entry]\nType=Application\n" + body
	require.NoError(t, os.WriteFile(filepath.Join(env.apps, file), []byte(content), 0o644))
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersionAndHelp(t *testing.T) {
	code, out, _ := runCLI(t, "", "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, Version)

	code, out, _ = runCLI(t, "")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Commands:")
}

func TestUnknownCommand(t *testing.T) {
	code, _, errOut := runCLI(t, "", "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown command")
}

func TestSearchJSON(t *testing.T) {
	env := newCLIEnv(t)
	env.addApp(t, "firefox.desktop", "Name=Firefox\nExec=firefox %u\nIcon=firefox\n")
	env.addApp(t, "files.desktop", "Name=Files\nExec=nautilus\n")

	code, out, errOut := runCLI(t, "", "search", "fire", "--json")
	require.Equal(t, 0, code, errOut)

	var results []resultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.NotEmpty(t, results)
	assert.Equal(t, "entry", results[0].Kind)
	assert.Equal(t, "firefox.desktop", results[0].ID)
	assert.Equal(t, "firefox", results[0].Exec)
	assert.Equal(t, "firefox", results[0].Icon)
}

func TestSearchCalculator(t *testing.T) {
	newCLIEnv(t)
	code, out, errOut := runCLI(t, "", "search", "--json", "=", "(2+3)*4")
	require.Equal(t, 0, code, errOut)

	var results []resultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "calc", results[0].Kind)
	assert.Equal(t, "20", results[0].Name)

	code, out, _ = runCLI(t, "", "launch", "=6*7")
	require.Equal(t, 0, code)
	assert.Equal(t, "42\n", out, "calculator results print their value")
}

func TestSearchPathListsDirectory(t *testing.T) {
	env := newCLIEnv(t)
	docs := filepath.Join(env.root, "docs")
	require.NoError(t, os.MkdirAll(filepath.Join(docs, "notes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "readme.txt"), []byte("hi"), 0o644))

	code, out, errOut := runCLI(t, "", "search", "--json", docs+"/")
	require.Equal(t, 0, code, errOut)

	var results []resultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3)
	assert.Equal(t, "..", results[0].Name)
	assert.Equal(t, "notes", results[1].Name)
	assert.Equal(t, "folder", results[1].Kind)
	assert.Equal(t, "readme.txt", results[2].Name)
	assert.Equal(t, "file", results[2].Kind)

	code, out, _ = runCLI(t, "", "launch", "--dry-run", filepath.Join(docs, "read"))
	require.Equal(t, 0, code)
	assert.Equal(t, "xdg-open "+filepath.Join(docs, "readme.txt")+"\n", out)
}

func TestSearchTableNoMatches(t *testing.T) {
	env := newCLIEnv(t)
	env.addApp(t, "files.desktop", "Name=Files\nExec=nautilus\n")

	code, out, _ := runCLI(t, "", "search", "zzzz")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "No matches.")
}

func TestSearchMaxFlag(t *testing.T) {
	env := newCLIEnv(t)
	for _, name := range []string{"Alpha", "Alpine", "Altair"} {
		env.addApp(t, strings.ToLower(name)+".desktop", "Name="+name+"\nExec="+strings.ToLower(name)+"\n")
	}

	code, out, _ := runCLI(t, "", "search", "--max", "2", "--json", "al")
	require.Equal(t, 0, code)
	var results []resultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Len(t, results, 2)
}

func TestListHidesActionsByDefault(t *testing.T) {
	env := newCLIEnv(t)
	env.addApp(t, "editor.desktop", "Name=Editor\nExec=editor\nActions=new;\n\n[Desktop Action new]\nName=New Window\nExec=editor --new\n")

	code, out, _ := runCLI(t, "", "list", "--json")
	require.Equal(t, 0, code)
	var entries []entryJSON
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "editor.desktop", entries[0].ID)

	code, out, _ = runCLI(t, "", "list", "--json", "--actions")
	require.Equal(t, 0, code)
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "editor.desktop:new", entries[1].ID)
	assert.Equal(t, "editor.desktop", entries[1].ParentID)
}

func TestLaunchDryRunDoesNotRecord(t *testing.T) {
	env := newCLIEnv(t)
	env.addApp(t, "htop.desktop", "Name=Htop\nExec=htop\nTerminal=true\n")
	t.Setenv("TERMINAL", "foot")

	code, out, errOut := runCLI(t, "", "launch", "--dry-run", "htop")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "foot -e htop\n", out)

	_, err := os.Stat(env.heatmap)
	assert.True(t, os.IsNotExist(err), "dry run leaves the heatmap alone")
}

func TestLaunchNoMatch(t *testing.T) {
	newCLIEnv(t)
	code, _, errOut := runCLI(t, "", "launch", "nothing-here")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no application matches")
}

func TestInteractiveRecordAffectsRanking(t *testing.T) {
	env := newCLIEnv(t)
	env.addApp(t, "alpha.desktop", "Name=Alpha\nExec=alpha\n")
	env.addApp(t, "beta.desktop", "Name=Beta\nExec=beta\n")

	input := ":record beta.desktop\n:record beta.desktop\n\n:quit\n"
	code, out, errOut := runCLI(t, input, "interactive", "--json", "--no-watch")
	require.Equal(t, 0, code, errOut)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	var results []resultJSON
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &results))
	require.NotEmpty(t, results)
	assert.Equal(t, "beta.desktop", results[0].ID)

	store, err := heatmap.Load(env.heatmap)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), store.Get("beta.desktop").LaunchCount, "closing the engine flushes")
}

func TestStats(t *testing.T) {
	env := newCLIEnv(t)
	store, err := heatmap.Load(env.heatmap)
	require.NoError(t, err)
	store.RecordLaunch("a.desktop")
	store.RecordLaunch("b.desktop")
	store.RecordLaunch("b.desktop")
	require.NoError(t, store.Flush())

	code, out, _ := runCLI(t, "", "stats", "--json")
	require.Equal(t, 0, code)
	var stats []struct {
		ID          string `json:"id"`
		LaunchCount uint64 `json:"launch_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	require.Len(t, stats, 2)
	assert.Equal(t, "b.desktop", stats[0].ID)
	assert.Equal(t, uint64(2), stats[0].LaunchCount)
}

func TestReindexJSON(t *testing.T) {
	env := newCLIEnv(t)
	env.addApp(t, "a.desktop", "Name=A\nExec=a\n")
	env.addApp(t, "broken.desktop", "Name=Broken\n")

	code, out, _ := runCLI(t, "", "reindex", "--json")
	require.Equal(t, 0, code)
	var report struct {
		Entries     int `json:"entries"`
		Descriptors int `json:"descriptors"`
		Skipped     int `json:"skipped"`
		Dirs        []struct {
			Path string `json:"path"`
		} `json:"dirs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Entries)
	assert.Equal(t, 2, report.Descriptors)
	assert.Equal(t, 1, report.Skipped)
	require.NotEmpty(t, report.Dirs)
	assert.Equal(t, env.apps, report.Dirs[0].Path)
}

func TestConfigCommands(t *testing.T) {
	env := newCLIEnv(t)

	code, out, _ := runCLI(t, "", "config", "path")
	assert.Equal(t, 0, code)
	assert.Equal(t, filepath.Join(env.root, "config.toml")+"\n", out)

	code, out, _ = runCLI(t, "", "config", "show")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "max_entries = 50")

	code, _, _ = runCLI(t, "", "config", "bogus")
	assert.Equal(t, 2, code)
}
