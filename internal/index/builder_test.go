package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDescriptor(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func app(name, exec string) string {
	return "[Desktop Entry]\nType=Application\nName=" + name + "\nExec=" + exec + "\n"
}

func ids(s *Snapshot) []string {
	out := make([]string, 0, s.Len())
	for _, e := range s.Entries() {
		out = append(out, e.ID)
	}
	return out
}

func TestBuildUserDirShadowsSystem(t *testing.T) {
	user := t.TempDir()
	system := t.TempDir()
	writeDescriptor(t, user, "firefox.desktop", app("Firefox (mine)", "firefox --profile mine"))
	writeDescriptor(t, system, "firefox.desktop", app("Firefox", "firefox %u"))
	writeDescriptor(t, system, "files.desktop", app("Files", "nautilus"))

	b := NewBuilder(BuilderOptions{Workers: 2})
	snap, err := b.Build(context.Background(), []Dir{
		{Path: user, Tier: TierUser},
		{Path: system, Tier: TierSystem},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"files.desktop", "firefox.desktop"}, ids(snap))
	ff, ok := snap.Get("firefox.desktop")
	require.True(t, ok)
	assert.Equal(t, "Firefox (mine)", ff.Name)
	assert.Equal(t, user, ff.Source)
	assert.Equal(t, 1, snap.Stats().Duplicates)
	assert.Equal(t, 2, snap.Stats().Dirs)
}

func TestBuildIsDeterministic(t *testing.T) {
	roots := []Dir{{Path: t.TempDir()}, {Path: t.TempDir()}, {Path: t.TempDir()}}
	names := []string{"zed", "alpha", "mid", "beta", "omega", "kappa"}
	for i, n := range names {
		writeDescriptor(t, roots[i%len(roots)].Path, n+".desktop", app(n, n))
	}

	first, err := NewBuilder(BuilderOptions{Workers: 3}).Build(context.Background(), roots)
	require.NoError(t, err)
	second, err := NewBuilder(BuilderOptions{Workers: 1}).Build(context.Background(), roots)
	require.NoError(t, err)

	got := ids(first)
	assert.Equal(t, got, ids(second))
	assert.True(t, sort.StringsAreSorted(got), "entries ordered by identity: %v", got)
}

func TestBuildExpandsActions(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "firefox.desktop", `[Desktop Entry]
Name=Firefox
Exec=firefox %u
Icon=firefox
Actions=new-window;private;

[Desktop Action new-window]
Name=New Window
Exec=firefox --new-window

[Desktop Action private]
Name=New Private Window
Exec=firefox --private-window
`)
	writeDescriptor(t, root, "gimp.desktop", app("GIMP", "gimp %U"))

	snap, err := NewBuilder(BuilderOptions{}).Build(context.Background(), []Dir{{Path: root}})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"firefox.desktop",
		"firefox.desktop:new-window",
		"firefox.desktop:private",
		"gimp.desktop",
	}, ids(snap))

	act, ok := snap.Get("firefox.desktop:private")
	require.True(t, ok)
	assert.True(t, act.IsAction())
	assert.Equal(t, "firefox.desktop", act.ParentID)
	assert.Equal(t, "private", act.ActionID)
	assert.Equal(t, "firefox", act.Icon, "action inherits parent icon")
	assert.Equal(t, "Firefox", act.Description)
	assert.Equal(t, "firefox --private-window", act.Exec)

	parent, _ := snap.Get("firefox.desktop")
	assert.False(t, parent.IsAction())
}

func TestBuildSkipsInvalidDescriptors(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "good.desktop", app("Good", "good"))
	writeDescriptor(t, root, "noexec.desktop", "[Desktop Entry]\nType=Application\nName=NoExec\n")
	writeDescriptor(t, root, "hidden.desktop", app("Hidden", "hidden")+"NoDisplay=true\n")
	writeDescriptor(t, root, "README.txt", "not a descriptor")

	snap, err := NewBuilder(BuilderOptions{}).Build(context.Background(), []Dir{{Path: root}})
	require.NoError(t, err)

	assert.Equal(t, []string{"good.desktop"}, ids(snap))
	st := snap.Stats()
	assert.Equal(t, 3, st.Descriptors)
	assert.Equal(t, 2, st.Skipped)
}

func TestBuildSubdirectoryIdentity(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "kde/konsole.desktop", app("Konsole", "konsole"))

	snap, err := NewBuilder(BuilderOptions{}).Build(context.Background(), []Dir{{Path: root}})
	require.NoError(t, err)
	assert.Equal(t, []string{"kde-konsole.desktop"}, ids(snap))
}

func TestBuildSymlinkCycleTerminates(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "a.desktop", app("A", "a"))
	writeDescriptor(t, root, "sub/b.desktop", app("B", "b"))
	require.NoError(t, os.Symlink(root, filepath.Join(root, "sub", "loop")))
	require.NoError(t, os.Symlink(filepath.Join(root, "sub"), filepath.Join(root, "alias")))

	snap, err := NewBuilder(BuilderOptions{}).Build(context.Background(), []Dir{{Path: root}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.desktop", "sub-b.desktop"}, ids(snap))
}

func TestBuildMissingRootIsNotAnError(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "a.desktop", app("A", "a"))

	snap, err := NewBuilder(BuilderOptions{}).Build(context.Background(), []Dir{
		{Path: filepath.Join(root, "does-not-exist")},
		{Path: root},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, 1, snap.Stats().Dirs)
	assert.Zero(t, snap.Stats().Errors)
}

func TestBuildCancelled(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "a.desktop", app("A", "a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder(BuilderOptions{}).Build(ctx, []Dir{{Path: root}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBuildGenerationsIncrease(t *testing.T) {
	b := NewBuilder(BuilderOptions{})
	s1, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	s2, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Greater(t, s2.Generation(), s1.Generation())
	assert.Zero(t, s2.Len())
}

func TestBuildIndexesPathBinaries(t *testing.T) {
	bin := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bin, "htop"), []byte("#!/bin/sh\n"), 0o755))

	snap, err := NewBuilder(BuilderOptions{PathDirs: []string{bin}}).Build(context.Background(), nil)
	require.NoError(t, err)
	p, ok := snap.Binary("htop")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(bin, "htop"), p)
	assert.Equal(t, 1, snap.Stats().Binaries)
}

func TestScanBinaries(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(first, "tool"), []byte("x"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(second, "tool"), []byte("x"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(second, "data.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(second, "subdir"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(second, "tool"), filepath.Join(second, "linked")))

	got := ScanBinaries(context.Background(), []string{first, second, filepath.Join(first, "missing")})
	assert.Equal(t, map[string]string{
		"tool":   filepath.Join(first, "tool"),
		"linked": filepath.Join(second, "linked"),
	}, got)
}

func TestNewSnapshotDropsDuplicateIDs(t *testing.T) {
	snap := NewSnapshot(7, []Entry{
		{ID: "a.desktop", Name: "Alpha"},
		{ID: "a.desktop", Name: "Other"},
		{ID: "b.desktop", Name: "Beta"},
	}, nil)
	assert.Equal(t, uint64(7), snap.Generation())
	assert.Equal(t, 2, snap.Len())
	a, _ := snap.Get("a.desktop")
	assert.Equal(t, "alpha", a.NameLower)
	pos, ok := snap.Position("b.desktop")
	assert.True(t, ok)
	assert.Equal(t, 1, pos)
}

func TestWithOptionsContinuesGenerations(t *testing.T) {
	b := NewBuilder(BuilderOptions{Workers: 1})
	s1, err := b.Build(context.Background(), nil)
	require.NoError(t, err)

	nb := b.WithOptions(BuilderOptions{Workers: 4})
	assert.Equal(t, 4, nb.Options().Workers)
	s2, err := nb.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Greater(t, s2.Generation(), s1.Generation())
}
