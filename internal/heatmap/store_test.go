package heatmap

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "heatmap.json"))
	require.NoError(t, err)
	assert.Zero(t, s.Len())
	assert.Equal(t, Stat{}, s.Get("never.desktop"))
}

func TestLoadCorruptFileWarnsAndRecovers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heatmap.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := Load(path)
	require.Error(t, err)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, path, le.Path)
	require.NotNil(t, s)
	assert.Zero(t, s.Len())

	s.RecordLaunch("firefox.desktop")
	require.NoError(t, s.Flush())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), reloaded.Get("firefox.desktop").LaunchCount)
}

func TestRecordFlushReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "heatmap.json")
	s, err := Load(path)
	require.NoError(t, err)
	s.SetClock(fixedClock(epoch))

	for i := 0; i < 3; i++ {
		s.RecordLaunch("firefox.desktop")
	}
	s.RecordLaunch("gimp.desktop")
	assert.Equal(t, 2, s.Pending())
	require.NoError(t, s.Flush())
	assert.Zero(t, s.Pending())

	reloaded, err := Load(path)
	require.NoError(t, err)
	ff := reloaded.Get("firefox.desktop")
	assert.Equal(t, uint64(3), ff.LaunchCount)
	assert.True(t, ff.LastUsed.Equal(epoch), "last used %v", ff.LastUsed)
	assert.Equal(t, uint64(1), reloaded.Get("gimp.desktop").LaunchCount)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file left behind")
}

func TestFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heatmap.json")
	s, _ := Load(path)
	s.SetClock(fixedClock(epoch))
	s.RecordLaunch("code.desktop")
	require.NoError(t, s.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw struct {
		Version int `json:"version"`
		Apps    map[string]struct {
			LaunchCount int    `json:"launch_count"`
			LastUsed    string `json:"last_used"`
		} `json:"apps"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 1, raw.Version)
	assert.Equal(t, 1, raw.Apps["code.desktop"].LaunchCount)
	assert.Equal(t, "2026-03-01T12:00:00Z", raw.Apps["code.desktop"].LastUsed)
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	got, legacy, err := decode([]byte(`{"version":1,"extra":"x","apps":{"a.desktop":{"launch_count":2,"pinned":true}}}`))
	require.NoError(t, err)
	assert.False(t, legacy)
	assert.Equal(t, uint64(2), got["a.desktop"].LaunchCount)
	assert.True(t, got["a.desktop"].LastUsed.IsZero())
}

func TestDecodeLegacyLayout(t *testing.T) {
	got, legacy, err := decode([]byte(`{"Firefox":{"count":5,"last_used":1700000000},"Files":{"count":1}}`))
	require.NoError(t, err)
	assert.True(t, legacy)
	assert.Equal(t, uint64(5), got["Firefox"].LaunchCount)
	assert.Equal(t, int64(1700000000), got["Firefox"].LastUsed.Unix())
	assert.True(t, got["Files"].LastUsed.IsZero())
}

func TestDecodeRejectsNewerVersion(t *testing.T) {
	_, _, err := decode([]byte(`{"version":99,"apps":{}}`))
	assert.Error(t, err)
}

func TestDecodeBlankFile(t *testing.T) {
	got, _, err := decode([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func byName(ids map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		id, ok := ids[name]
		return id, ok
	}
}

func TestMigrateLegacyNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heatmap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Firefox":{"count":42,"last_used":1700000000},"Gone":{"count":3}}`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	require.True(t, s.Legacy())
	v := s.Version()

	moved := s.Migrate(byName(map[string]string{"Firefox": "firefox.desktop"}))
	assert.Equal(t, 1, moved)
	assert.False(t, s.Legacy())
	assert.Greater(t, s.Version(), v)
	assert.Equal(t, uint64(42), s.Get("firefox.desktop").LaunchCount)
	assert.Equal(t, int64(1700000000), s.Get("firefox.desktop").LastUsed.Unix())
	assert.Equal(t, Stat{}, s.Get("Firefox"))
	assert.Equal(t, uint64(3), s.Get("Gone").LaunchCount, "unresolved names are kept")
	assert.Equal(t, 1, s.Pending())

	assert.Zero(t, s.Migrate(byName(map[string]string{"Gone": "gone.desktop"})), "migration runs once")

	s.RecordLaunch("firefox.desktop")
	require.NoError(t, s.Flush())
	assert.Zero(t, s.Pending())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.False(t, reloaded.Legacy())
	assert.Equal(t, uint64(43), reloaded.Get("firefox.desktop").LaunchCount)
	assert.Equal(t, Stat{}, reloaded.Get("Firefox"))
	assert.Equal(t, uint64(3), reloaded.Get("Gone").LaunchCount)
}

func TestMigrateMergesIntoExistingIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heatmap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Firefox":{"count":2,"last_used":1700000000},"firefox.desktop":{"count":1,"last_used":1800000000}}`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	s.Migrate(byName(map[string]string{"Firefox": "firefox.desktop"}))

	st := s.Get("firefox.desktop")
	assert.Equal(t, uint64(3), st.LaunchCount)
	assert.Equal(t, int64(1800000000), st.LastUsed.Unix())
}

func TestMigrateSkipsCurrentLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heatmap.json")
	s, _ := Load(path)
	s.RecordLaunch("Firefox")
	assert.False(t, s.Legacy())
	assert.Zero(t, s.Migrate(byName(map[string]string{"Firefox": "firefox.desktop"})))
	assert.Equal(t, uint64(1), s.Get("Firefox").LaunchCount)
}

func TestMigratedFileAlreadyRewrittenByOtherProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heatmap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Firefox":{"count":5}}`), 0o644))
	resolve := byName(map[string]string{"Firefox": "firefox.desktop"})

	a, _ := Load(path)
	b, _ := Load(path)
	a.Migrate(resolve)
	b.Migrate(resolve)
	require.NoError(t, a.Flush())
	require.NoError(t, b.Flush())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), reloaded.Get("firefox.desktop").LaunchCount, "moved counts are not doubled")
}

func TestTwoStoresMergeOnFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heatmap.json")
	a, _ := Load(path)
	b, _ := Load(path)

	a.RecordLaunch("firefox.desktop")
	a.RecordLaunch("firefox.desktop")
	b.RecordLaunch("firefox.desktop")
	b.RecordLaunch("gimp.desktop")

	require.NoError(t, a.Flush())
	require.NoError(t, b.Flush())

	assert.Equal(t, uint64(3), b.Get("firefox.desktop").LaunchCount, "b adopts a's launches")

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), reloaded.Get("firefox.desktop").LaunchCount)
	assert.Equal(t, uint64(1), reloaded.Get("gimp.desktop").LaunchCount)
}

func TestFlushFailureKeepsPending(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s, _ := Load(filepath.Join(blocker, "heatmap.json"))
	s.RecordLaunch("a.desktop")
	err := s.Flush()
	require.Error(t, err)
	var we *WriteError
	assert.True(t, errors.As(err, &we))
	assert.Equal(t, 1, s.Pending())
	assert.Equal(t, uint64(1), s.Get("a.desktop").LaunchCount)
}

func TestFlushWithoutChangesIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heatmap.json")
	s, _ := Load(path)
	require.NoError(t, s.Flush())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestConcurrentRecordAndFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heatmap.json")
	s, _ := Load(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				s.RecordLaunch("term.desktop")
				if j%10 == 0 {
					_ = s.Flush()
				}
			}
		}()
	}
	wg.Wait()
	require.NoError(t, s.Flush())

	assert.Equal(t, uint64(500), s.Get("term.desktop").LaunchCount)
	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), reloaded.Get("term.desktop").LaunchCount)
}

func TestVersionAndTop(t *testing.T) {
	s, _ := Load(filepath.Join(t.TempDir(), "heatmap.json"))
	v0 := s.Version()

	s.SetClock(fixedClock(epoch))
	s.RecordLaunch("b.desktop")
	s.RecordLaunch("a.desktop")
	s.SetClock(fixedClock(epoch.Add(time.Hour)))
	s.RecordLaunch("c.desktop")
	s.RecordLaunch("d.desktop")
	s.RecordLaunch("d.desktop")

	assert.Greater(t, s.Version(), v0)

	top := s.Top(0)
	require.Len(t, top, 4)
	assert.Equal(t, "d.desktop", top[0].ID)
	assert.Equal(t, "c.desktop", top[1].ID, "more recent wins the tie")
	assert.Equal(t, "a.desktop", top[2].ID, "identity breaks remaining ties")
	assert.Equal(t, "b.desktop", top[3].ID)
	assert.Len(t, s.Top(2), 2)
}
