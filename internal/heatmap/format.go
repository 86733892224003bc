package heatmap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const formatVersion = 1

type fileFormat struct {
	Version int                 `json:"version"`
	Apps    map[string]fileStat `json:"apps"`
}

type fileStat struct {
	LaunchCount uint64    `json:"launch_count"`
	LastUsed    time.Time `json:"last_used,omitzero"`
}

// legacyStat is the flat layout written by earlier releases:
// {"<name>": {"count": N, "last_used": <unix seconds>}}.
type legacyStat struct {
	Count    uint64 `json:"count"`
	LastUsed int64  `json:"last_used"`
}

// readFile decodes the heatmap at path. legacy reports the flat layout, whose
// keys are display names rather than identities.
func readFile(path string) (stats map[string]Stat, legacy bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	return decode(data)
}

func decode(data []byte) (map[string]Stat, bool, error) {
	out := make(map[string]Stat)
	if len(bytes.TrimSpace(data)) == 0 {
		return out, false, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, false, fmt.Errorf("parse: %w", err)
	}

	_, hasApps := top["apps"]
	_, hasVersion := top["version"]
	if hasApps || hasVersion {
		var f fileFormat
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, false, fmt.Errorf("parse: %w", err)
		}
		if f.Version > formatVersion {
			return nil, false, fmt.Errorf("unsupported version %d", f.Version)
		}
		for id, st := range f.Apps {
			out[id] = Stat{LaunchCount: st.LaunchCount, LastUsed: st.LastUsed}
		}
		return out, false, nil
	}

	for name, raw := range top {
		var ls legacyStat
		if err := json.Unmarshal(raw, &ls); err != nil {
			return nil, false, fmt.Errorf("parse %q: %w", name, err)
		}
		st := Stat{LaunchCount: ls.Count}
		if ls.LastUsed > 0 {
			st.LastUsed = time.Unix(ls.LastUsed, 0).UTC()
		}
		out[name] = st
	}
	return out, true, nil
}

func encode(stats map[string]Stat) ([]byte, error) {
	f := fileFormat{Version: formatVersion, Apps: make(map[string]fileStat, len(stats))}
	for id, st := range stats {
		f.Apps[id] = fileStat{LaunchCount: st.LaunchCount, LastUsed: st.LastUsed.UTC()}
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return append(data, '\n'), nil
}
