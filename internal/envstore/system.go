package envstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// System re-reads persisted environment state from the host. Persisted
// variables replace their process values; PATH is the persisted value
// followed by the current one. Additions are appended to PATH when they
// exist on disk; a leading "~" expands to Home.
type System struct {
	Additions []string
	Home      string
}

func (s System) Snapshot(ctx context.Context) (EnvironmentSnapshot, error) {
	snap := Current()
	persisted, err := persistedEnv(ctx)
	if err != nil {
		return EnvironmentSnapshot{}, err
	}
	for key, value := range persisted {
		if key == "PATH" {
			continue
		}
		snap = snap.With(key, value)
	}

	current, _ := snap.Get("PATH")
	entries := []string{persisted["PATH"], current}
	for _, dir := range s.Additions {
		dir = ExpandHome(dir, s.home())
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			entries = append(entries, dir)
		}
	}
	return snap.With("PATH", JoinPath(entries...)), nil
}

func (s System) home() string {
	if s.Home != "" {
		return s.Home
	}
	home, _ := os.UserHomeDir()
	return home
}

// ExpandHome replaces a leading "~" with home.
func ExpandHome(path, home string) string {
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		return filepath.Join(home, path[2:])
	}
	return path
}
