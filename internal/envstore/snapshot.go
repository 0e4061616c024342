// Package envstore captures the process environment as an explicit value so
// steps that depend on freshly installed binaries can re-read persisted
// variables and PATH instead of relying on the stale copy inherited at
// process start.
package envstore

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// EnvironmentSnapshot is an immutable view of environment variables.
type EnvironmentSnapshot struct {
	vars map[string]string
}

// Provider re-reads environment state.
type Provider interface {
	Snapshot(ctx context.Context) (EnvironmentSnapshot, error)
}

// FromEnviron builds a snapshot from KEY=VALUE entries. Later entries win.
func FromEnviron(environ []string) EnvironmentSnapshot {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		vars[normalizeKey(key)] = value
	}
	return EnvironmentSnapshot{vars: vars}
}

// Current snapshots the running process's environment.
func Current() EnvironmentSnapshot {
	return FromEnviron(os.Environ())
}

// Get returns the value for key and whether it is set.
func (s EnvironmentSnapshot) Get(key string) (string, bool) {
	v, ok := s.vars[normalizeKey(key)]
	return v, ok
}

// With returns a copy with key set to value.
func (s EnvironmentSnapshot) With(key, value string) EnvironmentSnapshot {
	vars := make(map[string]string, len(s.vars)+1)
	for k, v := range s.vars {
		vars[k] = v
	}
	vars[normalizeKey(key)] = value
	return EnvironmentSnapshot{vars: vars}
}

// Path returns the PATH entries in search order.
func (s EnvironmentSnapshot) Path() []string {
	raw, _ := s.Get("PATH")
	return SplitPath(raw)
}

// Environ renders the snapshot as KEY=VALUE entries sorted by key.
func (s EnvironmentSnapshot) Environ() []string {
	keys := make([]string, 0, len(s.vars))
	for k := range s.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+s.vars[k])
	}
	return out
}

// Empty reports whether the snapshot holds no variables.
func (s EnvironmentSnapshot) Empty() bool {
	return len(s.vars) == 0
}

// LookPath searches the snapshot's PATH for an executable.
func (s EnvironmentSnapshot) LookPath(name string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) || filepath.IsAbs(name) {
		return exec.LookPath(name)
	}
	exts := []string{""}
	if runtime.GOOS == "windows" {
		exts = windowsExts(s)
	}
	for _, dir := range s.Path() {
		for _, ext := range exts {
			candidate := filepath.Join(dir, name+ext)
			if isExecutable(candidate) {
				return candidate, nil
			}
		}
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// SplitPath splits a PATH value, dropping empty and duplicate entries.
func SplitPath(raw string) []string {
	seen := map[string]bool{}
	var out []string
	for _, entry := range filepath.SplitList(raw) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key := entry
		if runtime.GOOS == "windows" {
			key = strings.ToLower(entry)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, entry)
	}
	return out
}

// JoinPath joins entries into a PATH value, removing duplicates.
func JoinPath(entries ...string) string {
	return strings.Join(SplitPath(strings.Join(entries, string(os.PathListSeparator))), string(os.PathListSeparator))
}

// Static is a Provider that always returns the same snapshot.
type Static struct {
	Snap EnvironmentSnapshot
	Err  error
}

func (s Static) Snapshot(context.Context) (EnvironmentSnapshot, error) {
	if s.Err != nil {
		return EnvironmentSnapshot{}, s.Err
	}
	return s.Snap, nil
}

func normalizeKey(key string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(key)
	}
	return key
}

func windowsExts(s EnvironmentSnapshot) []string {
	raw, ok := s.Get("PATHEXT")
	if !ok || raw == "" {
		raw = ".COM;.EXE;.BAT;.CMD"
	}
	exts := []string{""}
	for _, e := range strings.Split(raw, ";") {
		if e = strings.TrimSpace(e); e != "" {
			exts = append(exts, strings.ToLower(e))
		}
	}
	return exts
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0o111 != 0
}
