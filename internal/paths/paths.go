package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	configFileName = "devsetup.yaml"
	// HomeEnv overrides the global directory.
	HomeEnv = "DEVSETUP_HOME"
)

// RunPaths captures canonical locations for one provisioning run.
type RunPaths struct {
	Root       string
	ConfigFile string
	LogsDir    string
	// RunLogDir holds one installer log per tool for this run.
	RunLogDir    string
	DownloadsDir string
}

// Resolve lays out the directories for runID under the global directory.
// When shared is set, downloads go to a world-readable temp location so a
// run-as account can read fetched installer scripts.
func Resolve(runID string, shared bool) (RunPaths, error) {
	root, err := GlobalDir()
	if err != nil {
		return RunPaths{}, err
	}
	return newRunPaths(root, os.TempDir(), runID, shared), nil
}

func newRunPaths(root, tempDir, runID string, shared bool) RunPaths {
	logs := filepath.Join(root, "logs")
	rp := RunPaths{
		Root:         root,
		ConfigFile:   filepath.Join(root, configFileName),
		LogsDir:      logs,
		RunLogDir:    filepath.Join(logs, runID),
		DownloadsDir: filepath.Join(root, "downloads"),
	}
	if shared {
		rp.DownloadsDir = filepath.Join(tempDir, "devsetup-downloads")
	}
	return rp
}

// EnsureDirs creates the logs and downloads hierarchy.
func (p RunPaths) EnsureDirs() error {
	for _, dir := range []string{p.LogsDir, p.RunLogDir, p.DownloadsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ResolveConfig picks the configuration file: flag when set, then devsetup.yaml
// in the working directory, then the global one. The result may not exist.
func (p RunPaths) ResolveConfig(flag string) (string, error) {
	if flag = strings.TrimSpace(flag); flag != "" {
		abs, err := filepath.Abs(flag)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return abs, nil
	}
	wd, err := os.Getwd()
	if err == nil {
		local := filepath.Join(wd, configFileName)
		if ok, _ := FileExists(local); ok {
			return local, nil
		}
	}
	return p.ConfigFile, nil
}

// GlobalDir returns the user-level devsetup directory ($DEVSETUP_HOME or
// ~/.devsetup). It creates the directory if it does not exist.
func GlobalDir() (string, error) {
	dir := strings.TrimSpace(os.Getenv(HomeEnv))
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("detect user home: %w", err)
		}
		dir = filepath.Join(home, ".devsetup")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create global dir: %w", err)
	}
	return dir, nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
