package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewRunPaths(t *testing.T) {
	root := filepath.Join("home", ".devsetup")
	rp := newRunPaths(root, "tmp", "abc", false)

	if rp.ConfigFile != filepath.Join(root, "devsetup.yaml") {
		t.Fatalf("config file = %s", rp.ConfigFile)
	}
	if rp.RunLogDir != filepath.Join(root, "logs", "abc") {
		t.Fatalf("run log dir = %s", rp.RunLogDir)
	}
	if rp.DownloadsDir != filepath.Join(root, "downloads") {
		t.Fatalf("downloads dir = %s", rp.DownloadsDir)
	}
}

func TestNewRunPathsShared(t *testing.T) {
	rp := newRunPaths("root", "tmp", "abc", true)
	if rp.DownloadsDir != filepath.Join("tmp", "devsetup-downloads") {
		t.Fatalf("downloads dir = %s", rp.DownloadsDir)
	}
}

func TestResolveHonoursHomeEnv(t *testing.T) {
	home := filepath.Join(t.TempDir(), "state")
	t.Setenv(HomeEnv, home)

	rp, err := Resolve("run1", false)
	if err != nil {
		t.Fatal(err)
	}
	if rp.Root != home {
		t.Fatalf("root = %s, want %s", rp.Root, home)
	}
	if err := rp.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{rp.LogsDir, rp.RunLogDir, rp.DownloadsDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s", dir)
		}
	}
}

func TestResolveConfig(t *testing.T) {
	rp := newRunPaths(t.TempDir(), "tmp", "abc", false)

	got, err := rp.ResolveConfig("custom.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(got) || filepath.Base(got) != "custom.yaml" {
		t.Fatalf("flag path = %s", got)
	}

	wd := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(wd); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
	got, err = rp.ResolveConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if got != rp.ConfigFile {
		t.Fatalf("expected global config, got %s", got)
	}

	local := filepath.Join(wd, "devsetup.yaml")
	if err := os.WriteFile(local, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = rp.ResolveConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "devsetup.yaml" || filepath.Dir(got) == filepath.Dir(rp.ConfigFile) {
		t.Fatalf("expected local config, got %s", got)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	if ok, err := FileExists(dir); err != nil || ok {
		t.Fatalf("directory reported as file: %v %v", ok, err)
	}
	if ok, err := FileExists(filepath.Join(dir, "missing")); err != nil || ok {
		t.Fatalf("missing reported as file: %v %v", ok, err)
	}
}
