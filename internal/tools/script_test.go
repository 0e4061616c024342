package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scriptBody = "#!/bin/sh\necho installing\n"

func scriptServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/install.sh" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(scriptBody))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestScriptInstallerDownloadsAndRuns(t *testing.T) {
	srv, _ := scriptServer(t)
	dir := t.TempDir()
	fake := &fakeRunner{}

	inst := ScriptInstaller{
		Exec:        Exec{Runner: fake},
		Fetcher:     Fetcher{Dir: dir},
		ID:          "rust",
		URL:         srv.URL + "/install.sh",
		SHA256:      sha(scriptBody),
		Interpreter: []string{"bash"},
		Args:        []string{"-y", "--no-modify-path"},
		AsUser:      "dev",
	}

	code, err := inst.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, code)

	local := filepath.Join(dir, "install.sh")
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "bash", fake.calls[0].Command)
	assert.Equal(t, []string{local, "-y", "--no-modify-path"}, fake.calls[0].Args)
	assert.Equal(t, "dev", fake.calls[0].Opts.AsUser)

	contents, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, scriptBody, string(contents))
}

func TestScriptInstallerChecksumMismatchIsLaunchError(t *testing.T) {
	srv, _ := scriptServer(t)
	fake := &fakeRunner{}

	inst := ScriptInstaller{
		Exec:    Exec{Runner: fake},
		Fetcher: Fetcher{Dir: t.TempDir()},
		URL:     srv.URL + "/install.sh",
		SHA256:  sha("something else"),
	}

	_, err := inst.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
	assert.Empty(t, fake.calls)
}

func TestFetcherReusesVerifiedDownload(t *testing.T) {
	srv, hits := scriptServer(t)
	f := Fetcher{Dir: t.TempDir()}

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), srv.URL+"/install.sh", sha(scriptBody))
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))

	f.Force = true
	_, err := f.Fetch(context.Background(), srv.URL+"/install.sh", sha(scriptBody))
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(hits))
}

func TestFetcherErrors(t *testing.T) {
	srv, _ := scriptServer(t)

	_, err := Fetcher{Dir: t.TempDir()}.Fetch(context.Background(), srv.URL+"/missing.sh", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = Fetcher{Dir: t.TempDir()}.Fetch(context.Background(), "ftp://example.com/x.sh", "")
	require.Error(t, err)

	_, err = Fetcher{}.Fetch(context.Background(), srv.URL+"/install.sh", "")
	require.Error(t, err)
}

func TestDownloadPathUsesHostForBareURL(t *testing.T) {
	got, err := downloadPath("dl", "https://sh.rustup.rs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("dl", "sh.rustup.rs"), got)
}
