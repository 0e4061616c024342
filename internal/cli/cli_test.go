package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devsetup/internal/provision"
)

func TestResolveRunAs(t *testing.T) {
	env := func(vals map[string]string) func(string) string {
		return func(k string) string { return vals[k] }
	}
	sudo := env(map[string]string{"SUDO_USER": "dev"})

	got, err := resolveRunAs("alice", "bob", "linux", sudo, true)
	require.NoError(t, err)
	assert.Equal(t, "alice", got)

	got, err = resolveRunAs("", "bob", "linux", sudo, true)
	require.NoError(t, err)
	assert.Equal(t, "bob", got)

	got, err = resolveRunAs("", "", "linux", sudo, true)
	require.NoError(t, err)
	assert.Equal(t, "dev", got)

	got, err = resolveRunAs("", "", "linux", sudo, false)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = resolveRunAs("", "", "linux", env(map[string]string{"SUDO_USER": "root"}), true)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = resolveRunAs("alice", "", "windows", sudo, true)
	require.Error(t, err)

	got, err = resolveRunAs("", "", "windows", sudo, true)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(newConfigError("bad")))
	assert.Equal(t, 1, exitCode(&provision.ConfigurationError{Problems: []string{"cycle"}}))
	assert.Equal(t, 2, exitCode(errors.New("disk full")))
}

func TestWriteSummary(t *testing.T) {
	result := runResult{
		LogDir: "/logs/run",
		Tools: []provision.Outcome{
			{ID: "git", DisplayName: "Git", Kind: provision.KindAlreadyPresent},
			{ID: "wsl", DisplayName: "WSL", Kind: provision.KindDeclined, Reason: "declined by operator"},
			{ID: "docker", DisplayName: "Docker Desktop", Kind: provision.KindSkippedDependencyMissing, Reason: "requires wsl"},
			{ID: "python", DisplayName: "Python", Kind: provision.KindFailed, Reason: "exit status 2", ExitCode: 2, Attempts: 1, LogPath: "/logs/run/python.log"},
		},
		PostInstall: []provision.StepResult{
			{Name: "foundry", Status: provision.StepWarned, Reason: "cargo exited with status 101"},
			{Name: "node-lts", Status: provision.StepSucceeded},
		},
	}
	result.Summary = provision.Summarize(result.Tools)

	var buf bytes.Buffer
	writeSummary(&buf, result, false)
	text := buf.String()

	assert.Contains(t, text, "ITEM")
	assert.Contains(t, text, "Docker Desktop")
	assert.Contains(t, text, "4 tools: 1 present 1 skipped 1 declined 1 failed")
	assert.Contains(t, text, "  - Python: failed (exit status 2), see /logs/run/python.log")
	assert.Contains(t, text, "  - WSL: declined (declined by operator)")
	assert.Contains(t, text, "  - foundry: warning (cargo exited with status 101)")
	assert.NotContains(t, text, "  - node-lts")
	assert.Contains(t, text, "Logs: /logs/run")

	buf.Reset()
	writeSummary(&buf, result, true)
	assert.NotContains(t, buf.String(), "ITEM")
}

func TestRootDryRunJSON(t *testing.T) {
	t.Setenv("DEVSETUP_HOME", t.TempDir())
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "devsetup.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
platform: ubuntu
tools:
  - id: ghost
    name: Ghost tool
    check:
      command: devsetup-test-ghost-binary
    install:
      command: [devsetup-test-ghost-installer]
  - id: ghost-plugin
    check:
      command: devsetup-test-ghost-plugin
    install:
      command: [devsetup-test-ghost-installer, plugin]
    depends_on: [ghost]
post_install:
  - name: configure
    requires: [ghost]
    run:
      - [devsetup-test-ghost-binary, configure]
`), 0o644))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfgPath, "--dry-run", "--json"})
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	require.NoError(t, cmd.Execute())

	var result runResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, "ubuntu", result.Platform)
	assert.True(t, result.DryRun)
	require.Len(t, result.Tools, 2)
	assert.Equal(t, provision.KindPlanned, result.Tools[0].Kind)
	assert.Equal(t, "Ghost tool", result.Tools[0].DisplayName)
	assert.Equal(t, provision.KindPlanned, result.Tools[1].Kind)
	require.Len(t, result.PostInstall, 1)
	assert.Equal(t, provision.StepSkipped, result.PostInstall[0].Status)
	assert.Equal(t, 2, result.Summary.Counts[provision.KindPlanned])
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	t.Setenv("DEVSETUP_HOME", t.TempDir())
	cfgPath := filepath.Join(t.TempDir(), "devsetup.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
platform: ubuntu
tools:
  - id: docker
    check:
      command: docker
    install:
      command: ["true"]
    depends_on: [wsl]
`), 0o644))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfgPath, "--dry-run"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
	assert.True(t, strings.Contains(err.Error(), `depends on "wsl"`))
}

func TestRootRejectsYesAndNo(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--yes", "--no"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}

func TestRootPrintConfig(t *testing.T) {
	t.Setenv("DEVSETUP_HOME", t.TempDir())
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--platform", "windows", "--print-config"})
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Docker.DockerDesktop")
	assert.Contains(t, out.String(), "platform: windows")
}
