package tools

import (
	"context"
	"errors"
	"os"
	"os/exec"

	"devsetup/internal/envstore"
	"devsetup/internal/provision"
	"devsetup/internal/runner"
)

// CommandProbe reports a tool present when its executable resolves on PATH
// and, if Minimum is set, the version it reports is at least Minimum.
type CommandProbe struct {
	Exec
	// Env supplies the PATH to search; the process PATH is used when nil.
	Env         envstore.Provider
	Executable  string
	VersionArgs []string
	Minimum     string
}

func (p CommandProbe) Present(ctx context.Context) (bool, error) {
	path, err := p.lookPath(ctx)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if p.Minimum == "" {
		return true, nil
	}
	opts := runner.RunOptions{Timeout: p.Timeout, BaseEnv: p.BaseEnv}
	version, err := ReadVersion(ctx, p.runner(), path, p.VersionArgs, opts)
	if err != nil {
		return false, err
	}
	return MeetsMinimum(version, p.Minimum)
}

func (p CommandProbe) lookPath(ctx context.Context) (string, error) {
	if p.Env == nil {
		return exec.LookPath(p.Executable)
	}
	snap, err := p.Env.Snapshot(ctx)
	if err != nil {
		return exec.LookPath(p.Executable)
	}
	return snap.LookPath(p.Executable)
}

// FileProbe reports present when any of Paths exists. A leading "~" expands
// to Home (or the current user's home directory).
type FileProbe struct {
	Paths []string
	Home  string
}

func (p FileProbe) Present(context.Context) (bool, error) {
	home := p.Home
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	for _, candidate := range p.Paths {
		if _, err := os.Stat(envstore.ExpandHome(os.ExpandEnv(candidate), home)); err == nil {
			return true, nil
		}
	}
	return false, nil
}

// SucceedsProbe reports present when a command exits 0, e.g. `wsl --status`.
type SucceedsProbe struct {
	Exec
	Command string
	Args    []string
}

func (p SucceedsProbe) Present(ctx context.Context) (bool, error) {
	_, err := p.runner().Run(ctx, p.Command, p.Args, runner.RunOptions{Timeout: p.Timeout, BaseEnv: p.BaseEnv})
	if err == nil {
		return true, nil
	}
	if _, ok := runner.ExitCode(err); ok || errors.Is(err, exec.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// AnyOf is present when any of its probes is. Errors are returned only when
// no probe reported present.
type AnyOf []provision.Probe

func (a AnyOf) Present(ctx context.Context) (bool, error) {
	var errs []error
	for _, p := range a {
		ok, err := p.Present(ctx)
		if ok {
			return true, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return false, errors.Join(errs...)
}

var (
	_ provision.Probe = CommandProbe{}
	_ provision.Probe = FileProbe{}
	_ provision.Probe = SucceedsProbe{}
	_ provision.Probe = AnyOf{}
)
