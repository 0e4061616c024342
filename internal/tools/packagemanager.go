package tools

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"devsetup/internal/provision"
	"devsetup/internal/runner"
)

// PackageOptions tweaks a single package install.
type PackageOptions struct {
	// Override replaces the installer's own arguments (winget --override).
	Override string
	Args     []string
	// LogName names the installer log; defaults to the package id.
	LogName string
}

func (o PackageOptions) logName(id string) string {
	if o.LogName != "" {
		return o.LogName
	}
	return id
}

// PackageManager is an OS-native package manager CLI.
type PackageManager interface {
	Name() string
	Probe(id string) provision.Probe
	Installer(id string, opts PackageOptions) provision.Installer
	// TransientExitCodes are exit codes that mean another installation holds
	// the package manager's lock.
	TransientExitCodes() []int
}

// ERROR_INSTALL_ALREADY_RUNNING, surfaced by winget from MSI-based installers.
const wingetInstallInProgress = 1618

// Winget drives the Windows Package Manager.
type Winget struct {
	Exec
}

func (Winget) Name() string { return "winget" }

func (Winget) TransientExitCodes() []int { return []int{wingetInstallInProgress} }

func (w Winget) Probe(id string) provision.Probe {
	return provision.ProbeFunc(func(ctx context.Context) (bool, error) {
		args := []string{"list", "--id", id, "--exact", "--accept-source-agreements", "--disable-interactivity"}
		result, err := w.runner().Run(ctx, "winget", args, runner.RunOptions{Timeout: w.Timeout, BaseEnv: w.BaseEnv})
		if err != nil {
			if _, ok := runner.ExitCode(err); ok {
				return false, nil
			}
			return false, err
		}
		return strings.Contains(strings.ToLower(string(result.Stdout)), strings.ToLower(id)), nil
	})
}

func (w Winget) Installer(id string, opts PackageOptions) provision.Installer {
	args := []string{
		"install", "--id", id, "--exact", "--silent",
		"--accept-package-agreements", "--accept-source-agreements", "--disable-interactivity",
	}
	if opts.Override != "" {
		args = append(args, "--override", opts.Override)
	}
	args = append(args, opts.Args...)
	return CommandInstaller{Exec: w.Exec, ID: opts.logName(id), Command: "winget", Args: args}
}

// Apt drives apt-get on Debian/Ubuntu. The package index is refreshed once,
// before the first install.
type Apt struct {
	Exec
	// SkipUpdate disables the one-shot apt-get update.
	SkipUpdate bool
	// LockTimeout is passed as DPkg::Lock::Timeout in seconds.
	LockTimeout int

	updateOnce sync.Once
}

var aptEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

func (*Apt) Name() string { return "apt" }

// TransientExitCodes is empty: apt-get waits on the dpkg lock itself via
// DPkg::Lock::Timeout, and its generic exit code 100 also covers fatal errors.
func (*Apt) TransientExitCodes() []int { return nil }

// Probe reports present only when every package named in id is installed.
// dpkg-query exits non-zero when any of them is unknown.
func (a *Apt) Probe(id string) provision.Probe {
	packages := strings.Fields(id)
	return provision.ProbeFunc(func(ctx context.Context) (bool, error) {
		if len(packages) == 0 {
			return false, nil
		}
		args := append([]string{"-W", "-f=${Package} ${Status}\\n"}, packages...)
		result, err := a.runner().Run(ctx, "dpkg-query", args, runner.RunOptions{Timeout: a.Timeout, BaseEnv: a.BaseEnv})
		if err != nil {
			if _, ok := runner.ExitCode(err); ok {
				return false, nil
			}
			return false, err
		}
		installed := parseDpkgStatus(result.Stdout)
		for _, pkg := range packages {
			if !installed[pkg] {
				return false, nil
			}
		}
		return true, nil
	})
}

// parseDpkgStatus reads "<package> <status>" lines. Multi-arch packages may be
// listed as name:arch; both forms are recorded.
func parseDpkgStatus(out []byte) map[string]bool {
	installed := map[string]bool{}
	for _, line := range strings.Split(string(out), "\n") {
		name, status, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok || !strings.Contains(status, "install ok installed") {
			continue
		}
		installed[name] = true
		if base, _, found := strings.Cut(name, ":"); found {
			installed[base] = true
		}
	}
	return installed
}

func (a *Apt) Installer(id string, opts PackageOptions) provision.Installer {
	packages := strings.Fields(id)
	args := append([]string{"install", "-y", "--no-install-recommends"}, a.lockArgs()...)
	args = append(args, opts.Args...)
	args = append(args, packages...)
	install := CommandInstaller{Exec: a.Exec, ID: opts.logName(id), Command: "apt-get", Args: args, Env: aptEnv}
	return aptInstaller{apt: a, install: install}
}

func (a *Apt) lockArgs() []string {
	timeout := a.LockTimeout
	if timeout <= 0 {
		timeout = 120
	}
	return []string{"-o", "DPkg::Lock::Timeout=" + strconv.Itoa(timeout)}
}

type aptInstaller struct {
	apt     *Apt
	install CommandInstaller
}

func (i aptInstaller) Execute(ctx context.Context) (int, error) {
	i.apt.update(ctx, i.install.ID)
	return i.install.Execute(ctx)
}

func (i aptInstaller) Describe() string {
	return "sudo " + i.install.Describe()
}

// update runs apt-get update at most once. Its failure is not fatal: the
// install that follows reports the real problem.
func (a *Apt) update(ctx context.Context, logName string) {
	if a.SkipUpdate {
		return
	}
	a.updateOnce.Do(func() {
		args := append([]string{"update"}, a.lockArgs()...)
		_, _ = a.run(ctx, logName, "apt-get", args, runner.RunOptions{Env: aptEnv})
	})
}

var (
	_ PackageManager = Winget{}
	_ PackageManager = (*Apt)(nil)
)
