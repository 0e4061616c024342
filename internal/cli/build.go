package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"devsetup/internal/config"
	"devsetup/internal/envstore"
	"devsetup/internal/provision"
	"devsetup/internal/runner"
	"devsetup/internal/tools"
	"devsetup/internal/vm"
)

const (
	probeTimeout = 2 * time.Minute
	userAgent    = "devsetup"
)

// plan is everything a run needs, derived from configuration.
type plan struct {
	Specs  []provision.Spec
	Steps  []provision.Step
	Policy provision.RetryPolicy
}

// builder turns configuration entries into probes, installers and steps.
type builder struct {
	cfg     config.Config
	runner  runner.Runner
	logDir  string
	timeout time.Duration
	pm      tools.PackageManager
	fetcher tools.Fetcher
	env     envstore.Provider
	runAs   string
	home    string
	withVM  bool
	log     logrus.FieldLogger
}

func newPackageManager(platform string, exec tools.Exec) (tools.PackageManager, error) {
	switch platform {
	case config.PlatformWindows:
		return tools.Winget{Exec: exec}, nil
	case config.PlatformUbuntu:
		return &tools.Apt{Exec: exec}, nil
	default:
		return nil, fmt.Errorf("no package manager for platform %q", platform)
	}
}

func (b builder) build() (plan, error) {
	specs := make([]provision.Spec, 0, len(b.cfg.Tools))
	for _, tool := range b.cfg.Tools {
		spec, err := b.spec(tool)
		if err != nil {
			return plan{}, err
		}
		specs = append(specs, spec)
	}
	return plan{Specs: specs, Steps: b.steps(), Policy: b.policy()}, nil
}

func (b builder) installExec() tools.Exec {
	return tools.Exec{Runner: b.runner, LogDir: b.logDir, Timeout: b.timeout}
}

func (b builder) probeExec() tools.Exec {
	return tools.Exec{Runner: b.runner, Timeout: probeTimeout}
}

func (b builder) spec(tool config.ToolConfig) (provision.Spec, error) {
	check, err := b.probe(tool)
	if err != nil {
		return provision.Spec{}, err
	}
	install, err := b.installer(tool)
	if err != nil {
		return provision.Spec{}, err
	}
	return provision.Spec{
		ID:          tool.ID,
		DisplayName: tool.Name,
		Check:       check,
		Install:     install,
		DependsOn:   tool.DependsOn,
		Confirm:     tool.Confirm,
	}, nil
}

func (b builder) probe(tool config.ToolConfig) (provision.Probe, error) {
	var probes tools.AnyOf
	c := tool.Check
	if c.Command != "" {
		probes = append(probes, tools.CommandProbe{
			Exec:        b.probeExec(),
			Env:         b.env,
			Executable:  c.Command,
			VersionArgs: c.VersionArgs,
			Minimum:     c.MinimumVersion,
		})
	}
	if len(c.Files) > 0 {
		probes = append(probes, tools.FileProbe{Paths: c.Files, Home: b.home})
	}
	if len(c.Succeeds) > 0 {
		probes = append(probes, tools.SucceedsProbe{
			Exec:    b.probeExec(),
			Command: c.Succeeds[0],
			Args:    c.Succeeds[1:],
		})
	}
	if pkg := tool.Install.Package; pkg != nil && (c.Package || c.Empty()) {
		probes = append(probes, probeManager(b.pm, b.probeExec()).Probe(pkg.ID))
	}

	switch len(probes) {
	case 0:
		return nil, fmt.Errorf("tool %q has no presence check", tool.ID)
	case 1:
		return probes[0], nil
	default:
		return probes, nil
	}
}

// probeManager returns a package manager bound to the short probe timeout.
func probeManager(pm tools.PackageManager, exec tools.Exec) tools.PackageManager {
	switch pm.(type) {
	case tools.Winget:
		return tools.Winget{Exec: exec}
	case *tools.Apt:
		return &tools.Apt{Exec: exec}
	default:
		return pm
	}
}

func (b builder) installer(tool config.ToolConfig) (provision.Installer, error) {
	asUser := ""
	if tool.AsUser {
		asUser = b.runAs
	}
	exec := b.installExec()
	switch in := tool.Install; {
	case in.Package != nil:
		return b.pm.Installer(in.Package.ID, tools.PackageOptions{
			Override: in.Package.Override,
			Args:     in.Package.Args,
			LogName:  tool.ID,
		}), nil
	case in.Script != nil:
		return tools.ScriptInstaller{
			Exec:        exec,
			Fetcher:     b.fetcher,
			ID:          tool.ID,
			URL:         in.Script.URL,
			SHA256:      in.Script.SHA256,
			Interpreter: in.Script.Interpreter,
			Args:        in.Script.Args,
			Env:         tool.Env,
			AsUser:      asUser,
		}, nil
	case len(in.Command) > 0:
		return tools.CommandInstaller{
			Exec:    exec,
			ID:      tool.ID,
			Command: in.Command[0],
			Args:    in.Command[1:],
			Env:     tool.Env,
			AsUser:  asUser,
		}, nil
	default:
		return nil, fmt.Errorf("tool %q has no install method", tool.ID)
	}
}

func (b builder) steps() []provision.Step {
	steps := make([]provision.Step, 0, len(b.cfg.PostInstall)+1)
	for _, sc := range b.cfg.PostInstall {
		asUser := ""
		if sc.AsUser {
			asUser = b.runAs
		}
		steps = append(steps, provision.Step{
			Name:      sc.Name,
			Requires:  sc.Requires,
			NeedsPath: sc.NeedsPath,
			Action: tools.StepCommand{
				Exec:     b.installExec(),
				Name:     sc.Name,
				Commands: sc.Run,
				Env:      sc.Env,
				AsUser:   asUser,
				User:     b.runAs,
			},
		})
	}
	if b.withVM {
		steps = append(steps, b.vmStep())
	}
	return steps
}

func (b builder) vmStep() provision.Step {
	c := b.cfg.VM
	return provision.Step{
		Name:      "vm:" + c.Name,
		Requires:  []string{c.Requires},
		NeedsPath: true,
		Action: &vm.Creator{
			Config: vm.Config{
				Name:        c.Name,
				OSType:      c.OSType,
				ISO:         envstore.ExpandHome(c.ISO, b.home),
				ISOURL:      c.ISOURL,
				ISOChecksum: c.ISOChecksum,
				MemoryMB:    c.MemoryMB,
				CPUs:        c.CPUs,
				DiskMB:      c.DiskMB,
				User:        c.User,
				PasswordEnv: c.PasswordEnv,
				BaseFolder:  envstore.ExpandHome(c.BaseFolder, b.home),
				Wait:        c.Wait,
			},
			Runner:  b.runner,
			Fetcher: b.fetcher,
			Log:     b.log,
		},
	}
}

func (b builder) policy() provision.RetryPolicy {
	codes := append([]int{}, b.pm.TransientExitCodes()...)
	for _, code := range b.cfg.Retry.RetryableExitCodes {
		if !containsInt(codes, code) {
			codes = append(codes, code)
		}
	}
	return provision.RetryPolicy{
		RetryableExitCodes: codes,
		MaxRetries:         b.cfg.Retry.MaxRetriesValue(),
		Backoff:            b.cfg.Retry.Backoff,
	}
}

func newFetcher(dir string) tools.Fetcher {
	return tools.Fetcher{
		Dir:       dir,
		Client:    &http.Client{Timeout: 30 * time.Minute},
		UserAgent: userAgent,
	}
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
