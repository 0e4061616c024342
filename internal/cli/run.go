package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"os/user"
	"runtime"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"devsetup/internal/config"
	"devsetup/internal/envstore"
	"devsetup/internal/logx"
	"devsetup/internal/paths"
	"devsetup/internal/privilege"
	"devsetup/internal/prompt"
	"devsetup/internal/provision"
	"devsetup/internal/runner"
	"devsetup/internal/tools"
	"devsetup/internal/tui"
)

// runResult is everything the summary and JSON output need.
type runResult struct {
	RunID       string                 `json:"run_id"`
	Platform    string                 `json:"platform"`
	DryRun      bool                   `json:"dry_run,omitempty"`
	LogDir      string                 `json:"log_dir"`
	Tools       []provision.Outcome    `json:"tools"`
	PostInstall []provision.StepResult `json:"post_install"`
	Summary     provision.Summary      `json:"summary"`
}

func runProvision(cmd *cobra.Command, opts options) error {
	if opts.Yes && opts.No {
		return newConfigError("--yes and --no are mutually exclusive")
	}
	if _, err := logx.ParseLevel(opts.LogLevel); err != nil {
		return newConfigError(err.Error())
	}

	runID := uuid.NewString()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	bootstrap, err := paths.Resolve(runID, false)
	if err != nil {
		return err
	}
	cfgPath, err := bootstrap.ResolveConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath, opts.Platform)
	if err != nil {
		return newConfigError(err.Error())
	}
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	if opts.VM {
		cfg.VM.Enabled = true
	}

	if opts.PrintConfig {
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	results := cfg.Validate()
	printWarnings(cmd.ErrOrStderr(), results)
	if cerr := fromValidation(results); cerr != nil {
		return cerr
	}

	runAs, err := resolveRunAs(opts.RunAs, cfg.RunAs, runtime.GOOS, os.Getenv, isRoot())
	if err != nil {
		return newConfigError(err.Error())
	}
	if !opts.DryRun {
		if err := privilege.Require(); err != nil {
			return newConfigError(err.Error())
		}
	}

	rp, err := paths.Resolve(runID, runAs != "")
	if err != nil {
		return err
	}
	if err := rp.EnsureDirs(); err != nil {
		return err
	}
	logger, closer, err := logx.New(rp.RunLogDir, opts.LogLevel, runID)
	if err != nil {
		return err
	}
	defer closer.Close()
	logger.WithFields(logrus.Fields{
		"config":   cfgPath,
		"platform": cfg.Platform,
		"run_as":   runAs,
		"dry_run":  opts.DryRun,
	}).Info("run started")

	home := userHome(runAs)
	env := envstore.System{Additions: cfg.PathAdditions, Home: home}
	cmdRunner := runner.CmdRunner{}
	installExec := builder{runner: cmdRunner, logDir: rp.RunLogDir, timeout: cfg.Timeout}.installExec()
	pm, err := newPackageManager(cfg.Platform, installExec)
	if err != nil {
		return newConfigError(err.Error())
	}
	b := builder{
		cfg:     cfg,
		runner:  cmdRunner,
		logDir:  rp.RunLogDir,
		timeout: cfg.Timeout,
		pm:      pm,
		fetcher: newFetcher(rp.DownloadsDir),
		env:     env,
		runAs:   runAs,
		home:    home,
		withVM:  cfg.VM.Enabled,
		log:     logger,
	}
	p, err := b.build()
	if err != nil {
		return newConfigError(err.Error())
	}
	if err := provision.Validate(p.Specs); err != nil {
		return err
	}

	decision, err := prompt.ForFlags(opts.Yes, opts.No)
	if err != nil {
		return newConfigError(err.Error())
	}

	prov := &provision.Provisioner{
		Policy:   p.Policy,
		Decision: decision,
		Env:      env,
		Log:      logger,
		DryRun:   opts.DryRun,
	}

	steps := p.Steps
	if opts.SkipPostInstall {
		steps = nil
	}

	result := runResult{RunID: runID, Platform: cfg.Platform, DryRun: opts.DryRun, LogDir: rp.RunLogDir}
	work := func(ctx context.Context) {
		outcomes, err := prov.RunAll(ctx, p.Specs)
		if err != nil {
			// RunAll only fails validation, which already passed.
			logger.WithError(err).Error("provisioning aborted")
			return
		}
		attachLogs(outcomes, rp.RunLogDir)
		result.Tools = outcomes
		result.PostInstall = prov.RunPostInstall(ctx, steps, outcomes)
	}

	out := cmd.OutOrStdout()
	needsPrompt := !opts.Yes && !opts.No && hasGate(p.Specs) && prompt.StdinIsTerminal()
	mode := tui.DetectMode(out, opts.NoProgress, opts.JSON, needsPrompt)

	switch mode {
	case tui.ModeTUI:
		if err := runTUI(ctx, out, cfg.Platform, prov, p.Specs, steps, work); err != nil {
			return err
		}
	default:
		runPlain(ctx, cmd.ErrOrStderr(), prov, decision, mode, work)
	}

	result.Summary = provision.Summarize(result.Tools)
	logger.WithField("summary", result.Summary.Counts).Info("run finished")

	if mode == tui.ModeJSON {
		return writeJSON(out, result)
	}
	writeSummary(out, result, mode == tui.ModeTUI)
	return nil
}

func attachLogs(outcomes []provision.Outcome, dir string) {
	for i := range outcomes {
		path := tools.LogPath(dir, outcomes[i].ID)
		if ok, _ := paths.FileExists(path); ok {
			outcomes[i].LogPath = path
		}
	}
}

func runTUI(ctx context.Context, out io.Writer, platform string, prov *provision.Provisioner, specs []provision.Spec, steps []provision.Step, work func(context.Context)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.NewProvisionModel("devsetup: "+platform, specs, steps)
	model.OnInterrupt(cancel)
	return tui.RunWithWork(out, model, func(send func(tea.Msg)) {
		prov.Reporter = tui.NewProvisionReporter(send)
		work(ctx)
	})
}

func runPlain(ctx context.Context, errOut io.Writer, prov *provision.Provisioner, decision provision.Decision, mode tui.OutputMode, work func(context.Context)) {
	var status *tui.StatusLine
	if mode == tui.ModePlain && tui.IsTerminal(errOut) {
		status = tui.NewStatusLine(errOut)
	}
	reporter := tui.NewPlainReporter(errOut, status)
	defer reporter.Close()

	prov.Reporter = reporter
	prov.Decision = provision.DecisionFunc(func(ctx context.Context, question string) (bool, error) {
		reporter.Pause()
		return decision.Confirm(ctx, question)
	})
	work(ctx)
}

func hasGate(specs []provision.Spec) bool {
	for _, s := range specs {
		if s.Confirm != "" {
			return true
		}
	}
	return false
}

// resolveRunAs picks the account for per-user installs: the flag, then the
// config file, then $SUDO_USER when running as root.
func resolveRunAs(flag, fromConfig, goos string, getenv func(string) string, root bool) (string, error) {
	name := strings.TrimSpace(flag)
	if name == "" {
		name = strings.TrimSpace(fromConfig)
	}
	if name != "" && goos == "windows" {
		return "", errors.New("--run-as is not supported on windows")
	}
	if name == "" && root && goos != "windows" {
		if sudoUser := strings.TrimSpace(getenv("SUDO_USER")); sudoUser != "" && sudoUser != "root" {
			name = sudoUser
		}
	}
	if name == "root" {
		return "", nil
	}
	return name, nil
}

func isRoot() bool {
	ok, err := privilege.IsElevated()
	return err == nil && ok && runtime.GOOS != "windows"
}

// userHome returns the home directory of name, or the current user's when
// name is empty or unknown.
func userHome(name string) string {
	if name != "" {
		if u, err := user.Lookup(name); err == nil && u.HomeDir != "" {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}

func printWarnings(w io.Writer, results []config.ValidationResult) {
	for _, r := range results {
		if r.Level == config.LevelWarning {
			fmt.Fprintf(w, "warning: %s\n", r.Message)
		}
	}
}
