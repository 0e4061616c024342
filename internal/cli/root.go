package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"devsetup/internal/provision"
)

const envPrefix = "DEVSETUP"

// Execute runs the root cobra command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps run errors to process exit codes. Item failures never reach
// here: a completed run exits 0 whatever its outcomes.
func exitCode(err error) int {
	var cfgErr *configError
	var provErr *provision.ConfigurationError
	if errors.As(err, &cfgErr) || errors.As(err, &provErr) {
		return 1
	}
	return 2
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "devsetup",
		Short: "Provision a developer workstation",
		Long: "devsetup installs a fixed set of developer tools on a fresh Windows or Ubuntu\n" +
			"machine. Tools already present are left alone, transient package-manager\n" +
			"failures are retried, and a summary lists anything that needs manual follow-up.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProvision(cmd, optionsFromViper(v))
		},
	}

	addFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.Flags())

	return cmd
}

func addFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to devsetup.yaml (default ./devsetup.yaml, then ~/.devsetup/devsetup.yaml)")
	flags.String("platform", "auto", "Target catalog: auto, windows or ubuntu")
	flags.String("run-as", "", "Account that owns per-user installs (default $SUDO_USER when run via sudo)")
	flags.BoolP("yes", "y", false, "Answer yes to every prerequisite question")
	flags.Bool("no", false, "Answer no to every prerequisite question")
	flags.Bool("json", false, "Output machine-readable JSON")
	flags.Bool("no-progress", false, "Disable the interactive progress table")
	flags.Bool("dry-run", false, "Run presence checks only; install nothing")
	flags.Duration("timeout", 0, "Per-attempt installer timeout (default from config, 30m)")
	flags.Bool("skip-post-install", false, "Skip post-install steps")
	flags.Bool("vm", false, "Create the VirtualBox VM after provisioning")
	flags.String("log-level", "info", "Run log level: debug, info, warn or error")
	flags.Bool("print-config", false, "Print the effective configuration as YAML and exit")
}

type options struct {
	ConfigPath      string
	Platform        string
	RunAs           string
	Yes             bool
	No              bool
	JSON            bool
	NoProgress      bool
	DryRun          bool
	Timeout         time.Duration
	SkipPostInstall bool
	VM              bool
	LogLevel        string
	PrintConfig     bool
}

func optionsFromViper(v *viper.Viper) options {
	return options{
		ConfigPath:      v.GetString("config"),
		Platform:        v.GetString("platform"),
		RunAs:           v.GetString("run-as"),
		Yes:             v.GetBool("yes"),
		No:              v.GetBool("no"),
		JSON:            v.GetBool("json"),
		NoProgress:      v.GetBool("no-progress"),
		DryRun:          v.GetBool("dry-run"),
		Timeout:         v.GetDuration("timeout"),
		SkipPostInstall: v.GetBool("skip-post-install"),
		VM:              v.GetBool("vm"),
		LogLevel:        v.GetString("log-level"),
		PrintConfig:     v.GetBool("print-config"),
	}
}
