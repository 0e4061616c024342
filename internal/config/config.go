package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	PlatformAuto    = "auto"
	PlatformWindows = "windows"
	PlatformUbuntu  = "ubuntu"
)

// Config is the devsetup.yaml document.
type Config struct {
	Version  int    `yaml:"version"`
	Platform string `yaml:"platform,omitempty"`
	// RunAs is the account that owns per-user installs (rustup, nvm, foundry).
	RunAs string `yaml:"run_as,omitempty"`
	// Timeout bounds a single installer attempt.
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	Retry         RetryConfig   `yaml:"retry"`
	PathAdditions []string      `yaml:"path_additions,omitempty"`
	// ToolFiles are extra YAML files holding tool lists appended to Tools.
	ToolFiles   []string     `yaml:"tool_files,omitempty"`
	Tools       []ToolConfig `yaml:"tools,omitempty"`
	PostInstall []StepConfig `yaml:"post_install,omitempty"`
	VM          VMConfig     `yaml:"vm"`
}

// RetryConfig bounds retries of transient installer exit codes. The package
// manager's own transient codes are always included.
type RetryConfig struct {
	RetryableExitCodes []int         `yaml:"retryable_exit_codes,omitempty"`
	MaxRetries         *int          `yaml:"max_retries,omitempty"`
	Backoff            time.Duration `yaml:"backoff,omitempty"`
}

// MaxRetriesValue returns the configured retry count applying the default.
func (r RetryConfig) MaxRetriesValue() int {
	if r.MaxRetries == nil {
		return defaultMaxRetries
	}
	return *r.MaxRetries
}

// ToolConfig declares one tool.
type ToolConfig struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name,omitempty"`
	Check     CheckConfig   `yaml:"check,omitempty"`
	Install   InstallConfig `yaml:"install"`
	DependsOn []string      `yaml:"depends_on,omitempty"`
	// Confirm makes the tool a guided prerequisite asked about before install.
	Confirm string `yaml:"confirm,omitempty"`
	// AsUser runs the installer as the run-as account.
	AsUser bool     `yaml:"as_user,omitempty"`
	Env    []string `yaml:"env,omitempty"`
}

// CheckConfig lists presence probes; the tool is present when any matches.
// With no probes configured a package install is probed through the package
// manager.
type CheckConfig struct {
	Command        string   `yaml:"command,omitempty"`
	VersionArgs    []string `yaml:"version_args,omitempty"`
	MinimumVersion string   `yaml:"minimum_version,omitempty"`
	Files          []string `yaml:"files,omitempty"`
	Succeeds       []string `yaml:"succeeds,omitempty"`
	Package        bool     `yaml:"package,omitempty"`
}

// Empty reports whether no probe is configured.
func (c CheckConfig) Empty() bool {
	return c.Command == "" && len(c.Files) == 0 && len(c.Succeeds) == 0 && !c.Package
}

// InstallConfig holds exactly one install method.
type InstallConfig struct {
	Package *PackageInstall `yaml:"package,omitempty"`
	Script  *ScriptInstall  `yaml:"script,omitempty"`
	Command []string        `yaml:"command,omitempty"`
}

func (i InstallConfig) methods() int {
	n := 0
	if i.Package != nil {
		n++
	}
	if i.Script != nil {
		n++
	}
	if len(i.Command) > 0 {
		n++
	}
	return n
}

type PackageInstall struct {
	ID       string   `yaml:"id"`
	Override string   `yaml:"override,omitempty"`
	Args     []string `yaml:"args,omitempty"`
}

type ScriptInstall struct {
	URL         string   `yaml:"url"`
	SHA256      string   `yaml:"sha256,omitempty"`
	Interpreter []string `yaml:"interpreter,omitempty"`
	Args        []string `yaml:"args,omitempty"`
}

// StepConfig is a post-install step: one or more commands run in order.
// The token {user} in arguments expands to the run-as account.
type StepConfig struct {
	Name      string     `yaml:"name"`
	Requires  []string   `yaml:"requires,omitempty"`
	NeedsPath bool       `yaml:"needs_path,omitempty"`
	Run       [][]string `yaml:"run"`
	AsUser    bool       `yaml:"as_user,omitempty"`
	Env       []string   `yaml:"env,omitempty"`
}

// VMConfig sizes the optional VirtualBox guest.
type VMConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Requires    string        `yaml:"requires,omitempty"`
	Name        string        `yaml:"name,omitempty"`
	OSType      string        `yaml:"os_type,omitempty"`
	ISO         string        `yaml:"iso,omitempty"`
	ISOURL      string        `yaml:"iso_url,omitempty"`
	ISOChecksum string        `yaml:"iso_checksum,omitempty"`
	MemoryMB    int           `yaml:"memory_mb,omitempty"`
	CPUs        int           `yaml:"cpus,omitempty"`
	DiskMB      int           `yaml:"disk_mb,omitempty"`
	User        string        `yaml:"user,omitempty"`
	PasswordEnv string        `yaml:"password_env,omitempty"`
	BaseFolder  string        `yaml:"base_folder,omitempty"`
	Wait        time.Duration `yaml:"wait,omitempty"`
}

const (
	defaultMaxRetries = 3
	defaultBackoff    = 30 * time.Second
	defaultTimeout    = 30 * time.Minute
)

// Default returns the built-in configuration for platform.
func Default(platform string) Config {
	cfg := Config{
		Version:       1,
		Platform:      platform,
		Timeout:       defaultTimeout,
		Retry:         RetryConfig{MaxRetries: intPtr(defaultMaxRetries), Backoff: defaultBackoff},
		PathAdditions: []string{"~/.cargo/bin", "~/.foundry/bin"},
		VM: VMConfig{
			Requires:    "virtualbox",
			Name:        "devsetup-ubuntu",
			OSType:      "Ubuntu_64",
			MemoryMB:    4096,
			CPUs:        2,
			DiskMB:      40960,
			User:        "dev",
			PasswordEnv: "DEVSETUP_VM_PASSWORD",
			Wait:        15 * time.Minute,
		},
	}
	switch platform {
	case PlatformWindows:
		cfg.Tools = windowsTools()
		cfg.PostInstall = windowsSteps()
	case PlatformUbuntu:
		cfg.Tools = ubuntuTools()
		cfg.PostInstall = ubuntuSteps()
	}
	return cfg
}

// ResolvePlatform picks the target platform. flag wins over the config file
// value; "auto" (or empty) detects from goos.
func ResolvePlatform(flag, file, goos string) (string, error) {
	choice := strings.ToLower(strings.TrimSpace(flag))
	if choice == "" || choice == PlatformAuto {
		choice = strings.ToLower(strings.TrimSpace(file))
	}
	switch choice {
	case PlatformWindows, PlatformUbuntu:
		return choice, nil
	case "", PlatformAuto:
	default:
		return "", fmt.Errorf("unknown platform %q (want auto, windows or ubuntu)", choice)
	}
	switch goos {
	case "windows":
		return PlatformWindows, nil
	case "linux":
		return PlatformUbuntu, nil
	default:
		return "", fmt.Errorf("no built-in catalog for %s; pass --platform", goos)
	}
}

// Load reads the YAML configuration at path. A missing file yields the
// built-in catalog. platformFlag follows ResolvePlatform.
func Load(path, platformFlag string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if path == "" || errors.Is(err, os.ErrNotExist) {
			platform, perr := ResolvePlatform(platformFlag, "", runtime.GOOS)
			if perr != nil {
				return Config{}, perr
			}
			cfg := Default(platform)
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(contents, platformFlag)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.loadToolFiles(filepath.Dir(path)); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes a configuration document and fills omitted sections from the
// platform's built-in catalog.
func Parse(contents []byte, platformFlag string) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	platform, err := ResolvePlatform(platformFlag, cfg.Platform, runtime.GOOS)
	if err != nil {
		return Config{}, err
	}
	cfg.Platform = platform
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills fields the YAML omitted. Tools and post-install steps
// fall back to the platform catalog only when the document has none.
func (c *Config) ApplyDefaults() {
	defaults := Default(c.Platform)

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.Retry.MaxRetries == nil {
		c.Retry.MaxRetries = intPtr(defaultMaxRetries)
	}
	if c.Retry.Backoff == 0 {
		c.Retry.Backoff = defaults.Retry.Backoff
	}
	if c.PathAdditions == nil {
		c.PathAdditions = defaults.PathAdditions
	}
	if c.Tools == nil {
		c.Tools = defaults.Tools
	}
	if c.PostInstall == nil {
		c.PostInstall = defaults.PostInstall
	}
	if c.VM.Requires == "" {
		c.VM.Requires = defaults.VM.Requires
	}
	if c.VM.Name == "" {
		c.VM.Name = defaults.VM.Name
	}
	if c.VM.OSType == "" {
		c.VM.OSType = defaults.VM.OSType
	}
	if c.VM.MemoryMB == 0 {
		c.VM.MemoryMB = defaults.VM.MemoryMB
	}
	if c.VM.CPUs == 0 {
		c.VM.CPUs = defaults.VM.CPUs
	}
	if c.VM.DiskMB == 0 {
		c.VM.DiskMB = defaults.VM.DiskMB
	}
	if c.VM.User == "" {
		c.VM.User = defaults.VM.User
	}
	if c.VM.PasswordEnv == "" {
		c.VM.PasswordEnv = defaults.VM.PasswordEnv
	}
	if c.VM.Wait == 0 {
		c.VM.Wait = defaults.VM.Wait
	}
}

// Tool returns the tool with id.
func (c Config) Tool(id string) (ToolConfig, bool) {
	for _, t := range c.Tools {
		if t.ID == id {
			return t, true
		}
	}
	return ToolConfig{}, false
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

func intPtr(v int) *int {
	return &v
}
