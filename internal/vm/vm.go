// Package vm creates a VirtualBox guest through VBoxManage's unattended
// install and waits for it to boot.
package vm

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/siderolabs/go-retry/retry"
	"github.com/sirupsen/logrus"

	"devsetup/internal/envstore"
	"devsetup/internal/runner"
)

const (
	defaultName        = "devsetup-ubuntu"
	defaultOSType      = "Ubuntu_64"
	defaultMemoryMB    = 4096
	defaultCPUs        = 2
	defaultDiskMB      = 40960
	defaultUser        = "dev"
	defaultPasswordEnv = "DEVSETUP_VM_PASSWORD"
	defaultWait        = 15 * time.Minute
	defaultPoll        = 5 * time.Second
	commandTimeout     = 10 * time.Minute

	storageController = "SATA"
)

// Config sizes the guest.
type Config struct {
	Name        string
	OSType      string
	ISO         string
	ISOURL      string
	ISOChecksum string
	MemoryMB    int
	CPUs        int
	DiskMB      int
	User        string
	PasswordEnv string
	BaseFolder  string
	Wait        time.Duration
}

// ISOFetcher downloads the installation image.
type ISOFetcher interface {
	Fetch(ctx context.Context, url, checksum string) (string, error)
}

// Creator is a post-install step action.
type Creator struct {
	Config  Config
	Runner  runner.Runner
	Fetcher ISOFetcher
	Log     logrus.FieldLogger
	// VBoxManage overrides the executable lookup.
	VBoxManage string
	// Getenv reads the guest password; defaults to os.Getenv.
	Getenv func(string) string
	// PollInterval is the delay between VM state checks.
	PollInterval time.Duration
}

// Run creates the VM unless one with the same name is already registered.
func (c *Creator) Run(ctx context.Context, env envstore.EnvironmentSnapshot) error {
	cfg := c.Config.withDefaults()
	vbox, err := c.resolveVBoxManage(env)
	if err != nil {
		return err
	}
	log := c.log().WithField("vm", cfg.Name)
	opts := runner.RunOptions{Timeout: commandTimeout}
	if !env.Empty() {
		opts.BaseEnv = env.Environ()
	}
	m := manager{runner: c.runner(), vbox: vbox, opts: opts}

	if _, err := m.run(ctx, "showvminfo", cfg.Name); err == nil {
		log.Info("vm already registered; skipping creation")
		return nil
	}

	password := c.getenv(cfg.PasswordEnv)
	if password == "" {
		return fmt.Errorf("set %s to the guest account password", cfg.PasswordEnv)
	}

	iso, err := c.resolveISO(ctx, cfg)
	if err != nil {
		return err
	}

	createArgs := []string{"createvm", "--name", cfg.Name, "--ostype", cfg.OSType, "--register"}
	if cfg.BaseFolder != "" {
		createArgs = append(createArgs, "--basefolder", cfg.BaseFolder)
	}
	if _, err := m.run(ctx, createArgs...); err != nil {
		return err
	}
	log.Info("vm registered")

	if _, err := m.run(ctx, "modifyvm", cfg.Name,
		"--memory", strconv.Itoa(cfg.MemoryMB),
		"--cpus", strconv.Itoa(cfg.CPUs),
		"--nic1", "nat",
	); err != nil {
		return err
	}

	info, err := m.info(ctx, cfg.Name)
	if err != nil {
		return err
	}
	cfgFile := info["CfgFile"]
	if cfgFile == "" {
		return fmt.Errorf("showvminfo %s: no CfgFile reported", cfg.Name)
	}
	disk := filepath.Join(filepath.Dir(cfgFile), cfg.Name+".vdi")

	steps := [][]string{
		{"createmedium", "disk", "--filename", disk, "--size", strconv.Itoa(cfg.DiskMB), "--format", "VDI"},
		{"storagectl", cfg.Name, "--name", storageController, "--add", "sata", "--controller", "IntelAhci"},
		{"storageattach", cfg.Name, "--storagectl", storageController, "--port", "0", "--device", "0", "--type", "hdd", "--medium", disk},
	}
	for _, args := range steps {
		if _, err := m.run(ctx, args...); err != nil {
			return err
		}
	}

	passwordFile, cleanup, err := writePasswordFile(password)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := m.run(ctx, "unattended", "install", cfg.Name,
		"--iso", iso,
		"--user", cfg.User,
		"--password-file", passwordFile,
		"--start-vm=headless",
	); err != nil {
		return err
	}
	log.Info("unattended install started")

	if err := c.waitRunning(ctx, m, cfg); err != nil {
		return err
	}
	log.Info("vm running")
	return nil
}

func (c *Creator) waitRunning(ctx context.Context, m manager, cfg Config) error {
	poll := c.PollInterval
	if poll <= 0 {
		poll = defaultPoll
	}
	err := retry.Constant(cfg.Wait, retry.WithUnits(poll)).
		RetryWithContext(ctx, func(ctx context.Context) error {
			info, err := m.info(ctx, cfg.Name)
			if err != nil {
				return retry.ExpectedError(err)
			}
			if state := info["VMState"]; state != "running" {
				return retry.ExpectedError(fmt.Errorf("vm state %q", state))
			}
			return nil
		})
	if err != nil {
		return fmt.Errorf("waiting for %s to start: %w", cfg.Name, err)
	}
	return nil
}

func (c *Creator) resolveISO(ctx context.Context, cfg Config) (string, error) {
	if cfg.ISO != "" {
		if _, err := os.Stat(cfg.ISO); err != nil {
			return "", fmt.Errorf("iso: %w", err)
		}
		return cfg.ISO, nil
	}
	if cfg.ISOURL == "" {
		return "", errors.New("no installation image configured (vm.iso or vm.iso_url)")
	}
	if c.Fetcher == nil {
		return "", errors.New("no downloader configured for vm.iso_url")
	}
	path, err := c.Fetcher.Fetch(ctx, cfg.ISOURL, cfg.ISOChecksum)
	if err != nil {
		return "", fmt.Errorf("download iso: %w", err)
	}
	return path, nil
}

func (c *Creator) resolveVBoxManage(env envstore.EnvironmentSnapshot) (string, error) {
	if c.VBoxManage != "" {
		return c.VBoxManage, nil
	}
	if path, err := env.LookPath("VBoxManage"); err == nil {
		return path, nil
	}
	if runtime.GOOS == "windows" {
		candidate := filepath.Join(os.Getenv("ProgramFiles"), "Oracle", "VirtualBox", "VBoxManage.exe")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errors.New("VBoxManage not found on PATH")
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.OSType == "" {
		c.OSType = defaultOSType
	}
	if c.MemoryMB <= 0 {
		c.MemoryMB = defaultMemoryMB
	}
	if c.CPUs <= 0 {
		c.CPUs = defaultCPUs
	}
	if c.DiskMB <= 0 {
		c.DiskMB = defaultDiskMB
	}
	if c.User == "" {
		c.User = defaultUser
	}
	if c.PasswordEnv == "" {
		c.PasswordEnv = defaultPasswordEnv
	}
	if c.Wait <= 0 {
		c.Wait = defaultWait
	}
	return c
}

func (c *Creator) runner() runner.Runner {
	if c.Runner == nil {
		return runner.CmdRunner{}
	}
	return c.Runner
}

func (c *Creator) getenv(key string) string {
	if c.Getenv != nil {
		return c.Getenv(key)
	}
	return os.Getenv(key)
}

func (c *Creator) log() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

type manager struct {
	runner runner.Runner
	vbox   string
	opts   runner.RunOptions
}

func (m manager) run(ctx context.Context, args ...string) ([]byte, error) {
	result, err := m.runner.Run(ctx, m.vbox, args, m.opts)
	if err != nil {
		msg := strings.TrimSpace(string(result.Stderr))
		if msg != "" {
			return nil, fmt.Errorf("VBoxManage %s: %w: %s", args[0], err, firstLine(msg))
		}
		return nil, fmt.Errorf("VBoxManage %s: %w", args[0], err)
	}
	return result.Stdout, nil
}

func (m manager) info(ctx context.Context, name string) (map[string]string, error) {
	out, err := m.run(ctx, "showvminfo", name, "--machinereadable")
	if err != nil {
		return nil, err
	}
	return parseMachineReadable(out), nil
}

// parseMachineReadable parses `showvminfo --machinereadable` key=value lines.
func parseMachineReadable(out []byte) map[string]string {
	values := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		key = strings.Trim(strings.TrimSpace(key), `"`)
		value = strings.TrimSpace(value)
		if unquoted, err := strconv.Unquote(value); err == nil {
			value = unquoted
		} else {
			value = strings.Trim(value, `"`)
		}
		values[key] = value
	}
	return values
}

func writePasswordFile(password string) (string, func(), error) {
	f, err := os.CreateTemp("", "devsetup-vm-*")
	if err != nil {
		return "", nil, fmt.Errorf("create password file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.WriteString(password); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write password file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write password file: %w", err)
	}
	return f.Name(), cleanup, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
