package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const (
	LevelError   = "error"
	LevelWarning = "warning"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

// HasErrors reports whether any result is an error.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == LevelError {
			return true
		}
	}
	return false
}

// Validate checks the configuration and returns structured results.
// Dependency ordering is checked again by the provisioner.
func (c Config) Validate() []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateRuntime()...)
	results = append(results, c.validateTools()...)
	results = append(results, c.validateSteps()...)
	results = append(results, c.validateVM()...)
	return results
}

func (c Config) validateRuntime() []ValidationResult {
	var results []ValidationResult
	switch c.Platform {
	case PlatformWindows, PlatformUbuntu:
	default:
		results = append(results, errorf("platform %q is not supported", c.Platform))
	}
	if c.Timeout < 0 {
		results = append(results, errorf("timeout must not be negative"))
	}
	if c.Retry.MaxRetriesValue() < 0 {
		results = append(results, errorf("retry.max_retries must not be negative"))
	}
	if c.Retry.Backoff < 0 {
		results = append(results, errorf("retry.backoff must not be negative"))
	}
	for _, code := range c.Retry.RetryableExitCodes {
		if code == 0 {
			results = append(results, errorf("retry.retryable_exit_codes must not contain 0"))
		}
	}
	if c.RunAs != "" && c.Platform == PlatformWindows {
		results = append(results, errorf("run_as is not supported on windows"))
	}
	return results
}

func (c Config) validateTools() []ValidationResult {
	var results []ValidationResult
	seen := make(map[string]bool, len(c.Tools))
	for i, tool := range c.Tools {
		label := tool.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
			results = append(results, errorf("tool %s has no id", label))
		} else if seen[tool.ID] {
			results = append(results, errorf("tool %q is declared more than once", tool.ID))
		}

		switch n := tool.Install.methods(); {
		case n == 0:
			results = append(results, errorf("tool %q has no install method", label))
		case n > 1:
			results = append(results, errorf("tool %q sets more than one of install.package, install.script, install.command", label))
		}
		if tool.Install.Package != nil && strings.TrimSpace(tool.Install.Package.ID) == "" {
			results = append(results, errorf("tool %q: install.package.id is empty", label))
		}
		if tool.Check.Empty() && tool.Install.Package == nil {
			results = append(results, errorf("tool %q has no presence check", label))
		}
		if tool.Check.Package && tool.Install.Package == nil {
			results = append(results, errorf("tool %q: check.package requires install.package", label))
		}
		if v := tool.Check.MinimumVersion; v != "" {
			if tool.Check.Command == "" {
				results = append(results, errorf("tool %q: check.minimum_version requires check.command", label))
			}
			if _, err := semver.NewVersion(v); err != nil {
				results = append(results, errorf("tool %q: invalid minimum_version %q: %v", label, v, err))
			}
		}
		if s := tool.Install.Script; s != nil {
			results = append(results, validateScript(label, *s)...)
		}
		for _, dep := range tool.DependsOn {
			if !seen[dep] {
				results = append(results, errorf("tool %q depends on %q, which is not declared before it", label, dep))
			}
		}
		if tool.ID != "" {
			seen[tool.ID] = true
		}
	}
	return results
}

func validateScript(label string, s ScriptInstall) []ValidationResult {
	var results []ValidationResult
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		results = append(results, errorf("tool %q: install.script.url %q must be an http(s) URL", label, s.URL))
	} else if u.Scheme == "http" {
		results = append(results, warnf("tool %q: install.script.url uses plain http", label))
	}
	if s.SHA256 == "" {
		results = append(results, warnf("tool %q: installer script is not checksum-verified", label))
	} else if b, err := hex.DecodeString(s.SHA256); err != nil || len(b) != 32 {
		results = append(results, errorf("tool %q: install.script.sha256 is not a SHA-256 hex digest", label))
	}
	return results
}

func (c Config) validateSteps() []ValidationResult {
	var results []ValidationResult
	names := make(map[string]bool, len(c.PostInstall))
	for i, step := range c.PostInstall {
		label := step.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
			results = append(results, errorf("post_install step %s has no name", label))
		} else if names[step.Name] {
			results = append(results, errorf("post_install step %q is declared more than once", step.Name))
		}
		names[step.Name] = true

		if len(step.Run) == 0 {
			results = append(results, errorf("post_install step %q has nothing to run", label))
		}
		for _, argv := range step.Run {
			if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
				results = append(results, errorf("post_install step %q has an empty command", label))
			}
		}
		for _, req := range step.Requires {
			if _, ok := c.Tool(req); !ok {
				results = append(results, warnf("post_install step %q requires unknown tool %q; it will always be skipped", label, req))
			}
		}
	}
	return results
}

func (c Config) validateVM() []ValidationResult {
	if !c.VM.Enabled {
		return nil
	}
	var results []ValidationResult
	if c.VM.ISO == "" && c.VM.ISOURL == "" {
		results = append(results, errorf("vm: set iso or iso_url"))
	}
	if c.VM.ISOURL != "" && c.VM.ISOChecksum == "" {
		results = append(results, warnf("vm: iso_url is not checksum-verified"))
	}
	if c.VM.MemoryMB < 0 || c.VM.CPUs < 0 || c.VM.DiskMB < 0 {
		results = append(results, errorf("vm: memory_mb, cpus and disk_mb must not be negative"))
	}
	if _, ok := c.Tool(c.VM.Requires); !ok {
		results = append(results, warnf("vm: requires unknown tool %q; the vm step will be skipped", c.VM.Requires))
	}
	return results
}

func errorf(format string, args ...any) ValidationResult {
	return ValidationResult{Level: LevelError, Message: fmt.Sprintf(format, args...)}
}

func warnf(format string, args ...any) ValidationResult {
	return ValidationResult{Level: LevelWarning, Message: fmt.Sprintf(format, args...)}
}
