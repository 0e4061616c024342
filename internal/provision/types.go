package provision

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Kind classifies the result of provisioning one Spec.
type Kind int

const (
	KindAlreadyPresent Kind = iota
	KindInstalled
	KindSkippedDependencyMissing
	KindFailed
	// KindDeclined records an operator saying no to a guided prerequisite.
	KindDeclined
	// KindPlanned is produced by dry runs in place of an install.
	KindPlanned
)

var kindNames = map[Kind]string{
	KindAlreadyPresent:           "present",
	KindInstalled:                "installed",
	KindSkippedDependencyMissing: "skipped",
	KindFailed:                   "failed",
	KindDeclined:                 "declined",
	KindPlanned:                  "planned",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if strings.EqualFold(name, string(text)) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown outcome kind %q", text)
}

// Satisfied reports whether dependents of an item with this kind may proceed.
func (k Kind) Satisfied() bool {
	return k == KindAlreadyPresent || k == KindInstalled || k == KindPlanned
}

// Probe is a side-effect-free presence check.
type Probe interface {
	Present(ctx context.Context) (bool, error)
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) (bool, error)

func (f ProbeFunc) Present(ctx context.Context) (bool, error) { return f(ctx) }

// Installer is an opaque external unit of work. The exit code is the result;
// err is reserved for commands that could not be launched or were cut short.
type Installer interface {
	Execute(ctx context.Context) (exitCode int, err error)
}

// InstallerFunc adapts a function to Installer.
type InstallerFunc func(ctx context.Context) (int, error)

func (f InstallerFunc) Execute(ctx context.Context) (int, error) { return f(ctx) }

// Spec declares one installable unit.
type Spec struct {
	ID          string
	DisplayName string
	Check       Probe
	Install     Installer
	DependsOn   []string
	// Confirm turns the tool into a guided prerequisite: when it is absent the
	// operator is asked this question before Install runs.
	Confirm string
}

// Label returns the display name, falling back to the ID.
func (s Spec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.ID
}

// Outcome is the result of provisioning one Spec.
type Outcome struct {
	ID          string        `json:"id"`
	DisplayName string        `json:"name"`
	Kind        Kind          `json:"outcome"`
	Reason      string        `json:"reason,omitempty"`
	ExitCode    int           `json:"exit_code,omitempty"`
	Attempts    int           `json:"attempts,omitempty"`
	Missing     []string      `json:"missing,omitempty"`
	Duration    time.Duration `json:"duration_ns,omitempty"`
	// LogPath is the installer output log, when one was written.
	LogPath string `json:"log,omitempty"`
}

// RetryPolicy bounds retries of transient installer failures.
type RetryPolicy struct {
	RetryableExitCodes []int
	MaxRetries         int
	Backoff            time.Duration
}

// Retryable reports whether code is one of the transient exit codes.
func (p RetryPolicy) Retryable(code int) bool {
	if code == 0 {
		return false
	}
	for _, c := range p.RetryableExitCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Decision answers yes/no questions, normally by asking the operator.
type Decision interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// DecisionFunc adapts a function to Decision.
type DecisionFunc func(ctx context.Context, question string) (bool, error)

func (f DecisionFunc) Confirm(ctx context.Context, question string) (bool, error) {
	return f(ctx, question)
}

// Reporter receives progress notifications. Implementations must not block.
type Reporter interface {
	SpecStarted(spec Spec)
	AttemptStarted(spec Spec, attempt int)
	SpecFinished(outcome Outcome)
	StepStarted(step Step)
	StepFinished(result StepResult)
}

// NopReporter discards all notifications.
type NopReporter struct{}

func (NopReporter) SpecStarted(Spec)         {}
func (NopReporter) AttemptStarted(Spec, int) {}
func (NopReporter) SpecFinished(Outcome)     {}
func (NopReporter) StepStarted(Step)         {}
func (NopReporter) StepFinished(StepResult)  {}

var _ Reporter = NopReporter{}
