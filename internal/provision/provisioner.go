// Package provision runs an ordered list of tool specs: check presence,
// install what is missing with a bounded retry on transient exit codes, then
// run best-effort post-install steps. Item failures are recorded as data; only
// a ConfigurationError aborts a run.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"devsetup/internal/envstore"
	"devsetup/internal/runner"
)

// Provisioner executes specs sequentially.
type Provisioner struct {
	Policy   RetryPolicy
	Decision Decision
	Env      envstore.Provider
	Reporter Reporter
	Log      logrus.FieldLogger
	// DryRun evaluates presence checks only; nothing is installed.
	DryRun bool

	sleep func(ctx context.Context, d time.Duration) error
}

// RunAll provisions specs in order and returns exactly one outcome per spec.
// The returned error is non-nil only for a ConfigurationError, in which case
// no installer has run.
func (p *Provisioner) RunAll(ctx context.Context, specs []Spec) ([]Outcome, error) {
	if err := Validate(specs); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(specs))
	prior := make(map[string]Outcome, len(specs))
	for _, spec := range specs {
		var out Outcome
		if ctx.Err() != nil {
			out = Outcome{Kind: KindFailed, Reason: "cancelled"}
		} else {
			p.reporter().SpecStarted(spec)
			out = p.provisionOne(ctx, spec, prior)
		}
		out.ID = spec.ID
		out.DisplayName = spec.Label()

		p.logOutcome(out)
		p.reporter().SpecFinished(out)

		outcomes = append(outcomes, out)
		prior[spec.ID] = out
	}
	return outcomes, nil
}

func (p *Provisioner) provisionOne(ctx context.Context, spec Spec, prior map[string]Outcome) Outcome {
	start := time.Now()
	log := p.log().WithField("tool", spec.ID)

	if missing := unmetDependencies(spec.DependsOn, prior); len(missing) > 0 {
		return Outcome{
			Kind:    KindSkippedDependencyMissing,
			Missing: missing,
			Reason:  "requires " + strings.Join(missing, ", "),
		}
	}

	present, err := spec.Check.Present(ctx)
	if err != nil {
		log.WithError(err).Warn("presence check failed; treating as not installed")
	}
	if present {
		return Outcome{Kind: KindAlreadyPresent, Duration: time.Since(start)}
	}

	if p.DryRun {
		return Outcome{Kind: KindPlanned, Reason: "would install", Duration: time.Since(start)}
	}

	if spec.Confirm != "" {
		ok, reason := p.confirm(ctx, spec)
		if !ok {
			return Outcome{Kind: KindDeclined, Reason: reason, Duration: time.Since(start)}
		}
	}

	out := p.installWithRetry(ctx, spec, spec.Install, p.Policy)
	out.Duration = time.Since(start)
	return out
}

// confirm resolves a guided prerequisite. It is asked at most once per spec
// per run: PromptPending -> Enabled | Declined.
func (p *Provisioner) confirm(ctx context.Context, spec Spec) (bool, string) {
	if p.Decision == nil {
		return false, "no operator available to confirm"
	}
	ok, err := p.Decision.Confirm(ctx, spec.Confirm)
	if err != nil {
		p.log().WithField("tool", spec.ID).WithError(err).Warn("confirmation failed")
		return false, fmt.Sprintf("confirmation failed: %v", err)
	}
	if !ok {
		return false, "declined by operator"
	}
	return true, ""
}

// InstallWithRetry executes action until it succeeds, fails with a code not in
// policy.RetryableExitCodes, or exhausts policy.MaxRetries retries. The action
// is never modified between attempts.
func (p *Provisioner) InstallWithRetry(ctx context.Context, action Installer, policy RetryPolicy) Outcome {
	return p.installWithRetry(ctx, Spec{}, action, policy)
}

func (p *Provisioner) installWithRetry(ctx context.Context, spec Spec, action Installer, policy RetryPolicy) Outcome {
	log := p.log()
	if spec.ID != "" {
		log = log.WithField("tool", spec.ID)
	}

	for attempt := 1; ; attempt++ {
		if spec.ID != "" {
			p.reporter().AttemptStarted(spec, attempt)
		}

		code, err := action.Execute(ctx)
		if err != nil {
			switch {
			case errors.Is(err, runner.ErrTimeout):
				return Outcome{Kind: KindFailed, Reason: "timeout", Attempts: attempt}
			case ctx.Err() != nil:
				return Outcome{Kind: KindFailed, Reason: "cancelled", Attempts: attempt}
			}
			c, ok := runner.ExitCode(err)
			if !ok {
				return Outcome{Kind: KindFailed, Reason: err.Error(), Attempts: attempt}
			}
			code = c
		}

		if code == 0 {
			return Outcome{Kind: KindInstalled, Attempts: attempt}
		}

		if !policy.Retryable(code) {
			return Outcome{
				Kind:     KindFailed,
				Reason:   fmt.Sprintf("exit status %d", code),
				ExitCode: code,
				Attempts: attempt,
			}
		}
		if attempt > policy.MaxRetries {
			return Outcome{
				Kind:     KindFailed,
				Reason:   fmt.Sprintf("exit status %d (still busy after %d attempts)", code, attempt),
				ExitCode: code,
				Attempts: attempt,
			}
		}

		log.WithFields(logrus.Fields{
			"exit_code": code,
			"attempt":   attempt,
			"backoff":   policy.Backoff.String(),
		}).Warn("installer busy; retrying")

		if err := p.wait(ctx, policy.Backoff); err != nil {
			return Outcome{Kind: KindFailed, Reason: "cancelled", ExitCode: code, Attempts: attempt}
		}
	}
}

func unmetDependencies(deps []string, prior map[string]Outcome) []string {
	var missing []string
	for _, dep := range deps {
		out, ok := prior[dep]
		if !ok || !out.Kind.Satisfied() {
			missing = append(missing, dep)
		}
	}
	return missing
}

func (p *Provisioner) logOutcome(out Outcome) {
	entry := p.log().WithFields(logrus.Fields{
		"tool":    out.ID,
		"outcome": out.Kind.String(),
	})
	if out.Attempts > 0 {
		entry = entry.WithField("attempts", out.Attempts)
	}
	if out.Reason != "" {
		entry = entry.WithField("reason", out.Reason)
	}
	if out.Kind == KindFailed {
		entry.Error("tool not provisioned")
		return
	}
	entry.Info("tool processed")
}

func (p *Provisioner) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Provisioner) reporter() Reporter {
	if p.Reporter == nil {
		return NopReporter{}
	}
	return p.Reporter
}

func (p *Provisioner) log() logrus.FieldLogger {
	if p.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		p.Log = l
	}
	return p.Log
}
