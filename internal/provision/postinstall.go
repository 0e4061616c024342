package provision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"devsetup/internal/envstore"
)

// StepAction is a best-effort configuration action run after the main pass.
type StepAction interface {
	Run(ctx context.Context, env envstore.EnvironmentSnapshot) error
}

// StepFunc adapts a function to StepAction.
type StepFunc func(ctx context.Context, env envstore.EnvironmentSnapshot) error

func (f StepFunc) Run(ctx context.Context, env envstore.EnvironmentSnapshot) error {
	return f(ctx, env)
}

// Step is a post-install step.
type Step struct {
	Name string
	// Requires lists tool IDs whose outcome must be satisfied.
	Requires []string
	// NeedsPath refreshes the environment snapshot before the step runs.
	NeedsPath bool
	Action    StepAction
}

// StepStatus is the result class of a post-install step.
type StepStatus int

const (
	StepSucceeded StepStatus = iota
	StepWarned
	StepSkipped
)

func (s StepStatus) String() string {
	switch s {
	case StepSucceeded:
		return "ok"
	case StepWarned:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StepStatus) UnmarshalText(text []byte) error {
	for _, status := range []StepStatus{StepSucceeded, StepWarned, StepSkipped} {
		if strings.EqualFold(status.String(), string(text)) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown step status %q", text)
}

// StepResult records what happened to one post-install step.
type StepResult struct {
	Name     string        `json:"name"`
	Status   StepStatus    `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// RunPostInstall runs steps in order. A failing step never prevents later
// steps from running.
func (p *Provisioner) RunPostInstall(ctx context.Context, steps []Step, outcomes []Outcome) []StepResult {
	prior := make(map[string]Outcome, len(outcomes))
	for _, out := range outcomes {
		prior[out.ID] = out
	}

	env := envstore.Current()
	results := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		var result StepResult
		switch missing := unmetDependencies(step.Requires, prior); {
		case ctx.Err() != nil:
			result = StepResult{Name: step.Name, Status: StepSkipped, Reason: "cancelled"}
		case len(missing) > 0:
			result = StepResult{Name: step.Name, Status: StepSkipped, Reason: "requires " + strings.Join(missing, ", ")}
		case p.DryRun:
			result = StepResult{Name: step.Name, Status: StepSkipped, Reason: "dry run"}
		default:
			p.reporter().StepStarted(step)
			if step.NeedsPath {
				env = p.RefreshSearchPath(ctx, env)
			}
			result = p.RunPostInstallStep(ctx, step, env)
		}
		p.reporter().StepFinished(result)
		results = append(results, result)
	}
	return results
}

// RefreshSearchPath re-reads persisted environment state. When the provider
// fails, prev is returned unchanged.
func (p *Provisioner) RefreshSearchPath(ctx context.Context, prev envstore.EnvironmentSnapshot) envstore.EnvironmentSnapshot {
	if p.Env == nil {
		return prev
	}
	snap, err := p.Env.Snapshot(ctx)
	if err != nil {
		p.log().WithError(err).Warn("could not refresh search path; using previous environment")
		return prev
	}
	return snap
}

// RunPostInstallStep runs one step, converting any error or panic into a
// warning result.
func (p *Provisioner) RunPostInstallStep(ctx context.Context, step Step, env envstore.EnvironmentSnapshot) (result StepResult) {
	start := time.Now()
	log := p.log().WithField("step", step.Name)
	result = StepResult{Name: step.Name}

	defer func() {
		if r := recover(); r != nil {
			result.Status = StepWarned
			result.Reason = fmt.Sprintf("panic: %v", r)
			log.WithField("reason", result.Reason).Warn("post-install step failed")
		}
		result.Duration = time.Since(start)
	}()

	if step.Action == nil {
		result.Status = StepSkipped
		result.Reason = "no action"
		return result
	}

	if err := step.Action.Run(ctx, env); err != nil {
		result.Status = StepWarned
		result.Reason = err.Error()
		log.WithError(err).Warn("post-install step failed")
		return result
	}

	result.Status = StepSucceeded
	log.WithFields(logrus.Fields{"status": result.Status.String()}).Info("post-install step finished")
	return result
}
