package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devsetup/internal/envstore"
)

func TestRunPostInstallFailureDoesNotStopLaterSteps(t *testing.T) {
	t.Parallel()

	p := &Provisioner{}
	ran := false
	steps := []Step{
		{Name: "rustup update", Action: StepFunc(func(context.Context, envstore.EnvironmentSnapshot) error {
			return errors.New("rustup: command not found")
		})},
		{Name: "nvm install lts", Action: StepFunc(func(context.Context, envstore.EnvironmentSnapshot) error {
			ran = true
			return nil
		})},
	}

	results := p.RunPostInstall(context.Background(), steps, nil)

	require.Len(t, results, 2)
	assert.Equal(t, StepWarned, results[0].Status)
	assert.Contains(t, results[0].Reason, "command not found")
	assert.True(t, ran)
	assert.Equal(t, StepSucceeded, results[1].Status)
}

func TestRunPostInstallRecoversPanic(t *testing.T) {
	t.Parallel()

	p := &Provisioner{}
	steps := []Step{
		{Name: "boom", Action: StepFunc(func(context.Context, envstore.EnvironmentSnapshot) error {
			panic("nil map")
		})},
		{Name: "after", Action: StepFunc(func(context.Context, envstore.EnvironmentSnapshot) error { return nil })},
	}

	results := p.RunPostInstall(context.Background(), steps, nil)

	assert.Equal(t, StepWarned, results[0].Status)
	assert.Equal(t, "panic: nil map", results[0].Reason)
	assert.Equal(t, StepSucceeded, results[1].Status)
}

func TestRunPostInstallSkipsUnsatisfiedRequirements(t *testing.T) {
	t.Parallel()

	p := &Provisioner{}
	called := false
	action := StepFunc(func(context.Context, envstore.EnvironmentSnapshot) error {
		called = true
		return nil
	})
	outcomes := []Outcome{
		{ID: "rust", Kind: KindFailed},
		{ID: "node", Kind: KindAlreadyPresent},
	}
	steps := []Step{
		{Name: "rustup update", Requires: []string{"rust"}, Action: action},
	}

	results := p.RunPostInstall(context.Background(), steps, outcomes)

	assert.Equal(t, StepSkipped, results[0].Status)
	assert.Equal(t, "requires rust", results[0].Reason)
	assert.False(t, called)
}

func TestRunPostInstallRefreshesPathForPathDependentSteps(t *testing.T) {
	t.Parallel()

	fresh := envstore.FromEnviron([]string{"PATH=/home/dev/.cargo/bin"})
	p := &Provisioner{Env: envstore.Static{Snap: fresh}}

	var seen []string
	record := StepFunc(func(_ context.Context, env envstore.EnvironmentSnapshot) error {
		path, _ := env.Get("PATH")
		seen = append(seen, path)
		return nil
	})
	steps := []Step{
		{Name: "needs path", NeedsPath: true, Action: record},
	}

	p.RunPostInstall(context.Background(), steps, nil)

	assert.Equal(t, []string{"/home/dev/.cargo/bin"}, seen)
}

func TestRefreshSearchPathKeepsPreviousOnError(t *testing.T) {
	t.Parallel()

	prev := envstore.FromEnviron([]string{"PATH=/usr/bin"})
	p := &Provisioner{Env: envstore.Static{Err: errors.New("registry unavailable")}}

	got := p.RefreshSearchPath(context.Background(), prev)
	assert.Equal(t, prev, got)
}

func TestRunPostInstallDryRunSkips(t *testing.T) {
	t.Parallel()

	p := &Provisioner{DryRun: true}
	results := p.RunPostInstall(context.Background(), []Step{{Name: "x", Action: StepFunc(func(context.Context, envstore.EnvironmentSnapshot) error {
		t.Fatal("step must not run in dry run")
		return nil
	})}}, nil)

	assert.Equal(t, StepSkipped, results[0].Status)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	outcomes := []Outcome{
		{ID: "a", Kind: KindInstalled},
		{ID: "b", Kind: KindFailed},
		{ID: "c", Kind: KindInstalled},
		{ID: "d", Kind: KindDeclined},
	}
	s := Summarize(outcomes)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Counts[KindInstalled])
	assert.Len(t, NeedsAttention(outcomes), 2)
}
