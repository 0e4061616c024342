package provision

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devsetup/internal/runner"
)

const busyCode = 1618

type fakeInstaller struct {
	codes []int
	err   error
	calls int
}

func (f *fakeInstaller) Execute(context.Context) (int, error) {
	f.calls++
	if f.err != nil {
		return -1, f.err
	}
	if len(f.codes) == 0 {
		return 0, nil
	}
	idx := f.calls - 1
	if idx >= len(f.codes) {
		idx = len(f.codes) - 1
	}
	return f.codes[idx], nil
}

type fakeProbe struct {
	present bool
	err     error
	calls   int
}

func (f *fakeProbe) Present(context.Context) (bool, error) {
	f.calls++
	return f.present, f.err
}

func newTestProvisioner(policy RetryPolicy) (*Provisioner, *[]time.Duration) {
	var slept []time.Duration
	p := &Provisioner{Policy: policy}
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return p, &slept
}

func busyPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{RetryableExitCodes: []int{busyCode}, MaxRetries: maxRetries, Backoff: 30 * time.Second}
}

func TestInstallWithRetrySuccessSingleAttempt(t *testing.T) {
	t.Parallel()

	p, slept := newTestProvisioner(busyPolicy(3))
	action := &fakeInstaller{codes: []int{0}}

	out := p.InstallWithRetry(context.Background(), action, p.Policy)

	assert.Equal(t, KindInstalled, out.Kind)
	assert.Equal(t, 1, action.calls)
	assert.Equal(t, 1, out.Attempts)
	assert.Empty(t, *slept)
}

func TestInstallWithRetryExhaustsRetries(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 4} {
		n := n
		t.Run(fmt.Sprintf("max_retries_%d", n), func(t *testing.T) {
			t.Parallel()

			p, slept := newTestProvisioner(busyPolicy(n))
			action := &fakeInstaller{codes: []int{busyCode}}

			out := p.InstallWithRetry(context.Background(), action, p.Policy)

			assert.Equal(t, KindFailed, out.Kind)
			assert.Equal(t, n+1, action.calls)
			assert.Equal(t, n+1, out.Attempts)
			assert.Equal(t, busyCode, out.ExitCode)
			assert.Len(t, *slept, n)
		})
	}
}

func TestInstallWithRetryFatalSingleAttempt(t *testing.T) {
	t.Parallel()

	p, slept := newTestProvisioner(busyPolicy(5))
	action := &fakeInstaller{codes: []int{2}}

	out := p.InstallWithRetry(context.Background(), action, p.Policy)

	assert.Equal(t, KindFailed, out.Kind)
	assert.Equal(t, 1, action.calls)
	assert.Equal(t, 2, out.ExitCode)
	assert.Equal(t, "exit status 2", out.Reason)
	assert.Empty(t, *slept)
}

func TestInstallWithRetryRecoversAfterBusy(t *testing.T) {
	t.Parallel()

	p, slept := newTestProvisioner(busyPolicy(5))
	action := &fakeInstaller{codes: []int{busyCode, busyCode, 0}}

	out := p.InstallWithRetry(context.Background(), action, p.Policy)

	assert.Equal(t, KindInstalled, out.Kind)
	assert.Equal(t, 3, action.calls)
	assert.Equal(t, []time.Duration{30 * time.Second, 30 * time.Second}, *slept)
}

func TestInstallWithRetryTimeoutNotRetried(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvisioner(busyPolicy(5))
	action := &fakeInstaller{err: fmt.Errorf("winget: %w", runner.ErrTimeout)}

	out := p.InstallWithRetry(context.Background(), action, p.Policy)

	assert.Equal(t, KindFailed, out.Kind)
	assert.Equal(t, "timeout", out.Reason)
	assert.Equal(t, 1, action.calls)
}

func TestInstallWithRetryExitErrorCarriesCode(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvisioner(busyPolicy(1))
	action := &fakeInstaller{err: runner.ExitError{Code: busyCode}}

	out := p.InstallWithRetry(context.Background(), action, p.Policy)

	assert.Equal(t, KindFailed, out.Kind)
	assert.Equal(t, 2, action.calls)
}

func TestInstallWithRetryLaunchFailure(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvisioner(busyPolicy(3))
	action := &fakeInstaller{err: errors.New(`exec: "winget": executable file not found in %PATH%`)}

	out := p.InstallWithRetry(context.Background(), action, p.Policy)

	assert.Equal(t, KindFailed, out.Kind)
	assert.Contains(t, out.Reason, "executable file not found")
	assert.Equal(t, 1, action.calls)
}

func TestInstallWithRetryCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := &Provisioner{Policy: busyPolicy(3)}
	p.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	action := &fakeInstaller{codes: []int{busyCode}}

	out := p.InstallWithRetry(ctx, action, p.Policy)

	assert.Equal(t, KindFailed, out.Kind)
	assert.Equal(t, "cancelled", out.Reason)
	assert.Equal(t, 1, action.calls)
}

func TestRunAllPresentNeverInstalls(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvisioner(busyPolicy(3))
	install := &fakeInstaller{}
	specs := []Spec{{ID: "Git.Git", Check: &fakeProbe{present: true}, Install: install}}

	outcomes, err := p.RunAll(context.Background(), specs)
	require.NoError(t, err)

	require.Len(t, outcomes, 1)
	assert.Equal(t, KindAlreadyPresent, outcomes[0].Kind)
	assert.Zero(t, install.calls)
}

func TestRunAllPresentThenDependentInstalled(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvisioner(busyPolicy(3))
	specs := []Spec{
		{ID: "A", Check: &fakeProbe{present: true}, Install: &fakeInstaller{}},
		{ID: "B", DependsOn: []string{"A"}, Check: &fakeProbe{}, Install: &fakeInstaller{codes: []int{0}}},
	}

	outcomes, err := p.RunAll(context.Background(), specs)
	require.NoError(t, err)

	assert.Equal(t, []Kind{KindAlreadyPresent, KindInstalled}, kinds(outcomes))
}

func TestRunAllFailedDependencySkipsDependent(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvisioner(busyPolicy(3))
	dependentProbe := &fakeProbe{present: true}
	dependentInstall := &fakeInstaller{}
	specs := []Spec{
		{ID: "A", Check: &fakeProbe{}, Install: &fakeInstaller{codes: []int{1}}},
		{ID: "B", DependsOn: []string{"A"}, Check: dependentProbe, Install: dependentInstall},
		{ID: "C", Check: &fakeProbe{}, Install: &fakeInstaller{codes: []int{0}}},
	}

	outcomes, err := p.RunAll(context.Background(), specs)
	require.NoError(t, err)

	assert.Equal(t, []Kind{KindFailed, KindSkippedDependencyMissing, KindInstalled}, kinds(outcomes))
	assert.Equal(t, []string{"A"}, outcomes[1].Missing)
	// Skipped regardless of the dependent's own presence check.
	assert.Zero(t, dependentProbe.calls)
	assert.Zero(t, dependentInstall.calls)
}

func TestRunAllRejectsCycleBeforeInstalling(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvisioner(busyPolicy(3))
	installA := &fakeInstaller{}
	installB := &fakeInstaller{}
	specs := []Spec{
		{ID: "A", DependsOn: []string{"B"}, Check: &fakeProbe{}, Install: installA},
		{ID: "B", DependsOn: []string{"A"}, Check: &fakeProbe{}, Install: installB},
	}

	outcomes, err := p.RunAll(context.Background(), specs)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Nil(t, outcomes)
	assert.Zero(t, installA.calls)
	assert.Zero(t, installB.calls)
}

func TestRunAllProbeErrorTreatedAsAbsent(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvisioner(busyPolicy(0))
	install := &fakeInstaller{codes: []int{0}}
	specs := []Spec{{ID: "A", Check: &fakeProbe{err: errors.New("dpkg-query: not found")}, Install: install}}

	outcomes, err := p.RunAll(context.Background(), specs)
	require.NoError(t, err)
	assert.Equal(t, KindInstalled, outcomes[0].Kind)
	assert.Equal(t, 1, install.calls)
}

func TestRunAllGuidedPrerequisite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		decision Decision
		want     []Kind
	}{
		{
			name:     "confirmed",
			decision: DecisionFunc(func(context.Context, string) (bool, error) { return true, nil }),
			want:     []Kind{KindInstalled, KindInstalled, KindInstalled},
		},
		{
			name:     "declined",
			decision: DecisionFunc(func(context.Context, string) (bool, error) { return false, nil }),
			want:     []Kind{KindDeclined, KindSkippedDependencyMissing, KindInstalled},
		},
		{
			name:     "no operator",
			decision: nil,
			want:     []Kind{KindDeclined, KindSkippedDependencyMissing, KindInstalled},
		},
		{
			name:     "prompt error",
			decision: DecisionFunc(func(context.Context, string) (bool, error) { return false, errors.New("EOF") }),
			want:     []Kind{KindDeclined, KindSkippedDependencyMissing, KindInstalled},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, _ := newTestProvisioner(busyPolicy(0))
			p.Decision = tt.decision
			specs := []Spec{
				{ID: "wsl", Confirm: "Enable WSL?", Check: &fakeProbe{}, Install: &fakeInstaller{}},
				{ID: "Docker.DockerDesktop", DependsOn: []string{"wsl"}, Check: &fakeProbe{}, Install: &fakeInstaller{}},
				{ID: "Git.Git", Check: &fakeProbe{}, Install: &fakeInstaller{}},
			}

			outcomes, err := p.RunAll(context.Background(), specs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kinds(outcomes))
		})
	}
}

func TestRunAllGuidedPrerequisiteAlreadyEnabledDoesNotPrompt(t *testing.T) {
	t.Parallel()

	asked := 0
	p, _ := newTestProvisioner(busyPolicy(0))
	p.Decision = DecisionFunc(func(context.Context, string) (bool, error) {
		asked++
		return false, nil
	})
	specs := []Spec{{ID: "wsl", Confirm: "Enable WSL?", Check: &fakeProbe{present: true}, Install: &fakeInstaller{}}}

	outcomes, err := p.RunAll(context.Background(), specs)
	require.NoError(t, err)
	assert.Equal(t, KindAlreadyPresent, outcomes[0].Kind)
	assert.Zero(t, asked)
}

func TestRunAllDryRun(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvisioner(busyPolicy(0))
	p.DryRun = true
	install := &fakeInstaller{}
	specs := []Spec{
		{ID: "A", Check: &fakeProbe{}, Install: install},
		{ID: "B", DependsOn: []string{"A"}, Check: &fakeProbe{present: true}, Install: install},
	}

	outcomes, err := p.RunAll(context.Background(), specs)
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindPlanned, KindAlreadyPresent}, kinds(outcomes))
	assert.Zero(t, install.calls)
}

func TestRunAllCancelledStillYieldsOneOutcomePerSpec(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p, _ := newTestProvisioner(busyPolicy(0))
	specs := []Spec{
		{ID: "A", Check: &fakeProbe{}, Install: InstallerFunc(func(context.Context) (int, error) {
			cancel()
			return 0, nil
		})},
		{ID: "B", Check: &fakeProbe{}, Install: &fakeInstaller{}},
	}

	outcomes, err := p.RunAll(ctx, specs)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, KindInstalled, outcomes[0].Kind)
	assert.Equal(t, KindFailed, outcomes[1].Kind)
	assert.Equal(t, "cancelled", outcomes[1].Reason)
}

type recordingReporter struct {
	NopReporter
	events []string
}

func (r *recordingReporter) SpecStarted(s Spec) {
	r.events = append(r.events, "start:"+s.ID)
}

func (r *recordingReporter) AttemptStarted(s Spec, n int) {
	r.events = append(r.events, fmt.Sprintf("attempt:%s:%d", s.ID, n))
}

func (r *recordingReporter) SpecFinished(o Outcome) {
	r.events = append(r.events, "done:"+o.ID+":"+o.Kind.String())
}

func TestRunAllReportsProgress(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvisioner(busyPolicy(1))
	rep := &recordingReporter{}
	p.Reporter = rep
	specs := []Spec{{ID: "A", Check: &fakeProbe{}, Install: &fakeInstaller{codes: []int{busyCode, 0}}}}

	_, err := p.RunAll(context.Background(), specs)
	require.NoError(t, err)
	assert.Equal(t, []string{"start:A", "attempt:A:1", "attempt:A:2", "done:A:installed"}, rep.events)
}

func kinds(outcomes []Outcome) []Kind {
	out := make([]Kind, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Kind
	}
	return out
}
