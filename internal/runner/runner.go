package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// ErrTimeout is returned when a command exceeds RunOptions.Timeout.
var ErrTimeout = errors.New("command timed out")

// ErrRunAsUnsupported is returned when an alternate identity is requested on a
// platform where devsetup cannot switch users non-interactively.
var ErrRunAsUnsupported = errors.New("running as another user is not supported on this platform")

type RunOptions struct {
	Dir string
	// BaseEnv replaces os.Environ() as the starting environment when non-nil.
	BaseEnv []string
	Env     []string
	Stdout  io.Writer
	Stderr  io.Writer
	// AsUser runs the command as the named account (sudo -u on Unix).
	AsUser  string
	Timeout time.Duration
}

type RunResult struct {
	Stdout []byte
	Stderr []byte
}

type Runner interface {
	Run(ctx context.Context, command string, args []string, opts RunOptions) (RunResult, error)
}

type CmdRunner struct{}

func (CmdRunner) Run(ctx context.Context, command string, args []string, opts RunOptions) (RunResult, error) {
	if opts.AsUser != "" {
		wrapped, wrappedArgs, err := wrapAsUser(opts.AsUser, command, args, opts.Env)
		if err != nil {
			return RunResult{}, err
		}
		command, args = wrapped, wrappedArgs
	}

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, command, args...)
	cmd.WaitDelay = 5 * time.Second
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if opts.BaseEnv != nil || len(opts.Env) > 0 {
		base := opts.BaseEnv
		if base == nil {
			base = os.Environ()
		}
		cmd.Env = append(append([]string{}, base...), opts.Env...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer

	stdoutWriter := io.Writer(&stdoutBuf)
	if opts.Stdout != nil {
		stdoutWriter = io.MultiWriter(&stdoutBuf, opts.Stdout)
	}
	stderrWriter := io.Writer(&stderrBuf)
	if opts.Stderr != nil {
		stderrWriter = io.MultiWriter(&stderrBuf, opts.Stderr)
	}

	cmd.Stdout = stdoutWriter
	cmd.Stderr = stderrWriter

	err := cmd.Run()
	if err != nil && opts.Timeout > 0 && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%s after %s: %w", command, opts.Timeout, ErrTimeout)
	}
	return RunResult{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes()}, err
}

var _ Runner = CmdRunner{}

// wrapAsUser rewrites a command so it executes under user. Extra environment
// entries are forwarded through env(1) because sudo resets the environment.
func wrapAsUser(user, command string, args, env []string) (string, []string, error) {
	if runtime.GOOS == "windows" {
		return "", nil, ErrRunAsUnsupported
	}
	wrapped := []string{"-u", user, "-H", "--"}
	if len(env) > 0 {
		wrapped = append(wrapped, "env")
		wrapped = append(wrapped, env...)
	}
	wrapped = append(wrapped, command)
	wrapped = append(wrapped, args...)
	return "sudo", wrapped, nil
}
