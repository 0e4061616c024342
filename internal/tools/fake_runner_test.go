package tools

import (
	"context"
	"strings"
	"sync"

	"devsetup/internal/runner"
)

type call struct {
	Command string
	Args    []string
	Opts    runner.RunOptions
}

func (c call) String() string {
	return strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	respond func(c call) (runner.RunResult, error)
}

func (f *fakeRunner) Run(_ context.Context, command string, args []string, opts runner.RunOptions) (runner.RunResult, error) {
	c := call{Command: command, Args: append([]string(nil), args...), Opts: opts}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	if opts.Stdout != nil {
		_, _ = opts.Stdout.Write([]byte("fake output\n"))
	}
	if f.respond == nil {
		return runner.RunResult{}, nil
	}
	return f.respond(c)
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.String()
	}
	return out
}
