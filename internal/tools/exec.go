package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"devsetup/internal/runner"
)

// Exec carries what every installer needs to launch a subprocess.
type Exec struct {
	Runner runner.Runner
	// LogDir receives one <id>.log file per tool with installer output.
	LogDir  string
	Timeout time.Duration
	// BaseEnv replaces the inherited environment when non-nil.
	BaseEnv []string
}

func (e Exec) runner() runner.Runner {
	if e.Runner == nil {
		return runner.CmdRunner{}
	}
	return e.Runner
}

// run executes command and converts a normal non-zero exit into an exit code.
// Errors are returned only when the process could not run to completion.
func (e Exec) run(ctx context.Context, logName, command string, args []string, opts runner.RunOptions) (int, error) {
	out, closeLog, err := e.openLog(logName)
	if err != nil {
		return -1, err
	}
	defer closeLog()

	fmt.Fprintf(out, "$ %s\n", formatCommand(command, args))
	opts.Stdout = out
	opts.Stderr = out
	if opts.Timeout == 0 {
		opts.Timeout = e.Timeout
	}
	if opts.BaseEnv == nil {
		opts.BaseEnv = e.BaseEnv
	}

	_, runErr := e.runner().Run(ctx, command, args, opts)
	if runErr == nil {
		fmt.Fprintf(out, "exit status 0\n")
		return 0, nil
	}
	if code, ok := runner.ExitCode(runErr); ok {
		fmt.Fprintf(out, "exit status %d\n", code)
		return code, nil
	}
	fmt.Fprintf(out, "error: %v\n", runErr)
	return -1, runErr
}

func (e Exec) openLog(name string) (io.Writer, func(), error) {
	if e.LogDir == "" || name == "" {
		return io.Discard, func() {}, nil
	}
	if err := os.MkdirAll(e.LogDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure log dir: %w", err)
	}
	path := LogPath(e.LogDir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open installer log: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

var unsafeLogChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// LogPath returns the installer log file used for a tool ID.
func LogPath(dir, id string) string {
	name := strings.Trim(unsafeLogChars.ReplaceAllString(id, "_"), "_")
	if name == "" {
		name = "tool"
	}
	return filepath.Join(dir, name+".log")
}

func formatCommand(command string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, p := range append([]string{command}, args...) {
		if strings.ContainsAny(p, " \t\"'") {
			p = fmt.Sprintf("%q", p)
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// CommandInstaller runs a fixed argv.
type CommandInstaller struct {
	Exec
	ID      string
	Command string
	Args    []string
	Env     []string
	AsUser  string
}

func (c CommandInstaller) Execute(ctx context.Context) (int, error) {
	if c.Command == "" {
		return -1, errors.New("no command configured")
	}
	return c.run(ctx, c.ID, c.Command, c.Args, runner.RunOptions{Env: c.Env, AsUser: c.AsUser})
}

// Describe renders the command for manual follow-up.
func (c CommandInstaller) Describe() string {
	return formatCommand(c.Command, c.Args)
}
