package tools

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"devsetup/internal/provision"
	"devsetup/internal/runner"
)

// ScriptInstaller downloads an installer script and runs it through an
// interpreter, e.g. rustup-init or the nvm install script.
type ScriptInstaller struct {
	Exec
	Fetcher Fetcher
	ID      string
	URL     string
	SHA256  string
	// Interpreter is the argv prefix; the script path follows it.
	Interpreter []string
	Args        []string
	Env         []string
	AsUser      string
}

func (s ScriptInstaller) Execute(ctx context.Context) (int, error) {
	path, err := s.Fetcher.Fetch(ctx, s.URL, s.SHA256)
	if err != nil {
		return -1, fmt.Errorf("fetch installer script: %w", err)
	}
	interp := s.interpreter()
	args := append(append([]string{}, interp[1:]...), path)
	args = append(args, s.Args...)
	return s.run(ctx, s.ID, interp[0], args, runner.RunOptions{Env: s.Env, AsUser: s.AsUser})
}

func (s ScriptInstaller) interpreter() []string {
	if len(s.Interpreter) > 0 {
		return s.Interpreter
	}
	return DefaultInterpreter()
}

// DefaultInterpreter returns the platform's script interpreter argv.
func DefaultInterpreter() []string {
	if runtime.GOOS == "windows" {
		return []string{"powershell", "-NoProfile", "-ExecutionPolicy", "Bypass", "-File"}
	}
	return []string{"sh"}
}

// Describe renders the equivalent manual command.
func (s ScriptInstaller) Describe() string {
	cmd := strings.Join(s.interpreter(), " ")
	if len(s.Args) > 0 {
		return fmt.Sprintf("download %s and run: %s <script> %s", s.URL, cmd, strings.Join(s.Args, " "))
	}
	return fmt.Sprintf("download %s and run: %s <script>", s.URL, cmd)
}

var (
	_ provision.Installer = ScriptInstaller{}
	_ provision.Installer = CommandInstaller{}
)
