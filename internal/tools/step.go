package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"devsetup/internal/envstore"
	"devsetup/internal/runner"
)

// UserToken in step arguments expands to the run-as account.
const UserToken = "{user}"

// StepCommand runs a post-install step's commands in order, stopping at the
// first failure. Executables resolve against the step's environment so tools
// installed earlier in the run are found.
type StepCommand struct {
	Exec
	Name     string
	Commands [][]string
	Env      []string
	// AsUser runs the commands as this account.
	AsUser string
	// User substitutes UserToken; empty when no run-as account is known.
	User string
}

func (s StepCommand) Run(ctx context.Context, env envstore.EnvironmentSnapshot) error {
	if len(s.Commands) == 0 {
		return errors.New("no commands configured")
	}
	opts := runner.RunOptions{Env: s.Env, AsUser: s.AsUser}
	if !env.Empty() {
		opts.BaseEnv = env.Environ()
	}
	logName := "step-" + s.Name

	for _, argv := range s.Commands {
		args, err := s.expand(argv)
		if err != nil {
			return err
		}
		command := args[0]
		if !env.Empty() {
			if path, err := env.LookPath(command); err == nil {
				command = path
			}
		}
		code, err := s.run(ctx, logName, command, args[1:], opts)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if code != 0 {
			return fmt.Errorf("%s exited with status %d", formatCommand(args[0], args[1:]), code)
		}
	}
	return nil
}

func (s StepCommand) expand(argv []string) ([]string, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, errors.New("empty command")
	}
	out := make([]string, len(argv))
	for i, arg := range argv {
		if strings.Contains(arg, UserToken) {
			if s.User == "" {
				return nil, fmt.Errorf("%s needs a target account; pass --run-as", formatCommand(argv[0], argv[1:]))
			}
			arg = strings.ReplaceAll(arg, UserToken, s.User)
		}
		out[i] = arg
	}
	return out, nil
}
