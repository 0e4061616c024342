package runner

import (
	"errors"
	"fmt"
)

// ExitError is a process exit status. CmdRunner surfaces *exec.ExitError,
// which satisfies the same ExitCode contract; fakes return ExitError.
type ExitError struct {
	Code int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e ExitError) ExitCode() int {
	return e.Code
}

// ExitCode extracts the process exit status from err. A nil error is exit 0.
// ok is false when err does not carry an exit status (launch failure, timeout,
// signal).
func ExitCode(err error) (code int, ok bool) {
	if err == nil {
		return 0, true
	}
	if errors.Is(err, ErrTimeout) {
		return -1, false
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		if c := coder.ExitCode(); c >= 0 {
			return c, true
		}
	}
	return -1, false
}
