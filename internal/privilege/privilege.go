// Package privilege checks that devsetup runs with the rights its installers
// need.
package privilege

import (
	"errors"
	"runtime"
)

// ErrNotElevated is returned by Require when the process lacks admin rights.
var ErrNotElevated = errors.New("devsetup must run elevated")

// Require returns ErrNotElevated, wrapped with a platform hint, when the
// process is not elevated.
func Require() error {
	return checkElevated(IsElevated)
}

func checkElevated(check func() (bool, error)) error {
	ok, err := check()
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return &NotElevatedError{GOOS: runtime.GOOS}
}

// NotElevatedError describes how to relaunch with the right privileges.
type NotElevatedError struct {
	GOOS string
}

func (e *NotElevatedError) Error() string {
	if e.GOOS == "windows" {
		return ErrNotElevated.Error() + ": start the terminal with \"Run as administrator\""
	}
	return ErrNotElevated.Error() + ": re-run with sudo"
}

func (e *NotElevatedError) Unwrap() error { return ErrNotElevated }
