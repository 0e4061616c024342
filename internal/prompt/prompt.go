// Package prompt implements operator decisions for guided prerequisites.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"devsetup/internal/provision"
)

// ErrNotInteractive is returned when a question needs an answer but stdin is
// not a terminal and no default was configured.
var ErrNotInteractive = errors.New("stdin is not a terminal; pass --yes or --no")

// Assume answers every question the same way (--yes / --no).
type Assume bool

func (a Assume) Confirm(context.Context, string) (bool, error) {
	return bool(a), nil
}

// Terminal asks the operator on a TTY. Only "y" or "yes" confirms.
type Terminal struct {
	In    io.Reader
	Out   io.Writer
	IsTTY func() bool

	reader *bufio.Reader
}

// NewTerminal returns a Terminal bound to stdin and stderr.
func NewTerminal() *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stderr, IsTTY: StdinIsTerminal}
}

func (t *Terminal) Confirm(ctx context.Context, question string) (bool, error) {
	if t.IsTTY != nil && !t.IsTTY() {
		return false, ErrNotInteractive
	}
	if t.reader == nil {
		t.reader = bufio.NewReader(t.In)
	}

	fmt.Fprintf(t.Out, "%s %s [y/N]: ", color.YellowString("?"), question)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := t.reader.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(t.Out)
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && !(errors.Is(a.err, io.EOF) && a.line != "") {
			return false, fmt.Errorf("read answer: %w", a.err)
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

// StdinIsTerminal reports whether stdin is attached to a terminal.
func StdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ForFlags picks a Decision from --yes/--no; the interactive terminal is used
// when neither is set.
func ForFlags(yes, no bool) (provision.Decision, error) {
	switch {
	case yes && no:
		return nil, errors.New("--yes and --no are mutually exclusive")
	case yes:
		return Assume(true), nil
	case no:
		return Assume(false), nil
	default:
		return NewTerminal(), nil
	}
}

var (
	_ provision.Decision = Assume(false)
	_ provision.Decision = (*Terminal)(nil)
)
