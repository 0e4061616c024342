package tui

import (
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/mattn/go-isatty"
)

// OutputMode describes how progress output should be rendered.
type OutputMode int

const (
	// ModeTUI uses bubbletea for interactive progress rendering.
	ModeTUI OutputMode = iota
	// ModePlain writes one line per finished item and a table at the end.
	ModePlain
	// ModeJSON writes structured JSON output.
	ModeJSON
)

// DetectMode picks the output mode for out. needsPrompt forces plain output
// because the full-screen table would hide questions asked on the terminal.
func DetectMode(out io.Writer, noProgress, jsonOutput, needsPrompt bool) OutputMode {
	switch {
	case jsonOutput:
		return ModeJSON
	case noProgress, needsPrompt, !IsTerminal(out), dumbTerminal():
		return ModePlain
	default:
		return ModeTUI
	}
}

// dumbTerminal reports a missing or "dumb" TERM. Windows consoles do not set
// TERM at all.
func dumbTerminal() bool {
	if runtime.GOOS == "windows" {
		return false
	}
	term := os.Getenv("TERM")
	return term == "" || strings.EqualFold(term, "dumb")
}

// IsTerminal reports whether w is a terminal (including Cygwin/MSYS ptys).
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
