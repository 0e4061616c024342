package tui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"devsetup/internal/provision"
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
	dimText  = color.New(color.Faint).SprintFunc()
)

// PlainReporter writes one line per finished tool or step. On a terminal a
// StatusLine shows what is currently running.
type PlainReporter struct {
	mu     sync.Mutex
	out    io.Writer
	status *StatusLine
}

// NewPlainReporter writes to out. status may be nil.
func NewPlainReporter(out io.Writer, status *StatusLine) *PlainReporter {
	return &PlainReporter{out: out, status: status}
}

func (r *PlainReporter) SpecStarted(spec provision.Spec) {
	r.setStatus("Checking " + spec.Label())
}

func (r *PlainReporter) AttemptStarted(spec provision.Spec, attempt int) {
	if attempt == 1 {
		r.setStatus("Installing " + spec.Label())
		return
	}
	r.println(fmt.Sprintf("%s %s busy, retrying (attempt %d)", warnMark("!"), spec.Label(), attempt))
	r.setStatus(fmt.Sprintf("Installing %s (attempt %d)", spec.Label(), attempt))
}

func (r *PlainReporter) SpecFinished(out provision.Outcome) {
	r.println(FormatOutcome(out))
}

func (r *PlainReporter) StepStarted(step provision.Step) {
	r.setStatus("Running " + step.Name)
}

func (r *PlainReporter) StepFinished(result provision.StepResult) {
	r.println(FormatStep(result))
}

// Pause hides the status line, e.g. before a question is printed.
func (r *PlainReporter) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != nil {
		r.status.Clear()
	}
}

// Close stops the status line.
func (r *PlainReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != nil {
		r.status.Stop()
	}
}

func (r *PlainReporter) setStatus(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != nil {
		r.status.Set(msg)
	}
}

func (r *PlainReporter) println(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != nil {
		r.status.Clear()
	}
	fmt.Fprintln(r.out, line)
}

// FormatOutcome renders an outcome as a single coloured line.
func FormatOutcome(out provision.Outcome) string {
	var mark string
	switch out.Kind {
	case provision.KindAlreadyPresent, provision.KindInstalled, provision.KindPlanned:
		mark = okMark("✓")
	case provision.KindFailed:
		mark = failMark("✗")
	default:
		mark = warnMark("-")
	}
	line := fmt.Sprintf("%s %s %s", mark, out.DisplayName, dimText(out.Kind.String()))
	if detail := outcomeDetail(out); detail != "" {
		line += ": " + detail
	}
	return line
}

// FormatStep renders a post-install step result as a single coloured line.
func FormatStep(result provision.StepResult) string {
	var mark string
	switch result.Status {
	case provision.StepSucceeded:
		mark = okMark("✓")
	case provision.StepWarned:
		mark = warnMark("!")
	default:
		mark = warnMark("-")
	}
	line := fmt.Sprintf("%s %s %s", mark, result.Name, dimText(result.Status.String()))
	if result.Reason != "" {
		line += ": " + firstLine(result.Reason)
	}
	return line
}

func outcomeDetail(out provision.Outcome) string {
	reason := firstLine(out.Reason)
	if out.Kind == provision.KindInstalled && out.Attempts > 1 {
		return fmt.Sprintf("after %d attempts", out.Attempts)
	}
	return reason
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var _ provision.Reporter = (*PlainReporter)(nil)
