package tui

import (
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// RunWithWork shows model on out while work runs in its own goroutine. It
// returns only after work has returned, even when the display stops first.
// work sends its updates through send.
func RunWithWork(out io.Writer, model ProgressModel, work func(send func(tea.Msg))) error {
	prog := tea.NewProgram(model, tea.WithOutput(out))
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		defer prog.Send(workDoneMsg{})
		work(prog.Send)
	}()

	_, err := prog.Run()
	<-finished
	if err != nil && !errors.Is(err, tea.ErrInterrupted) {
		return fmt.Errorf("progress display: %w", err)
	}
	return nil
}
