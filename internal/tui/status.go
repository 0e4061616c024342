package tui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

const clearLine = "\r\033[K"

// StatusLine redraws a single terminal line with a spinner, the current
// activity and how long it has been running. Other output must go through
// Clear first so the two do not interleave.
type StatusLine struct {
	w      io.Writer
	frames []string
	every  time.Duration

	mu      sync.Mutex
	text    string
	since   time.Time
	stopped bool

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewStatusLine starts redrawing on w in the background.
func NewStatusLine(w io.Writer) *StatusLine {
	s := &StatusLine{
		w:      w,
		frames: spinner.MiniDot.Frames,
		every:  spinner.MiniDot.FPS,
		quit:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

// Set shows text and restarts the elapsed timer.
func (s *StatusLine) Set(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	s.since = time.Now()
}

// Clear erases the line; it stays blank until the next Set.
func (s *StatusLine) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.text = ""
	fmt.Fprint(s.w, clearLine)
}

// Stop erases the line and ends the redraw loop. It is safe to call twice.
func (s *StatusLine) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	fmt.Fprint(s.w, clearLine)
	s.mu.Unlock()

	close(s.quit)
	s.wg.Wait()
}

func (s *StatusLine) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			s.draw(s.frames[frame%len(s.frames)])
		}
	}
}

func (s *StatusLine) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.text == "" {
		return
	}
	elapsed := time.Since(s.since).Truncate(time.Second)
	fmt.Fprintf(s.w, "%s%s %s (%s)", clearLine, SpinnerStyle.Render(frame), s.text, elapsed)
}
