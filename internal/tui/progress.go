package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"devsetup/internal/provision"
)

const (
	marqueeInterval = 150 * time.Millisecond
	marqueeGap      = "   "

	statusWidth   = 10
	attemptsWidth = 8
	minItemWidth  = 12
	maxItemWidth  = 32
	minDetail     = 20
	defaultDetail = 48
	columnGap     = "  "
	stepIndent    = "  "
)

// tickMsg advances the marquee of detail text that does not fit its column.
type tickMsg time.Time

// workDoneMsg ends the program once provisioning has returned.
type workDoneMsg struct{}

// RowUpdateMsg changes one table row.
type RowUpdateMsg struct {
	Key    string
	Status string
	// Attempts replaces the attempt count when positive.
	Attempts int
	// Final marks the row's last update; Detail is applied only then.
	Final  bool
	Detail string
}

type row struct {
	key      string
	label    string
	step     bool
	status   string
	attempts int
	detail   string
}

// ProgressModel renders one row per tool followed by one row per
// post-install step, with a spinner footer while work is running.
type ProgressModel struct {
	title string
	rows  []row
	index map[string]int

	// width is the terminal width; zero until the first WindowSizeMsg.
	width int

	done        bool
	interrupted bool
	onInterrupt func()

	tick    int
	spinner spinner.Model
}

// ToolKey and StepKey name table rows.
func ToolKey(id string) string { return "tool:" + id }

func StepKey(name string) string { return "step:" + name }

// NewProvisionModel builds a table with a pending row for every tool and step.
func NewProvisionModel(title string, specs []provision.Spec, steps []provision.Step) ProgressModel {
	m := ProgressModel{
		title:   title,
		index:   make(map[string]int, len(specs)+len(steps)),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(SpinnerStyle)),
	}
	for _, spec := range specs {
		m.addRow(row{key: ToolKey(spec.ID), label: spec.Label(), status: "pending"})
	}
	for _, step := range steps {
		m.addRow(row{key: StepKey(step.Name), label: step.Name, step: true, status: "pending"})
	}
	return m
}

func (m *ProgressModel) addRow(r row) {
	m.index[r.key] = len(m.rows)
	m.rows = append(m.rows, r)
}

// OnInterrupt registers fn to run once when the operator presses ctrl+c.
// The table stays up until the work finishes.
func (m *ProgressModel) OnInterrupt(fn func()) {
	m.onInterrupt = fn
}

func scheduleTick() tea.Cmd {
	return tea.Tick(marqueeInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(scheduleTick(), m.spinner.Tick)
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.tick++
		if m.done {
			return m, nil
		}
		return m, scheduleTick()

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case RowUpdateMsg:
		m.apply(msg)
		return m, nil

	case workDoneMsg:
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.onInterrupt == nil {
				m.done = true
				return m, tea.Quit
			}
			if !m.interrupted {
				m.interrupted = true
				m.onInterrupt()
			}
		}
	}
	return m, nil
}

func (m *ProgressModel) apply(msg RowUpdateMsg) {
	i, ok := m.index[msg.Key]
	if !ok {
		return
	}
	r := &m.rows[i]
	if msg.Status != "" {
		r.status = msg.Status
	}
	if msg.Attempts > 0 {
		r.attempts = msg.Attempts
	}
	if msg.Final {
		r.detail = msg.Detail
	}
}

func (m ProgressModel) View() string {
	itemW, detailW := m.columnWidths()

	var b strings.Builder
	if m.title != "" {
		b.WriteString(TitleStyle.Render(m.title))
		b.WriteString("\n\n")
	}

	header := []string{
		HeaderStyle.Render(pad("ITEM", itemW)),
		HeaderStyle.Render(pad("STATUS", statusWidth)),
		HeaderStyle.Render(pad("ATTEMPTS", attemptsWidth)),
		HeaderStyle.Render("DETAIL"),
	}
	b.WriteString(strings.Join(header, columnGap))
	b.WriteByte('\n')

	for _, r := range m.rows {
		indent := ""
		if r.step {
			indent = stepIndent
		}
		attempts := "-"
		if r.attempts > 0 {
			attempts = strconv.Itoa(r.attempts)
		}
		detail := firstLine(r.detail)
		if !m.done && lipgloss.Width(detail) > detailW {
			detail = marqueeText(detail, detailW, m.tick)
		} else {
			detail = TruncateWithEllipsis(detail, detailW)
		}
		cells := []string{
			pad(indent+TruncateWithEllipsis(r.label, itemW-len(indent)), itemW),
			StatusStyle(r.status).Render(pad(r.status, statusWidth)),
			pad(attempts, attemptsWidth),
			detail,
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, columnGap), " "))
		b.WriteByte('\n')
	}

	if !m.done {
		finished, total := m.progressCounts()
		if m.interrupted {
			fmt.Fprintf(&b, "\n%s Cancelling after the current step...\n", m.spinner.View())
		} else {
			fmt.Fprintf(&b, "\n%s Provisioning %d/%d...\n", m.spinner.View(), finished, total)
		}
	}
	return b.String()
}

// columnWidths sizes ITEM to the longest label and gives DETAIL whatever the
// terminal has left.
func (m ProgressModel) columnWidths() (item, detail int) {
	item = minItemWidth
	for _, r := range m.rows {
		w := lipgloss.Width(r.label)
		if r.step {
			w += len(stepIndent)
		}
		if w > item {
			item = w
		}
	}
	if item > maxItemWidth {
		item = maxItemWidth
	}
	if m.width == 0 {
		return item, defaultDetail
	}
	detail = m.width - item - statusWidth - attemptsWidth - 3*len(columnGap)
	if detail < minDetail {
		detail = minDetail
	}
	return item, detail
}

// progressCounts returns how many rows reached a final status.
func (m ProgressModel) progressCounts() (finished, total int) {
	for _, r := range m.rows {
		if !activeStatuses[r.status] {
			finished++
		}
	}
	return finished, len(m.rows)
}

// Done reports whether the program has quit.
func (m ProgressModel) Done() bool {
	return m.done
}

func pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// marqueeText shows a width-sized window of text that slides one rune per
// tick and wraps around after a short gap.
func marqueeText(text string, width, tick int) string {
	runes := []rune(strings.TrimSpace(text))
	if width <= 0 {
		return ""
	}
	if len(runes) <= width {
		return string(runes)
	}
	cycle := append(runes, []rune(marqueeGap)...)
	offset := tick % len(cycle)
	doubled := append(cycle, cycle...)
	return string(doubled[offset : offset+width])
}

// NonEmptyOrDash returns "-" for blank strings.
func NonEmptyOrDash(value string) string {
	if value = strings.TrimSpace(value); value == "" {
		return "-"
	}
	return value
}

// TruncateWithEllipsis shortens value to max terminal cells, ending in "..."
// when there is room for it.
func TruncateWithEllipsis(value string, max int) string {
	value = strings.TrimSpace(value)
	switch {
	case max <= 0:
		return ""
	case max <= 3:
		return ansi.Truncate(value, max, "")
	default:
		return ansi.Truncate(value, max, "...")
	}
}
