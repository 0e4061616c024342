package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"devsetup/internal/provision"
)

// ProvisionReporter turns provisioning events into row updates for a
// running ProgressModel.
type ProvisionReporter struct {
	send func(tea.Msg)
}

// NewProvisionReporter forwards updates through send, normally tea.Program.Send.
func NewProvisionReporter(send func(tea.Msg)) *ProvisionReporter {
	return &ProvisionReporter{send: send}
}

func (r *ProvisionReporter) SpecStarted(spec provision.Spec) {
	r.send(RowUpdateMsg{Key: ToolKey(spec.ID), Status: "checking"})
}

func (r *ProvisionReporter) AttemptStarted(spec provision.Spec, attempt int) {
	status := "installing"
	if attempt > 1 {
		status = "retrying"
	}
	r.send(RowUpdateMsg{Key: ToolKey(spec.ID), Status: status, Attempts: attempt})
}

func (r *ProvisionReporter) SpecFinished(out provision.Outcome) {
	r.send(RowUpdateMsg{
		Key:      ToolKey(out.ID),
		Status:   out.Kind.String(),
		Attempts: out.Attempts,
		Final:    true,
		Detail:   out.Reason,
	})
}

func (r *ProvisionReporter) StepStarted(step provision.Step) {
	r.send(RowUpdateMsg{Key: StepKey(step.Name), Status: "running"})
}

func (r *ProvisionReporter) StepFinished(result provision.StepResult) {
	r.send(RowUpdateMsg{
		Key:    StepKey(result.Name),
		Status: result.Status.String(),
		Final:  true,
		Detail: result.Reason,
	})
}

var _ provision.Reporter = (*ProvisionReporter)(nil)
