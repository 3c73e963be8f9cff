package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vvka-141/pgload/pkg/pgload"
)

// ProgressView renders a live progress view while a load runs.
// It implements pgload.Notifier so it can be attached to the run directly.
//
// Thread-Safety: the Notifier methods and Finish are safe to call from any
// goroutine; tea.Program serializes them into the model.
type ProgressView struct {
	program *tea.Program
}

// NewProgressView creates a view. onStop is invoked when the user asks to stop.
func NewProgressView(title string, onStop func(), opts ...tea.ProgramOption) *ProgressView {
	return &ProgressView{
		program: tea.NewProgram(NewProgressModel(title, onStop), opts...),
	}
}

// Run blocks until Finish has been called, then returns.
func (p *ProgressView) Run() error {
	if _, err := p.program.Run(); err != nil {
		return fmt.Errorf("progress view: %w", err)
	}
	return nil
}

// Finish renders the final state and stops the view.
func (p *ProgressView) Finish(summary pgload.RunSummary, err error) {
	p.program.Send(finishedMsg{summary: summary, err: err})
}

func (p *ProgressView) BatchLoaded(sourceID string, rows int) {
	p.program.Send(batchLoadedMsg{sourceID: sourceID, rows: rows})
}

func (p *ProgressView) BatchLoadFailed(sourceID string, err error) {
	p.program.Send(batchFailedMsg{sourceID: sourceID, err: err})
}

func (p *ProgressView) FileClaimFailed(path string, err error) {
	p.program.Send(fileFailedMsg{path: path, err: err})
}

var _ pgload.Notifier = (*ProgressView)(nil)
