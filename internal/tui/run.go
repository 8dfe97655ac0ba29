package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/formrelay/internal/submit"
)

// Forward returns an observer that feeds state changes into p.
func Forward(p *tea.Program) submit.Observer {
	return submit.ObserverFuncs{
		OnState: func(s submit.Snapshot) {
			p.Send(SnapshotMsg(s))
		},
	}
}

// RunSend submits reg inside a full-screen program and blocks until the
// user quits or the regions auto-hide. It returns the last outcome.
func RunSend(ctx context.Context, ctrl *submit.Controller, reg *submit.Registration, opts SendOptions, progOpts ...tea.ProgramOption) (*submit.Outcome, error) {
	model := NewSendModel(ctx, reg, opts)

	progOpts = append([]tea.ProgramOption{tea.WithContext(ctx)}, progOpts...)
	p := tea.NewProgram(model, progOpts...)
	ctrl.Observe(Forward(p))

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("error running send view: %w", err)
	}

	m, ok := final.(SendModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model type %T", final)
	}
	if m.Outcome == nil {
		return nil, fmt.Errorf("quit before the submission finished")
	}
	return m.Outcome, m.Err
}
