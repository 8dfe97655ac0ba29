package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/formrelay/internal/submit"
	"github.com/muurk/formrelay/internal/ui"
)

// SnapshotMsg carries a state change from the controller into the program.
type SnapshotMsg submit.Snapshot

// OutcomeMsg is returned by the submit command once an attempt finishes.
type OutcomeMsg struct {
	Outcome *submit.Outcome
	Err     error
}

type countdownTickMsg time.Time

const countdownInterval = 100 * time.Millisecond

// sendKeyMap defines key bindings for the send screen
type sendKeyMap struct {
	Resubmit key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k sendKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Resubmit, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k sendKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Resubmit, k.Quit}}
}

// SendOptions configures the live submission view
type SendOptions struct {
	// SuccessHide and ErrorHide drive the countdown bar. They should match
	// the controller's auto-hide delays.
	SuccessHide time.Duration
	ErrorHide   time.Duration

	// NoWait quits as soon as the first attempt resolves instead of
	// waiting for the regions to auto-hide.
	NoWait bool

	// Now defaults to time.Now
	Now func() time.Time
}

// SendModel shows one registration while it submits: a spinner during
// loading, the region panel, and a countdown to auto-hide.
type SendModel struct {
	ctx  context.Context
	reg  *submit.Registration
	opts SendOptions

	State     submit.State
	Message   string
	Regions   []submit.RegionStatus
	Outcome   *submit.Outcome
	Err       error
	Attempts  int
	changedAt time.Time

	// UI state
	Width     int
	Height    int
	Spinner   spinner.Model
	Countdown progress.Model
	Help      help.Model
	Keys      sendKeyMap
	quitting  bool
}

// NewSendModel creates the model. Nothing is submitted until Init runs.
func NewSendModel(ctx context.Context, reg *submit.Registration, opts SendOptions) SendModel {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = CountdownWidth

	keys := sendKeyMap{
		Resubmit: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "resubmit"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}

	return SendModel{
		ctx:       ctx,
		reg:       reg,
		opts:      opts,
		State:     reg.State(),
		Regions:   reg.Regions(),
		changedAt: opts.Now(),
		Spinner:   s,
		Countdown: bar,
		Help:      help.New(),
		Keys:      keys,
	}
}

// Init starts the first submission
func (m SendModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, m.submit())
}

func (m SendModel) submit() tea.Cmd {
	ctx, reg := m.ctx, m.reg
	return func() tea.Msg {
		out, err := reg.Submit(ctx)
		return OutcomeMsg{Outcome: out, Err: err}
	}
}

func countdownTick() tea.Cmd {
	return tea.Tick(countdownInterval, func(t time.Time) tea.Msg {
		return countdownTickMsg(t)
	})
}

// Update handles messages and updates the model
func (m SendModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Resubmit):
			if m.State == submit.StateLoading {
				return m, nil
			}
			m.Attempts++
			return m, m.submit()
		}
		return m, nil

	case SnapshotMsg:
		if msg.FormID != m.reg.ID() {
			return m, nil
		}
		prev := m.State
		m.State = msg.State
		m.Message = msg.Message
		m.Regions = m.reg.Regions()
		m.changedAt = m.opts.Now()

		switch m.State {
		case submit.StateIdle:
			if prev != submit.StateIdle && m.Outcome != nil {
				m.quitting = true
				return m, tea.Quit
			}
		case submit.StateSuccess, submit.StateError:
			return m, countdownTick()
		}
		return m, nil

	case OutcomeMsg:
		m.Outcome = msg.Outcome
		m.Err = msg.Err
		m.Regions = m.reg.Regions()
		if m.opts.NoWait {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case countdownTickMsg:
		if m.State == submit.StateSuccess || m.State == submit.StateError {
			return m, countdownTick()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// Remaining returns the fraction of the auto-hide delay still left, from 1
// down to 0. It is 0 outside the success and error states.
func (m SendModel) Remaining() float64 {
	var hold time.Duration
	switch m.State {
	case submit.StateSuccess:
		hold = m.opts.SuccessHide
	case submit.StateError:
		hold = m.opts.ErrorHide
	default:
		return 0
	}
	if hold <= 0 {
		return 0
	}
	elapsed := m.opts.Now().Sub(m.changedAt)
	left := 1 - float64(elapsed)/float64(hold)
	if left < 0 {
		return 0
	}
	if left > 1 {
		return 1
	}
	return left
}

// View renders the send screen
func (m SendModel) View() string {
	var b strings.Builder

	title := fmt.Sprintf("%s  ─  %s", AppName, formName(m.reg.ID()))
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render(m.reg.Form().Action()))
	b.WriteString("\n\n")

	status := ui.StateLabel(m.State)
	if m.State == submit.StateLoading {
		status = m.Spinner.View() + " " + status
	}
	if m.Message != "" {
		status += "  " + MessageStyle.Render(m.Message)
	}
	b.WriteString(status)
	b.WriteString("\n\n")

	b.WriteString(PanelStyle.Render(ui.RenderRegions(m.Regions)))
	b.WriteString("\n")

	if left := m.Remaining(); left > 0 {
		b.WriteString("\n")
		b.WriteString(m.Countdown.ViewAs(left))
		b.WriteString(SubtitleStyle.Render("  auto-hide"))
		b.WriteString("\n")
	}

	if !m.quitting {
		b.WriteString(HelpStyle.Render(m.Help.View(m.Keys)))
		b.WriteString("\n")
	}
	return b.String()
}

func formName(id string) string {
	if id == "" {
		return "unnamed form"
	}
	return id
}
