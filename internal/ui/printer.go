package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/formrelay/internal/discovery"
	"github.com/muurk/formrelay/internal/submit"
)

// Printer writes run-once command output. It never reads input.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a printer sized to the current terminal
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, width: GetTerminalWidth()}
}

// SetWidth overrides the detected terminal width
func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

// PrintHeader renders a command header followed by a blank line.
func (p *Printer) PrintHeader(h *Header) {
	fmt.Fprintln(p.out, h.SetWidth(p.width).Render())
	fmt.Fprintln(p.out)
}

// PrintResult renders a result box.
func (p *Printer) PrintResult(r *Result) {
	fmt.Fprintln(p.out, r.SetWidth(p.width).Render())
}

// PrintOutcome renders the box for a finished submission.
func (p *Printer) PrintOutcome(out *submit.Outcome) {
	p.PrintResult(OutcomeResult(out))
}

// OutcomeResult converts a submission outcome into a result box.
func OutcomeResult(out *submit.Outcome) *Result {
	if out.State == submit.StateSuccess {
		r := NewSuccessResult("Form submitted",
			Param{Key: "Form", Value: out.Attempt.FormID},
			Param{Key: "Action", Value: out.Attempt.Action},
		)
		if out.StatusCode != 0 {
			r.AddDetail("Status", fmt.Sprintf("%d", out.StatusCode))
		}
		r.AddDetail("Duration", out.Duration.Round(time.Millisecond).String())
		return r
	}

	r := NewFailureResult(errorTitle(out.Err), out.Err, submit.TroubleshootingHints(out.Err))
	r.AddDetail("Form", out.Attempt.FormID)
	if out.Attempt.Action != "" {
		r.AddDetail("Action", out.Attempt.Action)
	}
	r.AddDetail("Displayed", out.Message)
	return r
}

func errorTitle(err error) string {
	var subErr *submit.SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Type.String()
	}
	return "Submission failed"
}

// RenderRegions draws one line per feedback region: a marker for its
// visibility, its name and its current text.
func RenderRegions(regions []submit.RegionStatus) string {
	lines := make([]string, 0, len(regions))
	for _, r := range regions {
		var marker, name string
		switch {
		case !r.Present:
			marker = RegionMissingStyle.Render(MarkerMissing)
			name = RegionMissingStyle.Render(fmt.Sprintf("%-8s (not in template)", r.Name))
		case r.Visible:
			marker = regionColor(r.Name).Render(MarkerOn)
			name = RegionOnStyle.Render(fmt.Sprintf("%-8s", r.Name)) + " " + truncate(r.Text, 60)
		default:
			marker = RegionOffStyle.Render(MarkerOff)
			name = RegionOffStyle.Render(r.Name)
		}
		lines = append(lines, "  "+marker+" "+name)
	}
	return strings.Join(lines, "\n")
}

func regionColor(name string) lipgloss.Style {
	switch name {
	case "success":
		return lipgloss.NewStyle().Foreground(SuccessColor)
	case "error":
		return lipgloss.NewStyle().Foreground(ErrorColor)
	default:
		return lipgloss.NewStyle().Foreground(PrimaryColor)
	}
}

// PrintForms lists the registered forms of a page.
func (p *Printer) PrintForms(regs []*submit.Registration) {
	if len(regs) == 0 {
		p.PrintResult(NewWarningResult("No matching forms",
			Param{Key: "Hint", Value: "check the selector in the config file"}))
		return
	}

	for i, reg := range regs {
		form := reg.Form()
		action := form.Action()
		if action == "" {
			action = ErrorMessageStyle.Render("(no action)")
		}
		fmt.Fprintf(p.out, "%s %s\n",
			HeaderTitleStyle.Render(displayID(reg.ID(), i)),
			HeaderCommandStyle.Render(action))
		fmt.Fprintf(p.out, "%s %s\n",
			HeaderParamKeyStyle.Render("Fields:"),
			HeaderParamValueStyle.Render(strings.Join(form.Fields(), ", ")))
		fmt.Fprintln(p.out, RenderRegions(reg.Regions()))
		fmt.Fprintln(p.out)
	}
}

// PrintSnapshot writes one state change as a single line.
func (p *Printer) PrintSnapshot(snap submit.Snapshot) {
	line := fmt.Sprintf("%s  %-10s %s",
		snap.At.Format("15:04:05.000"), snap.FormID, StateLabel(snap.State))
	if snap.Message != "" {
		line += "  " + HeaderCommandStyle.Render(snap.Message)
	}
	fmt.Fprintln(p.out, line)
}

// StateLabel renders a state name in its color.
func StateLabel(s submit.State) string {
	style := lipgloss.NewStyle().Bold(true)
	switch s {
	case submit.StateLoading:
		style = style.Foreground(PrimaryColor)
	case submit.StateSuccess:
		style = style.Foreground(SuccessColor)
	case submit.StateError:
		style = style.Foreground(ErrorColor)
	default:
		style = style.Foreground(MutedColor)
	}
	return style.Render(s.String())
}

// PrintRelays lists relays found on the local network.
func (p *Printer) PrintRelays(relays []*discovery.Relay) {
	if len(relays) == 0 {
		p.PrintResult(NewWarningResult("No relays found",
			Param{Key: "Hint", Value: "start one with formrelay serve --advertise"}))
		return
	}
	for _, r := range relays {
		fmt.Fprintf(p.out, "%s %s\n",
			lipgloss.NewStyle().Foreground(SuccessColor).Render(MarkerOn),
			HeaderParamValueStyle.Render(r.Instance))
		fmt.Fprintf(p.out, "  %s %s\n", HeaderParamKeyStyle.Render("URL:"), r.BaseURL())
		if forms := r.GetMetadata("forms"); forms != "" {
			fmt.Fprintf(p.out, "  %s %s\n", HeaderParamKeyStyle.Render("Forms:"), forms)
		}
		if v := r.GetMetadata("version"); v != "" {
			fmt.Fprintf(p.out, "  %s %s\n", HeaderParamKeyStyle.Render("Version:"), v)
		}
	}
}

func displayID(id string, index int) string {
	if id == "" {
		return fmt.Sprintf("form #%d", index+1)
	}
	return id
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
