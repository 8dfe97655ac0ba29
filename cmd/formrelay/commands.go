package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/formrelay/internal/discovery"
	"github.com/muurk/formrelay/internal/page"
	"github.com/muurk/formrelay/internal/submit"
	"github.com/muurk/formrelay/internal/tui"
	"github.com/muurk/formrelay/internal/ui"
)

// Command flags
var (
	scanJSON     bool
	formID       string
	fieldFlags   []string
	interactive  bool
	noWait       bool
	plainOutput  bool
	outPath      string
	discoverSecs int
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(discoverCmd)
}

// scanCmd lists the forms of a page
var scanCmd = &cobra.Command{
	Use:   "scan <page.html>",
	Short: "List the forms a page would register",
	Long: `Parse a page and list every form that matches the configured selector,
with its action URL, field names and which feedback regions it has.

A form without an action is still listed; submitting it shows a
configuration error instead of making a request.`,
	Example: `  # Inspect a page
  formrelay scan index.html

  # Machine-readable output
  formrelay scan index.html --json`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the forms as JSON")
}

// scannedForm is the JSON shape printed by scan --json
type scannedForm struct {
	ID      string                `json:"id"`
	Action  string                `json:"action"`
	Fields  []string              `json:"fields"`
	Regions []submit.RegionStatus `json:"regions"`
}

func runScan(cmd *cobra.Command, args []string) error {
	doc, err := page.ParseFile(args[0])
	if err != nil {
		return err
	}
	ctrl := submit.NewController(submit.OptionsFromConfig(cfg))
	defer ctrl.Close()
	regs := ctrl.Attach(doc)

	if scanJSON {
		forms := make([]scannedForm, 0, len(regs))
		for _, reg := range regs {
			forms = append(forms, scannedForm{
				ID:      reg.ID(),
				Action:  reg.Form().Action(),
				Fields:  reg.Form().Fields(),
				Regions: reg.Regions(),
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(forms)
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader(ui.NewHeader("Scan Page", "formrelay scan",
		ui.Param{Key: "Page", Value: args[0]},
		ui.Param{Key: "Selector", Value: ctrl.Selector().String()},
		ui.Param{Key: "Forms", Value: fmt.Sprintf("%d", len(regs))},
	))
	p.PrintForms(regs)
	return nil
}

// sendCmd submits one form
var sendCmd = &cobra.Command{
	Use:   "send <page.html>",
	Short: "Submit a form from a page",
	Long: `Submit one form of a page exactly as the browser controller would.

Field values come from the page itself, overridden by --field flags and,
with --interactive, by answers to prompts. On a terminal the submission is
followed live until the feedback regions hide themselves again; otherwise
each state change is printed as a line and a result box closes the run.`,
	Example: `  # Submit the only matching form
  formrelay send index.html --field email=jane@example.com --field message=Hello

  # Pick the form and prompt for every field
  formrelay send index.html --form contact --interactive

  # Keep the resulting page (success region visible)
  formrelay send index.html --no-wait --out sent.html`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&formID, "form", "", "ID of the form to submit (required when the page has several)")
	sendCmd.Flags().StringArrayVar(&fieldFlags, "field", nil, "Set a field value as name=value (repeatable)")
	sendCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Prompt for field values")
	sendCmd.Flags().BoolVar(&noWait, "no-wait", false, "Exit as soon as the provider answers instead of waiting for auto-hide")
	sendCmd.Flags().BoolVar(&plainOutput, "plain", false, "Print plain output even on a terminal")
	sendCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the resulting page to this file")
}

func runSend(cmd *cobra.Command, args []string) error {
	overrides, err := parseFields(fieldFlags)
	if err != nil {
		return err
	}

	doc, err := page.ParseFile(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := submit.NewController(submit.OptionsFromConfig(cfg))
	defer ctrl.Close()
	regs := ctrl.Attach(doc)

	prompter := surveyPrompter{}
	reg, err := pickForm(ctx, regs, formID, interactive, prompter)
	if err != nil {
		return err
	}

	if len(overrides) > 0 {
		reg.Form().SetValues(overrides)
	}
	if interactive {
		if err := promptFields(ctx, reg.Form(), overrides, prompter); err != nil {
			return err
		}
	}

	cmd.SilenceUsage = true

	var out *submit.Outcome
	if ui.IsTerminal(os.Stdout) && !plainOutput {
		out, err = tui.RunSend(ctx, ctrl, reg, tui.SendOptions{
			SuccessHide: cfg.Timing.SuccessHide,
			ErrorHide:   cfg.Timing.ErrorHide,
			NoWait:      noWait,
		})
		if out != nil {
			ui.NewPrinter(cmd.OutOrStdout()).PrintOutcome(out)
		}
	} else {
		out, err = sendPlain(ctx, cmd, ctrl, reg, args[0])
	}
	if out == nil {
		return err
	}

	if outPath != "" {
		if werr := writeDocument(doc, outPath); werr != nil {
			return werr
		}
	}

	if out.State == submit.StateError {
		return fmt.Errorf("submission failed: %s", out.Message)
	}
	return nil
}

// sendPlain prints every state change of reg as a line, submits it and
// waits for the auto-hide unless --no-wait is set.
func sendPlain(ctx context.Context, cmd *cobra.Command, ctrl *submit.Controller, reg *submit.Registration, pagePath string) (*submit.Outcome, error) {
	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader(ui.NewHeader("Send Form", "formrelay send",
		ui.Param{Key: "Page", Value: pagePath},
		ui.Param{Key: "Form", Value: reg.ID()},
		ui.Param{Key: "Action", Value: reg.Form().Action()},
	))

	idle := make(chan struct{}, 1)
	ctrl.Observe(submit.ObserverFuncs{
		OnState: func(s submit.Snapshot) {
			if s.FormID != reg.ID() {
				return
			}
			p.PrintSnapshot(s)
			if s.State == submit.StateIdle {
				select {
				case idle <- struct{}{}:
				default:
				}
			}
		},
	})

	out, err := reg.Submit(ctx)
	if !noWait {
		hold := cfg.Timing.SuccessHide
		if out.State == submit.StateError {
			hold = cfg.Timing.ErrorHide
		}
		select {
		case <-idle:
		case <-ctx.Done():
		case <-time.After(hold + time.Second):
		}
	}

	fmt.Fprintln(cmd.OutOrStdout())
	p.PrintOutcome(out)
	return out, err
}

func writeDocument(doc *page.Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := doc.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// discoverCmd finds relays on the local network
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find formrelay servers on the local network",
	Long: `Browse mDNS for relays started with 'formrelay serve --advertise'
and list their base URL, number of forms and version.`,
	Example: `  # Browse for 5 seconds (default)
  formrelay discover

  # Longer browse for slow networks
  formrelay discover --timeout 15`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&discoverSecs, "timeout", int(discovery.DefaultScanTimeout/time.Second), "Browse timeout in seconds")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader(ui.NewHeader("Discover Relays", "formrelay discover",
		ui.Param{Key: "Service", Value: discovery.ServiceType},
		ui.Param{Key: "Timeout", Value: fmt.Sprintf("%ds", discoverSecs)},
	))

	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(discoverSecs) * time.Second

	relays, err := scanner.Scan(cmd.Context())
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	p.PrintRelays(relays)
	return nil
}
