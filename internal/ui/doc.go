// Package ui renders run-once terminal output for the formrelay CLI.
//
// Commands print a Header describing what they are about to do, then a
// Result box (success, failure or warning) once they finish. Printer ties
// these together and adds the listings used by scan and discover:
//
//	p := ui.NewPrinter(os.Stdout)
//	p.PrintHeader(ui.NewHeader("Send Form", "formrelay send",
//	    ui.Param{Key: "Page", Value: "contact.html"}))
//	out, err := reg.Submit(ctx)
//	p.PrintOutcome(out)
//
// Output is styled with lipgloss, which drops colors on its own when stdout
// is not a terminal. Zap logging stays silent unless FORMRELAY_LOG_LEVEL is
// set, so these boxes are the only thing a user normally sees.
package ui
