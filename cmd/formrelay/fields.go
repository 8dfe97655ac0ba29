package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/muurk/formrelay/internal/page"
	"github.com/muurk/formrelay/internal/submit"
)

// errAborted is returned when the user interrupts a prompt
var errAborted = errors.New("aborted")

// prompter asks the user for values. Tests replace the survey version.
type prompter interface {
	Input(ctx context.Context, message, def string) (string, error)
	Select(ctx context.Context, message string, options []string) (int, error)
}

type surveyPrompter struct{}

func (surveyPrompter) Input(ctx context.Context, message, def string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out string
	prompt := &survey.Input{Message: message, Default: def}
	if err := survey.AskOne(prompt, &out); err != nil {
		return "", translateSurveyErr(err)
	}
	return out, nil
}

func (surveyPrompter) Select(ctx context.Context, message string, options []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var out int
	prompt := &survey.Select{Message: message, Options: options}
	if err := survey.AskOne(prompt, &out); err != nil {
		return 0, translateSurveyErr(err)
	}
	return out, nil
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return errAborted
	}
	return err
}

// parseFields turns repeated name=value flags into form values. A name
// given twice submits both values, as a multi-select would.
func parseFields(pairs []string) (url.Values, error) {
	values := url.Values{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --field %q: expected name=value", pair)
		}
		values.Add(name, value)
	}
	return values, nil
}

// pickForm chooses the registration to submit: the one named by id, the
// only one, or (interactively) the one the user selects.
func pickForm(ctx context.Context, regs []*submit.Registration, id string, ask bool, p prompter) (*submit.Registration, error) {
	if len(regs) == 0 {
		return nil, fmt.Errorf("no form on the page matches the selector")
	}
	if id != "" {
		for _, reg := range regs {
			if reg.ID() == id {
				return reg, nil
			}
		}
		return nil, fmt.Errorf("no matching form with id %q (have: %s)", id, strings.Join(formIDs(regs), ", "))
	}
	if len(regs) == 1 {
		return regs[0], nil
	}
	if !ask {
		return nil, fmt.Errorf("page has %d matching forms; choose one with --form (have: %s)", len(regs), strings.Join(formIDs(regs), ", "))
	}

	options := make([]string, len(regs))
	for i, reg := range regs {
		options[i] = fmt.Sprintf("%s  %s", displayID(reg, i), reg.Form().Action())
	}
	idx, err := p.Select(ctx, "Which form?", options)
	if err != nil {
		return nil, err
	}
	return regs[idx], nil
}

// promptFields asks for every field not already set with --field, offering
// the page's current value as the default.
func promptFields(ctx context.Context, form *page.Form, preset url.Values, p prompter) error {
	current := form.Values()
	answers := url.Values{}
	for _, name := range form.Fields() {
		if _, ok := preset[name]; ok {
			continue
		}
		if _, ok := answers[name]; ok {
			continue
		}
		v, err := p.Input(ctx, name+":", current.Get(name))
		if err != nil {
			return err
		}
		answers.Set(name, v)
	}
	if len(answers) > 0 {
		form.SetValues(answers)
	}
	return nil
}

func formIDs(regs []*submit.Registration) []string {
	ids := make([]string, 0, len(regs))
	for i, reg := range regs {
		ids = append(ids, displayID(reg, i))
	}
	sort.Strings(ids)
	return ids
}

func displayID(reg *submit.Registration, index int) string {
	if reg.ID() == "" {
		return fmt.Sprintf("#%d", index+1)
	}
	return reg.ID()
}
