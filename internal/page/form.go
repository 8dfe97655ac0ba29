package page

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Form is a registered form element inside a Document.
type Form struct {
	doc      *Document
	node     *html.Node
	id       string
	defaults []controlState
}

// controlState is the value-bearing state of one control, captured so the
// form can be reset.
type controlState struct {
	node     *html.Node
	value    string
	hasValue bool
	checked  bool
	text     string
}

// skipped input types never contribute to the submitted data.
var skippedInputTypes = map[string]bool{
	"submit": true,
	"button": true,
	"reset":  true,
	"image":  true,
	"file":   true,
}

func inputType(n *html.Node) string {
	t := strings.ToLower(strings.TrimSpace(attr(n, "type")))
	if t == "" {
		return "text"
	}
	return t
}

func isCheckable(n *html.Node) bool {
	t := inputType(n)
	return t == "checkbox" || t == "radio"
}

// controls returns the named, enabled, value-bearing controls of the form.
func controls(form *html.Node) []*html.Node {
	var out []*html.Node
	walk(form, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch n.Data {
		case "input":
			if skippedInputTypes[inputType(n)] {
				return false
			}
		case "textarea", "select":
		default:
			return true
		}
		if attr(n, "name") != "" && !hasAttr(n, "disabled") {
			out = append(out, n)
		}
		return false
	})
	return out
}

func options(sel *html.Node) []*html.Node {
	var out []*html.Node
	walk(sel, func(n *html.Node) bool {
		if isElement(n, "option") {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

func optionValue(opt *html.Node) string {
	if v, ok := getAttr(opt, "value"); ok {
		return v
	}
	return strings.TrimSpace(textContent(opt))
}

func captureControls(form *html.Node) []controlState {
	var states []controlState
	for _, n := range controls(form) {
		switch {
		case isElement(n, "textarea"):
			states = append(states, controlState{node: n, text: textContent(n)})
		case isElement(n, "select"):
			for _, opt := range options(n) {
				states = append(states, controlState{node: opt, checked: hasAttr(opt, "selected")})
			}
		default:
			v, ok := getAttr(n, "value")
			states = append(states, controlState{node: n, value: v, hasValue: ok, checked: hasAttr(n, "checked")})
		}
	}
	return states
}

// ID returns the form's id attribute, name attribute, or positional id,
// suffixed when another matching form already claimed it.
func (f *Form) ID() string {
	return f.id
}

// Action returns the trimmed action attribute. A blank action reads as "".
func (f *Form) Action() string {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	return strings.TrimSpace(attr(f.node, "action"))
}

// Fields returns the distinct control names in document order.
func (f *Form) Fields() []string {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()

	seen := make(map[string]bool)
	var names []string
	for _, n := range controls(f.node) {
		name := attr(n, "name")
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Values serializes the form the way a browser builds its form data set:
// unchecked checkboxes and radios are omitted, a select contributes its
// selected options (or its first option when none is selected).
func (f *Form) Values() url.Values {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()

	values := url.Values{}
	for _, n := range controls(f.node) {
		name := attr(n, "name")
		switch {
		case isElement(n, "textarea"):
			values.Add(name, textContent(n))
		case isElement(n, "select"):
			opts := options(n)
			selected := 0
			for _, opt := range opts {
				if hasAttr(opt, "selected") && !hasAttr(opt, "disabled") {
					values.Add(name, optionValue(opt))
					selected++
				}
			}
			if selected == 0 && len(opts) > 0 && !hasAttr(n, "multiple") {
				values.Add(name, optionValue(opts[0]))
			}
		case isCheckable(n):
			if hasAttr(n, "checked") {
				v, ok := getAttr(n, "value")
				if !ok {
					v = "on"
				}
				values.Add(name, v)
			}
		default:
			values.Add(name, attr(n, "value"))
		}
	}
	return values
}

// SetValues fills the controls named in values. Repeated names consume the
// values in order; checkboxes, radios and options are checked when their
// value is listed. Controls not named in values are left untouched.
func (f *Form) SetValues(values url.Values) {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()

	next := make(map[string]int)
	for _, n := range controls(f.node) {
		name := attr(n, "name")
		vals, ok := values[name]
		if !ok {
			continue
		}
		switch {
		case isElement(n, "textarea"):
			setText(n, take(vals, next, name))
		case isElement(n, "select"):
			for _, opt := range options(n) {
				setBoolAttr(opt, "selected", contains(vals, optionValue(opt)))
			}
		case isCheckable(n):
			v, has := getAttr(n, "value")
			if !has {
				v = "on"
			}
			setBoolAttr(n, "checked", contains(vals, v))
		default:
			setAttr(n, "value", take(vals, next, name))
		}
	}
}

// Reset restores every control to the state it had when the form was
// discovered.
func (f *Form) Reset() {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()

	for _, s := range f.defaults {
		switch {
		case isElement(s.node, "textarea"):
			setText(s.node, s.text)
		case isElement(s.node, "option"):
			setBoolAttr(s.node, "selected", s.checked)
		default:
			if s.hasValue {
				setAttr(s.node, "value", s.value)
			} else {
				removeAttr(s.node, "value")
			}
			if isCheckable(s.node) {
				setBoolAttr(s.node, "checked", s.checked)
			}
		}
	}
}

// Region returns the first descendant carrying class, or nil.
func (f *Form) Region(class string) *Region {
	if class == "" {
		return nil
	}
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()

	n := findFirst(f.node, func(n *html.Node) bool {
		return n.Type == html.ElementNode && hasClass(n, class)
	})
	if n == nil {
		return nil
	}
	return &Region{doc: f.doc, node: n}
}

// SubmitButton returns the first button[type=submit], or nil.
func (f *Form) SubmitButton() *Button {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()

	n := findFirst(f.node, func(n *html.Node) bool {
		return isElement(n, "button") && strings.EqualFold(attr(n, "type"), "submit")
	})
	if n == nil {
		return nil
	}
	return &Button{doc: f.doc, node: n}
}

func take(vals []string, next map[string]int, name string) string {
	i := next[name]
	next[name] = i + 1
	if i < len(vals) {
		return vals[i]
	}
	return ""
}

func contains(vals []string, v string) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}
