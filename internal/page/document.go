package page

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Selector decides which form elements are registered.
type Selector struct {
	// Class must appear in the form's class list. Empty matches any form.
	Class string
	// ActionContains must be a substring of the action attribute. Empty
	// matches any action, including a missing one.
	ActionContains string
}

// Matches reports whether n is a form element satisfying the selector.
func (s Selector) Matches(n *html.Node) bool {
	if !isElement(n, "form") {
		return false
	}
	if s.Class != "" && !hasClass(n, s.Class) {
		return false
	}
	if s.ActionContains != "" && !strings.Contains(attr(n, "action"), s.ActionContains) {
		return false
	}
	return true
}

// String renders the selector in CSS notation.
func (s Selector) String() string {
	sel := "form"
	if s.Class != "" {
		sel += "." + s.Class
	}
	if s.ActionContains != "" {
		sel += fmt.Sprintf("[action*=%q]", s.ActionContains)
	}
	return sel
}

// Document is a parsed HTML page. All reads and writes of the node tree go
// through mu, so forms on the same page can be driven from different
// goroutines.
type Document struct {
	mu   sync.Mutex
	root *html.Node
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString is Parse for in-memory markup.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// ParseFile reads and parses the HTML file at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Render writes the current state of the document.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := html.Render(w, d.root); err != nil {
		return fmt.Errorf("failed to render document: %w", err)
	}
	return nil
}

// String returns the rendered document.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

// Forms returns the forms matching sel in document order. A form is
// identified by its id, then its name; forms with neither get positional
// ids ("form-1", "form-2", ...). IDs are unique within the result: a
// repeated id gets a numeric suffix ("contact-2").
func (d *Document) Forms(sel Selector) []*Form {
	d.mu.Lock()
	defer d.mu.Unlock()

	var nodes []*html.Node
	walk(d.root, func(n *html.Node) bool {
		if !sel.Matches(n) {
			return true
		}
		nodes = append(nodes, n)
		// Nested forms are invalid HTML; the parser never produces them.
		return false
	})

	// First claim wins, and explicit ids are claimed before any generated one.
	ids := make([]string, len(nodes))
	taken := make(map[string]bool)
	for i, n := range nodes {
		if id := explicitID(n); id != "" && !taken[id] {
			ids[i] = id
			taken[id] = true
		}
	}
	for i, n := range nodes {
		if ids[i] != "" {
			continue
		}
		base := explicitID(n)
		if base == "" {
			base = fmt.Sprintf("form-%d", i+1)
		}
		ids[i] = claimID(base, taken)
	}

	forms := make([]*Form, 0, len(nodes))
	for i, n := range nodes {
		forms = append(forms, &Form{
			doc:      d,
			node:     n,
			id:       ids[i],
			defaults: captureControls(n),
		})
	}
	return forms
}

func explicitID(n *html.Node) string {
	if id := attr(n, "id"); id != "" {
		return id
	}
	return attr(n, "name")
}

func claimID(base string, taken map[string]bool) string {
	id := base
	for k := 2; taken[id]; k++ {
		id = fmt.Sprintf("%s-%d", base, k)
	}
	taken[id] = true
	return id
}
