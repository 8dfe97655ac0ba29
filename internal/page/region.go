package page

import (
	"golang.org/x/net/html"
)

// VisibleClass is added to a shown region alongside the inline display style
// so Bootstrap-based templates pick it up.
const VisibleClass = "d-block"

// Region is an optional presentation subtree (loading, success or error
// banner). Every method is a no-op on a nil *Region, so callers never check
// for presence.
type Region struct {
	doc  *Document
	node *html.Node
}

// Show makes the region visible.
func (r *Region) Show() {
	if r == nil {
		return
	}
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()

	setStyleProperty(r.node, "display", "block")
	addClass(r.node, VisibleClass)
}

// Hide makes the region invisible. Hiding twice is the same as hiding once.
func (r *Region) Hide() {
	if r == nil {
		return
	}
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()

	setStyleProperty(r.node, "display", "none")
	removeClass(r.node, VisibleClass)
}

// Visible reports whether the region was last shown. A nil region is never
// visible.
func (r *Region) Visible() bool {
	if r == nil {
		return false
	}
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()

	return hasClass(r.node, VisibleClass) && styleProperty(r.node, "display") != "none"
}

// SetMessage replaces the region's content with sanitized markup.
func (r *Region) SetMessage(markup string) error {
	if r == nil {
		return nil
	}
	clean := Sanitize(markup)

	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()
	return setInnerHTML(r.node, clean)
}

// Text returns the region's text content.
func (r *Region) Text() string {
	if r == nil {
		return ""
	}
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()
	return textContent(r.node)
}

// Button is the form's submit control. Every method is a no-op on nil.
type Button struct {
	doc  *Document
	node *html.Node
}

// Label returns the button's inner markup.
func (b *Button) Label() string {
	if b == nil {
		return ""
	}
	b.doc.mu.Lock()
	defer b.doc.mu.Unlock()
	return innerHTML(b.node)
}

// SetLabel replaces the button content with sanitized markup.
func (b *Button) SetLabel(markup string) error {
	if b == nil {
		return nil
	}
	clean := Sanitize(markup)

	b.doc.mu.Lock()
	defer b.doc.mu.Unlock()
	return setInnerHTML(b.node, clean)
}

// RestoreLabel writes markup previously read with Label back verbatim.
// It skips sanitizing because the markup came from the document itself.
func (b *Button) RestoreLabel(markup string) error {
	if b == nil {
		return nil
	}
	b.doc.mu.Lock()
	defer b.doc.mu.Unlock()
	return setInnerHTML(b.node, markup)
}

// SetDisabled toggles the disabled attribute.
func (b *Button) SetDisabled(disabled bool) {
	if b == nil {
		return
	}
	b.doc.mu.Lock()
	defer b.doc.mu.Unlock()
	setBoolAttr(b.node, "disabled", disabled)
}

// Disabled reports whether the button is disabled.
func (b *Button) Disabled() bool {
	if b == nil {
		return false
	}
	b.doc.mu.Lock()
	defer b.doc.mu.Unlock()
	return hasAttr(b.node, "disabled")
}
