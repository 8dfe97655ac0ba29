// Package page models the HTML document whose forms are relayed.
//
// A Document wraps a golang.org/x/net/html node tree. Forms are found with a
// Selector (class plus action substring), and each Form exposes the pieces
// the submission controller drives:
//
//   - field values, serialized the way a browser builds form data
//   - Reset, which restores the values present when the form was discovered
//   - optional Regions (loading, success, error) found by class
//   - the optional submit Button
//
// Region and Button methods are no-ops on nil receivers, so a template that
// omits, say, the loading indicator degrades silently.
//
// Markup written into the document is sanitized with bluemonday.
//
// # Thread Safety
//
// The document owns a single lock; every Form, Region and Button method takes
// it for the duration of one read or mutation.
package page
