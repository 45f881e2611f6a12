// Package browser is the automation handle abstraction the scrapers drive:
// pages that can be navigated, queried by selector, clicked and typed into,
// plus capture of structured network responses while a search is in flight.
package browser

import (
	"context"
	"encoding/json"
)

type Key string

const (
	KeyEnter Key = "Enter"
	KeyTab   Key = "Tab"
)

// Element is a snapshot of one element matched by a selector.
type Element struct {
	Text    string
	Visible bool
}

// Response is a captured JSON network response.
type Response struct {
	URL  string
	Body json.RawMessage
}

type Page interface {
	// ID is stable for the lifetime of the page (the remote target id).
	ID() string
	URL(ctx context.Context) (string, error)
	// Navigate must only be called by form scripts, never by login polling.
	Navigate(ctx context.Context, url string) error
	// Elements lists every element matching a css selector in document order.
	Elements(ctx context.Context, selector string) ([]Element, error)
	// Click clicks the index-th element matching selector.
	Click(ctx context.Context, selector string, index int) error
	// Type focuses the first element matching selector and sends keystrokes.
	Type(ctx context.Context, selector, text string) error
	SetValue(ctx context.Context, selector, value string) error
	Press(ctx context.Context, key Key) error
	// Evaluate runs a script and unmarshals its result into out, out may be nil.
	Evaluate(ctx context.Context, script string, out any) error
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	// Capture pushes every JSON response whose url matches patterns into
	// collector until the returned stop func is called.
	Capture(ctx context.Context, patterns *Patterns, collector *Collector) (stop func(), err error)
}

// Handle is a live connection to a remote browser.
type Handle interface {
	Pages(ctx context.Context) ([]Page, error)
	NewPage(ctx context.Context) (Page, error)
	// Detach drops the local connection, the remote browser keeps running.
	Detach() error
}

type Dialer interface {
	Dial(ctx context.Context, connectURL string) (Handle, error)
}

// FirstVisible returns the index of the first visible element whose text
// contains substr (any visible element when substr is empty), or -1.
func FirstVisible(elements []Element, substr string) int {
	for i, el := range elements {
		if !el.Visible {
			continue
		}
		if substr == "" || containsFold(el.Text, substr) {
			return i
		}
	}
	return -1
}
