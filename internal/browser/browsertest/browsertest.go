// Package browsertest provides scripted in-memory pages and handles for
// testing code that drives a browser.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"milesfare-backend/internal/browser"
)

type Click struct {
	Selector string
	Index    int
}

type Page struct {
	mu sync.Mutex

	PageID string
	// URLs is consumed one entry per URL() call, the last entry repeats.
	URLs []string
	// Selectors maps a css selector to the elements it matches.
	Selectors map[string][]browser.Element
	Content   string
	// Responses are pushed (subject to the pattern filter) into the collector
	// passed to Capture.
	Responses []browser.Response

	OnClick    func(p *Page, selector string, index int) error
	OnEvaluate func(script string) (any, error)

	Navigations []string
	Clicks      []Click
	Typed       map[string]string
	Values      map[string]string
	Pressed     []browser.Key
	Scripts     []string
	URLCalls    int
}

func NewPage(id string, url string) *Page {
	return &Page{
		PageID:    id,
		URLs:      []string{url},
		Selectors: map[string][]browser.Element{},
		Typed:     map[string]string{},
		Values:    map[string]string{},
	}
}

// SetURL replaces the url sequence with a single url.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.URLs = []string{url}
}

// Show makes selector match one visible element per text.
func (p *Page) Show(selector string, texts ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	elements := []browser.Element{}
	for _, text := range texts {
		elements = append(elements, browser.Element{Text: text, Visible: true})
	}
	p.Selectors[selector] = elements
}

func (p *Page) Hide(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.Selectors, selector)
}

func (p *Page) ID() string {
	return p.PageID
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.URLCalls++
	if len(p.URLs) == 0 {
		return "about:blank", nil
	}
	url := p.URLs[0]
	if len(p.URLs) > 1 {
		p.URLs = p.URLs[1:]
	}
	return url, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigations = append(p.Navigations, url)
	p.URLs = []string{url}
	return nil
}

func (p *Page) Elements(ctx context.Context, selector string) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.Element(nil), p.Selectors[selector]...), nil
}

func (p *Page) Click(ctx context.Context, selector string, index int) error {
	p.mu.Lock()
	elements := p.Selectors[selector]
	if index < 0 || index >= len(elements) {
		p.mu.Unlock()
		return fmt.Errorf("no element %d for '%s'", index, selector)
	}
	p.Clicks = append(p.Clicks, Click{Selector: selector, Index: index})
	hook := p.OnClick
	p.mu.Unlock()

	if hook != nil {
		return hook(p, selector, index)
	}
	return nil
}

func (p *Page) Type(ctx context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.Selectors[selector]; !ok {
		return fmt.Errorf("no element for '%s'", selector)
	}
	p.Typed[selector] += text
	return nil
}

func (p *Page) SetValue(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.Selectors[selector]; !ok {
		return fmt.Errorf("no element for '%s'", selector)
	}
	p.Values[selector] = value
	p.Typed[selector] = ""
	return nil
}

func (p *Page) Press(ctx context.Context, key browser.Key) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Pressed = append(p.Pressed, key)
	return nil
}

func (p *Page) Evaluate(ctx context.Context, script string, out any) error {
	p.mu.Lock()
	p.Scripts = append(p.Scripts, script)
	hook := p.OnEvaluate
	p.mu.Unlock()

	if hook == nil {
		return nil
	}
	result, err := hook(script)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	buf, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Content, nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("png"), nil
}

func (p *Page) Capture(ctx context.Context, patterns *browser.Patterns, collector *browser.Collector) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, res := range p.Responses {
		if patterns.Match(res.URL) {
			collector.Push(res)
		}
	}
	return func() {}, nil
}

func (p *Page) NavigationCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Navigations)
}

type Handle struct {
	mu       sync.Mutex
	pages    []*Page
	opened   int
	Detached int
}

func NewHandle(pages ...*Page) *Handle {
	return &Handle{pages: pages}
}

// AddPage simulates a tab opened by the site.
func (h *Handle) AddPage(page *Page) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pages = append(h.pages, page)
}

func (h *Handle) Pages(ctx context.Context) ([]browser.Page, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pages := make([]browser.Page, len(h.pages))
	for i, p := range h.pages {
		pages[i] = p
	}
	return pages, nil
}

func (h *Handle) NewPage(ctx context.Context) (browser.Page, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened++
	page := NewPage(fmt.Sprintf("opened-%d", h.opened), "about:blank")
	h.pages = append(h.pages, page)
	return page, nil
}

func (h *Handle) Detach() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Detached++
	return nil
}

// Dialer hands out Handle on every dial and records the urls dialed.
type Dialer struct {
	mu     sync.Mutex
	Handle *Handle
	Err    error
	Dialed []string
}

func (d *Dialer) Dial(ctx context.Context, connectURL string) (browser.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Dialed = append(d.Dialed, connectURL)
	if d.Err != nil {
		return nil, d.Err
	}
	if d.Handle == nil {
		d.Handle = NewHandle(NewPage("page-1", "about:blank"))
	}
	return d.Handle, nil
}
