package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// ChromeDialer connects to a remote browser over the Chrome DevTools
// protocol, connectURL being the websocket url handed out by the provider.
type ChromeDialer struct{}

func (ChromeDialer) Dial(ctx context.Context, connectURL string) (Handle, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(
		context.WithoutCancel(ctx),
		connectURL,
		chromedp.NoModifyURL,
	)
	browserCtx, _ := chromedp.NewContext(allocCtx)

	// the first Run binds the tab to the context it is given, so it must be
	// the chromedp context itself and not a caller-bounded child
	err := chromedp.Run(browserCtx)
	if err != nil {
		cancelAlloc()
		return nil, fmt.Errorf("connect to remote browser: %w", err)
	}
	return &chromeHandle{
		browserCtx:  browserCtx,
		cancelAlloc: cancelAlloc,
	}, nil
}

type chromeHandle struct {
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
}

func (h *chromeHandle) Pages(ctx context.Context) ([]Page, error) {
	targets, err := chromedp.Targets(h.browserCtx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	own := chromedp.FromContext(h.browserCtx).Target

	pages := []Page{}
	for _, info := range targets {
		if info.Type != "page" {
			continue
		}
		if own != nil && own.TargetID == info.TargetID {
			pages = append(pages, &chromePage{ctx: h.browserCtx, id: string(info.TargetID)})
			continue
		}
		// tabs attached this way stay open until the allocator is dropped
		pageCtx, _ := chromedp.NewContext(h.browserCtx, chromedp.WithTargetID(info.TargetID))
		err := chromedp.Run(pageCtx)
		if err != nil {
			return nil, fmt.Errorf("attach to target %s: %w", info.TargetID, err)
		}
		pages = append(pages, &chromePage{ctx: pageCtx, id: string(info.TargetID)})
	}
	return pages, nil
}

func (h *chromeHandle) NewPage(ctx context.Context) (Page, error) {
	pageCtx, _ := chromedp.NewContext(h.browserCtx)
	err := chromedp.Run(pageCtx)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &chromePage{
		ctx: pageCtx,
		id:  string(chromedp.FromContext(pageCtx).Target.TargetID),
	}, nil
}

func (h *chromeHandle) Detach() error {
	h.cancelAlloc()
	return nil
}

type chromePage struct {
	ctx context.Context
	id  string
}

// run executes actions on the page's tab, bounded by the caller's context.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) ID() string {
	return p.id
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var url string
	err := p.run(ctx, chromedp.Location(&url))
	return url, err
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

const elementsScript = `Array.from(document.querySelectorAll(%s)).map((el) => {
	const rect = el.getBoundingClientRect();
	const style = window.getComputedStyle(el);
	return {
		text: (el.innerText || el.textContent || "").trim(),
		visible: rect.width > 0 && rect.height > 0 && style.visibility !== "hidden" && style.display !== "none",
	};
})`

func (p *chromePage) Elements(ctx context.Context, selector string) ([]Element, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Text    string `json:"text"`
		Visible bool   `json:"visible"`
	}
	err = p.run(ctx, chromedp.Evaluate(fmt.Sprintf(elementsScript, quoted), &raw))
	if err != nil {
		return nil, fmt.Errorf("query '%s': %w", selector, err)
	}
	elements := make([]Element, len(raw))
	for i, r := range raw {
		elements[i] = Element{Text: r.Text, Visible: r.Visible}
	}
	return elements, nil
}

func (p *chromePage) Click(ctx context.Context, selector string, index int) error {
	var nodes []*cdp.Node
	err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return fmt.Errorf("query '%s': %w", selector, err)
	}
	if index < 0 || index >= len(nodes) {
		return fmt.Errorf("no element %d for '%s' (found %d)", index, selector, len(nodes))
	}
	return p.run(ctx,
		chromedp.ScrollIntoView([]cdp.NodeID{nodes[index].NodeID}, chromedp.ByNodeID),
		chromedp.MouseClickNode(nodes[index]),
	)
}

func (p *chromePage) Type(ctx context.Context, selector, text string) error {
	return p.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

func (p *chromePage) SetValue(ctx context.Context, selector, value string) error {
	return p.run(ctx, chromedp.SetValue(selector, value, chromedp.ByQuery))
}

func (p *chromePage) Press(ctx context.Context, key Key) error {
	switch key {
	case KeyEnter:
		return p.run(ctx, chromedp.KeyEvent(kb.Enter))
	case KeyTab:
		return p.run(ctx, chromedp.KeyEvent(kb.Tab))
	}
	return p.run(ctx, chromedp.KeyEvent(string(key)))
}

func (p *chromePage) Evaluate(ctx context.Context, script string, out any) error {
	if out == nil {
		var discard any
		out = &discard
	}
	return p.run(ctx, chromedp.Evaluate(script, out))
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.FullScreenshot(&buf, 80))
	return buf, err
}

func (p *chromePage) Capture(ctx context.Context, patterns *Patterns, collector *Collector) (func(), error) {
	var stopped atomic.Bool
	var pending sync.Map

	chromedp.ListenTarget(p.ctx, func(ev any) {
		if stopped.Load() {
			return
		}
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if !strings.Contains(strings.ToLower(e.Response.MimeType), "json") {
				return
			}
			if !patterns.Match(e.Response.URL) {
				return
			}
			pending.Store(e.RequestID, e.Response.URL)
		case *network.EventLoadingFinished:
			url, ok := pending.LoadAndDelete(e.RequestID)
			if !ok {
				return
			}
			// event handlers must not block on cdp calls
			go func(id network.RequestID, url string) {
				target := chromedp.FromContext(p.ctx).Target
				body, err := network.GetResponseBody(id).Do(cdp.WithExecutor(p.ctx, target))
				if err != nil || !json.Valid(body) {
					return
				}
				collector.Push(Response{URL: url, Body: body})
			}(e.RequestID, url.(string))
		}
	})

	err := p.run(ctx, network.Enable())
	if err != nil {
		return nil, fmt.Errorf("enable network events: %w", err)
	}
	return func() { stopped.Store(true) }, nil
}
