// Package browsertest provides Fake, an in-memory browser.Driver. Pages are
// plain HTML strings and selectors are evaluated with cascadia, so page
// objects can be tested against captured markup without a browser.
package browsertest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/ptgott/e2ekit/browser"
	"github.com/ptgott/e2ekit/dom"
)

type tab struct {
	id  browser.TabID
	url string
	doc *html.Node
}

// Fake is a scripted browser. Navigating to a URL loads the markup
// registered for it with SetPage, or an empty document. Clicks run the hooks
// registered with OnClick, which is how tests make a page react.
//
// Iframes are documents of their own: an iframe with a srcdoc attribute
// shows that markup, other iframes show what SetFrame registered for the
// selector used to switch into them.
type Fake struct {
	mu        sync.Mutex
	pages     map[string]string
	frameHTML map[string]string
	frameDocs map[*html.Node]*html.Node
	hooks     map[string][]func(*Fake)
	tabs      []*tab
	current   int
	frames    []string
	clicks    []string
	shot      []byte
	closed    bool
}

// New returns a Fake with one blank tab.
func New() *Fake {
	f := &Fake{
		pages:     make(map[string]string),
		frameHTML: make(map[string]string),
		frameDocs: make(map[*html.Node]*html.Node),
		hooks:     make(map[string][]func(*Fake)),
		shot:      []byte("\x89PNG fake"),
	}
	f.tabs = []*tab{{id: "tab-1", url: "about:blank", doc: dom.Parse("")}}
	return f
}

var _ browser.Driver = (*Fake)(nil)

// SetPage registers the markup served for url.
func (f *Fake) SetPage(url, markup string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = markup
}

// SetHTML replaces the document of the current tab.
func (f *Fake) SetHTML(markup string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tabs[f.current].doc = dom.Parse(markup)
	f.frameDocs = make(map[*html.Node]*html.Node)
}

// SetFrame registers the markup of the iframes matched by sel.
func (f *Fake) SetFrame(sel, markup string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frameHTML[sel] = markup
	f.frameDocs = make(map[*html.Node]*html.Node)
}

// OnClick runs fn after every click on sel, through Click or ClickAt.
func (f *Fake) OnClick(sel string, fn func(*Fake)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[sel] = append(f.hooks[sel], fn)
}

// Clicks lists the selectors clicked so far. ClickAt records the index in
// brackets after the selector.
func (f *Fake) Clicks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.clicks)
}

// SetScreenshot sets the bytes Screenshot returns.
func (f *Fake) SetScreenshot(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shot = b
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tabs[f.current]
	t.url = url
	t.doc = dom.Parse(f.pages[url])
	f.frames = nil
	return nil
}

func (f *Fake) URL(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tabs[f.current].url, nil
}

func (f *Fake) NewTab(_ context.Context, url string) (browser.TabID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &tab{
		id:  browser.TabID(fmt.Sprintf("tab-%d", len(f.tabs)+1)),
		url: url,
		doc: dom.Parse(f.pages[url]),
	}
	f.tabs = append(f.tabs, t)
	f.current = len(f.tabs) - 1
	f.frames = nil
	return t.id, nil
}

func (f *Fake) SwitchTab(_ context.Context, id browser.TabID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tabs {
		if t.id == id {
			f.current = i
			f.frames = nil
			return nil
		}
	}
	return fmt.Errorf("unknown tab %q", id)
}

func (f *Fake) CurrentTab(context.Context) (browser.TabID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tabs[f.current].id, nil
}

func (f *Fake) Tabs(context.Context) ([]browser.TabID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]browser.TabID, len(f.tabs))
	for i, t := range f.tabs {
		ids[i] = t.id
	}
	return ids, nil
}

func (f *Fake) SwitchFrame(_ context.Context, sel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sel == "" {
		f.frames = nil
		return nil
	}
	f.frames = append(f.frames, sel)
	if _, err := f.scope(); err != nil {
		f.frames = f.frames[:len(f.frames)-1]
		return err
	}
	return nil
}

// scope returns the document queries run against. f.mu must be held.
func (f *Fake) scope() (*html.Node, error) {
	doc := f.tabs[f.current].doc
	for _, sel := range f.frames {
		iframe, err := dom.First(doc, sel)
		if err != nil {
			return nil, fmt.Errorf("can't find frame %q: %w", sel, err)
		}
		inner, ok := f.frameDocs[iframe]
		if !ok {
			markup, ok := dom.Attr(iframe, "srcdoc")
			if !ok {
				markup = f.frameHTML[sel]
			}
			inner = dom.Parse(markup)
			f.frameDocs[iframe] = inner
		}
		doc = inner
	}
	return doc, nil
}

func (f *Fake) all(sel string) ([]*html.Node, error) {
	doc, err := f.scope()
	if err != nil {
		return nil, err
	}
	return dom.All(doc, sel)
}

func (f *Fake) first(sel string) (*html.Node, error) {
	doc, err := f.scope()
	if err != nil {
		return nil, err
	}
	return dom.First(doc, sel)
}

func (f *Fake) Count(_ context.Context, sel string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ns, err := f.all(sel)
	return len(ns), err
}

func (f *Fake) Displayed(_ context.Context, sel string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ns, err := f.all(sel)
	if err != nil || len(ns) == 0 {
		return false, err
	}
	return visible(ns[0]), nil
}

// visible is false when n or one of its ancestors is hidden through the
// hidden attribute or an inline display:none.
func visible(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if _, ok := dom.Attr(n, "hidden"); ok {
			return false
		}
		style, _ := dom.Attr(n, "style")
		if strings.Contains(strings.ReplaceAll(style, " ", ""), "display:none") {
			return false
		}
	}
	return true
}

func (f *Fake) Enabled(_ context.Context, sel string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ns, err := f.all(sel)
	if err != nil || len(ns) == 0 {
		return false, err
	}
	_, disabled := dom.Attr(ns[0], "disabled")
	return !disabled, nil
}

func (f *Fake) Text(_ context.Context, sel string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.first(sel)
	if err != nil {
		return "", err
	}
	return dom.Text(n), nil
}

func (f *Fake) Value(_ context.Context, sel string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.first(sel)
	if err != nil {
		return "", err
	}
	if v, ok := dom.Attr(n, "value"); ok {
		return v, nil
	}
	if n.Data == "option" {
		return dom.Text(n), nil
	}
	return "", nil
}

func (f *Fake) HTML(_ context.Context, sel string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.first(sel)
	if err != nil {
		return "", err
	}
	return dom.InnerHTML(n), nil
}

func (f *Fake) Click(_ context.Context, sel string) error {
	f.mu.Lock()
	if _, err := f.first(sel); err != nil {
		f.mu.Unlock()
		return err
	}
	f.clicks = append(f.clicks, sel)
	hooks := slices.Clone(f.hooks[sel])
	f.mu.Unlock()

	for _, fn := range hooks {
		fn(f)
	}
	return nil
}

func (f *Fake) ClickAt(_ context.Context, sel string, index int) error {
	f.mu.Lock()
	ns, err := f.all(sel)
	if err == nil && (index < 0 || index >= len(ns)) {
		err = fmt.Errorf("no element %d among the %d matching %q", index, len(ns), sel)
	}
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.clicks = append(f.clicks, fmt.Sprintf("%s[%d]", sel, index))
	hooks := slices.Clone(f.hooks[sel])
	f.mu.Unlock()

	for _, fn := range hooks {
		fn(f)
	}
	return nil
}

func (f *Fake) Fill(_ context.Context, sel, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.first(sel)
	if err != nil {
		return err
	}
	dom.SetAttr(n, "value", value)
	return nil
}

func (f *Fake) SelectByText(_ context.Context, sel, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	opts, err := f.all(sel + " option")
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(opts, func(o *html.Node) bool { return dom.Text(o) == text })
	if idx < 0 {
		return fmt.Errorf("no option %q in %q", text, sel)
	}
	for i, o := range opts {
		if i == idx {
			dom.SetAttr(o, "selected", "")
		} else {
			dom.RemoveAttr(o, "selected")
		}
	}
	return nil
}

func (f *Fake) Screenshot(context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.shot), nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
