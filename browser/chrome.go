package browser

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rs/zerolog/log"
)

// ChromeConfig tunes NewChrome.
type ChromeConfig struct {
	// Headless hides the browser window.
	Headless bool
	// ExecPath is the browser binary. Empty means chromedp's lookup.
	ExecPath string
	Width    int
	Height   int
	// ActionTimeout bounds every single browser round trip.
	ActionTimeout time.Duration
}

func (c *ChromeConfig) setDefaults() {
	if c.Width == 0 || c.Height == 0 {
		c.Width, c.Height = 1920, 1080
	}
	if c.ActionTimeout == 0 {
		c.ActionTimeout = 10 * time.Second
	}
}

type chromeTab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Chrome is a Driver backed by a Chrome or Chromium process through the
// DevTools protocol.
type Chrome struct {
	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	tabs          map[TabID]chromeTab
	order         []TabID
	current       TabID
	frames        []string
	actionTimeout time.Duration
}

// NewChrome starts a browser with one blank tab. Close stops it.
func NewChrome(ctx context.Context, conf ChromeConfig) (*Chrome, error) {
	conf.setDefaults()

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", conf.Headless),
		chromedp.WindowSize(conf.Width, conf.Height),
	)
	if conf.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(conf.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		log.Debug().Msgf(format, args...)
	}))

	// The first Run starts the browser and its first tab.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("can't start the browser: %w", err)
	}

	id := tabIDOf(browserCtx)
	return &Chrome{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		tabs:          map[TabID]chromeTab{id: {ctx: browserCtx, cancel: browserCancel}},
		order:         []TabID{id},
		current:       id,
		actionTimeout: conf.ActionTimeout,
	}, nil
}

func tabIDOf(ctx context.Context) TabID {
	return TabID(chromedp.FromContext(ctx).Target.TargetID)
}

// run executes actions in the current tab. ctx only cancels: the tab's own
// context carries the browser connection.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	c.mu.Lock()
	tab := c.tabs[c.current]
	c.mu.Unlock()

	rctx, cancel := context.WithTimeout(tab.ctx, c.actionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(rctx, actions...)
}

// scope resolves the current frame chain into the node queries start from.
// A nil node means the top-level document.
func (c *Chrome) scope(ctx context.Context) (chromedp.QueryOption, error) {
	c.mu.Lock()
	frames := slices.Clone(c.frames)
	c.mu.Unlock()

	var node *cdp.Node
	for _, sel := range frames {
		var nodes []*cdp.Node
		if err := c.run(ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQuery, chromedp.FromNode(node))); err != nil {
			return nil, fmt.Errorf("can't find frame %q: %w", sel, err)
		}
		node = nodes[0]
	}
	return chromedp.FromNode(node), nil
}

// query runs the action built by build once the frame scope is known.
func (c *Chrome) query(ctx context.Context, build func(scope chromedp.QueryOption) chromedp.Action) error {
	scope, err := c.scope(ctx)
	if err != nil {
		return err
	}
	return c.run(ctx, build(scope))
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
	return c.run(ctx, chromedp.Navigate(url))
}

func (c *Chrome) URL(ctx context.Context) (string, error) {
	var url string
	err := c.run(ctx, chromedp.Location(&url))
	return url, err
}

func (c *Chrome) NewTab(ctx context.Context, url string) (TabID, error) {
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)

	rctx, rcancel := context.WithTimeout(tabCtx, c.actionTimeout)
	defer rcancel()
	stop := context.AfterFunc(ctx, rcancel)
	defer stop()

	if err := chromedp.Run(rctx, chromedp.Navigate(url)); err != nil {
		cancel()
		return "", fmt.Errorf("can't open a tab on %s: %w", url, err)
	}

	id := tabIDOf(tabCtx)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tabs[id] = chromeTab{ctx: tabCtx, cancel: cancel}
	c.order = append(c.order, id)
	c.current = id
	c.frames = nil
	return id, nil
}

func (c *Chrome) SwitchTab(ctx context.Context, id TabID) error {
	c.mu.Lock()
	_, ok := c.tabs[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown tab %q", id)
	}

	if err := c.run(ctx, target.ActivateTarget(target.ID(id))); err != nil {
		return fmt.Errorf("can't activate tab %q: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = id
	c.frames = nil
	return nil
}

func (c *Chrome) CurrentTab(context.Context) (TabID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, nil
}

func (c *Chrome) Tabs(context.Context) ([]TabID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.order), nil
}

func (c *Chrome) SwitchFrame(ctx context.Context, sel string) error {
	if sel == "" {
		c.mu.Lock()
		c.frames = nil
		c.mu.Unlock()
		return nil
	}

	c.mu.Lock()
	c.frames = append(c.frames, sel)
	c.mu.Unlock()

	// Fail now rather than on the next query.
	if _, err := c.scope(ctx); err != nil {
		c.mu.Lock()
		c.frames = c.frames[:len(c.frames)-1]
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *Chrome) Count(ctx context.Context, sel string) (int, error) {
	var nodes []*cdp.Node
	err := c.query(ctx, func(scope chromedp.QueryOption) chromedp.Action {
		return chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0), scope)
	})
	return len(nodes), err
}

func (c *Chrome) Displayed(ctx context.Context, sel string) (bool, error) {
	n, err := c.Count(ctx, sel)
	if err != nil || n == 0 {
		return false, err
	}

	var width, height float64
	err = c.query(ctx, func(scope chromedp.QueryOption) chromedp.Action {
		return chromedp.Tasks{
			chromedp.JavascriptAttribute(sel, "offsetWidth", &width, chromedp.ByQuery, scope),
			chromedp.JavascriptAttribute(sel, "offsetHeight", &height, chromedp.ByQuery, scope),
		}
	})
	return width > 0 || height > 0, err
}

func (c *Chrome) Enabled(ctx context.Context, sel string) (bool, error) {
	n, err := c.Count(ctx, sel)
	if err != nil || n == 0 {
		return false, err
	}

	var disabled bool
	err = c.query(ctx, func(scope chromedp.QueryOption) chromedp.Action {
		return chromedp.JavascriptAttribute(sel, "disabled", &disabled, chromedp.ByQuery, scope)
	})
	return !disabled, err
}

func (c *Chrome) Text(ctx context.Context, sel string) (string, error) {
	var s string
	err := c.query(ctx, func(scope chromedp.QueryOption) chromedp.Action {
		return chromedp.Text(sel, &s, chromedp.ByQuery, scope)
	})
	return strings.TrimSpace(s), err
}

func (c *Chrome) Value(ctx context.Context, sel string) (string, error) {
	var s string
	err := c.query(ctx, func(scope chromedp.QueryOption) chromedp.Action {
		return chromedp.Value(sel, &s, chromedp.ByQuery, scope)
	})
	return s, err
}

func (c *Chrome) HTML(ctx context.Context, sel string) (string, error) {
	var s string
	err := c.query(ctx, func(scope chromedp.QueryOption) chromedp.Action {
		return chromedp.InnerHTML(sel, &s, chromedp.ByQuery, scope)
	})
	return s, err
}

func (c *Chrome) Click(ctx context.Context, sel string) error {
	return c.query(ctx, func(scope chromedp.QueryOption) chromedp.Action {
		return chromedp.Click(sel, chromedp.ByQuery, scope)
	})
}

func (c *Chrome) ClickAt(ctx context.Context, sel string, index int) error {
	var nodes []*cdp.Node
	err := c.query(ctx, func(scope chromedp.QueryOption) chromedp.Action {
		return chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0), scope)
	})
	if err != nil {
		return err
	}
	if index < 0 || index >= len(nodes) {
		return fmt.Errorf("no element %d among the %d matching %q", index, len(nodes), sel)
	}
	return c.run(ctx, chromedp.MouseClickNode(nodes[index]))
}

func (c *Chrome) Fill(ctx context.Context, sel, value string) error {
	return c.query(ctx, func(scope chromedp.QueryOption) chromedp.Action {
		return chromedp.Tasks{
			chromedp.SetValue(sel, "", chromedp.ByQuery, scope),
			chromedp.SendKeys(sel, value+kb.Tab, chromedp.ByQuery, scope),
		}
	})
}

// SelectByText types the option text into the focused select, which is how
// a user picks an option from the keyboard and fires the change event.
func (c *Chrome) SelectByText(ctx context.Context, sel, text string) error {
	return c.query(ctx, func(scope chromedp.QueryOption) chromedp.Action {
		return chromedp.Tasks{
			chromedp.Focus(sel, chromedp.ByQuery, scope),
			chromedp.SendKeys(sel, text, chromedp.ByQuery, scope),
		}
	})
}

func (c *Chrome) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := c.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// Close closes every tab then stops the browser.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	for _, id := range slices.Backward(c.order) {
		tab := c.tabs[id]
		if tab.ctx == c.browserCtx {
			continue
		}
		tab.cancel()
	}
	if first, ok := c.tabs[c.order[0]]; ok {
		err = chromedp.Cancel(first.ctx)
		first.cancel()
	}
	c.allocCancel()
	return err
}
