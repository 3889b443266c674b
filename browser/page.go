package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ptgott/e2ekit/poller"
)

// Tabs maps tab names chosen by page objects to browser tabs. Page objects
// sharing a Tabs value can switch to each other's tabs by name.
type Tabs struct {
	mu    sync.Mutex
	names []string
	ids   map[string]TabID
}

func (t *Tabs) set(name string, id TabID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ids == nil {
		t.ids = make(map[string]TabID)
	}
	if _, ok := t.ids[name]; !ok {
		t.names = append(t.names, name)
	}
	t.ids[name] = id
}

func (t *Tabs) get(name string) (TabID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.ids[name]
	return id, ok
}

// Page holds the helpers every page object is built from. Helpers that wait
// give up after Timeout and return an error wrapping poller.ErrTimeout.
type Page struct {
	s        *session
	tabs     *Tabs
	Timeout  time.Duration
	Interval time.Duration
}

type session struct {
	mu     sync.RWMutex
	driver Driver
}

// NewPage returns a Page using d. d may be nil and attached later with
// Attach.
func NewPage(d Driver) *Page {
	return &Page{
		s:        &session{driver: d},
		tabs:     &Tabs{},
		Timeout:  DefaultTimeout(),
		Interval: DefaultPollInterval,
	}
}

// Attach makes p and every copy made by WithTimeout use d.
func (p *Page) Attach(d Driver) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.driver = d
}

// Driver returns the attached driver, or nil.
func (p *Page) Driver() Driver {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	return p.s.driver
}

// WithTimeout returns a copy of p sharing its driver and tabs with another
// timeout.
func (p *Page) WithTimeout(d time.Duration) *Page {
	c := *p
	c.Timeout = d
	return &c
}

func (p *Page) d() (Driver, error) {
	d := p.Driver()
	if d == nil {
		return nil, ErrNoDriver
	}
	return d, nil
}

// waitFor polls cond until it holds or p.Timeout elapses. what describes the
// awaited state in errors.
func (p *Page) waitFor(ctx context.Context, what string, cond func(ctx context.Context, d Driver) (bool, error)) error {
	d, err := p.d()
	if err != nil {
		return err
	}
	err = poller.WaitUntil(ctx, p.Timeout, p.Interval, func(ctx context.Context) (bool, error) {
		return cond(ctx, d)
	})
	if err != nil {
		return fmt.Errorf("waiting until %s: %w", what, err)
	}
	return nil
}

// SetURL loads url in the current tab and names that tab.
func (p *Page) SetURL(ctx context.Context, tabName, url string) error {
	d, err := p.d()
	if err != nil {
		return err
	}
	if err := d.Navigate(ctx, url); err != nil {
		return err
	}
	id, err := d.CurrentTab(ctx)
	if err != nil {
		return err
	}
	p.tabs.set(tabName, id)
	return nil
}

// OpenNewTab opens url in a tab named tabName. A tab already known under
// that name is reused.
func (p *Page) OpenNewTab(ctx context.Context, tabName, url string) error {
	d, err := p.d()
	if err != nil {
		return err
	}
	if id, ok := p.tabs.get(tabName); ok {
		if err := d.SwitchTab(ctx, id); err != nil {
			return err
		}
		return d.Navigate(ctx, url)
	}
	id, err := d.NewTab(ctx, url)
	if err != nil {
		return err
	}
	p.tabs.set(tabName, id)
	return nil
}

// SwitchToTab makes the tab named tabName current.
func (p *Page) SwitchToTab(ctx context.Context, tabName string) error {
	d, err := p.d()
	if err != nil {
		return err
	}
	id, ok := p.tabs.get(tabName)
	if !ok {
		return fmt.Errorf("no tab named %q", tabName)
	}
	return d.SwitchTab(ctx, id)
}

// SwitchToLastOpenedTab makes the most recently opened tab current.
func (p *Page) SwitchToLastOpenedTab(ctx context.Context) error {
	d, err := p.d()
	if err != nil {
		return err
	}
	ids, err := d.Tabs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("no tab is open")
	}
	return d.SwitchTab(ctx, ids[len(ids)-1])
}

// DebugTabs logs the URL of every named tab. It leaves the last named tab
// current.
func (p *Page) DebugTabs(ctx context.Context) {
	d, err := p.d()
	if err != nil {
		log.Error().Err(err).Msg("can't list tabs")
		return
	}
	p.tabs.mu.Lock()
	names := append([]string(nil), p.tabs.names...)
	p.tabs.mu.Unlock()

	for _, name := range names {
		id, _ := p.tabs.get(name)
		if err := d.SwitchTab(ctx, id); err != nil {
			log.Error().Err(err).Str("tab", name).Msg("tab not available")
			continue
		}
		url, err := d.URL(ctx)
		if err != nil {
			log.Error().Err(err).Str("tab", name).Msg("can't read the tab URL")
			continue
		}
		log.Debug().Str("tab", name).Str("url", url).Msg("tab")
	}
}

// SwitchToFrame scopes the page to the iframe matching sel, or back to the
// top-level document when sel is empty. Failures are logged only.
func (p *Page) SwitchToFrame(ctx context.Context, sel string) {
	d, err := p.d()
	if err == nil {
		err = d.SwitchFrame(ctx, sel)
	}
	if err != nil {
		log.Error().Err(err).Str("frame", sel).Msg("can't switch frame")
	}
}

// GetText waits for sel to be displayed and returns its text.
func (p *Page) GetText(ctx context.Context, sel string) (string, error) {
	if err := p.WaitElementDisplayed(ctx, sel); err != nil {
		return "", err
	}
	return p.Driver().Text(ctx, sel)
}

// GetValue waits for sel to be displayed and returns its value.
func (p *Page) GetValue(ctx context.Context, sel string) (string, error) {
	if err := p.WaitElementDisplayed(ctx, sel); err != nil {
		return "", err
	}
	return p.Driver().Value(ctx, sel)
}

// GetHTML waits for sel to be displayed and returns its inner HTML.
func (p *Page) GetHTML(ctx context.Context, sel string) (string, error) {
	if err := p.WaitElementDisplayed(ctx, sel); err != nil {
		return "", err
	}
	return p.Driver().HTML(ctx, sel)
}

// GetSelectOptions waits for the select sel to have at least n options and
// returns their values.
func (p *Page) GetSelectOptions(ctx context.Context, sel string, n int) ([]string, error) {
	opts := sel + " option"
	if err := p.WaitElementHasChildren(ctx, opts, n); err != nil {
		return nil, err
	}
	count, err := p.Driver().Count(ctx, opts)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		v, err := p.Driver().Value(ctx, fmt.Sprintf("%s:nth-of-type(%d)", opts, i))
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// GetSelectSelectedText returns the text of the selected option of sel.
func (p *Page) GetSelectSelectedText(ctx context.Context, sel string, n int) (string, error) {
	if err := p.WaitElementHasChildren(ctx, sel+" option", n); err != nil {
		return "", err
	}
	return p.Driver().Text(ctx, sel+" option:checked")
}

// GetSelectSelectedValue returns the value of the selected option of sel.
func (p *Page) GetSelectSelectedValue(ctx context.Context, sel string, n int) (string, error) {
	if err := p.WaitElementHasChildren(ctx, sel+" option", n); err != nil {
		return "", err
	}
	return p.Driver().Value(ctx, sel+" option:checked")
}

// VerifyElementExists reports whether sel matches anything right now. Errors
// count as absence.
func (p *Page) VerifyElementExists(ctx context.Context, sel string) bool {
	d, err := p.d()
	if err != nil {
		return false
	}
	n, err := d.Count(ctx, sel)
	return err == nil && n > 0
}

// VerifyElementExistsDuring checks once a second, for at most period,
// whether sel matches anything. It never fails.
func (p *Page) VerifyElementExistsDuring(ctx context.Context, sel string, period time.Duration) bool {
	ok, err := poller.During(ctx, period, time.Second, func(ctx context.Context) (bool, error) {
		return p.VerifyElementExists(ctx, sel), nil
	})
	return err == nil && ok
}

// WaitElementExists waits until sel matches something.
func (p *Page) WaitElementExists(ctx context.Context, sel string) error {
	return p.WaitElementHasChildren(ctx, sel, 1)
}

// WaitElementHasChildren waits until sel matches at least n elements.
func (p *Page) WaitElementHasChildren(ctx context.Context, sel string, n int) error {
	return p.waitFor(ctx, fmt.Sprintf("%q matches %d elements", sel, n), func(ctx context.Context, d Driver) (bool, error) {
		c, err := d.Count(ctx, sel)
		return err == nil && c >= n, nil
	})
}

// WaitTextChanged waits until the text of sel no longer contains oldText and
// returns the new text.
func (p *Page) WaitTextChanged(ctx context.Context, sel, oldText string) (string, error) {
	var text string
	err := p.waitFor(ctx, fmt.Sprintf("%q loses text %q", sel, oldText), func(ctx context.Context, d Driver) (bool, error) {
		t, err := d.Text(ctx, sel)
		if err != nil {
			return false, nil
		}
		text = t
		return !strings.Contains(t, oldText), nil
	})
	return text, err
}

// WaitElementHasText waits until the text of sel contains text.
func (p *Page) WaitElementHasText(ctx context.Context, sel, text string) error {
	return p.waitFor(ctx, fmt.Sprintf("%q has text %q", sel, text), func(ctx context.Context, d Driver) (bool, error) {
		t, err := d.Text(ctx, sel)
		return err == nil && strings.Contains(t, text), nil
	})
}

// WaitElementHasValue waits until the value of sel is value.
func (p *Page) WaitElementHasValue(ctx context.Context, sel, value string) error {
	return p.waitFor(ctx, fmt.Sprintf("%q has value %q", sel, value), func(ctx context.Context, d Driver) (bool, error) {
		v, err := d.Value(ctx, sel)
		return err == nil && v == value, nil
	})
}

// WaitElementRemoved waits until sel matches nothing.
func (p *Page) WaitElementRemoved(ctx context.Context, sel string) error {
	return p.waitFor(ctx, fmt.Sprintf("%q is removed", sel), func(ctx context.Context, d Driver) (bool, error) {
		n, err := d.Count(ctx, sel)
		return err == nil && n == 0, nil
	})
}

// WaitElementClickable waits until sel is displayed and enabled.
func (p *Page) WaitElementClickable(ctx context.Context, sel string) error {
	return p.waitFor(ctx, fmt.Sprintf("%q is clickable", sel), func(ctx context.Context, d Driver) (bool, error) {
		return clickable(ctx, d, sel), nil
	})
}

func clickable(ctx context.Context, d Driver, sel string) bool {
	shown, err := d.Displayed(ctx, sel)
	if err != nil || !shown {
		return false
	}
	enabled, err := d.Enabled(ctx, sel)
	return err == nil && enabled
}

// WaitElementDisplayed waits until sel is displayed.
func (p *Page) WaitElementDisplayed(ctx context.Context, sel string) error {
	return p.waitFor(ctx, fmt.Sprintf("%q is displayed", sel), func(ctx context.Context, d Driver) (bool, error) {
		shown, err := d.Displayed(ctx, sel)
		return err == nil && shown, nil
	})
}

// WaitElementHidden waits until sel is not displayed.
func (p *Page) WaitElementHidden(ctx context.Context, sel string) error {
	return p.waitFor(ctx, fmt.Sprintf("%q is hidden", sel), func(ctx context.Context, d Driver) (bool, error) {
		shown, err := d.Displayed(ctx, sel)
		return err == nil && !shown, nil
	})
}

// WaitURLEndsWith waits until the current URL ends with text.
func (p *Page) WaitURLEndsWith(ctx context.Context, text string) error {
	return p.waitURL(ctx, "ends with "+text, func(url string) bool { return strings.HasSuffix(url, text) })
}

// WaitURLContains waits until the current URL contains text.
func (p *Page) WaitURLContains(ctx context.Context, text string) error {
	return p.waitURL(ctx, "contains "+text, func(url string) bool { return strings.Contains(url, text) })
}

// WaitURLIsNoMore waits until the current URL differs from url.
func (p *Page) WaitURLIsNoMore(ctx context.Context, url string) error {
	return p.waitURL(ctx, "is no more "+url, func(u string) bool { return u != url })
}

func (p *Page) waitURL(ctx context.Context, what string, match func(string) bool) error {
	return p.waitFor(ctx, "the URL "+what, func(ctx context.Context, d Driver) (bool, error) {
		url, err := d.URL(ctx)
		return err == nil && match(url), nil
	})
}

// Click waits for sel to be clickable and clicks it.
func (p *Page) Click(ctx context.Context, sel string) error {
	if err := p.WaitElementClickable(ctx, sel); err != nil {
		return err
	}
	return p.Driver().Click(ctx, sel)
}

// ClickAt waits until sel matches more than index elements and clicks the
// one at index.
func (p *Page) ClickAt(ctx context.Context, sel string, index int) error {
	if err := p.WaitElementHasChildren(ctx, sel, index+1); err != nil {
		return err
	}
	return p.Driver().ClickAt(ctx, sel, index)
}

// ClickIn clicks the element matching sel inside the element matching
// parent.
func (p *Page) ClickIn(ctx context.Context, parent, sel string) error {
	return p.Click(ctx, parent+" "+sel)
}

// Check ticks the checkbox or radio button sel.
func (p *Page) Check(ctx context.Context, sel string) error {
	return p.Click(ctx, sel)
}

// FillInput waits for sel to be enabled, types text into it, then tabs out.
func (p *Page) FillInput(ctx context.Context, sel, text string) error {
	err := p.waitFor(ctx, fmt.Sprintf("%q is enabled", sel), func(ctx context.Context, d Driver) (bool, error) {
		enabled, err := d.Enabled(ctx, sel)
		return err == nil && enabled, nil
	})
	if err != nil {
		return err
	}
	return p.Driver().Fill(ctx, sel, text)
}

// SelectItem waits for the select sel to be populated then picks the option
// showing text.
func (p *Page) SelectItem(ctx context.Context, sel, text string) error {
	if err := p.WaitElementHasChildren(ctx, sel+" option", 2); err != nil {
		return err
	}
	if err := p.Click(ctx, sel); err != nil {
		return err
	}
	return p.Driver().SelectByText(ctx, sel, text)
}

// URL returns the address of the current tab.
func (p *Page) URL(ctx context.Context) (string, error) {
	d, err := p.d()
	if err != nil {
		return "", err
	}
	return d.URL(ctx)
}

// Screenshot captures the current tab.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	d, err := p.d()
	if err != nil {
		return nil, err
	}
	return d.Screenshot(ctx)
}
