package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/ptgott/e2ekit/browser"
	"github.com/ptgott/e2ekit/poller"
)

const maildropURL = "https://maildrop.cc"

var maildropCSS = struct {
	nameInput, viewButton, refreshButton string
	messageZone, messages, content       string
	contentFrame                         string
}{
	nameInput:     "main + section form input[placeholder=view-this-mailbox]",
	viewButton:    "main + section form button",
	refreshButton: "main button",
	messageZone:   "main div.subhead",
	messages:      "main div.message",
	content:       "html body",
	contentFrame:  "iframe[srcdoc]",
}

var maildropListing = listing{
	container: "main",
	open:      "<main>",
	close:     "</main>",
	rows:      "main div.message",
	from:      "div:nth-of-type(1)",
	subject:   "div:nth-of-type(3)",
}

// Maildrop reads maildrop.cc inboxes.
type Maildrop struct {
	page *browser.Page
	opts options
}

// NewMaildrop returns the maildrop page object. It polls every 1.5s.
func NewMaildrop(page *browser.Page, opts ...Option) *Maildrop {
	return &Maildrop{page: page, opts: newOptions(1500*time.Millisecond, opts)}
}

func (m *Maildrop) Name() string { return "maildrop" }

func (m *Maildrop) Domains() []string { return []string{"maildrop.cc"} }

func (m *Maildrop) OpenInbox(ctx context.Context, email string) error {
	if err := m.page.OpenNewTab(ctx, "inbox", maildropURL); err != nil {
		return err
	}
	alias, _ := splitEmail(email)

	// The site rewrites the form when View is clicked without the input
	// having had the focus first.
	if err := m.page.Click(ctx, maildropCSS.nameInput); err != nil {
		return err
	}
	if err := m.opts.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	if err := m.page.FillInput(ctx, maildropCSS.nameInput, alias); err != nil {
		return err
	}
	if err := m.opts.pause(ctx, 300*time.Millisecond); err != nil {
		return err
	}
	if err := m.page.Click(ctx, maildropCSS.viewButton); err != nil {
		return err
	}
	return m.page.WaitElementExists(ctx, maildropCSS.refreshButton)
}

func (m *Maildrop) Messages(ctx context.Context) ([]Message, error) {
	err := poller.Until(ctx, m.opts.interval, func(ctx context.Context) (bool, error) {
		if err := m.page.Click(ctx, maildropCSS.refreshButton); err != nil {
			return false, err
		}
		if err := m.page.WaitElementDisplayed(ctx, maildropCSS.messageZone); err != nil {
			return false, err
		}
		return m.page.VerifyElementExists(ctx, maildropCSS.messages), nil
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for maildrop messages: %w", err)
	}
	return maildropListing.read(ctx, m.page)
}

func (m *Maildrop) MessageContent(ctx context.Context, index int) (string, error) {
	if err := m.page.ClickAt(ctx, maildropCSS.messages, index); err != nil {
		return "", err
	}
	m.page.SwitchToFrame(ctx, maildropCSS.contentFrame)
	defer m.page.SwitchToFrame(ctx, "")
	return m.page.GetHTML(ctx, maildropCSS.content)
}
