package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ptgott/e2ekit/browser"
	"github.com/ptgott/e2ekit/dom"
	"github.com/ptgott/e2ekit/poller"
)

const guerrillaMailURL = "https://www.guerrillamail.com/fr/inbox"

// Guerrilla Mail always lists its own welcome message first.
const guerrillaMailSentinel = "no-reply@guerrillamail.com"

var guerrillaMailCSS = struct {
	aliasButton, aliasInput, setButton, consentButton string
	domainSelect, messages, content, popup            string
	firstFrom                                         string
}{
	aliasButton:   "#inbox-id",
	aliasInput:    "#inbox-id input",
	setButton:     "button.save",
	consentButton: "div.fc-consent-root button[aria-label=Consent]",
	domainSelect:  "#gm-host-select",
	messages:      "#email_list tr",
	content:       "div.email_body",
	popup:         "div.fc-consent-root",
	firstFrom:     "#email_list tr:nth-of-type(1) td.td2",
}

var guerrillaMailListing = listing{
	container: "#email_list",
	open:      `<table><tbody id="email_list">`,
	close:     "</tbody></table>",
	rows:      "#email_list tr",
	from:      "td:nth-of-type(2)",
	subject:   "td:nth-of-type(3)",
}

// GuerrillaMail reads guerrillamail.com inboxes.
type GuerrillaMail struct {
	page *browser.Page
	opts options
}

// NewGuerrillaMail returns the Guerrilla Mail page object. It polls every
// second.
func NewGuerrillaMail(page *browser.Page, opts ...Option) *GuerrillaMail {
	return &GuerrillaMail{page: page, opts: newOptions(time.Second, opts)}
}

func (g *GuerrillaMail) Name() string { return "Guerilla Mail" }

func (g *GuerrillaMail) Domains() []string {
	return []string{
		"sharklasers.com",
		"guerrillamail.info",
		"grr.la",
		"guerrillamail.biz",
		"guerrillamail.com",
		"guerrillamail.de",
		"guerrillamail.net",
		"guerrillamail.org",
		"guerrillamailblock.com",
		"pokemail.net",
		"spam4.me",
	}
}

// OpenInbox dismisses the consent popup when it shows up within 5s, then
// sets the alias and the domain of email.
func (g *GuerrillaMail) OpenInbox(ctx context.Context, email string) error {
	if err := g.page.OpenNewTab(ctx, "inbox", guerrillaMailURL); err != nil {
		return err
	}
	if g.page.VerifyElementExistsDuring(ctx, guerrillaMailCSS.popup, 5*time.Second) {
		log.Debug().Msg("guerrilla mail popup detected")
		if err := g.page.Click(ctx, guerrillaMailCSS.consentButton); err != nil {
			return err
		}
	}

	alias, domain := splitEmail(email)
	if err := g.page.Click(ctx, guerrillaMailCSS.aliasButton); err != nil {
		return err
	}
	if err := g.page.FillInput(ctx, guerrillaMailCSS.aliasInput, alias); err != nil {
		return err
	}
	if err := g.page.Click(ctx, guerrillaMailCSS.setButton); err != nil {
		return err
	}
	return g.page.SelectItem(ctx, guerrillaMailCSS.domainSelect, domain)
}

// RetrieveDomains reads the domains offered by the open inbox page.
func (g *GuerrillaMail) RetrieveDomains(ctx context.Context) ([]string, error) {
	return g.page.GetSelectOptions(ctx, guerrillaMailCSS.domainSelect, 1)
}

// Messages waits for a row other than the welcome message. The welcome
// message stays in the listing so that indexes match the page.
func (g *GuerrillaMail) Messages(ctx context.Context) ([]Message, error) {
	err := poller.Until(ctx, g.opts.interval, func(ctx context.Context) (bool, error) {
		markup, err := g.page.GetHTML(ctx, guerrillaMailListing.container)
		if err != nil {
			return false, err
		}
		return hasGuerrillaMessages(markup), nil
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for guerrilla mail messages: %w", err)
	}
	return guerrillaMailListing.read(ctx, g.page)
}

func hasGuerrillaMessages(markup string) bool {
	doc := dom.Parse(guerrillaMailListing.open + markup + guerrillaMailListing.close)
	n, err := dom.First(doc, guerrillaMailCSS.firstFrom)
	if err != nil {
		return false
	}
	return dom.Text(n) != guerrillaMailSentinel
}

func (g *GuerrillaMail) MessageContent(ctx context.Context, index int) (string, error) {
	if err := g.page.ClickAt(ctx, guerrillaMailCSS.messages, index); err != nil {
		return "", err
	}
	return g.page.GetHTML(ctx, guerrillaMailCSS.content)
}
