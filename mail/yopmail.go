package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ptgott/e2ekit/browser"
	"github.com/ptgott/e2ekit/poller"
)

const yopmailURL = "https://yopmail.com"

var yopmailCSS = struct {
	refreshButton, acceptPopup, popup string
	messages, content                 string
	inboxFrame, messageFrame          string
}{
	refreshButton: "#refresh",
	acceptPopup:   "button[aria-label=Autoriser]",
	popup:         "div.fc-consent-root",
	messages:      "div.m",
	content:       "#mail",
	inboxFrame:    "iframe[name=ifinbox]",
	messageFrame:  "iframe[name=ifmail]",
}

var yopmailListing = listing{
	container: "body",
	rows:      "div.m",
	from:      "div.lmfd span.lmf",
	subject:   "div.lms",
}

// Yopmail reads yopmail.com inboxes. The inbox and the open message live in
// two iframes of the main page.
type Yopmail struct {
	page *browser.Page
	opts options
}

// NewYopmail returns the YOPmail page object. It polls every 1.5s.
func NewYopmail(page *browser.Page, opts ...Option) *Yopmail {
	return &Yopmail{page: page, opts: newOptions(1500*time.Millisecond, opts)}
}

func (y *Yopmail) Name() string { return "YOPmail!" }

func (y *Yopmail) Domains() []string { return []string{"yopmail.com"} }

// OpenInbox dismisses the consent popup when it shows up within 2s.
func (y *Yopmail) OpenInbox(ctx context.Context, email string) error {
	if err := y.page.OpenNewTab(ctx, "inbox", yopmailURL+"?"+email); err != nil {
		return err
	}
	if y.page.VerifyElementExistsDuring(ctx, yopmailCSS.popup, 2*time.Second) {
		log.Debug().Msg("yopmail popup detected")
		return y.page.Click(ctx, yopmailCSS.acceptPopup)
	}
	return nil
}

func (y *Yopmail) Messages(ctx context.Context) ([]Message, error) {
	err := poller.Until(ctx, y.opts.interval, func(ctx context.Context) (bool, error) {
		// Let the inbox settle, the first time too.
		if err := y.opts.pause(ctx, y.opts.interval); err != nil {
			return false, err
		}
		// The refresh button belongs to the main page.
		y.page.SwitchToFrame(ctx, "")
		if err := y.page.Click(ctx, yopmailCSS.refreshButton); err != nil {
			return false, err
		}
		if err := y.opts.pause(ctx, 500*time.Millisecond); err != nil {
			return false, err
		}
		y.page.SwitchToFrame(ctx, yopmailCSS.inboxFrame)
		return y.page.VerifyElementExists(ctx, yopmailCSS.messages), nil
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for yopmail messages: %w", err)
	}
	return yopmailListing.read(ctx, y.page)
}

// MessageContent expects the inbox frame to be current, as Messages leaves
// it.
func (y *Yopmail) MessageContent(ctx context.Context, index int) (string, error) {
	if err := y.page.ClickAt(ctx, yopmailCSS.messages, index); err != nil {
		return "", err
	}
	y.page.SwitchToFrame(ctx, "")
	y.page.SwitchToFrame(ctx, yopmailCSS.messageFrame)
	defer y.page.SwitchToFrame(ctx, "")
	return y.page.GetHTML(ctx, yopmailCSS.content)
}
