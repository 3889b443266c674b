// Package mail reads disposable mailboxes through their web UI and sends
// mail through an SMTP relay.
//
// Each provider is a page object implementing Provider. Messages polls the
// inbox until something arrives with no deadline of its own: delivery
// latency is outside our control, so callers bound the wait through the
// context when they need to.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ptgott/e2ekit/browser"
)

// Message is one inbox row.
type Message struct {
	From    string
	Subject string
}

// Provider is a disposable mailbox service.
type Provider interface {
	// Name is the display name of the service.
	Name() string
	// Domains lists the email domains the service receives mail for.
	Domains() []string
	// OpenInbox shows the inbox of email in the browser.
	OpenInbox(ctx context.Context, email string) error
	// Messages waits until the open inbox lists at least one message and
	// returns the listing, newest first as the service orders it.
	Messages(ctx context.Context) ([]Message, error)
	// MessageContent opens the message at index in the last listing and
	// returns its HTML body.
	MessageContent(ctx context.Context, index int) (string, error)
}

// ProviderName selects a Provider.
type ProviderName string

const (
	MaildropName      ProviderName = "maildrop"
	YopmailName       ProviderName = "yopmail"
	GuerrillaMailName ProviderName = "guerrillamail"
)

// DefaultProvider is used when nothing else is configured.
const DefaultProvider = MaildropName

// ErrUnknownProvider is returned by NewProvider for names it doesn't know.
var ErrUnknownProvider = errors.New("unknown mail provider")

type options struct {
	interval time.Duration
	pause    func(ctx context.Context, d time.Duration) error
}

// Option tunes a Provider.
type Option func(*options)

// WithInterval overrides how often the provider polls its inbox.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithPause replaces the fixed waits the provider makes for its web UI to
// settle. Tests pass a no-op.
func WithPause(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.pause = fn }
}

func newOptions(interval time.Duration, opts []Option) options {
	o := options{interval: interval, pause: sleep}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParseProviderName checks s against the known providers, ignoring case.
func ParseProviderName(s string) (ProviderName, error) {
	switch n := ProviderName(strings.ToLower(strings.TrimSpace(s))); n {
	case MaildropName, YopmailName, GuerrillaMailName:
		return n, nil
	default:
		return "", fmt.Errorf("%w %q, expected one of %q, %q or %q",
			ErrUnknownProvider, s, MaildropName, YopmailName, GuerrillaMailName)
	}
}

// NewProvider returns the provider called name, case-insensitively, driving
// page.
func NewProvider(name ProviderName, page *browser.Page, opts ...Option) (Provider, error) {
	n, err := ParseProviderName(string(name))
	if err != nil {
		return nil, err
	}
	switch n {
	case YopmailName:
		return NewYopmail(page, opts...), nil
	case GuerrillaMailName:
		return NewGuerrillaMail(page, opts...), nil
	default:
		return NewMaildrop(page, opts...), nil
	}
}

// splitEmail cuts email at its last @.
func splitEmail(email string) (alias, domain string) {
	i := strings.LastIndexByte(email, '@')
	if i < 0 {
		return email, ""
	}
	return email[:i], email[i+1:]
}
