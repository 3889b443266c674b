package e2e

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"sync"

	"github.com/ptgott/e2ekit/browsertest"
	"github.com/ptgott/e2ekit/smtptest"
)

const mailboxURL = "https://maildrop.cc"

// Selectors of the maildrop site the page object clicks on.
const (
	nameInput  = "main + section form input[placeholder=view-this-mailbox]"
	viewButton = "main + section form button"
	refresh    = "main button"
	messages   = "main div.message"
)

type mailboxListing struct {
	From    string
	Subject string
}

type mailboxPage struct {
	Messages []mailboxListing
	// Content is the body of the open message, if any.
	Content string
	Open    bool
}

const mailboxTmpl string = `<!doctype html>
<html>
<body>
<main>
<button>Refresh</button>
<div class="subhead">Inbox</div>
{{ range .Messages }}
<div class="message"><div>{{.From}}</div><div>now</div><div>{{.Subject}}</div></div>
{{ end }}
{{ if .Open }}<iframe srcdoc="{{.Content}}"></iframe>{{ end }}
</main>
<section><form><input placeholder="view-this-mailbox"><button>View</button></form></section>
</body>
</html>
`

var mailboxTemplate = template.Must(template.New("mailbox").Parse(mailboxTmpl))

// fakeMailbox serves a maildrop look-alike on a browsertest.Fake. The inbox
// shows the mail the SMTP server received for the alias typed in the form,
// as of the last click on Refresh.
type fakeMailbox struct {
	mu     sync.Mutex
	server *smtptest.InProcessServer
	alias  string
	shown  []smtptest.Message
}

func newFakeMailbox(f *browsertest.Fake, server *smtptest.InProcessServer) *fakeMailbox {
	mb := &fakeMailbox{server: server}
	f.SetPage(mailboxURL, mb.render(mailboxPage{}))
	f.OnClick(viewButton, mb.view)
	f.OnClick(refresh, mb.refresh)
	f.OnClick(messages, mb.open)
	return mb
}

func (mb *fakeMailbox) render(p mailboxPage) string {
	var buf bytes.Buffer
	if err := mailboxTemplate.Execute(&buf, p); err != nil {
		// This is an error with the test suite, not the library
		panic(fmt.Sprintf("error executing the mailbox template: %v", err))
	}
	return buf.String()
}

func (mb *fakeMailbox) view(f *browsertest.Fake) {
	alias, err := f.Value(context.Background(), nameInput)
	if err != nil {
		panic(fmt.Sprintf("the mailbox form has no name input: %v", err))
	}
	mb.mu.Lock()
	mb.alias = alias
	mb.shown = nil
	mb.mu.Unlock()
	f.SetHTML(mb.render(mailboxPage{}))
}

// received lists the messages sent to the current alias, newest first.
func (mb *fakeMailbox) received() []smtptest.Message {
	var r []smtptest.Message
	for _, m := range mb.server.Messages() {
		for _, to := range m.To {
			if strings.EqualFold(to, mb.alias+"@maildrop.cc") {
				r = append([]smtptest.Message{m}, r...)
				break
			}
		}
	}
	return r
}

func (mb *fakeMailbox) listings() []mailboxListing {
	l := make([]mailboxListing, 0, len(mb.shown))
	for _, m := range mb.shown {
		h, _, err := smtptest.ParseEmail(m.Data)
		if err != nil {
			panic(fmt.Sprintf("the relay received an unreadable message: %v", err))
		}
		l = append(l, mailboxListing{From: h.Get("From"), Subject: h.Get("Subject")})
	}
	return l
}

func (mb *fakeMailbox) refresh(f *browsertest.Fake) {
	mb.mu.Lock()
	mb.shown = mb.received()
	p := mailboxPage{Messages: mb.listings()}
	mb.mu.Unlock()
	f.SetHTML(mb.render(p))
}

// open shows the message whose row was clicked last.
func (mb *fakeMailbox) open(f *browsertest.Fake) {
	clicks := f.Clicks()
	last := clicks[len(clicks)-1]
	i, err := strconv.Atoi(strings.TrimSuffix(last[strings.LastIndexByte(last, '[')+1:], "]"))
	if err != nil {
		panic(fmt.Sprintf("can't tell which message was clicked from %q", last))
	}

	mb.mu.Lock()
	_, body, err := smtptest.ParseEmail(mb.shown[i].Data)
	if err != nil {
		mb.mu.Unlock()
		panic(fmt.Sprintf("the relay received an unreadable message: %v", err))
	}
	p := mailboxPage{Messages: mb.listings(), Content: body, Open: true}
	mb.mu.Unlock()
	f.SetHTML(mb.render(p))
}
