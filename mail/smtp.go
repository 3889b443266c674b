package mail

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	gomail "gopkg.in/gomail.v2"
)

const smtpScheme string = "smtp://"

// DefaultRelay is the SMTP relay SendMessage uses unless told otherwise.
const DefaultRelay = "smtp.als.lan:25"

// sender sends HTML mail through an unauthenticated relay. STARTTLS is used
// when the relay offers it.
type sender struct {
	dialer *gomail.Dialer
}

// newSender parses relay as host:port, with or without an smtp:// scheme.
// STARTTLS verifies the relay against the roots of tlsConfig when it is not
// nil.
func newSender(relay string, tlsConfig *tls.Config) (*sender, error) {
	// Don't require the user to include a scheme.
	ra := relay
	if !strings.HasPrefix(ra, smtpScheme) {
		ra = smtpScheme + ra
	}

	u, err := url.Parse(ra)
	if err != nil {
		return nil, fmt.Errorf("can't parse the SMTP relay %q: %w", relay, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("the SMTP relay %q has no host", relay)
	}

	p, err := strconv.Atoi(u.Port())
	if err != nil {
		return nil, fmt.Errorf("the SMTP relay %q has no valid port: %w", relay, err)
	}

	d := gomail.NewDialer(u.Hostname(), p, "", "")
	if tlsConfig != nil {
		d.TLSConfig = tlsConfig.Clone()
		d.TLSConfig.ServerName = u.Hostname()
	}
	return &sender{dialer: d}, nil
}

func (s *sender) send(from, to, subject, html string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	return s.dialer.DialAndSend(m)
}
