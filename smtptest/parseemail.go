package smtptest

import (
	"fmt"
	"io"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// ParseEmail splits a raw message into its headers and its decoded body.
// Quoted-printable bodies, which is what gomail produces for HTML, are
// decoded.
func ParseEmail(raw string) (mail.Header, string, error) {
	m, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("can't parse the message: %w", err)
	}

	var body io.Reader = m.Body
	if strings.EqualFold(m.Header.Get("Content-Transfer-Encoding"), "quoted-printable") {
		body = quotedprintable.NewReader(m.Body)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("can't read the message body: %w", err)
	}
	return m.Header, string(b), nil
}
