package mail

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/rs/zerolog/log"
)

// Service sends mail and finds received mail through a Provider.
type Service struct {
	provider  Provider
	relay     string
	tlsConfig *tls.Config
}

// ServiceOption tunes a Service.
type ServiceOption func(*Service)

// WithRelay makes SendMessage use the SMTP relay at addr (host:port).
func WithRelay(addr string) ServiceOption {
	return func(s *Service) { s.relay = addr }
}

// WithTLSConfig makes SendMessage verify relays offering STARTTLS with cfg,
// typically one trusting the suite's certificate authorities.
func WithTLSConfig(cfg *tls.Config) ServiceOption {
	return func(s *Service) { s.tlsConfig = cfg }
}

// NewService returns a Service reading mailboxes with p.
func NewService(p Provider, opts ...ServiceOption) *Service {
	s := &Service{provider: p, relay: DefaultRelay}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the provider the service reads mailboxes with.
func (s *Service) Provider() Provider { return s.provider }

// Name is the provider's display name.
func (s *Service) Name() string { return s.provider.Name() }

// Domains lists the provider's email domains.
func (s *Service) Domains() []string { return s.provider.Domains() }

// Relay is the SMTP relay SendMessage uses.
func (s *Service) Relay() string { return s.relay }

// SendMessage sends an HTML mail through the relay.
func (s *Service) SendMessage(from, to, subject, html string) error {
	snd, err := newSender(s.relay, s.tlsConfig)
	if err != nil {
		return err
	}
	return snd.send(from, to, subject, html)
}

// WaitForMessage opens the inbox of email, waits for it to list messages,
// and returns the content of the first one whose sender contains from and
// whose subject contains subject, ignoring case. found is false when no
// message matches; that is not an error.
//
// The wait has no deadline of its own: bound ctx to give up.
func (s *Service) WaitForMessage(ctx context.Context, email, from, subject string) (content string, found bool, err error) {
	log.Debug().Str("email", email).Msg("1/3 - opening mailbox")
	if err := s.provider.OpenInbox(ctx, email); err != nil {
		return "", false, err
	}

	log.Debug().Msg("2/3 - looking for mails")
	messages, err := s.provider.Messages(ctx)
	if err != nil {
		return "", false, err
	}
	log.Debug().Int("count", len(messages)).Msg("mails in inbox")

	i := Match(messages, from, subject)
	if i < 0 {
		log.Warn().Str("from", from).Str("subject", subject).Msg("no corresponding mail found")
		return "", false, nil
	}

	log.Debug().Int("index", i).Msg("3/3 - mail found, extracting content")
	content, err = s.provider.MessageContent(ctx, i)
	if err != nil {
		return "", false, err
	}
	return content, true, nil
}

// Match returns the index of the first message whose sender contains from
// and whose subject contains subject, ignoring case, or -1.
func Match(messages []Message, from, subject string) int {
	from, subject = strings.ToLower(from), strings.ToLower(subject)
	for i, m := range messages {
		if strings.Contains(strings.ToLower(m.From), from) &&
			strings.Contains(strings.ToLower(m.Subject), subject) {
			return i
		}
	}
	return -1
}
