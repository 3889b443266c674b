package smtptest

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/emersion/go-smtp"
)

// Message is a mail received by the server.
type Message struct {
	From     string
	To       []string
	Data     string
	Received time.Time
}

// Backend implements smtp.Backend. Like a company relay, it accepts mail
// with or without authentication.
type Backend struct {
	*InMemoryEmailStore
}

// Login implements smtp.Backend. Any username/password is fine, since we
// don't want to couple this with specific test configurations.
func (be *Backend) Login(_ *smtp.ConnectionState, username string, password string) (smtp.Session, error) {
	if username == "" || password == "" {
		return nil, errors.New("no username or password provided")
	}
	return &session{store: be.InMemoryEmailStore}, nil
}

// AnonymousLogin implements smtp.Backend.
func (be *Backend) AnonymousLogin(_ *smtp.ConnectionState) (smtp.Session, error) {
	return &session{store: be.InMemoryEmailStore}, nil
}

// session collects one message at a time for a connection.
type session struct {
	store *InMemoryEmailStore
	from  string
	to    []string
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error { return nil }

func (s *session) Mail(from string, _ smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *session) Rcpt(to string) error {
	s.to = append(s.to, to)
	return nil
}

// Data stores the message in memory for retrieval at the end of the test.
func (s *session) Data(r io.Reader) error {
	// doubtful we'll get an email this big, but we need a limit
	var maxEmailSize int64 = 100 * units.MiB
	buf, err := io.ReadAll(io.LimitReader(r, maxEmailSize))
	if err != nil {
		return err
	}
	s.store.save(Message{
		From:     s.from,
		To:       append([]string(nil), s.to...),
		Data:     string(buf),
		Received: time.Now(),
	})
	return nil
}

// InMemoryEmailStore retains received messages for comparison against a
// test's expected output. It is safe for concurrent use.
type InMemoryEmailStore struct {
	mu       sync.Mutex
	messages []Message
}

func (es *InMemoryEmailStore) save(m Message) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.messages = append(es.messages, m)
}

// Messages returns every message received so far.
func (es *InMemoryEmailStore) Messages() []Message {
	es.mu.Lock()
	defer es.mu.Unlock()
	return append([]Message(nil), es.messages...)
}

// RetrieveEmails returns the raw data of the messages received at or after
// epoch nanoseconds t.
func (es *InMemoryEmailStore) RetrieveEmails(t int64) ([]string, error) {
	es.mu.Lock()
	defer es.mu.Unlock()
	r := make([]string, 0, len(es.messages))
	for _, m := range es.messages {
		if m.Received.UnixNano() >= t {
			r = append(r, m.Data)
		}
	}
	return r, nil
}

// InProcessServer is a plain SMTP relay running in the test process on a
// free loopback port.
type InProcessServer struct {
	*smtp.Server
	*InMemoryEmailStore
	listener net.Listener
}

// NewInProcessServer creates an InProcessServer storing incoming messages
// in memory. Call Start before sending to it.
func NewInProcessServer() *InProcessServer {
	is := &InMemoryEmailStore{}

	srv := smtp.NewServer(&Backend{is})
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true
	// Strict is undocumented, but it looks like it enforces <address> syntax
	// in messages.
	srv.Strict = true

	return &InProcessServer{
		Server:             srv,
		InMemoryEmailStore: is,
	}
}

// Start listens on a free loopback port and serves in the background.
func (is *InProcessServer) Start() error {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	is.listener = l
	is.Server.Addr = l.Addr().String()
	go is.Server.Serve(l)
	return nil
}

// Close shuts down the server. You must initialize a new InProcessServer
// instead of restarting this one.
func (is *InProcessServer) Close() {
	is.Server.Close()
}

// Address returns the host:port of the server once started.
func (is *InProcessServer) Address() string {
	return is.Server.Addr
}
