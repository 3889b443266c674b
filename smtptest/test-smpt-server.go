// Package smtptest runs an SMTP relay inside the test process so that code
// sending mail can be checked without a real relay.
package smtptest

// Server is an SMTP server able to return the payloads of messages sent to
// it during a test. It is meant to start during a test (or test suite) and
// stop right after.
type Server interface {
	// Start launches the server and returns an error if this fails. Retry
	// behavior is left to the caller.
	Start() error

	// Close stops the server. It doesn't return an error so it's easier to
	// use with defer.
	Close()

	// RetrieveEmails returns the payloads of all email messages sent to the
	// server after time t in Unix epoch nanoseconds.
	RetrieveEmails(t int64) ([]string, error)

	// Address returns the host:port of the server.
	Address() string
}

var _ Server = (*InProcessServer)(nil)
