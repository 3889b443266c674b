package e2e

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ptgott/e2ekit/browser"
	"github.com/ptgott/e2ekit/browsertest"
	"github.com/ptgott/e2ekit/smtptest"
	"github.com/ptgott/e2ekit/testcontext"
)

// testEnvironmentConfig exposes options that may vary between tests without
// being buried inside functions.
type testEnvironmentConfig struct {
	// dataset is the content of data/default.json
	dataset string
	// parameters of the "staging" environment
	parameters map[string]any
}

// testEnvironment manages everything a suite talks to. Callers should
// create it with startTestEnvironment, which registers its teardown.
type testEnvironment struct {
	SMTPServer *smtptest.InProcessServer
	Browser    *browsertest.Fake
	Mailbox    *fakeMailbox
	root       string
}

// startTestEnvironment starts the relay and the fake browser, and writes the
// dataset in a temporary suite root.
func startTestEnvironment(t *testing.T, c testEnvironmentConfig) *testEnvironment {
	t.Helper()
	te := &testEnvironment{root: t.TempDir()}

	if err := os.MkdirAll(filepath.Join(te.root, "data"), 0o755); err != nil {
		t.Fatalf("could not create the data directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(te.root, "data", "default.json"), []byte(c.dataset), 0o644); err != nil {
		t.Fatalf("could not write the dataset: %v", err)
	}

	te.SMTPServer = smtptest.NewInProcessServer()
	if err := te.SMTPServer.Start(); err != nil {
		t.Fatalf("error starting the SMTP server: %v", err)
	}
	t.Cleanup(te.SMTPServer.Close)

	te.Browser = browsertest.New()
	te.Mailbox = newFakeMailbox(te.Browser, te.SMTPServer)
	return te
}

// suite returns a context wired to the environment, as a TestMain would
// build it.
func (te *testEnvironment) suite(c testEnvironmentConfig) *testcontext.TestContext {
	page := browser.NewPage(te.Browser)
	page.Timeout = 5 * time.Second
	page.Interval = time.Millisecond

	return testcontext.New().
		SetRoot(te.root).
		SetEnvironment("staging", c.parameters).
		SetEnvironment("prod", nil).
		SetPage(page).
		SetSMTPRelay(te.SMTPServer.Address()).
		SetPollInterval(10 * time.Millisecond)
}
