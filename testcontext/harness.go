package testcontext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ptgott/e2ekit/browser"
	"github.com/ptgott/e2ekit/logging"
	"github.com/ptgott/e2ekit/mail"
	"github.com/ptgott/e2ekit/userconfig"
)

// Runner runs the tests of a package; *testing.M is one.
type Runner interface {
	Run() int
}

// Main initializes tc and runs the tests, for use in TestMain. The process
// exits with code 1 when the context can't be initialized.
func Main(m Runner, tc *TestContext) {
	os.Exit(run(m, tc))
}

func run(m Runner, tc *TestContext) int {
	if err := tc.Initialize(); err != nil {
		logging.DetailError(err)
		return 1
	}
	log.Debug().Object("context", tc).Msg("test context")
	return m.Run()
}

// FromConfig returns a context configured by a validated suite config.
func FromConfig(meta userconfig.Meta) *TestContext {
	tc := New().
		SetLogLevel(meta.LogLevel).
		SetMailProvider(mail.ProviderName(meta.MailProvider)).
		SetDefaultDataset(meta.DefaultDataset).
		SetUserStore(meta.UserStore).
		SetSMTPRelay(meta.SMTPRelay)
	if meta.Polling != nil {
		tc.SetPollInterval(meta.Polling.Interval)
	}
	for _, e := range meta.Environments {
		tc.SetEnvironment(e.Name, e.Parameters, EnvironmentOptions{PerEnvironmentData: e.PerEnvironmentData})
	}
	return tc
}

// screenshotTimeout bounds the capture made after a failed test.
const screenshotTimeout = 30 * time.Second

// AfterTest saves a description of the test and a screenshot of page under
// screenshot/<environment>/<dataset> when t fails. Failures to do so are
// only logged.
func (tc *TestContext) AfterTest(t testing.TB, page *browser.Page) {
	t.Cleanup(func() {
		if !t.Failed() {
			return
		}
		if err := tc.saveFailure(t.Name(), page); err != nil {
			logging.DetailError(err)
		}
	})
}

func (tc *TestContext) saveFailure(name string, page *browser.Page) error {
	folder := filepath.Join(tc.root, "screenshot", tc.EnvironmentName(), tc.Dataset())
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return err
	}
	base := filepath.Join(folder, "error-"+time.Now().Format("2006-01-02_15-04-05"))

	ctx, cancel := context.WithTimeout(context.Background(), screenshotTimeout)
	defer cancel()

	content := fmt.Sprintf("Test : %s\nEnvironnement : %s\nJeu de données : %s\n", name, tc.EnvironmentName(), tc.Dataset())
	if page != nil {
		if u, err := page.URL(ctx); err == nil {
			content += "URL : " + u + "\n"
		}
	}
	if err := os.WriteFile(base+".txt", []byte(content), 0o644); err != nil {
		return err
	}

	if page == nil {
		return nil
	}
	png, err := page.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("can't capture the screenshot of %s: %w", name, err)
	}
	return os.WriteFile(base+".png", png, 0o644)
}
