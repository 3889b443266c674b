// Package testcontext builds the context of an end-to-end test run: the
// target environment and its parameters, the dataset, a randomly generated
// user, and the mail service used to read that user's mailbox.
//
// A suite registers its environments, then calls Initialize once, usually
// through Main from TestMain. Initialize fails with an error wrapping
// ErrConfiguration when the run cannot proceed.
package testcontext

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ptgott/e2ekit/browser"
	"github.com/ptgott/e2ekit/certs"
	"github.com/ptgott/e2ekit/logging"
	"github.com/ptgott/e2ekit/mail"
	"github.com/ptgott/e2ekit/storage"
	"github.com/ptgott/e2ekit/user"
)

// Environment variables read by the context.
const (
	EnvTargetEnv    = "TARGET_ENV"
	EnvDataset      = "DATASET"
	EnvMailProvider = "MAILPROVIDER"
	EnvEmail        = "EMAIL"
	EnvUserPassword = "USER_PASSWORD"
)

// DefaultDataset is used when neither DATASET nor SetDefaultDataset name one.
const DefaultDataset = "default"

// ErrConfiguration marks errors that make the run impossible.
var ErrConfiguration = errors.New("configuration error")

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// EnvironmentOptions tune how an environment is set up.
type EnvironmentOptions struct {
	// PerEnvironmentData reads datasets from data/<environment> instead of
	// data.
	PerEnvironmentData bool
}

// EnvironmentConfiguration is a registered environment.
type EnvironmentConfiguration struct {
	Parameters map[string]any
	Options    EnvironmentOptions
}

// DataGenerator produces data merged over the dataset. It receives the
// context before the dataset and the generated user are merged, so only the
// environment and the dataset name are meaningful.
type DataGenerator func(tc *TestContext) (map[string]any, error)

// TestContext is the context of a run. Configure it with the Set methods,
// call Initialize, then only read it.
type TestContext struct {
	root           string
	envNames       []string
	environments   map[string]EnvironmentConfiguration
	mailProvider   mail.ProviderName
	defaultDataset string
	dataGenerator  DataGenerator
	userStore      storage.Kind
	smtpRelay      string
	pollInterval   time.Duration
	page           *browser.Page
	generator      *user.Generator

	initialized bool
	envName     string
	dataset     string
	dataFolder  string
	user        user.TestUser
	mailService *mail.Service
	data        map[string]any
	authorities certs.Authorities
}

// New returns an empty context for a suite rooted at the working directory.
func New() *TestContext {
	return &TestContext{
		root:         ".",
		environments: make(map[string]EnvironmentConfiguration),
		generator:    user.NewGenerator(0),
	}
}

// SetRoot changes the folder holding the data, ca and screenshot folders.
func (tc *TestContext) SetRoot(dir string) *TestContext {
	tc.root = dir
	return tc
}

// SetEnvironment registers an environment. The first one registered is the
// default.
func (tc *TestContext) SetEnvironment(name string, parameters map[string]any, opts ...EnvironmentOptions) *TestContext {
	key := strings.ToLower(name)
	if _, ok := tc.environments[key]; !ok {
		tc.envNames = append(tc.envNames, name)
	}
	if parameters == nil {
		parameters = map[string]any{}
	}
	var o EnvironmentOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	tc.environments[key] = EnvironmentConfiguration{Parameters: parameters, Options: o}
	return tc
}

// SetDataGenerator sets the function producing ad hoc data.
func (tc *TestContext) SetDataGenerator(g DataGenerator) *TestContext {
	tc.dataGenerator = g
	return tc
}

// SetDefaultDataset sets the dataset used when DATASET is not set.
func (tc *TestContext) SetDefaultDataset(name string) *TestContext {
	tc.defaultDataset = name
	return tc
}

// SetMailProvider sets the disposable mail provider. MAILPROVIDER overrides
// it.
func (tc *TestContext) SetMailProvider(name mail.ProviderName) *TestContext {
	tc.mailProvider = name
	return tc
}

// SetLogLevel sets the level of the global logger.
func (tc *TestContext) SetLogLevel(level string) *TestContext {
	logging.SetLevel(level)
	return tc
}

// SetUserStore selects where recorded users are kept.
func (tc *TestContext) SetUserStore(kind storage.Kind) *TestContext {
	tc.userStore = kind
	return tc
}

// SetSMTPRelay sets the relay used by the mail service to send mail.
func (tc *TestContext) SetSMTPRelay(addr string) *TestContext {
	tc.smtpRelay = addr
	return tc
}

// SetPollInterval overrides how often mailboxes are polled.
func (tc *TestContext) SetPollInterval(d time.Duration) *TestContext {
	tc.pollInterval = d
	return tc
}

// SetPage sets the page the mail providers drive. Without one, Initialize
// creates a page with no driver; attach one with Page().Attach.
func (tc *TestContext) SetPage(p *browser.Page) *TestContext {
	tc.page = p
	return tc
}

// DefaultEnvironmentName returns the first registered environment.
func (tc *TestContext) DefaultEnvironmentName() (string, error) {
	if len(tc.envNames) == 0 {
		return "", configErrorf("at least one environment must be set")
	}
	return tc.envNames[0], nil
}

// EnvironmentName returns TARGET_ENV, or else the default environment, in
// lower case. It is empty when no environment is registered.
func (tc *TestContext) EnvironmentName() string {
	if tc.initialized {
		return tc.envName
	}
	return tc.resolveEnvironmentName()
}

func (tc *TestContext) resolveEnvironmentName() string {
	if v := os.Getenv(EnvTargetEnv); v != "" {
		return strings.ToLower(v)
	}
	d, err := tc.DefaultEnvironmentName()
	if err != nil {
		return ""
	}
	return strings.ToLower(d)
}

// Environment returns the configuration of the current environment.
func (tc *TestContext) Environment() (EnvironmentConfiguration, bool) {
	e, ok := tc.environments[tc.EnvironmentName()]
	return e, ok
}

func (tc *TestContext) effectiveDefaultDataset() string {
	if tc.defaultDataset != "" {
		return tc.defaultDataset
	}
	return DefaultDataset
}

// Dataset returns DATASET, or else the default dataset.
func (tc *TestContext) Dataset() string {
	if tc.initialized {
		return tc.dataset
	}
	if v := os.Getenv(EnvDataset); v != "" {
		return v
	}
	return tc.effectiveDefaultDataset()
}

// IsDefaultDataset reports whether the current dataset is the default one.
func (tc *TestContext) IsDefaultDataset() bool {
	return tc.Dataset() == tc.effectiveDefaultDataset()
}

// GetParameter returns a parameter of the current environment. A missing
// parameter is nil, or a configuration error when mandatory.
func (tc *TestContext) GetParameter(name string, mandatory bool) (any, error) {
	env, _ := tc.Environment()
	v, ok := env.Parameters[name]
	if !ok && mandatory {
		return nil, configErrorf("parameter %q was not defined for the %q environment", name, tc.EnvironmentName())
	}
	return v, nil
}

// User returns the user of the run.
func (tc *TestContext) User() user.TestUser {
	return tc.user
}

// MailService returns the mail service, nil before Initialize.
func (tc *TestContext) MailService() *mail.Service {
	return tc.mailService
}

// Page returns the page driven by the mail providers.
func (tc *TestContext) Page() *browser.Page {
	return tc.page
}

// Authorities returns the certificate authorities loaded from the ca folder.
func (tc *TestContext) Authorities() certs.Authorities {
	return tc.authorities
}

// Data returns the merged content of the run. It must not be modified.
func (tc *TestContext) Data() map[string]any {
	return tc.data
}

// Value walks the merged content along path. Array elements are addressed
// by their index.
func (tc *TestContext) Value(path ...string) (any, bool) {
	var cur any = tc.data
	for _, p := range path {
		switch t := cur.(type) {
		case map[string]any:
			v, ok := t[p]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(p)
			if err != nil || i < 0 || i >= len(t) {
				return nil, false
			}
			cur = t[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Decode stores the merged content in v, which works like the target of
// json.Unmarshal.
func (tc *TestContext) Decode(v any) error {
	return decodeInto(tc.data, v)
}

func (tc *TestContext) logFolder() string {
	return filepath.Join(tc.root, "data", "log")
}

// RecordTestUser appends the user of the run to the recorded users so that
// later runs can reuse it through EMAIL.
func (tc *TestContext) RecordTestUser() error {
	ul, err := storage.Open(tc.userStore, tc.logFolder())
	if err != nil {
		return err
	}
	defer ul.Close()

	return ul.Append(user.RecordedTestUser{
		Environment: tc.EnvironmentName(),
		Dataset:     tc.Dataset(),
		Date:        time.Now().Format(user.DateLayout),
		TestUser:    tc.user,
	})
}

// MarshalZerologObject logs the public state of the context. The password
// and the mail service are left out.
func (tc *TestContext) MarshalZerologObject(e *zerolog.Event) {
	e.Str("environment", tc.EnvironmentName()).
		Str("dataset", tc.Dataset()).
		Str("email", tc.user.Email).
		Str("firstname", tc.user.Firstname).
		Str("lastname", tc.user.Lastname).
		Interface("data", withoutUser(tc.data))
	if tc.mailService != nil {
		e.Str("mailProvider", tc.mailService.Name())
	}
}

func withoutUser(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if k != "user" {
			out[k] = v
		}
	}
	return out
}
