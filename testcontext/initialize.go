package testcontext

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/ptgott/e2ekit/browser"
	"github.com/ptgott/e2ekit/certs"
	"github.com/ptgott/e2ekit/mail"
	"github.com/ptgott/e2ekit/storage"
	"github.com/ptgott/e2ekit/user"
)

// dotenvFiles lists the files loaded for env, highest precedence first.
// Variables already set in the process always win.
func dotenvFiles(root, env string) []string {
	return []string{
		filepath.Join(root, ".env."+env+".local"),
		filepath.Join(root, ".env.local"),
		filepath.Join(root, ".env."+env),
		filepath.Join(root, ".env"),
	}
}

func loadDotenv(root, env string) error {
	for _, f := range dotenvFiles(root, env) {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("can't load %v: %w", f, err)
		}
		log.Debug().Str("file", f).Msg("loaded environment file")
	}
	return nil
}

// toJSONObject converts v to the shape json.Unmarshal gives a JSON object.
func toJSONObject(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (tc *TestContext) mailProviderName() mail.ProviderName {
	if v := os.Getenv(EnvMailProvider); v != "" {
		return mail.ProviderName(v)
	}
	if tc.mailProvider != "" {
		return tc.mailProvider
	}
	return mail.DefaultProvider
}

func (tc *TestContext) newMailService(page *browser.Page, a certs.Authorities) (*mail.Service, error) {
	var opts []mail.Option
	if tc.pollInterval > 0 {
		opts = append(opts, mail.WithInterval(tc.pollInterval))
	}
	p, err := mail.NewProvider(tc.mailProviderName(), page, opts...)
	if err != nil {
		return nil, configErrorf("%v", err)
	}

	sopts := []mail.ServiceOption{mail.WithTLSConfig(a.TLSConfig())}
	if tc.smtpRelay != "" {
		sopts = append(sopts, mail.WithRelay(tc.smtpRelay))
	}
	return mail.NewService(p, sopts...), nil
}

// Initialize resolves the environment, the dataset and the user of the run
// and merges the data of the run in this order: dataset file, generated
// user, generated data, and the recorded user named by EMAIL if any. Every
// error wraps ErrConfiguration, and a failed call leaves the context as it
// was.
func (tc *TestContext) Initialize() error {
	if tc.initialized {
		return errors.New("the test context is already initialized")
	}

	defaultEnv, err := tc.DefaultEnvironmentName()
	if err != nil {
		return err
	}

	a, err := certs.Load(tc.root)
	if err != nil {
		return configErrorf("%v", err)
	}

	dotenvEnv := os.Getenv(EnvTargetEnv)
	if dotenvEnv == "" {
		dotenvEnv = defaultEnv
	}
	if err := loadDotenv(tc.root, dotenvEnv); err != nil {
		return configErrorf("%v", err)
	}

	envName := tc.resolveEnvironmentName()
	env, ok := tc.environments[envName]
	if !ok {
		return configErrorf("the environment %q is not registered", envName)
	}

	page := tc.page
	if page == nil {
		page = browser.NewPage(nil)
	}
	ms, err := tc.newMailService(page, a)
	if err != nil {
		return err
	}

	dataFolder := filepath.Join(tc.root, "data")
	if env.Options.PerEnvironmentData {
		dataFolder = filepath.Join(dataFolder, envName)
	}
	dataset := tc.Dataset()
	datasetPath := filepath.Join(dataFolder, dataset+".json")
	if _, err := os.Stat(datasetPath); err != nil {
		return configErrorf("unable to find the dataset file %v", datasetPath)
	}

	password := os.Getenv(EnvUserPassword)
	if password == "" {
		return configErrorf("the password of generated users must be set with %s", EnvUserPassword)
	}
	generated, err := tc.generator.Generate(ms.Domains(), password)
	if err != nil {
		return configErrorf("%v", err)
	}

	var custom map[string]any
	if tc.dataGenerator != nil {
		c, err := tc.dataGenerator(tc)
		if err != nil {
			return configErrorf("the data generator failed: %v", err)
		}
		if custom, err = toJSONObject(c); err != nil {
			return configErrorf("the generated data is not a JSON object: %v", err)
		}
	}

	b, err := os.ReadFile(datasetPath)
	if err != nil {
		return configErrorf("%v", err)
	}
	var content map[string]any
	if err := json.Unmarshal(b, &content); err != nil {
		return configErrorf("the dataset file %v is not a JSON object: %v", datasetPath, err)
	}

	fragments := []map[string]any{
		content,
		{"user": generated.Map()},
		custom,
	}

	if email := os.Getenv(EnvEmail); email != "" {
		recorded, err := tc.recordedUser(envName, email)
		if err != nil {
			return err
		}
		fragments = append(fragments, map[string]any{"user": recorded.Map()})
	}

	data := fold(fragments...)
	var merged struct {
		User user.TestUser `json:"user"`
	}
	if err := decodeInto(data, &merged); err != nil {
		return configErrorf("the merged user is invalid: %v", err)
	}

	tc.authorities = a
	tc.page = page
	tc.mailService = ms
	tc.envName = envName
	tc.dataset = dataset
	tc.dataFolder = dataFolder
	tc.data = data
	tc.user = merged.User
	tc.initialized = true

	log.Info().
		Str("environment", envName).
		Str("dataset", dataset).
		Str("mailProvider", ms.Name()).
		Str("email", tc.user.Email).
		Msg("test context initialized")
	return nil
}

func decodeInto(data map[string]any, v any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// recordedUser finds the user to reuse for email, or the last one of env
// when email is "last".
func (tc *TestContext) recordedUser(env, email string) (user.TestUser, error) {
	ul, err := storage.Open(tc.userStore, tc.logFolder())
	if err != nil {
		return user.TestUser{}, configErrorf("%v", err)
	}
	defer ul.Close()

	users, err := ul.Users()
	if err != nil {
		return user.TestUser{}, configErrorf("%v", err)
	}

	u, ok := storage.Last(users, env, email)
	if !ok {
		what := fmt.Sprintf("previously recorded user with email %q", email)
		if strings.EqualFold(email, storage.LastSentinel) {
			what = "last recorded user"
		}
		return user.TestUser{}, configErrorf("unable to find the %s for the %q environment", what, env)
	}
	log.Debug().Str("email", u.Email).Str("date", u.Date).Msg("reusing a recorded user")
	return u.TestUser, nil
}
