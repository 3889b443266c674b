// Package userconfig reads the YAML file describing a test suite: its
// environments and the defaults of the test context.
package userconfig

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"dario.cat/mergo"
	"github.com/rs/zerolog/log"
	yaml "gopkg.in/yaml.v2"

	"github.com/ptgott/e2ekit/logging"
	"github.com/ptgott/e2ekit/mail"
	"github.com/ptgott/e2ekit/poller"
	"github.com/ptgott/e2ekit/storage"
)

// Meta represents all config options of a suite.
type Meta struct {
	LogLevel       string         `yaml:"logLevel"`
	MailProvider   string         `yaml:"mailProvider"`
	DefaultDataset string         `yaml:"defaultDataset"`
	UserStore      storage.Kind   `yaml:"userStore"`
	SMTPRelay      string         `yaml:"smtpRelay"`
	Polling        *poller.Config `yaml:"polling"`
	Environments   []Environment  `yaml:"environments"`
}

// Environment is one target the suite can run against.
type Environment struct {
	Name               string
	PerEnvironmentData bool
	Parameters         map[string]any
}

// defaults fill the blanks left by the user. DefaultDataset is left to the
// test context.
var defaults = Meta{
	LogLevel:     logging.LevelError,
	MailProvider: string(mail.DefaultProvider),
	UserStore:    storage.KindJSON,
	SMTPRelay:    mail.DefaultRelay,
}

// UnmarshalYAML implements the yaml.Unmarshaler interface. Validation is
// performed here.
func (e *Environment) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v struct {
		Name               string                      `yaml:"name"`
		PerEnvironmentData bool                        `yaml:"perEnvironmentData"`
		Parameters         map[interface{}]interface{} `yaml:"parameters"`
	}
	if err := unmarshal(&v); err != nil {
		return fmt.Errorf("can't parse the environment config: %v", err)
	}

	if strings.TrimSpace(v.Name) == "" {
		return errors.New("the config must name every environment")
	}
	e.Name = v.Name
	e.PerEnvironmentData = v.PerEnvironmentData

	p, ok := normalize(v.Parameters).(map[string]any)
	if !ok {
		p = map[string]any{}
	}
	e.Parameters = p
	return nil
}

// normalize turns the map[interface{}]interface{} values produced by yaml.v2
// into map[string]any so parameters look like decoded JSON.
func normalize(v any) any {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case []interface{}:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = normalize(val)
		}
		return s
	default:
		return v
	}
}

// CheckAndSetDefaults validates m and either returns a copy of m with default
// settings applied or returns an error due to an invalid configuration
func (m *Meta) CheckAndSetDefaults() (Meta, error) {
	c := *m
	if err := mergo.Merge(&c, defaults); err != nil {
		return Meta{}, fmt.Errorf("can't apply the config defaults: %v", err)
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return Meta{}, err
	}

	p, err := mail.ParseProviderName(c.MailProvider)
	if err != nil {
		return Meta{}, err
	}
	c.MailProvider = string(p)

	if len(c.Environments) == 0 {
		return Meta{}, errors.New("must include at least one item within \"environments\"")
	}
	seen := make(map[string]bool, len(c.Environments))
	for _, e := range c.Environments {
		n := strings.ToLower(e.Name)
		if seen[n] {
			return Meta{}, fmt.Errorf("the environment %q is defined twice", e.Name)
		}
		seen[n] = true
	}

	return c, nil
}

// Parse reads a suite configuration. An error indicates a problem with
// parsing; call CheckAndSetDefaults to validate the result.
func Parse(r io.Reader) (*Meta, error) {
	var m Meta
	err := yaml.NewDecoder(r).Decode(&m)
	if err != nil {
		return &Meta{}, fmt.Errorf("can't read the config file as YAML: %v", err)
	}

	log.Debug().Int("environments", len(m.Environments)).Msg("parsed the suite config")
	return &m, nil
}
