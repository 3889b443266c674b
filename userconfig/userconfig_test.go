package userconfig

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ptgott/e2ekit/storage"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		description   string
		conf          string
		shouldBeError bool
		shouldBeEmpty bool
	}{
		{
			description:   "valid case",
			shouldBeError: false,
			shouldBeEmpty: false,
			conf: `---
logLevel: debug
mailProvider: yopmail
defaultDataset: smoke
userStore: badger
smtpRelay: mail.internal:2525
polling:
    interval: 2s
environments:
    - name: staging
      perEnvironmentData: true
      parameters:
          url: https://staging.shop.test
          vtom:
              url: https://vtom.test/api
              apiKey: k
    - name: prod
      parameters:
          url: https://shop.test`,
		},
		{
			description:   "not yaml",
			shouldBeError: true,
			shouldBeEmpty: true,
			conf:          `this is not yaml`,
		},
		{
			description:   "unknown user store",
			shouldBeError: true,
			shouldBeEmpty: true,
			conf: `userStore: redis
environments:
    - name: staging`,
		},
		{
			description:   "unnamed environment",
			shouldBeError: true,
			shouldBeEmpty: true,
			conf: `environments:
    - parameters:
          url: https://x`,
		},
		{
			description:   "polling interval too short",
			shouldBeError: true,
			shouldBeEmpty: true,
			conf: `polling:
    interval: 10ms
environments:
    - name: staging`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			b := bytes.NewBuffer([]byte(tc.conf))
			m, err := Parse(b)

			if (err != nil) != tc.shouldBeError {
				t.Errorf(
					"%v: unexpected error status: wanted %v but got %v with error %v",
					tc.description,
					tc.shouldBeError,
					err != nil,
					err,
				)
			}

			if reflect.DeepEqual(*m, Meta{}) != tc.shouldBeEmpty {
				l := map[bool]string{
					true:  "to be",
					false: "not to be",
				}
				t.Errorf(
					"%v: expected the Meta %v empty, but got the opposite",
					tc.description,
					l[tc.shouldBeEmpty],
				)
			}
		})
	}
}

func TestParseEnvironments(t *testing.T) {
	m, err := Parse(bytes.NewBufferString(`
environments:
    - name: staging
      perEnvironmentData: true
      parameters:
          url: https://staging.shop.test
          retries: 3
          vtom:
              url: https://vtom.test/api
              hosts: [a, b]
    - name: prod
`))
	if err != nil {
		t.Fatal(err)
	}

	want := []Environment{
		{
			Name:               "staging",
			PerEnvironmentData: true,
			Parameters: map[string]any{
				"url":     "https://staging.shop.test",
				"retries": 3,
				"vtom": map[string]any{
					"url":   "https://vtom.test/api",
					"hosts": []any{"a", "b"},
				},
			},
		},
		{
			Name:       "prod",
			Parameters: map[string]any{},
		},
	}
	if diff := cmp.Diff(want, m.Environments); diff != "" {
		t.Errorf("unexpected environments (-want +got):\n%s", diff)
	}
}

func TestCheckAndSetDefaults(t *testing.T) {
	testCases := []struct {
		description   string
		conf          string
		expected      Meta
		shouldBeError bool
	}{
		{
			description: "defaults",
			conf: `environments:
    - name: staging`,
			expected: Meta{
				LogLevel:     "error",
				MailProvider: "maildrop",
				UserStore:    storage.KindJSON,
				SMTPRelay:    "smtp.als.lan:25",
				Environments: []Environment{{Name: "staging", Parameters: map[string]any{}}},
			},
		},
		{
			description: "user values win",
			conf: `logLevel: warn
mailProvider: GuerrillaMail
defaultDataset: smoke
userStore: badger
smtpRelay: relay:2525
environments:
    - name: staging`,
			expected: Meta{
				LogLevel:       "warn",
				MailProvider:   "guerrillamail",
				DefaultDataset: "smoke",
				UserStore:      storage.KindBadger,
				SMTPRelay:      "relay:2525",
				Environments:   []Environment{{Name: "staging", Parameters: map[string]any{}}},
			},
		},
		{
			description:   "no environment",
			conf:          `logLevel: warn`,
			shouldBeError: true,
		},
		{
			description: "duplicate environment",
			conf: `environments:
    - name: staging
    - name: Staging`,
			shouldBeError: true,
		},
		{
			description: "unknown log level",
			conf: `logLevel: verbose
environments:
    - name: staging`,
			shouldBeError: true,
		},
		{
			description: "unknown mail provider",
			conf: `mailProvider: mailinator
environments:
    - name: staging`,
			shouldBeError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			m, err := Parse(bytes.NewBufferString(tc.conf))
			if err != nil {
				t.Fatalf("unexpected parsing error: %v", err)
			}

			c, err := m.CheckAndSetDefaults()
			if (err != nil) != tc.shouldBeError {
				t.Fatalf("expected error status of %v but got %v with error %v", tc.shouldBeError, err != nil, err)
			}
			if tc.shouldBeError {
				return
			}
			if diff := cmp.Diff(tc.expected, c); diff != "" {
				t.Errorf("unexpected config (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPollingInterval(t *testing.T) {
	m, err := Parse(bytes.NewBufferString(`polling:
    interval: 2s
environments:
    - name: staging`))
	if err != nil {
		t.Fatal(err)
	}
	c, err := m.CheckAndSetDefaults()
	if err != nil {
		t.Fatal(err)
	}
	if c.Polling == nil || c.Polling.Interval != 2*time.Second {
		t.Errorf("expected a 2s polling interval but got %+v", c.Polling)
	}
}
