package storage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v2"

	"github.com/ptgott/e2ekit/user"
)

func TestKind_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		expected Kind
		wantErr  bool
	}{
		{
			name:     "json",
			config:   `userStore: json`,
			expected: KindJSON,
		},
		{
			name:     "badger with odd casing",
			config:   `userStore: " Badger"`,
			expected: KindBadger,
		},
		{
			name:    "unknown store",
			config:  `userStore: sqlite`,
			wantErr: true,
		},
		{
			name:    "not a scalar",
			config:  `userStore: [json]`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := yaml.NewDecoder(bytes.NewBufferString(tt.config))
			var c struct {
				UserStore Kind `yaml:"userStore"`
			}
			err := dec.Decode(&c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr = %v but got %v with err %v", tt.wantErr, err != nil, err)
			}
			if err == nil && c.UserStore != tt.expected {
				t.Errorf("expected %q but got %q", tt.expected, c.UserStore)
			}
		})
	}
}

func recorded(env, email, date string) user.RecordedTestUser {
	return user.RecordedTestUser{
		Environment: env,
		Dataset:     "default",
		Date:        date,
		TestUser:    user.TestUser{Email: email, Gender: user.Madame},
	}
}

func TestLast(t *testing.T) {
	users := []user.RecordedTestUser{
		recorded("staging", "a@maildrop.cc", "1"),
		recorded("prod", "b@maildrop.cc", "2"),
		recorded("staging", "c@maildrop.cc", "3"),
		recorded("staging", "a@maildrop.cc", "4"),
		recorded("prod", "d@maildrop.cc", "5"),
	}

	testCases := []struct {
		description string
		env         string
		email       string
		expectFound bool
		expectDate  string
	}{
		{description: "last of staging", env: "staging", email: "last", expectFound: true, expectDate: "4"},
		{description: "sentinel is case insensitive", env: "prod", email: "LAST", expectFound: true, expectDate: "5"},
		{description: "most recent match by email", env: "staging", email: "a@maildrop.cc", expectFound: true, expectDate: "4"},
		{description: "email recorded in another environment", env: "prod", email: "c@maildrop.cc"},
		{description: "unknown environment", env: "dev", email: "last"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			u, ok := Last(users, tc.env, tc.email)
			assert.Equal(t, tc.expectFound, ok)
			if tc.expectFound {
				assert.Equal(t, tc.expectDate, u.Date)
				assert.Equal(t, tc.env, u.Environment)
			}
		})
	}
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open(Kind("sqlite"), t.TempDir())
	assert.Error(t, err)
}
